package models

import "time"

const (
	// MetaMasterID links a replica back to its master product. Excluded
	// from metadata copy so replicas never overwrite their own link.
	MetaMasterID = "_prodsync_master_id"

	// MetaThumbnailID featured image reference on a product
	MetaThumbnailID = "_thumbnail_id"

	// MetaImageGallery comma-joined ordered asset id list
	MetaImageGallery = "_product_image_gallery"
)

const (
	ProductPublished = "publish"
	ProductDraft     = "draft"

	AssetInherit = "inherit"
)

type Product struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Excerpt   string    `json:"excerpt"`
	Status    string    `json:"status"`
	MenuOrder int64     `json:"menu_order"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductFields is the upsert payload; everything the replicator writes
// onto a target record in one call.
type ProductFields struct {
	Title     string
	Body      string
	Excerpt   string
	Status    string
	MenuOrder int64
}

func (p Product) Fields() ProductFields {
	return ProductFields{
		Title:     p.Title,
		Body:      p.Body,
		Excerpt:   p.Excerpt,
		Status:    p.Status,
		MenuOrder: p.MenuOrder,
	}
}

type Asset struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	MimeType string `json:"mime_type"`
	Path     string `json:"path"`
	OwnerID  int64  `json:"owner_id"`
	Status   string `json:"status"`
}
