package database

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"prodsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertProduct(t *testing.T, db *DB, tenant, title, status string) int64 {
	t.Helper()
	id, err := db.UpsertProduct(context.Background(), tenant, 0, models.ProductFields{
		Title:  title,
		Status: status,
	})
	require.NoError(t, err)
	return id
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestCountPublished(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertProduct(t, db, "shop-a", "one", models.ProductPublished)
	insertProduct(t, db, "shop-a", "two", models.ProductPublished)
	insertProduct(t, db, "shop-a", "hidden", models.ProductDraft)
	insertProduct(t, db, "shop-b", "other tenant", models.ProductPublished)

	count, err := db.CountPublished(ctx, "shop-a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = db.CountPublished(ctx, "shop-c")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListPublished_Paging(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, insertProduct(t, db, "shop-a", "p", models.ProductPublished))
	}
	insertProduct(t, db, "shop-a", "draft", models.ProductDraft)

	page, err := db.ListPublished(ctx, "shop-a", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = db.ListPublished(ctx, "shop-a", 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[4], page[0].ID)

	page, err = db.ListPublished(ctx, "shop-a", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestUpsertProduct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insertProduct(t, db, "shop-a", "original", models.ProductPublished)

	updatedID, err := db.UpsertProduct(ctx, "shop-a", id, models.ProductFields{
		Title:  "renamed",
		Status: models.ProductPublished,
	})
	require.NoError(t, err)
	assert.Equal(t, id, updatedID)

	p, err := db.GetProduct(ctx, "shop-a", id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", p.Title)

	t.Run("UpdateMissingProduct", func(t *testing.T) {
		_, err := db.UpsertProduct(ctx, "shop-a", 9999, models.ProductFields{Title: "x"})
		assert.Error(t, err)
	})

	t.Run("UpdateWrongTenant", func(t *testing.T) {
		_, err := db.UpsertProduct(ctx, "shop-b", id, models.ProductFields{Title: "x"})
		assert.Error(t, err)
	})
}

func TestDeleteProduct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insertProduct(t, db, "shop-b", "replica", models.ProductPublished)
	require.NoError(t, db.SetMetadata(ctx, "shop-b", id, "_color", "red"))
	require.NoError(t, db.SetTerms(ctx, "shop-b", id, "category", []string{"tools"}))

	require.NoError(t, db.DeleteProduct(ctx, "shop-b", id))

	_, err := db.GetProduct(ctx, "shop-b", id)
	assert.Error(t, err)

	meta, err := db.GetMetadata(ctx, "shop-b", id)
	require.NoError(t, err)
	assert.Empty(t, meta)

	taxonomies, err := db.Taxonomies(ctx, "shop-b", id)
	require.NoError(t, err)
	assert.Empty(t, taxonomies)
}

func TestFindReplicaByMasterID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	masterID := insertProduct(t, db, "shop-a", "master", models.ProductPublished)
	replicaID := insertProduct(t, db, "shop-b", "replica", models.ProductPublished)
	require.NoError(t, db.SetMetadata(ctx, "shop-b", replicaID, models.MetaMasterID, strconv.FormatInt(masterID, 10)))

	found, err := db.FindReplicaByMasterID(ctx, "shop-b", masterID)
	require.NoError(t, err)
	assert.Equal(t, replicaID, found)

	t.Run("NoReplica", func(t *testing.T) {
		found, err := db.FindReplicaByMasterID(ctx, "shop-b", 777)
		require.NoError(t, err)
		assert.Zero(t, found)
	})

	t.Run("WrongTenant", func(t *testing.T) {
		found, err := db.FindReplicaByMasterID(ctx, "shop-c", masterID)
		require.NoError(t, err)
		assert.Zero(t, found)
	})
}

func TestFindReplicasByMasterID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := insertProduct(t, db, "shop-b", "dup one", models.ProductPublished)
	second := insertProduct(t, db, "shop-b", "dup two", models.ProductPublished)
	require.NoError(t, db.SetMetadata(ctx, "shop-b", first, models.MetaMasterID, "42"))
	require.NoError(t, db.SetMetadata(ctx, "shop-b", second, models.MetaMasterID, "42"))

	ids, err := db.FindReplicasByMasterID(ctx, "shop-b", 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{first, second}, ids)
}

func TestMetadata(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insertProduct(t, db, "shop-a", "p", models.ProductPublished)

	require.NoError(t, db.SetMetadata(ctx, "shop-a", id, "_color", "red"))
	require.NoError(t, db.AddMetadata(ctx, "shop-a", id, "_color", "blue"))
	require.NoError(t, db.SetMetadata(ctx, "shop-a", id, "_size", "XL"))

	meta, err := db.GetMetadata(ctx, "shop-a", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, meta["_color"])
	assert.Equal(t, []string{"XL"}, meta["_size"])

	t.Run("SetReplacesAllValues", func(t *testing.T) {
		require.NoError(t, db.SetMetadata(ctx, "shop-a", id, "_color", "green"))
		meta, err := db.GetMetadata(ctx, "shop-a", id)
		require.NoError(t, err)
		assert.Equal(t, []string{"green"}, meta["_color"])
	})

	t.Run("GetMetaValue", func(t *testing.T) {
		value, err := db.GetMetaValue(ctx, "shop-a", id, "_size")
		require.NoError(t, err)
		assert.Equal(t, "XL", value)

		value, err = db.GetMetaValue(ctx, "shop-a", id, "_missing")
		require.NoError(t, err)
		assert.Empty(t, value)
	})
}

func TestTerms(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insertProduct(t, db, "shop-a", "p", models.ProductPublished)

	require.NoError(t, db.SetTerms(ctx, "shop-a", id, "category", []string{"tools", "garden"}))
	require.NoError(t, db.SetTerms(ctx, "shop-a", id, "tag", []string{"sale"}))

	taxonomies, err := db.Taxonomies(ctx, "shop-a", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"category", "tag"}, taxonomies)

	slugs, err := db.GetTerms(ctx, "shop-a", id, "category")
	require.NoError(t, err)
	assert.Equal(t, []string{"tools", "garden"}, slugs)

	t.Run("SetReplacesAssignments", func(t *testing.T) {
		require.NoError(t, db.SetTerms(ctx, "shop-a", id, "category", []string{"outdoor"}))
		slugs, err := db.GetTerms(ctx, "shop-a", id, "category")
		require.NoError(t, err)
		assert.Equal(t, []string{"outdoor"}, slugs)
	})
}

func TestAssets(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	asset := models.Asset{
		Title:    "hero shot",
		MimeType: "image/jpeg",
		Path:     "hero.jpg",
		OwnerID:  7,
		Status:   models.AssetInherit,
	}
	id, err := db.InsertAsset(ctx, "shop-a", &asset)
	require.NoError(t, err)
	assert.Equal(t, id, asset.ID)

	got, err := db.GetAsset(ctx, "shop-a", id)
	require.NoError(t, err)
	assert.Equal(t, "hero shot", got.Title)
	assert.Equal(t, "hero.jpg", got.Path)

	t.Run("WrongTenant", func(t *testing.T) {
		_, err := db.GetAsset(ctx, "shop-b", id)
		assert.Error(t, err)
	})
}
