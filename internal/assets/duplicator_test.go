package assets

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"prodsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAssetStore struct {
	mock.Mock
}

func (m *mockAssetStore) GetAsset(ctx context.Context, tenant string, id int64) (*models.Asset, error) {
	args := m.Called(ctx, tenant, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}

func (m *mockAssetStore) InsertAsset(ctx context.Context, tenant string, asset *models.Asset) (int64, error) {
	args := m.Called(ctx, tenant, asset)
	id := args.Get(0).(int64)
	asset.ID = id
	return id, args.Error(1)
}

func writeSourceFile(t *testing.T, root, tenant, name, content string) {
	t.Helper()
	dir := filepath.Join(root, tenant)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDuplicator_Duplicate(t *testing.T) {
	root := t.TempDir()
	logger := zerolog.Nop()
	ctx := context.Background()

	store := new(mockAssetStore)
	d := NewDuplicator(store, nil, root, "shop-a", &logger)

	writeSourceFile(t, root, "shop-a", "hero.jpg", "jpeg-bytes")

	asset := &models.Asset{ID: 5, Title: "hero", MimeType: "image/jpeg", Path: "hero.jpg"}
	store.On("GetAsset", ctx, "shop-a", int64(5)).Return(asset, nil).Once()
	store.On("InsertAsset", ctx, "shop-b", mock.MatchedBy(func(a *models.Asset) bool {
		return a.Path == "hero.jpg" && a.OwnerID == 7 && a.Status == models.AssetInherit
	})).Return(int64(50), nil).Once()

	newID, err := d.Duplicate(ctx, "shop-b", 5, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(50), newID)

	copied, err := os.ReadFile(filepath.Join(root, "shop-b", "hero.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(copied))
	store.AssertExpectations(t)
}

func TestDuplicator_MissingRecordSkips(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	store := new(mockAssetStore)
	d := NewDuplicator(store, nil, t.TempDir(), "shop-a", &logger)

	store.On("GetAsset", ctx, "shop-a", int64(5)).Return(nil, sql.ErrNoRows).Once()

	newID, err := d.Duplicate(ctx, "shop-b", 5, 7)
	assert.NoError(t, err)
	assert.Zero(t, newID)
}

func TestDuplicator_MissingFileSkips(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	store := new(mockAssetStore)
	d := NewDuplicator(store, nil, t.TempDir(), "shop-a", &logger)

	asset := &models.Asset{ID: 5, Path: "gone.jpg"}
	store.On("GetAsset", ctx, "shop-a", int64(5)).Return(asset, nil).Once()

	newID, err := d.Duplicate(ctx, "shop-b", 5, 7)
	assert.NoError(t, err)
	assert.Zero(t, newID)
	store.AssertNotCalled(t, "InsertAsset", mock.Anything, mock.Anything, mock.Anything)
}

func TestDuplicator_FilenameCollision(t *testing.T) {
	root := t.TempDir()
	logger := zerolog.Nop()
	ctx := context.Background()

	store := new(mockAssetStore)
	d := NewDuplicator(store, nil, root, "shop-a", &logger)

	writeSourceFile(t, root, "shop-a", "hero.jpg", "new-bytes")
	// target already has hero.jpg and hero-1.jpg
	writeSourceFile(t, root, "shop-b", "hero.jpg", "old")
	writeSourceFile(t, root, "shop-b", "hero-1.jpg", "old")

	asset := &models.Asset{ID: 5, Path: "hero.jpg"}
	store.On("GetAsset", ctx, "shop-a", int64(5)).Return(asset, nil).Once()
	store.On("InsertAsset", ctx, "shop-b", mock.MatchedBy(func(a *models.Asset) bool {
		return a.Path == "hero-2.jpg"
	})).Return(int64(51), nil).Once()

	newID, err := d.Duplicate(ctx, "shop-b", 5, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(51), newID)
	assert.FileExists(t, filepath.Join(root, "shop-b", "hero-2.jpg"))
}

func TestDuplicator_DuplicateGallery(t *testing.T) {
	root := t.TempDir()
	logger := zerolog.Nop()
	ctx := context.Background()

	store := new(mockAssetStore)
	d := NewDuplicator(store, nil, root, "shop-a", &logger)

	writeSourceFile(t, root, "shop-a", "one.jpg", "1")
	writeSourceFile(t, root, "shop-a", "three.jpg", "3")

	store.On("GetAsset", ctx, "shop-a", int64(1)).Return(&models.Asset{ID: 1, Path: "one.jpg"}, nil).Once()
	store.On("GetAsset", ctx, "shop-a", int64(2)).Return(&models.Asset{ID: 2, Path: "missing.jpg"}, nil).Once()
	store.On("GetAsset", ctx, "shop-a", int64(3)).Return(&models.Asset{ID: 3, Path: "three.jpg"}, nil).Once()
	store.On("InsertAsset", ctx, "shop-b", mock.Anything).Return(int64(11), nil).Once()
	store.On("InsertAsset", ctx, "shop-b", mock.Anything).Return(int64(13), nil).Once()

	// id 2's file is gone, invalid entries are dropped too
	result := d.DuplicateGallery(ctx, "shop-b", "1, 2,abc,3", 7)
	assert.Equal(t, "11,13", result)
}

func TestSidecarGenerator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hero.jpg")
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

	gen := NewSidecarGenerator()
	asset := models.Asset{ID: 9, MimeType: "image/jpeg", Path: "hero.jpg"}
	require.NoError(t, gen.Generate(context.Background(), "shop-b", asset, path))

	assert.FileExists(t, path+".meta.json")
}
