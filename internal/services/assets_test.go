package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps-backend-go/internal/models"
)

type memAssetStore struct {
	editions []EditionContext
	assets   map[string]models.Asset
	offsets  []int
	ready    map[string]string
}

func newMemAssetStore(editions int) *memAssetStore {
	store := &memAssetStore{assets: map[string]models.Asset{}, ready: map[string]string{}}
	for i := 0; i < editions; i++ {
		store.editions = append(store.editions, EditionContext{
			EditionID: fmt.Sprintf("MATH_Y%d_topic%02d_AU", i%6+1, i),
			Title:     fmt.Sprintf("Topic %d", i),
			SubjectID: "mathematics",
			Topic:     fmt.Sprintf("topic %d", i),
			YearLevel: i%6 + 1,
		})
	}
	return store
}

func (s *memAssetStore) CountEditions(ctx context.Context) (int, error) {
	return len(s.editions), nil
}

func (s *memAssetStore) EditionBatch(ctx context.Context, offset, limit int) ([]EditionContext, error) {
	s.offsets = append(s.offsets, offset)
	if offset >= len(s.editions) {
		return nil, nil
	}
	end := min(offset+limit, len(s.editions))
	return s.editions[offset:end], nil
}

func (s *memAssetStore) InsertPlaceholder(ctx context.Context, asset models.Asset) (bool, error) {
	if _, ok := s.assets[asset.AssetID]; ok {
		return false, nil
	}
	s.assets[asset.AssetID] = asset
	return true, nil
}

func (s *memAssetStore) GetAsset(ctx context.Context, assetID string) (models.Asset, error) {
	asset, ok := s.assets[assetID]
	if !ok {
		return models.Asset{}, ErrNotFound("asset not found")
	}
	return asset, nil
}

func (s *memAssetStore) MarkAssetReady(ctx context.Context, assetID, uri string, metadata []byte) error {
	asset := s.assets[assetID]
	asset.URI = uri
	asset.Metadata = metadata
	s.assets[assetID] = asset
	s.ready[assetID] = uri
	return nil
}

func testScanner(t *testing.T, store AssetStore) (*AssetScanner, *recordingPublisher) {
	t.Helper()
	catalog, err := LoadSystemCatalog()
	require.NoError(t, err)
	events := &recordingPublisher{}
	return NewAssetScanner(store, catalog, 5, events, nil), events
}

func TestLoadSystemCatalog(t *testing.T) {
	catalog, err := LoadSystemCatalog()
	require.NoError(t, err)
	entries := catalog.Entries()
	require.NotEmpty(t, entries)
	assert.NotEmpty(t, catalog.NegativePrompt)

	seen := map[string]bool{}
	for _, entry := range entries {
		assert.NotEmpty(t, entry.ID)
		assert.NotEmpty(t, entry.Prompt, entry.ID)
		assert.Contains(t, []string{"game_cover", "tool_cover", "world_cover"}, entry.AssetType)
		assert.False(t, seen[entry.ID], "duplicate catalog id %s", entry.ID)
		seen[entry.ID] = true
	}
}

func TestAssetScanner_SystemIsIdempotent(t *testing.T) {
	store := newMemAssetStore(0)
	scanner, events := testScanner(t, store)
	total := len(scanner.Catalog.Entries())

	first, err := scanner.Scan(context.Background(), " System ")
	require.NoError(t, err)
	assert.Equal(t, ScanModeSystem, first.Mode)
	assert.Equal(t, total, first.Scanned)
	assert.Equal(t, total, first.Queued)

	second, err := scanner.Scan(context.Background(), "system")
	require.NoError(t, err)
	assert.Equal(t, total, second.Scanned)
	assert.Zero(t, second.Queued)
	assert.Len(t, store.assets, total)
	assert.Len(t, events.events, 2)

	for _, asset := range store.assets {
		var meta map[string]any
		require.NoError(t, json.Unmarshal(asset.Metadata, &meta))
		assert.Equal(t, AssetStatusPending, meta["status"])
		assert.Equal(t, "system_catalog", meta["source"])
	}
}

func TestAssetScanner_LessonsBatch(t *testing.T) {
	store := newMemAssetStore(12)
	scanner, _ := testScanner(t, store)
	var bound int
	scanner.Intn = func(n int) int {
		bound = n
		return 3
	}

	result, err := scanner.Scan(context.Background(), ScanModeLessons)
	require.NoError(t, err)
	assert.Equal(t, 8, bound)
	assert.Equal(t, []int{3}, store.offsets)
	assert.Equal(t, 5, result.Scanned)
	assert.Equal(t, 5, result.Queued)
	assert.Contains(t, result.Message, "offset 3")

	cover, ok := store.assets[LessonCoverAssetID(store.editions[3].EditionID)]
	require.True(t, ok)
	assert.Equal(t, LessonCoverAssetType, cover.AssetType)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(cover.Metadata, &meta))
	assert.Contains(t, meta["prompt"], "Year 4 mathematics lesson about topic 3")
}

func TestAssetScanner_SmallLibraryStartsAtZero(t *testing.T) {
	store := newMemAssetStore(3)
	scanner, _ := testScanner(t, store)
	scanner.Intn = func(int) int {
		t.Fatal("offset should not be randomised")
		return 0
	}

	result, err := scanner.Scan(context.Background(), ScanModeLessons)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, store.offsets)
	assert.Equal(t, 3, result.Queued)
}

func TestAssetScanner_EmptyLibrary(t *testing.T) {
	scanner, _ := testScanner(t, newMemAssetStore(0))
	result, err := scanner.Scan(context.Background(), ScanModeLessons)
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Equal(t, "No lesson editions to scan.", result.Message)
}

func TestAssetScanner_InvalidMode(t *testing.T) {
	scanner, events := testScanner(t, newMemAssetStore(0))
	_, err := scanner.Scan(context.Background(), "everything")
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, serr.Status)
	assert.Empty(t, events.events)
}
