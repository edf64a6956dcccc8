package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/models"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nnot-really-a-png")

func TestImageGenerator_Generate(t *testing.T) {
	var got txt2imgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdapi/v1/txt2img", r.URL.Path)
		assert.Equal(t, "client-id", r.Header.Get("CF-Access-Client-Id"))
		assert.Equal(t, "client-secret", r.Header.Get("CF-Access-Client-Secret"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []string{"data:image/png;base64," + base64.StdEncoding.EncodeToString(fakePNG)},
		})
	}))
	defer srv.Close()

	store := newMemAssetStore(0)
	store.assets["game-cover-bubbles"] = models.Asset{
		AssetID:   "game-cover-bubbles",
		AssetType: "game_cover",
		Metadata:  []byte(`{"prompt":"floating bubbles","negative_prompt":"text","status":"pending_generation"}`),
	}
	dir := t.TempDir()
	events := &recordingPublisher{}
	gen := NewImageGenerator(config.ImageGenConfig{
		BaseURL:            srv.URL,
		AccessClientID:     "client-id",
		AccessClientSecret: "client-secret",
		MaxAttempts:        1,
	}, store, dir, events, nil)

	image, err := gen.Generate(context.Background(), "game-cover-bubbles")
	require.NoError(t, err)
	assert.Equal(t, "/api/media/generated/game-cover-bubbles", image.URI)
	assert.Equal(t, "floating bubbles", got.Prompt)
	assert.Equal(t, "text", got.NegativePrompt)

	saved, err := os.ReadFile(GeneratedImagePath(dir, "game-cover-bubbles"))
	require.NoError(t, err)
	assert.Equal(t, fakePNG, saved)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(store.assets["game-cover-bubbles"].Metadata, &meta))
	assert.Equal(t, AssetStatusReady, meta["status"])
	assert.Equal(t, "floating bubbles", meta["prompt"])
	assert.NotEmpty(t, meta["sha256"])
	require.Len(t, events.events, 1)
	assert.Equal(t, EventAssetGenerated, events.events[0].Type)
}

func TestImageGenerator_Errors(t *testing.T) {
	store := newMemAssetStore(0)
	store.assets["blank"] = models.Asset{AssetID: "blank"}

	gen := NewImageGenerator(config.ImageGenConfig{}, store, t.TempDir(), nil, nil)
	_, err := gen.Generate(context.Background(), "blank")
	assert.Equal(t, errImageGenNotConfigured, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad sampler"))
	}))
	defer srv.Close()
	gen.Cfg = config.ImageGenConfig{BaseURL: srv.URL, MaxAttempts: 1}

	_, err = gen.Generate(context.Background(), "missing")
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, serr.Status)

	_, err = gen.Generate(context.Background(), "blank")
	serr, ok = AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "asset has no prompt", serr.Message)

	store.assets["blank"] = models.Asset{AssetID: "blank", AltText: "a red kite"}
	_, err = gen.Generate(context.Background(), "blank")
	serr, ok = AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "image API returned HTTP 400: bad sampler", serr.Message)
	assert.Empty(t, store.ready)
}

func TestSaveGeneratedImage(t *testing.T) {
	dir := t.TempDir()
	path, sum, err := SaveGeneratedImage(dir, "../escape/me", fakePNG)
	require.NoError(t, err)
	assert.Equal(t, GeneratedImagePath(dir, "../escape/me"), path)
	assert.Len(t, sum, 64)
	assert.FileExists(t, path)

	_, _, err = SaveGeneratedImage(dir, "empty", nil)
	assert.Error(t, err)
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "QUJD", stripDataURL("data:image/png;base64,QUJD"))
	assert.Equal(t, "QUJD", stripDataURL("QUJD"))
}
