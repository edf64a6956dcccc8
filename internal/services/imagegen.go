package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/logger"
	"brightsteps-backend-go/internal/models"
)

var errImageGenNotConfigured = ServiceError{Status: http.StatusInternalServerError, Message: "Image generation is not configured (set COMFYUI_BASE_URL)"}

type ImageAssetStore interface {
	GetAsset(ctx context.Context, assetID string) (models.Asset, error)
	MarkAssetReady(ctx context.Context, assetID, uri string, metadata []byte) error
}

type GeneratedImage struct {
	AssetID string `json:"asset_id"`
	URI     string `json:"uri"`
	Image   string `json:"image"`
}

// ImageGenerator renders one asset through a Forge/ComfyUI-compatible
// txt2img endpoint behind Cloudflare Access.
type ImageGenerator struct {
	Cfg       config.ImageGenConfig
	HTTP      *http.Client
	Store     ImageAssetStore
	MediaPath string
	Events    EventPublisher
	Log       *logger.Logger
}

func NewImageGenerator(cfg config.ImageGenConfig, store ImageAssetStore, mediaPath string, events EventPublisher, log *logger.Logger) *ImageGenerator {
	if log == nil {
		log = logger.Nop()
	}
	return &ImageGenerator{
		Cfg:       cfg,
		HTTP:      &http.Client{},
		Store:     store,
		MediaPath: mediaPath,
		Events:    events,
		Log:       log.With("service", "image_generator"),
	}
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	CfgScale       float64 `json:"cfg_scale"`
	SamplerName    string  `json:"sampler_name"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

type assetPromptMeta struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
}

func (g *ImageGenerator) Generate(ctx context.Context, assetID string) (GeneratedImage, error) {
	if g.Cfg.BaseURL == "" {
		return GeneratedImage{}, errImageGenNotConfigured
	}
	asset, err := g.Store.GetAsset(ctx, assetID)
	if err != nil {
		return GeneratedImage{}, err
	}

	meta := map[string]any{}
	if len(asset.Metadata) > 0 {
		_ = json.Unmarshal(asset.Metadata, &meta)
	}
	var prompts assetPromptMeta
	if len(asset.Metadata) > 0 {
		_ = json.Unmarshal(asset.Metadata, &prompts)
	}
	prompt := firstNonEmpty(prompts.Prompt, asset.AltText)
	if prompt == "" {
		return GeneratedImage{}, ErrBadRequest("asset has no prompt")
	}

	encoded, err := g.txt2img(ctx, txt2imgRequest{
		Prompt:         prompt,
		NegativePrompt: prompts.NegativePrompt,
		Steps:          24,
		Width:          768,
		Height:         768,
		CfgScale:       6,
		SamplerName:    "DPM++ 2M Karras",
	})
	if err != nil {
		g.Log.Warn("image generation failed", "asset_id", assetID, "error", err)
		return GeneratedImage{}, ErrUpstream(err)
	}
	data, err := base64.StdEncoding.DecodeString(stripDataURL(encoded))
	if err != nil {
		return GeneratedImage{}, ErrUpstream(fmt.Errorf("image API returned invalid base64: %w", err))
	}

	_, sum, err := SaveGeneratedImage(g.MediaPath, assetID, data)
	if err != nil {
		return GeneratedImage{}, WrapError(err, "save generated image")
	}
	uri := BuildGeneratedURL(assetID)
	meta["status"] = AssetStatusReady
	meta["sha256"] = sum
	meta["size_bytes"] = len(data)
	meta["generated_at"] = time.Now().UTC().Format(time.RFC3339)
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return GeneratedImage{}, err
	}
	if err := g.Store.MarkAssetReady(ctx, assetID, uri, rawMeta); err != nil {
		return GeneratedImage{}, stepError("update asset", err)
	}

	g.Log.Info("asset image generated", "asset_id", assetID, "bytes", len(data))
	publish(g.Events, EventAssetGenerated, map[string]any{"asset_id": assetID, "uri": uri})
	return GeneratedImage{AssetID: assetID, URI: uri, Image: encoded}, nil
}

func (g *ImageGenerator) txt2img(ctx context.Context, payload txt2imgRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var image string
	err = ImagePolicy(g.Cfg).Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Cfg.BaseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		setAccessHeaders(req, g.Cfg)
		resp, err := g.HTTP.Do(req)
		if err != nil {
			return err
		}
		raw, err := readResponse("image API", resp)
		if err != nil {
			return err
		}
		var decoded txt2imgResponse
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("image API returned invalid JSON: %w", err)
		}
		if len(decoded.Images) == 0 || decoded.Images[0] == "" {
			return errors.New("image API returned no images")
		}
		image = decoded.Images[0]
		return nil
	})
	return image, err
}

func setAccessHeaders(req *http.Request, cfg config.ImageGenConfig) {
	if cfg.AccessClientID != "" && cfg.AccessClientSecret != "" {
		req.Header.Set("CF-Access-Client-Id", cfg.AccessClientID)
		req.Header.Set("CF-Access-Client-Secret", cfg.AccessClientSecret)
	}
}

func stripDataURL(value string) string {
	if idx := strings.Index(value, ";base64,"); idx >= 0 && strings.HasPrefix(value, "data:") {
		return value[idx+len(";base64,"):]
	}
	return value
}
