package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"gopkg.in/yaml.v3"

	"brightsteps-backend-go/internal/logger"
	"brightsteps-backend-go/internal/models"
)

//go:embed catalog/system_assets.yaml
var systemAssetsYAML []byte

const (
	ScanModeSystem  = "system"
	ScanModeLessons = "lessons"

	AssetStatusPending = "pending_generation"
	AssetStatusReady   = "ready"

	LessonCoverAssetType = "lesson_cover"
)

type CatalogEntry struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Prompt    string `yaml:"prompt"`
	AssetType string `yaml:"-"`
}

type SystemCatalog struct {
	NegativePrompt string         `yaml:"negative_prompt"`
	GameCovers     []CatalogEntry `yaml:"game_cover"`
	ToolCovers     []CatalogEntry `yaml:"tool_cover"`
	WorldCovers    []CatalogEntry `yaml:"world_cover"`
}

// Entries flattens the catalog in a stable order, tagging each entry with
// its asset type.
func (c SystemCatalog) Entries() []CatalogEntry {
	var out []CatalogEntry
	for _, group := range []struct {
		assetType string
		entries   []CatalogEntry
	}{
		{"game_cover", c.GameCovers},
		{"tool_cover", c.ToolCovers},
		{"world_cover", c.WorldCovers},
	} {
		for _, entry := range group.entries {
			entry.AssetType = group.assetType
			out = append(out, entry)
		}
	}
	return out
}

func LoadSystemCatalog() (SystemCatalog, error) {
	var catalog SystemCatalog
	if err := yaml.Unmarshal(systemAssetsYAML, &catalog); err != nil {
		return SystemCatalog{}, fmt.Errorf("parse system asset catalog: %w", err)
	}
	return catalog, nil
}

// EditionContext is an edition joined with its template, enough to describe
// a cover image.
type EditionContext struct {
	EditionID string `db:"edition_id"`
	Title     string `db:"title"`
	SubjectID string `db:"subject_id"`
	Topic     string `db:"topic"`
	YearLevel int    `db:"year_level"`
}

type AssetStore interface {
	CountEditions(ctx context.Context) (int, error)
	EditionBatch(ctx context.Context, offset, limit int) ([]EditionContext, error)
	// InsertPlaceholder inserts asset unless its id exists and reports
	// whether a row was created.
	InsertPlaceholder(ctx context.Context, asset models.Asset) (bool, error)
}

type ScanResult struct {
	Mode    string `json:"mode"`
	Scanned int    `json:"scanned"`
	Queued  int    `json:"queued"`
	Message string `json:"message"`
}

type AssetScanner struct {
	Store     AssetStore
	Catalog   SystemCatalog
	BatchSize int
	Events    EventPublisher
	Log       *logger.Logger
	// Intn picks the batch offset; tests pin it.
	Intn func(n int) int
}

func NewAssetScanner(store AssetStore, catalog SystemCatalog, batchSize int, events EventPublisher, log *logger.Logger) *AssetScanner {
	if log == nil {
		log = logger.Nop()
	}
	return &AssetScanner{
		Store:     store,
		Catalog:   catalog,
		BatchSize: batchSize,
		Events:    events,
		Log:       log.With("service", "asset_scanner"),
		Intn:      rand.Intn,
	}
}

// Scan creates placeholder rows for missing assets. It never overwrites an
// existing asset and processes one asset at a time.
func (s *AssetScanner) Scan(ctx context.Context, mode string) (ScanResult, error) {
	var (
		result ScanResult
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ScanModeSystem:
		result, err = s.scanSystem(ctx)
	case ScanModeLessons:
		result, err = s.scanLessons(ctx)
	default:
		return ScanResult{}, ErrBadRequest(fmt.Sprintf("mode must be %q or %q", ScanModeSystem, ScanModeLessons))
	}
	if err != nil {
		return ScanResult{}, err
	}
	s.Log.Info("asset scan finished", "mode", result.Mode, "scanned", result.Scanned, "queued", result.Queued)
	publish(s.Events, EventAssetsScanned, result)
	return result, nil
}

func (s *AssetScanner) scanSystem(ctx context.Context) (ScanResult, error) {
	result := ScanResult{Mode: ScanModeSystem}
	for _, entry := range s.Catalog.Entries() {
		result.Scanned++
		asset, err := placeholderAsset(entry.ID, entry.AssetType, entry.Title+" cover", map[string]any{
			"prompt":          entry.Prompt,
			"negative_prompt": s.Catalog.NegativePrompt,
			"source":          "system_catalog",
			"title":           entry.Title,
		})
		if err != nil {
			return ScanResult{}, err
		}
		inserted, err := s.Store.InsertPlaceholder(ctx, asset)
		if err != nil {
			return ScanResult{}, stepError("insert asset "+entry.ID, err)
		}
		if inserted {
			result.Queued++
		}
	}
	result.Message = fmt.Sprintf("Scanned %d system assets, queued %d new placeholders.", result.Scanned, result.Queued)
	return result, nil
}

func (s *AssetScanner) scanLessons(ctx context.Context) (ScanResult, error) {
	result := ScanResult{Mode: ScanModeLessons}
	total, err := s.Store.CountEditions(ctx)
	if err != nil {
		return ScanResult{}, stepError("count editions", err)
	}
	if total == 0 {
		result.Message = "No lesson editions to scan."
		return result, nil
	}

	batch := s.BatchSize
	if batch <= 0 {
		batch = 25
	}
	offset := 0
	if total > batch {
		intn := s.Intn
		if intn == nil {
			intn = rand.Intn
		}
		offset = intn(total - batch + 1)
	}

	editions, err := s.Store.EditionBatch(ctx, offset, batch)
	if err != nil {
		return ScanResult{}, stepError("load editions", err)
	}
	for _, ed := range editions {
		result.Scanned++
		assetID := LessonCoverAssetID(ed.EditionID)
		asset, err := placeholderAsset(assetID, LessonCoverAssetType, "Cover image for "+ed.Title, map[string]any{
			"prompt":          lessonCoverPrompt(ed),
			"negative_prompt": s.Catalog.NegativePrompt,
			"source":          "lesson_scan",
			"edition_id":      ed.EditionID,
		})
		if err != nil {
			return ScanResult{}, err
		}
		inserted, err := s.Store.InsertPlaceholder(ctx, asset)
		if err != nil {
			return ScanResult{}, stepError("insert asset "+assetID, err)
		}
		if inserted {
			result.Queued++
		}
	}
	result.Message = fmt.Sprintf("Scanned %d of %d lesson editions (offset %d), queued %d new placeholders.", result.Scanned, total, offset, result.Queued)
	return result, nil
}

func LessonCoverAssetID(editionID string) string {
	return "lesson-cover-" + editionID
}

func lessonCoverPrompt(ed EditionContext) string {
	subject := strings.ReplaceAll(firstNonEmpty(ed.SubjectID, "learning"), "-", " ")
	topic := firstNonEmpty(ed.Topic, ed.Title)
	return fmt.Sprintf("friendly flat illustration for a Year %d %s lesson about %s, bright colours, rounded shapes, no text, child friendly", ed.YearLevel, subject, topic)
}

func placeholderAsset(id, assetType, alt string, meta map[string]any) (models.Asset, error) {
	meta["status"] = AssetStatusPending
	raw, err := json.Marshal(meta)
	if err != nil {
		return models.Asset{}, err
	}
	return models.Asset{AssetID: id, AssetType: assetType, AltText: alt, Metadata: raw}, nil
}
