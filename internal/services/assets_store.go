package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"brightsteps-backend-go/internal/models"
)

type PostgresAssetStore struct {
	DB *sqlx.DB
}

func NewPostgresAssetStore(db *sqlx.DB) *PostgresAssetStore {
	return &PostgresAssetStore{DB: db}
}

func (s *PostgresAssetStore) CountEditions(ctx context.Context) (int, error) {
	var total int
	err := s.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM lesson_editions`)
	return total, err
}

func (s *PostgresAssetStore) EditionBatch(ctx context.Context, offset, limit int) ([]EditionContext, error) {
	rows := []EditionContext{}
	err := s.DB.SelectContext(ctx, &rows, `
SELECT e.edition_id, e.title, t.subject_id, t.topic, t.year_level
FROM lesson_editions e
JOIN lesson_templates t ON t.template_id = e.template_id
ORDER BY e.edition_id
OFFSET $1 LIMIT $2
`, offset, limit)
	return rows, err
}

func (s *PostgresAssetStore) InsertPlaceholder(ctx context.Context, asset models.Asset) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO assets (asset_id, asset_type, uri, alt_text, metadata, created_at, updated_at)
VALUES ($1, $2, '', $3, CAST($4 AS jsonb), now(), now())
ON CONFLICT (asset_id) DO NOTHING
`, asset.AssetID, asset.AssetType, asset.AltText, string(asset.Metadata))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresAssetStore) GetAsset(ctx context.Context, assetID string) (models.Asset, error) {
	var asset models.Asset
	err := s.DB.GetContext(ctx, &asset, `
SELECT asset_id, asset_type, uri, alt_text, metadata, created_at, updated_at
FROM assets WHERE asset_id = $1
`, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrNotFound("asset not found")
	}
	return asset, err
}

func (s *PostgresAssetStore) MarkAssetReady(ctx context.Context, assetID, uri string, metadata []byte) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE assets SET uri = $2, metadata = CAST($3 AS jsonb), updated_at = now()
WHERE asset_id = $1
`, assetID, uri, string(metadata))
	return err
}

func (s *PostgresAssetStore) ListAssetJobs(ctx context.Context, status string, limit int) ([]models.LessonAssetJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	jobs := []models.LessonAssetJob{}
	err := s.DB.SelectContext(ctx, &jobs, `
SELECT job_id, edition_id, image_type, prompt, negative_prompt, comfyui_workflow, status, target_content_id, created_at, updated_at
FROM lesson_asset_jobs
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, job_id
LIMIT $2
`, status, limit)
	return jobs, err
}

func (s *PostgresAssetStore) EditionAssetJobs(ctx context.Context, editionID string) ([]models.LessonAssetJob, error) {
	jobs := []models.LessonAssetJob{}
	err := s.DB.SelectContext(ctx, &jobs, `
SELECT job_id, edition_id, image_type, prompt, negative_prompt, comfyui_workflow, status, target_content_id, created_at, updated_at
FROM lesson_asset_jobs WHERE edition_id = $1 ORDER BY created_at, job_id
`, editionID)
	return jobs, err
}
