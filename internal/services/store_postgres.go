package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"brightsteps-backend-go/internal/models"
)

// PostgresLessonStore writes lessons through sqlx. Each write session takes
// a transaction-scoped advisory lock keyed by the edition id, so two runs for
// the same edition never interleave their delete and insert steps.
type PostgresLessonStore struct {
	DB *sqlx.DB
}

func NewPostgresLessonStore(db *sqlx.DB) *PostgresLessonStore {
	return &PostgresLessonStore{DB: db}
}

func (s *PostgresLessonStore) InLessonTx(ctx context.Context, editionID string, fn func(tx LessonTx) error) (err error) {
	tx, err := s.DB.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, editionID); err != nil {
		return stepError("lock edition", err)
	}
	if err = fn(&pgLessonTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return stepError("commit", err)
	}
	return nil
}

// DeleteEdition removes one edition and, in the same transaction, its
// template once no other edition points at it. Content rows cascade.
func (s *PostgresLessonStore) DeleteEdition(ctx context.Context, editionID string) (deleted bool, err error) {
	tx, err := s.DB.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var templateID string
	err = tx.GetContext(ctx, &templateID, `DELETE FROM lesson_editions WHERE edition_id = $1 RETURNING template_id`, editionID)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.Rollback()
		return false, err
	}
	if err != nil {
		return false, stepError("delete edition", err)
	}
	if _, err = tx.ExecContext(ctx, `
DELETE FROM lesson_templates t
WHERE t.template_id = $1
  AND NOT EXISTS (SELECT 1 FROM lesson_editions e WHERE e.template_id = t.template_id)
`, templateID); err != nil {
		return false, stepError("delete orphan template", err)
	}
	if err = tx.Commit(); err != nil {
		return false, stepError("commit", err)
	}
	return true, nil
}

type pgLessonTx struct {
	tx *sqlx.Tx
}

func (t *pgLessonTx) UpsertTemplate(ctx context.Context, tpl models.LessonTemplate) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO lesson_templates (template_id, subject_id, year_level, title, topic, canonical_tags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, now(), now())
ON CONFLICT (template_id) DO UPDATE SET
  subject_id = EXCLUDED.subject_id,
  year_level = EXCLUDED.year_level,
  title = EXCLUDED.title,
  topic = EXCLUDED.topic,
  canonical_tags = EXCLUDED.canonical_tags,
  updated_at = now()
`, tpl.TemplateID, tpl.SubjectID, tpl.YearLevel, tpl.Title, tpl.Topic, string(tpl.CanonicalTags))
	return err
}

func (t *pgLessonTx) UpsertEdition(ctx context.Context, ed models.LessonEdition) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO lesson_editions (edition_id, template_id, country_code, locale_code, curriculum_id, title, wrapper_json, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, now(), now())
ON CONFLICT (edition_id) DO UPDATE SET
  template_id = EXCLUDED.template_id,
  country_code = EXCLUDED.country_code,
  locale_code = EXCLUDED.locale_code,
  curriculum_id = EXCLUDED.curriculum_id,
  title = EXCLUDED.title,
  wrapper_json = EXCLUDED.wrapper_json,
  updated_at = now()
`, ed.EditionID, ed.TemplateID, ed.CountryCode, ed.LocaleCode, ed.CurriculumID, ed.Title, string(ed.WrapperJSON))
	return err
}

func (t *pgLessonTx) ReplaceContentItems(ctx context.Context, editionID string, items []models.LessonContentItem) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM lesson_content_items WHERE edition_id = $1`, editionID); err != nil {
		return err
	}
	for _, item := range items {
		_, err := t.tx.ExecContext(ctx, `
INSERT INTO lesson_content_items (content_id, edition_id, activity_order, phase, type, title, content_json, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, now(), now())
`, item.ContentID, editionID, item.ActivityOrder, item.Phase, item.Type, item.Title, string(item.ContentJSON))
		if err != nil {
			return err
		}
	}
	return nil
}

type pedagogyParams struct {
	ContentID   string `db:"content_id"`
	Feedback    string `db:"feedback_json"`
	Scaffolding string `db:"scaffolding_json"`
	Objectives  string `db:"objectives"`
}

func (t *pgLessonTx) InsertPedagogy(ctx context.Context, rows []models.ContentItemPedagogy) error {
	params := make([]pedagogyParams, 0, len(rows))
	for _, row := range rows {
		params = append(params, pedagogyParams{
			ContentID:   row.ContentID,
			Feedback:    string(row.FeedbackJSON),
			Scaffolding: string(row.ScaffoldingJSON),
			Objectives:  string(row.Objectives),
		})
	}
	_, err := t.tx.NamedExecContext(ctx, `
INSERT INTO content_item_pedagogy (content_id, feedback_json, scaffolding_json, objectives)
VALUES (:content_id, CAST(:feedback_json AS jsonb), CAST(:scaffolding_json AS jsonb), CAST(:objectives AS jsonb))
`, params)
	return err
}

type gamificationParams struct {
	ContentID string `db:"content_id"`
	Reward    string `db:"reward_json"`
	Visual    string `db:"visual_json"`
}

func (t *pgLessonTx) InsertGamification(ctx context.Context, rows []models.ContentItemGamification) error {
	params := make([]gamificationParams, 0, len(rows))
	for _, row := range rows {
		params = append(params, gamificationParams{
			ContentID: row.ContentID,
			Reward:    string(row.RewardJSON),
			Visual:    string(row.VisualJSON),
		})
	}
	_, err := t.tx.NamedExecContext(ctx, `
INSERT INTO content_item_gamification (content_id, reward_json, visual_json)
VALUES (:content_id, CAST(:reward_json AS jsonb), CAST(:visual_json AS jsonb))
`, params)
	return err
}

func (t *pgLessonTx) ReplaceQueuedAssetJobs(ctx context.Context, editionID string, jobs []models.LessonAssetJob) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM lesson_asset_jobs WHERE edition_id = $1 AND status = $2`, editionID, AssetJobQueued); err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `
INSERT INTO lesson_asset_jobs (job_id, edition_id, image_type, prompt, negative_prompt, comfyui_workflow, status, target_content_id, created_at, updated_at)
VALUES (:job_id, :edition_id, :image_type, :prompt, :negative_prompt, :comfyui_workflow, :status, :target_content_id, now(), now())
`, jobs)
	return err
}
