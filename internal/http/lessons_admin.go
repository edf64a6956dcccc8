package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"brightsteps-backend-go/internal/models"
	"brightsteps-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type LessonSummary struct {
	EditionID   string    `json:"editionId"`
	TemplateID  string    `json:"templateId"`
	Title       string    `json:"title"`
	SubjectID   string    `json:"subjectId"`
	YearLevel   int       `json:"yearLevel"`
	Topic       string    `json:"topic"`
	CountryCode string    `json:"countryCode"`
	LocaleCode  string    `json:"localeCode"`
	ItemCount   int       `json:"itemCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type LessonListResponse struct {
	Items    []LessonSummary `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

type ContentItemDTO struct {
	ContentID     string          `json:"contentId"`
	ActivityOrder int             `json:"activityOrder"`
	Phase         string          `json:"phase"`
	Type          string          `json:"type"`
	Title         string          `json:"title"`
	Content       json.RawMessage `json:"content"`
	Pedagogy      json.RawMessage `json:"pedagogy,omitempty"`
	Gamification  json.RawMessage `json:"gamification,omitempty"`
}

type LessonDetailResponse struct {
	LessonSummary
	CurriculumID string           `json:"curriculumId"`
	Wrapper      json.RawMessage  `json:"wrapper,omitempty"`
	Items        []ContentItemDTO `json:"items"`
	AssetJobs    []AssetJobDTO    `json:"assetJobs,omitempty"`
}

type AssetJobDTO struct {
	JobID           string    `json:"jobId"`
	EditionID       string    `json:"editionId"`
	ImageType       string    `json:"imageType"`
	Prompt          string    `json:"prompt"`
	NegativePrompt  string    `json:"negativePrompt,omitempty"`
	Workflow        string    `json:"workflow"`
	Status          string    `json:"status"`
	TargetContentID string    `json:"targetContentId"`
	CreatedAt       time.Time `json:"createdAt"`
}

type UpdateContentItemRequest struct {
	Title   *string         `json:"title"`
	Content json.RawMessage `json:"content"`
}

type lessonFilter struct {
	where string
	args  []interface{}
}

// buildLessonFilter turns the subject/year/country/search query params into
// a WHERE clause over lesson_editions e JOIN lesson_templates t.
func buildLessonFilter(r *http.Request) lessonFilter {
	query := r.URL.Query()
	clauses := []string{}
	args := []interface{}{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if subject := strings.TrimSpace(query.Get("subject")); subject != "" {
		add("t.subject_id = $%d", services.Slugify(subject))
	}
	if year := strings.TrimSpace(query.Get("year")); year != "" {
		add("t.year_level = $%d", parseInt(year, 0))
	}
	if country := strings.TrimSpace(query.Get("country")); country != "" {
		add("e.country_code = $%d", strings.ToUpper(country))
	}
	if search := services.CleanSearchTerm(query.Get("search")); search != "" {
		add("(lower(e.title) LIKE $%d)", "%"+strings.ToLower(search)+"%")
	}
	filter := lessonFilter{args: args}
	if len(clauses) > 0 {
		filter.where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return filter
}

func (s *Server) listLessons(r *http.Request) (LessonListResponse, error) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	pageSize := parseInt(r.URL.Query().Get("pageSize"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	filter := buildLessonFilter(r)

	var total int
	if err := s.DB.GetContext(r.Context(), &total, `
SELECT count(*) FROM lesson_editions e
JOIN lesson_templates t ON t.template_id = e.template_id
`+filter.where, filter.args...); err != nil {
		return LessonListResponse{}, err
	}

	args := append(filter.args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`
SELECT e.edition_id, e.template_id, e.title, t.subject_id, t.year_level, t.topic,
       e.country_code, e.locale_code, e.updated_at,
       (SELECT count(*) FROM lesson_content_items c WHERE c.edition_id = e.edition_id) AS item_count
FROM lesson_editions e
JOIN lesson_templates t ON t.template_id = e.template_id
%s
ORDER BY t.subject_id, t.year_level, e.title
LIMIT $%d OFFSET $%d`, filter.where, len(args)-1, len(args))
	rows := []struct {
		EditionID   string    `db:"edition_id"`
		TemplateID  string    `db:"template_id"`
		Title       string    `db:"title"`
		SubjectID   string    `db:"subject_id"`
		YearLevel   int       `db:"year_level"`
		Topic       string    `db:"topic"`
		CountryCode string    `db:"country_code"`
		LocaleCode  string    `db:"locale_code"`
		UpdatedAt   time.Time `db:"updated_at"`
		ItemCount   int       `db:"item_count"`
	}{}
	if err := s.DB.SelectContext(r.Context(), &rows, query, args...); err != nil {
		return LessonListResponse{}, err
	}
	items := make([]LessonSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, LessonSummary{
			EditionID:   row.EditionID,
			TemplateID:  row.TemplateID,
			Title:       row.Title,
			SubjectID:   row.SubjectID,
			YearLevel:   row.YearLevel,
			Topic:       row.Topic,
			CountryCode: row.CountryCode,
			LocaleCode:  row.LocaleCode,
			ItemCount:   row.ItemCount,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return LessonListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// loadLessonDetail reads one edition with its ordered content items and their
// annotations. It returns sql.ErrNoRows when the edition does not exist.
func (s *Server) loadLessonDetail(r *http.Request, editionID string) (LessonDetailResponse, error) {
	head := struct {
		models.LessonEdition
		SubjectID string `db:"subject_id"`
		YearLevel int    `db:"year_level"`
		Topic     string `db:"topic"`
	}{}
	if err := s.DB.GetContext(r.Context(), &head, `
SELECT e.edition_id, e.template_id, e.country_code, e.locale_code, e.curriculum_id, e.title,
       e.wrapper_json, e.created_at, e.updated_at, t.subject_id, t.year_level, t.topic
FROM lesson_editions e
JOIN lesson_templates t ON t.template_id = e.template_id
WHERE e.edition_id = $1
`, editionID); err != nil {
		return LessonDetailResponse{}, err
	}

	rows := []struct {
		models.LessonContentItem
		Feedback    []byte `db:"feedback_json"`
		Scaffolding []byte `db:"scaffolding_json"`
		Objectives  []byte `db:"objectives"`
		Reward      []byte `db:"reward_json"`
		Visual      []byte `db:"visual_json"`
	}{}
	if err := s.DB.SelectContext(r.Context(), &rows, `
SELECT c.content_id, c.edition_id, c.activity_order, c.phase, c.type, c.title, c.content_json,
       c.created_at, c.updated_at,
       p.feedback_json, p.scaffolding_json, p.objectives,
       g.reward_json, g.visual_json
FROM lesson_content_items c
LEFT JOIN content_item_pedagogy p ON p.content_id = c.content_id
LEFT JOIN content_item_gamification g ON g.content_id = c.content_id
WHERE c.edition_id = $1
ORDER BY c.activity_order
`, editionID); err != nil {
		return LessonDetailResponse{}, err
	}

	items := make([]ContentItemDTO, 0, len(rows))
	for _, row := range rows {
		item := ContentItemDTO{
			ContentID:     row.ContentID,
			ActivityOrder: row.ActivityOrder,
			Phase:         row.Phase,
			Type:          row.Type,
			Title:         row.Title,
			Content:       json.RawMessage(row.ContentJSON),
		}
		if row.Feedback != nil {
			item.Pedagogy = mustObject(map[string]json.RawMessage{
				"feedback":    row.Feedback,
				"scaffolding": row.Scaffolding,
				"objectives":  row.Objectives,
			})
		}
		if row.Reward != nil {
			item.Gamification = mustObject(map[string]json.RawMessage{
				"reward": row.Reward,
				"visual": row.Visual,
			})
		}
		items = append(items, item)
	}

	return LessonDetailResponse{
		LessonSummary: LessonSummary{
			EditionID:   head.EditionID,
			TemplateID:  head.TemplateID,
			Title:       head.Title,
			SubjectID:   head.SubjectID,
			YearLevel:   head.YearLevel,
			Topic:       head.Topic,
			CountryCode: head.CountryCode,
			LocaleCode:  head.LocaleCode,
			ItemCount:   len(items),
			UpdatedAt:   head.UpdatedAt,
		},
		CurriculumID: head.CurriculumID,
		Wrapper:      json.RawMessage(head.WrapperJSON),
		Items:        items,
	}, nil
}

func mustObject(fields map[string]json.RawMessage) json.RawMessage {
	for key, value := range fields {
		if len(value) == 0 {
			fields[key] = json.RawMessage("null")
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return raw
}

func (s *Server) AdminListLessons(w http.ResponseWriter, r *http.Request) {
	resp, err := s.listLessons(r)
	if err != nil {
		s.Log.Error("list lessons failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) AdminLessonDetail(w http.ResponseWriter, r *http.Request) {
	editionID := chi.URLParam(r, "editionId")
	detail, err := s.loadLessonDetail(r, editionID)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	if err != nil {
		s.Log.Error("lesson detail failed", "edition_id", editionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	detail.AssetJobs = s.editionAssetJobs(r.Context(), editionID)
	WriteJSON(w, http.StatusOK, detail)
}

// editionAssetJobs is best effort: the detail view still renders when the
// job lookup fails.
func (s *Server) editionAssetJobs(ctx context.Context, editionID string) []AssetJobDTO {
	jobs, err := s.AssetJobs.EditionAssetJobs(ctx, editionID)
	if err != nil {
		s.Log.Warn("lesson asset jobs failed", "edition_id", editionID, "error", err)
		return nil
	}
	return assetJobDTOs(jobs)
}

func (s *Server) AdminDeleteLesson(w http.ResponseWriter, r *http.Request) {
	editionID := chi.URLParam(r, "editionId")
	deleted, err := s.Editions.DeleteEdition(r.Context(), editionID)
	if err != nil {
		s.Log.Error("lesson delete failed", "edition_id", editionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	s.Log.Info("lesson deleted", "edition_id", editionID, "by", CurrentUserID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) UpdateContentItem(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentId")
	var req UpdateContentItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	var content *string
	if len(req.Content) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(req.Content, &obj); err != nil || obj == nil {
			WriteError(w, http.StatusBadRequest, "content must be a JSON object")
			return
		}
		value := string(req.Content)
		content = &value
	}
	var title *string
	if req.Title != nil {
		value := strings.TrimSpace(*req.Title)
		if value == "" {
			WriteError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		title = &value
	}
	if title == nil && content == nil {
		WriteError(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	result, err := s.DB.ExecContext(r.Context(), `
UPDATE lesson_content_items
SET title = COALESCE($2, title),
    content_json = COALESCE(CAST($3 AS jsonb), content_json),
    updated_at = now()
WHERE content_id = $1
`, contentID, title, content)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "update content item failed: "+err.Error())
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		WriteError(w, http.StatusNotFound, "Content item not found")
		return
	}
	row := models.LessonContentItem{}
	if err := s.DB.GetContext(r.Context(), &row, `
SELECT content_id, edition_id, activity_order, phase, type, title, content_json, created_at, updated_at
FROM lesson_content_items WHERE content_id = $1
`, contentID); err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, ContentItemDTO{
		ContentID:     row.ContentID,
		ActivityOrder: row.ActivityOrder,
		Phase:         row.Phase,
		Type:          row.Type,
		Title:         row.Title,
		Content:       json.RawMessage(row.ContentJSON),
	})
}

func (s *Server) SyncLesson(w http.ResponseWriter, r *http.Request) {
	editionID := chi.URLParam(r, "editionId")
	var wrapper []byte
	if err := s.DB.GetContext(r.Context(), &wrapper, `SELECT wrapper_json FROM lesson_editions WHERE edition_id = $1`, editionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, "Lesson not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	result, err := s.Syncer.SyncEdition(r.Context(), editionID, wrapper)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"path":    result.Path,
		"commit":  result.Commit,
		"created": result.Created,
	})
}

func (s *Server) ListAssetJobs(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	limit := parseInt(r.URL.Query().Get("limit"), 100)
	jobs, err := s.AssetJobs.ListAssetJobs(r.Context(), status, limit)
	if err != nil {
		s.Log.Error("list asset jobs failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": assetJobDTOs(jobs)})
}

func (s *Server) GenerateAssetImage(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")
	result, err := s.Images.Generate(r.Context(), assetID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"asset_id": result.AssetID,
		"uri":      result.URI,
		"image":    result.Image,
	})
}

func assetJobDTOs(jobs []models.LessonAssetJob) []AssetJobDTO {
	out := make([]AssetJobDTO, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, AssetJobDTO{
			JobID:           job.JobID,
			EditionID:       job.EditionID,
			ImageType:       job.ImageType,
			Prompt:          job.Prompt,
			NegativePrompt:  job.NegativePrompt,
			Workflow:        job.ComfyUIWorkflow,
			Status:          job.Status,
			TargetContentID: job.TargetContentID,
			CreatedAt:       job.CreatedAt,
		})
	}
	return out
}
