package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"brightsteps-backend-go/internal/models"
)

const maxAssetJobsPerLesson = LessonAssetCount

// LessonTx is one write session over the lesson tables. Every method runs
// inside the transaction opened by LessonStore.InLessonTx.
type LessonTx interface {
	UpsertTemplate(ctx context.Context, template models.LessonTemplate) error
	UpsertEdition(ctx context.Context, edition models.LessonEdition) error
	// ReplaceContentItems swaps the edition's item set in one statement
	// batch. Pedagogy and gamification rows cascade with the old items.
	ReplaceContentItems(ctx context.Context, editionID string, items []models.LessonContentItem) error
	InsertPedagogy(ctx context.Context, rows []models.ContentItemPedagogy) error
	InsertGamification(ctx context.Context, rows []models.ContentItemGamification) error
	// ReplaceQueuedAssetJobs drops the edition's still-queued jobs and
	// inserts jobs. Jobs a worker already advanced are left alone.
	ReplaceQueuedAssetJobs(ctx context.Context, editionID string, jobs []models.LessonAssetJob) error
}

type LessonStore interface {
	// InLessonTx runs fn in a transaction that holds an exclusive lock on
	// editionID. Returning an error rolls back every write made by fn.
	InLessonTx(ctx context.Context, editionID string, fn func(tx LessonTx) error) error
}

// WriteInput is one validated lesson plus the job that produced it.
type WriteInput struct {
	Vars    PromptVars
	Lesson  Lesson
	Wrapper map[string]any
}

type WriteResult struct {
	EditionID    string
	TemplateID   string
	Title        string
	Questions    int
	AssetsQueued int
}

// LessonRows are the rows projected from one lesson.
type LessonRows struct {
	Template     models.LessonTemplate
	Edition      models.LessonEdition
	Items        []models.LessonContentItem
	Pedagogy     []models.ContentItemPedagogy
	Gamification []models.ContentItemGamification
	AssetJobs    []models.LessonAssetJob
}

type LessonWriter struct {
	Store LessonStore
	NewID func() string
}

func NewLessonWriter(store LessonStore) *LessonWriter {
	return &LessonWriter{Store: store, NewID: uuid.NewString}
}

// Write projects the lesson into rows and stores them in order: template,
// edition, content items, annotations, asset jobs. A failed step rolls the
// whole write back and is reported as "<step> failed: <cause>".
func (w *LessonWriter) Write(ctx context.Context, input WriteInput) (WriteResult, error) {
	newID := w.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	rows, err := DeriveLessonRows(input, newID)
	if err != nil {
		return WriteResult{}, err
	}

	err = w.Store.InLessonTx(ctx, rows.Edition.EditionID, func(tx LessonTx) error {
		if err := tx.UpsertTemplate(ctx, rows.Template); err != nil {
			return stepError("upsert template", err)
		}
		if err := tx.UpsertEdition(ctx, rows.Edition); err != nil {
			return stepError("upsert edition", err)
		}
		if err := tx.ReplaceContentItems(ctx, rows.Edition.EditionID, rows.Items); err != nil {
			return stepError("replace content items", err)
		}
		if len(rows.Pedagogy) > 0 {
			if err := tx.InsertPedagogy(ctx, rows.Pedagogy); err != nil {
				return stepError("insert pedagogy", err)
			}
		}
		if len(rows.Gamification) > 0 {
			if err := tx.InsertGamification(ctx, rows.Gamification); err != nil {
				return stepError("insert gamification", err)
			}
		}
		if err := tx.ReplaceQueuedAssetJobs(ctx, rows.Edition.EditionID, rows.AssetJobs); err != nil {
			return stepError("queue asset jobs", err)
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}

	return WriteResult{
		EditionID:    rows.Edition.EditionID,
		TemplateID:   rows.Template.TemplateID,
		Title:        rows.Edition.Title,
		Questions:    len(input.Lesson.Questions),
		AssetsQueued: len(rows.AssetJobs),
	}, nil
}

// DeriveLessonRows is the pure projection behind Write.
func DeriveLessonRows(input WriteInput, newID func() string) (LessonRows, error) {
	vars := input.Vars
	lesson := input.Lesson

	subject := firstNonEmpty(vars.Subject, lesson.Meta.Subject)
	topic := firstNonEmpty(vars.Topic, lesson.Meta.Topic)
	// The requested year keys the rows; meta.year_level is model output and
	// year 0 is a real level.
	year := vars.YearLevel
	if subject == "" || topic == "" {
		return LessonRows{}, ErrBadRequest("subject and topic are required")
	}

	profile, ok := CountryProfileFor(vars.Country)
	if !ok {
		return LessonRows{}, ErrBadRequest(fmt.Sprintf("unsupported country %q", vars.Country))
	}

	templateID := TemplateID(subject, year, topic)
	editionID := EditionID(templateID, profile.Code)
	title := firstNonEmpty(lesson.Narrative.Intro.Title, topic)

	wrapper, err := json.Marshal(input.Wrapper)
	if err != nil {
		return LessonRows{}, fmt.Errorf("encode wrapper: %w", err)
	}
	tags, err := json.Marshal(CleanTags(append(append([]string{}, lesson.Meta.Tags...), topic, vars.Strand, vars.Subtopic)))
	if err != nil {
		return LessonRows{}, err
	}

	rows := LessonRows{
		Template: models.LessonTemplate{
			TemplateID:    templateID,
			SubjectID:     Slugify(subject),
			YearLevel:     year,
			Title:         title,
			Topic:         topic,
			CanonicalTags: tags,
		},
		Edition: models.LessonEdition{
			EditionID:    editionID,
			TemplateID:   templateID,
			CountryCode:  profile.Code,
			LocaleCode:   profile.Locale,
			CurriculumID: profile.Curriculum,
			Title:        title,
			WrapperJSON:  wrapper,
		},
	}

	intro, err := json.Marshal(map[string]any{
		"title":         lesson.Narrative.Intro.Title,
		"text":          lesson.Narrative.Intro.Text,
		"learning_goal": lesson.LearningGoal,
	})
	if err != nil {
		return LessonRows{}, err
	}
	rows.Items = append(rows.Items, models.LessonContentItem{
		ContentID:     IntroContentID(editionID),
		EditionID:     editionID,
		ActivityOrder: IntroOrder,
		Phase:         string(PhaseHook),
		Type:          string(ItemLearn),
		Title:         firstNonEmpty(lesson.Narrative.Intro.Title, "Introduction"),
		ContentJSON:   intro,
	})

	for _, q := range lesson.Questions {
		if q.Index <= IntroOrder || q.Index >= OutroOrder {
			return LessonRows{}, ErrInvalidOutput(fmt.Sprintf("question index %d is outside 1..%d", q.Index, OutroOrder-1), "", nil)
		}
		itemType, ok := ItemTypeFor(q.Format)
		if !ok {
			return LessonRows{}, ErrInvalidOutput(fmt.Sprintf("unknown question format %q", q.Format), "", nil)
		}
		contentID := QuestionContentID(editionID, q.Index)
		content := q.Raw
		if len(content) == 0 {
			if content, err = json.Marshal(q); err != nil {
				return LessonRows{}, err
			}
		}
		rows.Items = append(rows.Items, models.LessonContentItem{
			ContentID:     contentID,
			EditionID:     editionID,
			ActivityOrder: q.Index,
			Phase:         string(lesson.PacingPlan.PhaseFor(q.Index)),
			Type:          string(itemType),
			Title:         firstNonEmpty(truncateRunes(q.Prompt, 120), fmt.Sprintf("Question %d", q.Index)),
			ContentJSON:   content,
		})

		if q.HasPedagogy() {
			objectives, err := json.Marshal(nonNilStrings(q.Objectives))
			if err != nil {
				return LessonRows{}, err
			}
			rows.Pedagogy = append(rows.Pedagogy, models.ContentItemPedagogy{
				ContentID:       contentID,
				FeedbackJSON:    jsonOrEmptyObject(q.Feedback),
				ScaffoldingJSON: jsonOrEmptyObject(q.Scaffolding),
				Objectives:      objectives,
			})
		}
		if q.HasGamification() {
			reward, visual := splitGamification(q.Gamification)
			rows.Gamification = append(rows.Gamification, models.ContentItemGamification{
				ContentID:  contentID,
				RewardJSON: reward,
				VisualJSON: visual,
			})
		}
	}

	outro, err := json.Marshal(map[string]any{
		"title": lesson.Narrative.Outro.Title,
		"text":  lesson.Narrative.Outro.Text,
	})
	if err != nil {
		return LessonRows{}, err
	}
	rows.Items = append(rows.Items, models.LessonContentItem{
		ContentID:     OutroContentID(editionID),
		EditionID:     editionID,
		ActivityOrder: OutroOrder,
		Phase:         string(PhaseChallenge),
		Type:          string(ItemLearn),
		Title:         firstNonEmpty(lesson.Narrative.Outro.Title, "Well done"),
		ContentJSON:   outro,
	})

	for _, asset := range lesson.AssetPlan {
		if len(rows.AssetJobs) == maxAssetJobsPerLesson {
			break
		}
		imageType, ok := ImageTypeFor(asset.Type)
		if !ok {
			return LessonRows{}, ErrInvalidOutput(fmt.Sprintf("unknown asset type %q", asset.Type), "", nil)
		}
		rows.AssetJobs = append(rows.AssetJobs, models.LessonAssetJob{
			JobID:           newID(),
			EditionID:       editionID,
			ImageType:       string(imageType),
			Prompt:          strings.TrimSpace(asset.Prompt),
			NegativePrompt:  strings.TrimSpace(asset.NegativePrompt),
			ComfyUIWorkflow: workflowByImage[imageType],
			Status:          AssetJobQueued,
			TargetContentID: editionID + targetSuffixByImage[imageType],
		})
	}
	return rows, nil
}

const AssetJobQueued = "queued"

func splitGamification(raw json.RawMessage) (reward, visual json.RawMessage) {
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return jsonOrEmptyObject(raw), json.RawMessage("{}")
	}
	reward, hasReward := parts["reward"]
	visual, hasVisual := parts["visual"]
	if !hasReward && !hasVisual {
		return raw, json.RawMessage("{}")
	}
	return wrapScalar(reward), wrapScalar(visual)
}

// wrapScalar keeps objects as they are and boxes anything else under "value".
func wrapScalar(raw json.RawMessage) json.RawMessage {
	if !hasJSONData(raw) {
		return json.RawMessage("{}")
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		return raw
	}
	return json.RawMessage(`{"value":` + trimmed + `}`)
}

func jsonOrEmptyObject(raw json.RawMessage) json.RawMessage {
	if !hasJSONData(raw) {
		return json.RawMessage("{}")
	}
	return raw
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
