package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps-backend-go/internal/models"
)

// memLessonStore keeps lesson tables in maps. Each transaction works on a
// copy that is only published on success, mirroring a rollback.
type memLessonStore struct {
	mu     sync.Mutex
	state  memLessonState
	failOn string
	steps  []string
}

type memLessonState struct {
	templates    map[string]models.LessonTemplate
	editions     map[string]models.LessonEdition
	items        map[string]models.LessonContentItem
	pedagogy     map[string]models.ContentItemPedagogy
	gamification map[string]models.ContentItemGamification
	jobs         map[string]models.LessonAssetJob
}

func newMemLessonStore() *memLessonStore {
	return &memLessonStore{state: memLessonState{
		templates:    map[string]models.LessonTemplate{},
		editions:     map[string]models.LessonEdition{},
		items:        map[string]models.LessonContentItem{},
		pedagogy:     map[string]models.ContentItemPedagogy{},
		gamification: map[string]models.ContentItemGamification{},
		jobs:         map[string]models.LessonAssetJob{},
	}}
}

func (s memLessonState) clone() memLessonState {
	out := memLessonState{
		templates:    map[string]models.LessonTemplate{},
		editions:     map[string]models.LessonEdition{},
		items:        map[string]models.LessonContentItem{},
		pedagogy:     map[string]models.ContentItemPedagogy{},
		gamification: map[string]models.ContentItemGamification{},
		jobs:         map[string]models.LessonAssetJob{},
	}
	for k, v := range s.templates {
		out.templates[k] = v
	}
	for k, v := range s.editions {
		out.editions[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.pedagogy {
		out.pedagogy[k] = v
	}
	for k, v := range s.gamification {
		out.gamification[k] = v
	}
	for k, v := range s.jobs {
		out.jobs[k] = v
	}
	return out
}

func (s *memLessonStore) InLessonTx(ctx context.Context, editionID string, fn func(tx LessonTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memLessonTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memLessonStore) contentIDs(editionID string) []string {
	ids := []string{}
	for id, item := range s.state.items {
		if item.EditionID == editionID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type memLessonTx struct {
	store *memLessonStore
	state memLessonState
}

func (t *memLessonTx) step(name string) error {
	t.store.steps = append(t.store.steps, name)
	if t.store.failOn == name {
		return errors.New("connection reset")
	}
	return nil
}

func (t *memLessonTx) UpsertTemplate(ctx context.Context, tpl models.LessonTemplate) error {
	if err := t.step("template"); err != nil {
		return err
	}
	t.state.templates[tpl.TemplateID] = tpl
	return nil
}

func (t *memLessonTx) UpsertEdition(ctx context.Context, ed models.LessonEdition) error {
	if err := t.step("edition"); err != nil {
		return err
	}
	t.state.editions[ed.EditionID] = ed
	return nil
}

func (t *memLessonTx) ReplaceContentItems(ctx context.Context, editionID string, items []models.LessonContentItem) error {
	if err := t.step("items"); err != nil {
		return err
	}
	for id, item := range t.state.items {
		if item.EditionID == editionID {
			delete(t.state.items, id)
			delete(t.state.pedagogy, id)
			delete(t.state.gamification, id)
		}
	}
	for _, item := range items {
		t.state.items[item.ContentID] = item
	}
	return nil
}

func (t *memLessonTx) InsertPedagogy(ctx context.Context, rows []models.ContentItemPedagogy) error {
	if err := t.step("pedagogy"); err != nil {
		return err
	}
	for _, row := range rows {
		t.state.pedagogy[row.ContentID] = row
	}
	return nil
}

func (t *memLessonTx) InsertGamification(ctx context.Context, rows []models.ContentItemGamification) error {
	if err := t.step("gamification"); err != nil {
		return err
	}
	for _, row := range rows {
		t.state.gamification[row.ContentID] = row
	}
	return nil
}

func (t *memLessonTx) ReplaceQueuedAssetJobs(ctx context.Context, editionID string, jobs []models.LessonAssetJob) error {
	if err := t.step("jobs"); err != nil {
		return err
	}
	for id, job := range t.state.jobs {
		if job.EditionID == editionID && job.Status == AssetJobQueued {
			delete(t.state.jobs, id)
		}
	}
	for _, job := range jobs {
		t.state.jobs[job.JobID] = job
	}
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job-%d", n)
	}
}

func TestDeriveLessonRows(t *testing.T) {
	rows, err := DeriveLessonRows(sampleWriteInput(t, LessonQuestionCount), sequentialIDs())
	require.NoError(t, err)

	assert.Equal(t, "MATH_Y3_fractions", rows.Template.TemplateID)
	assert.Equal(t, "mathematics", rows.Template.SubjectID)
	assert.Equal(t, "Pizza Fractions", rows.Template.Title)
	assert.JSONEq(t, `["halves","fractions"]`, string(rows.Template.CanonicalTags))

	ed := rows.Edition
	assert.Equal(t, "MATH_Y3_fractions_AU", ed.EditionID)
	assert.Equal(t, "en-AU", ed.LocaleCode)
	assert.Equal(t, "AC_V9", ed.CurriculumID)

	require.Len(t, rows.Items, LessonQuestionCount+2)
	intro := rows.Items[0]
	assert.Equal(t, "MATH_Y3_fractions_AU_intro", intro.ContentID)
	assert.Equal(t, IntroOrder, intro.ActivityOrder)
	assert.Equal(t, string(PhaseHook), intro.Phase)
	assert.Equal(t, string(ItemLearn), intro.Type)

	q1 := rows.Items[1]
	assert.Equal(t, "MATH_Y3_fractions_AU_q1", q1.ContentID)
	assert.Equal(t, string(ItemMultipleChoice), q1.Type)
	assert.Equal(t, string(PhaseHook), q1.Phase)
	q2 := rows.Items[2]
	assert.Equal(t, string(ItemFillBlank), q2.Type)
	var content map[string]any
	require.NoError(t, json.Unmarshal(q2.ContentJSON, &content))
	assert.Equal(t, "Question 2 about fractions", content["prompt"])
	assert.Equal(t, string(PhaseChallenge), rows.Items[10].Phase)

	outro := rows.Items[len(rows.Items)-1]
	assert.Equal(t, OutroOrder, outro.ActivityOrder)
	assert.Equal(t, string(PhaseChallenge), outro.Phase)

	assert.Len(t, rows.Pedagogy, LessonQuestionCount)
	assert.JSONEq(t, `["identify halves"]`, string(rows.Pedagogy[0].Objectives))
	require.Len(t, rows.Gamification, LessonQuestionCount)
	assert.JSONEq(t, `{"stars":1}`, string(rows.Gamification[0].RewardJSON))
	assert.JSONEq(t, `{"value":"sparkle"}`, string(rows.Gamification[0].VisualJSON))

	require.Len(t, rows.AssetJobs, LessonAssetCount)
	assert.Equal(t, "job-1", rows.AssetJobs[0].JobID)
	assert.Equal(t, string(ImageIllustration), rows.AssetJobs[0].ImageType)
	assert.Equal(t, ed.EditionID+"_intro", rows.AssetJobs[0].TargetContentID)
	sticker := rows.AssetJobs[2]
	assert.Equal(t, string(ImageSticker), sticker.ImageType)
	assert.Equal(t, ed.EditionID+"_outro", sticker.TargetContentID)
	assert.Equal(t, "sticker_flat_v1", sticker.ComfyUIWorkflow)
	assert.Equal(t, AssetJobQueued, sticker.Status)
}

func TestDeriveLessonRows_FoundationYearKeysOnRequest(t *testing.T) {
	input := sampleWriteInput(t, LessonQuestionCount)
	input.Vars.YearLevel = 0
	require.Equal(t, 3, input.Lesson.Meta.YearLevel)

	rows, err := DeriveLessonRows(input, sequentialIDs())
	require.NoError(t, err)
	assert.Equal(t, "MATH_Y0_fractions", rows.Template.TemplateID)
	assert.Equal(t, 0, rows.Template.YearLevel)
	assert.Equal(t, "MATH_Y0_fractions_AU", rows.Edition.EditionID)
	assert.Equal(t, "MATH_Y0_fractions_AU_q1", rows.Items[1].ContentID)
}

func TestDeriveLessonRows_TitleFallsBackToTopic(t *testing.T) {
	input := sampleWriteInput(t, LessonQuestionCount)
	input.Lesson.Narrative.Intro.Title = ""

	rows, err := DeriveLessonRows(input, sequentialIDs())
	require.NoError(t, err)
	assert.Equal(t, "Fractions", rows.Template.Title)
}

func TestDeriveLessonRows_UnknownFormat(t *testing.T) {
	input := sampleWriteInput(t, LessonQuestionCount)
	input.Lesson.Questions[0].Format = "drag_and_drop"

	_, err := DeriveLessonRows(input, sequentialIDs())
	serr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Contains(t, serr.Message, "drag_and_drop")
}

func TestLessonWriter_RerunReplacesContent(t *testing.T) {
	store := newMemLessonStore()
	writer := &LessonWriter{Store: store, NewID: sequentialIDs()}
	ctx := context.Background()

	first, err := writer.Write(ctx, sampleWriteInput(t, LessonQuestionCount))
	require.NoError(t, err)
	assert.Equal(t, LessonQuestionCount, first.Questions)
	assert.Equal(t, LessonAssetCount, first.AssetsQueued)

	second, err := writer.Write(ctx, sampleWriteInput(t, 6))
	require.NoError(t, err)
	assert.Equal(t, first.EditionID, second.EditionID)

	assert.Len(t, store.state.templates, 1)
	assert.Len(t, store.state.editions, 1)
	assert.Len(t, store.state.jobs, LessonAssetCount)

	want := []string{second.EditionID + "_intro", second.EditionID + "_outro"}
	for i := 1; i <= 6; i++ {
		want = append(want, QuestionContentID(second.EditionID, i))
	}
	sort.Strings(want)
	assert.Equal(t, want, store.contentIDs(second.EditionID))
	assert.Len(t, store.state.pedagogy, 6)

	var wrapper map[string]any
	require.NoError(t, json.Unmarshal(store.state.editions[second.EditionID].WrapperJSON, &wrapper))
	assert.Len(t, wrapper["questions"], 6)
}

func TestLessonWriter_FailedStepRollsBack(t *testing.T) {
	store := newMemLessonStore()
	store.failOn = "gamification"
	writer := &LessonWriter{Store: store, NewID: sequentialIDs()}

	_, err := writer.Write(context.Background(), sampleWriteInput(t, LessonQuestionCount))
	require.Error(t, err)
	assert.Equal(t, "insert gamification failed: connection reset", err.Error())
	assert.Equal(t, []string{"template", "edition", "items", "pedagogy", "gamification"}, store.steps)

	assert.Empty(t, store.state.templates)
	assert.Empty(t, store.state.editions)
	assert.Empty(t, store.state.items)
	assert.Empty(t, store.state.jobs)
}

func TestLessonWriter_StepLabels(t *testing.T) {
	cases := map[string]string{
		"template": "upsert template failed: connection reset",
		"edition":  "upsert edition failed: connection reset",
		"items":    "replace content items failed: connection reset",
		"pedagogy": "insert pedagogy failed: connection reset",
		"jobs":     "queue asset jobs failed: connection reset",
	}
	for step, want := range cases {
		store := newMemLessonStore()
		store.failOn = step
		writer := &LessonWriter{Store: store, NewID: sequentialIDs()}
		_, err := writer.Write(context.Background(), sampleWriteInput(t, LessonQuestionCount))
		require.Error(t, err, step)
		assert.Equal(t, want, err.Error(), step)
	}
}
