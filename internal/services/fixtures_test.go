package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sampleLessonJSON renders a lesson that honours the generation contract
// when questions is 10.
func sampleLessonJSON(questions int) string {
	items := make([]string, 0, questions)
	for i := 1; i <= questions; i++ {
		format := "fill_blank"
		options := ""
		if i%2 == 1 {
			format = "multiple_choice"
			options = `,"options":["1/2","1/3","1/4"]`
		}
		items = append(items, fmt.Sprintf(`{
  "index": %d,
  "format": %q,
  "prompt": "Question %d about fractions",
  "answer": "1/2"%s,
  "feedback": {"correct": "Great work!", "incorrect": "Try halving the shape."},
  "scaffolding": {"hint": "Count the equal parts."},
  "objectives": ["identify halves"],
  "gamification": {"reward": {"stars": 1}, "visual": "sparkle"}
}`, i, format, i, options))
	}
	warmup, core, challenge, reflect := []int{}, []int{}, []int{}, []int{}
	for i := 1; i <= questions; i++ {
		switch {
		case i <= 2:
			warmup = append(warmup, i)
		case i <= 6:
			core = append(core, i)
		case i <= 9:
			challenge = append(challenge, i)
		default:
			reflect = append(reflect, i)
		}
	}
	pacing, _ := json.Marshal(map[string][]int{
		"warmup_indices":    warmup,
		"core_indices":      core,
		"challenge_indices": challenge,
		"reflect_indices":   reflect,
	})
	return fmt.Sprintf(`{
  "meta": {"subject": "Mathematics", "year_level": 3, "topic": "Fractions", "tags": ["Halves", "fractions"]},
  "narrative": {
    "intro": {"title": "Pizza Fractions", "text": "Let's share a pizza fairly."},
    "outro": {"title": "Fraction Champion", "text": "You can split things into equal parts."}
  },
  "learning_goal": "Recognise halves, thirds and quarters.",
  "pacing_plan": %s,
  "questions": [%s],
  "asset_plan": [
    {"type": "diagram", "prompt": "a pizza cut into quarters", "alt_text": "pizza"},
    {"type": "diagram", "prompt": "a chocolate bar split into thirds"},
    {"type": "abstract_sticker", "prompt": "a smiling star", "negative_prompt": "text"}
  ]
}`, pacing, strings.Join(items, ","))
}

func sampleLessonObject(t *testing.T, questions int) map[string]any {
	t.Helper()
	obj := ExtractJSON(sampleLessonJSON(questions))
	require.NotNil(t, obj)
	return obj
}

func sampleWriteInput(t *testing.T, questions int) WriteInput {
	t.Helper()
	obj := sampleLessonObject(t, questions)
	lesson, err := DecodeLesson(obj)
	require.NoError(t, err)
	return WriteInput{
		Vars:    PromptVars{Subject: "Mathematics", YearLevel: 3, Topic: "Fractions", Country: "AU"},
		Lesson:  lesson,
		Wrapper: obj,
	}
}
