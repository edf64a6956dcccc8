package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompts_Contract(t *testing.T) {
	prompts := BuildPrompts(PromptVars{
		JobID:     "job-1",
		Subject:   "Mathematics",
		YearLevel: 3,
		Topic:     "Fractions",
		Country:   "GB",
		Locale:    "en-GB",
	})

	assert.Contains(t, prompts.System, "exactly 10 questions")
	assert.Contains(t, prompts.System, "exactly 3 assets")
	assert.Contains(t, prompts.System, "Use en-GB spelling")
	assert.Contains(t, prompts.System, "pounds and pence")
	assert.Contains(t, prompts.System, "Religion and politics")
	assert.Contains(t, prompts.User, "Fractions")
	assert.Contains(t, prompts.User, "Mathematics")
}

func TestBuildPrompts_Deterministic(t *testing.T) {
	vars := PromptVars{
		Subject:      "Science",
		YearLevel:    5,
		Strand:       "Earth and space",
		Topic:        "The water cycle",
		Country:      "AU",
		Continuation: &ContinuationUnit{PreviousTitle: "Clouds", UnitIndex: 2, UnitCount: 4},
	}
	first := BuildPrompts(vars)
	second := BuildPrompts(vars)
	assert.Equal(t, first, second)
	assert.Contains(t, first.User, "Clouds")
}
