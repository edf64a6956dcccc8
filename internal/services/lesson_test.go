package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacingPlan_PhaseFor(t *testing.T) {
	plan := PacingPlan{
		WarmupIndices:    []int{1},
		CoreIndices:      []int{2, 3},
		ChallengeIndices: []int{4},
		ReflectIndices:   []int{5},
	}
	cases := map[int]Phase{
		1: PhaseHook,
		2: PhaseGuidedPractice,
		3: PhaseGuidedPractice,
		4: PhaseIndependentPractice,
		5: PhaseChallenge,
		6: PhaseIndependentPractice,
	}
	for index, want := range cases {
		assert.Equal(t, want, plan.PhaseFor(index), "index %d", index)
	}
}

func TestItemTypeFor_IsClosed(t *testing.T) {
	for _, format := range QuestionFormats() {
		_, ok := ItemTypeFor(format)
		assert.True(t, ok, format)
	}
	itemType, ok := ItemTypeFor(" Multiple_Choice ")
	require.True(t, ok)
	assert.Equal(t, ItemMultipleChoice, itemType)

	itemType, ok = ItemTypeFor("numeric")
	require.True(t, ok)
	assert.Equal(t, ItemFillBlank, itemType)

	_, ok = ItemTypeFor("drag_and_drop")
	assert.False(t, ok)
}

func TestImageTypeFor_TargetsAndWorkflows(t *testing.T) {
	for _, kind := range AssetKinds() {
		imageType, ok := ImageTypeFor(kind)
		require.True(t, ok, kind)
		assert.NotEmpty(t, targetSuffixByImage[imageType], kind)
		assert.NotEmpty(t, workflowByImage[imageType], kind)
	}
	sticker, _ := ImageTypeFor("abstract_sticker")
	assert.Equal(t, "_outro", targetSuffixByImage[sticker])
	diagram, _ := ImageTypeFor("diagram")
	assert.Equal(t, "_intro", targetSuffixByImage[diagram])

	_, ok := ImageTypeFor("video")
	assert.False(t, ok)
}

func TestCountryProfileFor(t *testing.T) {
	profile, ok := CountryProfileFor("")
	require.True(t, ok)
	assert.Equal(t, CountryProfile{Code: "AU", Locale: "en-AU", Curriculum: "AC_V9"}, profile)

	profile, ok = CountryProfileFor("uk")
	require.True(t, ok)
	assert.Equal(t, "GB", profile.Code)
	assert.Equal(t, "NC_ENG", profile.Curriculum)

	_, ok = CountryProfileFor("FR")
	assert.False(t, ok)
}

func TestLessonIDs(t *testing.T) {
	templateID := TemplateID("Mathematics", 3, "Fractions & Decimals")
	assert.Equal(t, "MATH_Y3_fractions-decimals", templateID)

	editionID := EditionID(templateID, "AU")
	assert.Equal(t, "MATH_Y3_fractions-decimals_AU", editionID)
	assert.Equal(t, editionID+"_intro", IntroContentID(editionID))
	assert.Equal(t, editionID+"_q7", QuestionContentID(editionID, 7))
	assert.Equal(t, editionID+"_outro", OutroContentID(editionID))
}
