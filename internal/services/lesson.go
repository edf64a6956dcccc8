package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Lesson is the typed view of the generated lesson object. The untyped
// object is what gets stored as wrapper_json; this struct only drives the
// derived rows.
type Lesson struct {
	Meta         LessonMeta      `json:"meta"`
	Narrative    Narrative       `json:"narrative"`
	LearningGoal string          `json:"learning_goal"`
	PacingPlan   PacingPlan      `json:"pacing_plan"`
	Questions    []Question      `json:"questions"`
	AssetPlan    []AssetPlanItem `json:"asset_plan"`
}

type LessonMeta struct {
	Subject   string   `json:"subject"`
	YearLevel int      `json:"year_level"`
	Strand    string   `json:"strand"`
	Topic     string   `json:"topic"`
	Subtopic  string   `json:"subtopic"`
	Tags      []string `json:"tags"`
}

type Narrative struct {
	Intro NarrativeSection `json:"intro"`
	Outro NarrativeSection `json:"outro"`
}

type NarrativeSection struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type PacingPlan struct {
	WarmupIndices    []int `json:"warmup_indices"`
	CoreIndices      []int `json:"core_indices"`
	ChallengeIndices []int `json:"challenge_indices"`
	ReflectIndices   []int `json:"reflect_indices"`
}

type Question struct {
	Index        int             `json:"index"`
	Format       string          `json:"format"`
	Prompt       string          `json:"prompt"`
	Options      []string        `json:"options,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Feedback     json.RawMessage `json:"feedback,omitempty"`
	Scaffolding  json.RawMessage `json:"scaffolding,omitempty"`
	Objectives   []string        `json:"objectives,omitempty"`
	Gamification json.RawMessage `json:"gamification,omitempty"`

	// Raw is the question object exactly as generated.
	Raw json.RawMessage `json:"-"`
}

func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*q = Question(decoded)
	q.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (q Question) HasPedagogy() bool {
	return hasJSONData(q.Feedback) || hasJSONData(q.Scaffolding) || len(q.Objectives) > 0
}

func (q Question) HasGamification() bool {
	return hasJSONData(q.Gamification)
}

type AssetPlanItem struct {
	Type           string `json:"type"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	AltText        string `json:"alt_text"`
}

// DecodeLesson converts the extracted object into a Lesson.
func DecodeLesson(obj map[string]any) (Lesson, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return Lesson{}, err
	}
	var lesson Lesson
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return Lesson{}, err
	}
	return lesson, nil
}

func hasJSONData(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return false
	}
	return true
}

type Phase string

const (
	PhaseHook                Phase = "hook"
	PhaseGuidedPractice      Phase = "guided_practice"
	PhaseIndependentPractice Phase = "independent_practice"
	PhaseChallenge           Phase = "challenge"
)

// PhaseFor maps a question index to its lesson phase by looking it up in the
// pacing plan. Indices missing from every list are independent practice.
func (p PacingPlan) PhaseFor(index int) Phase {
	switch {
	case containsInt(p.WarmupIndices, index):
		return PhaseHook
	case containsInt(p.CoreIndices, index):
		return PhaseGuidedPractice
	case containsInt(p.ChallengeIndices, index):
		return PhaseIndependentPractice
	case containsInt(p.ReflectIndices, index):
		return PhaseChallenge
	default:
		return PhaseIndependentPractice
	}
}

func (p PacingPlan) AllIndices() []int {
	all := make([]int, 0, len(p.WarmupIndices)+len(p.CoreIndices)+len(p.ChallengeIndices)+len(p.ReflectIndices))
	all = append(all, p.WarmupIndices...)
	all = append(all, p.CoreIndices...)
	all = append(all, p.ChallengeIndices...)
	return append(all, p.ReflectIndices...)
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

type ItemType string

const (
	ItemLearn          ItemType = "learn"
	ItemMultipleChoice ItemType = "multiple_choice"
	ItemFillBlank      ItemType = "fill_blank"
)

type QuestionFormat string

const (
	FormatMultipleChoice QuestionFormat = "multiple_choice"
	FormatFillBlank      QuestionFormat = "fill_blank"
	FormatShortAnswer    QuestionFormat = "short_answer"
	FormatNumeric        QuestionFormat = "numeric"
	FormatTrueFalse      QuestionFormat = "true_false"
	FormatOrdering       QuestionFormat = "ordering"
	FormatMatching       QuestionFormat = "matching"
)

// Only multiple choice has a dedicated player; every other format renders
// through the fill-blank player.
var itemTypeByFormat = map[QuestionFormat]ItemType{
	FormatMultipleChoice: ItemMultipleChoice,
	FormatFillBlank:      ItemFillBlank,
	FormatShortAnswer:    ItemFillBlank,
	FormatNumeric:        ItemFillBlank,
	FormatTrueFalse:      ItemFillBlank,
	FormatOrdering:       ItemFillBlank,
	FormatMatching:       ItemFillBlank,
}

func ItemTypeFor(format string) (ItemType, bool) {
	t, ok := itemTypeByFormat[QuestionFormat(strings.ToLower(strings.TrimSpace(format)))]
	return t, ok
}

func QuestionFormats() []string {
	return []string{
		string(FormatMultipleChoice), string(FormatFillBlank), string(FormatShortAnswer),
		string(FormatNumeric), string(FormatTrueFalse), string(FormatOrdering), string(FormatMatching),
	}
}

type ImageType string

const (
	ImageSticker      ImageType = "sticker"
	ImageIllustration ImageType = "illustration"
)

var imageTypeByAssetKind = map[string]ImageType{
	"diagram":          ImageIllustration,
	"illustration":     ImageIllustration,
	"sticker":          ImageSticker,
	"abstract_sticker": ImageSticker,
}

var targetSuffixByImage = map[ImageType]string{
	ImageSticker:      suffixOutro,
	ImageIllustration: suffixIntro,
}

var workflowByImage = map[ImageType]string{
	ImageSticker:      "sticker_flat_v1",
	ImageIllustration: "diagram_clean_v1",
}

func ImageTypeFor(kind string) (ImageType, bool) {
	t, ok := imageTypeByAssetKind[strings.ToLower(strings.TrimSpace(kind))]
	return t, ok
}

func AssetKinds() []string {
	return []string{"diagram", "illustration", "sticker", "abstract_sticker"}
}

const (
	suffixIntro = "_intro"
	suffixOutro = "_outro"

	IntroOrder = 0
	OutroOrder = 99

	DefaultCountry = "AU"
)

type CountryProfile struct {
	Code       string
	Locale     string
	Curriculum string
}

var countryProfiles = map[string]CountryProfile{
	"AU": {Code: "AU", Locale: "en-AU", Curriculum: "AC_V9"},
	"NZ": {Code: "NZ", Locale: "en-NZ", Curriculum: "NZC"},
	"GB": {Code: "GB", Locale: "en-GB", Curriculum: "NC_ENG"},
	"US": {Code: "US", Locale: "en-US", Curriculum: "CCSS"},
}

func CountryProfileFor(code string) (CountryProfile, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCountry
	}
	if code == "UK" {
		code = "GB"
	}
	p, ok := countryProfiles[code]
	return p, ok
}

var subjectCodes = map[string]string{
	"mathematics":                    "MATH",
	"maths":                          "MATH",
	"math":                           "MATH",
	"english":                        "ENG",
	"science":                        "SCI",
	"hass":                           "HASS",
	"humanities and social sciences": "HASS",
	"technologies":                   "TECH",
	"digital technologies":           "TECH",
	"the arts":                       "ARTS",
	"arts":                           "ARTS",
	"health and physical education":  "HPE",
	"hpe":                            "HPE",
	"languages":                      "LANG",
}

// SubjectCode returns the short code used in template ids.
func SubjectCode(subject string) string {
	key := strings.ToLower(strings.Join(strings.Fields(subject), " "))
	if code, ok := subjectCodes[key]; ok {
		return code
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			if b.Len() == 4 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "GEN"
	}
	return b.String()
}

func TemplateID(subject string, year int, topic string) string {
	slug := Slugify(topic)
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("%s_Y%d_%s", SubjectCode(subject), year, slug)
}

func EditionID(templateID, country string) string {
	return templateID + "_" + strings.ToUpper(country)
}

func IntroContentID(editionID string) string { return editionID + suffixIntro }
func OutroContentID(editionID string) string { return editionID + suffixOutro }

func QuestionContentID(editionID string, index int) string {
	return fmt.Sprintf("%s_q%d", editionID, index)
}
