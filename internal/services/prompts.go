package services

import (
	"fmt"
	"strings"
)

const (
	LessonQuestionCount = 10
	LessonDiagramCount  = 2
	LessonStickerCount  = 1
	LessonAssetCount    = LessonDiagramCount + LessonStickerCount
)

// PromptVars are the per-job inputs interpolated into the user prompt.
type PromptVars struct {
	JobID          string
	Subject        string
	YearLevel      int
	Strand         string
	Topic          string
	Subtopic       string
	DifficultyBand string
	Country        string
	Locale         string
	Continuation   *ContinuationUnit
}

// ContinuationUnit describes where the lesson sits in a multi-lesson unit.
type ContinuationUnit struct {
	PreviousTitle string
	UnitIndex     int
	UnitCount     int
}

type Prompts struct {
	System string
	User   string
}

// BuildPrompts assembles the system contract and the per-job user prompt.
// It is deterministic for a given input.
func BuildPrompts(vars PromptVars) Prompts {
	return Prompts{System: systemPrompt(vars), User: userPrompt(vars)}
}

func systemPrompt(vars PromptVars) string {
	locale := vars.Locale
	if locale == "" {
		locale = "en-AU"
	}

	var b strings.Builder
	b.WriteString("You are a primary school lesson designer writing short, playful lessons for children.\n")
	b.WriteString("Respond with a single JSON object and nothing else. Do not wrap it in markdown.\n\n")

	b.WriteString("## Contract\n")
	fmt.Fprintf(&b, "- Write exactly %d questions, indexed 1 to %d in presentation order.\n", LessonQuestionCount, LessonQuestionCount)
	fmt.Fprintf(&b, "- Plan exactly %d assets: %d \"diagram\" entries and %d \"sticker\" entry (an abstract, friendly sticker with no text).\n",
		LessonAssetCount, LessonDiagramCount, LessonStickerCount)
	fmt.Fprintf(&b, "- Allowed question formats: %s.\n", strings.Join(QuestionFormats(), ", "))
	b.WriteString("- Every question index must appear in exactly one pacing_plan list (warmup, core, challenge, reflect).\n")
	b.WriteString("- Each question carries feedback (correct, incorrect), scaffolding (hint, worked_step) and objectives.\n")
	b.WriteString("- Each question may carry gamification (reward, visual).\n\n")

	b.WriteString("## Banned content\n")
	b.WriteString("- Violence, weapons, scary or unsafe situations.\n")
	b.WriteString("- Brand names, products, real people and celebrities.\n")
	b.WriteString("- Religion and politics.\n")
	b.WriteString("- Requests for personal information (names, addresses, photos, school).\n\n")

	b.WriteString("## Localisation\n")
	fmt.Fprintf(&b, "- Use %s spelling and vocabulary.\n", locale)
	b.WriteString("- Use metric units.\n")
	if currency := currencyFor(vars.Country); currency != "" {
		fmt.Fprintf(&b, "- Money questions use %s.\n", currency)
	}
	b.WriteString("- Names and places should be generic and culturally inclusive.\n\n")

	b.WriteString("## Output schema\n")
	b.WriteString(`{
  "meta": {"subject": string, "year_level": integer, "strand": string, "topic": string, "subtopic": string, "tags": [string]},
  "narrative": {"intro": {"title": string, "text": string}, "outro": {"title": string, "text": string}},
  "learning_goal": string,
  "pacing_plan": {"warmup_indices": [int], "core_indices": [int], "challenge_indices": [int], "reflect_indices": [int]},
  "questions": [{"index": int, "format": string, "prompt": string, "options": [string], "answer": any,
                 "feedback": {"correct": string, "incorrect": string},
                 "scaffolding": {"hint": string, "worked_step": string},
                 "objectives": [string],
                 "gamification": {"reward": string, "visual": string}}],
  "asset_plan": [{"type": "diagram" | "sticker", "prompt": string, "negative_prompt": string, "alt_text": string}]
}
`)
	return b.String()
}

func userPrompt(vars PromptVars) string {
	var b strings.Builder
	if vars.JobID != "" {
		fmt.Fprintf(&b, "Job: %s\n", vars.JobID)
	}
	fmt.Fprintf(&b, "Subject: %s\n", vars.Subject)
	fmt.Fprintf(&b, "Year level: %d\n", vars.YearLevel)
	if vars.Strand != "" {
		fmt.Fprintf(&b, "Strand: %s\n", vars.Strand)
	}
	fmt.Fprintf(&b, "Topic: %s\n", vars.Topic)
	if vars.Subtopic != "" {
		fmt.Fprintf(&b, "Subtopic: %s\n", vars.Subtopic)
	}
	band := vars.DifficultyBand
	if band == "" {
		band = "core"
	}
	fmt.Fprintf(&b, "Difficulty band: %s\n", band)
	if vars.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", vars.Country)
	}

	if c := vars.Continuation; c != nil && c.UnitCount > 1 {
		fmt.Fprintf(&b, "\nThis is lesson %d of %d in a unit.", c.UnitIndex, c.UnitCount)
		if c.PreviousTitle != "" {
			fmt.Fprintf(&b, " The previous lesson was %q; build on it without repeating its questions.", c.PreviousTitle)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nWrite the lesson now. Return only the JSON object with %d questions and %d assets.\n",
		LessonQuestionCount, LessonAssetCount)
	return b.String()
}

func currencyFor(country string) string {
	switch strings.ToUpper(country) {
	case "AU":
		return "Australian dollars and cents"
	case "NZ":
		return "New Zealand dollars and cents"
	case "GB", "UK":
		return "pounds and pence"
	case "US":
		return "US dollars and cents"
	default:
		return ""
	}
}
