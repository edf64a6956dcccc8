package services

import (
	"context"
	"fmt"
	"strings"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/logger"
)

type BuilderRequest struct {
	Prompt    string
	YearLevel int
	Subject   string
	GoalType  string
	Style     string
}

// LessonBuilder drafts a free-form lesson for the editor. Without an LLM it
// falls back to a fixed template so the editor keeps working offline.
type LessonBuilder struct {
	LLM          config.LLMConfig
	NewCompleter CompleterFactory
	Log          *logger.Logger
}

func NewLessonBuilder(cfg config.LLMConfig, log *logger.Logger) *LessonBuilder {
	if log == nil {
		log = logger.Nop()
	}
	return &LessonBuilder{
		LLM:          cfg,
		NewCompleter: func(c config.LLMConfig) Completer { return NewChatClient(c) },
		Log:          log.With("service", "lesson_builder"),
	}
}

func (b *LessonBuilder) Build(ctx context.Context, req BuilderRequest) (map[string]any, error) {
	req = normalizeBuilderRequest(req)
	if !b.LLM.Configured() {
		return TemplateLesson(req), nil
	}

	llmCfg := ResolveLLMConfig(b.LLM, LLMOverride{})
	raw, err := b.NewCompleter(llmCfg).Complete(ctx, builderSystemPrompt, builderUserPrompt(req))
	if err != nil {
		b.Log.Warn("lesson builder completion failed", "error", err)
		return nil, err
	}
	obj := ExtractJSON(raw)
	if obj == nil {
		return nil, ErrInvalidOutput(msgInvalidJSON, raw, nil)
	}
	obj["source"] = "llm"
	return obj, nil
}

func normalizeBuilderRequest(req BuilderRequest) BuilderRequest {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Subject = firstNonEmpty(req.Subject, "Mathematics")
	req.GoalType = firstNonEmpty(strings.ToLower(req.GoalType), "understand")
	req.Style = firstNonEmpty(strings.ToLower(req.Style), "playful")
	if req.YearLevel < 0 || req.YearLevel > 12 {
		req.YearLevel = 3
	}
	return req
}

const builderSystemPrompt = `You help teachers draft short lessons for primary school children.
Respond with a single JSON object and nothing else:
{"title": string, "learning_goal": string, "subject": string, "year_level": integer,
 "goal_type": string, "style": string,
 "steps": [{"kind": "hook" | "explain" | "practice" | "reflect", "title": string, "text": string}]}
Keep language age appropriate. No violence, brands, real people, religion or politics.`

func builderUserPrompt(req BuilderRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	fmt.Fprintf(&b, "Year level: %d\n", req.YearLevel)
	fmt.Fprintf(&b, "Goal type: %s\n", req.GoalType)
	fmt.Fprintf(&b, "Style: %s\n", req.Style)
	if req.Prompt != "" {
		fmt.Fprintf(&b, "Teacher request: %s\n", req.Prompt)
	}
	return b.String()
}

// TemplateLesson is the deterministic lesson returned when no LLM is set up.
func TemplateLesson(req BuilderRequest) map[string]any {
	req = normalizeBuilderRequest(req)
	focus := firstNonEmpty(truncateRunes(req.Prompt, 80), req.Subject)
	title := fmt.Sprintf("%s: %s", req.Subject, titleCase(focus))
	goal := fmt.Sprintf("By the end of this lesson, Year %d learners will %s %s.", req.YearLevel, goalVerb(req.GoalType), strings.ToLower(focus))

	steps := []map[string]any{
		{"kind": "hook", "title": "Warm up", "text": fmt.Sprintf("Think of a time you used %s outside school. Share one example.", strings.ToLower(focus))},
		{"kind": "explain", "title": "Learn", "text": fmt.Sprintf("Watch the worked example about %s, then say each step out loud.", strings.ToLower(focus))},
		{"kind": "practice", "title": "Try it", "text": "Solve three practice questions. Check each answer with a partner."},
		{"kind": "practice", "title": "Stretch", "text": "Make up your own question and swap it with a classmate."},
		{"kind": "reflect", "title": "Reflect", "text": "What was easy today? What will you practise next time?"},
	}
	if req.Style == "story" {
		steps[0]["text"] = fmt.Sprintf("Our explorer needs help with %s. Can you help them on their journey?", strings.ToLower(focus))
	}

	return map[string]any{
		"title":         title,
		"learning_goal": goal,
		"subject":       req.Subject,
		"year_level":    req.YearLevel,
		"goal_type":     req.GoalType,
		"style":         req.Style,
		"steps":         steps,
		"source":        "template",
	}
}

func goalVerb(goalType string) string {
	switch goalType {
	case "practice", "practise":
		return "practise"
	case "explore":
		return "explore"
	case "master", "fluency":
		return "confidently use"
	default:
		return "understand"
	}
}

func titleCase(value string) string {
	words := strings.Fields(value)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
