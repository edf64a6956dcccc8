package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/logger"
)

const (
	msgInvalidJSON       = "LLM output invalid JSON"
	msgFailedValidation  = "LLM output failed validation"
	defaultGenerateLimit = 2
)

type GenerateRequest struct {
	JobID          string
	Topic          string
	Subject        string
	Year           int
	Strand         string
	Subtopic       string
	DifficultyBand string
	Country        string
	Continuation   *ContinuationUnit
	LLM            LLMOverride
}

type GenerateResult struct {
	WriteResult
	Warnings []Violation
}

// LessonGenerator runs prompt, completion, extraction, validation and the
// relational write for one admin request.
type LessonGenerator struct {
	LLM            config.LLMConfig
	NewCompleter   CompleterFactory
	Writer         *LessonWriter
	ValidationMode string
	Events         EventPublisher
	Log            *logger.Logger

	sem *semaphore.Weighted
}

func NewLessonGenerator(cfg config.Config, writer *LessonWriter, events EventPublisher, log *logger.Logger) *LessonGenerator {
	limit := cfg.GenerationConcurrency
	if limit <= 0 {
		limit = defaultGenerateLimit
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LessonGenerator{
		LLM:            cfg.LLM,
		NewCompleter:   func(c config.LLMConfig) Completer { return NewChatClient(c) },
		Writer:         writer,
		ValidationMode: cfg.LessonValidation,
		Events:         events,
		Log:            log.With("service", "lesson_generator"),
		sem:            semaphore.NewWeighted(int64(limit)),
	}
}

func (g *LessonGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	topic, err := NormalizeRequired(req.Topic, "topic is required")
	if err != nil {
		return GenerateResult{}, err
	}
	subject, err := NormalizeRequired(req.Subject, "subject is required")
	if err != nil {
		return GenerateResult{}, err
	}
	if req.Year < 0 || req.Year > 12 {
		return GenerateResult{}, ErrBadRequest("year must be between 0 and 12")
	}
	profile, ok := CountryProfileFor(req.Country)
	if !ok {
		return GenerateResult{}, ErrBadRequest("unsupported country " + strings.ToUpper(req.Country))
	}

	llmCfg := ResolveLLMConfig(g.LLM, req.LLM)
	if !llmCfg.Configured() {
		return GenerateResult{}, errLLMNotConfigured
	}

	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return GenerateResult{}, err
		}
		defer g.sem.Release(1)
	}

	vars := PromptVars{
		JobID:          req.JobID,
		Subject:        subject,
		YearLevel:      req.Year,
		Strand:         strings.TrimSpace(req.Strand),
		Topic:          topic,
		Subtopic:       strings.TrimSpace(req.Subtopic),
		DifficultyBand: strings.TrimSpace(req.DifficultyBand),
		Country:        profile.Code,
		Locale:         profile.Locale,
		Continuation:   req.Continuation,
	}
	prompts := BuildPrompts(vars)

	started := time.Now()
	raw, err := g.NewCompleter(llmCfg).Complete(ctx, prompts.System, prompts.User)
	if err != nil {
		g.Log.Warn("llm completion failed", "topic", topic, "model", llmCfg.Model, "error", err)
		return GenerateResult{}, err
	}
	g.Log.Info("llm completion received", "topic", topic, "model", llmCfg.Model, "chars", len(raw), "elapsed_ms", time.Since(started).Milliseconds())

	obj := ExtractJSON(raw)
	if obj == nil {
		return GenerateResult{}, ErrInvalidOutput(msgInvalidJSON, raw, nil)
	}

	rejected, warnings := ValidateLesson(obj).Enforce(g.ValidationMode)
	if len(rejected) > 0 {
		g.Log.Warn("lesson rejected by validation", "topic", topic, "violations", len(rejected))
		return GenerateResult{}, ErrInvalidOutput(msgFailedValidation, raw, rejected)
	}

	lesson, err := DecodeLesson(obj)
	if err != nil {
		return GenerateResult{}, ErrInvalidOutput(msgFailedValidation, raw, []Violation{{Path: "/", Message: err.Error(), Kind: ViolationStructural}})
	}

	written, err := g.Writer.Write(ctx, WriteInput{Vars: vars, Lesson: lesson, Wrapper: obj})
	if err != nil {
		g.Log.Error("lesson write failed", "topic", topic, "error", err)
		return GenerateResult{}, err
	}

	g.Log.Info("lesson generated", "edition_id", written.EditionID, "questions", written.Questions, "assets_queued", written.AssetsQueued)
	publish(g.Events, EventLessonGenerated, map[string]any{
		"edition_id":    written.EditionID,
		"title":         written.Title,
		"questions":     written.Questions,
		"assets_queued": written.AssetsQueued,
	})
	return GenerateResult{WriteResult: written, Warnings: warnings}, nil
}
