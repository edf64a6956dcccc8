package services

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"brightsteps-backend-go/internal/config"
)

//go:embed schemas/lesson.schema.json
var lessonSchemaJSON []byte

type ViolationKind string

const (
	// ViolationStructural covers schema failures and unknown enum values.
	ViolationStructural ViolationKind = "structural"
	// ViolationCount covers question and asset count mismatches.
	ViolationCount ViolationKind = "count"
)

type Violation struct {
	Path    string        `json:"path"`
	Message string        `json:"message"`
	Kind    ViolationKind `json:"kind"`
}

type ValidationResult struct {
	Violations []Violation
}

func (r ValidationResult) Valid() bool { return len(r.Violations) == 0 }

// Enforce splits violations into the ones that reject the lesson and the
// ones reported as warnings. Strict mode rejects everything; lenient mode
// only rejects structural problems.
func (r ValidationResult) Enforce(mode string) (rejected, warnings []Violation) {
	for _, v := range r.Violations {
		if mode == config.ValidationLenient && v.Kind == ViolationCount {
			warnings = append(warnings, v)
			continue
		}
		rejected = append(rejected, v)
	}
	return rejected, warnings
}

var (
	lessonSchemaOnce sync.Once
	lessonSchema     *jsonschema.Schema
	lessonSchemaErr  error
)

func compiledLessonSchema() (*jsonschema.Schema, error) {
	lessonSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("lesson.schema.json", bytes.NewReader(lessonSchemaJSON)); err != nil {
			lessonSchemaErr = fmt.Errorf("failed to load lesson schema: %w", err)
			return
		}
		lessonSchema, lessonSchemaErr = compiler.Compile("lesson.schema.json")
	})
	return lessonSchema, lessonSchemaErr
}

// ValidateLesson checks the extracted object against the lesson schema and
// the generation contract. A nil object is a single structural violation.
func ValidateLesson(obj map[string]any) ValidationResult {
	if obj == nil {
		return ValidationResult{Violations: []Violation{{Path: "/", Message: "no JSON object", Kind: ViolationStructural}}}
	}

	schema, err := compiledLessonSchema()
	if err != nil {
		return ValidationResult{Violations: []Violation{{Path: "/", Message: err.Error(), Kind: ViolationStructural}}}
	}
	if err := schema.Validate(obj); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return ValidationResult{Violations: schemaViolations(verr)}
		}
		return ValidationResult{Violations: []Violation{{Path: "/", Message: err.Error(), Kind: ViolationStructural}}}
	}

	lesson, err := DecodeLesson(obj)
	if err != nil {
		return ValidationResult{Violations: []Violation{{Path: "/", Message: err.Error(), Kind: ViolationStructural}}}
	}
	return ValidationResult{Violations: contractViolations(lesson)}
}

func schemaViolations(root *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			path := e.InstanceLocation
			if path == "" {
				path = "/"
			}
			out = append(out, Violation{Path: path, Message: e.Message, Kind: ViolationStructural})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(root)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func contractViolations(lesson Lesson) []Violation {
	var out []Violation
	add := func(kind ViolationKind, path, format string, args ...any) {
		out = append(out, Violation{Path: path, Message: fmt.Sprintf(format, args...), Kind: kind})
	}

	if n := len(lesson.Questions); n != LessonQuestionCount {
		add(ViolationCount, "/questions", "expected %d questions, got %d", LessonQuestionCount, n)
	}

	seen := make(map[int]bool, len(lesson.Questions))
	for i, q := range lesson.Questions {
		path := fmt.Sprintf("/questions/%d", i)
		if q.Index < 1 || q.Index > len(lesson.Questions) {
			add(ViolationStructural, path+"/index", "question index %d is outside 1..%d", q.Index, len(lesson.Questions))
		}
		if seen[q.Index] {
			add(ViolationStructural, path+"/index", "duplicate question index %d", q.Index)
		}
		seen[q.Index] = true
		if _, ok := ItemTypeFor(q.Format); !ok {
			add(ViolationStructural, path+"/format", "unknown question format %q (allowed: %s)", q.Format, strings.Join(QuestionFormats(), ", "))
		}
	}

	for _, idx := range lesson.PacingPlan.AllIndices() {
		if !seen[idx] {
			add(ViolationStructural, "/pacing_plan", "pacing plan refers to missing question %d", idx)
		}
	}

	var diagrams, stickers int
	for i, asset := range lesson.AssetPlan {
		imageType, ok := ImageTypeFor(asset.Type)
		if !ok {
			add(ViolationStructural, fmt.Sprintf("/asset_plan/%d/type", i), "unknown asset type %q (allowed: %s)", asset.Type, strings.Join(AssetKinds(), ", "))
			continue
		}
		if imageType == ImageSticker {
			stickers++
		} else {
			diagrams++
		}
	}
	if n := len(lesson.AssetPlan); n != LessonAssetCount {
		add(ViolationCount, "/asset_plan", "expected %d assets, got %d", LessonAssetCount, n)
	} else if diagrams != LessonDiagramCount || stickers != LessonStickerCount {
		add(ViolationCount, "/asset_plan", "expected %d diagrams and %d sticker, got %d and %d",
			LessonDiagramCount, LessonStickerCount, diagrams, stickers)
	}
	return out
}
