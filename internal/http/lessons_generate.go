package httpapi

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"brightsteps-backend-go/internal/services"

	"github.com/google/uuid"
)

// flexInt accepts a JSON number or a numeric string. The admin form posts
// the year as whatever the select element holds.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*f = flexInt(value)
		return nil
	}
	var value int
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*f = flexInt(value)
	return nil
}

// optionalInt is a flexInt that remembers whether a value was given. Null,
// a blank string and an absent key all leave it unset.
type optionalInt struct {
	Value int
	Set   bool
}

func (o *optionalInt) UnmarshalJSON(data []byte) error {
	var v flexInt
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	trimmed := strings.Trim(string(bytes.TrimSpace(data)), `" `)
	*o = optionalInt{Value: int(v), Set: trimmed != "" && trimmed != "null"}
	return nil
}

type GenerateLessonRequest struct {
	Topic          string      `json:"topic"`
	Year           optionalInt `json:"year"`
	Subject        string      `json:"subject"`
	Subtopic       string      `json:"subtopic"`
	Strand         string      `json:"strand"`
	Country        string      `json:"country"`
	DifficultyBand string      `json:"difficultyBand"`
	LLMURL         string      `json:"llmUrl"`
	LLMModel       string      `json:"llmModel"`
	LLMKey         string      `json:"llmKey"`
	PreviousTitle  string      `json:"previousTitle"`
	UnitIndex      flexInt     `json:"unitIndex"`
	UnitCount      flexInt     `json:"unitCount"`
}

// continuation is nil unless the request names a multi-unit sequence.
func (req GenerateLessonRequest) continuation() *services.ContinuationUnit {
	if req.UnitCount <= 1 {
		return nil
	}
	return &services.ContinuationUnit{
		PreviousTitle: strings.TrimSpace(req.PreviousTitle),
		UnitIndex:     int(req.UnitIndex),
		UnitCount:     int(req.UnitCount),
	}
}

type GenerateLessonResponse struct {
	OK           bool                 `json:"ok"`
	LessonID     string               `json:"lesson_id"`
	TemplateID   string               `json:"template_id"`
	Title        string               `json:"title"`
	Questions    int                  `json:"questions"`
	AssetsQueued int                  `json:"assets_queued"`
	Warnings     []services.Violation `json:"warnings,omitempty"`
}

func (s *Server) GenerateLesson(w http.ResponseWriter, r *http.Request) {
	var req GenerateLessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	// Year 0 is Foundation, so a missing year cannot default to it.
	if !req.Year.Set {
		WriteError(w, http.StatusBadRequest, "year is required")
		return
	}
	result, err := s.Generator.Generate(r.Context(), services.GenerateRequest{
		JobID:          uuid.NewString(),
		Topic:          req.Topic,
		Subject:        req.Subject,
		Year:           req.Year.Value,
		Strand:         req.Strand,
		Subtopic:       req.Subtopic,
		DifficultyBand: req.DifficultyBand,
		Country:        req.Country,
		Continuation:   req.continuation(),
		LLM: services.LLMOverride{
			URL:   req.LLMURL,
			Model: req.LLMModel,
			Key:   req.LLMKey,
		},
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, GenerateLessonResponse{
		OK:           true,
		LessonID:     result.EditionID,
		TemplateID:   result.TemplateID,
		Title:        result.Title,
		Questions:    result.Questions,
		AssetsQueued: result.AssetsQueued,
		Warnings:     result.Warnings,
	})
}

type LessonBuilderRequest struct {
	Prompt    string  `json:"prompt"`
	YearLevel flexInt `json:"yearLevel"`
	Subject   string  `json:"subject"`
	GoalType  string  `json:"goalType"`
	Style     string  `json:"style"`
}

func (s *Server) BuildLesson(w http.ResponseWriter, r *http.Request) {
	var req LessonBuilderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	lesson, err := s.Builder.Build(r.Context(), services.BuilderRequest{
		Prompt:    req.Prompt,
		YearLevel: int(req.YearLevel),
		Subject:   req.Subject,
		GoalType:  req.GoalType,
		Style:     req.Style,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"lesson": lesson})
}

type ScanAssetsRequest struct {
	Token string `json:"token"`
	Mode  string `json:"mode"`
}

type ScanAssetsResponse struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode"`
	Scanned int    `json:"scanned"`
	Queued  int    `json:"queued"`
	Message string `json:"message"`
}

func (s *Server) ScanAssets(w http.ResponseWriter, r *http.Request) {
	var req ScanAssetsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !s.scanSecretMatches(req.Token) {
		s.Log.Warn("asset scan rejected", "remote", r.RemoteAddr)
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	result, err := s.Scanner.Scan(r.Context(), strings.ToLower(strings.TrimSpace(req.Mode)))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ScanAssetsResponse{
		OK:      true,
		Mode:    result.Mode,
		Scanned: result.Scanned,
		Queued:  result.Queued,
		Message: result.Message,
	})
}

// scanSecretMatches is false whenever no secret is configured.
func (s *Server) scanSecretMatches(token string) bool {
	secret := s.Config.AssetScanSecret
	if secret == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
