package httpapi

import (
	"encoding/json"
	"net/http"

	"brightsteps-backend-go/internal/services"
)

type ErrorResponse struct {
	Error      string               `json:"error"`
	Raw        string               `json:"raw,omitempty"`
	Violations []services.Violation `json:"violations,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteServiceError renders err for the pipeline endpoints. Service errors
// keep their status and carry raw output and violations; anything else is
// a 500 whose message is shown to the operator verbatim.
func WriteServiceError(w http.ResponseWriter, err error) {
	serr, ok := services.AsServiceError(err)
	if !ok {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := ErrorResponse{Error: serr.Message, Raw: serr.Raw}
	if violations, ok := serr.Details.([]services.Violation); ok {
		resp.Violations = violations
	}
	WriteJSON(w, serr.Status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}
