package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"brightsteps-backend-go/internal/services"
)

func (s *Server) IntegrationsStatus(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("mode")))
	report, err := s.Integrations.Check(r.Context(), mode)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// ExportLessonsCSV streams the synthetic seed rows for one country.
func (s *Server) ExportLessonsCSV(w http.ResponseWriter, r *http.Request) {
	profile, ok := services.CountryProfileFor(r.URL.Query().Get("country"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "Unsupported country")
		return
	}
	rows, err := s.Curriculum.Rows(profile.Code, nil, s.now())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lessons-%s.csv"`, strings.ToLower(profile.Code)))
	w.WriteHeader(http.StatusOK)
	if err := services.WriteLessonsCSV(w, rows); err != nil {
		s.Log.Warn("csv export interrupted", "country", profile.Code, "error", err)
	}
}
