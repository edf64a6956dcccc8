package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"os"

	"brightsteps-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

func (s *Server) PublicLessons(w http.ResponseWriter, r *http.Request) {
	resp, err := s.listLessons(r)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// PublicLessonDetail serves the student app. The raw wrapper stays admin-only.
func (s *Server) PublicLessonDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.loadLessonDetail(r, chi.URLParam(r, "editionId"))
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	detail.Wrapper = nil
	WriteJSON(w, http.StatusOK, detail)
}

func (s *Server) GeneratedMedia(w http.ResponseWriter, r *http.Request) {
	path := services.GeneratedImagePath(s.Config.MediaStoragePath, chi.URLParam(r, "assetId"))
	file, err := os.Open(path)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
