package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"brightsteps-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type PagedUsersResponse struct {
	Items    []UserDTO `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

type AdminUserCreateRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	DisplayName *string  `json:"displayName"`
	Roles       []string `json:"roles"`
}

type SetRolesRequest struct {
	Roles []string `json:"roles"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	pageSize := parseInt(r.URL.Query().Get("pageSize"), 10)
	if pageSize > 100 {
		pageSize = 100
	}
	search := services.CleanSearchTerm(r.URL.Query().Get("search"))
	args := []interface{}{}
	where := ""
	if search != "" {
		where = "WHERE lower(email) LIKE $1"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	var total int
	if err := s.DB.GetContext(r.Context(), &total, "SELECT count(*) FROM users "+where, args...); err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	args = append(args, pageSize, (page-1)*pageSize)
	ids := []string{}
	query := fmt.Sprintf(`SELECT id FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	if err := s.DB.SelectContext(r.Context(), &ids, query, args...); err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	items := make([]UserDTO, 0, len(ids))
	for _, id := range ids {
		dto, err := buildUserDTO(r.Context(), s.DB, id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		items = append(items, *dto)
	}
	WriteJSON(w, http.StatusOK, PagedUsersResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req AdminUserCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	roles := normalizeRoles(req.Roles)
	if len(roles) == 0 {
		roles = []string{services.RoleEditor}
	}
	userID, err := services.CreateUser(r.Context(), s.DB, s.Tokens, req.Email, req.Password, req.DisplayName, roles)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	s.Log.Info("staff user created", "user_id", userID, "by", CurrentUserID(r))
	s.writeUser(w, r, userID, http.StatusCreated)
}

func (s *Server) SetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req SetRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	roles := normalizeRoles(req.Roles)
	if userID == CurrentUserID(r) && !containsRole(roles, services.RoleAdmin) {
		WriteError(w, http.StatusBadRequest, "You cannot remove your own ADMIN role")
		return
	}
	if err := services.SetUserRoles(r.Context(), s.DB, userID, roles); err != nil {
		WriteServiceError(w, err)
		return
	}
	s.writeUser(w, r, userID, http.StatusOK)
}

func (s *Server) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req SetStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status != services.UserStatusActive && status != services.UserStatusDisabled {
		WriteError(w, http.StatusBadRequest, "status must be ACTIVE or DISABLED")
		return
	}
	if userID == CurrentUserID(r) && status != services.UserStatusActive {
		WriteError(w, http.StatusBadRequest, "You cannot disable your own account")
		return
	}
	result, err := s.DB.ExecContext(r.Context(), `UPDATE users SET status = $2, updated_at = now() WHERE id = $1`, userID, status)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeUser(w, r, userID, http.StatusOK)
}

func (s *Server) writeUser(w http.ResponseWriter, r *http.Request, userID string, status int) {
	dto, err := buildUserDTO(r.Context(), s.DB, userID)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, status, dto)
}

func normalizeRoles(raw []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, role := range raw {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	return out
}

func containsRole(roles []string, role string) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value < 1 {
		return fallback
	}
	return value
}
