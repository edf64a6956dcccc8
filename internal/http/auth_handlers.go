package httpapi

import (
	"net/http"
	"strings"

	"brightsteps-backend-go/internal/services"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresAt    int64    `json:"expiresAt"`
	User         *UserDTO `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login answers every credential failure with the same message so the
// console cannot be used to discover which emails exist.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "Authentication failed")
		return
	}
	creds, err := services.FindCredentials(r.Context(), s.DB, req.Email)
	if err != nil || !s.Tokens.VerifyPassword(req.Password, creds.PasswordHash) {
		s.Log.Warn("login rejected", "email", req.Email)
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	if creds.Status != services.UserStatusActive {
		WriteError(w, http.StatusForbidden, "Authentication failed")
		return
	}
	if err := services.SetLastLogin(r.Context(), s.DB, creds.UserID, s.now()); err != nil {
		s.Log.Warn("last login not recorded", "user_id", creds.UserID, "error", err)
	}
	s.writeTokens(w, r, creds.UserID)
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Authentication failed")
		return
	}
	claims, err := s.Tokens.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	active, err := services.IsActiveUser(r.Context(), s.DB, claims.UserID)
	if err != nil || !active {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	s.writeTokens(w, r, claims.UserID)
}

// writeTokens reloads the user so a refreshed access token carries the
// current role set.
func (s *Server) writeTokens(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := buildUserDTO(r.Context(), s.DB, userID)
	if err != nil {
		s.Log.Error("load user for tokens failed", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	pair, err := s.Tokens.IssuePair(userID, user.Email, user.Roles)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

// Logout is stateless; the console drops its tokens.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
