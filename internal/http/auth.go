package httpapi

import (
	"context"
	"net/http"
	"strings"

	"brightsteps-backend-go/internal/services"
)

type claimsKey struct{}

var staffRoles = []string{services.RoleAdmin, services.RoleEditor}

// WithAuth accepts only access tokens. Refresh tokens are rejected even when
// their signature is valid.
func WithAuth(tokens services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication failed")
				return
			}
			claims, err := tokens.ParseAccessToken(raw)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Authentication failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func currentClaims(r *http.Request) services.Claims {
	claims, _ := r.Context().Value(claimsKey{}).(services.Claims)
	return claims
}

func CurrentUserID(r *http.Request) string {
	return currentClaims(r).UserID
}

func CurrentRoles(r *http.Request) []string {
	return currentClaims(r).Roles
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return RequireAnyRole(role)
}

// RequireAnyRole must run after WithAuth. Role codes compare case-insensitively.
func RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasAnyRole(CurrentRoles(r), roles...) {
				WriteError(w, http.StatusForbidden, "Not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyRole(have []string, want ...string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}
