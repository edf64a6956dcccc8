package httpapi

import (
	"context"
	"time"

	"brightsteps-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

type UserDTO struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName *string    `json:"displayName,omitempty"`
	Status      string     `json:"status"`
	Role        string     `json:"role"`
	Roles       []string   `json:"roles"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func buildUserDTO(ctx context.Context, db *sqlx.DB, userID string) (*UserDTO, error) {
	row := struct {
		ID          string     `db:"id"`
		Email       string     `db:"email"`
		DisplayName *string    `db:"display_name"`
		Status      string     `db:"status"`
		CreatedAt   *time.Time `db:"created_at"`
		LastLogin   *time.Time `db:"last_login_at"`
	}{}
	if err := db.GetContext(ctx, &row, `
SELECT id, email, display_name, status, created_at, last_login_at
FROM users
WHERE id = $1
`, userID); err != nil {
		return nil, err
	}
	roles, err := services.FetchRoles(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	return &UserDTO{
		ID:          row.ID,
		Email:       row.Email,
		DisplayName: row.DisplayName,
		Status:      row.Status,
		Role:        primaryRole(roles),
		Roles:       roles,
		CreatedAt:   row.CreatedAt,
		LastLoginAt: row.LastLogin,
	}, nil
}

// primaryRole picks the most privileged role for display.
func primaryRole(roles []string) string {
	for _, candidate := range []string{services.RoleAdmin, services.RoleEditor} {
		for _, role := range roles {
			if role == candidate {
				return role
			}
		}
	}
	if len(roles) > 0 {
		return roles[0]
	}
	return services.RoleStudent
}
