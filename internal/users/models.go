package users

import (
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/validation"
)

// UserDTO — DTO для GET/PATCH /v1/me
type UserDTO struct {
	ID        string     `json:"id"`
	Email     *string    `json:"email,omitempty"`
	Username  string     `json:"username"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// UpdateMeRequest — запрос для PATCH /v1/me
type UpdateMeRequest struct {
	Username string `json:"username" validate:"required,max=50"`
}

func (r *UpdateMeRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	return validation.Struct(r)
}

// ErrorResponse — формат ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
