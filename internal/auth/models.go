package auth

import (
	"errors"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/validation"
)

// maxPasswordBytes — предел bcrypt, считается в байтах, а не в символах
const maxPasswordBytes = 72

// SignUpRequest — запрос на регистрацию
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8"`
	Username string `json:"username" validate:"omitempty,max=50"`
}

func (r *SignUpRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	if err := validation.Struct(r); err != nil {
		return err
	}
	if len(r.Password) > maxPasswordBytes {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// SignInRequest — запрос на вход по email и паролю
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse — ответ с access token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
}

// ErrorResponse — формат ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
