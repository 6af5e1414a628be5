package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDevAuthDisabled    = errors.New("dev auth is disabled")
)

const devTTL = 30 * 24 * time.Hour

// Service — сервис авторизации
type Service struct {
	config     *config.Config
	users      storage.UsersStorage
	bcryptCost int
}

func NewService(cfg *config.Config, users storage.UsersStorage) *Service {
	return &Service{
		config:     cfg,
		users:      users,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// SignUp создаёт пользователя и сразу выдаёт токен.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	user := &storage.User{
		Email:        &req.Email,
		PasswordHash: &hashStr,
		Username:     req.Username,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// ErrEmailTaken пробрасывается как есть
		return nil, err
	}

	return s.issue(user.ID, s.ttl())
}

// SignIn проверяет пароль. Неизвестный email и неверный пароль неразличимы.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", storage.ErrQueryFailed, err)
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user.ID, s.ttl())
}

// SignInDev — dev-авторизация без пароля, выдает JWT на 30 дней
func (s *Service) SignInDev(ctx context.Context) (*TokenResponse, error) {
	_ = ctx

	if s.config.AuthMode != config.AuthModeDev {
		return nil, ErrDevAuthDisabled
	}

	const devUserID = "dev-user"
	return s.issue(devUserID, devTTL)
}

func (s *Service) ttl() time.Duration {
	return time.Duration(s.config.JWTTTLMinutes) * time.Minute
}

func (s *Service) issue(userID string, ttl time.Duration) (*TokenResponse, error) {
	accessToken, err := s.generateJWTWithTTL(userID, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		UserID:      userID,
	}, nil
}

func (s *Service) generateJWTWithTTL(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub": userID,
		"iss": s.config.JWTIssuer,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// VerifyJWT — проверка JWT токена, возвращает sub
func (s *Service) VerifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(s.config.JWTIssuer))

	if err != nil {
		return "", ErrInvalidToken
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return "", ErrInvalidToken
		}
		return sub, nil
	}

	return "", ErrInvalidToken
}
