package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/nutrition-planner/internal/storage"
)

// Service содержит бизнес-логику карточки пользователя
type Service struct {
	users storage.UsersStorage
}

// NewService создаёт новый сервис
func NewService(users storage.UsersStorage) *Service {
	return &Service{users: users}
}

// Me возвращает текущего пользователя. Пользователь без записи
// (локальный или dev) получает пустую карточку.
func (s *Service) Me(ctx context.Context, userID string) (*UserDTO, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &UserDTO{ID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", storage.ErrQueryFailed, err)
	}

	dto := toDTO(*user)
	return &dto, nil
}

// UpdateMe обновляет отображаемое имя
func (s *Service) UpdateMe(ctx context.Context, userID string, req UpdateMeRequest) (*UserDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.users.UpsertUsername(ctx, userID, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to update username: %w", err)
	}

	dto := toDTO(*user)
	return &dto, nil
}

func toDTO(u storage.User) UserDTO {
	createdAt := u.CreatedAt
	return UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: &createdAt,
	}
}
