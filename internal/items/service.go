package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

var ErrItemNotFound = errors.New("item not found")

// Service handles the item catalog.
type Service struct {
	storage      storage.ItemsStorage
	defaultLimit int
	maxLimit     int
}

// NewService creates a new item catalog service.
func NewService(storage storage.ItemsStorage, defaultLimit, maxLimit int) *Service {
	if maxLimit <= 0 {
		maxLimit = MaxSearchLimit
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = DefaultSearchLimit
	}
	return &Service{storage: storage, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// ClampLimit maps a requested limit into [1, maxLimit]; non-positive means default.
func ClampLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (s *Service) ClampLimit(limit int) int {
	return ClampLimit(limit, s.defaultLimit, s.maxLimit)
}

func (s *Service) Create(ctx context.Context, ownerUserID string, req CreateItemRequest) (ItemDTO, error) {
	if err := req.Validate(); err != nil {
		return ItemDTO{}, fmt.Errorf("validation failed: %w", err)
	}

	item := storage.Item{
		OwnerUserID: ownerUserID,
		Name:        req.Name,
		Description: req.Description,
		Calories:    req.Calories,
		Protein:     req.Protein,
		Carbs:       req.Carbs,
		Fat:         req.Fat,
		Fiber:       req.Fiber,
		DefaultUnit: req.DefaultUnit,
	}
	if err := s.storage.CreateItem(ctx, &item); err != nil {
		return ItemDTO{}, fmt.Errorf("failed to create item: %w", err)
	}

	return ToDTO(item), nil
}

// Search returns items whose name contains query (case-insensitive), ordered
// by name. No match is an empty slice, never an error.
func (s *Service) Search(ctx context.Context, ownerUserID string, query string, limit int) ([]ItemDTO, int, error) {
	limit = s.ClampLimit(limit)

	found, err := s.storage.SearchItems(ctx, ownerUserID, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, limit, fmt.Errorf("%w: search items: %v", storage.ErrQueryFailed, err)
	}

	dtos := make([]ItemDTO, len(found))
	for i, item := range found {
		dtos[i] = ToDTO(item)
	}
	return dtos, limit, nil
}

func (s *Service) Get(ctx context.Context, ownerUserID string, id uuid.UUID) (ItemDTO, error) {
	item, err := s.storage.GetItem(ctx, ownerUserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ItemDTO{}, ErrItemNotFound
	}
	if err != nil {
		return ItemDTO{}, fmt.Errorf("%w: get item: %v", storage.ErrQueryFailed, err)
	}
	return ToDTO(*item), nil
}
