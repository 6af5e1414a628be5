package items

import (
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/fdg312/nutrition-planner/internal/validation"
	"github.com/google/uuid"
)

// ItemDTO — продукт в ответе API. Нутриенты на 100 единиц default_unit,
// null означает «не задано».
type ItemDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	DefaultUnit nutrition.Unit `json:"default_unit"`
	nutrition.Nutrients
	CreatedAt time.Time `json:"created_at"`
}

type CreateItemRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Calories    *float64 `json:"calories" validate:"omitempty,gte=0"`
	Protein     *float64 `json:"protein" validate:"omitempty,gte=0"`
	Carbs       *float64 `json:"carbs" validate:"omitempty,gte=0"`
	Fat         *float64 `json:"fat" validate:"omitempty,gte=0"`
	Fiber       *float64 `json:"fiber" validate:"omitempty,gte=0"`
	DefaultUnit string   `json:"default_unit" validate:"omitempty,unit"`
}

type ListItemsResponse struct {
	Items []ItemDTO `json:"items"`
	Query string    `json:"query"`
	Limit int       `json:"limit"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate нормализует запрос (trim, пустое описание в nil, единица по умолчанию)
// и проверяет его.
func (r *CreateItemRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		if d == "" {
			r.Description = nil
		} else {
			r.Description = &d
		}
	}
	r.DefaultUnit = strings.ToLower(strings.TrimSpace(r.DefaultUnit))
	if r.DefaultUnit == "" {
		r.DefaultUnit = string(nutrition.Grams)
	}
	return validation.Struct(r)
}

// ToDTO converts a stored item to its API shape.
func ToDTO(item storage.Item) ItemDTO {
	return ItemDTO{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		DefaultUnit: nutrition.Unit(item.DefaultUnit),
		Nutrients:   Per100(item),
		CreatedAt:   item.CreatedAt,
	}
}

func Per100(item storage.Item) nutrition.Nutrients {
	return nutrition.Nutrients{
		Calories: item.Calories,
		Protein:  item.Protein,
		Carbs:    item.Carbs,
		Fat:      item.Fat,
		Fiber:    item.Fiber,
	}
}

// Basis returns the aggregation view of an item.
func Basis(item storage.Item) nutrition.ItemBasis {
	return nutrition.ItemBasis{
		ID:          item.ID,
		Per100:      Per100(item),
		DefaultUnit: nutrition.Unit(item.DefaultUnit),
	}
}
