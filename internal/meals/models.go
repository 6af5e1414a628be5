package meals

import (
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/validation"
	"github.com/google/uuid"
)

type MealLineInput struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity float64   `json:"quantity" validate:"gt=0"`
	Unit     string    `json:"unit" validate:"required,unit"`
}

type CreateMealRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Items       []MealLineInput `json:"items" validate:"required,min=1,max=100,dive"`
}

// MealLineDTO — строка состава. Missing=true, если продукт больше не найден.
type MealLineDTO struct {
	ItemID   uuid.UUID      `json:"item_id"`
	ItemName string         `json:"item_name,omitempty"`
	Quantity float64        `json:"quantity"`
	Unit     nutrition.Unit `json:"unit"`
	Missing  bool           `json:"missing,omitempty"`
}

type MealDTO struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	Items       []MealLineDTO `json:"items"`
	CreatedAt   time.Time     `json:"created_at"`
}

type ListMealsResponse struct {
	Meals []MealDTO `json:"meals"`
	Query string    `json:"query"`
	Limit int       `json:"limit"`
}

type MealNutrientsResponse struct {
	MealID   uuid.UUID        `json:"meal_id"`
	Portions float64          `json:"portions"`
	Totals   nutrition.Totals `json:"totals"`
	Partial  bool             `json:"partial"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	ItemIDs []uuid.UUID `json:"item_ids,omitempty"`
}

func (r *CreateMealRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		if d == "" {
			r.Description = nil
		} else {
			r.Description = &d
		}
	}
	for i := range r.Items {
		r.Items[i].Unit = strings.ToLower(strings.TrimSpace(r.Items[i].Unit))
	}
	return validation.Struct(r)
}

// mergeLines складывает количества строк с одинаковыми (item_id, unit),
// сохраняя порядок первого появления.
func mergeLines(lines []MealLineInput) []MealLineInput {
	type key struct {
		id   uuid.UUID
		unit string
	}
	index := make(map[key]int, len(lines))
	merged := make([]MealLineInput, 0, len(lines))
	for _, l := range lines {
		k := key{l.ItemID, l.Unit}
		if i, ok := index[k]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, l)
	}
	return merged
}
