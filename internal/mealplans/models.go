package mealplans

import (
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/validation"
	"github.com/google/uuid"
)

type CreateEntryRequest struct {
	MealID   uuid.UUID `json:"meal_id" validate:"required"`
	Date     string    `json:"date" validate:"required,datetime=2006-01-02"`
	MealType string    `json:"meal_type" validate:"required,meal_slot"`
	Portions *float64  `json:"portions" validate:"omitempty,gt=0,lte=100"`
	Notes    *string   `json:"notes" validate:"omitempty,max=1000"`
}

type EntryDTO struct {
	ID          uuid.UUID          `json:"id"`
	MealID      uuid.UUID          `json:"meal_id"`
	MealName    string             `json:"meal_name,omitempty"`
	MissingMeal bool               `json:"missing_meal,omitempty"`
	Date        string             `json:"date"`
	MealType    nutrition.MealSlot `json:"meal_type"`
	Portions    float64            `json:"portions"`
	Notes       *string            `json:"notes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type ListEntriesResponse struct {
	From    string     `json:"from"`
	To      string     `json:"to"`
	Entries []EntryDTO `json:"entries"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate нормализует запрос: пустые заметки становятся nil, portions по умолчанию 1.
func (r *CreateEntryRequest) Validate() error {
	r.Date = strings.TrimSpace(r.Date)
	r.MealType = strings.ToLower(strings.TrimSpace(r.MealType))
	if r.Notes != nil {
		n := strings.TrimSpace(*r.Notes)
		if n == "" {
			r.Notes = nil
		} else {
			r.Notes = &n
		}
	}
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.Portions == nil {
		one := 1.0
		r.Portions = &one
	}
	return nil
}
