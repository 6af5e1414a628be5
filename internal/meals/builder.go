package meals

import (
	"errors"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/google/uuid"
)

const (
	// DefaultQuantity — количество для только что выбранного продукта.
	DefaultQuantity = 100
	// QuantityStep — шаг кнопок +/-.
	QuantityStep = 50
)

var (
	ErrEmptyMealName   = errors.New("meal name is required")
	ErrNoItemsSelected = errors.New("select at least one item")
	ErrItemNotSelected = errors.New("item is not selected")
)

// Builder собирает состав блюда по шагам, как редактор на клиенте.
// Не потокобезопасен.
type Builder struct {
	lines []MealLineInput
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) index(itemID uuid.UUID) int {
	for i, l := range b.lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Select adds the item at DefaultQuantity. Selecting an already selected
// item changes nothing and returns false.
func (b *Builder) Select(itemID uuid.UUID, unit nutrition.Unit) bool {
	if b.index(itemID) >= 0 {
		return false
	}
	if !unit.Valid() {
		unit = nutrition.Grams
	}
	b.lines = append(b.lines, MealLineInput{ItemID: itemID, Quantity: DefaultQuantity, Unit: string(unit)})
	return true
}

// Increment adds QuantityStep and returns the new quantity.
func (b *Builder) Increment(itemID uuid.UUID) (float64, error) {
	i := b.index(itemID)
	if i < 0 {
		return 0, ErrItemNotSelected
	}
	b.lines[i].Quantity += QuantityStep
	return b.lines[i].Quantity, nil
}

// Decrement subtracts QuantityStep. A result at or below zero drops the line
// and returns 0.
func (b *Builder) Decrement(itemID uuid.UUID) (float64, error) {
	i := b.index(itemID)
	if i < 0 {
		return 0, ErrItemNotSelected
	}
	q := b.lines[i].Quantity - QuantityStep
	if q <= 0 {
		b.removeAt(i)
		return 0, nil
	}
	b.lines[i].Quantity = q
	return q, nil
}

// SetQuantity sets an explicit quantity; q <= 0 removes the line.
func (b *Builder) SetQuantity(itemID uuid.UUID, q float64) error {
	i := b.index(itemID)
	if i < 0 {
		return ErrItemNotSelected
	}
	if q <= 0 {
		b.removeAt(i)
		return nil
	}
	b.lines[i].Quantity = q
	return nil
}

func (b *Builder) Remove(itemID uuid.UUID) {
	if i := b.index(itemID); i >= 0 {
		b.removeAt(i)
	}
}

func (b *Builder) removeAt(i int) {
	b.lines = append(b.lines[:i], b.lines[i+1:]...)
}

func (b *Builder) Quantity(itemID uuid.UUID) (float64, bool) {
	if i := b.index(itemID); i >= 0 {
		return b.lines[i].Quantity, true
	}
	return 0, false
}

// Lines returns a copy of the selection in the order items were selected.
func (b *Builder) Lines() []MealLineInput {
	return append([]MealLineInput(nil), b.lines...)
}

func (b *Builder) Len() int {
	return len(b.lines)
}

func (b *Builder) Reset() {
	b.lines = nil
}

// Request builds the create payload. The builder is left untouched so a
// failed submit can be retried.
func (b *Builder) Request(name, description string) (CreateMealRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CreateMealRequest{}, ErrEmptyMealName
	}
	if len(b.lines) == 0 {
		return CreateMealRequest{}, ErrNoItemsSelected
	}

	req := CreateMealRequest{Name: name, Items: b.Lines()}
	if d := strings.TrimSpace(description); d != "" {
		req.Description = &d
	}
	return req, nil
}
