package nutrition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Unit единица измерения количества продукта.
type Unit string

const (
	Grams       Unit = "grams"
	Milliliters Unit = "milliliters"
	Pieces      Unit = "pieces"
	Servings    Unit = "servings"
	Cups        Unit = "cups"
	Tablespoons Unit = "tablespoons"
	Teaspoons   Unit = "teaspoons"
)

// Units lists every accepted unit in display order.
var Units = []Unit{Grams, Milliliters, Pieces, Servings, Cups, Tablespoons, Teaspoons}

var (
	ErrUnknownUnit      = errors.New("unknown unit")
	ErrUnknownMealSlot  = errors.New("unknown meal slot")
	ErrIncompatibleUnit = errors.New("incompatible unit")
)

// gramsPerUnit converts mass and volume units to grams.
// Volume assumes a density of 1 g/ml.
var gramsPerUnit = map[Unit]float64{
	Grams:       1,
	Milliliters: 1,
	Cups:        240,
	Tablespoons: 15,
	Teaspoons:   5,
}

func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

func ParseUnit(raw string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(raw)))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, raw)
	}
	return u, nil
}

// IncompatibleUnitError reports a quantity that cannot be expressed in the
// item's per-100 basis unit.
type IncompatibleUnitError struct {
	ItemID uuid.UUID
	From   Unit
	To     Unit
}

func (e *IncompatibleUnitError) Error() string {
	if e.ItemID == uuid.Nil {
		return fmt.Sprintf("incompatible unit: cannot convert %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("incompatible unit: item %s is measured in %s, got %s", e.ItemID, e.To, e.From)
}

func (e *IncompatibleUnitError) Is(target error) bool {
	return target == ErrIncompatibleUnit
}

// Convert expresses qty (in from) in the unit to.
// pieces and servings only convert to themselves.
func Convert(qty float64, from, to Unit) (float64, error) {
	if from == to {
		return qty, nil
	}
	fromGrams, okFrom := gramsPerUnit[from]
	toGrams, okTo := gramsPerUnit[to]
	if !okFrom || !okTo {
		return 0, &IncompatibleUnitError{From: from, To: to}
	}
	return qty * fromGrams / toGrams, nil
}

// MealSlot слот приёма пищи в календаре.
type MealSlot string

const (
	Breakfast MealSlot = "breakfast"
	Lunch     MealSlot = "lunch"
	Dinner    MealSlot = "dinner"
	Snack     MealSlot = "snack"
)

// MealSlots is the fixed row order of the weekly grid.
var MealSlots = []MealSlot{Breakfast, Lunch, Dinner, Snack}

func (s MealSlot) Valid() bool {
	switch s {
	case Breakfast, Lunch, Dinner, Snack:
		return true
	}
	return false
}

func ParseMealSlot(raw string) (MealSlot, error) {
	s := MealSlot(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMealSlot, raw)
	}
	return s, nil
}
