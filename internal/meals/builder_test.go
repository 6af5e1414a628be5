package meals

import (
	"errors"
	"testing"

	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/google/uuid"
)

func TestBuilder_SelectIncrementDecrement(t *testing.T) {
	b := NewBuilder()
	id := uuid.New()

	if !b.Select(id, nutrition.Grams) {
		t.Fatal("expected first select to add the item")
	}
	if b.Select(id, nutrition.Cups) {
		t.Fatal("expected second select to be a no-op")
	}
	if q, _ := b.Quantity(id); q != DefaultQuantity {
		t.Fatalf("expected default quantity %d, got %v", DefaultQuantity, q)
	}

	q, err := b.Increment(id)
	if err != nil || q != 150 {
		t.Fatalf("expected 150 after increment, got %v (%v)", q, err)
	}

	q, _ = b.Decrement(id)
	q, _ = b.Decrement(id)
	if q != 50 {
		t.Fatalf("expected 50, got %v", q)
	}

	q, err = b.Decrement(id)
	if err != nil || q != 0 {
		t.Fatalf("expected 0 after final decrement, got %v (%v)", q, err)
	}
	if b.Len() != 0 {
		t.Fatal("expected line to be dropped when quantity reaches zero")
	}
	if _, ok := b.Quantity(id); ok {
		t.Fatal("item should no longer be selected")
	}
}

func TestBuilder_DecrementClampsBelowStep(t *testing.T) {
	b := NewBuilder()
	id := uuid.New()
	b.Select(id, nutrition.Grams)
	_ = b.SetQuantity(id, 30)

	q, err := b.Decrement(id)
	if err != nil || q != 0 {
		t.Fatalf("expected clamp to 0, got %v (%v)", q, err)
	}
	if b.Len() != 0 {
		t.Fatal("expected line removed")
	}
}

func TestBuilder_UnknownItem(t *testing.T) {
	b := NewBuilder()
	id := uuid.New()

	if _, err := b.Increment(id); !errors.Is(err, ErrItemNotSelected) {
		t.Fatalf("expected ErrItemNotSelected, got %v", err)
	}
	if _, err := b.Decrement(id); !errors.Is(err, ErrItemNotSelected) {
		t.Fatalf("expected ErrItemNotSelected, got %v", err)
	}
	if err := b.SetQuantity(id, 10); !errors.Is(err, ErrItemNotSelected) {
		t.Fatalf("expected ErrItemNotSelected, got %v", err)
	}
}

func TestBuilder_RequestKeepsOrderAndState(t *testing.T) {
	b := NewBuilder()
	first, second := uuid.New(), uuid.New()
	b.Select(first, nutrition.Grams)
	b.Select(second, nutrition.Unit("bogus"))

	if _, err := b.Request("  ", ""); !errors.Is(err, ErrEmptyMealName) {
		t.Fatalf("expected ErrEmptyMealName, got %v", err)
	}

	req, err := b.Request("Breakfast bowl", "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Description != nil {
		t.Fatal("expected blank description to be omitted")
	}
	if len(req.Items) != 2 || req.Items[0].ItemID != first || req.Items[1].ItemID != second {
		t.Fatalf("expected selection order preserved, got %+v", req.Items)
	}
	if req.Items[1].Unit != string(nutrition.Grams) {
		t.Fatalf("expected invalid unit to fall back to grams, got %q", req.Items[1].Unit)
	}

	req.Items[0].Quantity = 999
	if q, _ := b.Quantity(first); q != DefaultQuantity {
		t.Fatal("request must not alias builder state")
	}

	b.Remove(first)
	b.Remove(second)
	if _, err := b.Request("x", ""); !errors.Is(err, ErrNoItemsSelected) {
		t.Fatalf("expected ErrNoItemsSelected, got %v", err)
	}
}
