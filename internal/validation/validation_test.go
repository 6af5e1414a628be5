package validation

import (
	"strings"
	"testing"
)

type sample struct {
	Name     string  `json:"name" validate:"required,max=10"`
	Unit     string  `json:"unit" validate:"omitempty,unit"`
	Slot     string  `json:"meal_type" validate:"required,meal_slot"`
	Portions float64 `json:"portions" validate:"gt=0"`
	Lines    []line  `json:"items" validate:"required,min=1,dive"`
}

type line struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

func TestStruct(t *testing.T) {
	valid := sample{Name: "Oats", Unit: "cups", Slot: "breakfast", Portions: 1, Lines: []line{{Quantity: 1}}}

	tests := []struct {
		name    string
		mutate  func(s *sample)
		wantErr string
	}{
		{"valid", func(s *sample) {}, ""},
		{"missing name", func(s *sample) { s.Name = "" }, "name is required"},
		{"long name", func(s *sample) { s.Name = "abcdefghijk" }, "name must be at most 10 characters"},
		{"bad unit", func(s *sample) { s.Unit = "ounces" }, "unit must be one of grams"},
		{"empty unit allowed", func(s *sample) { s.Unit = "" }, ""},
		{"bad slot", func(s *sample) { s.Slot = "brunch" }, "meal_type must be one of breakfast"},
		{"zero portions", func(s *sample) { s.Portions = 0 }, "portions must be greater than 0"},
		{"no lines", func(s *sample) { s.Lines = []line{} }, "items must contain at least 1 entries"},
		{"bad line", func(s *sample) { s.Lines = []line{{Quantity: -2}} }, "items[0].quantity must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			s.Lines = append([]line(nil), valid.Lines...)
			tt.mutate(&s)

			err := Struct(s)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
