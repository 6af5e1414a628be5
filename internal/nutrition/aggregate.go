package nutrition

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrDanglingReference = errors.New("dangling reference")
	ErrInvalidPortions   = errors.New("portions must be greater than 0")
)

const (
	NutrientCalories = "calories"
	NutrientProtein  = "protein"
	NutrientCarbs    = "carbs"
	NutrientFat      = "fat"
	NutrientFiber    = "fiber"
)

// Nutrients holds per-100-unit values. nil means the value was never set.
type Nutrients struct {
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
	Fiber    *float64 `json:"fiber"`
}

func (n Nutrients) fields() [5]*float64 {
	return [5]*float64{n.Calories, n.Protein, n.Carbs, n.Fat, n.Fiber}
}

var nutrientNames = [5]string{NutrientCalories, NutrientProtein, NutrientCarbs, NutrientFat, NutrientFiber}

// Line is one (item, quantity, unit) entry of a meal composition.
type Line struct {
	ItemID   uuid.UUID
	Quantity float64
	Unit     Unit
}

// ItemBasis is the part of an item the aggregation needs.
type ItemBasis struct {
	ID          uuid.UUID
	Per100      Nutrients
	DefaultUnit Unit
}

// Totals is an aggregated nutrient sum. Missing names the nutrients that
// at least one contributing item left unset; those were skipped.
type Totals struct {
	Calories float64  `json:"calories"`
	Protein  float64  `json:"protein"`
	Carbs    float64  `json:"carbs"`
	Fat      float64  `json:"fat"`
	Fiber    float64  `json:"fiber"`
	Missing  []string `json:"missing,omitempty"`
}

func (t Totals) Partial() bool {
	return len(t.Missing) > 0
}

func (t *Totals) values() [5]*float64 {
	return [5]*float64{&t.Calories, &t.Protein, &t.Carbs, &t.Fat, &t.Fiber}
}

// DanglingReferenceError lists item IDs that did not resolve.
type DanglingReferenceError struct {
	ItemIDs []uuid.UUID
}

func (e *DanglingReferenceError) Error() string {
	ids := make([]string, len(e.ItemIDs))
	for i, id := range e.ItemIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("dangling reference: unknown items %s", strings.Join(ids, ", "))
}

func (e *DanglingReferenceError) Is(target error) bool {
	return target == ErrDanglingReference
}

// Aggregate computes sum(per100 * qty / 100) * portions over lines, with
// each quantity first converted into its item's default unit.
func Aggregate(lines []Line, items map[uuid.UUID]ItemBasis, portions float64) (Totals, error) {
	if portions <= 0 || math.IsNaN(portions) || math.IsInf(portions, 0) {
		return Totals{}, ErrInvalidPortions
	}

	var (
		totals   Totals
		missing  [5]bool
		dangling []uuid.UUID
	)

	for _, line := range lines {
		item, ok := items[line.ItemID]
		if !ok {
			dangling = append(dangling, line.ItemID)
			continue
		}

		qty, err := Convert(line.Quantity, line.Unit, item.DefaultUnit)
		if err != nil {
			var unitErr *IncompatibleUnitError
			if errors.As(err, &unitErr) {
				unitErr.ItemID = item.ID
			}
			return Totals{}, err
		}

		sums := totals.values()
		for i, per100 := range item.Per100.fields() {
			if per100 == nil {
				missing[i] = true
				continue
			}
			*sums[i] += *per100 * qty / 100
		}
	}

	if len(dangling) > 0 {
		return Totals{}, &DanglingReferenceError{ItemIDs: dangling}
	}

	for _, v := range totals.values() {
		*v *= portions
	}
	for i, m := range missing {
		if m {
			totals.Missing = append(totals.Missing, nutrientNames[i])
		}
	}

	return totals, nil
}

// Sum adds b to a. Missing is the union of both.
func Sum(a, b Totals) Totals {
	out := a
	out.Missing = nil
	dst := out.values()
	src := b.values()
	for i := range dst {
		*dst[i] += *src[i]
	}

	seen := make(map[string]bool, len(a.Missing)+len(b.Missing))
	for _, m := range append(append([]string{}, a.Missing...), b.Missing...) {
		seen[m] = true
	}
	for _, name := range nutrientNames {
		if seen[name] {
			out.Missing = append(out.Missing, name)
		}
	}
	return out
}

// Rounded rounds every total to one decimal for presentation.
func (t Totals) Rounded() Totals {
	out := t
	for _, v := range out.values() {
		*v = math.Round(*v*10) / 10
	}
	return out
}
