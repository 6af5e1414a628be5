package mealplans

import (
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/meals"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

const (
	DateLayout  = "2006-01-02"
	DaysPerWeek = 7
)

// Warning codes attached to a cell whose totals could not be computed.
const (
	WarningDanglingReference = "dangling_reference"
	WarningIncompatibleUnit  = "incompatible_unit"
	WarningInvalidPortions   = "invalid_portions"
)

// WeekStart returns the most recent startsOn weekday on or before ref, at midnight UTC.
func WeekStart(ref time.Time, startsOn time.Weekday) time.Time {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(startsOn) + DaysPerWeek) % DaysPerWeek
	return day.AddDate(0, 0, -offset)
}

// WeekDays returns the 7 consecutive days starting at start.
func WeekDays(start time.Time) []time.Time {
	days := make([]time.Time, DaysPerWeek)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// Navigate shifts ref by delta weeks.
func Navigate(ref time.Time, delta int) time.Time {
	return ref.AddDate(0, 0, DaysPerWeek*delta)
}

type CellEntry struct {
	ID          uuid.UUID `json:"id"`
	MealID      uuid.UUID `json:"meal_id"`
	MealName    string    `json:"meal_name,omitempty"`
	Portions    float64   `json:"portions"`
	Notes       *string   `json:"notes,omitempty"`
	MissingMeal bool      `json:"missing_meal,omitempty"`
}

// Cell — ячейка сетки (день, слот). Entry == nil означает пустую ячейку,
// Date и Slot тогда служат данными для создания записи.
type Cell struct {
	Date      string             `json:"date"`
	Slot      nutrition.MealSlot `json:"meal_type"`
	Entry     *CellEntry         `json:"entry,omitempty"`
	Conflicts int                `json:"conflicts,omitempty"`
	Totals    *nutrition.Totals  `json:"totals,omitempty"`
	Warning   string             `json:"warning,omitempty"`
}

func (c Cell) Empty() bool {
	return c.Entry == nil
}

type Day struct {
	Date    string           `json:"date"`
	Weekday string           `json:"weekday"`
	Cells   []Cell           `json:"cells"`
	Totals  nutrition.Totals `json:"totals"`
}

type Week struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Prev     string `json:"prev"`
	Next     string `json:"next"`
	StartsOn string `json:"starts_on"`
	Days     []Day  `json:"days"`
}

// Cells returns all cells day by day, slots in MealSlots order.
func (w Week) Cells() []Cell {
	cells := make([]Cell, 0, len(w.Days)*len(nutrition.MealSlots))
	for _, d := range w.Days {
		cells = append(cells, d.Cells...)
	}
	return cells
}

// Day returns the column for date, if it is in the week.
func (w Week) Day(date string) (Day, bool) {
	for _, d := range w.Days {
		if d.Date == date {
			return d, true
		}
	}
	return Day{}, false
}

type cellKey struct {
	date string
	slot nutrition.MealSlot
}

// BuildWeek lays entries out on a 7x4 grid for the week containing ref.
// Several entries in one cell resolve to the earliest created (then lowest id);
// the rest are counted in Conflicts. Entries outside the week are ignored.
func BuildWeek(
	ref time.Time,
	startsOn time.Weekday,
	entries []storage.MealPlanEntry,
	mealsByID map[uuid.UUID]storage.Meal,
	itemsByID map[uuid.UUID]storage.Item,
	logger *log.Logger,
) Week {
	if logger == nil {
		logger = log.Default()
	}

	start := WeekStart(ref, startsOn)
	days := WeekDays(start)

	sorted := append([]storage.MealPlanEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	inWeek := make(map[string]bool, DaysPerWeek)
	for _, d := range days {
		inWeek[d.Format(DateLayout)] = true
	}

	winners := make(map[cellKey]storage.MealPlanEntry)
	conflicts := make(map[cellKey]int)
	for _, e := range sorted {
		if !inWeek[e.Date] {
			continue
		}
		slot := nutrition.MealSlot(strings.ToLower(e.MealType))
		if !slot.Valid() {
			logger.Printf("WARN week: skipping entry id=%s with unknown meal_type=%q", e.ID, e.MealType)
			continue
		}
		key := cellKey{e.Date, slot}
		if _, taken := winners[key]; taken {
			conflicts[key]++
			continue
		}
		winners[key] = e
	}

	week := Week{
		Start:    start.Format(DateLayout),
		End:      days[DaysPerWeek-1].Format(DateLayout),
		Prev:     Navigate(start, -1).Format(DateLayout),
		Next:     Navigate(start, 1).Format(DateLayout),
		StartsOn: strings.ToLower(startsOn.String()),
		Days:     make([]Day, DaysPerWeek),
	}

	for i, d := range days {
		date := d.Format(DateLayout)
		day := Day{
			Date:    date,
			Weekday: strings.ToLower(d.Weekday().String()),
			Cells:   make([]Cell, len(nutrition.MealSlots)),
		}

		for j, slot := range nutrition.MealSlots {
			key := cellKey{date, slot}
			cell := Cell{Date: date, Slot: slot, Conflicts: conflicts[key]}

			if e, ok := winners[key]; ok {
				if cell.Conflicts > 0 {
					logger.Printf("WARN week: %d extra entries for date=%s meal_type=%s, showing id=%s", cell.Conflicts, date, slot, e.ID)
				}
				cell.Entry = &CellEntry{
					ID:       e.ID,
					MealID:   e.MealID,
					Portions: e.Portions,
					Notes:    e.Notes,
				}
				fillCell(&cell, e, mealsByID, itemsByID)
				if cell.Totals != nil {
					day.Totals = nutrition.Sum(day.Totals, *cell.Totals)
				}
			}

			day.Cells[j] = cell
		}

		day.Totals = day.Totals.Rounded()
		week.Days[i] = day
	}

	return week
}

func fillCell(cell *Cell, e storage.MealPlanEntry, mealsByID map[uuid.UUID]storage.Meal, itemsByID map[uuid.UUID]storage.Item) {
	meal, ok := mealsByID[e.MealID]
	if !ok {
		cell.Entry.MissingMeal = true
		return
	}
	cell.Entry.MealName = meal.Name

	totals, err := meals.Aggregate(meal, itemsByID, e.Portions)
	switch {
	case err == nil:
		rounded := totals.Rounded()
		cell.Totals = &rounded
	case errors.Is(err, nutrition.ErrDanglingReference):
		cell.Warning = WarningDanglingReference
	case errors.Is(err, nutrition.ErrIncompatibleUnit):
		cell.Warning = WarningIncompatibleUnit
	default:
		cell.Warning = WarningInvalidPortions
	}
}
