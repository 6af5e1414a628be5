package exercises

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/validation"
	"github.com/google/uuid"
)

const (
	MaxExercises  = 50
	MaxPerDay     = 12
	DefaultPRUnit = "kg"
)

// UpsertExerciseRequest is the body of POST /v1/exercises and PUT /v1/exercises/{id}.
type UpsertExerciseRequest struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Kind     string   `json:"kind" validate:"required,oneof=strength hypertrophy endurance"`
	Sets     int      `json:"sets" validate:"min=1,max=20"`
	Reps     int      `json:"reps" validate:"min=1,max=200"`
	DaysMask int      `json:"days_mask" validate:"min=1,max=127"`
	PRWeight *float64 `json:"pr_weight" validate:"omitempty,gt=0,max=1000"`
	PRUnit   *string  `json:"pr_unit" validate:"omitempty,oneof=kg lb"`
	Note     *string  `json:"note" validate:"omitempty,max=1000"`
}

// Validate нормализует запрос. Единица рекорда без веса не имеет смысла,
// вес без единицы считается в килограммах.
func (r *UpsertExerciseRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	if r.PRUnit != nil {
		u := strings.ToLower(strings.TrimSpace(*r.PRUnit))
		if u == "" {
			r.PRUnit = nil
		} else {
			r.PRUnit = &u
		}
	}
	if r.Note != nil {
		n := strings.TrimSpace(*r.Note)
		if n == "" {
			r.Note = nil
		} else {
			r.Note = &n
		}
	}
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.PRWeight == nil && r.PRUnit != nil {
		return errors.New("pr_unit requires pr_weight")
	}
	if r.PRWeight != nil && r.PRUnit == nil {
		unit := DefaultPRUnit
		r.PRUnit = &unit
	}
	return nil
}

type PersonalRecord struct {
	Weight float64 `json:"weight"`
	Unit   string  `json:"unit"`
}

type ExerciseDTO struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Sets      int             `json:"sets"`
	Reps      int             `json:"reps"`
	SetsLabel string          `json:"sets_label"`
	DaysMask  int             `json:"days_mask"`
	Days      []string        `json:"days"`
	PR        *PersonalRecord `json:"pr,omitempty"`
	Note      *string         `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ListExercisesResponse struct {
	Exercises []ExerciseDTO `json:"exercises"`
}

// DayExercise — упражнение в колонке дня с отметкой о выполнении.
type DayExercise struct {
	ExerciseDTO
	Done bool `json:"done"`
}

// Day — колонка недели. Completed true, когда в день что-то запланировано
// и всё отмечено.
type Day struct {
	Date      string        `json:"date"`
	Weekday   string        `json:"weekday"`
	Exercises []DayExercise `json:"exercises"`
	Completed bool          `json:"completed"`
}

type Week struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Prev     string `json:"prev"`
	Next     string `json:"next"`
	StartsOn string `json:"starts_on"`
	Days     []Day  `json:"days"`
}

// CompletionResponse отвечает на PUT/DELETE отметки.
type CompletionResponse struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	Date       string    `json:"date"`
	Done       bool      `json:"done"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// weekdayBit: понедельник — бит 0, воскресенье — бит 6.
func weekdayBit(d time.Weekday) int {
	return 1 << ((int(d) + 6) % 7)
}

// ScheduledOn сообщает, запланировано ли упражнение с маской mask на день d.
func ScheduledOn(mask int, d time.Weekday) bool {
	return mask&weekdayBit(d) != 0
}

// DayNames раскладывает маску в имена дней с понедельника.
func DayNames(mask int) []string {
	names := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		if mask&(1<<i) != 0 {
			names = append(names, strings.ToLower(time.Weekday((i+1)%7).String()))
		}
	}
	return names
}

// SetsLabel — подпись вида "5 x 5 reps".
func SetsLabel(sets, reps int) string {
	return fmt.Sprintf("%d x %d reps", sets, reps)
}
