package exercises

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrNotScheduled     = errors.New("exercise is not scheduled on this day")
)

// Service manages the weekly exercise plan and per-date completions.
type Service struct {
	exercises storage.ExercisesStorage
	startsOn  time.Weekday
	now       func() time.Time
}

func NewService(exercises storage.ExercisesStorage, startsOn time.Weekday) *Service {
	return &Service{
		exercises: exercises,
		startsOn:  startsOn,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, ownerUserID string, req UpsertExerciseRequest) (ExerciseDTO, error) {
	if err := req.Validate(); err != nil {
		return ExerciseDTO{}, fmt.Errorf("validation failed: %w", err)
	}

	existing, err := s.list(ctx, ownerUserID)
	if err != nil {
		return ExerciseDTO{}, err
	}
	if len(existing) >= MaxExercises {
		return ExerciseDTO{}, fmt.Errorf("validation failed: at most %d exercises per plan", MaxExercises)
	}
	if err := checkDayCapacity(existing, uuid.Nil, req.DaysMask); err != nil {
		return ExerciseDTO{}, err
	}

	e := fromRequest(ownerUserID, req)
	if err := s.exercises.CreateExercise(ctx, &e); err != nil {
		return ExerciseDTO{}, fmt.Errorf("failed to create exercise: %w", err)
	}
	return toDTO(e), nil
}

// Update перезаписывает упражнение целиком. Отметки прошлых дней сохраняются,
// даже если день выпал из маски: неделя показывает только запланированное.
func (s *Service) Update(ctx context.Context, ownerUserID string, id uuid.UUID, req UpsertExerciseRequest) (ExerciseDTO, error) {
	if err := req.Validate(); err != nil {
		return ExerciseDTO{}, fmt.Errorf("validation failed: %w", err)
	}

	existing, err := s.list(ctx, ownerUserID)
	if err != nil {
		return ExerciseDTO{}, err
	}
	if err := checkDayCapacity(existing, id, req.DaysMask); err != nil {
		return ExerciseDTO{}, err
	}

	e := fromRequest(ownerUserID, req)
	e.ID = id
	err = s.exercises.UpdateExercise(ctx, &e)
	if errors.Is(err, storage.ErrNotFound) {
		return ExerciseDTO{}, ErrExerciseNotFound
	}
	if err != nil {
		return ExerciseDTO{}, fmt.Errorf("failed to update exercise: %w", err)
	}
	return toDTO(e), nil
}

func (s *Service) List(ctx context.Context, ownerUserID string) ([]ExerciseDTO, error) {
	exercises, err := s.list(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	dtos := make([]ExerciseDTO, len(exercises))
	for i, e := range exercises {
		dtos[i] = toDTO(e)
	}
	return dtos, nil
}

func (s *Service) Delete(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	err := s.exercises.DeleteExercise(ctx, ownerUserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrExerciseNotFound
	}
	return err
}

// SetCompletion отмечает (done=true) или снимает отметку упражнения за дату.
// Отметить можно только день, на который упражнение запланировано.
func (s *Service) SetCompletion(ctx context.Context, ownerUserID string, id uuid.UUID, dateStr string, done bool) (CompletionResponse, error) {
	date, err := time.Parse(mealplans.DateLayout, dateStr)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("validation failed: date must be in YYYY-MM-DD format")
	}

	if done {
		exercises, err := s.list(ctx, ownerUserID)
		if err != nil {
			return CompletionResponse{}, err
		}
		e, ok := findExercise(exercises, id)
		if !ok {
			return CompletionResponse{}, ErrExerciseNotFound
		}
		if !ScheduledOn(e.DaysMask, date.Weekday()) {
			return CompletionResponse{}, ErrNotScheduled
		}
	}

	err = s.exercises.SetCompletion(ctx, ownerUserID, id, dateStr, done)
	if errors.Is(err, storage.ErrNotFound) {
		return CompletionResponse{}, ErrExerciseNotFound
	}
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to set completion: %w", err)
	}
	return CompletionResponse{ExerciseID: id, Date: dateStr, Done: done}, nil
}

// Week раскладывает план по дням недели, содержащей dateStr (сегодня, если пусто).
func (s *Service) Week(ctx context.Context, ownerUserID string, dateStr string) (Week, error) {
	ref := s.now().UTC()
	if dateStr != "" {
		parsed, err := time.Parse(mealplans.DateLayout, dateStr)
		if err != nil {
			return Week{}, fmt.Errorf("validation failed: date must be in YYYY-MM-DD format")
		}
		ref = parsed
	}

	start := mealplans.WeekStart(ref, s.startsOn)
	days := mealplans.WeekDays(start)
	from := start.Format(mealplans.DateLayout)
	to := days[len(days)-1].Format(mealplans.DateLayout)

	exercises, err := s.list(ctx, ownerUserID)
	if err != nil {
		return Week{}, err
	}
	completions, err := s.exercises.ListCompletions(ctx, ownerUserID, from, to)
	if err != nil {
		return Week{}, fmt.Errorf("%w: list completions: %v", storage.ErrQueryFailed, err)
	}

	return BuildWeek(start, s.startsOn, exercises, completions), nil
}

// BuildWeek lays the plan out over the 7 days starting at start.
func BuildWeek(start time.Time, startsOn time.Weekday, exercises []storage.Exercise, completions []storage.ExerciseCompletion) Week {
	type key struct {
		id   uuid.UUID
		date string
	}
	done := make(map[key]bool, len(completions))
	for _, c := range completions {
		done[key{c.ExerciseID, c.Date}] = true
	}

	days := mealplans.WeekDays(start)
	week := Week{
		Start:    start.Format(mealplans.DateLayout),
		End:      days[len(days)-1].Format(mealplans.DateLayout),
		Prev:     mealplans.Navigate(start, -1).Format(mealplans.DateLayout),
		Next:     mealplans.Navigate(start, 1).Format(mealplans.DateLayout),
		StartsOn: strings.ToLower(startsOn.String()),
		Days:     make([]Day, len(days)),
	}

	for i, d := range days {
		date := d.Format(mealplans.DateLayout)
		day := Day{
			Date:      date,
			Weekday:   strings.ToLower(d.Weekday().String()),
			Exercises: []DayExercise{},
		}
		for _, e := range exercises {
			if !ScheduledOn(e.DaysMask, d.Weekday()) {
				continue
			}
			day.Exercises = append(day.Exercises, DayExercise{
				ExerciseDTO: toDTO(e),
				Done:        done[key{e.ID, date}],
			})
		}
		day.Completed = len(day.Exercises) > 0
		for _, e := range day.Exercises {
			if !e.Done {
				day.Completed = false
				break
			}
		}
		week.Days[i] = day
	}
	return week
}

func (s *Service) list(ctx context.Context, ownerUserID string) ([]storage.Exercise, error) {
	exercises, err := s.exercises.ListExercises(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: list exercises: %v", storage.ErrQueryFailed, err)
	}
	return exercises, nil
}

// checkDayCapacity не даёт поставить больше MaxPerDay упражнений на один день.
// skip — ID обновляемого упражнения, его старая маска не учитывается.
func checkDayCapacity(existing []storage.Exercise, skip uuid.UUID, mask int) error {
	for bit := 0; bit < 7; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		count := 1
		for _, e := range existing {
			if e.ID != skip && e.DaysMask&(1<<bit) != 0 {
				count++
			}
		}
		if count > MaxPerDay {
			day := strings.ToLower(time.Weekday((bit + 1) % 7).String())
			return fmt.Errorf("validation failed: at most %d exercises on %s", MaxPerDay, day)
		}
	}
	return nil
}

func findExercise(exercises []storage.Exercise, id uuid.UUID) (storage.Exercise, bool) {
	for _, e := range exercises {
		if e.ID == id {
			return e, true
		}
	}
	return storage.Exercise{}, false
}

func fromRequest(ownerUserID string, req UpsertExerciseRequest) storage.Exercise {
	return storage.Exercise{
		OwnerUserID: ownerUserID,
		Name:        req.Name,
		Kind:        req.Kind,
		Sets:        req.Sets,
		Reps:        req.Reps,
		DaysMask:    req.DaysMask,
		PRWeight:    req.PRWeight,
		PRUnit:      req.PRUnit,
		Note:        req.Note,
	}
}

func toDTO(e storage.Exercise) ExerciseDTO {
	dto := ExerciseDTO{
		ID:        e.ID,
		Name:      e.Name,
		Kind:      e.Kind,
		Sets:      e.Sets,
		Reps:      e.Reps,
		SetsLabel: SetsLabel(e.Sets, e.Reps),
		DaysMask:  e.DaysMask,
		Days:      DayNames(e.DaysMask),
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.PRWeight != nil {
		unit := DefaultPRUnit
		if e.PRUnit != nil {
			unit = *e.PRUnit
		}
		dto.PR = &PersonalRecord{Weight: *e.PRWeight, Unit: unit}
	}
	return dto
}
