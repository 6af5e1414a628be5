package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

type completionKey struct {
	exerciseID uuid.UUID
	date       string
}

type exercisesStorage struct {
	mu        sync.RWMutex
	exercises map[uuid.UUID]storage.Exercise
	byOwner   map[string][]uuid.UUID
	done      map[completionKey]time.Time
}

func newExercisesStorage() *exercisesStorage {
	return &exercisesStorage{
		exercises: make(map[uuid.UUID]storage.Exercise),
		byOwner:   make(map[string][]uuid.UUID),
		done:      make(map[completionKey]time.Time),
	}
}

func (s *exercisesStorage) CreateExercise(ctx context.Context, exercise *storage.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exercise.ID == uuid.Nil {
		exercise.ID = uuid.New()
	}
	now := time.Now().UTC()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now

	s.exercises[exercise.ID] = *exercise
	s.byOwner[exercise.OwnerUserID] = append(s.byOwner[exercise.OwnerUserID], exercise.ID)
	return nil
}

func (s *exercisesStorage) UpdateExercise(ctx context.Context, exercise *storage.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.exercises[exercise.ID]
	if !ok || existing.OwnerUserID != exercise.OwnerUserID {
		return storage.ErrNotFound
	}
	exercise.CreatedAt = existing.CreatedAt
	exercise.UpdatedAt = time.Now().UTC()
	s.exercises[exercise.ID] = *exercise
	return nil
}

func (s *exercisesStorage) ListExercises(ctx context.Context, ownerUserID string) ([]storage.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.Exercise, 0, len(s.byOwner[ownerUserID]))
	for _, id := range s.byOwner[ownerUserID] {
		result = append(result, s.exercises[id])
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return result, nil
}

func (s *exercisesStorage) DeleteExercise(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exercises[id]
	if !ok || e.OwnerUserID != ownerUserID {
		return storage.ErrNotFound
	}
	delete(s.exercises, id)

	ids := s.byOwner[ownerUserID]
	for i, existing := range ids {
		if existing == id {
			s.byOwner[ownerUserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	for key := range s.done {
		if key.exerciseID == id {
			delete(s.done, key)
		}
	}
	return nil
}

func (s *exercisesStorage) SetCompletion(ctx context.Context, ownerUserID string, exerciseID uuid.UUID, date string, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exercises[exerciseID]
	if !ok || e.OwnerUserID != ownerUserID {
		return storage.ErrNotFound
	}

	key := completionKey{exerciseID: exerciseID, date: date}
	if !done {
		delete(s.done, key)
		return nil
	}
	if _, exists := s.done[key]; !exists {
		s.done[key] = time.Now().UTC()
	}
	return nil
}

func (s *exercisesStorage) ListCompletions(ctx context.Context, ownerUserID string, from, to string) ([]storage.ExerciseCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.ExerciseCompletion, 0)
	for key, at := range s.done {
		if s.exercises[key.exerciseID].OwnerUserID != ownerUserID {
			continue
		}
		if key.date < from || key.date > to {
			continue
		}
		result = append(result, storage.ExerciseCompletion{
			ExerciseID:  key.exerciseID,
			OwnerUserID: ownerUserID,
			Date:        key.date,
			CreatedAt:   at,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].ExerciseID.String() < result[j].ExerciseID.String()
	})
	return result, nil
}
