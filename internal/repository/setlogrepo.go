// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// SetLogRepository stores persisted sets. Implementations enforce two uniqueness
// rules: (session exercise, client log id) and (session exercise, set index).
type SetLogRepository interface {
	// FindByClientLogID returns the set stored for the idempotency key, or errs.ErrNotFound.
	FindByClientLogID(ctx context.Context, userID, sessionExerciseID, clientLogID uuid.UUID) (*model.SetLog, error)

	// MaxSetIndex returns the highest set index of the exercise, -1 when it has none.
	MaxSetIndex(ctx context.Context, sessionExerciseID uuid.UUID) (int, error)

	// Insert stores a new set. It returns errs.ErrSequenceTaken when the set index is
	// already used and errs.ErrAlreadyExists when the client log id is.
	Insert(ctx context.Context, s *model.SetLog) error

	// ListBySessionExercise returns the user's sets of one exercise ordered by set index.
	ListBySessionExercise(ctx context.Context, userID, sessionExerciseID uuid.UUID) ([]model.SetLog, error)
}
