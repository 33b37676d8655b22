// Package service contains the application services behind the set-log endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/retry"
)

// AppendInput is one set-log write as sent by a device.
type AppendInput struct {
	SessionID         uuid.UUID
	SessionExerciseID uuid.UUID
	ClientLogID       uuid.UUID
	Payload           model.SetPayload
	LoggedAt          time.Time // optional, server clock when zero
}

// BatchOutcome is the per-item result of AppendBatch. Exactly one of Set or Err is meaningful.
type BatchOutcome struct {
	Set model.SetLog
	Err error
}

// SetLogService defines the idempotent append and its read side.
type SetLogService interface {
	// Append stores the set once per (session exercise, client log id) and returns
	// the stored row. Repeating the call returns the same row.
	Append(ctx context.Context, userID uuid.UUID, in AppendInput) (model.SetLog, error)
	// AppendBatch appends items one by one. Once an item of an exercise fails, later
	// items of that exercise fail with errs.ErrBlockedByEarlier.
	AppendBatch(ctx context.Context, userID uuid.UUID, items []AppendInput) ([]BatchOutcome, error)
	// ListSessionExercise returns the user's sets of one exercise by set index.
	ListSessionExercise(ctx context.Context, userID, sessionExerciseID uuid.UUID) ([]model.SetLog, error)
}

type SetLogServiceImpl struct {
	repo        repository.SetLogRepository
	maxBatch    int
	maxAttempts int
	now         func() time.Time
}

// NewSetLogService constructs SetLogService. Non-positive limits fall back to
// 1000 items per batch and 5 allocation attempts.
func NewSetLogService(repo repository.SetLogRepository, maxBatch, maxAttempts int) *SetLogServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &SetLogServiceImpl{repo: repo, maxBatch: maxBatch, maxAttempts: maxAttempts, now: time.Now}
}

// Append validates before touching storage. A new client log id gets
// MAX(set_index)+1; the insert is retried only when another writer took that index.
func (s *SetLogServiceImpl) Append(ctx context.Context, userID uuid.UUID, in AppendInput) (model.SetLog, error) {
	if err := validateAppend(userID, in); err != nil {
		return model.SetLog{}, err
	}

	existing, err := s.repo.FindByClientLogID(ctx, userID, in.SessionExerciseID, in.ClientLogID)
	switch {
	case err == nil:
		return *existing, nil
	case !errors.Is(err, errs.ErrNotFound):
		return model.SetLog{}, fmt.Errorf("idempotency lookup: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.SetLog{}, err
	}
	loggedAt := in.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = s.now()
	}
	set := model.SetLog{
		ID:                id,
		UserID:            userID,
		SessionID:         in.SessionID,
		SessionExerciseID: in.SessionExerciseID,
		ClientLogID:       in.ClientLogID,
		Payload:           in.Payload,
		LoggedAt:          loggedAt.UTC(),
	}

	taken := func(err error) bool { return errors.Is(err, errs.ErrSequenceTaken) }
	err = retry.Do(ctx, s.maxAttempts, taken, func(ctx context.Context) error {
		top, err := s.repo.MaxSetIndex(ctx, in.SessionExerciseID)
		if err != nil {
			return fmt.Errorf("max set index: %w", err)
		}
		set.SetIndex = top + 1
		return s.repo.Insert(ctx, &set)
	})
	switch {
	case err == nil:
		return set, nil
	case errors.Is(err, errs.ErrAlreadyExists):
		// a concurrent request with the same client log id won
		existing, ferr := s.repo.FindByClientLogID(ctx, userID, in.SessionExerciseID, in.ClientLogID)
		if ferr != nil {
			return model.SetLog{}, err
		}
		return *existing, nil
	case errors.Is(err, retry.ErrExhausted):
		return model.SetLog{}, fmt.Errorf("%w: %v", errs.ErrSequenceContention, err)
	default:
		return model.SetLog{}, err
	}
}

// AppendBatch has no cross-item transaction; each item commits on its own.
func (s *SetLogServiceImpl) AppendBatch(ctx context.Context, userID uuid.UUID, items []AppendInput) ([]BatchOutcome, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if len(items) > s.maxBatch {
		return nil, fmt.Errorf("%w: batch too large (%d > %d)", errs.ErrValidation, len(items), s.maxBatch)
	}
	out := make([]BatchOutcome, len(items))
	failed := make(map[uuid.UUID]bool)
	for i, in := range items {
		if failed[in.SessionExerciseID] {
			out[i].Err = errs.ErrBlockedByEarlier
			continue
		}
		set, err := s.Append(ctx, userID, in)
		if err != nil {
			failed[in.SessionExerciseID] = true
			out[i].Err = err
			continue
		}
		out[i].Set = set
	}
	return out, nil
}

// ListSessionExercise returns sets ordered by set index.
func (s *SetLogServiceImpl) ListSessionExercise(ctx context.Context, userID, sessionExerciseID uuid.UUID) ([]model.SetLog, error) {
	if userID == uuid.Nil || sessionExerciseID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID/sessionExerciseId", errs.ErrValidation)
	}
	return s.repo.ListBySessionExercise(ctx, userID, sessionExerciseID)
}

func validateAppend(userID uuid.UUID, in AppendInput) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if in.SessionID == uuid.Nil || in.SessionExerciseID == uuid.Nil || in.ClientLogID == uuid.Nil {
		return fmt.Errorf("%w: sessionId, sessionExerciseId and clientLogId are required", errs.ErrValidation)
	}
	if err := in.Payload.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}
