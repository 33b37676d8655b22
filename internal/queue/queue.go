// Package queue is the durable write-ahead queue of set-log writes that still have to
// reach the server. It is the single source of truth for pending work on a device.
package queue

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// EnqueueInput is what the UI hands over when the user logs a set.
type EnqueueInput struct {
	SessionID         uuid.UUID
	SessionExerciseID uuid.UUID
	Payload           model.SetPayload
	// ClientLogID is minted once per logical "log this set" action. Zero means the
	// store mints one.
	ClientLogID uuid.UUID
	// CreatedAt is the moment of the user action. Zero means the store clock.
	CreatedAt time.Time
}

// Store persists queue items with set-like dedupe semantics.
type Store interface {
	// Enqueue persists a new queued item, or returns the existing item with the same
	// dedupe key unchanged. The item is durable once Enqueue returns.
	Enqueue(ctx context.Context, in EnqueueInput) (model.QueueItem, error)
	// ReadBySessionExerciseID returns current-version items of one exercise in
	// createdAt order, whatever their status.
	ReadBySessionExerciseID(ctx context.Context, sessionExerciseID uuid.UUID) ([]model.QueueItem, error)
	// ReadAllPending returns current-version items that still need delivery, in
	// createdAt order.
	ReadAllPending(ctx context.Context) ([]model.QueueItem, error)
	// ReadRejected returns current-version items the server refused permanently.
	ReadRejected(ctx context.Context) ([]model.QueueItem, error)
	// Update replaces the whole record with the same ID.
	Update(ctx context.Context, item model.QueueItem) error
	// Remove hard-deletes an item. Housekeeping only.
	Remove(ctx context.Context, id uuid.UUID) error
	// PruneSynced removes synced items confirmed before the cutoff.
	PruneSynced(ctx context.Context, before time.Time) (int, error)
}

// IsAvailable reports whether s is backed by real storage.
func IsAvailable(s Store) bool {
	switch s.(type) {
	case nil, Unavailable, *Unavailable:
		return false
	default:
		return true
	}
}
