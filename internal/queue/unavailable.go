package queue

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// Unavailable is the Store used when the platform offers no durable storage
// (storage disabled, unwritable path). Reads are empty and writes are dropped, so
// the rest of the client behaves as if nothing is queued.
type Unavailable struct{}

var _ Store = Unavailable{}

// Enqueue echoes an item that was never persisted.
func (Unavailable) Enqueue(_ context.Context, in EnqueueInput) (model.QueueItem, error) {
	return model.QueueItem{
		ClientLogID:       in.ClientLogID,
		SchemaVersion:     model.PayloadSchemaVersion,
		SessionID:         in.SessionID,
		SessionExerciseID: in.SessionExerciseID,
		Payload:           in.Payload,
		CreatedAt:         in.CreatedAt,
		Status:            model.StatusQueued,
	}, nil
}

func (Unavailable) ReadBySessionExerciseID(context.Context, uuid.UUID) ([]model.QueueItem, error) {
	return nil, nil
}

func (Unavailable) ReadAllPending(context.Context) ([]model.QueueItem, error) { return nil, nil }

func (Unavailable) ReadRejected(context.Context) ([]model.QueueItem, error) { return nil, nil }

func (Unavailable) Update(context.Context, model.QueueItem) error { return nil }

func (Unavailable) Remove(context.Context, uuid.UUID) error { return nil }

func (Unavailable) PruneSynced(context.Context, time.Time) (int, error) { return 0, nil }
