// Package model defines domain entities shared by the client queue and the server.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// WeightUnit is the unit a set's weight was entered in.
type WeightUnit string

// Supported weight units.
const (
	UnitKg  WeightUnit = "kg"
	UnitLbs WeightUnit = "lbs"
)

// Valid reports whether u is one of the supported units.
func (u WeightUnit) Valid() bool { return u == UnitKg || u == UnitLbs }

// SetPayload is the domain data of one logged set. Immutable once created.
type SetPayload struct {
	Weight          float64    `json:"weight"`
	Reps            int        `json:"reps"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
	Distance        *float64   `json:"distance,omitempty"`
	Calories        *float64   `json:"calories,omitempty"`
	IsWarmup        bool       `json:"isWarmup"`
	Notes           *string    `json:"notes,omitempty"`
	WeightUnit      WeightUnit `json:"weightUnit"`
}

// QueueStatus is the lifecycle state of a queued write.
type QueueStatus string

// Queue item states. Synced and Rejected are terminal.
const (
	StatusQueued   QueueStatus = "queued"
	StatusSyncing  QueueStatus = "syncing"
	StatusFailed   QueueStatus = "failed"
	StatusSynced   QueueStatus = "synced"
	StatusRejected QueueStatus = "rejected"
)

// Terminal reports whether the engine will never touch an item in this state again.
func (s QueueStatus) Terminal() bool { return s == StatusSynced || s == StatusRejected }

// QueueItem is one durably stored set-log write waiting for (or done with) delivery.
type QueueItem struct {
	ID                uuid.UUID   `json:"id"`          // device-local PK
	ClientLogID       uuid.UUID   `json:"clientLogId"` // idempotency token, fixed per user action
	DedupeKey         string      `json:"dedupeKey"`
	SchemaVersion     int         `json:"schemaVersion"`
	SessionID         uuid.UUID   `json:"sessionId"`
	SessionExerciseID uuid.UUID   `json:"sessionExerciseId"`
	Payload           SetPayload  `json:"payload"`
	CreatedAt         time.Time   `json:"createdAt"`
	Status            QueueStatus `json:"status"`
	RetryCount        int         `json:"retryCount"`
	LastAttemptAt     *time.Time  `json:"lastAttemptAt,omitempty"`
	NextRetryAt       *time.Time  `json:"nextRetryAt,omitempty"`
	LastError         string      `json:"lastError,omitempty"`
	SyncedAt          *time.Time  `json:"syncedAt,omitempty"`
	ServerSetID       *uuid.UUID  `json:"serverSetId,omitempty"`
}

// Due reports whether a pending item may be attempted at now.
func (it QueueItem) Due(now time.Time) bool {
	if it.Status.Terminal() {
		return false
	}
	return it.NextRetryAt == nil || !it.NextRetryAt.After(now)
}

// SetLog is a persisted set row on the server.
type SetLog struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"-"`
	SessionID         uuid.UUID  `json:"sessionId"`
	SessionExerciseID uuid.UUID  `json:"sessionExerciseId"`
	ClientLogID       uuid.UUID  `json:"clientLogId"`
	SetIndex          int        `json:"setIndex"` // per-exercise, gap-free
	Payload           SetPayload `json:"payload"`
	LoggedAt          time.Time  `json:"loggedAt"`  // client clock at enqueue
	CreatedAt         time.Time  `json:"createdAt"` // server clock
}

// PayloadSchemaVersion tags the shape of SetPayload as persisted by this build.
// Queue items carrying any other version are left untouched and never read.
const PayloadSchemaVersion = 1
