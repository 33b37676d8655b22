// Package convert maps between the JSON wire shapes of the set-log API and domain types.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/service"
)

// --- wire shapes ---

// AppendRequest is the body of POST /api/set-logs.
type AppendRequest struct {
	SessionID         string           `json:"sessionId"`
	SessionExerciseID string           `json:"sessionExerciseId"`
	ClientLogID       string           `json:"clientLogId"`
	Payload           model.SetPayload `json:"payload"`
	LoggedAt          *time.Time       `json:"loggedAt,omitempty"`
}

// BatchItem is one element of a batch append. QueueItemID is opaque to the server
// and echoed back so the device can match results.
type BatchItem struct {
	QueueItemID string `json:"queueItemId"`
	AppendRequest
}

// BatchRequest is the body of POST /api/set-logs/batch.
type BatchRequest struct {
	Items []BatchItem `json:"items"`
}

// BatchResult reports one batch item. Rejected marks a permanent refusal; Blocked
// marks an item the server never processed because an earlier item of the same
// exercise failed.
type BatchResult struct {
	QueueItemID string `json:"queueItemId"`
	OK          bool   `json:"ok"`
	ServerSetID string `json:"serverSetId,omitempty"`
	Error       string `json:"error,omitempty"`
	Rejected    bool   `json:"rejected,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
}

// Envelope wraps every JSON response.
type Envelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data,omitempty"`
	Results []BatchResult   `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// AppendData is the data of a successful append.
type AppendData struct {
	SetID string `json:"setId"`
}

// SetsData is the data of GET /api/session-exercises/{id}/sets.
type SetsData struct {
	Sets []model.SetLog `json:"sets"`
}

// --- client -> server ---

func parseID(name, s string) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return u.Nil, fmt.Errorf("%w: invalid %s: %v", errs.ErrValidation, name, err)
	}
	return id, nil
}

// FromWireAppend converts an append body to service input. Malformed ids wrap
// errs.ErrValidation.
func FromWireAppend(in AppendRequest) (service.AppendInput, error) {
	var (
		out service.AppendInput
		err error
	)
	if out.SessionID, err = parseID("sessionId", in.SessionID); err != nil {
		return service.AppendInput{}, err
	}
	if out.SessionExerciseID, err = parseID("sessionExerciseId", in.SessionExerciseID); err != nil {
		return service.AppendInput{}, err
	}
	if out.ClientLogID, err = parseID("clientLogId", in.ClientLogID); err != nil {
		return service.AppendInput{}, err
	}
	out.Payload = in.Payload
	if in.LoggedAt != nil {
		out.LoggedAt = *in.LoggedAt
	}
	return out, nil
}

// FromWireBatch converts batch items leniently: a malformed id becomes uuid.Nil so
// the service refuses that item in place and ordering per exercise still holds.
func FromWireBatch(items []BatchItem) []service.AppendInput {
	out := make([]service.AppendInput, 0, len(items))
	for _, it := range items {
		in := service.AppendInput{
			SessionID:         u.FromStringOrNil(it.SessionID),
			SessionExerciseID: u.FromStringOrNil(it.SessionExerciseID),
			ClientLogID:       u.FromStringOrNil(it.ClientLogID),
			Payload:           it.Payload,
		}
		if it.LoggedAt != nil {
			in.LoggedAt = *it.LoggedAt
		}
		out = append(out, in)
	}
	return out
}

// ToWireAppend builds the request for exactly one queued item.
func ToWireAppend(it model.QueueItem) AppendRequest {
	loggedAt := it.CreatedAt
	return AppendRequest{
		SessionID:         it.SessionID.String(),
		SessionExerciseID: it.SessionExerciseID.String(),
		ClientLogID:       it.ClientLogID.String(),
		Payload:           it.Payload,
		LoggedAt:          &loggedAt,
	}
}

// ToWireBatch builds a batch request, keyed by the local queue item ids.
func ToWireBatch(items []model.QueueItem) BatchRequest {
	out := BatchRequest{Items: make([]BatchItem, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, BatchItem{QueueItemID: it.ID.String(), AppendRequest: ToWireAppend(it)})
	}
	return out
}

// --- server -> client ---

// ToWireBatchResults pairs outcomes with the queue item ids they answer.
func ToWireBatchResults(items []BatchItem, outcomes []service.BatchOutcome) []BatchResult {
	out := make([]BatchResult, 0, len(outcomes))
	for i, o := range outcomes {
		r := BatchResult{}
		if i < len(items) {
			r.QueueItemID = items[i].QueueItemID
		}
		if o.Err != nil {
			r.Error = o.Err.Error()
			r.Rejected = errors.Is(o.Err, errs.ErrValidation)
			r.Blocked = errors.Is(o.Err, errs.ErrBlockedByEarlier)
		} else {
			r.OK = true
			r.ServerSetID = o.Set.ID.String()
		}
		out = append(out, r)
	}
	return out
}
