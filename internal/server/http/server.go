// Package httpserver exposes the set-log API over JSON/HTTP.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/convert"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/service"
)

// DefaultMaxBody caps request bodies. A full batch of sets with notes fits well below it.
const DefaultMaxBody = 4 << 20

// Server wires services into HTTP handlers.
type Server struct {
	setLogs service.SetLogService
	signKey []byte
	log     *zap.Logger
	maxBody int64
}

// New constructs the HTTP API with injected services. A nil logger discards output.
func New(setLogs service.SetLogService, signKey []byte, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{setLogs: setLogs, signKey: signKey, log: log, maxBody: DefaultMaxBody}
}

// Handler returns the routed API wrapped in recovery and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("POST /api/set-logs", s.requireAuth(http.HandlerFunc(s.appendSet)))
	mux.Handle("POST /api/set-logs/batch", s.requireAuth(http.HandlerFunc(s.appendBatch)))
	mux.Handle("GET /api/session-exercises/{id}/sets", s.requireAuth(http.HandlerFunc(s.listSets)))
	return Recover(s.log)(Logging(s.log)(mux))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, convert.Envelope{OK: true})
}

// appendSet stores one set idempotently.
func (s *Server) appendSet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req convert.AppendRequest
	if !s.decode(w, r, &req) {
		return
	}
	in, err := convert.FromWireAppend(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	set, err := s.setLogs.Append(r.Context(), userID, in)
	if err != nil {
		s.fail(w, "append", err)
		return
	}
	writeData(w, convert.AppendData{SetID: set.ID.String()})
}

// appendBatch appends items in order and reports each one.
func (s *Server) appendBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req convert.BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	outcomes, err := s.setLogs.AppendBatch(r.Context(), userID, convert.FromWireBatch(req.Items))
	if err != nil {
		s.fail(w, "append batch", err)
		return
	}
	for i, o := range outcomes {
		if o.Err != nil && !errors.Is(o.Err, errs.ErrValidation) && !errors.Is(o.Err, errs.ErrBlockedByEarlier) {
			s.log.Warn("batch item failed", zap.String("queueItemId", req.Items[i].QueueItemID), zap.Error(o.Err))
		}
	}
	writeJSON(w, http.StatusOK, convert.Envelope{OK: true, Results: convert.ToWireBatchResults(req.Items, outcomes)})
}

// listSets returns the sets of one session exercise ordered by set index.
func (s *Server) listSets(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")
		return
	}
	sets, err := s.setLogs.ListSessionExercise(r.Context(), userID, id)
	if err != nil {
		s.fail(w, "list sets", err)
		return
	}
	writeData(w, convert.SetsData{Sets: sets})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad request body")
		return false
	}
	return true
}

// fail maps service errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrSequenceContention), errors.Is(err, errs.ErrAlreadyExists):
		s.log.Warn(op, zap.Error(err))
		writeError(w, http.StatusConflict, "contention, retry later")
	default:
		s.log.Error(op, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func writeData(w http.ResponseWriter, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, convert.Envelope{OK: true, Data: raw})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, convert.Envelope{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
