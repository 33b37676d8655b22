package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// Constraint names from migrations/00001_set_logs.sql.
const (
	constraintClientLog = "set_logs_client_log_key"
	constraintSetIndex  = "set_logs_set_index_key"
)

// SetLogRepo implements SetLogRepository using PostgreSQL.
type SetLogRepo struct{ db *DB }

// NewSetLogRepo constructs a set log repository.
func NewSetLogRepo(db *DB) *SetLogRepo { return &SetLogRepo{db: db} }

const setLogColumns = `id, user_id, session_id, session_exercise_id, client_log_id, set_index,
weight, reps, duration_seconds, distance, calories, is_warmup, notes, weight_unit,
logged_at, created_at`

// FindByClientLogID returns the set stored under the idempotency key.
func (r *SetLogRepo) FindByClientLogID(
	ctx context.Context, userID, sessionExerciseID, clientLogID uuid.UUID,
) (*model.SetLog, error) {
	const q = `SELECT ` + setLogColumns + `
FROM set_logs WHERE session_exercise_id=$1 AND client_log_id=$2 AND user_id=$3`
	s, err := scanSetLog(r.db.Pool.QueryRow(ctx, q, sessionExerciseID, clientLogID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// MaxSetIndex returns the current highest set index, -1 for an empty exercise.
func (r *SetLogRepo) MaxSetIndex(ctx context.Context, sessionExerciseID uuid.UUID) (int, error) {
	const q = `SELECT COALESCE(MAX(set_index),-1) FROM set_logs WHERE session_exercise_id=$1`
	var v int
	if err := r.db.Pool.QueryRow(ctx, q, sessionExerciseID).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// Insert stores s and fills CreatedAt from the database clock.
func (r *SetLogRepo) Insert(ctx context.Context, s *model.SetLog) error {
	const q = `
INSERT INTO set_logs (id, user_id, session_id, session_exercise_id, client_log_id, set_index,
  weight, reps, duration_seconds, distance, calories, is_warmup, notes, weight_unit, logged_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING created_at`
	p := s.Payload
	err := r.db.Pool.QueryRow(ctx, q,
		s.ID, s.UserID, s.SessionID, s.SessionExerciseID, s.ClientLogID, s.SetIndex,
		p.Weight, p.Reps, p.DurationSeconds, p.Distance, p.Calories, p.IsWarmup, p.Notes,
		string(p.WeightUnit), s.LoggedAt,
	).Scan(&s.CreatedAt)
	if name, ok := uniqueViolation(err); ok {
		switch name {
		case constraintSetIndex:
			return fmt.Errorf("set index %d: %w", s.SetIndex, errs.ErrSequenceTaken)
		case constraintClientLog:
			return errs.ErrAlreadyExists
		}
	}
	return err
}

// ListBySessionExercise returns the user's sets in set index order.
func (r *SetLogRepo) ListBySessionExercise(
	ctx context.Context, userID, sessionExerciseID uuid.UUID,
) ([]model.SetLog, error) {
	const q = `SELECT ` + setLogColumns + `
FROM set_logs WHERE session_exercise_id=$1 AND user_id=$2
ORDER BY set_index ASC`
	rows, err := r.db.Pool.Query(ctx, q, sessionExerciseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SetLog{}
	for rows.Next() {
		s, err := scanSetLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSetLog(row pgx.Row) (model.SetLog, error) {
	var (
		s    model.SetLog
		unit string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.SessionID, &s.SessionExerciseID, &s.ClientLogID, &s.SetIndex,
		&s.Payload.Weight, &s.Payload.Reps, &s.Payload.DurationSeconds, &s.Payload.Distance,
		&s.Payload.Calories, &s.Payload.IsWarmup, &s.Payload.Notes, &unit,
		&s.LoggedAt, &s.CreatedAt)
	if err != nil {
		return model.SetLog{}, err
	}
	s.Payload.WeightUnit = model.WeightUnit(unit)
	return s, nil
}
