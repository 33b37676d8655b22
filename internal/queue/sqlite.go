package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/dedupe"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/localdb"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// Options tune a SQLite store.
type Options struct {
	Now func() time.Time // clock for defaults; time.Now when nil
}

// SQLite implements Store on the local database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// New returns a Store over db, or Unavailable when db is nil.
func New(db *localdb.DB, opts Options) Store {
	if db == nil {
		return Unavailable{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SQLite{db: db.SQL(), now: now}
}

const columns = `id, client_log_id, dedupe_key, schema_version, session_id, session_exercise_id,
payload, created_at, status, retry_count, last_attempt_at, next_retry_at, last_error,
synced_at, server_set_id`

// Enqueue inserts the item unless its dedupe key is already stored, then returns
// whichever row owns the key. Insert and read-back share one transaction.
func (s *SQLite) Enqueue(ctx context.Context, in EnqueueInput) (item model.QueueItem, err error) {
	if in.SessionID == uuid.Nil || in.SessionExerciseID == uuid.Nil {
		return model.QueueItem{}, fmt.Errorf("%w: empty session/session exercise id", errs.ErrValidation)
	}
	if err := in.Payload.Validate(); err != nil {
		return model.QueueItem{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC().Truncate(time.Millisecond)

	clientLogID := in.ClientLogID
	if clientLogID == uuid.Nil {
		if clientLogID, err = uuid.NewV4(); err != nil {
			return model.QueueItem{}, err
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.QueueItem{}, err
	}

	item = model.QueueItem{
		ID:                id,
		ClientLogID:       clientLogID,
		DedupeKey:         dedupe.Key(in.SessionExerciseID, in.Payload, createdAt),
		SchemaVersion:     model.PayloadSchemaVersion,
		SessionID:         in.SessionID,
		SessionExerciseID: in.SessionExerciseID,
		Payload:           in.Payload,
		CreatedAt:         createdAt,
		Status:            model.StatusQueued,
	}
	args, err := rowArgs(item)
	if err != nil {
		return model.QueueItem{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("begin enqueue: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("commit enqueue: %w", e)
		}
	}()

	const ins = `INSERT INTO set_log_queue (` + columns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(dedupe_key) DO NOTHING`
	if _, err = tx.ExecContext(ctx, ins, args...); err != nil {
		return model.QueueItem{}, fmt.Errorf("insert queue item: %w", err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+columns+` FROM set_log_queue WHERE dedupe_key = ?`, item.DedupeKey)
	stored, err := scanItem(row)
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("read back queue item: %w", err)
	}
	return stored, nil
}

// ReadBySessionExerciseID lists one exercise's items, oldest first.
func (s *SQLite) ReadBySessionExerciseID(ctx context.Context, sessionExerciseID uuid.UUID) ([]model.QueueItem, error) {
	const q = `SELECT ` + columns + ` FROM set_log_queue
WHERE session_exercise_id = ? AND schema_version = ?
ORDER BY created_at ASC, rowid ASC`
	return s.query(ctx, q, sessionExerciseID.String(), model.PayloadSchemaVersion)
}

// ReadAllPending lists items not yet in a terminal state, oldest first.
func (s *SQLite) ReadAllPending(ctx context.Context) ([]model.QueueItem, error) {
	const q = `SELECT ` + columns + ` FROM set_log_queue
WHERE schema_version = ? AND status NOT IN (?, ?)
ORDER BY created_at ASC, rowid ASC`
	return s.query(ctx, q, model.PayloadSchemaVersion, string(model.StatusSynced), string(model.StatusRejected))
}

// ReadRejected lists items the server refused permanently, oldest first.
func (s *SQLite) ReadRejected(ctx context.Context) ([]model.QueueItem, error) {
	const q = `SELECT ` + columns + ` FROM set_log_queue
WHERE schema_version = ? AND status = ?
ORDER BY created_at ASC, rowid ASC`
	return s.query(ctx, q, model.PayloadSchemaVersion, string(model.StatusRejected))
}

// Update upserts the full record keyed by ID.
func (s *SQLite) Update(ctx context.Context, item model.QueueItem) error {
	if item.ID == uuid.Nil {
		return fmt.Errorf("%w: empty queue item id", errs.ErrValidation)
	}
	args, err := rowArgs(item)
	if err != nil {
		return err
	}
	const q = `INSERT INTO set_log_queue (` + columns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  client_log_id = excluded.client_log_id,
  dedupe_key = excluded.dedupe_key,
  schema_version = excluded.schema_version,
  session_id = excluded.session_id,
  session_exercise_id = excluded.session_exercise_id,
  payload = excluded.payload,
  created_at = excluded.created_at,
  status = excluded.status,
  retry_count = excluded.retry_count,
  last_attempt_at = excluded.last_attempt_at,
  next_retry_at = excluded.next_retry_at,
  last_error = excluded.last_error,
  synced_at = excluded.synced_at,
  server_set_id = excluded.server_set_id`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update queue item %s: %w", item.ID, err)
	}
	return nil
}

// Remove deletes one item.
func (s *SQLite) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM set_log_queue WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("remove queue item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PruneSynced removes current-version synced items whose syncedAt is before the cutoff.
func (s *SQLite) PruneSynced(ctx context.Context, before time.Time) (int, error) {
	const q = `SELECT id FROM set_log_queue
WHERE schema_version = ? AND status = ? AND synced_at IS NOT NULL AND synced_at < ?`
	rows, err := s.db.QueryContext(ctx, q, model.PayloadSchemaVersion, string(model.StatusSynced), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("select synced items: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return 0, err
		}
		id, err := uuid.FromString(raw)
		if err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("bad queue id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	removed := 0
	for _, id := range ids {
		err := s.Remove(ctx, id)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, errs.ErrNotFound):
		default:
			return removed, err
		}
	}
	return removed, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]model.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var out []model.QueueItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (model.QueueItem, error) {
	var (
		it                                          model.QueueItem
		id, clientLogID, sessionID, sessionExercise string
		payload, status                             string
		createdAt                                   int64
		lastAttemptAt, nextRetryAt, syncedAt        sql.NullInt64
		serverSetID                                 sql.NullString
	)
	err := sc.Scan(&id, &clientLogID, &it.DedupeKey, &it.SchemaVersion, &sessionID, &sessionExercise,
		&payload, &createdAt, &status, &it.RetryCount, &lastAttemptAt, &nextRetryAt, &it.LastError,
		&syncedAt, &serverSetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.QueueItem{}, errs.ErrNotFound
		}
		return model.QueueItem{}, err
	}

	for _, f := range []struct {
		dst *uuid.UUID
		raw string
	}{
		{&it.ID, id}, {&it.ClientLogID, clientLogID}, {&it.SessionID, sessionID}, {&it.SessionExerciseID, sessionExercise},
	} {
		if *f.dst, err = uuid.FromString(f.raw); err != nil {
			return model.QueueItem{}, fmt.Errorf("bad uuid %q: %w", f.raw, err)
		}
	}
	if err := json.Unmarshal([]byte(payload), &it.Payload); err != nil {
		return model.QueueItem{}, fmt.Errorf("decode payload of %s: %w", id, err)
	}
	it.Status = model.QueueStatus(status)
	it.CreatedAt = time.UnixMilli(createdAt).UTC()
	it.LastAttemptAt = fromMillis(lastAttemptAt)
	it.NextRetryAt = fromMillis(nextRetryAt)
	it.SyncedAt = fromMillis(syncedAt)
	if serverSetID.Valid {
		sid, err := uuid.FromString(serverSetID.String)
		if err != nil {
			return model.QueueItem{}, fmt.Errorf("bad server set id %q: %w", serverSetID.String, err)
		}
		it.ServerSetID = &sid
	}
	return it, nil
}

func rowArgs(it model.QueueItem) ([]any, error) {
	payload, err := json.Marshal(it.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var serverSetID sql.NullString
	if it.ServerSetID != nil {
		serverSetID = sql.NullString{String: it.ServerSetID.String(), Valid: true}
	}
	return []any{
		it.ID.String(), it.ClientLogID.String(), it.DedupeKey, it.SchemaVersion,
		it.SessionID.String(), it.SessionExerciseID.String(), string(payload),
		it.CreatedAt.UnixMilli(), string(it.Status), it.RetryCount,
		toMillis(it.LastAttemptAt), toMillis(it.NextRetryAt), it.LastError,
		toMillis(it.SyncedAt), serverSetID,
	}, nil
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
