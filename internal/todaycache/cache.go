// Package todaycache keeps the last server view of today's sets for display while
// the server is unreachable. It is never merged with queue state.
package todaycache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/localdb"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

const (
	snapshotKey = "today"
	// SchemaVersion tags the snapshot body layout.
	SchemaVersion = 1
)

// Snapshot is a point-in-time copy of what the server returned.
type Snapshot struct {
	SchemaVersion     int            `json:"schemaVersion"`
	CapturedAt        time.Time      `json:"capturedAt"`
	SessionExerciseID uuid.UUID      `json:"sessionExerciseId"`
	Sets              []model.SetLog `json:"sets"`
}

// Fetcher reads persisted sets from the server.
type Fetcher interface {
	SessionExerciseSets(ctx context.Context, sessionExerciseID uuid.UUID) ([]model.SetLog, error)
}

// Cache stores one snapshot under a fixed key.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Cache over db. With a nil db every Save is dropped and every Load misses.
func New(db *localdb.DB, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	c := &Cache{now: now}
	if db != nil {
		c.db = db.SQL()
	}
	return c
}

// Save overwrites the snapshot.
func (c *Cache) Save(ctx context.Context, s Snapshot) error {
	if c.db == nil {
		return nil
	}
	s.SchemaVersion = SchemaVersion
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	const q = `INSERT INTO snapshots (key, schema_version, captured_at, body) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET schema_version = excluded.schema_version,
  captured_at = excluded.captured_at, body = excluded.body`
	if _, err := c.db.ExecContext(ctx, q, snapshotKey, SchemaVersion, s.CapturedAt.UnixMilli(), string(body)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot. ok is false when none is stored or it was written by
// a build with another schema version.
func (c *Cache) Load(ctx context.Context) (s Snapshot, ok bool, err error) {
	if c.db == nil {
		return Snapshot{}, false, nil
	}
	var (
		version int
		body    string
	)
	err = c.db.QueryRowContext(ctx, `SELECT schema_version, body FROM snapshots WHERE key = ?`, snapshotKey).
		Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	if version != SchemaVersion {
		return Snapshot{}, false, nil
	}
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, true, nil
}

// Refresh reads from the server and overwrites the snapshot. When the server read
// fails it falls back to the stored snapshot and reports stale; the fetch error is
// returned only when there is nothing to fall back to.
func (c *Cache) Refresh(ctx context.Context, f Fetcher, sessionExerciseID uuid.UUID) (s Snapshot, stale bool, err error) {
	sets, ferr := f.SessionExerciseSets(ctx, sessionExerciseID)
	if ferr == nil {
		s = Snapshot{
			SchemaVersion:     SchemaVersion,
			CapturedAt:        c.now().UTC().Truncate(time.Millisecond),
			SessionExerciseID: sessionExerciseID,
			Sets:              sets,
		}
		if err := c.Save(ctx, s); err != nil {
			return s, false, err
		}
		return s, false, nil
	}

	cached, ok, err := c.Load(ctx)
	if err != nil {
		return Snapshot{}, true, errors.Join(ferr, err)
	}
	if !ok {
		return Snapshot{}, true, ferr
	}
	return cached, true, nil
}
