package todaycache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/localdb"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

type fetcher struct {
	sets []model.SetLog
	err  error
}

func (f *fetcher) SessionExerciseSets(context.Context, uuid.UUID) ([]model.SetLog, error) {
	return f.sets, f.err
}

func newCache(t *testing.T) (*Cache, *localdb.DB) {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	at := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)
	return New(db, func() time.Time { return at }), db
}

func TestRefresh_OverwritesThenFallsBack(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)
	se := uuid.Must(uuid.NewV4())

	_, ok, err := c.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	f := &fetcher{sets: []model.SetLog{{ID: uuid.Must(uuid.NewV4()), SetIndex: 0}}}
	s, stale, err := c.Refresh(ctx, f, se)
	require.NoError(t, err)
	require.False(t, stale)
	require.Len(t, s.Sets, 1)

	f.sets = append(f.sets, model.SetLog{ID: uuid.Must(uuid.NewV4()), SetIndex: 1})
	_, _, err = c.Refresh(ctx, f, se)
	require.NoError(t, err)

	f.err = errors.New("offline")
	s, stale, err = c.Refresh(ctx, f, se)
	require.NoError(t, err)
	require.True(t, stale)
	require.Len(t, s.Sets, 2)
	require.Equal(t, se, s.SessionExerciseID)
	require.Equal(t, SchemaVersion, s.SchemaVersion)
}

func TestRefresh_NothingCached(t *testing.T) {
	c, _ := newCache(t)
	boom := errors.New("offline")
	_, stale, err := c.Refresh(context.Background(), &fetcher{err: boom}, uuid.Must(uuid.NewV4()))
	require.True(t, stale)
	require.ErrorIs(t, err, boom)
}

func TestLoad_ForeignSchemaVersionMisses(t *testing.T) {
	ctx := context.Background()
	c, db := newCache(t)
	require.NoError(t, c.Save(ctx, Snapshot{CapturedAt: time.Now()}))

	_, err := db.SQL().ExecContext(ctx, `UPDATE snapshots SET schema_version = ?`, SchemaVersion+1)
	require.NoError(t, err)
	_, ok, err := c.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilDB(t *testing.T) {
	c := New(nil, nil)
	require.NoError(t, c.Save(context.Background(), Snapshot{}))
	_, ok, err := c.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}
