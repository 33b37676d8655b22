package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/localdb"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(t *testing.T) (*SQLite, *localdb.DB, *fakeClock) {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	clk := &fakeClock{t: time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)}
	return New(db, Options{Now: clk.Now}).(*SQLite), db, clk
}

func payload(weight float64, reps int) model.SetPayload {
	return model.SetPayload{Weight: weight, Reps: reps, WeightUnit: model.UnitKg}
}

func TestEnqueue_PersistsQueuedItem(t *testing.T) {
	s, _, clk := newStore(t)
	ctx := context.Background()
	session := uuid.Must(uuid.NewV4())
	se := uuid.Must(uuid.NewV4())

	it, err := s.Enqueue(ctx, EnqueueInput{SessionID: session, SessionExerciseID: se, Payload: payload(100, 5)})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, it.ID)
	require.NotEqual(t, uuid.Nil, it.ClientLogID)
	require.Equal(t, model.StatusQueued, it.Status)
	require.Equal(t, 0, it.RetryCount)
	require.Equal(t, model.PayloadSchemaVersion, it.SchemaVersion)
	require.True(t, it.CreatedAt.Equal(clk.Now()))
	require.Nil(t, it.NextRetryAt)

	got, err := s.ReadBySessionExerciseID(ctx, se)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, it, got[0])
}

func TestEnqueue_DuplicateCollapses(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()
	in := EnqueueInput{
		SessionID:         uuid.Must(uuid.NewV4()),
		SessionExerciseID: uuid.Must(uuid.NewV4()),
		Payload:           payload(60, 10),
		CreatedAt:         time.Date(2026, 5, 4, 18, 1, 2, 3_000_000, time.UTC),
	}
	first, err := s.Enqueue(ctx, in)
	require.NoError(t, err)

	// a double tap mints another client log id; the stored item wins
	in.ClientLogID = uuid.Must(uuid.NewV4())
	second, err := s.Enqueue(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.ClientLogID, second.ClientLogID)

	all, err := s.ReadAllPending(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestEnqueue_KeepsCallerClientLogID(t *testing.T) {
	s, _, _ := newStore(t)
	cl := uuid.Must(uuid.NewV4())
	it, err := s.Enqueue(context.Background(), EnqueueInput{
		SessionID: uuid.Must(uuid.NewV4()), SessionExerciseID: uuid.Must(uuid.NewV4()),
		Payload: payload(1, 1), ClientLogID: cl,
	})
	require.NoError(t, err)
	require.Equal(t, cl, it.ClientLogID)
}

func TestEnqueue_Validation(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, EnqueueInput{SessionExerciseID: uuid.Must(uuid.NewV4()), Payload: payload(1, 1)})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Enqueue(ctx, EnqueueInput{
		SessionID: uuid.Must(uuid.NewV4()), SessionExerciseID: uuid.Must(uuid.NewV4()),
		Payload: model.SetPayload{Weight: -5, WeightUnit: model.UnitKg},
	})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestReadAllPending_OrderAndFilter(t *testing.T) {
	s, _, clk := newStore(t)
	ctx := context.Background()
	session := uuid.Must(uuid.NewV4())
	se1 := uuid.Must(uuid.NewV4())
	se2 := uuid.Must(uuid.NewV4())

	a, err := s.Enqueue(ctx, EnqueueInput{SessionID: session, SessionExerciseID: se1, Payload: payload(50, 5)})
	require.NoError(t, err)
	clk.Advance(time.Second)
	b, err := s.Enqueue(ctx, EnqueueInput{SessionID: session, SessionExerciseID: se2, Payload: payload(50, 5)})
	require.NoError(t, err)
	clk.Advance(time.Second)
	c, err := s.Enqueue(ctx, EnqueueInput{SessionID: session, SessionExerciseID: se1, Payload: payload(55, 5)})
	require.NoError(t, err)
	clk.Advance(time.Second)
	d, err := s.Enqueue(ctx, EnqueueInput{SessionID: session, SessionExerciseID: se1, Payload: payload(57.5, 3)})
	require.NoError(t, err)

	// a is done, d is refused for good
	now := clk.Now()
	a.Status = model.StatusSynced
	a.SyncedAt = &now
	require.NoError(t, s.Update(ctx, a))
	d.Status = model.StatusRejected
	d.LastError = "weightUnit"
	require.NoError(t, s.Update(ctx, d))

	pending, err := s.ReadAllPending(ctx)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{b.ID, c.ID}, ids(pending))

	rejected, err := s.ReadRejected(ctx)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{d.ID}, ids(rejected))

	bySE, err := s.ReadBySessionExerciseID(ctx, se1)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a.ID, c.ID, d.ID}, ids(bySE))
}

func TestUpdate_FullRecordRoundTrip(t *testing.T) {
	s, _, clk := newStore(t)
	ctx := context.Background()
	it, err := s.Enqueue(ctx, EnqueueInput{
		SessionID: uuid.Must(uuid.NewV4()), SessionExerciseID: uuid.Must(uuid.NewV4()), Payload: payload(20, 12),
	})
	require.NoError(t, err)

	attempt := clk.Now().Add(time.Minute)
	next := attempt.Add(4 * time.Second)
	it.Status = model.StatusFailed
	it.RetryCount = 2
	it.LastAttemptAt = &attempt
	it.NextRetryAt = &next
	it.LastError = "connection refused"
	require.NoError(t, s.Update(ctx, it))

	got, err := s.ReadAllPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, it, got[0])

	setID := uuid.Must(uuid.NewV4())
	it.Status = model.StatusSynced
	it.ServerSetID = &setID
	it.SyncedAt = &next
	it.NextRetryAt = nil
	it.LastError = ""
	require.NoError(t, s.Update(ctx, it))

	bySE, err := s.ReadBySessionExerciseID(ctx, it.SessionExerciseID)
	require.NoError(t, err)
	require.Equal(t, it, bySE[0])
}

func TestRemoveAndPrune(t *testing.T) {
	s, _, clk := newStore(t)
	ctx := context.Background()
	se := uuid.Must(uuid.NewV4())
	in := func(w float64) EnqueueInput {
		return EnqueueInput{SessionID: uuid.Must(uuid.NewV4()), SessionExerciseID: se, Payload: payload(w, 1)}
	}
	old, err := s.Enqueue(ctx, in(1))
	require.NoError(t, err)
	fresh, err := s.Enqueue(ctx, in(2))
	require.NoError(t, err)
	open, err := s.Enqueue(ctx, in(3))
	require.NoError(t, err)

	oldAt := clk.Now().Add(-48 * time.Hour)
	freshAt := clk.Now()
	old.Status, old.SyncedAt = model.StatusSynced, &oldAt
	fresh.Status, fresh.SyncedAt = model.StatusSynced, &freshAt
	require.NoError(t, s.Update(ctx, old))
	require.NoError(t, s.Update(ctx, fresh))

	n, err := s.PruneSynced(ctx, clk.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	left, err := s.ReadBySessionExerciseID(ctx, se)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{fresh.ID, open.ID}, ids(left))

	require.NoError(t, s.Remove(ctx, open.ID))
	require.ErrorIs(t, s.Remove(ctx, open.ID), errs.ErrNotFound)
}

func TestSchemaVersionIsolation(t *testing.T) {
	s, db, _ := newStore(t)
	ctx := context.Background()
	se := uuid.Must(uuid.NewV4())

	current, err := s.Enqueue(ctx, EnqueueInput{SessionID: uuid.Must(uuid.NewV4()), SessionExerciseID: se, Payload: payload(10, 10)})
	require.NoError(t, err)

	foreign := current
	foreign.ID = uuid.Must(uuid.NewV4())
	foreign.ClientLogID = uuid.Must(uuid.NewV4())
	foreign.DedupeKey = "v2:something-else"
	foreign.SchemaVersion = model.PayloadSchemaVersion + 1
	require.NoError(t, s.Update(ctx, foreign))

	pending, err := s.ReadAllPending(ctx)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{current.ID}, ids(pending))

	bySE, err := s.ReadBySessionExerciseID(ctx, se)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{current.ID}, ids(bySE))

	// the foreign row is still on disk, untouched
	var n int
	require.NoError(t, db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM set_log_queue WHERE schema_version = ?`, foreign.SchemaVersion).Scan(&n))
	require.Equal(t, 1, n)
}

func TestUnavailable_DegradesToNoop(t *testing.T) {
	var s Store = New(nil, Options{})
	require.False(t, IsAvailable(s))
	ctx := context.Background()

	it, err := s.Enqueue(ctx, EnqueueInput{Payload: payload(1, 1)})
	require.NoError(t, err)
	require.Equal(t, model.StatusQueued, it.Status)

	pending, err := s.ReadAllPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
	require.NoError(t, s.Update(ctx, it))
	require.NoError(t, s.Remove(ctx, uuid.Must(uuid.NewV4())))
	n, err := s.PruneSynced(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, n)

	backed, _, _ := newStore(t)
	require.True(t, IsAvailable(backed))
}

func ids(items []model.QueueItem) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
