package syncengine

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/apiclient"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/convert"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository/memory"
	httpserver "github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/server/http"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/service"
)

// lossyClient drops the first attempts of chosen items before they reach the server.
type lossyClient struct {
	*apiclient.Client
	drop map[string]int
}

func (c *lossyClient) Append(ctx context.Context, req convert.AppendRequest) (uuid.UUID, error) {
	if c.drop[req.ClientLogID] > 0 {
		c.drop[req.ClientLogID]--
		return uuid.Nil, errors.New("context deadline exceeded")
	}
	return c.Client.Append(ctx, req)
}

func liveClient(t *testing.T) *apiclient.Client {
	t.Helper()
	return liveClientWith(t, 100)
}

func liveClientWith(t *testing.T, maxBatch int) *apiclient.Client {
	t.Helper()
	key := []byte("k")
	svc := service.NewSetLogService(memory.NewSetLogRepo(), maxBatch, 5)
	ts := httptest.NewServer(httpserver.New(svc, key, zaptest.NewLogger(t)).Handler())
	t.Cleanup(ts.Close)
	tok, _, err := httpserver.IssueToken(key, uuid.Must(uuid.NewV4()), time.Hour)
	require.NoError(t, err)
	c, err := apiclient.New(apiclient.Options{BaseURL: ts.URL, Token: tok})
	require.NoError(t, err)
	return c
}

func TestDrain_OrderingPreservedThroughRetry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := newQueue(t, clk)
	se := uuid.Must(uuid.NewV4())
	a := enqueue(t, store, se, 5, clk)
	b := enqueue(t, store, se, 6, clk)

	client := liveClient(t)
	api := &lossyClient{Client: client, drop: map[string]int{a.ClientLogID.String(): 1}}
	e := New(store, api, nil, Config{BaseDelay: time.Second, Now: clk.Now}, zaptest.NewLogger(t))

	rep, _ := e.Drain(ctx)
	require.Equal(t, 1, rep.Failed)
	require.Equal(t, 1, rep.Held)

	clk.Advance(time.Minute)
	rep, _ = e.Drain(ctx)
	require.Equal(t, 2, rep.Synced)

	sets, err := client.SessionExerciseSets(ctx, se)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	index := map[uuid.UUID]int{}
	for _, s := range sets {
		index[s.ClientLogID] = s.SetIndex
	}
	require.Less(t, index[a.ClientLogID], index[b.ClientLogID])

	require.Equal(t, *byID(t, store, se, a.ID).ServerSetID, sets[0].ID)
}

func TestDrain_ResendAfterLostResponseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := newQueue(t, clk)
	se := uuid.Must(uuid.NewV4())
	it := enqueue(t, store, se, 5, clk)

	client := liveClient(t)
	// the server stores the set but the device never hears back
	_, err := client.Append(ctx, convert.ToWireAppend(it))
	require.NoError(t, err)

	e := New(store, client, nil, Config{Now: clk.Now}, zaptest.NewLogger(t))
	rep, _ := e.Drain(ctx)
	require.Equal(t, 1, rep.Synced)

	sets, err := client.SessionExerciseSets(ctx, se)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Equal(t, sets[0].ID, *byID(t, store, se, it.ID).ServerSetID)
	require.Equal(t, model.StatusSynced, byID(t, store, se, it.ID).Status)
}

func TestDrain_BatchModeAgainstServer(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := newQueue(t, clk)
	se := uuid.Must(uuid.NewV4())
	var ids []uuid.UUID
	for reps := 1; reps <= 5; reps++ {
		ids = append(ids, enqueue(t, store, se, reps, clk).ClientLogID)
	}

	client := liveClient(t)
	e := New(store, client, nil, Config{BatchSize: 2, Now: clk.Now}, zaptest.NewLogger(t))
	rep, _ := e.Drain(ctx)
	require.Equal(t, Report{Attempted: 5, Synced: 5}, rep)

	sets, err := client.SessionExerciseSets(ctx, se)
	require.NoError(t, err)
	require.Len(t, sets, 5)
	for i, s := range sets {
		require.Equal(t, ids[i], s.ClientLogID)
		require.Equal(t, i, s.SetIndex)
	}
}

func TestDrain_OversizedBatchFallsBackWithoutRetryCharge(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := newQueue(t, clk)
	se := uuid.Must(uuid.NewV4())
	var items []model.QueueItem
	for reps := 1; reps <= 3; reps++ {
		items = append(items, enqueue(t, store, se, reps, clk))
	}

	client := liveClientWith(t, 2)
	e := New(store, client, nil, Config{BatchSize: 3, Now: clk.Now}, zaptest.NewLogger(t))
	rep, _ := e.Drain(ctx)
	require.Equal(t, Report{Attempted: 3, Synced: 3}, rep)
	for _, it := range items {
		got := byID(t, store, se, it.ID)
		require.Equal(t, model.StatusSynced, got.Status)
		require.Zero(t, got.RetryCount)
	}

	// later drains use the shrunken chunk size and stay on the batch endpoint
	for reps := 4; reps <= 6; reps++ {
		items = append(items, enqueue(t, store, se, reps, clk))
	}
	rep, _ = e.Drain(ctx)
	require.Equal(t, Report{Attempted: 3, Synced: 3}, rep)

	sets, err := client.SessionExerciseSets(ctx, se)
	require.NoError(t, err)
	require.Len(t, sets, 6)
	for i, s := range sets {
		require.Equal(t, items[i].ClientLogID, s.ClientLogID)
		require.Equal(t, i, s.SetIndex)
	}
}
