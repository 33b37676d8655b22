package netstate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFlag_TransitionsOnly(t *testing.T) {
	f := NewFlag(false)
	ch, cancel := f.Subscribe()
	defer cancel()

	f.Set(false)
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v", v)
	default:
	}

	f.Set(true)
	require.True(t, <-ch)
	require.True(t, f.Online())
}

func TestFlag_SlowSubscriberGetsNewest(t *testing.T) {
	f := NewFlag(false)
	ch, cancel := f.Subscribe()
	defer cancel()

	f.Set(true)
	f.Set(false)
	f.Set(true)
	require.True(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %v", v)
	default:
	}
}

func TestFlag_Unsubscribe(t *testing.T) {
	f := NewFlag(true)
	ch, cancel := f.Subscribe()
	cancel()
	cancel()
	f.Set(false)
	select {
	case v := <-ch:
		t.Fatalf("unsubscribed channel got %v", v)
	default:
	}
}

func TestProber_ProbeFollowsCheck(t *testing.T) {
	var fail atomic.Bool
	p := NewProber(func(context.Context) error {
		if fail.Load() {
			return errors.New("dial tcp: refused")
		}
		return nil
	}, time.Hour, zaptest.NewLogger(t))
	require.False(t, p.Online())

	ch, cancel := p.Subscribe()
	defer cancel()

	require.True(t, p.Probe(context.Background()))
	require.True(t, <-ch)

	fail.Store(true)
	require.False(t, p.Probe(context.Background()))
	require.False(t, <-ch)
}

func TestProber_RunProbesImmediately(t *testing.T) {
	var calls atomic.Int32
	p := NewProber(func(context.Context) error {
		calls.Add(1)
		return nil
	}, time.Hour, nil)

	ch, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case v := <-ch:
		require.True(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial probe")
	}
	stop()
	<-done
	require.EqualValues(t, 1, calls.Load())
}
