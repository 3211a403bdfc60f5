package services

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
	fakes "github.com/pratik-mahalle/resourcectl/internal/testutil"
)

func newTracker() (*OperationTracker, *metrics.Metrics) {
	m := metrics.New()
	return NewOperationTracker(logger.Nop(), m), m
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOperationTracker_DoubleBeginDispatchesOnce(t *testing.T) {
	tracker, _ := newTracker()
	backend := fakes.NewMockBackend()
	release, entered := backend.Hold(fakes.MethodConnect)
	ctx := waitCtx(t)

	key := Key{Op: OpConnect, Target: "orders"}
	work := func(ctx context.Context) error {
		return backend.Connect(ctx, resource.KindPostgres, "orders", postgresFields())
	}

	assert.True(t, tracker.Begin(ctx, key, work))
	<-entered
	assert.False(t, tracker.Begin(ctx, key, work))
	assert.Equal(t, loading.Loading, tracker.Status(key).Phase)

	release()
	status, err := tracker.Wait(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, loading.Succeeded, status.Phase)
	assert.Equal(t, 1, backend.Calls(fakes.MethodConnect))
}

func TestOperationTracker_IndependentKeys(t *testing.T) {
	tracker, _ := newTracker()
	ctx := waitCtx(t)
	gate := make(chan struct{})

	blocked := func(ctx context.Context) error {
		<-gate
		return nil
	}
	a := Key{Op: OpTest, Target: "r1"}
	b := Key{Op: OpTest, Target: "r2"}
	c := Key{Op: OpDelete, Target: "r1"}

	assert.True(t, tracker.Begin(ctx, a, blocked))
	assert.True(t, tracker.Begin(ctx, b, blocked))
	assert.True(t, tracker.Begin(ctx, c, func(context.Context) error { return nil }))

	status, err := tracker.Wait(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, loading.Succeeded, status.Phase)
	assert.Equal(t, loading.Loading, tracker.Status(a).Phase)

	close(gate)
	for _, k := range []Key{a, b} {
		status, err := tracker.Wait(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, loading.Succeeded, status.Phase)
	}
}

func TestOperationTracker_FailureAndDismiss(t *testing.T) {
	tracker, m := newTracker()
	ctx := waitCtx(t)
	key := Key{Op: OpTest, Target: "r1"}

	tracker.Begin(ctx, key, func(context.Context) error {
		return errors.OperationFailed("test connection", stderrors.New("connection refused"))
	})
	status, err := tracker.Wait(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, loading.Failed, status.Phase)
	assert.Equal(t, errors.ErrCodeOperationFailed, status.Code)
	assert.Contains(t, status.Message, "connection refused")
	count, err := testutil.GatherAndCount(m.Registry(), "resourcectl_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, tracker.Dismiss(key))
	assert.Equal(t, loading.Initial, tracker.Status(key).Phase)

	err = tracker.Dismiss(key)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestOperationTracker_RetryAfterFailure(t *testing.T) {
	tracker, _ := newTracker()
	ctx := waitCtx(t)
	key := Key{Op: OpTest, Target: "r1"}

	tracker.Begin(ctx, key, func(context.Context) error { return stderrors.New("boom") })
	status, _ := tracker.Wait(ctx, key)
	require.Equal(t, loading.Failed, status.Phase)
	assert.Equal(t, errors.ErrCodeInternal, status.Code)

	assert.True(t, tracker.Begin(ctx, key, func(context.Context) error { return nil }))
	status, _ = tracker.Wait(ctx, key)
	assert.Equal(t, loading.Succeeded, status.Phase)
	assert.Empty(t, status.Message)
}

func TestOperationTracker_AbandonDiscardsLateResult(t *testing.T) {
	tracker, _ := newTracker()
	ctx := waitCtx(t)
	key := Key{Op: OpConnect, Target: "orders"}

	started := make(chan struct{})
	finished := make(chan struct{})
	var sawCancel bool
	tracker.Begin(ctx, key, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel = true
		defer close(finished)
		return ctx.Err()
	})

	<-started
	tracker.Abandon(key)
	assert.Equal(t, loading.Initial, tracker.Status(key).Phase)

	<-finished
	assert.True(t, sawCancel)
	// The late failure must not overwrite the reset slot.
	assert.Never(t, func() bool {
		return tracker.Status(key).Phase != loading.Initial
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestOperationTracker_TransitionHooks(t *testing.T) {
	tracker, _ := newTracker()
	ctx := waitCtx(t)

	var mu sync.Mutex
	var seen []loading.Phase
	tracker.OnTransition(func(key Key, status loading.Status) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, status.Phase)
	})

	key := Key{Op: OpEdit, Target: "r1"}
	tracker.Begin(ctx, key, func(context.Context) error { return stderrors.New("nope") })
	_, _ = tracker.Wait(ctx, key)
	require.NoError(t, tracker.Dismiss(key))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []loading.Phase{loading.Failed, loading.Initial}, seen)
}

func TestOperationTracker_Snapshot(t *testing.T) {
	tracker, _ := newTracker()
	ctx := waitCtx(t)

	done := Key{Op: OpTest, Target: "r1"}
	tracker.Begin(ctx, done, func(context.Context) error { return nil })
	_, _ = tracker.Wait(ctx, done)

	snap := tracker.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, loading.Succeeded, snap[done].Phase)
}

func TestOperationTracker_WaitOnUnknownKey(t *testing.T) {
	tracker, _ := newTracker()
	status, err := tracker.Wait(context.Background(), Key{Op: OpDelete, Target: "nothing"})
	require.NoError(t, err)
	assert.Equal(t, loading.Initial, status.Phase)
}
