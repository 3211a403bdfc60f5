package services

import (
	"context"
	"sync"
	"time"

	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
)

// Operation is one of the asynchronous resource operations.
type Operation string

const (
	OpConnect Operation = "connect"
	OpEdit    Operation = "edit"
	OpTest    Operation = "test"
	OpDelete  Operation = "delete"
)

// Key addresses one state slot. Target is the resource id, or the requested
// name for OpConnect since the resource has no id yet.
type Key struct {
	Op     Operation
	Target string
}

// Work is the unit of asynchronous work behind an operation.
type Work func(ctx context.Context) error

// TransitionFunc observes every settled or reset slot.
type TransitionFunc func(key Key, status loading.Status)

type slot struct {
	status  loading.Status
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// OperationTracker runs at most one unit of work per Key and keeps a
// loading.Status for each.
type OperationTracker struct {
	mu    sync.Mutex
	slots map[Key]*slot
	hooks []TransitionFunc

	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewOperationTracker creates a new operation tracker
func NewOperationTracker(log *logger.Logger, m *metrics.Metrics) *OperationTracker {
	return &OperationTracker{
		slots:   map[Key]*slot{},
		logger:  log.WithComponent("operation_tracker"),
		metrics: m,
	}
}

// OnTransition registers fn to run after a slot settles or is reset.
func (t *OperationTracker) OnTransition(fn TransitionFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Begin starts work for key unless the slot is already loading, in which
// case it does nothing and returns false. A Succeeded slot is reloaded.
// work runs on its own goroutine with a context derived from ctx.
func (t *OperationTracker) Begin(ctx context.Context, key Key, work Work) bool {
	t.mu.Lock()
	s := t.slot(key)

	var next loading.Status
	var err error
	if s.status.Phase == loading.Succeeded {
		next, err = s.status.Reload()
	} else {
		next, err = s.status.Start()
	}
	if err != nil {
		t.mu.Unlock()
		t.log(key, s.status).Debug("begin ignored, operation already in flight")
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.status = next
	s.gen++
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = time.Now()
	gen, done := s.gen, s.done
	t.mu.Unlock()

	t.metrics.OperationStarted(string(key.Op))
	t.log(key, next).Debug("operation started")

	go t.run(runCtx, key, gen, done, work)
	return true
}

func (t *OperationTracker) run(ctx context.Context, key Key, gen uint64, done chan struct{}, work Work) {
	err := work(ctx)

	t.mu.Lock()
	s := t.slots[key]
	if s == nil || s.gen != gen {
		t.mu.Unlock()
		t.logger.WithFields(map[string]interface{}{
			"operation": key.Op,
			"target":    key.Target,
		}).Debug("discarding result of abandoned operation")
		return
	}

	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
		s.status, _ = s.status.Fail(errors.CodeOf(err), err.Error())
	} else {
		s.status, _ = s.status.Succeed()
	}
	status := s.status
	elapsed := time.Since(s.started)
	s.cancel()
	s.cancel = nil
	s.done = nil
	hooks := append([]TransitionFunc(nil), t.hooks...)
	t.mu.Unlock()

	t.metrics.OperationSettled(string(key.Op), outcome, elapsed)
	if err != nil {
		t.log(key, status).WithError(err).Debug("operation failed")
	} else {
		t.log(key, status).Debug("operation succeeded")
	}
	for _, fn := range hooks {
		fn(key, status)
	}
	// Waiters wake only after the hooks have run.
	close(done)
}

// Abandon cancels an in-flight operation and resets its slot to Initial.
// The late result, if any, is discarded.
func (t *OperationTracker) Abandon(key Key) {
	t.mu.Lock()
	s, ok := t.slots[key]
	if !ok || s.status.Phase != loading.Loading {
		t.mu.Unlock()
		return
	}
	s.cancel()
	s.gen++
	s.status = loading.Status{}
	done, elapsed := s.done, time.Since(s.started)
	s.cancel = nil
	s.done = nil
	hooks := append([]TransitionFunc(nil), t.hooks...)
	t.mu.Unlock()

	t.metrics.OperationSettled(string(key.Op), "abandoned", elapsed)
	t.log(key, loading.Status{}).Debug("operation abandoned")
	for _, fn := range hooks {
		fn(key, loading.Status{})
	}
	close(done)
}

// Dismiss acknowledges a failure and resets the slot to Initial.
func (t *OperationTracker) Dismiss(key Key) error {
	t.mu.Lock()
	s := t.slot(key)
	next, err := s.status.Dismiss()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	s.status = next
	hooks := append([]TransitionFunc(nil), t.hooks...)
	t.mu.Unlock()

	t.log(key, next).Debug("failure dismissed")
	for _, fn := range hooks {
		fn(key, next)
	}
	return nil
}

// Status returns the current status of key.
func (t *OperationTracker) Status(key Key) loading.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[key]; ok {
		return s.status
	}
	return loading.Status{}
}

// Wait blocks until key is no longer loading or ctx is done, then returns
// its status.
func (t *OperationTracker) Wait(ctx context.Context, key Key) (loading.Status, error) {
	t.mu.Lock()
	var done chan struct{}
	if s, ok := t.slots[key]; ok {
		done = s.done
	}
	t.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return t.Status(key), ctx.Err()
		}
	}
	return t.Status(key), nil
}

// Snapshot returns the status of every slot that is not Initial.
func (t *OperationTracker) Snapshot() map[Key]loading.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Key]loading.Status, len(t.slots))
	for k, s := range t.slots {
		if s.status.Phase != loading.Initial {
			out[k] = s.status
		}
	}
	return out
}

func (t *OperationTracker) slot(key Key) *slot {
	s, ok := t.slots[key]
	if !ok {
		s = &slot{}
		t.slots[key] = s
	}
	return s
}

func (t *OperationTracker) log(key Key, status loading.Status) *logger.Logger {
	return t.logger.WithFields(map[string]interface{}{
		"operation": key.Op,
		"target":    key.Target,
		"phase":     status.Phase.String(),
	})
}
