package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
)

// Entry is one row of the resource list. Err is set, and Resource nil, when
// the record could not be interpreted; other rows are unaffected.
type Entry struct {
	Record   resource.Record
	Resource *resource.Resource
	Err      error
}

// ResourceManager owns the resource list, the operation slots and the object
// cache, and is the only component that mutates them.
type ResourceManager struct {
	backend   resource.Backend
	validator *ConfigValidator
	tracker   *OperationTracker
	guard     *DeletionGuard
	objects   *ObjectCache

	mu       sync.Mutex
	list     loading.Value[[]Entry]
	gen      uint64
	stale    bool
	inflight int
	group    singleflight.Group

	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewResourceManager wires the lifecycle components around backend
func NewResourceManager(backend resource.Backend, log *logger.Logger, m *metrics.Metrics) *ResourceManager {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}

	rm := &ResourceManager{
		backend:   backend,
		validator: NewConfigValidator(),
		tracker:   NewOperationTracker(log, m),
		guard:     NewDeletionGuard(log),
		objects:   NewObjectCache(backend, log, m),
		logger:    log.WithComponent("resource_manager"),
		metrics:   m,
	}

	rm.tracker.OnTransition(func(key Key, status loading.Status) {
		if status.Phase != loading.Succeeded {
			return
		}
		switch key.Op {
		case OpConnect, OpEdit:
			rm.Invalidate()
		case OpDelete:
			rm.Invalidate()
			rm.objects.Invalidate(key.Target)
		}
	})
	return rm
}

// Tracker exposes the operation slots for status display.
func (m *ResourceManager) Tracker() *OperationTracker {
	return m.tracker
}

// Validator exposes the config validator used by dialogs.
func (m *ResourceManager) Validator() *ConfigValidator {
	return m.validator
}

// Resources returns the resource list, fetching it when it has never been
// loaded, was invalidated, or force is set. Callers of the same generation
// share one request; a fetch started before an Invalidate never becomes the
// cached list.
func (m *ResourceManager) Resources(ctx context.Context, force bool) ([]Entry, error) {
	m.mu.Lock()
	if !force && !m.stale && m.list.Cached() {
		entries := m.list.Data
		m.mu.Unlock()
		return entries, nil
	}
	if m.list.Status.Phase != loading.Loading {
		m.list.Status, _ = m.list.Status.Reload()
	}
	gen := m.gen
	m.mu.Unlock()

	ch := m.group.DoChan(fmt.Sprintf("resources/%d", gen), func() (interface{}, error) {
		fctx, cancel := detached(ctx)
		defer cancel()

		m.mu.Lock()
		m.inflight++
		m.mu.Unlock()

		records, err := m.backend.ListResources(fctx)
		return m.storeList(gen, records, err)
	})
	v, _, err := awaitShared(ctx, ch)
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

// storeList settles one list fetch. Only a fetch of the current generation
// replaces the cached list and clears staleness; an older one still settles
// the status when nothing newer is in flight.
func (m *ResourceManager) storeList(gen uint64, records []resource.Record, err error) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
	current := gen == m.gen
	settle := m.list.Status.Phase == loading.Loading && (current || m.inflight == 0)

	if err != nil {
		err = errors.OperationFailed("list resources", err)
		if settle {
			m.list.Status, _ = m.list.Status.Fail(errors.CodeOf(err), err.Error())
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		r, err := resource.Resolve(rec)
		if err != nil {
			m.logger.WithError(err).Warnf("skipping malformed resource %s", rec.ID)
		}
		entries = append(entries, Entry{Record: rec, Resource: r, Err: err})
	}
	if current {
		m.list.Data = entries
		m.stale = false
	} else {
		m.logger.Debugf("discarding resource list of generation %d, current is %d", gen, m.gen)
	}
	if settle {
		m.list.Status, _ = m.list.Status.Succeed()
	}
	return entries, nil
}

// ListStatus returns the loading status of the resource list.
func (m *ResourceManager) ListStatus() loading.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list.Status
}

// Invalidate forces the next Resources call to refetch. Fetches already in
// flight are not joined by later callers and do not replace the list.
func (m *ResourceManager) Invalidate() {
	m.mu.Lock()
	m.gen++
	m.stale = true
	m.mu.Unlock()
}

// sharedFetchTimeout bounds list, discover and preview requests, which run
// detached from the caller that happened to start them.
const sharedFetchTimeout = 2 * time.Minute

// detached keeps ctx's values but not its cancellation, so one caller giving
// up does not fail the others waiting on the same request.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
}

// awaitShared waits for a shared result or for the caller's own ctx.
func awaitShared(ctx context.Context, ch <-chan singleflight.Result) (interface{}, bool, error) {
	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Find returns the resource with the given id or name.
func (m *ResourceManager) Find(ctx context.Context, idOrName string) (*resource.Resource, error) {
	entries, err := m.Resources(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Record.ID != idOrName && e.Record.Name != idOrName {
			continue
		}
		if e.Err != nil {
			return nil, e.Err
		}
		return e.Resource, nil
	}
	return nil, errors.NotFound("resource " + idOrName)
}

// nameTaken reports whether a cached resource other than exceptID uses name.
// The check is best-effort; the server stays authoritative.
func (m *ResourceManager) nameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	entries, err := m.Resources(ctx, false)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Record.ID != exceptID && strings.EqualFold(e.Record.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// TestConnection checks a resource's connectivity and waits for the result.
func (m *ResourceManager) TestConnection(ctx context.Context, id string) (loading.Status, error) {
	key := Key{Op: OpTest, Target: id}
	m.tracker.Begin(ctx, key, func(ctx context.Context) error {
		if err := m.backend.Test(ctx, id); err != nil {
			return errors.OperationFailed("test connection", err)
		}
		return nil
	})
	return m.settle(ctx, key)
}

// Dismiss acknowledges a failed operation.
func (m *ResourceManager) Dismiss(op Operation, target string) error {
	return m.tracker.Dismiss(Key{Op: op, Target: target})
}

// Wait blocks until an operation settles.
func (m *ResourceManager) Wait(ctx context.Context, op Operation, target string) (loading.Status, error) {
	return m.tracker.Wait(ctx, Key{Op: op, Target: target})
}

// settle waits for key and turns a Failed or abandoned operation into an
// AppError.
func (m *ResourceManager) settle(ctx context.Context, key Key) (loading.Status, error) {
	status, err := m.tracker.Wait(ctx, key)
	if err != nil {
		return status, err
	}
	switch status.Phase {
	case loading.Failed:
		return status, errors.New(status.Code, status.Message)
	case loading.Initial:
		return status, errors.New(errors.ErrCodeOperationFailed, fmt.Sprintf("%s was abandoned", key.Op))
	}
	return status, nil
}

// DeletePlan is the outcome of the delete pre-check.
type DeletePlan struct {
	Resource    *resource.Resource `json:"-"`
	Target      *resource.Resource `json:"-"`
	Substituted bool               `json:"substituted"`
	Decision    Decision           `json:"decision"`
}

// PlanDelete resolves the actual delete target and evaluates the guard
// against fresh server config and operator usage.
func (m *ResourceManager) PlanDelete(ctx context.Context, idOrName string) (*DeletePlan, error) {
	r, err := m.Find(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	target, substituted := m.guard.ResolveDeleteTarget(r)

	var (
		server *resource.ServerConfig
		usage  []resource.OperatorUsage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sc, err := m.backend.ServerConfig(gctx)
		if err != nil {
			return errors.OperationFailed("fetch server config", err)
		}
		server = sc
		return nil
	})
	g.Go(func() error {
		ops, err := m.backend.Operators(gctx, target.ID)
		if err != nil {
			return errors.OperationFailed("fetch operator usage", err)
		}
		usage = ops
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DeletePlan{
		Resource:    r,
		Target:      target,
		Substituted: substituted,
		Decision:    m.guard.CanDelete(target, server, usage),
	}, nil
}

// Delete removes the plan's target. Denied plans are refused without a
// request.
func (m *ResourceManager) Delete(ctx context.Context, plan *DeletePlan) (loading.Status, error) {
	if !plan.Decision.Allowed {
		return loading.Status{}, errors.DeletionDenied(plan.Resource.Name, plan.Decision.Reason)
	}

	id := plan.Target.ID
	key := Key{Op: OpDelete, Target: id}
	m.tracker.Begin(ctx, key, func(ctx context.Context) error {
		if err := m.backend.Delete(ctx, id); err != nil {
			return errors.OperationFailed("delete", err)
		}
		return nil
	})
	return m.settle(ctx, key)
}

// ListObjects returns the discoverable objects of a resource.
func (m *ResourceManager) ListObjects(ctx context.Context, idOrName string, force bool) ([]string, error) {
	r, err := m.Find(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return m.objects.ListObjects(ctx, r, force)
}

// PreviewObject returns the content of one object of a resource.
func (m *ResourceManager) PreviewObject(ctx context.Context, idOrName, object string, force bool) (*resource.TabularData, error) {
	r, err := m.Find(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return m.objects.PreviewObject(ctx, r, object, force)
}

// Objects exposes the object cache.
func (m *ResourceManager) Objects() *ObjectCache {
	return m.objects
}
