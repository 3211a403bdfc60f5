package worker

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
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
	"github.com/pratik-mahalle/resourcectl/internal/services"
	fakes "github.com/pratik-mahalle/resourcectl/internal/testutil"
)

func newPoller(t *testing.T, schedule string) (*StatusPoller, *fakes.FakeBackend, *metrics.Metrics) {
	t.Helper()
	backend := fakes.NewMockBackend()
	m := metrics.New()
	manager := services.NewResourceManager(backend, logger.Nop(), m)
	p, err := NewStatusPoller(manager, schedule, logger.Nop(), m)
	require.NoError(t, err)
	return p, backend, m
}

func TestNewStatusPoller_Schedule(t *testing.T) {
	p, _, _ := newPoller(t, "")
	assert.Equal(t, DefaultSchedule, p.schedule)

	_, err := NewStatusPoller(nil, "every tuesday", nil, nil)
	assert.Error(t, err)
}

func TestStatusPoller_ReportsTransitions(t *testing.T) {
	p, backend, m := newPoller(t, "")
	backend.AddRecord(resource.Record{ID: "pg-1", Service: "Postgres", Name: "orders", ExecState: resource.ExecState{Status: resource.ExecPending}})
	backend.AddRecord(resource.Record{ID: "pg-2", Service: "Postgres", Name: "billing", ExecState: resource.ExecState{Status: resource.ExecSucceeded}})
	ctx := context.Background()

	var seen []Transition
	p.OnTransition(func(tr Transition) { seen = append(seen, tr) })

	transitions, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, transitions, "first poll only records a baseline")

	backend.SetExecStatus("pg-1", resource.ExecFailed)
	transitions, err = p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "pg-1", transitions[0].ResourceID)
	assert.Equal(t, resource.KindPostgres, transitions[0].Kind)
	assert.Equal(t, resource.ExecPending, transitions[0].From)
	assert.Equal(t, resource.ExecFailed, transitions[0].To)
	assert.Equal(t, "orders (Postgres): pending -> failed", transitions[0].String())
	assert.Equal(t, transitions, seen)

	transitions, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, transitions)

	assert.Equal(t, 3, backend.Calls(fakes.MethodList))
	n, err := testutil.GatherAndCount(m.Registry(), "resourcectl_resource_count")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStatusPoller_CountsMalformedEntries(t *testing.T) {
	p, backend, m := newPoller(t, "")
	backend.AddRecord(resource.Record{ID: "ora-1", Service: "Oracle", Name: "legacy"})
	backend.AddRecord(resource.Record{ID: "pg-1", Service: "Postgres", Name: "orders", ExecState: resource.ExecState{Status: resource.ExecSucceeded}})

	transitions, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transitions)
	n, err := testutil.GatherAndCount(m.Registry(), "resourcectl_resource_count")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStatusPoller_ListFailure(t *testing.T) {
	p, backend, _ := newPoller(t, "")
	backend.FailWith(fakes.MethodList, stderrors.New("connection refused"))

	_, err := p.Poll(context.Background())
	assert.Error(t, err)
}

func TestStatusPoller_StartStop(t *testing.T) {
	p, backend, _ := newPoller(t, "@every 1s")
	backend.AddRecord(resource.Record{ID: "pg-1", Service: "Postgres", Name: "orders", ExecState: resource.ExecState{Status: resource.ExecPending}})

	var mu sync.Mutex
	var seen []Transition
	p.OnTransition(func(tr Transition) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tr)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Start(ctx))
	assert.Error(t, p.Start(ctx), "a second start is rejected")
	assert.Equal(t, 1, backend.Calls(fakes.MethodList))

	backend.SetExecStatus("pg-1", resource.ExecSucceeded)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 5*time.Second, 50*time.Millisecond)

	p.Stop()
	p.Stop()
}
