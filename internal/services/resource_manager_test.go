package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
	fakes "github.com/pratik-mahalle/resourcectl/internal/testutil"
)

const condaPayload = `{"id":"conda-1","name":"conda","config":{"python":"3.11"},"exec_state":{"status":"succeeded"}}`

func newManager(t *testing.T) (*ResourceManager, *fakes.FakeBackend) {
	t.Helper()
	backend := fakes.NewMockBackend()
	return NewResourceManager(backend, logger.Nop(), metrics.New()), backend
}

func seedPostgres(backend *fakes.FakeBackend) {
	backend.AddRecord(resource.Record{
		ID:        "pg-1",
		Service:   "Postgres",
		Name:      "orders",
		Config:    postgresFields(),
		ExecState: resource.ExecState{Status: resource.ExecSucceeded},
	})
}

func TestResourceManager_ResourcesCachesUntilInvalidated(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	ctx := context.Background()

	entries, err := m.Resources(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, resource.KindPostgres, entries[0].Resource.Kind)

	_, err = m.Resources(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Calls(fakes.MethodList))
	assert.Equal(t, loading.Succeeded, m.ListStatus().Phase)

	m.Invalidate()
	_, err = m.Resources(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(fakes.MethodList))

	_, err = m.Resources(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.Calls(fakes.MethodList))
}

func TestResourceManager_MalformedEntriesAreIsolated(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	backend.AddRecord(resource.Record{ID: "ora-1", Service: "Oracle", Name: "legacy"})
	backend.AddRecord(resource.Record{ID: "pg-2", Service: "Postgres", Name: "broken", Config: resource.Fields{"port": "fifty"}})
	backend.AddRecord(resource.Record{ID: "srv", Service: "Server", Name: "Server", Config: resource.Fields{resource.FieldCondaConfig: "{not json"}})

	entries, err := m.Resources(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.NoError(t, entries[0].Err)
	assert.True(t, errors.Is(entries[1].Err, errors.ErrCodeUnknownService))
	assert.True(t, errors.Is(entries[2].Err, errors.ErrCodeMalformedResource))
	assert.True(t, errors.Is(entries[3].Err, errors.ErrCodeMalformedResource))
	assert.Nil(t, entries[1].Resource)

	_, err = m.Find(context.Background(), "legacy")
	assert.True(t, errors.Is(err, errors.ErrCodeUnknownService))
}

func TestResourceManager_ListFailure(t *testing.T) {
	m, backend := newManager(t)
	backend.FailWith(fakes.MethodList, stderrors.New("connection refused"))

	_, err := m.Resources(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeOperationFailed))
	assert.Equal(t, loading.Failed, m.ListStatus().Phase)

	backend.FailWith(fakes.MethodList, nil)
	_, err = m.Resources(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, loading.Succeeded, m.ListStatus().Phase)
}

func TestResourceManager_Find(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	ctx := context.Background()

	byID, err := m.Find(ctx, "pg-1")
	require.NoError(t, err)
	byName, err := m.Find(ctx, "orders")
	require.NoError(t, err)
	assert.Same(t, byID, byName)

	_, err = m.Find(ctx, "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestResourceManager_TestConnection(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	ctx := waitCtx(t)

	status, err := m.TestConnection(ctx, "pg-1")
	require.NoError(t, err)
	assert.Equal(t, loading.Succeeded, status.Phase)

	backend.FailWith(fakes.MethodTest, stderrors.New("password authentication failed"))
	status, err = m.TestConnection(ctx, "pg-1")
	require.Error(t, err)
	assert.Equal(t, loading.Failed, status.Phase)
	assert.Contains(t, status.Message, "password authentication failed")
	assert.True(t, errors.Is(err, errors.ErrCodeOperationFailed))

	require.NoError(t, m.Dismiss(OpTest, "pg-1"))
	assert.Equal(t, loading.Initial, m.Tracker().Status(Key{Op: OpTest, Target: "pg-1"}).Phase)
}

func TestResourceManager_DeleteSubstitutesConda(t *testing.T) {
	m, backend := newManager(t)
	backend.AddRecord(resource.Record{
		ID:      "srv",
		Service: "Server",
		Name:    "Server",
		Config:  resource.Fields{resource.FieldCondaConfig: condaPayload},
	})
	ctx := waitCtx(t)

	plan, err := m.PlanDelete(ctx, "Server")
	require.NoError(t, err)
	assert.True(t, plan.Substituted)
	assert.Equal(t, "conda-1", plan.Target.ID)
	assert.Equal(t, "3.11", plan.Target.Config["python"])
	assert.True(t, plan.Decision.Allowed)
	assert.Equal(t, 1, backend.Calls(fakes.MethodServerConfig))
	assert.Equal(t, 1, backend.Calls(fakes.MethodOperators))

	// The fake has no record for the sub-resource, so the request fails, but
	// what matters is the id it was sent.
	_, _ = m.Delete(ctx, plan)
	assert.Equal(t, []string{"conda-1"}, backend.Sent)
	assert.NotContains(t, backend.Sent, "srv")
}

func TestResourceManager_DeleteDenied(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	backend.SetUsage("pg-1", resource.OperatorUsage{ResourceID: "pg-1", WorkflowID: "wf-1", IsActive: true})
	ctx := waitCtx(t)

	plan, err := m.PlanDelete(ctx, "orders")
	require.NoError(t, err)
	assert.False(t, plan.Decision.Allowed)
	assert.Equal(t, ReasonActiveWorkflow, plan.Decision.Reason)

	_, err = m.Delete(ctx, plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDeletionDenied))
	assert.Zero(t, backend.Calls(fakes.MethodDelete))
}

func TestResourceManager_DeleteRemovesAndRefreshes(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	backend.SetObjects("pg-1", "orders")
	ctx := waitCtx(t)

	_, err := m.ListObjects(ctx, "pg-1", false)
	require.NoError(t, err)

	plan, err := m.PlanDelete(ctx, "pg-1")
	require.NoError(t, err)
	require.True(t, plan.Decision.Allowed)

	status, err := m.Delete(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, loading.Succeeded, status.Phase)
	assert.Equal(t, loading.Initial, m.Objects().NamesStatus("pg-1").Phase)

	entries, err := m.Resources(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 2, backend.Calls(fakes.MethodList))
}

func TestResourceManager_PlanDeleteFetchFailure(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	backend.FailWith(fakes.MethodOperators, stderrors.New("503"))

	_, err := m.PlanDelete(waitCtx(t), "pg-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeOperationFailed))
}

func TestResourceManager_ObjectsDelegation(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	backend.SetObjects("pg-1", "orders")
	backend.SetPreview("pg-1", "orders", table("o1"))
	ctx := waitCtx(t)

	names, err := m.ListObjects(ctx, "orders", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, names)

	data, err := m.PreviewObject(ctx, "orders", "orders", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, data.Columns())
}

func TestResourceManager_InvalidateDuringFetch(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	release, entered := backend.Hold(fakes.MethodList)
	defer release()
	ctx := waitCtx(t)

	before := make(chan []Entry, 1)
	go func() {
		entries, _ := m.Resources(ctx, false)
		before <- entries
	}()
	<-entered

	// A resource is connected elsewhere while the first list is in flight.
	backend.AddRecord(resource.Record{
		ID:      "s3-1",
		Service: "S3",
		Name:    "lake",
		Config:  resource.Fields{"type": "access_key", "bucket": "lake", "region": "us-east-1"},
	})
	m.Invalidate()

	after := make(chan []Entry, 1)
	go func() {
		entries, _ := m.Resources(ctx, false)
		after <- entries
	}()
	assert.Eventually(t, func() bool { return backend.Calls(fakes.MethodList) == 2 },
		time.Second, 5*time.Millisecond, "a fetch started before Invalidate must not be joined")
	release()

	assert.Len(t, <-before, 1)
	assert.Len(t, <-after, 2)

	cached, err := m.Resources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
	assert.Equal(t, 2, backend.Calls(fakes.MethodList))
	assert.Equal(t, loading.Succeeded, m.ListStatus().Phase)
}

func TestResourceManager_StaleFetchDoesNotReplaceList(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	release, entered := backend.Hold(fakes.MethodList)
	ctx := waitCtx(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Resources(ctx, false)
	}()
	<-entered
	m.Invalidate()
	release()
	<-done

	// The settled fetch predates the invalidation, so the next call refetches.
	assert.Equal(t, loading.Succeeded, m.ListStatus().Phase)
	_, err := m.Resources(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(fakes.MethodList))
}

func TestResourceManager_CancelledCallerDoesNotFailOthers(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	release, entered := backend.Hold(fakes.MethodList)
	defer release()

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Resources(first, false)
		firstErr <- err
	}()
	<-entered

	ctx := waitCtx(t)
	second := make(chan []Entry, 1)
	go func() {
		entries, _ := m.Resources(ctx, false)
		second <- entries
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	release()

	assert.Len(t, <-second, 1)
	assert.Equal(t, loading.Succeeded, m.ListStatus().Phase)
	assert.Equal(t, 1, backend.Calls(fakes.MethodList))
}
