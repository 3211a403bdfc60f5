package services

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/registry"
	fakes "github.com/pratik-mahalle/resourcectl/internal/testutil"
)

func fillPostgres(d *Draft, name string) {
	d.Name = name
	for k, v := range postgresFields() {
		d.Set(k, v)
	}
}

func TestDialog_ConnectMakesResourceVisible(t *testing.T) {
	m, backend := newManager(t)
	ctx := waitCtx(t)

	entries, err := m.Resources(ctx, false)
	require.NoError(t, err)
	require.Empty(t, entries)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	fillPostgres(dlg.Draft(), "orders")

	require.NoError(t, dlg.Submit(ctx))
	assert.Equal(t, loading.Succeeded, dlg.Status().Phase)

	r, err := m.Find(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, resource.KindPostgres, r.Kind)
	assert.Equal(t, postgresFields(), r.Config)
	assert.Equal(t, 2, backend.Calls(fakes.MethodList))
}

func TestDialog_ValidationBlocksSubmit(t *testing.T) {
	m, backend := newManager(t)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	dlg.Draft().Name = "orders"
	dlg.Draft().Set("host", "db.internal")

	err = dlg.Submit(waitCtx(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	assert.Zero(t, backend.Calls(fakes.MethodConnect))
	assert.Zero(t, backend.Calls(fakes.MethodList))
}

func TestDialog_ClientSideNameConflict(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	fillPostgres(dlg.Draft(), "Orders")

	err = dlg.Submit(waitCtx(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNameConflict))
	assert.Zero(t, backend.Calls(fakes.MethodConnect))
}

func TestDialog_ServerSideNameConflict(t *testing.T) {
	m, backend := newManager(t)
	ctx := waitCtx(t)

	// The list is cached before another client registers the name.
	_, err := m.Resources(ctx, false)
	require.NoError(t, err)
	seedPostgres(backend)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	fillPostgres(dlg.Draft(), "orders")

	err = dlg.Submit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNameConflict))
	assert.Equal(t, 1, backend.Calls(fakes.MethodConnect))

	status := dlg.Status()
	assert.Equal(t, loading.Failed, status.Phase)
	assert.Equal(t, errors.ErrCodeNameConflict, status.Code)
}

func TestDialog_BackendFailureIsOperationFailed(t *testing.T) {
	m, backend := newManager(t)
	backend.FailWith(fakes.MethodConnect, stderrors.New("could not reach db.internal:5432"))
	ctx := waitCtx(t)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	fillPostgres(dlg.Draft(), "orders")

	err = dlg.Submit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeOperationFailed))
	assert.Contains(t, err.Error(), "db.internal:5432")

	// A retry is a fresh begin.
	backend.FailWith(fakes.MethodConnect, nil)
	require.NoError(t, dlg.Submit(ctx))
	assert.Equal(t, 2, backend.Calls(fakes.MethodConnect))
}

func TestDialog_CancelAbandonsSubmission(t *testing.T) {
	m, backend := newManager(t)
	release, entered := backend.Hold(fakes.MethodConnect)
	defer release()
	ctx := waitCtx(t)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	fillPostgres(dlg.Draft(), "orders")

	result := make(chan error, 1)
	go func() { result <- dlg.Submit(ctx) }()

	<-entered
	dlg.Cancel()

	err = <-result
	require.Error(t, err)
	assert.Equal(t, loading.Initial, dlg.Status().Phase)

	entries, err := m.Resources(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = dlg.Submit(ctx)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "closed dialogs reject submit")
}

func TestDialog_EditKeepsSecretWhenOmitted(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	ctx := waitCtx(t)

	r, err := m.Find(ctx, "orders")
	require.NoError(t, err)

	dlg, err := m.OpenDialog(DialogOptions{Mode: ModeEdit, Resource: r})
	require.NoError(t, err)
	dlg.Draft().Set("password", "")
	dlg.Draft().Set("username", "reporting")
	dlg.Draft().Name = "orders-ro"

	result := dlg.Validate()
	require.True(t, result.OK(), "errors: %v", result.Errors)
	assert.Contains(t, result.Warnings, "host")

	require.NoError(t, dlg.Submit(ctx))

	rec, ok := backend.Record("pg-1")
	require.True(t, ok)
	assert.Equal(t, "orders-ro", rec.Name)
	assert.Equal(t, "reporting", rec.Config["username"])
	assert.Equal(t, "s3cret", rec.Config["password"])

	updated, err := m.Find(ctx, "pg-1")
	require.NoError(t, err)
	assert.Equal(t, "orders-ro", updated.Name)
}

func TestDialog_EditRejectsIdentityChange(t *testing.T) {
	m, backend := newManager(t)
	seedPostgres(backend)
	ctx := waitCtx(t)

	r, err := m.Find(ctx, "pg-1")
	require.NoError(t, err)
	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeEdit, Resource: r})
	require.NoError(t, err)
	dlg.Draft().Set("database", "billing")

	err = dlg.Submit(ctx)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	assert.Zero(t, backend.Calls(fakes.MethodEdit))
}

func TestOpenDialog_Errors(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeEdit})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	r := &resource.Resource{ID: "s3-1", Kind: resource.KindS3, Name: "lake"}
	_, err = m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeEdit, Resource: r})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindS3, Mode: ModeCreate})
	require.NoError(t, err)
	assert.Equal(t, registry.CredentialAccessKey, dlg.Draft().Selection.Credential)
}

func TestDialog_CancelBeforeSubmitIsHarmless(t *testing.T) {
	m, _ := newManager(t)
	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindSlack, Mode: ModeCreate})
	require.NoError(t, err)

	dlg.Cancel()
	dlg.Cancel()
	assert.Equal(t, loading.Initial, dlg.Status().Phase)
}

func TestDialog_CancelDuringNameCheckPreventsDispatch(t *testing.T) {
	m, backend := newManager(t)
	release, entered := backend.Hold(fakes.MethodList)
	defer release()
	ctx := waitCtx(t)

	dlg, err := m.OpenDialog(DialogOptions{Kind: resource.KindPostgres, Mode: ModeCreate})
	require.NoError(t, err)
	fillPostgres(dlg.Draft(), "orders")

	result := make(chan error, 1)
	go func() { result <- dlg.Submit(ctx) }()

	<-entered
	dlg.Cancel()
	release()

	err = <-result
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	assert.Contains(t, err.Error(), "closed")
	assert.Zero(t, backend.Calls(fakes.MethodConnect))
	assert.Equal(t, loading.Initial, dlg.Status().Phase)
}
