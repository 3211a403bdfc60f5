package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
)

// Backend method names, used to address counters, gates and injected errors.
const (
	MethodList         = "ListResources"
	MethodConnect      = "Connect"
	MethodEdit         = "Edit"
	MethodTest         = "Test"
	MethodDelete       = "Delete"
	MethodDiscover     = "Discover"
	MethodPreview      = "Preview"
	MethodServerConfig = "ServerConfig"
	MethodOperators    = "Operators"
)

// FakeBackend is an in-memory resource.Backend. It counts calls per method,
// can fail a method with an injected error, and can hold a method until the
// test releases it.
type FakeBackend struct {
	mu       sync.Mutex
	records  map[string]resource.Record
	order    []string
	nextID   int
	server   *resource.ServerConfig
	usage    map[string][]resource.OperatorUsage
	objects  map[string][]string
	previews map[string]map[string]*resource.TabularData
	raw      map[string]map[string]interface{}

	calls   map[string]int
	errs    map[string]error
	gates   map[string]chan struct{}
	entered map[string]chan struct{}

	// Sent records the target ids of Edit, Test and Delete calls in order.
	Sent []string
}

// NewMockBackend creates an empty fake backend with file storage active.
func NewMockBackend() *FakeBackend {
	return &FakeBackend{
		records:  map[string]resource.Record{},
		server:   &resource.ServerConfig{StorageConfig: resource.StorageConfig{Type: resource.StorageFile, File: &resource.FileStorage{Directory: "/var/lib/resourcectl"}}},
		usage:    map[string][]resource.OperatorUsage{},
		objects:  map[string][]string{},
		previews: map[string]map[string]*resource.TabularData{},
		raw:      map[string]map[string]interface{}{},
		calls:    map[string]int{},
		errs:     map[string]error{},
		gates:    map[string]chan struct{}{},
		entered:  map[string]chan struct{}{},
	}
}

var _ resource.Backend = (*FakeBackend)(nil)

// AddRecord stores rec as if it had been registered earlier.
func (f *FakeBackend) AddRecord(rec resource.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, ok := f.records[rec.ID]; !ok {
		f.order = append(f.order, rec.ID)
	}
	f.records[rec.ID] = rec
}

// SetExecStatus changes the exec status of a stored record.
func (f *FakeBackend) SetExecStatus(id string, status resource.ExecStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[id]
	rec.ExecState.Status = status
	f.records[id] = rec
}

// SetServerConfig replaces the active server configuration.
func (f *FakeBackend) SetServerConfig(sc *resource.ServerConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.server = sc
}

// SetUsage sets the operator usage reported for id.
func (f *FakeBackend) SetUsage(id string, usage ...resource.OperatorUsage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage[id] = usage
}

// SetObjects sets the object names discovered for id.
func (f *FakeBackend) SetObjects(id string, names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[id] = names
}

// SetPreview sets the content previewed for one object of id.
func (f *FakeBackend) SetPreview(id, object string, data *resource.TabularData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.previews[id] == nil {
		f.previews[id] = map[string]*resource.TabularData{}
	}
	f.previews[id][object] = data
}

// SetRawConfig makes the HTTP test server list id with config as is instead
// of the stored string fields.
func (f *FakeBackend) SetRawConfig(id string, config map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[id] = config
}

// RawConfig returns the config set by SetRawConfig.
func (f *FakeBackend) RawConfig(id string) (map[string]interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	config, ok := f.raw[id]
	return config, ok
}

// FailWith makes every later call of method return err. A nil err clears it.
func (f *FakeBackend) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Hold blocks calls of method until the returned release func is called.
// The second return value is closed once the first held call has entered.
func (f *FakeBackend) Hold(method string) (release func(), entered <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{})
	f.gates[method] = gate
	f.entered[method] = in

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, method)
			f.mu.Unlock()
			close(gate)
		})
	}, in
}

// Calls returns how many times method was called.
func (f *FakeBackend) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Record returns the stored record with the given id.
func (f *FakeBackend) Record(id string) (resource.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	return rec, ok
}

// enter counts the call, waits on a gate if one is set, and returns the
// injected error for method.
func (f *FakeBackend) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	gate := f.gates[method]
	if in, ok := f.entered[method]; ok {
		delete(f.entered, method)
		close(in)
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

// ListResources takes its snapshot before waiting on a gate, so a held call
// returns the state at the time it was issued.
func (f *FakeBackend) ListResources(ctx context.Context) ([]resource.Record, error) {
	f.mu.Lock()
	out := make([]resource.Record, 0, len(f.order))
	for _, id := range f.order {
		rec := f.records[id]
		rec.Config = rec.Config.Clone()
		out = append(out, rec)
	}
	f.mu.Unlock()

	if err := f.enter(ctx, MethodList); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FakeBackend) Connect(ctx context.Context, kind resource.ServiceKind, name string, config resource.Fields) error {
	if err := f.enter(ctx, MethodConnect); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nameTaken(name, "") {
		return errors.NameConflict(name, true)
	}
	f.nextID++
	id := fmt.Sprintf("res-%d", f.nextID)
	f.order = append(f.order, id)
	f.records[id] = resource.Record{
		ID:        id,
		Service:   string(kind),
		Name:      name,
		Config:    config.Clone(),
		CreatedAt: time.Now().UTC(),
		ExecState: resource.ExecState{Status: resource.ExecRegistered},
	}
	return nil
}

// Edit merges config into the stored config. Empty values leave the stored
// value unchanged.
func (f *FakeBackend) Edit(ctx context.Context, id, name string, config resource.Fields) error {
	if err := f.enter(ctx, MethodEdit); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, id)
	rec, ok := f.records[id]
	if !ok {
		return errors.NotFound("resource " + id)
	}
	if f.nameTaken(name, id) {
		return errors.NameConflict(name, true)
	}
	rec.Name = name
	merged := rec.Config.Clone()
	if merged == nil {
		merged = resource.Fields{}
	}
	for k, v := range config {
		if v != "" {
			merged[k] = v
		}
	}
	rec.Config = merged
	f.records[id] = rec
	return nil
}

func (f *FakeBackend) Test(ctx context.Context, id string) error {
	if err := f.enter(ctx, MethodTest); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, id)
	if _, ok := f.records[id]; !ok {
		return errors.NotFound("resource " + id)
	}
	return nil
}

func (f *FakeBackend) Delete(ctx context.Context, id string) error {
	if err := f.enter(ctx, MethodDelete); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, id)
	if _, ok := f.records[id]; !ok {
		return errors.NotFound("resource " + id)
	}
	delete(f.records, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *FakeBackend) Discover(ctx context.Context, id string) ([]string, error) {
	if err := f.enter(ctx, MethodDiscover); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	names := append([]string{}, f.objects[id]...)
	sort.Strings(names)
	return names, nil
}

func (f *FakeBackend) Preview(ctx context.Context, id, object string) (*resource.TabularData, error) {
	if err := f.enter(ctx, MethodPreview); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.previews[id][object]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("object %s of %s", object, id))
	}
	return data, nil
}

func (f *FakeBackend) ServerConfig(ctx context.Context) (*resource.ServerConfig, error) {
	if err := f.enter(ctx, MethodServerConfig); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sc := *f.server
	return &sc, nil
}

func (f *FakeBackend) Operators(ctx context.Context, id string) ([]resource.OperatorUsage, error) {
	if err := f.enter(ctx, MethodOperators); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resource.OperatorUsage(nil), f.usage[id]...), nil
}

func (f *FakeBackend) nameTaken(name, exceptID string) bool {
	for id, rec := range f.records {
		if id != exceptID && strings.EqualFold(rec.Name, name) {
			return true
		}
	}
	return false
}
