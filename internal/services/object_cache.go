package services

import (
	"context"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
	"github.com/pratik-mahalle/resourcectl/internal/registry"
)

const (
	cacheNames   = "names"
	cachePreview = "preview"
)

type objectEntry struct {
	mu      sync.Mutex
	names   loading.Value[[]string]
	content map[string]*loading.Value[*resource.TabularData]
	open    string
}

// ObjectCache caches, per resource, the discovered object names and the
// previewed content of each object. Concurrent loads of the same key share
// one request.
type ObjectCache struct {
	backend resource.Backend
	entries cmap.ConcurrentMap[string, *objectEntry]
	group   singleflight.Group

	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewObjectCache creates a new object cache
func NewObjectCache(backend resource.Backend, log *logger.Logger, m *metrics.Metrics) *ObjectCache {
	return &ObjectCache{
		backend: backend,
		entries: cmap.New[*objectEntry](),
		logger:  log.WithComponent("object_cache"),
		metrics: m,
	}
}

func (c *ObjectCache) entry(id string) *objectEntry {
	return c.entries.Upsert(id, nil, func(exist bool, inMap, _ *objectEntry) *objectEntry {
		if exist {
			return inMap
		}
		return &objectEntry{content: map[string]*loading.Value[*resource.TabularData]{}}
	})
}

func namesKey(id string) string {
	return cacheNames + "/" + id
}

func previewKey(id, object string) string {
	return cachePreview + "/" + id + "/" + object
}

// ListObjects returns the object names of r. A cached, non-empty list is
// returned without a request unless force is set. Kinds without
// discoverable objects return an empty list without a request.
func (c *ObjectCache) ListObjects(ctx context.Context, r *resource.Resource, force bool) ([]string, error) {
	if !registry.Lookup(r.Kind).Discoverable {
		return []string{}, nil
	}

	e := c.entry(r.ID)
	e.mu.Lock()
	if !force && e.names.Cached() && len(e.names.Data) > 0 {
		names := append([]string(nil), e.names.Data...)
		e.mu.Unlock()
		c.metrics.RecordCacheLookup(cacheNames, true)
		return names, nil
	}
	if e.names.Status.Phase != loading.Loading {
		e.names.Status, _ = e.names.Status.Reload()
	}
	e.mu.Unlock()
	c.metrics.RecordCacheLookup(cacheNames, false)

	ch := c.group.DoChan(namesKey(r.ID), func() (interface{}, error) {
		fctx, cancel := detached(ctx)
		defer cancel()
		names, err := c.backend.Discover(fctx, r.ID)
		return c.storeNames(e, r.ID, names, err)
	})
	v, shared, err := awaitShared(ctx, ch)
	if err != nil {
		return nil, err
	}

	names := v.([]string)
	c.logger.WithFields(map[string]interface{}{
		"target": r.ID,
		"count":  len(names),
		"shared": shared,
	}).Debug("object names loaded")
	return append([]string(nil), names...), nil
}

func (c *ObjectCache) storeNames(e *objectEntry, id string, names []string, err error) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		err = errors.OperationFailed("discover", err)
		if e.names.Status.Phase == loading.Loading {
			e.names.Status, _ = e.names.Status.Fail(errors.CodeOf(err), err.Error())
		}
		c.logger.WithError(err).Debugf("discover %s failed", id)
		return nil, err
	}
	if e.names.Status.Phase == loading.Loading {
		e.names.Status, _ = e.names.Status.Succeed()
		e.names.Data = names
	}
	return names, nil
}

// PreviewObject returns the content of one object and marks it as the open
// object of r. Content fetched earlier for other objects stays cached.
func (c *ObjectCache) PreviewObject(ctx context.Context, r *resource.Resource, object string, force bool) (*resource.TabularData, error) {
	if !registry.Lookup(r.Kind).Discoverable {
		return &resource.TabularData{}, nil
	}

	e := c.entry(r.ID)
	e.mu.Lock()
	e.open = object
	slot, ok := e.content[object]
	if !ok {
		slot = &loading.Value[*resource.TabularData]{}
		e.content[object] = slot
	}
	if !force && slot.Cached() && slot.Data != nil {
		data := slot.Data
		e.mu.Unlock()
		c.metrics.RecordCacheLookup(cachePreview, true)
		return data, nil
	}
	if slot.Status.Phase != loading.Loading {
		slot.Status, _ = slot.Status.Reload()
	}
	e.mu.Unlock()
	c.metrics.RecordCacheLookup(cachePreview, false)

	ch := c.group.DoChan(previewKey(r.ID, object), func() (interface{}, error) {
		fctx, cancel := detached(ctx)
		defer cancel()
		data, err := c.backend.Preview(fctx, r.ID, object)
		return c.storePreview(e, slot, r.ID, object, data, err)
	})
	v, _, err := awaitShared(ctx, ch)
	if err != nil {
		return nil, err
	}
	return v.(*resource.TabularData), nil
}

func (c *ObjectCache) storePreview(e *objectEntry, slot *loading.Value[*resource.TabularData], id, object string, data *resource.TabularData, err error) (*resource.TabularData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		err = errors.OperationFailed("preview", err)
		if slot.Status.Phase == loading.Loading {
			slot.Status, _ = slot.Status.Fail(errors.CodeOf(err), err.Error())
		}
		return nil, err
	}
	if slot.Status.Phase == loading.Loading {
		slot.Status, _ = slot.Status.Succeed()
		slot.Data = data
	}
	if e.open != object {
		c.logger.Debugf("preview of %s/%s arrived after %s was opened", id, object, e.open)
	}
	return data, nil
}

// OpenObject returns the object most recently previewed for id.
func (c *ObjectCache) OpenObject(id string) string {
	e, ok := c.entries.Get(id)
	if !ok {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// NamesStatus returns the loading status of the object name list for id.
func (c *ObjectCache) NamesStatus(id string) loading.Status {
	e, ok := c.entries.Get(id)
	if !ok {
		return loading.Status{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.names.Status
}

// ContentStatus returns the loading status of one object's preview.
func (c *ObjectCache) ContentStatus(id, object string) loading.Status {
	e, ok := c.entries.Get(id)
	if !ok {
		return loading.Status{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot, ok := e.content[object]; ok {
		return slot.Status
	}
	return loading.Status{}
}

// Invalidate drops everything cached for id. Requests still in flight for
// it finish into the dropped entry and are not joined by later lookups.
func (c *ObjectCache) Invalidate(id string) {
	e, ok := c.entries.Pop(id)
	if !ok {
		return
	}
	c.group.Forget(namesKey(id))
	e.mu.Lock()
	defer e.mu.Unlock()
	for object := range e.content {
		c.group.Forget(previewKey(id, object))
	}
}
