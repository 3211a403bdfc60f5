package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
)

// DialogOptions selects what a dialog configures.
type DialogOptions struct {
	Kind     resource.ServiceKind
	Mode     Mode
	Resource *resource.Resource
}

// Dialog is one open connect or edit session. It holds the draft until
// Submit succeeds or Cancel is called.
type Dialog struct {
	manager *ResourceManager
	draft   *Draft

	mu        sync.Mutex
	key       Key
	submitted bool
	closed    bool
}

// OpenDialog starts a connect dialog for opts.Kind, or an edit dialog for
// opts.Resource.
func (m *ResourceManager) OpenDialog(opts DialogOptions) (*Dialog, error) {
	var d *Draft
	switch opts.Mode {
	case ModeCreate:
		d = NewDraft(opts.Kind)
	case ModeEdit:
		if opts.Resource == nil {
			return nil, errors.New(errors.ErrCodeValidation, "edit dialog needs a resource")
		}
		if opts.Kind != "" && opts.Kind != opts.Resource.Kind {
			return nil, errors.New(errors.ErrCodeValidation,
				fmt.Sprintf("resource %s is a %s, not a %s", opts.Resource.Name, opts.Resource.Kind, opts.Kind))
		}
		d = EditDraft(opts.Resource)
	default:
		return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("unknown dialog mode %d", opts.Mode))
	}
	return &Dialog{manager: m, draft: d}, nil
}

// Draft returns the pending configuration.
func (d *Dialog) Draft() *Draft {
	return d.draft
}

// Validate runs the config validator over the current draft.
func (d *Dialog) Validate() *ValidationResult {
	return d.manager.validator.ValidateDraft(d.draft)
}

// Status returns the status of the dialog's operation slot.
func (d *Dialog) Status() loading.Status {
	return d.manager.tracker.Status(d.operationKey())
}

func (d *Dialog) operationKey() Key {
	if d.draft.Mode == ModeEdit {
		return Key{Op: OpEdit, Target: d.draft.Original.ID}
	}
	return Key{Op: OpConnect, Target: strings.TrimSpace(d.draft.Name)}
}

// Submit validates the draft, checks the name against the cached resource
// list, then dispatches connect or edit and waits for it to settle.
//
// Validation and client-side name collisions return before any request.
// A collision the server detects is returned as NAME_CONFLICT.
func (d *Dialog) Submit(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New(errors.ErrCodeValidation, "dialog is closed")
	}
	d.mu.Unlock()

	if err := d.Validate().Err(); err != nil {
		return err
	}

	name := strings.TrimSpace(d.draft.Name)
	exceptID := ""
	if d.draft.Original != nil {
		exceptID = d.draft.Original.ID
	}
	taken, err := d.manager.nameTaken(ctx, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return errors.NameConflict(name, false)
	}

	key := d.operationKey()
	payload := d.draft.Payload()
	backend := d.manager.backend

	var work Work
	switch key.Op {
	case OpEdit:
		work = func(ctx context.Context) error {
			return wrapSubmit("edit", backend.Edit(ctx, key.Target, name, payload))
		}
	default:
		kind := d.draft.Kind
		work = func(ctx context.Context) error {
			return wrapSubmit("connect", backend.Connect(ctx, kind, name, payload))
		}
	}

	// Cancel may have run while the name was being checked. Begin happens
	// under the lock so a concurrent Cancel either prevents it or sees the
	// submission and abandons it.
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New(errors.ErrCodeValidation, "dialog is closed")
	}
	d.key = key
	d.submitted = true
	d.manager.tracker.Begin(ctx, key, work)
	d.mu.Unlock()

	_, err = d.manager.settle(ctx, key)
	return err
}

func wrapSubmit(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrCodeNameConflict) {
		return err
	}
	return errors.OperationFailed(op, err)
}

// Cancel closes the dialog. An in-flight submission is abandoned and its
// result discarded.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	key, submitted := d.key, d.submitted
	d.mu.Unlock()

	if submitted {
		d.manager.tracker.Abandon(key)
	}
}
