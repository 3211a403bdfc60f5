// Package loading implements the four-phase status used by every
// asynchronous client operation.
//
// Legal transitions:
//
//	Initial   -> Loading
//	Failed    -> Loading   (retry)
//	Succeeded -> Loading   (explicit reload only)
//	Loading   -> Succeeded | Failed
//	Failed    -> Initial   (dismiss)
package loading

import (
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
)

// Phase is the lifecycle phase of one asynchronous operation.
type Phase int

const (
	Initial Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Initial:
		return "initial"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether the phase is terminal for the current cycle.
func (p Phase) Settled() bool {
	return p == Succeeded || p == Failed
}

// Status is an immutable snapshot. Transition methods return a new Status.
type Status struct {
	Phase   Phase  `json:"phase"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Start begins a fresh cycle from Initial or Failed.
func (s Status) Start() (Status, error) {
	if s.Phase != Initial && s.Phase != Failed {
		return s, errors.InvalidTransition(s.Phase.String(), Loading.String())
	}
	return Status{Phase: Loading}, nil
}

// Reload begins a fresh cycle from any settled or initial phase. It is the
// only way back into Loading once Succeeded.
func (s Status) Reload() (Status, error) {
	if s.Phase == Loading {
		return s, errors.InvalidTransition(s.Phase.String(), Loading.String())
	}
	return Status{Phase: Loading}, nil
}

// Succeed settles a Loading status successfully.
func (s Status) Succeed() (Status, error) {
	if s.Phase != Loading {
		return s, errors.InvalidTransition(s.Phase.String(), Succeeded.String())
	}
	return Status{Phase: Succeeded}, nil
}

// Fail settles a Loading status with an error payload.
func (s Status) Fail(code, message string) (Status, error) {
	if s.Phase != Loading {
		return s, errors.InvalidTransition(s.Phase.String(), Failed.String())
	}
	return Status{Phase: Failed, Code: code, Message: message}, nil
}

// Dismiss acknowledges a failure and returns to Initial.
func (s Status) Dismiss() (Status, error) {
	if s.Phase != Failed {
		return s, errors.InvalidTransition(s.Phase.String(), Initial.String())
	}
	return Status{Phase: Initial}, nil
}

// Value pairs a Status with the payload produced by the last successful cycle.
type Value[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
}

// Cached reports whether Data holds the result of a successful load.
func (v Value[T]) Cached() bool {
	return v.Status.Phase == Succeeded
}
