package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/metrics"
	"github.com/pratik-mahalle/resourcectl/internal/services"
)

// DefaultSchedule re-polls the resource set every 15 seconds
const DefaultSchedule = "@every 15s"

// statusMalformed counts list entries that could not be interpreted
const statusMalformed = "malformed"

// ResourceLister is the part of the resource manager the poller needs
type ResourceLister interface {
	Resources(ctx context.Context, force bool) ([]services.Entry, error)
}

// Transition is an observed change of a resource's exec status
type Transition struct {
	ResourceID string
	Name       string
	Kind       resource.ServiceKind
	From       resource.ExecStatus
	To         resource.ExecStatus
	Error      *resource.ExecError
}

func (t Transition) String() string {
	return fmt.Sprintf("%s (%s): %s -> %s", t.Name, t.Kind, t.From, t.To)
}

// StatusPoller periodically refetches the resource set and reports exec
// status transitions
type StatusPoller struct {
	lister   ResourceLister
	schedule string
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	last     map[string]resource.ExecStatus
	primed   bool
	handlers []func(Transition)

	runningMu sync.Mutex
	scheduler *cron.Cron
}

// NewStatusPoller creates a new status poller. An empty schedule means
// DefaultSchedule.
func NewStatusPoller(lister ResourceLister, schedule string, log *logger.Logger, m *metrics.Metrics) (*StatusPoller, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid poll schedule: %w", err)
	}

	if log == nil {
		log = logger.Nop()
	}

	return &StatusPoller{
		lister:   lister,
		schedule: schedule,
		logger:   log.WithComponent("status_poller"),
		metrics:  m,
		last:     map[string]resource.ExecStatus{},
	}, nil
}

// OnTransition registers fn to receive every observed transition
func (p *StatusPoller) OnTransition(fn func(Transition)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

// Poll refetches the resource set once and returns the transitions since
// the previous poll. The first poll only records a baseline.
func (p *StatusPoller) Poll(ctx context.Context) ([]Transition, error) {
	entries, err := p.lister.Resources(ctx, true)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	current := make(map[string]resource.ExecStatus, len(entries))
	byID := make(map[string]*resource.Resource, len(entries))
	for _, e := range entries {
		if e.Err != nil {
			counts[statusMalformed]++
			continue
		}
		counts[string(e.Resource.ExecState.Status)]++
		current[e.Resource.ID] = e.Resource.ExecState.Status
		byID[e.Resource.ID] = e.Resource
	}
	if p.metrics != nil {
		p.metrics.SetResourceCounts(counts)
	}

	p.mu.Lock()
	var transitions []Transition
	if p.primed {
		for id, to := range current {
			from, seen := p.last[id]
			if !seen || from == to {
				continue
			}
			r := byID[id]
			transitions = append(transitions, Transition{
				ResourceID: id,
				Name:       r.Name,
				Kind:       r.Kind,
				From:       from,
				To:         to,
				Error:      r.ExecState.Error,
			})
		}
	}
	p.last = current
	p.primed = true
	handlers := append([]func(Transition){}, p.handlers...)
	p.mu.Unlock()

	for _, t := range transitions {
		p.logger.WithFields(map[string]interface{}{
			"resource_id": t.ResourceID,
			"from":        string(t.From),
			"to":          string(t.To),
		}).Info("resource status changed")
		for _, fn := range handlers {
			fn(t)
		}
	}
	return transitions, nil
}

// Start polls once, then on the configured schedule until ctx is done or
// Stop is called
func (p *StatusPoller) Start(ctx context.Context) error {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.scheduler != nil {
		return fmt.Errorf("status poller is already running")
	}

	if _, err := p.Poll(ctx); err != nil {
		p.logger.ErrorWithErr(err, "Initial status poll failed")
	}

	p.scheduler = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := p.scheduler.AddFunc(p.schedule, func() {
		if _, err := p.Poll(ctx); err != nil {
			p.logger.ErrorWithErr(err, "Status poll failed")
		}
	}); err != nil {
		p.scheduler = nil
		return fmt.Errorf("schedule status poll: %w", err)
	}
	p.scheduler.Start()

	p.logger.WithFields(map[string]interface{}{
		"schedule": p.schedule,
	}).Info("Status poller started")

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running poll to finish
func (p *StatusPoller) Stop() {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.scheduler == nil {
		return
	}
	<-p.scheduler.Stop().Done()
	p.scheduler = nil
	p.logger.Info("Status poller stopped")
}
