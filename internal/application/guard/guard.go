// Package guard enforces the one-active-intervention-per-task rule and the
// optimistic concurrency checks shared by every workflow write.
package guard

import (
	"context"
	"errors"
	"time"

	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// AcquireRequest identifies the intervention a caller wants to mutate and the
// state the caller last observed.
type AcquireRequest struct {
	InterventionID string

	// ExpectedVersion of 0 skips the version comparison
	ExpectedVersion int64

	// LastSyncedAt is when the caller last read the intervention. When zero
	// the persisted updated_at is used instead.
	LastSyncedAt time.Time

	CheckFreshness bool
}

// Guard checks and commits intervention writes without holding locks
type Guard struct {
	interventions port.InterventionRepository
	staleAfter    time.Duration
	now           func() time.Time
	logger        Logger
}

// Option configures the guard
type Option func(*Guard)

// WithStaleAfter sets the freshness window. Zero disables the check.
func WithStaleAfter(d time.Duration) Option {
	return func(g *Guard) {
		g.staleAfter = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// WithLogger sets a logger for the guard
func WithLogger(logger Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New creates a guard over the intervention repository
func New(interventions port.InterventionRepository, opts ...Option) *Guard {
	g := &Guard{
		interventions: interventions,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureNoActive fails with InterventionAlreadyActive if the task already has
// a pending or in-progress intervention.
func (g *Guard) EnsureNoActive(ctx context.Context, taskID string) error {
	active, err := g.interventions.GetActiveByTaskID(ctx, taskID)
	if err != nil {
		return workflow.Internal("load active intervention", err)
	}
	if active != nil {
		return workflow.AlreadyActive(taskID, active.ID)
	}
	return nil
}

// Acquire loads an intervention for mutation and validates that it is still
// open and that the caller's view of it is current.
func (g *Guard) Acquire(ctx context.Context, req AcquireRequest) (*entity.Intervention, error) {
	in, err := g.interventions.GetByID(ctx, req.InterventionID)
	if err != nil {
		return nil, workflow.Internal("load intervention", err)
	}
	if in == nil {
		return nil, workflow.NotFound("intervention", req.InterventionID)
	}

	if in.IsTerminal() {
		return nil, workflow.InvalidState("intervention %s is %s", in.ID, in.Status)
	}

	if req.ExpectedVersion != 0 && req.ExpectedVersion != in.Version {
		return nil, workflow.ConcurrentModification(in.ID, req.ExpectedVersion, in.Version)
	}

	if req.CheckFreshness && g.staleAfter > 0 {
		anchor := req.LastSyncedAt
		if anchor.IsZero() {
			anchor = in.UpdatedAt
		}
		if idle := g.now().Sub(anchor); idle > g.staleAfter {
			g.logInfo("Rejected stale intervention view",
				"intervention_id", in.ID,
				"idle", idle.String(),
				"stale_after", g.staleAfter.String(),
			)
			return nil, workflow.Timeout(in.ID, idle.Round(time.Second).String())
		}
	}

	return in, nil
}

// Register inserts a new intervention. Losing an insert race against another
// start for the same task surfaces as InterventionAlreadyActive.
func (g *Guard) Register(ctx context.Context, in *entity.Intervention) error {
	err := g.interventions.Create(ctx, in)
	if err == nil {
		return nil
	}

	if errors.Is(err, port.ErrActiveInterventionExists) {
		existing := ""
		if active, lookupErr := g.interventions.GetActiveByTaskID(ctx, in.TaskID); lookupErr == nil && active != nil {
			existing = active.ID
		}
		return workflow.AlreadyActive(in.TaskID, existing)
	}

	return workflow.Internal("create intervention", err)
}

// Commit persists the intervention if nobody else wrote it since expectedVersion
// and advances in.Version on success.
func (g *Guard) Commit(ctx context.Context, in *entity.Intervention, expectedVersion int64) error {
	in.UpdatedAt = g.now().UTC()

	ok, err := g.interventions.UpdateIfVersion(ctx, in, expectedVersion)
	if err != nil {
		return workflow.Internal("update intervention", err)
	}
	if !ok {
		var actual int64
		if current, lookupErr := g.interventions.GetByID(ctx, in.ID); lookupErr == nil && current != nil {
			actual = current.Version
		}
		return workflow.ConcurrentModification(in.ID, expectedVersion, actual)
	}

	in.Version = expectedVersion + 1
	return nil
}

func (g *Guard) logInfo(msg string, kv ...interface{}) {
	if g.logger != nil {
		g.logger.Info(msg, kv...)
	}
}
