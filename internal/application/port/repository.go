package port

import (
	"context"
	"errors"

	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/domain/event"
)

// ErrActiveInterventionExists is returned by InterventionRepository.Create when
// the task already has a pending or in-progress intervention.
var ErrActiveInterventionExists = errors.New("task already has an active intervention")

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id string) (*entity.Task, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Task, error)
	UpdateWorkflowStatus(ctx context.Context, id string, update entity.TaskStatusUpdate) error
}

// InterventionRepository defines persistence operations for Intervention.
// Get methods return (nil, nil) when no row matches.
type InterventionRepository interface {
	// Create inserts a new intervention. The partial unique index on task_id
	// rejects a second active intervention for the same task.
	Create(ctx context.Context, in *entity.Intervention) error

	GetByID(ctx context.Context, id string) (*entity.Intervention, error)

	// GetActiveByTaskID returns the pending or in-progress intervention of a task
	GetActiveByTaskID(ctx context.Context, taskID string) (*entity.Intervention, error)

	ListByTaskID(ctx context.Context, taskID string) ([]*entity.Intervention, error)

	// UpdateIfVersion writes every mutable column and increments version only
	// when the stored version equals expectedVersion. Returns false when no row matched.
	UpdateIfVersion(ctx context.Context, in *entity.Intervention, expectedVersion int64) (bool, error)
}

// StepRepository defines persistence operations for InterventionStep
type StepRepository interface {
	CreateBatch(ctx context.Context, steps []*entity.InterventionStep) error
	GetByID(ctx context.Context, id string) (*entity.InterventionStep, error)

	// GetByInterventionID returns steps ordered by step_number
	GetByInterventionID(ctx context.Context, interventionID string) ([]*entity.InterventionStep, error)

	Update(ctx context.Context, step *entity.InterventionStep) error
}

// AuditRepository defines persistence operations for AuditEntry
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	GetByInterventionID(ctx context.Context, interventionID string) ([]*entity.AuditEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction carried by the returned context.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers committed events to subscribers. Publishing is best
// effort and never reports failure to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}
