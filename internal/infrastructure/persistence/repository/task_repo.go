package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/sqlite"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	id, title, customer_name, vehicle_plate, vehicle_make, vehicle_model,
	vehicle_year, vin, ppf_zones, technician_id, status, workflow_status,
	current_intervention_id, completed_at, created_at, updated_at`

// Create inserts a task. Status defaults to pending.
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	if task.Status == "" {
		task.Status = entity.TaskStatusPending
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	zones, err := toJSON(task.PPFZones, "[]")
	if err != nil {
		return err
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.CustomerName,
		task.VehiclePlate,
		task.VehicleMake,
		task.VehicleModel,
		task.VehicleYear,
		task.VIN,
		zones,
		task.TechnicianID,
		task.Status,
		nullString(task.WorkflowStatus),
		nullString(task.CurrentInterventionID),
		nullTime(task.CompletedAt),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task", zap.String("task_id", task.ID), zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID", zap.String("task_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// List returns tasks, newest first
func (r *TaskRepository) List(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateWorkflowStatus writes the intervention back-pointer onto the task.
// Empty strings clear the nullable columns.
func (r *TaskRepository) UpdateWorkflowStatus(ctx context.Context, id string, update entity.TaskStatusUpdate) error {
	query := `
		UPDATE tasks
		SET status = ?, workflow_status = ?, current_intervention_id = ?,
			completed_at = COALESCE(?, completed_at), updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		update.Status,
		nullString(update.WorkflowStatus),
		nullString(update.CurrentInterventionID),
		nullTime(update.CompletedAt),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update task workflow status", zap.String("task_id", id), zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*entity.Task, error) {
	var (
		task           entity.Task
		zones          string
		workflowStatus sql.NullString
		currentID      sql.NullString
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.CustomerName,
		&task.VehiclePlate,
		&task.VehicleMake,
		&task.VehicleModel,
		&task.VehicleYear,
		&task.VIN,
		&zones,
		&task.TechnicianID,
		&task.Status,
		&workflowStatus,
		&currentID,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(zones, &task.PPFZones); err != nil {
		return nil, err
	}
	task.WorkflowStatus = workflowStatus.String
	task.CurrentInterventionID = currentID.String
	task.CompletedAt = timePtr(completedAt)

	return &task, nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
