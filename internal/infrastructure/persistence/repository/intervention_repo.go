package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/sqlite"
)

// InterventionRepository implements port.InterventionRepository
type InterventionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInterventionRepository creates a new intervention repository
func NewInterventionRepository(db *sql.DB, logger *zap.Logger) port.InterventionRepository {
	return &InterventionRepository{
		db:     db,
		logger: logger,
	}
}

const interventionColumns = `
	id, task_id, status, ppf_zones_config, film_type, per_zone_installation,
	technician_id, notes, quality_score, customer_satisfaction,
	final_observations, actual_duration, metrics, cancellation_reason,
	cancellation_notes, cancelled_at, started_at, completed_at, version,
	created_by, updated_by, created_at, updated_at`

// Create inserts a new intervention. A second active intervention for the
// same task fails with port.ErrActiveInterventionExists.
func (r *InterventionRepository) Create(ctx context.Context, in *entity.Intervention) error {
	zones, err := toJSON(in.PPFZones, "[]")
	if err != nil {
		return err
	}
	metrics, err := encodeMetrics(in.Metrics)
	if err != nil {
		return err
	}
	if in.Version == 0 {
		in.Version = 1
	}

	query := `INSERT INTO interventions (` + interventionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		in.ID,
		in.TaskID,
		in.Status,
		zones,
		in.FilmType,
		in.PerZoneInstallation,
		in.TechnicianID,
		in.Notes,
		nullInt(in.QualityScore),
		nullInt(in.CustomerSatisfaction),
		in.FinalObservations,
		nullInt(in.ActualDurationMinutes),
		metrics,
		in.CancellationReason,
		in.CancellationNotes,
		nullTime(in.CancelledAt),
		nullTime(in.StartedAt),
		nullTime(in.CompletedAt),
		in.Version,
		in.CreatedBy,
		in.UpdatedBy,
		in.CreatedAt,
		in.UpdatedAt,
	)
	if err != nil {
		if isActiveConflict(err) {
			return port.ErrActiveInterventionExists
		}
		r.logger.Error("Failed to create intervention",
			zap.String("intervention_id", in.ID),
			zap.String("task_id", in.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create intervention: %w", err)
	}

	return nil
}

// isActiveConflict reports whether err is a violation of the one-active-per-task index
func isActiveConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "interventions.task_id")
}

// GetByID retrieves an intervention by ID (without steps)
func (r *InterventionRepository) GetByID(ctx context.Context, id string) (*entity.Intervention, error) {
	query := `SELECT ` + interventionColumns + ` FROM interventions WHERE id = ?`

	in, err := scanIntervention(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get intervention by ID", zap.String("intervention_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get intervention: %w", err)
	}

	return in, nil
}

// GetActiveByTaskID returns the pending or in-progress intervention of a task
func (r *InterventionRepository) GetActiveByTaskID(ctx context.Context, taskID string) (*entity.Intervention, error) {
	query := `SELECT ` + interventionColumns + ` FROM interventions
		WHERE task_id = ? AND status IN ('pending', 'in_progress')`

	in, err := scanIntervention(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, taskID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active intervention", zap.String("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("failed to get active intervention: %w", err)
	}

	return in, nil
}

// ListByTaskID returns every intervention of a task, oldest first
func (r *InterventionRepository) ListByTaskID(ctx context.Context, taskID string) ([]*entity.Intervention, error) {
	query := `SELECT ` + interventionColumns + ` FROM interventions
		WHERE task_id = ? ORDER BY created_at, id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to list interventions", zap.String("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}
	defer rows.Close()

	list := []*entity.Intervention{}
	for rows.Next() {
		in, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		list = append(list, in)
	}

	return list, rows.Err()
}

// UpdateIfVersion writes every mutable column when the stored version still
// equals expectedVersion, incrementing it by one.
func (r *InterventionRepository) UpdateIfVersion(ctx context.Context, in *entity.Intervention, expectedVersion int64) (bool, error) {
	metrics, err := encodeMetrics(in.Metrics)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE interventions
		SET status = ?, notes = ?, quality_score = ?, customer_satisfaction = ?,
			final_observations = ?, actual_duration = ?, metrics = ?,
			cancellation_reason = ?, cancellation_notes = ?, cancelled_at = ?,
			started_at = ?, completed_at = ?, updated_by = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		in.Status,
		in.Notes,
		nullInt(in.QualityScore),
		nullInt(in.CustomerSatisfaction),
		in.FinalObservations,
		nullInt(in.ActualDurationMinutes),
		metrics,
		in.CancellationReason,
		in.CancellationNotes,
		nullTime(in.CancelledAt),
		nullTime(in.StartedAt),
		nullTime(in.CompletedAt),
		in.UpdatedBy,
		in.UpdatedAt,
		in.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update intervention",
			zap.String("intervention_id", in.ID),
			zap.Int64("expected_version", expectedVersion),
			zap.Error(err))
		return false, fmt.Errorf("failed to update intervention: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

func encodeMetrics(m *entity.InterventionMetrics) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	s, err := toJSON(m, "")
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func scanIntervention(row rowScanner) (*entity.Intervention, error) {
	var (
		in           entity.Intervention
		zones        string
		quality      sql.NullInt64
		satisfaction sql.NullInt64
		duration     sql.NullInt64
		metrics      sql.NullString
		cancelledAt  sql.NullTime
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&in.ID,
		&in.TaskID,
		&in.Status,
		&zones,
		&in.FilmType,
		&in.PerZoneInstallation,
		&in.TechnicianID,
		&in.Notes,
		&quality,
		&satisfaction,
		&in.FinalObservations,
		&duration,
		&metrics,
		&in.CancellationReason,
		&in.CancellationNotes,
		&cancelledAt,
		&startedAt,
		&completedAt,
		&in.Version,
		&in.CreatedBy,
		&in.UpdatedBy,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(zones, &in.PPFZones); err != nil {
		return nil, err
	}
	if metrics.Valid {
		in.Metrics = &entity.InterventionMetrics{}
		if err := fromJSON(metrics.String, in.Metrics); err != nil {
			return nil, err
		}
	}
	in.QualityScore = intPtr(quality)
	in.CustomerSatisfaction = intPtr(satisfaction)
	in.ActualDurationMinutes = intPtr(duration)
	in.CancelledAt = timePtr(cancelledAt)
	in.StartedAt = timePtr(startedAt)
	in.CompletedAt = timePtr(completedAt)

	return &in, nil
}

// Verify interface compliance
var _ port.InterventionRepository = (*InterventionRepository)(nil)
