package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/sqlite"
)

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *sql.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

const stepColumns = `
	id, intervention_id, step_number, step_type, step_name, zone, step_status,
	is_mandatory, min_photos_required, photo_count, photo_urls, notes,
	collected_data, started_at, completed_at, duration_minutes, location_lat,
	location_lon, started_by, completed_by, created_at, updated_at`

// CreateBatch inserts all steps of a new intervention
func (r *StepRepository) CreateBatch(ctx context.Context, steps []*entity.InterventionStep) error {
	query := `INSERT INTO intervention_steps (` + stepColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	exec := sqlite.Conn(ctx, r.db)
	for _, step := range steps {
		photos, data, err := encodeStepJSON(step)
		if err != nil {
			return err
		}

		_, err = exec.ExecContext(ctx, query,
			step.ID,
			step.InterventionID,
			step.StepNumber,
			step.StepType,
			step.StepName,
			step.Zone,
			step.Status,
			step.IsMandatory,
			step.MinPhotosRequired,
			step.PhotoCount,
			photos,
			step.Notes,
			data,
			nullTime(step.StartedAt),
			nullTime(step.CompletedAt),
			nullInt(step.DurationMinutes),
			nullFloat(step.LocationLat),
			nullFloat(step.LocationLon),
			step.StartedBy,
			step.CompletedBy,
			step.CreatedAt,
			step.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create step",
				zap.String("intervention_id", step.InterventionID),
				zap.Int("step_number", step.StepNumber),
				zap.Error(err))
			return fmt.Errorf("failed to create step %d: %w", step.StepNumber, err)
		}
	}

	return nil
}

// GetByID retrieves a step by ID
func (r *StepRepository) GetByID(ctx context.Context, id string) (*entity.InterventionStep, error) {
	query := `SELECT ` + stepColumns + ` FROM intervention_steps WHERE id = ?`

	step, err := scanStep(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step by ID", zap.String("step_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}

	return step, nil
}

// GetByInterventionID returns the steps of an intervention ordered by step number
func (r *StepRepository) GetByInterventionID(ctx context.Context, interventionID string) ([]*entity.InterventionStep, error) {
	query := `SELECT ` + stepColumns + ` FROM intervention_steps
		WHERE intervention_id = ? ORDER BY step_number`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, interventionID)
	if err != nil {
		r.logger.Error("Failed to list steps", zap.String("intervention_id", interventionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*entity.InterventionStep{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// Update writes the mutable columns of a step
func (r *StepRepository) Update(ctx context.Context, step *entity.InterventionStep) error {
	photos, data, err := encodeStepJSON(step)
	if err != nil {
		return err
	}

	query := `
		UPDATE intervention_steps
		SET step_status = ?, photo_count = ?, photo_urls = ?, notes = ?,
			collected_data = ?, started_at = ?, completed_at = ?,
			duration_minutes = ?, location_lat = ?, location_lon = ?,
			started_by = ?, completed_by = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		step.Status,
		step.PhotoCount,
		photos,
		step.Notes,
		data,
		nullTime(step.StartedAt),
		nullTime(step.CompletedAt),
		nullInt(step.DurationMinutes),
		nullFloat(step.LocationLat),
		nullFloat(step.LocationLon),
		step.StartedBy,
		step.CompletedBy,
		step.UpdatedAt,
		step.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update step", zap.String("step_id", step.ID), zap.Error(err))
		return fmt.Errorf("failed to update step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step not found: %s", step.ID)
	}

	return nil
}

func encodeStepJSON(step *entity.InterventionStep) (photos, data string, err error) {
	if photos, err = toJSON(step.PhotoURLs, "[]"); err != nil {
		return "", "", err
	}
	if data, err = toJSON(step.CollectedData, "{}"); err != nil {
		return "", "", err
	}
	return photos, data, nil
}

func scanStep(row rowScanner) (*entity.InterventionStep, error) {
	var (
		step        entity.InterventionStep
		photos      string
		data        string
		startedAt   sql.NullTime
		completedAt sql.NullTime
		duration    sql.NullInt64
		lat         sql.NullFloat64
		lon         sql.NullFloat64
	)

	err := row.Scan(
		&step.ID,
		&step.InterventionID,
		&step.StepNumber,
		&step.StepType,
		&step.StepName,
		&step.Zone,
		&step.Status,
		&step.IsMandatory,
		&step.MinPhotosRequired,
		&step.PhotoCount,
		&photos,
		&step.Notes,
		&data,
		&startedAt,
		&completedAt,
		&duration,
		&lat,
		&lon,
		&step.StartedBy,
		&step.CompletedBy,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(photos, &step.PhotoURLs); err != nil {
		return nil, err
	}
	step.CollectedData = map[string]interface{}{}
	if err := fromJSON(data, &step.CollectedData); err != nil {
		return nil, err
	}
	step.StartedAt = timePtr(startedAt)
	step.CompletedAt = timePtr(completedAt)
	step.DurationMinutes = intPtr(duration)
	step.LocationLat = floatPtr(lat)
	step.LocationLon = floatPtr(lon)

	return &step, nil
}

// Verify interface compliance
var _ port.StepRepository = (*StepRepository)(nil)
