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

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry. Replaying an event ID is a no-op.
func (r *AuditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Payload == "" {
		entry.Payload = "{}"
	}

	query := `
		INSERT INTO intervention_audit_log (
			event_id, intervention_id, task_id, event_type, actor_id, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		entry.EventID,
		entry.InterventionID,
		entry.TaskID,
		entry.EventType,
		entry.ActorID,
		entry.Payload,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry",
			zap.String("event_id", entry.EventID),
			zap.String("intervention_id", entry.InterventionID),
			zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 1 {
		if id, err := result.LastInsertId(); err == nil {
			entry.ID = id
		}
	}

	return nil
}

// GetByInterventionID returns the audit trail of an intervention in insertion order
func (r *AuditRepository) GetByInterventionID(ctx context.Context, interventionID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, event_id, intervention_id, task_id, event_type, actor_id, payload, created_at
		FROM intervention_audit_log
		WHERE intervention_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, interventionID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("intervention_id", interventionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*entity.AuditEntry{}
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.InterventionID,
			&e.TaskID,
			&e.EventType,
			&e.ActorID,
			&e.Payload,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
