package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpma/ppf-workflow/internal/application/dispatcher"
	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/domain/event"
	domainwf "github.com/rpma/ppf-workflow/internal/domain/workflow"
)

// AuditHandlerName is the dispatcher registration name of the audit subscriber
const AuditHandlerName = "audit-log"

// AuditService keeps the append-only trail of intervention events
type AuditService interface {
	// HandleEvent records one published event. Redelivery of the same event is a no-op.
	HandleEvent(ctx context.Context, evt *event.Event) error

	// Register subscribes the service to every intervention event
	Register(d dispatcher.Dispatcher)

	// GetTrail returns the recorded events of an intervention, oldest first
	GetTrail(ctx context.Context, interventionID string) ([]*entity.AuditEntry, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

func (s *auditServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll(AuditHandlerName, s.HandleEvent)
}

// HandleEvent records one published event
func (s *auditServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	payload := "{}"
	if len(evt.Payload) > 0 {
		raw, err := json.Marshal(evt.Payload)
		if err != nil {
			s.logger.Error("Failed to encode audit payload",
				"error", err,
				"event_id", evt.ID,
				"event_type", evt.Type)
			return fmt.Errorf("encode audit payload: %w", err)
		}
		payload = string(raw)
	}

	entry := &entity.AuditEntry{
		EventID:        evt.ID,
		InterventionID: evt.InterventionID,
		TaskID:         evt.TaskID,
		EventType:      evt.Type.String(),
		ActorID:        evt.ActorID,
		Payload:        payload,
		CreatedAt:      evt.Timestamp,
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry",
			"error", err,
			"event_id", evt.ID,
			"intervention_id", evt.InterventionID)
		return fmt.Errorf("record audit entry: %w", err)
	}

	return nil
}

// GetTrail returns the recorded events of an intervention
func (s *auditServiceImpl) GetTrail(ctx context.Context, interventionID string) ([]*entity.AuditEntry, error) {
	entries, err := s.auditRepo.GetByInterventionID(ctx, interventionID)
	if err != nil {
		s.logger.Error("Failed to load audit trail",
			"error", err,
			"intervention_id", interventionID)
		return nil, domainwf.Internal("load audit trail", err)
	}
	return entries, nil
}
