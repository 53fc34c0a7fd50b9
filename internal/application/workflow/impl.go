package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpma/ppf-workflow/internal/application/guard"
	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/domain/event"
	"github.com/rpma/ppf-workflow/internal/domain/requirement"
	domainwf "github.com/rpma/ppf-workflow/internal/domain/workflow"
	"github.com/rpma/ppf-workflow/pkg/utils"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	taskRepo         port.TaskRepository
	interventionRepo port.InterventionRepository
	stepRepo         port.StepRepository
	txManager        port.TransactionManager
	guard            *guard.Guard

	publisher port.EventPublisher
	logger    Logger
	now       func() time.Time

	enforcePhotoMinimum bool
	perZoneDefault      bool
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithPublisher sets where committed events are published
func WithPublisher(p port.EventPublisher) EngineOption {
	return func(e *engineImpl) {
		e.publisher = p
	}
}

// WithLogger sets a logger for the engine
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithEnforcePhotoMinimum rejects completing a step below its photo minimum
func WithEnforcePhotoMinimum(enforce bool) EngineOption {
	return func(e *engineImpl) {
		e.enforcePhotoMinimum = enforce
	}
}

// WithPerZoneInstallation sets the default installation layout for new interventions
func WithPerZoneInstallation(perZone bool) EngineOption {
	return func(e *engineImpl) {
		e.perZoneDefault = perZone
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	taskRepo port.TaskRepository,
	interventionRepo port.InterventionRepository,
	stepRepo port.StepRepository,
	txManager port.TransactionManager,
	g *guard.Guard,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		taskRepo:         taskRepo,
		interventionRepo: interventionRepo,
		stepRepo:         stepRepo,
		txManager:        txManager,
		guard:            g,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// StartIntervention creates a pending intervention and its steps in one transaction
func (e *engineImpl) StartIntervention(ctx context.Context, req StartInterventionRequest) (*entity.Intervention, error) {
	if msgs := utils.ValidateStruct(req); len(msgs) > 0 {
		return nil, domainwf.ValidationFailed("invalid start request", msgs...)
	}

	task, err := e.taskRepo.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, e.internal("load task", err)
	}
	if task == nil {
		return nil, domainwf.ValidationFailed(fmt.Sprintf("task %s does not exist", req.TaskID))
	}
	if task.IsClosed() {
		return nil, domainwf.ValidationFailed(fmt.Sprintf("task %s is already %s", task.ID, task.Status))
	}

	zones := req.Zones
	if len(zones) == 0 {
		zones = task.PPFZones
	}
	cfg := interventionConfig{
		Zones:    normalizeZones(zones),
		FilmType: strings.TrimSpace(req.FilmType),
	}
	if msgs := utils.ValidateStruct(cfg); len(msgs) > 0 {
		return nil, domainwf.ValidationFailed("invalid intervention configuration", msgs...)
	}

	if err := e.guard.EnsureNoActive(ctx, task.ID); err != nil {
		return nil, err
	}

	perZone := e.perZoneDefault
	if req.PerZoneInstallation != nil {
		perZone = *req.PerZoneInstallation
	}

	now := e.now().UTC()
	in := &entity.Intervention{
		ID:                  uuid.NewString(),
		TaskID:              task.ID,
		Status:              entity.InterventionStatusPending,
		PPFZones:            cfg.Zones,
		FilmType:            cfg.FilmType,
		PerZoneInstallation: perZone,
		TechnicianID:        firstNonEmpty(req.ActorID, task.TechnicianID),
		Notes:               utils.SanitizeString(req.Notes),
		Version:             1,
		CreatedBy:           req.ActorID,
		UpdatedBy:           req.ActorID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	steps := requirement.PlanSteps(in.ID, in.PPFZones, perZone)
	for _, s := range steps {
		s.CreatedAt = now
		s.UpdatedAt = now
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.guard.Register(txCtx, in); err != nil {
			return err
		}
		if err := e.stepRepo.CreateBatch(txCtx, steps); err != nil {
			return domainwf.Internal("create steps", err)
		}
		return e.writeTask(txCtx, task.ID, entity.TaskStatusUpdate{
			Status:                entity.TaskStatusInProgress,
			WorkflowStatus:        entity.InterventionStatusPending,
			CurrentInterventionID: in.ID,
		})
	})
	if err != nil {
		return nil, e.fail("start intervention", err)
	}

	in.Steps = steps

	e.logInfo("Intervention started",
		"intervention_id", in.ID,
		"task_id", in.TaskID,
		"step_count", len(steps),
		"per_zone", perZone,
	)

	e.publish(ctx, event.NewEvent(event.TypeInterventionStarted, in.ID, in.TaskID, map[string]interface{}{
		"ppf_zones":             in.PPFZones,
		"film_type":             in.FilmType,
		"step_count":            len(steps),
		"per_zone_installation": perZone,
	}).WithActor(req.ActorID).WithVersion(in.Version))

	return in, nil
}

// AdvanceStep applies a start, complete or skip action to one step
func (e *engineImpl) AdvanceStep(ctx context.Context, req AdvanceStepRequest) (*AdvanceResult, error) {
	if msgs := utils.ValidateStruct(req); len(msgs) > 0 {
		return nil, domainwf.ValidationFailed("invalid step request", msgs...)
	}

	known, err := e.stepRepo.GetByID(ctx, req.StepID)
	if err != nil {
		return nil, e.internal("load step", err)
	}
	if known == nil || known.InterventionID != req.InterventionID {
		return nil, domainwf.StepNotFound(req.StepID)
	}

	in, err := e.guard.Acquire(ctx, guard.AcquireRequest{
		InterventionID:  req.InterventionID,
		ExpectedVersion: req.ExpectedVersion,
		LastSyncedAt:    req.LastSyncedAt,
		CheckFreshness:  true,
	})
	if err != nil {
		return nil, err
	}
	readVersion := in.Version

	// Everything the write depends on is read after the version snapshot, so a
	// writer that committed in between fails the compare-and-swap.
	steps, err := e.stepRepo.GetByInterventionID(ctx, in.ID)
	if err != nil {
		return nil, e.internal("load steps", err)
	}
	step := findStep(steps, req.StepID)
	if step == nil {
		return nil, domainwf.StepNotFound(req.StepID)
	}

	if blocking := blockingSteps(steps, step.StepNumber); len(blocking) > 0 {
		return nil, domainwf.StepOutOfOrder(step.StepNumber, blocking)
	}

	if err := fireStep(ctx, step, req.Action); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	applyStepAction(step, req, now)

	if req.Action == ActionComplete && e.enforcePhotoMinimum && step.PhotoCount < step.MinPhotosRequired {
		return nil, domainwf.ValidationFailed(
			fmt.Sprintf("step %d needs at least %d photos", step.StepNumber, step.MinPhotosRequired),
			fmt.Sprintf("%d photos recorded", step.PhotoCount),
		)
	}

	var taskUpdate *entity.TaskStatusUpdate
	if req.Action == ActionStart && in.Status == entity.InterventionStatusPending {
		if err := fireIntervention(ctx, in, domainwf.TriggerBegin); err != nil {
			return nil, err
		}
		in.StartedAt = &now
		taskUpdate = &entity.TaskStatusUpdate{
			Status:                entity.TaskStatusInProgress,
			WorkflowStatus:        entity.InterventionStatusInProgress,
			CurrentInterventionID: in.ID,
		}
	}
	in.UpdatedBy = req.ActorID

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.stepRepo.Update(txCtx, step); err != nil {
			return domainwf.Internal("update step", err)
		}
		if err := e.guard.Commit(txCtx, in, readVersion); err != nil {
			return err
		}
		if taskUpdate != nil {
			return e.writeTask(txCtx, in.TaskID, *taskUpdate)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail("advance step", err)
	}

	in.Steps = steps

	e.publish(ctx, event.NewEvent(event.TypeStepAdvanced, in.ID, in.TaskID, map[string]interface{}{
		"step_id":             step.ID,
		"step_number":         step.StepNumber,
		"step_type":           step.StepType.String(),
		"action":              string(req.Action),
		"step_status":         step.Status,
		"photo_count":         step.PhotoCount,
		"intervention_status": in.Status,
	}).WithActor(req.ActorID).WithVersion(in.Version))

	return &AdvanceResult{
		Step:         step,
		Intervention: in,
		Summary:      requirement.Summarize(steps),
	}, nil
}

// CompleteIntervention closes an in-progress intervention once every mandatory step is done
func (e *engineImpl) CompleteIntervention(ctx context.Context, req CompleteInterventionRequest) (*CompletionResult, error) {
	in, err := e.guard.Acquire(ctx, guard.AcquireRequest{
		InterventionID:  req.InterventionID,
		ExpectedVersion: req.ExpectedVersion,
		LastSyncedAt:    req.LastSyncedAt,
		CheckFreshness:  true,
	})
	if err != nil {
		return nil, err
	}
	readVersion := in.Version

	steps, err := e.stepRepo.GetByInterventionID(ctx, in.ID)
	if err != nil {
		return nil, e.internal("load steps", err)
	}

	summary := requirement.Summarize(steps)
	if !summary.CanComplete() {
		return nil, domainwf.ValidationFailed("mandatory steps are not finished", summary.MissingStepNames()...)
	}

	if msgs := utils.ValidateStruct(req); len(msgs) > 0 {
		return nil, domainwf.ValidationFailed("invalid completion request", msgs...)
	}

	if err := fireIntervention(ctx, in, domainwf.TriggerComplete); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	in.QualityScore = req.QualityScore
	in.CustomerSatisfaction = req.CustomerSatisfaction
	in.FinalObservations = utils.SanitizeString(req.FinalObservations)
	in.ActualDurationMinutes = req.ActualDuration
	in.CompletedAt = &now
	in.UpdatedBy = req.ActorID

	metrics := requirement.CalculateFinalMetrics(in, steps)
	in.Metrics = &metrics

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.guard.Commit(txCtx, in, readVersion); err != nil {
			return err
		}
		return e.writeTask(txCtx, in.TaskID, entity.TaskStatusUpdate{
			Status:                entity.TaskStatusCompleted,
			WorkflowStatus:        entity.InterventionStatusCompleted,
			CurrentInterventionID: in.ID,
			CompletedAt:           &now,
		})
	})
	if err != nil {
		return nil, e.fail("complete intervention", err)
	}

	in.Steps = steps

	e.logInfo("Intervention completed",
		"intervention_id", in.ID,
		"task_id", in.TaskID,
		"completion_rate", metrics.CompletionRate,
		"duration_minutes", metrics.TotalDurationMinutes,
	)

	e.publish(ctx, event.NewEvent(event.TypeInterventionCompleted, in.ID, in.TaskID, map[string]interface{}{
		"completion_rate":        metrics.CompletionRate,
		"total_duration_minutes": metrics.TotalDurationMinutes,
		"photos_taken":           metrics.PhotosTaken,
		"steps_completed":        metrics.StepsCompleted,
		"steps_skipped":          metrics.StepsSkipped,
	}).WithActor(req.ActorID).WithVersion(in.Version))

	return &CompletionResult{Intervention: in, Metrics: metrics}, nil
}

// CancelIntervention abandons an open intervention and releases its task
func (e *engineImpl) CancelIntervention(ctx context.Context, req CancelInterventionRequest) (*entity.Intervention, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if msgs := utils.ValidateStruct(req); len(msgs) > 0 {
		return nil, domainwf.ValidationFailed("invalid cancel request", msgs...)
	}

	in, err := e.guard.Acquire(ctx, guard.AcquireRequest{
		InterventionID:  req.InterventionID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}
	readVersion := in.Version

	if err := fireIntervention(ctx, in, domainwf.TriggerCancel); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	in.CancellationReason = utils.SanitizeString(req.Reason)
	in.CancellationNotes = utils.SanitizeString(req.Notes)
	in.CancelledAt = &now
	in.UpdatedBy = req.ActorID

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.guard.Commit(txCtx, in, readVersion); err != nil {
			return err
		}
		return e.writeTask(txCtx, in.TaskID, entity.TaskStatusUpdate{
			Status:         entity.TaskStatusCancelled,
			WorkflowStatus: entity.InterventionStatusCancelled,
		})
	})
	if err != nil {
		return nil, e.fail("cancel intervention", err)
	}

	e.logInfo("Intervention cancelled",
		"intervention_id", in.ID,
		"task_id", in.TaskID,
		"reason", in.CancellationReason,
	)

	e.publish(ctx, event.NewEvent(event.TypeInterventionCancelled, in.ID, in.TaskID, map[string]interface{}{
		"reason": in.CancellationReason,
		"notes":  in.CancellationNotes,
	}).WithActor(req.ActorID).WithVersion(in.Version))

	return in, nil
}

// GetIntervention returns an intervention with its steps
func (e *engineImpl) GetIntervention(ctx context.Context, interventionID string) (*entity.Intervention, error) {
	in, err := e.interventionRepo.GetByID(ctx, interventionID)
	if err != nil {
		return nil, e.internal("load intervention", err)
	}
	if in == nil {
		return nil, domainwf.NotFound("intervention", interventionID)
	}
	return e.withSteps(ctx, in)
}

// GetActiveIntervention returns the open intervention of a task
func (e *engineImpl) GetActiveIntervention(ctx context.Context, taskID string) (*entity.Intervention, error) {
	in, err := e.interventionRepo.GetActiveByTaskID(ctx, taskID)
	if err != nil {
		return nil, e.internal("load active intervention", err)
	}
	if in == nil {
		return nil, domainwf.NotFound("active intervention for task", taskID)
	}
	return e.withSteps(ctx, in)
}

// ListTaskInterventions returns the interventions of a task without steps
func (e *engineImpl) ListTaskInterventions(ctx context.Context, taskID string) ([]*entity.Intervention, error) {
	task, err := e.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, e.internal("load task", err)
	}
	if task == nil {
		return nil, domainwf.NotFound("task", taskID)
	}

	list, err := e.interventionRepo.ListByTaskID(ctx, taskID)
	if err != nil {
		return nil, e.internal("list interventions", err)
	}
	return list, nil
}

// GetProgress computes the summary and requirement list of an intervention
func (e *engineImpl) GetProgress(ctx context.Context, interventionID string) (*Progress, error) {
	in, err := e.GetIntervention(ctx, interventionID)
	if err != nil {
		return nil, err
	}

	summary := requirement.Summarize(in.Steps)
	return &Progress{
		Intervention: in,
		Summary:      summary,
		Requirements: requirement.BuildInitialRequirements(in, in.Steps),
		CanComplete:  in.Status == entity.InterventionStatusInProgress && summary.CanComplete(),
	}, nil
}

func (e *engineImpl) withSteps(ctx context.Context, in *entity.Intervention) (*entity.Intervention, error) {
	steps, err := e.stepRepo.GetByInterventionID(ctx, in.ID)
	if err != nil {
		return nil, e.internal("load steps", err)
	}
	in.Steps = steps
	return in, nil
}

func (e *engineImpl) writeTask(ctx context.Context, taskID string, update entity.TaskStatusUpdate) error {
	if err := e.taskRepo.UpdateWorkflowStatus(ctx, taskID, update); err != nil {
		return domainwf.Internal("update task", err)
	}
	return nil
}

// interventionConfig is validated after zones are defaulted from the task
type interventionConfig struct {
	Zones    []string `json:"ppf_zones" validate:"required,min=1,unique,dive,zone"`
	FilmType string   `json:"film_type" validate:"required,film_type"`
}

func normalizeZones(zones []string) []string {
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		out = append(out, strings.TrimSpace(z))
	}
	return out
}

func findStep(steps []*entity.InterventionStep, stepID string) *entity.InterventionStep {
	for _, s := range steps {
		if s.ID == stepID {
			return s
		}
	}
	return nil
}

// blockingSteps lists the numbers of earlier steps that are neither completed nor skipped
func blockingSteps(steps []*entity.InterventionStep, stepNumber int) []int {
	var blocking []int
	for _, s := range steps {
		if s.StepNumber < stepNumber && !s.IsDone() {
			blocking = append(blocking, s.StepNumber)
		}
	}
	return blocking
}

// applyStepAction records evidence and timestamps after a successful transition
func applyStepAction(step *entity.InterventionStep, req AdvanceStepRequest, now time.Time) {
	if req.Location != nil {
		lat, lon := req.Location.Lat, req.Location.Lon
		step.LocationLat = &lat
		step.LocationLon = &lon
	}

	if notes := strings.TrimSpace(utils.SanitizeString(req.Notes)); notes != "" {
		if step.Notes != "" {
			step.Notes += "\n"
		}
		step.Notes += notes
	}

	if len(req.CollectedData) > 0 {
		if step.CollectedData == nil {
			step.CollectedData = make(map[string]interface{}, len(req.CollectedData))
		}
		for k, v := range req.CollectedData {
			step.CollectedData[k] = v
		}
	}

	step.PhotoURLs = append(step.PhotoURLs, req.Photos...)
	step.PhotoCount += len(req.Photos)

	switch req.Action {
	case ActionStart:
		step.StartedAt = &now
		step.StartedBy = req.ActorID
	case ActionComplete:
		step.CompletedAt = &now
		step.CompletedBy = req.ActorID
		if req.DurationMinutes != nil {
			d := *req.DurationMinutes
			step.DurationMinutes = &d
		} else if step.StartedAt != nil {
			d := int(now.Sub(*step.StartedAt).Minutes())
			step.DurationMinutes = &d
		}
	case ActionSkip:
		step.CompletedAt = &now
		step.CompletedBy = req.ActorID
	}

	step.UpdatedAt = now
}

// publish sends an event after commit. It never fails the operation.
func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ctx, evt)
}

// fail passes domain errors through and wraps anything else as a database error
func (e *engineImpl) fail(op string, err error) error {
	var ie *domainwf.InterventionError
	if errors.As(err, &ie) {
		if ie.Kind == domainwf.KindDatabase {
			e.logError("Workflow operation failed", "operation", op, "error", err)
		}
		return err
	}
	return e.internal(op, err)
}

func (e *engineImpl) internal(op string, err error) error {
	e.logError("Workflow storage failure", "operation", op, "error", err)
	return domainwf.Internal(op, err)
}

func (e *engineImpl) logInfo(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) logError(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
