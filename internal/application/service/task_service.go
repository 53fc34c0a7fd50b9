package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	domainwf "github.com/rpma/ppf-workflow/internal/domain/workflow"
	"github.com/rpma/ppf-workflow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateTaskRequest describes a new vehicle work order
type CreateTaskRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	CustomerName string   `json:"customer_name" validate:"max=200"`
	VehiclePlate string   `json:"vehicle_plate" validate:"required,max=32"`
	VehicleMake  string   `json:"vehicle_make"`
	VehicleModel string   `json:"vehicle_model"`
	VehicleYear  int      `json:"vehicle_year" validate:"omitempty,gte=1900,lte=2100"`
	VIN          string   `json:"vin" validate:"omitempty,vin"`
	PPFZones     []string `json:"ppf_zones" validate:"omitempty,unique,dive,zone"`
	TechnicianID string   `json:"technician_id"`
}

// TaskService manages the work orders interventions run against.
// Task status after creation is owned by the workflow engine.
type TaskService interface {
	// CreateTask validates and stores a new pending task
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entity.Task, error)

	// GetTask retrieves a task by its ID
	GetTask(ctx context.Context, taskID string) (*entity.Task, error)

	// ListTasks returns tasks newest first. Limit is clamped to a sane page size.
	ListTasks(ctx context.Context, limit, offset int) ([]*entity.Task, error)
}

type taskServiceImpl struct {
	taskRepo port.TaskRepository
	logger   Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo port.TaskRepository, logger Logger) TaskService {
	return &taskServiceImpl{
		taskRepo: taskRepo,
		logger:   logger,
	}
}

// CreateTask validates and stores a new pending task
func (s *taskServiceImpl) CreateTask(ctx context.Context, req CreateTaskRequest) (*entity.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.VehiclePlate = strings.ToUpper(strings.TrimSpace(req.VehiclePlate))
	req.VIN = strings.ToUpper(strings.TrimSpace(req.VIN))
	for i, z := range req.PPFZones {
		req.PPFZones[i] = strings.TrimSpace(z)
	}

	if msgs := utils.ValidateStruct(req); len(msgs) > 0 {
		return nil, domainwf.ValidationFailed("invalid task", msgs...)
	}

	task := &entity.Task{
		ID:           uuid.NewString(),
		Title:        utils.SanitizeString(req.Title),
		CustomerName: utils.SanitizeString(req.CustomerName),
		VehiclePlate: req.VehiclePlate,
		VehicleMake:  utils.SanitizeString(req.VehicleMake),
		VehicleModel: utils.SanitizeString(req.VehicleModel),
		VehicleYear:  req.VehicleYear,
		VIN:          req.VIN,
		PPFZones:     req.PPFZones,
		TechnicianID: req.TechnicianID,
		Status:       entity.TaskStatusPending,
	}
	if task.PPFZones == nil {
		task.PPFZones = []string{}
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		s.logger.Error("Failed to create task",
			"error", err,
			"vehicle_plate", task.VehiclePlate)
		return nil, domainwf.Internal("create task", err)
	}

	s.logger.Info("Task created",
		"task_id", task.ID,
		"vehicle_plate", task.VehiclePlate,
		"zone_count", len(task.PPFZones))

	return task, nil
}

// GetTask retrieves a task by its ID
func (s *taskServiceImpl) GetTask(ctx context.Context, taskID string) (*entity.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		s.logger.Error("Failed to get task",
			"error", err,
			"task_id", taskID)
		return nil, domainwf.Internal("get task", err)
	}
	if task == nil {
		return nil, domainwf.NotFound("task", taskID)
	}
	return task, nil
}

// ListTasks returns tasks newest first
func (s *taskServiceImpl) ListTasks(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, err := s.taskRepo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list tasks",
			"error", err,
			"limit", limit,
			"offset", offset)
		return nil, domainwf.Internal("list tasks", err)
	}
	return tasks, nil
}
