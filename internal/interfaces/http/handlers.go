package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/rpma/ppf-workflow/internal/application/service"
	"github.com/rpma/ppf-workflow/internal/application/workflow"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	domainwf "github.com/rpma/ppf-workflow/internal/domain/workflow"
)

// ActorHeader carries the ID of the technician or manager making the call
const ActorHeader = "X-Actor-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine       workflow.WorkflowEngine
	taskService  service.TaskService
	auditService service.AuditService
	health       HealthChecker
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine workflow.WorkflowEngine,
	taskService service.TaskService,
	auditService service.AuditService,
	health HealthChecker,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:       engine,
		taskService:  taskService,
		auditService: auditService,
		health:       health,
		logger:       logger,
	}
}

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

type createTaskBody struct {
	Title        string   `json:"title" binding:"required"`
	CustomerName string   `json:"customer_name"`
	VehiclePlate string   `json:"vehicle_plate" binding:"required"`
	VehicleMake  string   `json:"vehicle_make"`
	VehicleModel string   `json:"vehicle_model"`
	VehicleYear  int      `json:"vehicle_year"`
	VIN          string   `json:"vin"`
	PPFZones     []string `json:"ppf_zones"`
	TechnicianID string   `json:"technician_id"`
}

type listQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type startInterventionBody struct {
	PPFZones            []string `json:"ppf_zones"`
	FilmType            string   `json:"film_type" binding:"required"`
	Notes               string   `json:"notes"`
	PerZoneInstallation *bool    `json:"per_zone_installation"`
}

type advanceStepBody struct {
	Action          string                 `json:"action" binding:"required,oneof=start complete skip"`
	Notes           string                 `json:"notes"`
	Photos          []string               `json:"photos" binding:"omitempty,dive,required"`
	CollectedData   map[string]interface{} `json:"collected_data"`
	Location        *entity.GeoLocation    `json:"location"`
	DurationMinutes *int                   `json:"duration_minutes" binding:"omitempty,gte=0"`
	ExpectedVersion int64                  `json:"expected_version"`
	LastSyncedAt    time.Time              `json:"last_synced_at"`
}

type completeInterventionBody struct {
	QualityScore         *int      `json:"quality_score"`
	CustomerSatisfaction *int      `json:"customer_satisfaction"`
	FinalObservations    string    `json:"final_observations"`
	ActualDuration       *int      `json:"actual_duration"`
	ExpectedVersion      int64     `json:"expected_version"`
	LastSyncedAt         time.Time `json:"last_synced_at"`
}

type cancelInterventionBody struct {
	Reason          string `json:"reason" binding:"required"`
	Notes           string `json:"notes"`
	ExpectedVersion int64  `json:"expected_version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  "ok",
	}

	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: "database unreachable"})
			return
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var body createTaskBody
	if !h.bind(c, &body) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), service.CreateTaskRequest{
		Title:        body.Title,
		CustomerName: body.CustomerName,
		VehiclePlate: body.VehiclePlate,
		VehicleMake:  body.VehicleMake,
		VehicleModel: body.VehicleModel,
		VehicleYear:  body.VehicleYear,
		VIN:          body.VIN,
		PPFZones:     body.PPFZones,
		TechnicianID: body.TechnicianID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// ListTasks handles GET /api/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
			Code:    "bad_request",
		})
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// ListTaskInterventions handles GET /api/tasks/:id/interventions
func (h *Handlers) ListTaskInterventions(c *gin.Context) {
	list, err := h.engine.ListTaskInterventions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: list})
}

// GetActiveIntervention handles GET /api/tasks/:id/interventions/active
func (h *Handlers) GetActiveIntervention(c *gin.Context) {
	in, err := h.engine.GetActiveIntervention(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: in})
}

// StartIntervention handles POST /api/tasks/:id/interventions
func (h *Handlers) StartIntervention(c *gin.Context) {
	var body startInterventionBody
	if !h.bind(c, &body) {
		return
	}

	in, err := h.engine.StartIntervention(c.Request.Context(), workflow.StartInterventionRequest{
		TaskID:              c.Param("id"),
		Zones:               body.PPFZones,
		FilmType:            body.FilmType,
		Notes:               body.Notes,
		PerZoneInstallation: body.PerZoneInstallation,
		ActorID:             actor(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: in})
}

// GetIntervention handles GET /api/interventions/:id
func (h *Handlers) GetIntervention(c *gin.Context) {
	in, err := h.engine.GetIntervention(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: in})
}

// GetProgress handles GET /api/interventions/:id/progress
func (h *Handlers) GetProgress(c *gin.Context) {
	progress, err := h.engine.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: progress})
}

// GetAuditTrail handles GET /api/interventions/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.engine.GetIntervention(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	entries, err := h.auditService.GetTrail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// AdvanceStep handles POST /api/interventions/:id/steps/:stepId/advance
func (h *Handlers) AdvanceStep(c *gin.Context) {
	var body advanceStepBody
	if !h.bind(c, &body) {
		return
	}

	result, err := h.engine.AdvanceStep(c.Request.Context(), workflow.AdvanceStepRequest{
		InterventionID:  c.Param("id"),
		StepID:          c.Param("stepId"),
		Action:          workflow.StepAction(body.Action),
		Notes:           body.Notes,
		Photos:          body.Photos,
		CollectedData:   body.CollectedData,
		Location:        body.Location,
		DurationMinutes: body.DurationMinutes,
		ExpectedVersion: body.ExpectedVersion,
		LastSyncedAt:    body.LastSyncedAt,
		ActorID:         actor(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// CompleteIntervention handles POST /api/interventions/:id/complete
func (h *Handlers) CompleteIntervention(c *gin.Context) {
	var body completeInterventionBody
	if !h.bind(c, &body) {
		return
	}

	result, err := h.engine.CompleteIntervention(c.Request.Context(), workflow.CompleteInterventionRequest{
		InterventionID:       c.Param("id"),
		QualityScore:         body.QualityScore,
		CustomerSatisfaction: body.CustomerSatisfaction,
		FinalObservations:    body.FinalObservations,
		ActualDuration:       body.ActualDuration,
		ExpectedVersion:      body.ExpectedVersion,
		LastSyncedAt:         body.LastSyncedAt,
		ActorID:              actor(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// CancelIntervention handles POST /api/interventions/:id/cancel
func (h *Handlers) CancelIntervention(c *gin.Context) {
	var body cancelInterventionBody
	if !h.bind(c, &body) {
		return
	}

	in, err := h.engine.CancelIntervention(c.Request.Context(), workflow.CancelInterventionRequest{
		InterventionID:  c.Param("id"),
		Reason:          body.Reason,
		Notes:           body.Notes,
		ExpectedVersion: body.ExpectedVersion,
		ActorID:         actor(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: in})
}

// bind decodes the JSON body. An empty body binds the zero value. Field rule
// violations are reported like engine validation failures.
func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(dst)
	}
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fe.Field()+" failed "+fe.Tag()+" validation")
		}
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   "invalid request body",
			Code:    string(domainwf.KindValidationFailed),
			Details: details,
		})
		return false
	}

	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   "malformed request body",
		Code:    "bad_request",
	})
	return false
}

// fail writes an error response. Storage failures are logged and hidden.
func (h *Handlers) fail(c *gin.Context, err error) {
	kind := domainwf.KindOf(err)
	status := StatusFor(kind)

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		c.JSON(status, Response{
			Success: false,
			Error:   "internal error",
			Code:    string(domainwf.KindDatabase),
		})
		return
	}

	resp := Response{Success: false, Error: err.Error(), Code: string(kind)}
	var ie *domainwf.InterventionError
	if errors.As(err, &ie) {
		resp.Error = ie.Message
		resp.Details = ie.Details
	}
	c.JSON(status, resp)
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind domainwf.ErrorKind) int {
	switch kind {
	case domainwf.KindAlreadyActive,
		domainwf.KindInvalidState,
		domainwf.KindStepOutOfOrder,
		domainwf.KindConcurrentModification:
		return http.StatusConflict
	case domainwf.KindStepNotFound, domainwf.KindNotFound:
		return http.StatusNotFound
	case domainwf.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case domainwf.KindTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}
