package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/application/service"
	"github.com/garyjia/leave-approval/internal/domain/entity"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	healthTimeout    = 2 * time.Second
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	leaveService service.LeaveService
	db           port.Pinger
	version      string
	logger       Logger
	clock        func() time.Time
}

// NewHandlers creates a new Handlers instance. db may be nil.
func NewHandlers(leaveService service.LeaveService, db port.Pinger, version string, logger Logger) *Handlers {
	return &Handlers{
		leaveService: leaveService,
		db:           db,
		version:      version,
		logger:       logger,
		clock:        time.Now,
	}
}

// Response is the JSON envelope of every endpoint
type Response struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    string              `json:"code,omitempty"`
	Fields  []entity.FieldError `json:"fields,omitempty"`
	Warning string              `json:"warning,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Database  string `json:"database"`
}

// SubmitRequest is the body of POST /api/requests
type SubmitRequest struct {
	EmployeeName  string      `json:"employee_name" binding:"required,max=200"`
	EmployeeEmail string      `json:"employee_email" binding:"required,email"`
	ManagerEmail  string      `json:"manager_email" binding:"required,email"`
	DirectorEmail string      `json:"director_email" binding:"required,email"`
	StartDate     entity.Date `json:"start_date"`
	EndDate       entity.Date `json:"end_date"`
	Reason        string      `json:"reason" binding:"required,max=2000"`
}

// UnmarshalJSON trims text fields so binding checks the values the domain will store
func (r *SubmitRequest) UnmarshalJSON(data []byte) error {
	type plain SubmitRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.EmployeeName = strings.TrimSpace(p.EmployeeName)
	p.EmployeeEmail = strings.TrimSpace(p.EmployeeEmail)
	p.ManagerEmail = strings.TrimSpace(p.ManagerEmail)
	p.DirectorEmail = strings.TrimSpace(p.DirectorEmail)
	p.Reason = strings.TrimSpace(p.Reason)
	*r = SubmitRequest(p)
	return nil
}

func (r SubmitRequest) draft() entity.LeaveDraft {
	return entity.LeaveDraft{
		EmployeeName:  r.EmployeeName,
		EmployeeEmail: r.EmployeeEmail,
		ManagerEmail:  r.ManagerEmail,
		DirectorEmail: r.DirectorEmail,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Reason:        r.Reason,
	}
}

// ActionRequest is the body of POST /api/requests/:id/actions
type ActionRequest struct {
	Stage  string `json:"stage" binding:"required,oneof=manager director"`
	Action string `json:"action" binding:"required,oneof=approve reject"`
}

// DecisionRequest is the body of the approve and reject shorthands
type DecisionRequest struct {
	Stage string `json:"stage" binding:"required,oneof=manager director"`
}

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Status string `json:"status" form:"status" binding:"omitempty,oneof=pending approved rejected"`
	Stage  string `json:"stage" form:"stage" binding:"omitempty,oneof=submitted manager director completed rejected"`
	Limit  int    `json:"limit" form:"limit"`
	Offset int    `json:"offset" form:"offset"`
}

// HealthCheck handles GET /health and GET /api/health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.clock().UTC().Format(time.RFC3339),
		Version:   h.version,
		Database:  "ok",
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("Health check database ping failed", "error", err)
			resp.Status = "unhealthy"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    resp,
	})
}

// Submit handles POST /api/requests
func (h *Handlers) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, withDraftFields(err, req.draft()))
		return
	}

	result, err := h.leaveService.Submit(c.Request.Context(), req.draft())
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Leave request submitted", "request_id", result.Request.ID)
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    result,
		Warning: result.Warning,
	})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, err)
		return
	}

	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	q.Limit = min(q.Limit, maxListLimit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	reqs, err := h.leaveService.List(c.Request.Context(), entity.ListFilter{
		Status: entity.Status(q.Status),
		Stage:  entity.Stage(q.Stage),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if reqs == nil {
		reqs = []*entity.LeaveRequest{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: reqs})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.leaveService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// GetHistory handles GET /api/requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.leaveService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// GetNotifications handles GET /api/requests/:id/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	records, err := h.leaveService.Notifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*entity.NotificationRecord{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// Act handles POST /api/requests/:id/actions
func (h *Handlers) Act(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	h.respondAction(c, func(ctx context.Context, id string) (*service.ActionResult, error) {
		return h.leaveService.Act(ctx, id, entity.Stage(req.Stage), entity.Action(req.Action))
	})
}

// Approve handles POST /api/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	h.respondAction(c, func(ctx context.Context, id string) (*service.ActionResult, error) {
		return h.leaveService.Approve(ctx, id, entity.Stage(req.Stage))
	})
}

// Reject handles POST /api/requests/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	h.respondAction(c, func(ctx context.Context, id string) (*service.ActionResult, error) {
		return h.leaveService.Reject(ctx, id, entity.Stage(req.Stage))
	})
}

func (h *Handlers) respondAction(c *gin.Context, act func(ctx context.Context, id string) (*service.ActionResult, error)) {
	id := c.Param("id")
	result, err := act(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Leave request updated",
		"request_id", id,
		"status", result.Request.Status,
		"stage", result.Request.CurrentStage)
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
		Warning: result.Warning,
	})
}
