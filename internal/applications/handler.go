package applications

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobboard/application-portal/application-portal-backend/internal/auth"
	"jobboard/application-portal/application-portal-backend/internal/export"
	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// Handler handles HTTP requests for application operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new applications handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers application routes. The group must already run
// auth.Middleware.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/applications")
	{
		apps.POST("", auth.RequireRole(workflows.RoleJobSeeker), h.submitApplication)
		apps.GET("/:id", h.getApplication)
		apps.GET("/:id/history", h.getHistory)
		apps.GET("/:id/allowed-statuses", h.getAllowedStatuses)
		apps.PATCH("/:id/status", h.updateStatus)
	}

	jobs := router.Group("/jobs/:jobId/applications")
	{
		jobs.GET("", h.listJobApplications)
		jobs.GET("/export", h.exportJobApplications)
	}

	router.GET("/me/applications", auth.RequireRole(workflows.RoleJobSeeker), h.listMyApplications)
}

// submitApplication handles POST /api/v1/applications
func (h *Handler) submitApplication(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.JobSeekerID = actor.UserID

	app, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to submit application", err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

// getApplication handles GET /api/v1/applications/:id
func (h *Handler) getApplication(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	app, err := h.service.Get(c.Request.Context(), id, actor.UserID)
	if err != nil {
		h.respondError(c, "Failed to get application", err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// getHistory handles GET /api/v1/applications/:id/history
func (h *Handler) getHistory(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	history, err := h.service.History(c.Request.Context(), id, actor.UserID)
	if err != nil {
		h.respondError(c, "Failed to get status history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// getAllowedStatuses handles GET /api/v1/applications/:id/allowed-statuses
func (h *Handler) getAllowedStatuses(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	statuses, err := h.service.AllowedNextStatuses(c.Request.Context(), id, actor.UserID, actor.Role)
	if err != nil {
		h.respondError(c, "Failed to get allowed statuses", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

type updateStatusBody struct {
	Status workflows.Status `json:"status" binding:"required"`
	Note   *string          `json:"note,omitempty"`
}

// updateStatus handles PATCH /api/v1/applications/:id/status
func (h *Handler) updateStatus(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.UpdateStatus(c.Request.Context(), UpdateStatusRequest{
		ApplicationID: id,
		Status:        body.Status,
		Note:          body.Note,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
	})
	if err != nil {
		h.respondError(c, "Failed to update application status", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// listJobApplications handles GET /api/v1/jobs/:jobId/applications
func (h *Handler) listJobApplications(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}
	filters, ok := h.listFilters(c)
	if !ok {
		return
	}

	response, err := h.service.ListByJob(c.Request.Context(), jobID, actor.UserID, filters)
	if err != nil {
		h.respondError(c, "Failed to list job applications", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// listMyApplications handles GET /api/v1/me/applications
func (h *Handler) listMyApplications(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filters, ok := h.listFilters(c)
	if !ok {
		return
	}

	response, err := h.service.ListBySeeker(c.Request.Context(), actor.UserID, filters)
	if err != nil {
		h.respondError(c, "Failed to list applications", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// exportJobApplications handles GET /api/v1/jobs/:jobId/applications/export
func (h *Handler) exportJobApplications(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, ok := h.statusFilter(c)
	if !ok {
		return
	}

	job, apps, err := h.service.Pipeline(c.Request.Context(), jobID, actor.UserID, status)
	if err != nil {
		h.respondError(c, "Failed to export job applications", err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, pipelineTable(job, apps, time.Now().UTC())); err != nil {
		h.logger.Error("Failed to render export", zap.Error(err), zap.String("job_id", jobID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render export"})
		return
	}

	filename := fmt.Sprintf("applications-%s.%s", jobID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// =====================================================
// Helper Methods
// =====================================================

func (h *Handler) actor(c *gin.Context) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return auth.Actor{}, false
	}
	return actor, true
}

func (h *Handler) actorAndID(c *gin.Context) (auth.Actor, uuid.UUID, bool) {
	actor, ok := h.actor(c)
	if !ok {
		return auth.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application ID"})
		return auth.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func (h *Handler) listFilters(c *gin.Context) (*ApplicationFilters, bool) {
	status, ok := h.statusFilter(c)
	if !ok {
		return nil, false
	}
	return &ApplicationFilters{
		Status:   status,
		Page:     h.getIntParam(c, "page", 1),
		PageSize: h.getIntParam(c, "page_size", 20),
	}, true
}

func (h *Handler) statusFilter(c *gin.Context) (*workflows.Status, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status, err := workflows.ParseStatus(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &status, true
}

// getIntParam gets an integer query parameter with a default value
func (h *Handler) getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

// respondError maps service errors onto HTTP statuses. Transition errors
// also carry their kind and whether a retry can succeed.
func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	status := httpStatus(err)
	body := gin.H{"error": err.Error()}
	if kind, ok := KindOf(err); ok {
		body["code"] = kind
		body["retryable"] = kind.Retryable()
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
		body = gin.H{"error": "internal server error"}
	}
	c.JSON(status, body)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMismatchedApplication):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrWrongRole):
		return http.StatusForbidden
	case errors.Is(err, ErrApplicationNotFound), errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, ErrAlreadyApplied):
		return http.StatusConflict
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrJobClosed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
