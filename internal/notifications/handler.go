package notifications

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobboard/application-portal/application-portal-backend/internal/auth"
	"jobboard/application-portal/application-portal-backend/internal/notifications/websocket"
)

// Handler handles HTTP requests for the notification inbox and socket
type Handler struct {
	service   *Service
	wsManager *websocket.Manager
	logger    *zap.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(service *Service, wsManager *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		wsManager: wsManager,
		logger:    logger,
	}
}

// RegisterRoutes registers notification routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	{
		notifications.GET("", h.listNotifications)
		notifications.POST("/:id/read", h.markRead)
		notifications.PUT("/preferences", h.updatePreference)
	}
	router.GET("/ws", h.connect)
}

// listNotifications handles GET /api/v1/notifications
func (h *Handler) listNotifications(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unread := c.Query("unread") == "true"

	items, err := h.service.ListForUser(c.Request.Context(), actor.UserID, unread, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// markRead handles POST /api/v1/notifications/:id/read
func (h *Handler) markRead(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, actor.UserID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// updatePreference handles PUT /api/v1/notifications/preferences
func (h *Handler) updatePreference(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return
	}

	var req UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref, err := h.service.UpdatePreference(c.Request.Context(), actor.UserID, req)
	if err != nil {
		if errors.Is(err, ErrUnknownChannel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to update preference", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, pref)
}

// connect handles GET /api/v1/ws
func (h *Handler) connect(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return
	}

	conn, err := h.wsManager.HandleConnection(c.Writer, c.Request, actor.UserID.String())
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	h.logger.Info("WebSocket connected",
		zap.String("connection_id", conn.ID),
		zap.String("user_id", actor.UserID.String()))
}
