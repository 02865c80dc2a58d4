package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"villagehub/internal/microservices/http-api/dto"
	"villagehub/internal/microservices/http-api/middleware"
	"villagehub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc service.DeliveryService
}

func NewNotificationHandler(svc service.DeliveryService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread-count", h.UnreadCount)
	rg.GET("/stats", h.Stats)
	rg.PUT("/seen-all", h.MarkAllSeen)
	rg.PUT("/read-all", h.MarkAllRead)
	rg.PUT("/:id/seen", h.MarkSeen)
	rg.PUT("/:id/read", h.MarkRead)
}

// List returns the authenticated admin's notifications, newest first
func (h *NotificationHandler) List(c *gin.Context) {
	adminID, ok := middleware.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not authenticated"})
		return
	}

	limit := service.DefaultListLimit
	offset := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > service.MaxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}
	if o := c.Query("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
		offset = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	list, err := h.svc.List(ctx, adminID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, dto.FromAdminNotification(n))
	}
	c.JSON(http.StatusOK, gin.H{
		"data": resp,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(resp),
		},
	})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	adminID, ok := middleware.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	count, err := h.svc.UnreadCount(ctx, adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	adminID, ok := middleware.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.svc.Stats(ctx, adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MarkSeen, MarkRead and friends answer 204 even when no delivery row matched.

func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	h.markOne(c, h.svc.MarkSeen)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.markOne(c, h.svc.MarkRead)
}

func (h *NotificationHandler) MarkAllSeen(c *gin.Context) {
	h.markAll(c, h.svc.MarkAllSeen)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	h.markAll(c, h.svc.MarkAllRead)
}

func (h *NotificationHandler) markOne(c *gin.Context, mark func(ctx context.Context, adminID, notificationID string) error) {
	adminID, ok := middleware.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not authenticated"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := mark(ctx, adminID, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) markAll(c *gin.Context, mark func(ctx context.Context, adminID string) error) {
	adminID, ok := middleware.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := mark(ctx, adminID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Notifier is the subset of service.Notifier the notify endpoint needs.
type Notifier interface {
	Notify(ctx context.Context, in service.CreateNotificationInput) (*service.NotifyResult, error)
}

type NotifyHandler struct {
	notifier Notifier
}

func NewNotifyHandler(notifier Notifier) *NotifyHandler {
	return &NotifyHandler{notifier: notifier}
}

func (h *NotifyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notify", h.Notify)
}

// Notify persists a notification for a village's admins and queues its live push
func (h *NotifyHandler) Notify(c *gin.Context) {
	var req dto.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.notifier.Notify(ctx, service.CreateNotificationInput{
		VillageKey:   req.VillageKey,
		ActorAdminID: req.ActorAdminID,
		Type:         req.Type,
		Category:     req.Category,
		Title:        req.Title,
		Message:      req.Message,
		Payload:      req.Payload,
		Priority:     req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidNotification), errors.Is(err, service.ErrInvalidTenantKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.NotifyResponse{
		Notification: dto.FromNotification(result.Notification),
		LivePush:     livePushOutcome(result.PushErr),
		MessageID:    result.MessageID,
	})
}
