package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/notify"
	"github.com/crewdesk/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	router                 *notify.DeliveryRouter
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, router *notify.DeliveryRouter) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		router:                 router,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.GET("/notifications/stats", h.GetStats)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/archive", h.Archive)
	g.POST("/notifications/send", h.Send)
}

func getUserIDFromContext(c echo.Context) string {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return ""
	}
	return claims.UserID
}

// GetNotifications returns paginated notifications with optional filters
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	includeExpired, _ := strconv.ParseBool(c.QueryParam("includeExpired"))

	filter := repositories.ListFilter{
		Status:         models.Status(c.QueryParam("status")),
		Type:           c.QueryParam("type"),
		Page:           page,
		Limit:          limit,
		IncludeExpired: includeExpired,
	}
	// the repository owns the pagination bounds; reuse them for the meta block
	page, limit = filter.Normalize()

	notifications, total, err := h.notificationRepository.GetByRecipientID(currentUserID, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	count, err := h.notificationRepository.GetUnreadCount(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// GetStats returns the type-by-status aggregate for the recipient
func (h *NotificationHandler) GetStats(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	stats, err := h.notificationRepository.GetStats(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"stats": stats}})
}

// MarkAsRead marks a notification as read (idempotent)
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	notification, httpErr := h.loadOwn(c)
	if httpErr != nil {
		return httpErr
	}

	if err := notification.MarkRead(time.Now().UTC()); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err := h.notificationRepository.Save(notification); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": notification})
}

// MarkAllAsRead marks all delivered notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.notificationRepository.MarkAllAsRead(currentUserID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// Archive moves a notification to the terminal archived state
func (h *NotificationHandler) Archive(c echo.Context) error {
	notification, httpErr := h.loadOwn(c)
	if httpErr != nil {
		return httpErr
	}

	if err := notification.Archive(); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err := h.notificationRepository.Save(notification); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": notification})
}

// SendRequest is a pre-resolved broadcast payload. It bypasses preference
// gating, so it is meant for internal callers that resolved targets already.
type SendRequest struct {
	RecipientID         string          `json:"recipient_id" validate:"required"`
	Title               string          `json:"title" validate:"required"`
	Message             string          `json:"message" validate:"required"`
	Type                string          `json:"type" validate:"required"`
	Priority            models.Priority `json:"priority"`
	RelatedEntityType   string          `json:"related_entity_type"`
	RelatedEntityID     string          `json:"related_entity_id"`
	Data                models.JSONMap  `json:"data"`
	PushToken           string          `json:"push_token"`
	WebPushSubscription string          `json:"web_push_subscription"`
	ScheduledFor        *time.Time      `json:"scheduled_for"`
}

// Send creates and delivers a pre-resolved notification
func (h *NotificationHandler) Send(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	notification := &models.Notification{
		RecipientID:         req.RecipientID,
		SenderID:            currentUserID,
		Title:               req.Title,
		Message:             req.Message,
		Type:                req.Type,
		Priority:            req.Priority,
		RelatedEntityType:   req.RelatedEntityType,
		RelatedEntityID:     req.RelatedEntityID,
		Data:                req.Data,
		PushToken:           req.PushToken,
		WebPushSubscription: req.WebPushSubscription,
		ScheduledFor:        req.ScheduledFor,
	}

	created, err := h.router.CreateAndSend(c.Request().Context(), notification)
	if err != nil {
		if errors.Is(err, notify.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": created})
}

// loadOwn fetches the path-id notification and checks it belongs to the
// authenticated recipient.
func (h *NotificationHandler) loadOwn(c echo.Context) (*models.Notification, error) {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	notification, err := h.notificationRepository.GetByID(uint(notifID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if notification.RecipientID != currentUserID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Not your notification")
	}
	return notification, nil
}
