package handlers

import (
	"net/http"

	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/notify"
	"github.com/crewdesk/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// PreferenceHandler handles notification preference HTTP requests
type PreferenceHandler struct {
	preferenceRepository repositories.PreferenceRepository
	engine               *notify.Engine
}

// NewPreferenceHandler creates a new PreferenceHandler
func NewPreferenceHandler(prefRepo repositories.PreferenceRepository, engine *notify.Engine) *PreferenceHandler {
	return &PreferenceHandler{
		preferenceRepository: prefRepo,
		engine:               engine,
	}
}

// RegisterPreferenceRoutes registers preference routes
func (h *PreferenceHandler) RegisterPreferenceRoutes(g *echo.Group) {
	g.GET("/notifications/preferences", h.GetPreferences)
	g.PUT("/notifications/preferences", h.UpdatePreferences)
	g.PUT("/notifications/push-token", h.UpdatePushToken)
	g.PUT("/notifications/web-push-subscription", h.UpdateWebPushSubscription)
}

// GetPreferences returns the recipient's preferences, creating defaults on
// first access
func (h *PreferenceHandler) GetPreferences(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	prefs, err := h.engine.GetOrCreatePreferences(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": prefs})
}

// UpdatePreferencesRequest carries the mutable preference settings.
type UpdatePreferencesRequest struct {
	PushEnabled       bool                    `json:"push_enabled"`
	NotificationTypes map[string]bool         `json:"notification_types" validate:"required"`
	QuietHours        models.QuietHours       `json:"quiet_hours"`
	ReminderSettings  models.ReminderSettings `json:"reminder_settings"`
}

// UpdatePreferences replaces the recipient's preference settings
func (h *PreferenceHandler) UpdatePreferences(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req UpdatePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// ensure the document exists before the update
	prefs, err := h.engine.GetOrCreatePreferences(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	prefs.PushEnabled = req.PushEnabled
	prefs.NotificationTypes = req.NotificationTypes
	prefs.QuietHours = req.QuietHours
	prefs.ReminderSettings = req.ReminderSettings

	if err := h.preferenceRepository.Update(c.Request().Context(), prefs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": prefs})
}

// UpdatePushTokenRequest carries a mobile push token registration.
type UpdatePushTokenRequest struct {
	PushToken string `json:"push_token" validate:"required"`
}

// UpdatePushToken registers the recipient's mobile push token
func (h *PreferenceHandler) UpdatePushToken(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req UpdatePushTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.preferenceRepository.UpdatePushToken(c.Request().Context(), currentUserID, req.PushToken); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// UpdateWebPushSubscriptionRequest carries a browser subscription.
type UpdateWebPushSubscriptionRequest struct {
	Subscription models.WebPushSubscription `json:"subscription" validate:"required"`
}

// UpdateWebPushSubscription registers the recipient's browser subscription
func (h *PreferenceHandler) UpdateWebPushSubscription(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req UpdateWebPushSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Subscription.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Subscription endpoint is required")
	}

	if err := h.preferenceRepository.UpdateWebPushSubscription(c.Request().Context(), currentUserID, &req.Subscription); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}
