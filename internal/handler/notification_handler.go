package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cordova-edu/classbook-api/internal/service"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
	"github.com/cordova-edu/classbook-api/pkg/response"
)

// NotificationHandler exposes the notification audit trail.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// Events handles GET /notifications/events.
func (h *NotificationHandler) Events(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	events, err := h.service.ListEvents(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Resend handles POST /notifications/events/:id/resend. The retry is queued
// asynchronously, so acceptance here only means the event was found.
func (h *NotificationHandler) Resend(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	if err := h.service.Resend(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true}, nil)
}
