package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cordova-edu/classbook-api/internal/service"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
	"github.com/cordova-edu/classbook-api/pkg/response"
)

// markUnavailableRequest is the payload for marking a teacher out. An empty
// slot blocks the whole day.
type markUnavailableRequest struct {
	Teacher string `json:"teacher"`
	Date    string `json:"date"`
	Slot    string `json:"slot"`
}

// UnavailabilityHandler exposes teacher unavailability endpoints.
type UnavailabilityHandler struct {
	service *service.UnavailabilityService
}

// NewUnavailabilityHandler constructs an unavailability handler.
func NewUnavailabilityHandler(svc *service.UnavailabilityService) *UnavailabilityHandler {
	return &UnavailabilityHandler{service: svc}
}

// Create handles POST /unavailability.
func (h *UnavailabilityHandler) Create(c *gin.Context) {
	var req markUnavailableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Mark(c.Request.Context(), req.Teacher, req.Date, req.Slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// List handles GET /unavailability.
func (h *UnavailabilityHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Delete handles DELETE /unavailability/:id.
func (h *UnavailabilityHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	if err := h.service.Unmark(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
