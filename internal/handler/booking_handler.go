package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cordova-edu/classbook-api/internal/models"
	"github.com/cordova-edu/classbook-api/internal/service"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
	"github.com/cordova-edu/classbook-api/pkg/response"
)

// BookingHandler exposes the booking endpoints.
type BookingHandler struct {
	service *service.BookingService
}

// NewBookingHandler constructs a booking handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Attempt handles POST /bookings. An accepted attempt responds 201; a
// policy rejection responds 409 with the rejection message in the result
// payload, not in an error envelope.
func (h *BookingHandler) Attempt(c *gin.Context) {
	var req service.AttemptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Attempt(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Accepted {
		response.JSON(c, http.StatusConflict, result, nil)
		return
	}
	response.Created(c, result)
}

// List handles GET /bookings with optional filters.
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.BookingFilter{
		Subject:          c.Query("subject"),
		SchoolName:       c.Query("school"),
		SalespersonEmail: c.Query("salesperson_email"),
		Date:             c.Query("date"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	bookings, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Mine handles GET /bookings/mine, listing a requester's own bookings.
func (h *BookingHandler) Mine(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	bookings, pagination, err := h.service.ListForSalesperson(c.Request.Context(), c.Query("email"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get handles GET /bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	booking, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Delete handles DELETE /bookings/:id. Deleting an unknown id still responds
// 204 so cancellations can be retried safely.
func (h *BookingHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
