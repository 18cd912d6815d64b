package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cordova-edu/classbook-api/internal/directory"
	"github.com/cordova-edu/classbook-api/internal/service"
	"github.com/cordova-edu/classbook-api/pkg/response"
)

// AvailabilityHandler exposes the read-only availability preview plus the
// static directory data the booking form needs.
type AvailabilityHandler struct {
	bookings  *service.BookingService
	directory *directory.Directory
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(bookings *service.BookingService, dir *directory.Directory) *AvailabilityHandler {
	return &AvailabilityHandler{bookings: bookings, directory: dir}
}

// Preview handles GET /availability?subject=&date=&slot=. The response is
// advisory; an attempt may still be rejected by the time it lands.
func (h *AvailabilityHandler) Preview(c *gin.Context) {
	preview, err := h.bookings.Preview(c.Request.Context(),
		c.Query("subject"), c.Query("date"), c.Query("slot"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Subjects handles GET /subjects.
func (h *AvailabilityHandler) Subjects(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.directory.Subjects(), nil)
}

// Slots handles GET /slots.
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	response.JSON(c, http.StatusOK, directory.Slots, nil)
}
