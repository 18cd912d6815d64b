package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cordova-edu/classbook-api/internal/directory"
	"github.com/cordova-edu/classbook-api/internal/models"
	"github.com/cordova-edu/classbook-api/internal/service"
)

type memoryLedger struct {
	bookings map[int64]*models.Booking
	nextID   int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{bookings: map[int64]*models.Booking{}, nextID: 1}
}

func (m *memoryLedger) Create(ctx context.Context, b *models.Booking, slotCap, dailyCap int) error {
	b.ID = m.nextID
	m.nextID++
	copied := *b
	m.bookings[b.ID] = &copied
	return nil
}

func (m *memoryLedger) Delete(ctx context.Context, id int64) (bool, error) {
	_, ok := m.bookings[id]
	delete(m.bookings, id)
	return ok, nil
}

func (m *memoryLedger) FindByID(ctx context.Context, id int64) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryLedger) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memoryLedger) Exists(ctx context.Context, school, subject, date, slot string) (bool, error) {
	for _, b := range m.bookings {
		if b.SchoolName == school && b.Subject == subject && b.Date == date && b.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) IsBusy(ctx context.Context, teacher, date, slot string) (bool, error) {
	for _, b := range m.bookings {
		if b.Teacher == teacher && b.Date == date && b.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) CountForTeacherOn(ctx context.Context, teacher, date string) (int, error) {
	n := 0
	for _, b := range m.bookings {
		if b.Teacher == teacher && b.Date == date {
			n++
		}
	}
	return n, nil
}

func (m *memoryLedger) CountOnSlot(ctx context.Context, date, slot string) (int, error) {
	n := 0
	for _, b := range m.bookings {
		if b.Date == date && b.Slot == slot {
			n++
		}
	}
	return n, nil
}

type noUnavailability struct{}

func (noUnavailability) IsUnavailable(ctx context.Context, teacher, date, slot string) (bool, error) {
	return false, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memoryLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := newMemoryLedger()
	dir := directory.Default()
	caps := service.NewCaps(3, 2, nil)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	admission := service.NewAdmissionService(ledger, noUnavailability{}, dir, service.AdmissionConfig{
		Location:       time.UTC,
		CutoffHour:     14,
		MaxAdvanceDays: 60,
		Caps:           caps,
		Now:            func() time.Time { return now },
	}, zap.NewNop())
	cacheSvc := service.NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	bookingSvc := service.NewBookingService(ledger, admission, dir, nil, cacheSvc, nil, caps, zap.NewNop())

	h := NewBookingHandler(bookingSvc)
	ah := NewAvailabilityHandler(bookingSvc, dir)

	r := gin.New()
	r.POST("/bookings", h.Attempt)
	r.GET("/bookings", h.List)
	r.GET("/bookings/:id", h.Get)
	r.DELETE("/bookings/:id", h.Delete)
	r.GET("/availability", ah.Preview)
	return r, ledger
}

func attemptBody() map[string]interface{} {
	return map[string]interface{}{
		"booking_type":      "Live Class",
		"school_name":       "DPS Rohini",
		"grade":             "5",
		"curriculum":        "CBSE",
		"subject":           "English",
		"date":              "2026-03-03",
		"slot":              "10:00–10:40",
		"salesperson_name":  "Rohit",
		"salesperson_phone": "9876543210",
		"salesperson_email": "rohit@cordova.example",
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBookingAttemptEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", attemptBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data service.BookingResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Accepted)
	assert.Equal(t, "Aparajita", envelope.Data.Teacher)
	require.NotNil(t, envelope.Data.BookingID)
}

func TestBookingAttemptRejectionReturnsConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	require.Equal(t, http.StatusCreated, doJSON(t, r, http.MethodPost, "/bookings", attemptBody()).Code)

	// Same school, subject, date and slot again.
	w := doJSON(t, r, http.MethodPost, "/bookings", attemptBody())
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Data service.BookingResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Accepted)
	assert.NotEmpty(t, envelope.Data.Message)
	assert.Nil(t, envelope.Data.BookingID)
}

func TestBookingAttemptBadPayload(t *testing.T) {
	r, _ := newTestRouter(t)

	body := attemptBody()
	body["salesperson_email"] = "not-an-email"
	w := doJSON(t, r, http.MethodPost, "/bookings", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingDeleteIsIdempotent(t *testing.T) {
	r, ledger := newTestRouter(t)

	require.Equal(t, http.StatusCreated, doJSON(t, r, http.MethodPost, "/bookings", attemptBody()).Code)
	require.Len(t, ledger.bookings, 1)

	w := doJSON(t, r, http.MethodDelete, "/bookings/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, ledger.bookings)

	w = doJSON(t, r, http.MethodDelete, "/bookings/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	require.Equal(t, http.StatusCreated, doJSON(t, r, http.MethodPost, "/bookings", attemptBody()).Code)

	w := doJSON(t, r, http.MethodGet, "/availability?subject=English&date=2026-03-03&slot=10:00–10:40", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.AvailabilityPreview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"Deepanshi", "Megha"}, envelope.Data.Available)
	assert.Equal(t, []string{"Aparajita"}, envelope.Data.Unavailable)
}
