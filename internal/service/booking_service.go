package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cordova-edu/classbook-api/internal/directory"
	"github.com/cordova-edu/classbook-api/internal/models"
	"github.com/cordova-edu/classbook-api/internal/repository"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
)

const bookingListCachePrefix = "bookings:list:"

// bookingLedger is the persistence surface the booking workflow needs.
type bookingLedger interface {
	Create(ctx context.Context, b *models.Booking, slotCap, dailyCap int) error
	Delete(ctx context.Context, id int64) (bool, error)
	FindByID(ctx context.Context, id int64) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

// NotificationDispatcher fans confirmation and cancellation emails out to
// interested parties. Implementations must never block or fail the booking.
type NotificationDispatcher interface {
	BookingConfirmed(b *models.Booking)
	BookingCancelled(b *models.Booking)
}

// AttemptBookingRequest is the inbound payload for a booking attempt.
// Teacher is an optional administrative override.
type AttemptBookingRequest struct {
	BookingType      string `json:"booking_type" validate:"required"`
	SchoolName       string `json:"school_name" validate:"required"`
	TitleUsed        string `json:"title_used"`
	Grade            string `json:"grade"`
	Curriculum       string `json:"curriculum" validate:"required"`
	Subject          string `json:"subject" validate:"required"`
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot             string `json:"slot" validate:"required"`
	Topic            string `json:"topic"`
	SalespersonName  string `json:"salesperson_name" validate:"required"`
	SalespersonPhone string `json:"salesperson_phone" validate:"required"`
	SalespersonEmail string `json:"salesperson_email" validate:"required,email"`
	Teacher          string `json:"teacher"`
}

func (r *AttemptBookingRequest) normalize() {
	r.BookingType = strings.TrimSpace(r.BookingType)
	r.SchoolName = strings.TrimSpace(r.SchoolName)
	r.TitleUsed = strings.TrimSpace(r.TitleUsed)
	r.Grade = strings.TrimSpace(r.Grade)
	r.Curriculum = strings.TrimSpace(r.Curriculum)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Date = strings.TrimSpace(r.Date)
	r.Slot = strings.TrimSpace(r.Slot)
	r.Topic = strings.TrimSpace(r.Topic)
	r.SalespersonName = strings.TrimSpace(r.SalespersonName)
	r.SalespersonPhone = strings.TrimSpace(r.SalespersonPhone)
	r.SalespersonEmail = strings.TrimSpace(strings.ToLower(r.SalespersonEmail))
	r.Teacher = strings.TrimSpace(r.Teacher)
}

// BookingResult is the outcome of an attempt. A policy rejection is a valid
// result, not an error: Accepted is false and Message names the first
// violated rule. BookingID and Teacher are set only on acceptance.
type BookingResult struct {
	Accepted  bool   `json:"accepted"`
	Message   string `json:"message"`
	BookingID *int64 `json:"booking_id,omitempty"`
	Teacher   string `json:"teacher,omitempty"`
}

// cachedBookingList is the cached shape of one list page.
type cachedBookingList struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int              `json:"total"`
}

// BookingService owns the booking workflow: validate, admit, persist,
// invalidate the display cache, notify.
type BookingService struct {
	repo      bookingLedger
	admission *AdmissionService
	directory *directory.Directory
	notifier  NotificationDispatcher
	cache     *CacheService
	metrics   *MetricsService
	caps      Caps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(repo bookingLedger, admission *AdmissionService, dir *directory.Directory, notifier NotificationDispatcher, cache *CacheService, metrics *MetricsService, caps Caps, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		admission: admission,
		directory: dir,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		caps:      caps,
		validator: validator.New(),
		logger:    logger,
	}
}

// Attempt runs one booking attempt end to end. Malformed input returns a
// validation error; a well-formed request that violates policy returns an
// accepted=false result.
func (s *BookingService) Attempt(ctx context.Context, req AttemptBookingRequest) (*BookingResult, error) {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking request")
	}

	kind := models.BookingKind(req.BookingType)
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("booking_type must be %q or %q", models.KindLiveClass, models.KindProductTraining))
	}
	if !directory.ValidSlot(req.Slot) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown slot")
	}
	if !s.directory.KnownSubject(req.Subject) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown subject")
	}
	if kind == models.KindLiveClass && req.Grade == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade is required for Live Class bookings")
	}

	decision, err := s.admission.Evaluate(ctx, AdmissionRequest{
		SchoolName: req.SchoolName,
		Subject:    req.Subject,
		Date:       req.Date,
		Slot:       req.Slot,
		Teacher:    req.Teacher,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Accepted {
		s.metrics.ObserveAdmission("rejected")
		return &BookingResult{Accepted: false, Message: decision.Reason}, nil
	}

	teacher := *decision.Teacher
	booking := &models.Booking{
		Kind:             kind,
		SchoolName:       req.SchoolName,
		TitleUsed:        optionalString(req.TitleUsed),
		Curriculum:       req.Curriculum,
		Subject:          req.Subject,
		Date:             req.Date,
		Slot:             req.Slot,
		Topic:            optionalString(req.Topic),
		SalespersonName:  req.SalespersonName,
		SalespersonPhone: req.SalespersonPhone,
		SalespersonEmail: req.SalespersonEmail,
		Teacher:          teacher.DisplayName,
		CreatedAt:        s.admission.LocalNow(),
	}
	if kind == models.KindLiveClass {
		booking.Grade = optionalString(req.Grade)
	}

	if err := s.repo.Create(ctx, booking, s.caps.SlotParallel, s.caps.DailyFor(teacher.ID)); err != nil {
		// A guard tripped inside the transaction: a concurrent attempt won
		// the race after our pre-checks passed. Same message as losing the
		// pre-check itself.
		if reason, ok := rejectionForConflict(err, teacher.DisplayName); ok {
			s.metrics.ObserveAdmission("rejected")
			return &BookingResult{Accepted: false, Message: reason}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist booking")
	}

	s.metrics.ObserveAdmission("accepted")
	s.invalidateListCache(ctx)
	if s.notifier != nil {
		s.notifier.BookingConfirmed(booking)
	}

	id := booking.ID
	return &BookingResult{
		Accepted:  true,
		Message:   fmt.Sprintf("booked %s with %s on %s, %s", booking.Subject, booking.Teacher, booking.Date, booking.Slot),
		BookingID: &id,
		Teacher:   booking.Teacher,
	}, nil
}

// Delete cancels a booking. Cancellation notices go out before the row is
// removed so the payload can still be read; deleting an unknown id is a
// no-op, making repeat deletes safe.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	if s.notifier != nil {
		s.notifier.BookingCancelled(booking)
	}

	if _, err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
	}
	s.invalidateListCache(ctx)
	return nil
}

// Get fetches one booking by identity.
func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// List returns bookings matching the filter with pagination metadata,
// reading through the display cache.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	key := listCacheKey(filter)
	var cached cachedBookingList
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Bookings, paginationFor(filter, cached.Total), nil
	}

	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	_ = s.cache.Set(ctx, key, cachedBookingList{Bookings: bookings, Total: total}, 0)
	return bookings, paginationFor(filter, total), nil
}

// ListForSalesperson returns the bookings created by one requester.
func (s *BookingService) ListForSalesperson(ctx context.Context, email string, page, pageSize int) ([]models.Booking, *models.Pagination, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "salesperson_email is required")
	}
	return s.List(ctx, models.BookingFilter{SalespersonEmail: email, Page: page, PageSize: pageSize})
}

// Preview reports candidate availability for a (subject, date, slot) without
// creating anything. Advisory only: the attempt re-checks everything.
func (s *BookingService) Preview(ctx context.Context, subject, date, slot string) (*AvailabilityPreview, error) {
	subject = strings.TrimSpace(subject)
	date = strings.TrimSpace(date)
	slot = strings.TrimSpace(slot)
	if !s.directory.KnownSubject(subject) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown subject")
	}
	if !directory.ValidSlot(slot) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown slot")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be a valid YYYY-MM-DD date")
	}
	return s.admission.Preview(ctx, subject, date, slot)
}

func (s *BookingService) invalidateListCache(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, bookingListCachePrefix+"*")
}

func listCacheKey(f models.BookingFilter) string {
	return fmt.Sprintf("%s%s|%s|%s|%s|p%d|s%d",
		bookingListCachePrefix, f.Subject, f.SchoolName, f.SalespersonEmail, f.Date, f.Page, f.PageSize)
}

func paginationFor(f models.BookingFilter, total int) *models.Pagination {
	return &models.Pagination{Page: f.Page, PageSize: f.PageSize, TotalCount: total}
}

func rejectionForConflict(err error, teacherName string) (string, bool) {
	switch {
	case errors.Is(err, repository.ErrDuplicateBooking):
		return reasonDuplicate, true
	case errors.Is(err, repository.ErrSlotFull):
		return reasonSlotFull, true
	case errors.Is(err, repository.ErrTeacherBusy):
		return reasonTeacherBusy(teacherName), true
	case errors.Is(err, repository.ErrDailyCapReached):
		return reasonDailyCap(teacherName), true
	}
	return "", false
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
