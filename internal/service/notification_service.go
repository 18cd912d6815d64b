package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cordova-edu/classbook-api/internal/directory"
	"github.com/cordova-edu/classbook-api/internal/models"
	"github.com/cordova-edu/classbook-api/pkg/config"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
	"github.com/cordova-edu/classbook-api/pkg/jobs"
	"github.com/cordova-edu/classbook-api/pkg/mailer"
)

// emailEventStore persists the notification audit trail.
type emailEventStore interface {
	Insert(ctx context.Context, e *models.EmailEvent) error
	FindByID(ctx context.Context, id int64) (*models.EmailEvent, error)
	List(ctx context.Context, limit int) ([]models.EmailEvent, error)
}

// emailJob is the queued payload for one outgoing message.
type emailJob struct {
	BookingID *int64
	To        string
	Subject   string
	Body      string
}

// NotificationService fans booking lifecycle emails out through a background
// queue. Delivery is strictly best-effort: a failed or unconfigured send is
// logged and audited but never fails the booking that triggered it.
type NotificationService struct {
	queue       *jobs.Queue
	sender      mailer.Sender
	events      emailEventStore
	directory   *directory.Directory
	metrics     *MetricsService
	adminEmail  string
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewNotificationService constructs the dispatcher and its worker pool. Call
// Start before enqueueing and Stop on shutdown.
func NewNotificationService(sender mailer.Sender, events emailEventStore, dir *directory.Directory, metrics *MetricsService, cfg config.NotifyConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 8 * time.Second
	}
	s := &NotificationService{
		sender:      sender,
		events:      events,
		directory:   dir,
		metrics:     metrics,
		adminEmail:  strings.TrimSpace(cfg.AdminEmail),
		sendTimeout: cfg.SendTimeout,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// BookingConfirmed notifies the requester, the assigned teacher and the
// admin mailbox. Each party sees a scoped body: the requester is not told
// the teacher's name, and the teacher is not given the requester's contact
// details.
func (s *NotificationService) BookingConfirmed(b *models.Booking) {
	s.enqueue(b.ID, b.SalespersonEmail, "Your class booking is confirmed", requesterConfirmationBody(b))
	s.enqueue(b.ID, s.teacherEmail(b.Teacher), "New session assigned to you", teacherAssignmentBody(b))
	s.enqueue(b.ID, s.adminEmail, "New booking created", adminSummaryBody(b))
}

// BookingCancelled notifies the requester and the assigned teacher that the
// session will not happen.
func (s *NotificationService) BookingCancelled(b *models.Booking) {
	s.enqueue(b.ID, b.SalespersonEmail, "Your class booking was cancelled", requesterCancellationBody(b))
	s.enqueue(b.ID, s.teacherEmail(b.Teacher), "Session cancelled", teacherCancellationBody(b))
}

// Resend re-queues the content of a previously audited event. The retry is
// recorded as a fresh event; the original row is left untouched.
func (s *NotificationService) Resend(ctx context.Context, eventID int64) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "email event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load email event")
	}
	var bookingID int64
	if event.BookingID != nil {
		bookingID = *event.BookingID
	}
	s.enqueue(bookingID, event.Recipient, event.Subject, event.Body)
	return nil
}

// ListEvents returns the latest audited delivery attempts.
func (s *NotificationService) ListEvents(ctx context.Context, limit int) ([]models.EmailEvent, error) {
	events, err := s.events.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list email events")
	}
	return events, nil
}

func (s *NotificationService) enqueue(bookingID int64, to, subject, body string) {
	to = strings.TrimSpace(to)
	if to == "" {
		return
	}
	payload := emailJob{To: to, Subject: subject, Body: body}
	if bookingID > 0 {
		id := bookingID
		payload.BookingID = &id
	}
	job := jobs.Job{ID: uuid.NewString(), Type: "email", Payload: payload}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("recipient", to), zap.String("subject", subject), zap.Error(err))
	}
}

// deliver is the queue handler: send with a bounded deadline, audit the
// attempt either way, and surface the send error to the retry budget.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(emailJob)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	sendErr := s.sender.Send(sendCtx, mailer.Message{To: payload.To, Subject: payload.Subject, Body: payload.Body})

	event := &models.EmailEvent{
		BookingID: payload.BookingID,
		Recipient: payload.To,
		Subject:   payload.Subject,
		Body:      payload.Body,
		Status:    models.EmailStatusSent,
	}
	if sendErr != nil {
		event.Status = models.EmailStatusFailed
		detail := sendErr.Error()
		event.ErrorDetail = &detail
	}
	s.metrics.ObserveEmail(event.Status)
	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Error("failed to record email event",
			zap.String("recipient", payload.To), zap.Error(err))
	}

	if sendErr != nil {
		s.logger.Warn("email delivery failed",
			zap.String("recipient", payload.To), zap.String("subject", payload.Subject), zap.Error(sendErr))
	}
	return sendErr
}

// teacherEmail resolves a teacher's contact address, falling back to the
// admin mailbox for teachers without one so the assignment is still seen.
func (s *NotificationService) teacherEmail(name string) string {
	if t, ok := s.directory.Lookup(name); ok && t.Email != "" {
		return t.Email
	}
	return s.adminEmail
}

func requesterConfirmationBody(b *models.Booking) string {
	var w strings.Builder
	fmt.Fprintf(&w, "Dear %s,\n\nYour class has been booked.\n\n", b.SalespersonName)
	fmt.Fprintf(&w, "School: %s\n", b.SchoolName)
	fmt.Fprintf(&w, "Grade: %s\n", orDash(b.Grade))
	fmt.Fprintf(&w, "Subject: %s\n", b.Subject)
	fmt.Fprintf(&w, "Date: %s\n", b.Date)
	fmt.Fprintf(&w, "Slot: %s\n", b.Slot)
	fmt.Fprintf(&w, "Type: %s\n", b.Kind)
	fmt.Fprintf(&w, "Topic: %s\n", orDash(b.Topic))
	w.WriteString("\nA teacher has been assigned for this session.\n")
	return w.String()
}

func teacherAssignmentBody(b *models.Booking) string {
	var w strings.Builder
	fmt.Fprintf(&w, "Dear %s,\n\nYou have a new session to conduct.\n\n", b.Teacher)
	fmt.Fprintf(&w, "Subject: %s\n", b.Subject)
	fmt.Fprintf(&w, "Date: %s\n", b.Date)
	fmt.Fprintf(&w, "Slot: %s\n", b.Slot)
	fmt.Fprintf(&w, "School: %s\n", b.SchoolName)
	fmt.Fprintf(&w, "Grade: %s\n", orDash(b.Grade))
	fmt.Fprintf(&w, "Type: %s\n", b.Kind)
	fmt.Fprintf(&w, "Topic: %s\n", orDash(b.Topic))
	return w.String()
}

func adminSummaryBody(b *models.Booking) string {
	var w strings.Builder
	fmt.Fprintf(&w, "A new booking was created.\n\n")
	fmt.Fprintf(&w, "School: %s\n", b.SchoolName)
	fmt.Fprintf(&w, "Grade: %s\n", orDash(b.Grade))
	fmt.Fprintf(&w, "Curriculum: %s\n", b.Curriculum)
	fmt.Fprintf(&w, "Subject: %s\n", b.Subject)
	fmt.Fprintf(&w, "Date: %s\n", b.Date)
	fmt.Fprintf(&w, "Slot: %s\n", b.Slot)
	fmt.Fprintf(&w, "Type: %s\n", b.Kind)
	fmt.Fprintf(&w, "Topic: %s\n", orDash(b.Topic))
	fmt.Fprintf(&w, "Teacher: %s\n", b.Teacher)
	fmt.Fprintf(&w, "Requested by: %s (%s, %s)\n", b.SalespersonName, b.SalespersonPhone, b.SalespersonEmail)
	return w.String()
}

func requesterCancellationBody(b *models.Booking) string {
	var w strings.Builder
	fmt.Fprintf(&w, "Dear %s,\n\nYour booking has been cancelled.\n\n", b.SalespersonName)
	fmt.Fprintf(&w, "School: %s\n", b.SchoolName)
	fmt.Fprintf(&w, "Subject: %s\n", b.Subject)
	fmt.Fprintf(&w, "Date: %s\n", b.Date)
	fmt.Fprintf(&w, "Slot: %s\n", b.Slot)
	return w.String()
}

func teacherCancellationBody(b *models.Booking) string {
	var w strings.Builder
	fmt.Fprintf(&w, "Dear %s,\n\nThe following session has been cancelled.\n\n", b.Teacher)
	fmt.Fprintf(&w, "Subject: %s\n", b.Subject)
	fmt.Fprintf(&w, "Date: %s\n", b.Date)
	fmt.Fprintf(&w, "Slot: %s\n", b.Slot)
	fmt.Fprintf(&w, "School: %s\n", b.SchoolName)
	return w.String()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
