package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cordova-edu/classbook-api/internal/directory"
	"github.com/cordova-edu/classbook-api/internal/models"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
)

// unavailabilityStore is the persistence surface for unavailability entries.
type unavailabilityStore interface {
	Create(ctx context.Context, e *models.UnavailabilityEntry) error
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]models.UnavailabilityEntry, error)
	IsUnavailable(ctx context.Context, teacher, date, slot string) (bool, error)
}

// UnavailabilityService manages teacher unavailability marks. Entries block
// admission for the marked teacher; existing bookings are never touched.
type UnavailabilityService struct {
	repo      unavailabilityStore
	directory *directory.Directory
	logger    *zap.Logger
}

// NewUnavailabilityService constructs an UnavailabilityService.
func NewUnavailabilityService(repo unavailabilityStore, dir *directory.Directory, logger *zap.Logger) *UnavailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnavailabilityService{repo: repo, directory: dir, logger: logger}
}

// Mark records a teacher as unavailable on a date, whole-day when slot is
// empty. The teacher name is canonicalised through the directory when it
// resolves; unknown names are stored as typed so ad-hoc staff can be marked.
func (s *UnavailabilityService) Mark(ctx context.Context, teacher, date, slot string) (*models.UnavailabilityEntry, error) {
	teacher = strings.TrimSpace(teacher)
	date = strings.TrimSpace(date)
	slot = strings.TrimSpace(slot)

	if teacher == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be a valid YYYY-MM-DD date")
	}
	if slot != "" && !directory.ValidSlot(slot) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown slot")
	}

	if resolved, ok := s.directory.Lookup(teacher); ok {
		teacher = resolved.DisplayName
	}

	entry := &models.UnavailabilityEntry{Teacher: teacher, Date: date}
	if slot != "" {
		entry.Slot = &slot
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record unavailability")
	}
	return entry, nil
}

// Unmark removes an entry by id. Removing an id that no longer exists is a
// no-op.
func (s *UnavailabilityService) Unmark(ctx context.Context, id int64) error {
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove unavailability")
	}
	return nil
}

// List returns all unavailability entries, newest date first.
func (s *UnavailabilityService) List(ctx context.Context) ([]models.UnavailabilityEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unavailability")
	}
	return entries, nil
}
