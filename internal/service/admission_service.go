package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cordova-edu/classbook-api/internal/directory"
	appErrors "github.com/cordova-edu/classbook-api/pkg/errors"
)

// bookingLedgerQueries is the availability surface the policy needs from the
// booking ledger. Every call reads current state; admission never consults
// the display cache.
type bookingLedgerQueries interface {
	Exists(ctx context.Context, school, subject, date, slot string) (bool, error)
	IsBusy(ctx context.Context, teacher, date, slot string) (bool, error)
	CountForTeacherOn(ctx context.Context, teacher, date string) (int, error)
	CountOnSlot(ctx context.Context, date, slot string) (int, error)
}

type unavailabilityQueries interface {
	IsUnavailable(ctx context.Context, teacher, date, slot string) (bool, error)
}

// Caps carries the capacity configuration: the per-(date,slot) parallel
// limit and per-teacher daily limits.
type Caps struct {
	SlotParallel int
	DailyDefault int
	overrides    map[directory.TeacherID]int
}

// Megha's limit of one session per day predates external cap configuration;
// it still applies whenever no explicit override is supplied for her.
var fallbackDailyCaps = map[directory.TeacherID]int{
	directory.NormalizeTeacherKey("Megha"): 1,
}

// NewCaps builds a Caps value, normalising override keys.
func NewCaps(slotParallel, dailyDefault int, overrides map[string]int) Caps {
	if slotParallel <= 0 {
		slotParallel = 3
	}
	if dailyDefault <= 0 {
		dailyDefault = 2
	}
	normalized := make(map[directory.TeacherID]int, len(overrides))
	for name, limit := range overrides {
		if limit > 0 {
			normalized[directory.NormalizeTeacherKey(name)] = limit
		}
	}
	return Caps{SlotParallel: slotParallel, DailyDefault: dailyDefault, overrides: normalized}
}

// DailyFor returns the effective daily cap for a teacher: explicit override,
// then built-in fallback, then the global default.
func (c Caps) DailyFor(id directory.TeacherID) int {
	if limit, ok := c.overrides[id]; ok {
		return limit
	}
	if limit, ok := fallbackDailyCaps[id]; ok {
		return limit
	}
	return c.DailyDefault
}

// AdmissionRequest is one candidate booking as seen by the policy. Teacher
// is the optional administrative override; when set, only the teacher-level
// checks run instead of the candidate walk.
type AdmissionRequest struct {
	SchoolName string
	Subject    string
	Date       string
	Slot       string
	Teacher    string
}

// Decision is the policy verdict. Reason is a short human-readable message
// naming the first violated rule; it is only set when Accepted is false.
type Decision struct {
	Accepted bool
	Reason   string
	Teacher  *directory.Teacher
}

// AvailabilityPreview reports per-candidate eligibility for a
// (subject, date, slot), in directory preference order.
type AvailabilityPreview struct {
	Subject       string   `json:"subject"`
	Date          string   `json:"date"`
	Slot          string   `json:"slot"`
	Available     []string `json:"available"`
	Unavailable   []string `json:"unavailable"`
	LikelyTeacher string   `json:"likely_teacher,omitempty"`
}

// AdmissionConfig tunes the booking window.
type AdmissionConfig struct {
	Location       *time.Location
	CutoffHour     int
	CutoffMinute   int
	MaxAdvanceDays int
	Caps           Caps
	Now            func() time.Time
}

// AdmissionService decides whether a requested session may be created and,
// if so, with which teacher. It is a pure decision layer: all state lives in
// the stores it queries, and policy violations are reported as rejected
// decisions, never as errors.
type AdmissionService struct {
	bookings       bookingLedgerQueries
	unavailability unavailabilityQueries
	directory      *directory.Directory
	caps           Caps
	loc            *time.Location
	cutoffHour     int
	cutoffMinute   int
	maxAdvanceDays int
	now            func() time.Time
	logger         *zap.Logger
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(bookings bookingLedgerQueries, unavailability unavailabilityQueries, dir *directory.Directory, cfg AdmissionConfig, logger *zap.Logger) *AdmissionService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	// Hour 0 is a legitimate midnight cutoff; only out-of-range values
	// fall back to the default.
	if cfg.CutoffHour < 0 || cfg.CutoffHour > 23 {
		cfg.CutoffHour = 14
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		bookings:       bookings,
		unavailability: unavailability,
		directory:      dir,
		caps:           cfg.Caps,
		loc:            cfg.Location,
		cutoffHour:     cfg.CutoffHour,
		cutoffMinute:   cfg.CutoffMinute,
		maxAdvanceDays: cfg.MaxAdvanceDays,
		now:            cfg.Now,
		logger:         logger,
	}
}

// Rejection messages. The checks run in a fixed order and the first failure
// wins, so each message names exactly one rule.
const (
	reasonNotInAdvance = "bookings must be made at least one day in advance"
	reasonSlotFull     = "this slot already has the maximum number of parallel sessions"
	reasonDuplicate    = "a booking already exists for this school, subject, date and slot"
	reasonNoTeacher    = "no suitable teacher available for this subject, date and slot"
)

func (s *AdmissionService) cutoffReason() string {
	return fmt.Sprintf("it's past %02d:%02d; bookings for tomorrow are closed, please choose a later date",
		s.cutoffHour, s.cutoffMinute)
}

func reasonTeacherUnavailable(name, date string) string {
	return fmt.Sprintf("%s is unavailable on %s", name, date)
}

func reasonTeacherBusy(name string) string {
	return fmt.Sprintf("%s is already booked in this slot", name)
}

func reasonDailyCap(name string) string {
	return fmt.Sprintf("%s has reached the daily booking limit", name)
}

// Evaluate runs the ordered guard checks for one request and, when they
// pass, resolves the teacher. Only infrastructure failures return an error;
// every policy violation comes back as a rejected Decision.
func (s *AdmissionService) Evaluate(ctx context.Context, req AdmissionRequest) (Decision, error) {
	if reason := s.checkWindow(req.Date); reason != "" {
		return rejected(reason), nil
	}

	onSlot, err := s.bookings.CountOnSlot(ctx, req.Date, req.Slot)
	if err != nil {
		return Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot bookings")
	}
	if onSlot >= s.caps.SlotParallel {
		return rejected(reasonSlotFull), nil
	}

	exists, err := s.bookings.Exists(ctx, req.SchoolName, req.Subject, req.Date, req.Slot)
	if err != nil {
		return Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate booking")
	}
	if exists {
		return rejected(reasonDuplicate), nil
	}

	// Administrative override: a pre-chosen teacher skips the candidate
	// walk, but never the teacher-level checks.
	if strings.TrimSpace(req.Teacher) != "" {
		teacher, ok := s.directory.Lookup(req.Teacher)
		if !ok {
			teacher = directory.Teacher{
				ID:          directory.NormalizeTeacherKey(req.Teacher),
				DisplayName: strings.TrimSpace(req.Teacher),
			}
		}
		reason, err := s.teacherReason(ctx, teacher, req.Date, req.Slot)
		if err != nil {
			return Decision{}, err
		}
		if reason != "" {
			return rejected(reason), nil
		}
		return Decision{Accepted: true, Teacher: &teacher}, nil
	}

	teacher, err := s.Resolve(ctx, req.Subject, req.Date, req.Slot)
	if err != nil {
		return Decision{}, err
	}
	if teacher == nil {
		return rejected(reasonNoTeacher), nil
	}
	return Decision{Accepted: true, Teacher: teacher}, nil
}

// Resolve walks the subject's candidate list in preference order and returns
// the first teacher passing all teacher-level checks. A nil result with a
// nil error means no candidate survived, which is a normal outcome. The
// tie-break is deterministic on purpose: always the earliest-listed eligible
// candidate, never load-balanced.
func (s *AdmissionService) Resolve(ctx context.Context, subject, date, slot string) (*directory.Teacher, error) {
	for _, candidate := range s.directory.CandidatesFor(subject) {
		reason, err := s.teacherReason(ctx, candidate, date, slot)
		if err != nil {
			return nil, err
		}
		if reason == "" {
			candidate := candidate
			return &candidate, nil
		}
	}
	return nil, nil
}

// Preview reports each candidate's eligibility for display purposes.
func (s *AdmissionService) Preview(ctx context.Context, subject, date, slot string) (*AvailabilityPreview, error) {
	preview := &AvailabilityPreview{Subject: subject, Date: date, Slot: slot}
	for _, candidate := range s.directory.CandidatesFor(subject) {
		reason, err := s.teacherReason(ctx, candidate, date, slot)
		if err != nil {
			return nil, err
		}
		if reason == "" {
			preview.Available = append(preview.Available, candidate.DisplayName)
		} else {
			preview.Unavailable = append(preview.Unavailable, candidate.DisplayName)
		}
	}
	if len(preview.Available) > 0 {
		preview.LikelyTeacher = preview.Available[0]
	}
	return preview, nil
}

// LocalNow returns the current time in the configured booking timezone.
func (s *AdmissionService) LocalNow() time.Time {
	return s.now().In(s.loc)
}

// checkWindow enforces the booking window: at least one day ahead, at most
// maxAdvanceDays ahead, and next-day bookings close at the cutoff. The
// cutoff gates only the exactly-tomorrow case; dates two or more days out
// are unconstrained by time of day.
func (s *AdmissionService) checkWindow(date string) string {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return "session date must be a valid YYYY-MM-DD date"
	}

	now := s.LocalNow()
	daysAhead := calendarDaysBetween(now, day)

	if daysAhead <= 0 {
		return reasonNotInAdvance
	}
	if s.maxAdvanceDays > 0 && daysAhead > s.maxAdvanceDays {
		return fmt.Sprintf("bookings can be made at most %d days in advance", s.maxAdvanceDays)
	}
	if daysAhead == 1 {
		cutoff := time.Date(now.Year(), now.Month(), now.Day(), s.cutoffHour, s.cutoffMinute, 0, 0, s.loc)
		if !now.Before(cutoff) {
			return s.cutoffReason()
		}
	}
	return ""
}

// calendarDaysBetween counts calendar days from a to b. Both dates are
// re-anchored at UTC midnight so DST-shortened or lengthened days in the
// booking timezone cannot skew the count.
func calendarDaysBetween(a, b time.Time) int {
	from := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}

// teacherReason runs the teacher-level checks and returns the first
// violation, or "" when the teacher is eligible.
func (s *AdmissionService) teacherReason(ctx context.Context, t directory.Teacher, date, slot string) (string, error) {
	unavailable, err := s.unavailability.IsUnavailable(ctx, t.DisplayName, date, slot)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher unavailability")
	}
	if unavailable {
		return reasonTeacherUnavailable(t.DisplayName, date), nil
	}

	busy, err := s.bookings.IsBusy(ctx, t.DisplayName, date, slot)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher schedule")
	}
	if busy {
		return reasonTeacherBusy(t.DisplayName), nil
	}

	count, err := s.bookings.CountForTeacherOn(ctx, t.DisplayName, date)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teacher bookings")
	}
	if count >= s.caps.DailyFor(t.ID) {
		return reasonDailyCap(t.DisplayName), nil
	}

	return "", nil
}

func rejected(reason string) Decision {
	return Decision{Accepted: false, Reason: reason}
}
