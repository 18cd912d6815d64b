package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cordova-edu/classbook-api/internal/models"
)

// Guard violations detected by the ledger itself. Callers map these to the
// same user-facing rejections as the pre-insert policy checks, which is what
// closes the check-then-act race: the transaction, not the pre-check, has
// the final word.
var (
	ErrDuplicateBooking = errors.New("booking already exists for school, subject, date and slot")
	ErrSlotFull         = errors.New("slot parallel capacity reached")
	ErrTeacherBusy      = errors.New("teacher already booked in this slot")
	ErrDailyCapReached  = errors.New("teacher daily booking limit reached")
)

const bookingColumns = `id, booking_type, school_name, title_used, grade, curriculum, subject,
	session_date, slot, topic, salesperson_name, salesperson_phone, salesperson_email, teacher, created_at`

// BookingRepository is the system of record for accepted sessions.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts an admitted booking and assigns its identity. The whole
// admission re-check runs inside one transaction: advisory locks serialise
// concurrent attempts on the contended (date, slot) and (teacher, date)
// keys, the guards are re-verified against in-transaction state, and the
// unique indexes are the last-resort backstop. Create performs no policy
// ordering itself; the caller has already produced the user-facing decision.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking, slotCap, dailyCap int) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.Date+"|"+b.Slot); err != nil {
		return fmt.Errorf("lock slot key: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.Teacher+"|"+b.Date); err != nil {
		return fmt.Errorf("lock teacher key: %w", err)
	}

	exists, err := bookingExists(ctx, tx, b.SchoolName, b.Subject, b.Date, b.Slot)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateBooking
	}

	onSlot, err := countOnSlot(ctx, tx, b.Date, b.Slot)
	if err != nil {
		return err
	}
	if slotCap > 0 && onSlot >= slotCap {
		return ErrSlotFull
	}

	busy, err := teacherBusy(ctx, tx, b.Teacher, b.Date, b.Slot)
	if err != nil {
		return err
	}
	if busy {
		return ErrTeacherBusy
	}

	forTeacher, err := countForTeacherOn(ctx, tx, b.Teacher, b.Date)
	if err != nil {
		return err
	}
	if dailyCap > 0 && forTeacher >= dailyCap {
		return ErrDailyCapReached
	}

	const query = `INSERT INTO bookings (
			booking_type, school_name, title_used, grade, curriculum, subject,
			session_date, slot, topic, salesperson_name, salesperson_phone,
			salesperson_email, teacher, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	err = tx.QueryRowContext(ctx, query,
		b.Kind, b.SchoolName, b.TitleUsed, b.Grade, b.Curriculum, b.Subject,
		b.Date, b.Slot, b.Topic, b.SalespersonName, b.SalespersonPhone,
		b.SalespersonEmail, b.Teacher, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		if conflict := conflictFromUniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// Delete removes a booking by identity. It reports whether a row was
// actually deleted so callers can treat repeat deletes as no-ops.
func (r *BookingRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete booking rows: %w", err)
	}
	return n > 0, nil
}

// FindByID fetches a booking by identity.
func (r *BookingRepository) FindByID(ctx context.Context, id int64) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns bookings matching the filter, newest session first, along
// with the total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.SchoolName != "" {
		conditions = append(conditions, fmt.Sprintf("school_name = $%d", len(args)+1))
		args = append(args, filter.SchoolName)
	}
	if filter.SalespersonEmail != "" {
		conditions = append(conditions, fmt.Sprintf("salesperson_email = $%d", len(args)+1))
		args = append(args, filter.SalespersonEmail)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("session_date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY session_date DESC, created_at DESC LIMIT %d OFFSET %d",
		bookingColumns, base, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// Exists reports whether a live booking occupies (school, subject, date, slot).
func (r *BookingRepository) Exists(ctx context.Context, school, subject, date, slot string) (bool, error) {
	return bookingExists(ctx, r.db, school, subject, date, slot)
}

// IsBusy reports whether the teacher already has a booking at (date, slot).
func (r *BookingRepository) IsBusy(ctx context.Context, teacher, date, slot string) (bool, error) {
	return teacherBusy(ctx, r.db, teacher, date, slot)
}

// CountForTeacherOn returns the teacher's booking count for a date.
func (r *BookingRepository) CountForTeacherOn(ctx context.Context, teacher, date string) (int, error) {
	return countForTeacherOn(ctx, r.db, teacher, date)
}

// CountOnSlot returns the number of bookings sharing (date, slot).
func (r *BookingRepository) CountOnSlot(ctx context.Context, date, slot string) (int, error) {
	return countOnSlot(ctx, r.db, date, slot)
}

// The point queries run both on the pool (fresh policy reads) and inside the
// admission transaction, so they accept any sqlx queryer.

func bookingExists(ctx context.Context, q sqlx.QueryerContext, school, subject, date, slot string) (bool, error) {
	const query = `SELECT 1 FROM bookings WHERE school_name = $1 AND subject = $2 AND session_date = $3 AND slot = $4 LIMIT 1`
	var one int
	if err := sqlx.GetContext(ctx, q, &one, query, school, subject, date, slot); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check booking exists: %w", err)
	}
	return true, nil
}

func teacherBusy(ctx context.Context, q sqlx.QueryerContext, teacher, date, slot string) (bool, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE teacher = $1 AND session_date = $2 AND slot = $3`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, teacher, date, slot); err != nil {
		return false, fmt.Errorf("check teacher busy: %w", err)
	}
	return n > 0, nil
}

func countForTeacherOn(ctx context.Context, q sqlx.QueryerContext, teacher, date string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE teacher = $1 AND session_date = $2`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, teacher, date); err != nil {
		return 0, fmt.Errorf("count teacher bookings: %w", err)
	}
	return n, nil
}

func countOnSlot(ctx context.Context, q sqlx.QueryerContext, date, slot string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE session_date = $1 AND slot = $2`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, date, slot); err != nil {
		return 0, fmt.Errorf("count slot bookings: %w", err)
	}
	return n, nil
}

func conflictFromUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	if pqErr.Constraint == "bookings_teacher_date_slot_key" {
		return ErrTeacherBusy
	}
	return ErrDuplicateBooking
}
