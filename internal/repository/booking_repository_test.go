package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/cordova-edu/classbook-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func testBooking() *models.Booking {
	return &models.Booking{
		Kind:             models.KindLiveClass,
		SchoolName:       "DPS Rohini",
		Curriculum:       "CBSE",
		Subject:          "English",
		Date:             "2026-03-03",
		Slot:             "10:00–10:40",
		SalespersonName:  "Rohit",
		SalespersonPhone: "9876543210",
		SalespersonEmail: "rohit@cordova.example",
		Teacher:          "Aparajita",
		CreatedAt:        time.Now(),
	}
}

func expectGuardedCreate(mock sqlmock.Sqlmock, b *models.Booking, onSlot, busy, daily int) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(b.Date + "|" + b.Slot).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(b.Teacher + "|" + b.Date).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM bookings WHERE school_name")).
		WithArgs(b.SchoolName, b.Subject, b.Date, b.Slot).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE session_date = $1 AND slot = $2")).
		WithArgs(b.Date, b.Slot).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(onSlot))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE teacher = $1 AND session_date = $2 AND slot = $3")).
		WithArgs(b.Teacher, b.Date, b.Slot).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(busy))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE teacher = $1 AND session_date = $2")).
		WithArgs(b.Teacher, b.Date).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(daily))
}

func TestBookingRepositoryCreateCommitsAfterGuards(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	b := testBooking()

	expectGuardedCreate(mock, b, 1, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), b, 3, 2))
	require.Equal(t, int64(5), b.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateStopsOnDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	b := testBooking()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(b.Date + "|" + b.Slot).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(b.Teacher + "|" + b.Date).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM bookings WHERE school_name")).
		WithArgs(b.SchoolName, b.Subject, b.Date, b.Slot).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), b, 3, 2)
	require.ErrorIs(t, err, ErrDuplicateBooking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateStopsOnFullSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	b := testBooking()

	expectGuardedCreate(mock, b, 3, 0, 0)
	mock.ExpectRollback()

	// The later guard queries never fire, so ExpectationsWereMet is skipped.
	err := repo.Create(context.Background(), b, 3, 2)
	require.ErrorIs(t, err, ErrSlotFull)
}

func TestBookingRepositoryCreateStopsOnDailyCap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	b := testBooking()

	expectGuardedCreate(mock, b, 1, 0, 2)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), b, 3, 2)
	require.ErrorIs(t, err, ErrDailyCapReached)
}

func TestBookingRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	b := testBooking()

	expectGuardedCreate(mock, b, 0, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_teacher_date_slot_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), b, 3, 2)
	require.ErrorIs(t, err, ErrTeacherBusy)
}

func TestBookingRepositoryCreateMapsDuplicateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	b := testBooking()

	expectGuardedCreate(mock, b, 0, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_school_subject_date_slot_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), b, 3, 2)
	require.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestBookingRepositoryDeleteReportsExistence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bookings WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deleted, err := repo.Delete(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bookings WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	deleted, err = repo.Delete(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "booking_type", "school_name", "title_used", "grade", "curriculum", "subject",
		"session_date", "slot", "topic", "salesperson_name", "salesperson_phone",
		"salesperson_email", "teacher", "created_at",
	}).AddRow(int64(1), "Live Class", "DPS Rohini", nil, "5", "CBSE", "English",
		"2026-03-03", "10:00–10:40", nil, "Rohit", "9876543210",
		"rohit@cordova.example", "Aparajita", time.Now())

	mock.ExpectQuery("SELECT .+ FROM bookings WHERE 1=1 AND subject = \\$1 AND salesperson_email = \\$2").
		WithArgs("English", "rohit@cordova.example").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE 1=1 AND subject = $1 AND salesperson_email = $2")).
		WithArgs("English", "rohit@cordova.example").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{
		Subject:          "English",
		SalespersonEmail: "rohit@cordova.example",
		Page:             1,
		PageSize:         20,
	})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "Aparajita", bookings[0].Teacher)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM bookings WHERE school_name")).
		WithArgs("DPS Rohini", "English", "2026-03-03", "10:00–10:40").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.Exists(context.Background(), "DPS Rohini", "English", "2026-03-03", "10:00–10:40")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM bookings WHERE school_name")).
		WithArgs("DPS Rohini", "English", "2026-03-04", "10:00–10:40").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	exists, err = repo.Exists(context.Background(), "DPS Rohini", "English", "2026-03-04", "10:00–10:40")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
