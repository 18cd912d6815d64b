package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/cordova-edu/classbook-api/internal/models"
)

func TestUnavailabilityRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnavailabilityRepository(db)
	slot := "10:00–10:40"
	entry := &models.UnavailabilityEntry{Teacher: "Aparajita", Date: "2026-03-03", Slot: &slot}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO teacher_unavailability")).
		WithArgs("Aparajita", "2026-03-03", slot, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	require.NoError(t, repo.Create(context.Background(), entry))
	require.Equal(t, int64(3), entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnavailabilityRepositoryIsUnavailableMatchesWholeDayAndSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnavailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("slot IS NULL OR slot = $3")).
		WithArgs("Aparajita", "2026-03-03", "10:00–10:40").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	out, err := repo.IsUnavailable(context.Background(), "Aparajita", "2026-03-03", "10:00–10:40")
	require.NoError(t, err)
	require.True(t, out)

	mock.ExpectQuery(regexp.QuoteMeta("slot IS NULL OR slot = $3")).
		WithArgs("Aparajita", "2026-03-04", "10:00–10:40").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	out, err = repo.IsUnavailable(context.Background(), "Aparajita", "2026-03-04", "10:00–10:40")
	require.NoError(t, err)
	require.False(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnavailabilityRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnavailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_unavailability WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deleted, err := repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_unavailability WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	deleted, err = repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnavailabilityRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnavailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "teacher", "date", "slot", "created_at"}).
		AddRow(int64(2), "Megha", "2026-03-04", nil, time.Now()).
		AddRow(int64(1), "Aparajita", "2026-03-03", "10:00–10:40", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher, date, slot, created_at FROM teacher_unavailability")).
		WillReturnRows(rows)

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Nil(t, entries[0].Slot)
	require.NotNil(t, entries[1].Slot)
	require.NoError(t, mock.ExpectationsWereMet())
}
