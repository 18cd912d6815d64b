package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cordova-edu/classbook-api/internal/models"
)

// UnavailabilityRepository manages persistence for teacher unavailability.
type UnavailabilityRepository struct {
	db *sqlx.DB
}

// NewUnavailabilityRepository constructs an UnavailabilityRepository.
func NewUnavailabilityRepository(db *sqlx.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

// Create inserts an unavailability entry and assigns its identity.
func (r *UnavailabilityRepository) Create(ctx context.Context, e *models.UnavailabilityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_unavailability (teacher, date, slot, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, e.Teacher, e.Date, e.Slot, e.CreatedAt).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert unavailability: %w", err)
	}
	return nil
}

// Delete removes an entry by identity, reporting whether a row existed.
func (r *UnavailabilityRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teacher_unavailability WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete unavailability: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete unavailability rows: %w", err)
	}
	return n > 0, nil
}

// List returns all entries, newest date first.
func (r *UnavailabilityRepository) List(ctx context.Context) ([]models.UnavailabilityEntry, error) {
	const query = `SELECT id, teacher, date, slot, created_at FROM teacher_unavailability ORDER BY date DESC, id DESC`
	var entries []models.UnavailabilityEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list unavailability: %w", err)
	}
	return entries, nil
}

// IsUnavailable reports whether the teacher is out for the whole day or the
// specific slot.
func (r *UnavailabilityRepository) IsUnavailable(ctx context.Context, teacher, date, slot string) (bool, error) {
	const query = `SELECT COUNT(*) FROM teacher_unavailability
		WHERE teacher = $1 AND date = $2 AND (slot IS NULL OR slot = $3)`
	var n int
	if err := r.db.GetContext(ctx, &n, query, teacher, date, slot); err != nil {
		return false, fmt.Errorf("check unavailability: %w", err)
	}
	return n > 0, nil
}
