package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cordova-edu/classbook-api/internal/models"
)

// EmailEventRepository persists the notification audit trail.
type EmailEventRepository struct {
	db *sqlx.DB
}

// NewEmailEventRepository constructs an EmailEventRepository.
func NewEmailEventRepository(db *sqlx.DB) *EmailEventRepository {
	return &EmailEventRepository{db: db}
}

// Insert records one notification attempt.
func (r *EmailEventRepository) Insert(ctx context.Context, e *models.EmailEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO email_events (booking_id, recipient, subject, body, status, error_detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		e.BookingID, e.Recipient, e.Subject, e.Body, e.Status, e.ErrorDetail, e.CreatedAt,
	).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}
	return nil
}

// FindByID fetches an event by identity.
func (r *EmailEventRepository) FindByID(ctx context.Context, id int64) (*models.EmailEvent, error) {
	const query = `SELECT id, booking_id, recipient, subject, body, status, error_detail, created_at
		FROM email_events WHERE id = $1`
	var e models.EmailEvent
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns the latest events, newest first.
func (r *EmailEventRepository) List(ctx context.Context, limit int) ([]models.EmailEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT id, booking_id, recipient, subject, body, status, error_detail, created_at
		FROM email_events ORDER BY created_at DESC, id DESC LIMIT %d`, limit)
	var events []models.EmailEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list email events: %w", err)
	}
	return events, nil
}
