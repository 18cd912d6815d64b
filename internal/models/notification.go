package models

import "time"

// Email event outcomes.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailEvent is one audited notification attempt. Failed attempts can be
// resent by id, which records a fresh event.
type EmailEvent struct {
	ID          int64     `db:"id" json:"id"`
	BookingID   *int64    `db:"booking_id" json:"booking_id,omitempty"`
	Recipient   string    `db:"recipient" json:"recipient"`
	Subject     string    `db:"subject" json:"subject"`
	Body        string    `db:"body" json:"body"`
	Status      string    `db:"status" json:"status"`
	ErrorDetail *string   `db:"error_detail" json:"error_detail,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
