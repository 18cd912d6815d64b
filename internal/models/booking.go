package models

import "time"

// BookingKind distinguishes the two session types.
type BookingKind string

const (
	KindLiveClass       BookingKind = "Live Class"
	KindProductTraining BookingKind = "Product Training"
)

// Valid reports whether the kind is one of the known enum values.
func (k BookingKind) Valid() bool {
	return k == KindLiveClass || k == KindProductTraining
}

// Booking is one accepted classroom session. Rows are immutable once
// created; rescheduling is delete + recreate.
type Booking struct {
	ID               int64       `db:"id" json:"id"`
	Kind             BookingKind `db:"booking_type" json:"booking_type"`
	SchoolName       string      `db:"school_name" json:"school_name"`
	TitleUsed        *string     `db:"title_used" json:"title_used,omitempty"`
	Grade            *string     `db:"grade" json:"grade,omitempty"`
	Curriculum       string      `db:"curriculum" json:"curriculum"`
	Subject          string      `db:"subject" json:"subject"`
	Date             string      `db:"session_date" json:"date"`
	Slot             string      `db:"slot" json:"slot"`
	Topic            *string     `db:"topic" json:"topic,omitempty"`
	SalespersonName  string      `db:"salesperson_name" json:"salesperson_name"`
	SalespersonPhone string      `db:"salesperson_phone" json:"salesperson_phone"`
	SalespersonEmail string      `db:"salesperson_email" json:"salesperson_email"`
	Teacher          string      `db:"teacher" json:"teacher"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// BookingFilter captures filtering options for listing bookings.
type BookingFilter struct {
	Subject          string
	SchoolName       string
	SalespersonEmail string
	Date             string
	Page             int
	PageSize         int
}
