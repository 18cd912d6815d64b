package models

import "time"

// UnavailabilityEntry marks a teacher as unavailable for a date. A nil slot
// means the whole day. Duplicate entries are harmless: every consumer uses
// EXISTS semantics.
type UnavailabilityEntry struct {
	ID        int64     `db:"id" json:"id"`
	Teacher   string    `db:"teacher" json:"teacher"`
	Date      string    `db:"date" json:"date"`
	Slot      *string   `db:"slot" json:"slot,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
