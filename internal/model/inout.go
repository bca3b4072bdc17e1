package model

import "time"

// Visit statuses of t_guest_inout.
const (
	InOutScheduled = "Scheduled"
	InOutEntered   = "Entered"
	InOutInside    = "Inside"
	InOutExited    = "Exited"
	InOutCancelled = "Cancelled"
)

// GuestInOut is one visit of a guest. Dates are "YYYY-MM-DD" and times
// "HH:MM:SS", both in the guest-house local clock stored as UTC.
type GuestInOut struct {
	InOutID        string     `json:"inout_id"`
	GuestID        string     `json:"guest_id"`
	GuestName      string     `json:"guest_name,omitempty"`
	EntryDate      string     `json:"entry_date"`
	EntryTime      string     `json:"entry_time"`
	ExitDate       *string    `json:"exit_date,omitempty"`
	ExitTime       *string    `json:"exit_time,omitempty"`
	Status         string     `json:"status"`
	RoomID         *string    `json:"room_id,omitempty"`
	Companions     int        `json:"companions"`
	RequiresDriver bool       `json:"requires_driver"`
	Purpose        *string    `json:"purpose,omitempty"`
	Remarks        *string    `json:"remarks,omitempty"`
	IsActive       bool       `json:"is_active"`
	InsertedAt     time.Time  `json:"inserted_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Terminal reports whether no further transition is possible.
func (io GuestInOut) Terminal() bool {
	return io.Status == InOutExited || io.Status == InOutCancelled
}
