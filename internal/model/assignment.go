package model

import "time"

// Assignment is the shared shape of every guest-to-resource fact
// (driver, vehicle, butler, network, messenger, housekeeping).
// ResourceID is nil only for a pending network request.
type Assignment struct {
	AssignmentID string     `json:"assignment_id"`
	Kind         string     `json:"kind"`
	GuestID      string     `json:"guest_id"`
	ResourceID   *string    `json:"resource_id,omitempty"`
	StartDate    string     `json:"start_date"`
	StartTime    *string    `json:"start_time,omitempty"`
	EndDate      *string    `json:"end_date,omitempty"`
	EndTime      *string    `json:"end_time,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Remarks      *string    `json:"remarks,omitempty"`
	Status       string     `json:"status"`
	IsActive     bool       `json:"is_active"`
	InsertedAt   time.Time  `json:"inserted_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
