package model

import "time"

// Master is a row of a master table (staff-backed roles, vehicles, network
// providers). Fields holds the whitelisted columns of that table; for a
// staff-backed master it also holds the m_staff columns.
type Master struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	StaffID    *string            `json:"staff_id,omitempty"`
	Fields     map[string]*string `json:"fields"`
	IsActive   bool               `json:"is_active"`
	InsertedAt time.Time          `json:"inserted_at"`
	UpdatedAt  *time.Time         `json:"updated_at,omitempty"`
}
