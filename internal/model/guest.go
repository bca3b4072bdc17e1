package model

import "time"

// Guest mirrors m_guest. A guest owns at most one current designation.
type Guest struct {
	GuestID     string            `json:"guest_id"`
	GuestName   string            `json:"guest_name"`
	Mobile      *string           `json:"mobile,omitempty"`
	Email       *string           `json:"email,omitempty"`
	Address     *string           `json:"address,omitempty"`
	Nationality *string           `json:"nationality,omitempty"`
	IDType      *string           `json:"id_type,omitempty"`
	IDNumber    *string           `json:"id_number,omitempty"`
	Designation *GuestDesignation `json:"designation,omitempty"`
	IsActive    bool              `json:"is_active"`
	InsertedAt  time.Time         `json:"inserted_at"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// GuestDesignation mirrors t_guest_designation.
type GuestDesignation struct {
	DesignationID string  `json:"designation_id"`
	GuestID       string  `json:"guest_id"`
	Designation   string  `json:"designation"`
	Department    *string `json:"department,omitempty"`
	Organization  *string `json:"organization,omitempty"`
	IsCurrent     bool    `json:"is_current"`
}
