package model

import "time"

// User mirrors m_user joined with its role name.
type User struct {
	UserID       string     `json:"user_id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Email        *string    `json:"email,omitempty"`
	Mobile       *string    `json:"mobile,omitempty"`
	RoleID       string     `json:"role_id"`
	RoleName     string     `json:"role_name"`
	IsActive     bool       `json:"is_active"`
	InsertedAt   time.Time  `json:"inserted_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Role mirrors m_role. Permissions is filled on detail reads.
type Role struct {
	RoleID      string           `json:"role_id"`
	RoleName    string           `json:"role_name"`
	Description *string          `json:"description,omitempty"`
	IsActive    bool             `json:"is_active"`
	Permissions []RolePermission `json:"permissions,omitempty"`
}

// Permission mirrors m_permission; PermissionName is the string checked by
// route guards, e.g. "guest.create".
type Permission struct {
	PermissionID   int64   `json:"permission_id"`
	PermissionName string  `json:"permission_name"`
	Description    *string `json:"description,omitempty"`
}

// RolePermission mirrors m_role_permission.
type RolePermission struct {
	RoleID         string `json:"role_id"`
	PermissionID   int64  `json:"permission_id"`
	PermissionName string `json:"permission_name"`
	IsActive       bool   `json:"is_active"`
}

// RefreshToken mirrors t_refresh_token. Only the peppered hash of the raw
// token is stored. Tokens rotated from one login share FamilyID.
type RefreshToken struct {
	ID         uint64
	UserID     string
	TokenHash  string
	FamilyID   string
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	ReplacedBy *string
}
