package model

import "time"

// ActivityLog mirrors t_activity_log.
type ActivityLog struct {
	ActivityID  string    `json:"activity_id"`
	Module      string    `json:"module"`
	Action      string    `json:"action"`
	ReferenceID string    `json:"reference_id"`
	Message     string    `json:"message"`
	PerformedBy string    `json:"performed_by"`
	IP          string    `json:"ip"`
	InsertedAt  time.Time `json:"inserted_at"`
}
