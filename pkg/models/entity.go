package models

import "time"

// Entity is a triggerable source record (e.g. a subscription) as seen by
// the trigger batch scheduler. Processed entities are never handed off
// again; LastFailedAt drives the retry grace-window policy.
type Entity struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	UserID       string         `json:"user_id"`
	State        string         `json:"state"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	LastFailedAt *time.Time     `json:"last_failed_at,omitempty"`
}

// Processed reports whether the entity has already been handed off.
func (e *Entity) Processed() bool {
	return e.ProcessedAt != nil
}
