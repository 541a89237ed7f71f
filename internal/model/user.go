package model

import "time"

// User is an exam taker. LastFailedAt anchors the retake cooldown applied by
// the policy layer above the session engine.
type User struct {
	ID           int64      `json:"id"`
	ExternalID   int64      `json:"external_id"`
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	Username     *string    `json:"username,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	LastFailedAt *time.Time `json:"last_failed_at,omitempty"`
}

// RegisterUserRequest upserts a user by external id, refreshing profile
// fields and the last-seen timestamp.
type RegisterUserRequest struct {
	ExternalID int64   `json:"external_id" binding:"required,min=1"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Username   *string `json:"username"`
}
