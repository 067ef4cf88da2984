package models

import "time"

// Member represents a registered member of the organisation.
type Member struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role,omitempty"`
	CanModerate bool      `json:"can_moderate"`
	APIKeyHash  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
