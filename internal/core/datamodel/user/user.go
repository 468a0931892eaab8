package user

import "time"

// User is the persisted shape of an account in the users collection.
type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Role            string          `json:"role"`
	Department      string          `json:"department"`
	Active          bool            `json:"active"`
	PINHash         string          `json:"pinHash"`
	PINLookup       string          `json:"pinLookup,omitempty"`
	Permissions     map[string]bool `json:"permissions"`
	LastLogin       *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	PINResetHistory []PINReset      `json:"pinResetHistory,omitempty"`
}

type PINReset struct {
	ResetBy     string    `json:"resetBy"`
	ResetByName string    `json:"resetByName"`
	ResetAt     time.Time `json:"resetAt"`
	Reason      string    `json:"reason,omitempty"`
}
