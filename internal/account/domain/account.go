package domain

import "time"

// Account is an authenticated cloud identity. ExternalID is the stable
// subject from the external token verifier; Email is the contact address
// shown to the user.
type Account struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ExternalID string    `json:"external_id" gorm:"uniqueIndex;not null"`
	Email      string    `json:"email" gorm:"uniqueIndex;not null"`
	Name       string    `json:"name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
