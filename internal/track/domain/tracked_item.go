package domain

import (
	"time"

	"pixeltrace/pkg/uaparse"
)

// LazySubject marks items materialized by the recorder when an open
// arrived for a track id that was never registered.
const LazySubject = "(untracked open)"

// TrackedItem is one sent-email tracking record. OwnerID is null while
// the record is unclaimed; SenderIdentity scopes incognito-mode queries.
// Metadata columns may hold fieldcrypt ciphertext at rest.
type TrackedItem struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	OwnerID        *string   `json:"owner_id,omitempty" gorm:"index"`
	SenderIdentity string    `json:"sender_identity,omitempty" gorm:"index"`
	Subject        *string   `json:"subject,omitempty"`
	Recipient      *string   `json:"recipient,omitempty"`
	CC             *string   `json:"cc,omitempty"`
	BCC            *string   `json:"bcc,omitempty"`
	BodyPreview    *string   `json:"body_preview,omitempty"`
	LazyCreated    bool      `json:"lazy_created,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	OpenEvents []OpenEvent `json:"open_events" gorm:"foreignKey:TrackedItemID;constraint:OnDelete:CASCADE"`
}

// OwnedBy reports whether the item is claimed by the given account.
func (t *TrackedItem) OwnedBy(accountID string) bool {
	return t.OwnerID != nil && *t.OwnerID == accountID
}

// Claimed reports whether any account owns the item.
func (t *TrackedItem) Claimed() bool {
	return t.OwnerID != nil && *t.OwnerID != ""
}

// OpenEvent is one recorded pixel fetch. Events are created only by the
// recorder, never mutated, and deleted only as a cascade of their item.
type OpenEvent struct {
	ID            string                `json:"id" gorm:"primaryKey"`
	TrackedItemID string                `json:"tracked_item_id" gorm:"index;not null"`
	OpenedAt      time.Time             `json:"opened_at" gorm:"index"`
	SourceIP      string                `json:"source_ip"`
	RawUserAgent  string                `json:"raw_user_agent"`
	Device        uaparse.DeviceSummary `json:"device" gorm:"embedded;embeddedPrefix:device_"`
	Location      string                `json:"location"`
}
