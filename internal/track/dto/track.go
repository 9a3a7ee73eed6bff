package dto

import (
	"time"

	trackdomain "pixeltrace/internal/track/domain"
	"pixeltrace/pkg/fieldcrypt"
)

// MaxLinkBatch caps a single batch-link call.
const MaxLinkBatch = 1000

// ReadQuery is the resolver read filter set.
type ReadQuery struct {
	Page           int
	Limit          int
	SenderIdentity string
	OwnerIdentity  string // external identity token, must match the caller
	ExplicitIDs    []string
}

// DeleteQuery is the resolver delete filter set; at least one of the
// three must be present.
type DeleteQuery struct {
	SenderIdentity string
	OwnerIdentity  string
	ExplicitIDs    []string
}

type LinkItem struct {
	ID             string  `json:"id" binding:"required"`
	Subject        *string `json:"subject,omitempty"`
	Recipient      *string `json:"recipient,omitempty"`
	CC             *string `json:"cc,omitempty"`
	BCC            *string `json:"bcc,omitempty"`
	BodyPreview    *string `json:"body_preview,omitempty"`
	SenderIdentity string  `json:"sender_identity,omitempty"`
}

type LinkRequest struct {
	AccountID string     `json:"account_id" binding:"required"`
	Items     []LinkItem `json:"items" binding:"required"`
}

type ConflictCheckRequest struct {
	IDs                     []string `json:"ids" binding:"required"`
	IntendedOwnerExternalID string   `json:"intended_owner_external_id" binding:"required"`
}

type ConflictCheckResponse struct {
	Conflict bool `json:"conflict"`
}

type OpenEventView struct {
	OpenedAt time.Time `json:"opened_at"`
	Device   string    `json:"device"`
	Location string    `json:"location"`
}

// ItemView is the wire projection of a tracked item. Anonymous callers
// receive the reduced form: body preview, cc and bcc are withheld.
type ItemView struct {
	ID             string          `json:"id"`
	OwnerID        *string         `json:"owner_id,omitempty"`
	SenderIdentity string          `json:"sender_identity,omitempty"`
	Subject        *string         `json:"subject,omitempty"`
	Recipient      *string         `json:"recipient,omitempty"`
	CC             *string         `json:"cc,omitempty"`
	BCC            *string         `json:"bcc,omitempty"`
	BodyPreview    *string         `json:"body_preview,omitempty"`
	LazyCreated    bool            `json:"lazy_created,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	OpenCount      int             `json:"open_count"`
	LastOpenedAt   *time.Time      `json:"last_opened_at,omitempty"`
	OpenEvents     []OpenEventView `json:"open_events,omitempty"`
}

type ItemsResponse struct {
	Items []ItemView `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

type DeleteResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// NewItemView projects a domain item, decrypting metadata on the way
// out. full=false yields the anonymous reduced field set.
func NewItemView(item *trackdomain.TrackedItem, crypter *fieldcrypt.Crypter, full bool) ItemView {
	view := ItemView{
		ID:             item.ID,
		OwnerID:        item.OwnerID,
		SenderIdentity: item.SenderIdentity,
		Subject:        crypter.DecryptPtr(item.Subject),
		Recipient:      crypter.DecryptPtr(item.Recipient),
		LazyCreated:    item.LazyCreated,
		CreatedAt:      item.CreatedAt,
		OpenCount:      len(item.OpenEvents),
	}

	if full {
		view.CC = crypter.DecryptPtr(item.CC)
		view.BCC = crypter.DecryptPtr(item.BCC)
		view.BodyPreview = crypter.DecryptPtr(item.BodyPreview)
	}

	for _, event := range item.OpenEvents {
		view.OpenEvents = append(view.OpenEvents, OpenEventView{
			OpenedAt: event.OpenedAt,
			Device:   event.Device.Label(),
			Location: event.Location,
		})
	}
	if len(item.OpenEvents) > 0 {
		// Events are loaded newest-first.
		last := item.OpenEvents[0].OpenedAt
		view.LastOpenedAt = &last
	}

	return view
}
