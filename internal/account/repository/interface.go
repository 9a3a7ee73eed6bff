package repository

import accountdomain "pixeltrace/internal/account/domain"

// AccountRepository defines the interface for account persistence.
type AccountRepository interface {
	// Upsert keyed on ExternalID. An existing account found by email but
	// lacking an external id is merged (the external id is attached)
	// rather than duplicated.
	Upsert(account *accountdomain.Account) (*accountdomain.Account, error)
	// FindByExternalID returns (nil, nil) when no account exists.
	FindByExternalID(externalID string) (*accountdomain.Account, error)
	// FindByID returns (nil, nil) when no account exists.
	FindByID(id string) (*accountdomain.Account, error)
}
