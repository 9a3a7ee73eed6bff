package repository

import trackdomain "pixeltrace/internal/track/domain"

// Scope narrows a read or bulk delete to one of the query regimes the
// resolver supports. Zero-value fields are ignored.
type Scope struct {
	OwnerID        string
	SenderIdentity string
	IDs            []string
	// UnownedOnly restricts sender-identity queries to unclaimed items
	// so a broad anonymous listing never surfaces claimed records.
	UnownedOnly bool
}

// TrackRepository defines the interface for tracked item persistence.
// Batch operations are transactional: their read-then-write ownership
// checks rely on the store's isolation, not application locks.
type TrackRepository interface {
	// FindPage returns one page of items matching the scope, newest
	// first, with open events preloaded newest-first.
	FindPage(scope Scope, offset, limit int) ([]trackdomain.TrackedItem, int64, error)
	// FindByIDs returns all existing items among ids, events preloaded.
	FindByIDs(ids []string) ([]trackdomain.TrackedItem, error)

	// LatestOpenEvent returns the most recent event for the item, or
	// (nil, nil) when none exists.
	LatestOpenEvent(trackID string) (*trackdomain.OpenEvent, error)
	// EnsureItem returns the item, lazily materializing an unclaimed
	// placeholder when the track id was never registered.
	EnsureItem(trackID string) (*trackdomain.TrackedItem, error)
	CreateOpenEvent(event *trackdomain.OpenEvent) error

	// DeleteByIDs deletes the given items and their events unless any
	// of them is owned by an account other than callerAccountID, in
	// which case nothing is deleted and foreign > 0 is returned.
	// Unowned items are deletable by anyone holding their ids.
	DeleteByIDs(ids []string, callerAccountID string, senderIdentity string) (deleted int64, foreign int64, err error)
	// DeleteByScope resolves target ids under the scope, then deletes
	// events and items in one transaction.
	DeleteByScope(scope Scope) (int64, error)

	// LinkBatch upserts items under accountID. If any item in the batch
	// is already owned by a different account the whole batch is
	// refused and conflicts > 0 is returned with nothing written.
	LinkBatch(accountID string, items []trackdomain.TrackedItem) (conflicts int64, err error)
	// CountOwnedByOther counts items among ids whose owner is set and
	// differs from accountID. An empty accountID matches no owner, so
	// every claimed item counts.
	CountOwnedByOther(ids []string, accountID string) (int64, error)
}
