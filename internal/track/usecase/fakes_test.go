package usecase

import (
	"sort"
	"time"

	accountdomain "pixeltrace/internal/account/domain"
	accountdto "pixeltrace/internal/account/dto"
	trackdomain "pixeltrace/internal/track/domain"
	"pixeltrace/internal/track/repository"
)

// fakeTrackRepo is an in-memory TrackRepository for usecase tests.
type fakeTrackRepo struct {
	items  map[string]*trackdomain.TrackedItem
	events []trackdomain.OpenEvent
}

func newFakeTrackRepo() *fakeTrackRepo {
	return &fakeTrackRepo{items: make(map[string]*trackdomain.TrackedItem)}
}

func (f *fakeTrackRepo) matches(item *trackdomain.TrackedItem, scope repository.Scope) bool {
	if scope.OwnerID != "" && (item.OwnerID == nil || *item.OwnerID != scope.OwnerID) {
		return false
	}
	if len(scope.IDs) > 0 {
		found := false
		for _, id := range scope.IDs {
			if id == item.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if scope.SenderIdentity != "" && item.SenderIdentity != scope.SenderIdentity {
		return false
	}
	if scope.UnownedOnly && item.Claimed() {
		return false
	}
	return true
}

func (f *fakeTrackRepo) eventsFor(id string) []trackdomain.OpenEvent {
	var out []trackdomain.OpenEvent
	for _, evt := range f.events {
		if evt.TrackedItemID == id {
			out = append(out, evt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out
}

func (f *fakeTrackRepo) FindPage(scope repository.Scope, offset, limit int) ([]trackdomain.TrackedItem, int64, error) {
	var matched []trackdomain.TrackedItem
	for _, item := range f.items {
		if f.matches(item, scope) {
			copied := *item
			copied.OpenEvents = f.eventsFor(item.ID)
			matched = append(matched, copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (f *fakeTrackRepo) FindByIDs(ids []string) ([]trackdomain.TrackedItem, error) {
	items, _, err := f.FindPage(repository.Scope{IDs: ids}, 0, len(ids))
	return items, err
}

func (f *fakeTrackRepo) LatestOpenEvent(trackID string) (*trackdomain.OpenEvent, error) {
	events := f.eventsFor(trackID)
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (f *fakeTrackRepo) EnsureItem(trackID string) (*trackdomain.TrackedItem, error) {
	if item, ok := f.items[trackID]; ok {
		return item, nil
	}
	subject := trackdomain.LazySubject
	item := &trackdomain.TrackedItem{
		ID:          trackID,
		Subject:     &subject,
		LazyCreated: true,
		CreatedAt:   time.Now(),
	}
	f.items[trackID] = item
	return item, nil
}

func (f *fakeTrackRepo) CreateOpenEvent(event *trackdomain.OpenEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeTrackRepo) DeleteByIDs(ids []string, callerAccountID string, senderIdentity string) (int64, int64, error) {
	var foreign int64
	var targets []string
	for _, id := range ids {
		item, ok := f.items[id]
		if !ok {
			continue
		}
		if senderIdentity != "" && item.SenderIdentity != senderIdentity {
			continue
		}
		if item.Claimed() && (callerAccountID == "" || *item.OwnerID != callerAccountID) {
			foreign++
			continue
		}
		targets = append(targets, id)
	}
	if foreign > 0 {
		return 0, foreign, nil
	}

	for _, id := range targets {
		delete(f.items, id)
		kept := f.events[:0]
		for _, evt := range f.events {
			if evt.TrackedItemID != id {
				kept = append(kept, evt)
			}
		}
		f.events = kept
	}
	return int64(len(targets)), 0, nil
}

func (f *fakeTrackRepo) DeleteByScope(scope repository.Scope) (int64, error) {
	var targets []string
	for _, item := range f.items {
		if f.matches(item, scope) {
			targets = append(targets, item.ID)
		}
	}
	deleted, _, err := f.DeleteByIDs(targets, scope.OwnerID, "")
	return deleted, err
}

func (f *fakeTrackRepo) LinkBatch(accountID string, items []trackdomain.TrackedItem) (int64, error) {
	var conflicts int64
	for _, item := range items {
		if existing, ok := f.items[item.ID]; ok && existing.Claimed() && *existing.OwnerID != accountID {
			conflicts++
		}
	}
	if conflicts > 0 {
		return conflicts, nil
	}

	for i := range items {
		item := items[i]
		item.OwnerID = &accountID
		if existing, ok := f.items[item.ID]; ok {
			existing.OwnerID = &accountID
			existing.LazyCreated = false
			if item.SenderIdentity != "" {
				existing.SenderIdentity = item.SenderIdentity
			}
			if item.Subject != nil {
				existing.Subject = item.Subject
			}
			if item.Recipient != nil {
				existing.Recipient = item.Recipient
			}
			continue
		}
		item.CreatedAt = time.Now()
		f.items[item.ID] = &item
	}
	return 0, nil
}

func (f *fakeTrackRepo) CountOwnedByOther(ids []string, accountID string) (int64, error) {
	var count int64
	for _, id := range ids {
		item, ok := f.items[id]
		if !ok || !item.Claimed() {
			continue
		}
		if accountID == "" || *item.OwnerID != accountID {
			count++
		}
	}
	return count, nil
}

// fakeAuth resolves external ids from a fixed account set.
type fakeAuth struct {
	accounts map[string]*accountdomain.Account // keyed by external id
}

func (f *fakeAuth) SignIn(req *accountdto.SignInRequest) (*accountdto.TokenResponse, error) {
	return nil, nil
}

func (f *fakeAuth) ValidateToken(tokenString string) (*accountdomain.Account, error) {
	return nil, nil
}

func (f *fakeAuth) ResolveExternalID(externalID string) (*accountdomain.Account, error) {
	return f.accounts[externalID], nil
}
