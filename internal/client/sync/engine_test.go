package sync

import (
	"path/filepath"
	"testing"
	"time"

	"pixeltrace/internal/client/localstore"
	"pixeltrace/internal/client/remote"
	trackdto "pixeltrace/internal/track/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote serves canned server views and records calls.
type fakeRemote struct {
	ownerItems  []trackdto.ItemView
	statusItems map[string]trackdto.ItemView

	ownerErr  error
	statusErr error
	deleteErr error

	deleteCalls [][]string
}

func (f *fakeRemote) FetchOwnerPage(ownerExternalID string, page, limit int) (*trackdto.ItemsResponse, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	return &trackdto.ItemsResponse{Items: f.ownerItems, Total: int64(len(f.ownerItems))}, nil
}

func (f *fakeRemote) SyncStatus(ids []string) (*trackdto.ItemsResponse, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	resp := &trackdto.ItemsResponse{}
	for _, id := range ids {
		if view, ok := f.statusItems[id]; ok {
			resp.Items = append(resp.Items, view)
		}
	}
	resp.Total = int64(len(resp.Items))
	return resp, nil
}

func (f *fakeRemote) Delete(ids []string, senderIdentity, ownerIdentity string) (int64, error) {
	f.deleteCalls = append(f.deleteCalls, ids)
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return int64(len(ids)), nil
}

func newTestEngine(t *testing.T, remoteAPI RemoteAPI) (*Engine, *localstore.Store) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, remoteAPI), store
}

func view(id string, subject string, openCount int) trackdto.ItemView {
	var subjectPtr *string
	if subject != "" {
		subjectPtr = &subject
	}
	return trackdto.ItemView{
		ID:        id,
		Subject:   subjectPtr,
		OpenCount: openCount,
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSync_EmptyShortCircuit(t *testing.T) {
	// Anonymous with nothing cached: no network call should be needed.
	engine, _ := newTestEngine(t, &fakeRemote{statusErr: assert.AnError})

	result, err := engine.Sync(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.False(t, result.Partial)
}

func TestSync_LocalOnlyKeptUnsynced(t *testing.T) {
	fake := &fakeRemote{statusItems: map[string]trackdto.ItemView{}}
	engine, store := newTestEngine(t, fake)

	require.NoError(t, store.Put(localstore.LocalRecord{
		ID: "local-1", Subject: "draft", CreatedAt: time.Now(),
	}))

	result, err := engine.Sync(nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.False(t, result.Records[0].Synced, "not yet round-tripped")
	assert.Zero(t, result.Records[0].OpenCount)
}

func TestSync_ServerOverlayAndMonotonicCount(t *testing.T) {
	fake := &fakeRemote{statusItems: map[string]trackdto.ItemView{
		"item-1": view("item-1", "real subject", 2),
	}}
	engine, store := newTestEngine(t, fake)

	// Local already saw 5 opens; a lagging server count of 2 must not
	// regress it.
	require.NoError(t, store.Put(localstore.LocalRecord{
		ID: "item-1", Subject: "optimistic", OpenCount: 5, CreatedAt: time.Now(),
	}))

	result, err := engine.Sync(nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 5, result.Records[0].OpenCount)
	assert.Equal(t, "real subject", result.Records[0].Subject)
	assert.True(t, result.Records[0].Synced)

	// And a higher server count wins.
	fake.statusItems["item-1"] = view("item-1", "real subject", 9)
	result, err = engine.Sync(nil)
	require.NoError(t, err)
	assert.Equal(t, 9, result.Records[0].OpenCount)
}

func TestSync_PlaceholderSubjectDoesNotOverwrite(t *testing.T) {
	lazy := view("item-1", "(untracked open)", 1)
	lazy.LazyCreated = true
	fake := &fakeRemote{statusItems: map[string]trackdto.ItemView{"item-1": lazy}}
	engine, store := newTestEngine(t, fake)

	require.NoError(t, store.Put(localstore.LocalRecord{
		ID: "item-1", Subject: "my real subject", CreatedAt: time.Now(),
	}))

	result, err := engine.Sync(nil)
	require.NoError(t, err)
	assert.Equal(t, "my real subject", result.Records[0].Subject)
	assert.Equal(t, 1, result.Records[0].OpenCount)
}

func TestSync_OwnerPageAdoptsServerOnlyItems(t *testing.T) {
	fake := &fakeRemote{
		ownerItems:  []trackdto.ItemView{view("cloud-1", "from other device", 1)},
		statusItems: map[string]trackdto.ItemView{},
	}
	engine, store := newTestEngine(t, fake)

	session := &Session{AccountID: "a1", ExternalID: "ext-1", Email: "alice@x"}
	result, err := engine.Sync(session)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "cloud-1", result.Records[0].ID)
	assert.Equal(t, "alice@x", result.Records[0].OwnerEmailHint)
	assert.True(t, result.Records[0].Synced)

	// Write-through: a cold start now sees the adopted record.
	cached, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "cloud-1", cached[0].ID)
}

func TestSync_Idempotent(t *testing.T) {
	fake := &fakeRemote{
		ownerItems: []trackdto.ItemView{view("cloud-1", "hello", 2)},
		statusItems: map[string]trackdto.ItemView{
			"local-1": view("local-1", "draft", 1),
		},
	}
	engine, store := newTestEngine(t, fake)
	require.NoError(t, store.Put(localstore.LocalRecord{
		ID: "local-1", Subject: "draft", CreatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}))

	session := &Session{AccountID: "a1", ExternalID: "ext-1", Email: "alice@x"}
	first, err := engine.Sync(session)
	require.NoError(t, err)
	second, err := engine.Sync(session)
	require.NoError(t, err)

	require.Equal(t, len(first.Records), len(second.Records))
	for i := range first.Records {
		assert.Equal(t, first.Records[i].ID, second.Records[i].ID)
		assert.Equal(t, first.Records[i].OpenCount, second.Records[i].OpenCount)
		assert.Equal(t, first.Records[i].Subject, second.Records[i].Subject)
	}
	assert.Equal(t, first.Stats, second.Stats)
}

func TestSync_FetchFailureDegrades(t *testing.T) {
	fake := &fakeRemote{
		ownerErr:    &remote.APIError{Status: 503, Message: "down"},
		statusItems: map[string]trackdto.ItemView{"local-1": view("local-1", "draft", 3)},
	}
	engine, store := newTestEngine(t, fake)
	require.NoError(t, store.Put(localstore.LocalRecord{
		ID: "local-1", CreatedAt: time.Now(),
	}))

	session := &Session{AccountID: "a1", ExternalID: "ext-1", Email: "alice@x"}
	result, err := engine.Sync(session)
	require.NoError(t, err, "partial failure is soft, not fatal")
	assert.True(t, result.Partial)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 3, result.Records[0].OpenCount, "status fetch still applied")
}

func TestSync_FlushesPendingDeletes(t *testing.T) {
	fake := &fakeRemote{statusItems: map[string]trackdto.ItemView{}}
	engine, store := newTestEngine(t, fake)

	require.NoError(t, store.EnqueueDelete([]string{"gone-1", "gone-2"}, "alice@x"))
	require.NoError(t, store.Put(localstore.LocalRecord{ID: "keep", CreatedAt: time.Now()}))

	_, err := engine.Sync(nil)
	require.NoError(t, err)

	require.Len(t, fake.deleteCalls, 1)
	assert.Equal(t, []string{"gone-1", "gone-2"}, fake.deleteCalls[0])

	queue, err := store.PendingDeletes()
	require.NoError(t, err)
	assert.Empty(t, queue, "acknowledged deletes leave the queue")
}

func TestSync_PendingDeleteRequeuedOnTransientFailure(t *testing.T) {
	fake := &fakeRemote{
		statusItems: map[string]trackdto.ItemView{},
		deleteErr:   &remote.APIError{Status: 502, Message: "bad gateway"},
	}
	engine, store := newTestEngine(t, fake)
	require.NoError(t, store.EnqueueDelete([]string{"gone-1"}, ""))
	require.NoError(t, store.Put(localstore.LocalRecord{ID: "keep", CreatedAt: time.Now()}))

	_, err := engine.Sync(nil)
	require.NoError(t, err)

	queue, err := store.PendingDeletes()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].Attempts)
}

func TestResolveIdentity_Fallbacks(t *testing.T) {
	engine, store := newTestEngine(t, &fakeRemote{})

	// Session wins.
	assert.Equal(t, "alice@x", engine.resolveIdentity(&Session{Email: "alice@x"}, nil))

	// Then the remembered current-user hint.
	require.NoError(t, store.SetMeta(localstore.MetaCurrentUser, "bob@y"))
	assert.Equal(t, "bob@y", engine.resolveIdentity(nil, nil))

	// Then the majority owner hint among local records.
	require.NoError(t, store.DeleteMeta(localstore.MetaCurrentUser))
	records := []localstore.LocalRecord{
		{OwnerEmailHint: "carol@z"},
		{OwnerEmailHint: "carol@z"},
		{OwnerEmailHint: "dave@w"},
	}
	assert.Equal(t, "carol@z", engine.resolveIdentity(nil, records))
}
