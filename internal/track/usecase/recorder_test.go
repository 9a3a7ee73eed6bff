package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(repo *fakeTrackRepo) (*recorder, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &recorder{
		trackRepo:      repo,
		debounceWindow: 10 * time.Second,
		now:            func() time.Time { return now },
	}
	return r, &now
}

func TestRecordOpen_LazyMaterialization(t *testing.T) {
	repo := newFakeTrackRepo()
	rec, _ := newTestRecorder(repo)

	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "")

	item, ok := repo.items["tr-1"]
	require.True(t, ok, "unregistered track id should be materialized")
	assert.True(t, item.LazyCreated)
	assert.Nil(t, item.OwnerID)
	require.NotNil(t, item.Subject)
	assert.Equal(t, "(untracked open)", *item.Subject)

	assert.Len(t, repo.eventsFor("tr-1"), 1)
}

func TestRecordOpen_DebounceWithinWindow(t *testing.T) {
	repo := newFakeTrackRepo()
	rec, now := newTestRecorder(repo)

	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "")
	*now = now.Add(5 * time.Second)
	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "")

	assert.Len(t, repo.eventsFor("tr-1"), 1, "same actor within window collapses")
}

func TestRecordOpen_OutsideWindowPersistsBoth(t *testing.T) {
	repo := newFakeTrackRepo()
	rec, now := newTestRecorder(repo)

	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "")
	*now = now.Add(11 * time.Second)
	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "")

	assert.Len(t, repo.eventsFor("tr-1"), 2)
}

func TestRecordOpen_DifferentActorWithinWindow(t *testing.T) {
	repo := newFakeTrackRepo()
	rec, now := newTestRecorder(repo)

	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "")
	*now = now.Add(2 * time.Second)
	rec.RecordOpen("tr-1", "5.6.7.8", "Mozilla/5.0", "")

	assert.Len(t, repo.eventsFor("tr-1"), 2, "a different ip is a different actor")
}

func TestRecordOpen_QuotedNeverPersists(t *testing.T) {
	repo := newFakeTrackRepo()
	rec, _ := newTestRecorder(repo)

	rec.RecordOpen("tr-1", "1.2.3.4", "Mozilla/5.0", "1")

	assert.Empty(t, repo.items, "quoted-content pixel must not materialize an item")
	assert.Empty(t, repo.events)

	// Also suppressed on an existing item with history.
	rec.RecordOpen("tr-2", "1.2.3.4", "Mozilla/5.0", "")
	rec.RecordOpen("tr-2", "9.9.9.9", "curl/8.0", "1")
	assert.Len(t, repo.eventsFor("tr-2"), 1)
}

func TestRecordOpen_EmptyTrackID(t *testing.T) {
	repo := newFakeTrackRepo()
	rec, _ := newTestRecorder(repo)

	rec.RecordOpen("", "1.2.3.4", "Mozilla/5.0", "")

	assert.Empty(t, repo.items)
}
