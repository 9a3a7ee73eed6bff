// Package sync reconciles the device-local cache with the server's
// authoritative view of tracked items.
package sync

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"pixeltrace/internal/client/localstore"
	"pixeltrace/internal/client/remote"
	trackdomain "pixeltrace/internal/track/domain"
	trackdto "pixeltrace/internal/track/dto"
)

// RemoteAPI is the slice of the resolver API a sync cycle needs.
type RemoteAPI interface {
	FetchOwnerPage(ownerExternalID string, page, limit int) (*trackdto.ItemsResponse, error)
	SyncStatus(ids []string) (*trackdto.ItemsResponse, error)
	Delete(ids []string, senderIdentity, ownerIdentity string) (int64, error)
}

// Session describes the authenticated account, nil when anonymous.
type Session struct {
	AccountID  string
	ExternalID string
	Email      string
}

type Stats struct {
	Tracked int     `json:"tracked"`
	Opened  int     `json:"opened"`
	Rate    float64 `json:"rate"`
}

// Result is one cycle's merged view. Partial is the soft-error state:
// some fetches failed and the view is best-available, not complete.
type Result struct {
	Records  []localstore.LocalRecord
	Stats    Stats
	Identity string
	Partial  bool
}

const defaultChunkSize = 100

// Engine runs sync cycles. Cycles are serialized: a trigger that
// arrives mid-cycle coalesces into at most one follow-up run, and a
// cycle that lost the generation race skips its write-back.
type Engine struct {
	store     *localstore.Store
	remote    RemoteAPI
	chunkSize int

	runMu      sync.Mutex
	generation atomic.Uint64

	triggerMu sync.Mutex
	running   bool
	pending   bool
}

func NewEngine(store *localstore.Store, remoteAPI RemoteAPI) *Engine {
	return &Engine{
		store:     store,
		remote:    remoteAPI,
		chunkSize: defaultChunkSize,
	}
}

// Sync runs one full cycle and returns the merged view.
func (e *Engine) Sync(session *Session) (*Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	gen := e.generation.Add(1)

	// Pending deletes flush before any fetch so a record deleted on a
	// previous cycle cannot reappear in this one.
	e.flushPendingDeletes(session)

	local, err := e.store.GetAll()
	if err != nil {
		return nil, err
	}

	identity := e.resolveIdentity(session, local)

	// Nothing to fetch and nobody to fetch for.
	if session == nil && len(local) == 0 {
		return &Result{Records: []localstore.LocalRecord{}, Identity: identity}, nil
	}

	serverViews, partial := e.fanOutFetch(session, local)

	merged := e.merge(local, serverViews, identity)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	// A newer cycle started while we fetched; its write-back wins.
	if e.generation.Load() == gen {
		if err := e.store.PutAll(merged); err != nil {
			log.Printf("[WARN] sync: write-through failed: %v", err)
			partial = true
		}
	}

	stats := Stats{Tracked: len(merged)}
	for _, rec := range merged {
		if rec.OpenCount > 0 {
			stats.Opened++
		}
	}
	if stats.Tracked > 0 {
		stats.Rate = float64(stats.Opened) / float64(stats.Tracked)
	}

	return &Result{Records: merged, Stats: stats, Identity: identity, Partial: partial}, nil
}

// Trigger schedules an asynchronous cycle. Triggers during a running
// cycle collapse into a single follow-up run.
func (e *Engine) Trigger(session *Session, done func(*Result, error)) {
	e.triggerMu.Lock()
	if e.running {
		e.pending = true
		e.triggerMu.Unlock()
		return
	}
	e.running = true
	e.triggerMu.Unlock()

	go func() {
		for {
			result, err := e.Sync(session)
			if done != nil {
				done(result, err)
			}

			e.triggerMu.Lock()
			if !e.pending {
				e.running = false
				e.triggerMu.Unlock()
				return
			}
			e.pending = false
			e.triggerMu.Unlock()
		}
	}()
}

func (e *Engine) flushPendingDeletes(session *Session) {
	queue, err := e.store.PendingDeletes()
	if err != nil {
		log.Printf("[WARN] sync: pending delete queue unreadable: %v", err)
		return
	}

	for _, pd := range queue {
		owner := ""
		if session != nil {
			owner = session.ExternalID
		}
		_, err := e.remote.Delete(pd.IDs, pd.SenderIdentity, owner)
		if err != nil {
			// Transient or not, the entry stays queued with the error
			// recorded; an ACL rejection may clear once the owner logs in.
			_ = e.store.FailPending(pd.ID, err.Error())
			if !remote.IsTransient(err) {
				log.Printf("[WARN] sync: queued delete rejected: %v", err)
			}
			continue
		}
		_ = e.store.ResolvePending(pd.ID)
	}
}

// resolveIdentity picks the active identity: the session's email, a
// remembered current-user hint, then the most common owner hint among
// local records. The last fallback covers a browser restart that lost
// the explicit hint while the records kept theirs.
func (e *Engine) resolveIdentity(session *Session, local []localstore.LocalRecord) string {
	if session != nil && session.Email != "" {
		return session.Email
	}

	if hint, err := e.store.GetMeta(localstore.MetaCurrentUser); err == nil && hint != "" {
		return hint
	}

	counts := make(map[string]int)
	for _, rec := range local {
		if rec.OwnerEmailHint != "" {
			counts[rec.OwnerEmailHint]++
		}
	}
	best := ""
	for email, n := range counts {
		if n > counts[best] || (n == counts[best] && (best == "" || email < best)) {
			best = email
		}
	}
	return best
}

// fanOutFetch gathers the owner-scoped page (when authenticated) and a
// status sync for the exact local id set in bounded chunks. The id sync
// runs regardless of authentication so open counts stay current even
// for items the server lazily materialized or has not attributed yet.
func (e *Engine) fanOutFetch(session *Session, local []localstore.LocalRecord) (map[string]trackdto.ItemView, bool) {
	views := make(map[string]trackdto.ItemView)
	partial := false

	absorb := func(resp *trackdto.ItemsResponse) {
		for _, item := range resp.Items {
			existing, seen := views[item.ID]
			if seen && richer(existing, item) {
				continue
			}
			views[item.ID] = item
		}
	}

	if session != nil {
		resp, err := e.remote.FetchOwnerPage(session.ExternalID, 1, 1000)
		if err != nil {
			log.Printf("[WARN] sync: owner page fetch failed: %v", err)
			partial = true
		} else {
			absorb(resp)
		}
	}

	ids := make([]string, 0, len(local))
	for _, rec := range local {
		ids = append(ids, rec.ID)
	}
	for start := 0; start < len(ids); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		resp, err := e.remote.SyncStatus(ids[start:end])
		if err != nil {
			log.Printf("[WARN] sync: status fetch failed for %d ids: %v", end-start, err)
			partial = true
			continue
		}
		absorb(resp)
	}

	return views, partial
}

// richer prefers the variant carrying real metadata over a lazily
// materialized placeholder.
func richer(a, b trackdto.ItemView) bool {
	return !placeholder(a) && placeholder(b)
}

func placeholder(v trackdto.ItemView) bool {
	if v.LazyCreated {
		return true
	}
	return v.Subject != nil && *v.Subject == trackdomain.LazySubject
}

// merge folds the server views over the local records. Local records
// absent from the server have not round-tripped yet and are kept as-is;
// server items unknown locally are adopted into the cache.
func (e *Engine) merge(local []localstore.LocalRecord, serverViews map[string]trackdto.ItemView, identity string) []localstore.LocalRecord {
	merged := make([]localstore.LocalRecord, 0, len(local))
	seen := make(map[string]bool, len(local))

	for _, rec := range local {
		seen[rec.ID] = true
		view, ok := serverViews[rec.ID]
		if !ok {
			merged = append(merged, rec)
			continue
		}

		// Server overlay onto the locally-known record. A stale server
		// count during propagation lag must never regress what the
		// user already saw.
		if view.OpenCount > rec.OpenCount {
			rec.OpenCount = view.OpenCount
		}
		if view.LastOpenedAt != nil && (rec.LastOpenedAt == nil || view.LastOpenedAt.After(*rec.LastOpenedAt)) {
			rec.LastOpenedAt = view.LastOpenedAt
		}
		if !placeholder(view) {
			if view.Subject != nil {
				rec.Subject = *view.Subject
			}
			if view.Recipient != nil {
				rec.Recipient = *view.Recipient
			}
		}
		if view.SenderIdentity != "" {
			rec.SenderIdentity = view.SenderIdentity
		}
		rec.Synced = true
		merged = append(merged, rec)
	}

	for id, view := range serverViews {
		if seen[id] {
			continue
		}
		rec := localstore.LocalRecord{
			ID:             id,
			SenderIdentity: view.SenderIdentity,
			OwnerEmailHint: identity,
			CreatedAt:      view.CreatedAt,
			OpenCount:      view.OpenCount,
			LastOpenedAt:   view.LastOpenedAt,
			Synced:         true,
		}
		if view.Subject != nil {
			rec.Subject = *view.Subject
		}
		if view.Recipient != nil {
			rec.Recipient = *view.Recipient
		}
		merged = append(merged, rec)
	}

	return merged
}
