package usecase

import (
	"log"
	"time"

	trackdomain "pixeltrace/internal/track/domain"
	"pixeltrace/internal/track/repository"
	"pixeltrace/pkg/geoip"
	"pixeltrace/pkg/uaparse"

	"github.com/google/uuid"
)

// quotedPixelFlag marks a pixel rendered from quoted/historical thread
// content. Those fetches are not genuine opens.
const quotedPixelFlag = "1"

// recorder implements Recorder interface
type recorder struct {
	trackRepo      repository.TrackRepository
	geo            *geoip.Resolver
	debounceWindow time.Duration
	now            func() time.Time
}

// NewRecorder creates a new instance of recorder. geo may be nil; all
// locations then resolve to unknown.
func NewRecorder(trackRepo repository.TrackRepository, geo *geoip.Resolver, debounceWindow time.Duration) Recorder {
	return &recorder{
		trackRepo:      trackRepo,
		geo:            geo,
		debounceWindow: debounceWindow,
		now:            time.Now,
	}
}

// RecordOpen persists one open event for trackID unless the fetch is a
// quoted-content render or a duplicate within the debounce window. An
// unknown trackID is lazily materialized as an unclaimed placeholder.
// Internal failures are logged and swallowed.
func (r *recorder) RecordOpen(trackID, sourceIP, userAgent, quoted string) {
	if trackID == "" {
		return
	}
	if quoted == quotedPixelFlag {
		return
	}

	latest, err := r.trackRepo.LatestOpenEvent(trackID)
	if err != nil {
		log.Printf("[ERROR] recorder: latest event lookup for %s: %v", trackID, err)
		return
	}

	// Same actor re-fetching within the window is a refresh, not a new
	// open. Two near-simultaneous fetches may both pass this check;
	// bounded over-count is accepted over locking the hot path.
	if latest != nil &&
		latest.SourceIP == sourceIP &&
		latest.RawUserAgent == userAgent &&
		r.now().Sub(latest.OpenedAt) < r.debounceWindow {
		return
	}

	if _, err := r.trackRepo.EnsureItem(trackID); err != nil {
		log.Printf("[ERROR] recorder: ensure item %s: %v", trackID, err)
		return
	}

	event := &trackdomain.OpenEvent{
		ID:            uuid.New().String(),
		TrackedItemID: trackID,
		OpenedAt:      r.now(),
		SourceIP:      sourceIP,
		RawUserAgent:  userAgent,
		Device:        uaparse.Parse(userAgent),
		Location:      r.geo.Lookup(sourceIP),
	}
	if err := r.trackRepo.CreateOpenEvent(event); err != nil {
		log.Printf("[ERROR] recorder: persist event for %s: %v", trackID, err)
	}
}
