package tracking

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// EventRecorder persists a classified event and applies best-effort aggregate
// maintenance. Every step logs and swallows its own failures; nothing here
// can reach back to the HTTP response, which has already been sent by the
// time a recorder runs.
type EventRecorder struct {
	store   EventStore
	dedup   *DedupCache // nil when Redis is not configured
	realCut float64     // prefetch events below this confidence still count as real
}

// NewEventRecorder creates a recorder. dedup may be nil; realCut <= 0
// defaults to 0.7.
func NewEventRecorder(store EventStore, dedup *DedupCache, realCut float64) *EventRecorder {
	if realCut <= 0 {
		realCut = 0.7
	}
	return &EventRecorder{store: store, dedup: dedup, realCut: realCut}
}

// Record runs the dedup probe, inserts the event row, and issues the
// aggregate updates. The probe and the writes are deliberately not wrapped in
// a transaction: two simultaneous first-hits can both observe "none exists"
// and both count as unique. That race is accepted; the alternative is an
// admission-control chokepoint on the hot tracking path.
func (r *EventRecorder) Record(ctx context.Context, ev *TrackingEvent) {
	qualifies := !ev.IsPrefetch || ev.Confidence < r.realCut

	first := false
	switch ev.EventType {
	case EventOpened:
		// Only a non-prefetch open participates in uniqueness; prefetch
		// opens are retained for audit without touching the dedup key.
		if qualifies {
			first = r.firstOpen(ctx, ev)
		}
	case EventClicked:
		first = r.firstClick(ctx, ev)
	}

	if err := r.store.InsertEvent(ctx, ev); err != nil {
		logger.Error("tracking: insert event failed",
			"event_type", string(ev.EventType),
			"campaign_id", ev.CampaignID.String(),
			"error", err.Error())
	}

	if ev.EventType == EventClicked && ev.LinkURL != "" {
		uniqueDelta := 0
		if first {
			uniqueDelta = 1
		}
		if err := r.store.UpsertLinkSummary(ctx, ev.CampaignID, ev.LinkURL, uniqueDelta, ev.EventAt); err != nil {
			logger.Error("tracking: link summary upsert failed",
				"campaign_id", ev.CampaignID.String(),
				"link_domain", ev.LinkDomain,
				"error", err.Error())
		}
	}

	if qualifies {
		countDelta := 0
		if first {
			countDelta = 1
		}
		if err := r.store.IncrementContactEngagement(ctx, ev.ContactID, ev.EventType, countDelta, ev.EventAt); err != nil {
			logger.Error("tracking: contact engagement update failed",
				"contact_id", ev.ContactID.String(),
				"error", err.Error())
		}
	}
}

// firstOpen reports whether this is the first qualifying open for the
// (campaign, contact) pair. The Redis key is authoritative as a negative
// ("seen before"); a fresh key is confirmed against storage so that key
// expiry or a Redis restart cannot inflate unique counts.
func (r *EventRecorder) firstOpen(ctx context.Context, ev *TrackingEvent) bool {
	if r.dedup != nil {
		fresh, err := r.dedup.FirstSeen(ctx, OpenKey(ev.CampaignID, ev.ContactID))
		if err != nil {
			logger.Warn("tracking: dedup cache unavailable, falling back to storage probe", "error", err.Error())
		} else if !fresh {
			return false
		}
	}
	n, err := r.store.CountRealOpens(ctx, ev.CampaignID, ev.ContactID)
	if err != nil {
		logger.Error("tracking: open dedup probe failed",
			"campaign_id", ev.CampaignID.String(),
			"error", err.Error())
		return false
	}
	return n == 0
}

func (r *EventRecorder) firstClick(ctx context.Context, ev *TrackingEvent) bool {
	if r.dedup != nil {
		fresh, err := r.dedup.FirstSeen(ctx, ClickKey(ev.CampaignID, ev.ContactID, ev.LinkURL))
		if err != nil {
			logger.Warn("tracking: dedup cache unavailable, falling back to storage probe", "error", err.Error())
		} else if !fresh {
			return false
		}
	}
	n, err := r.store.CountClicks(ctx, ev.CampaignID, ev.ContactID, ev.LinkURL)
	if err != nil {
		logger.Error("tracking: click dedup probe failed",
			"campaign_id", ev.CampaignID.String(),
			"error", err.Error())
		return false
	}
	return n == 0
}
