package tracking

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// TimingSource supplies the send-to-open intervals the scorer needs.
// Store implements it; lookups are best-effort and a failure only means the
// timing signals go unscored.
type TimingSource interface {
	CampaignSentAt(ctx context.Context, campaignID uuid.UUID) (*time.Time, error)
	LastEventAt(ctx context.Context, campaignID, contactID uuid.UUID) (*time.Time, error)
}

// Pipeline turns a raw Hit into a classified TrackingEvent: device and email
// client classification, IP anonymization, prefetch scoring.
type Pipeline struct {
	policy ScoringPolicy
	times  TimingSource
}

// NewPipeline creates a classification pipeline. times may be nil, in which
// case timing signals are skipped entirely.
func NewPipeline(policy ScoringPolicy, times TimingSource) *Pipeline {
	return &Pipeline{policy: policy, times: times}
}

// Process classifies a hit. It never fails: classifier edge cases degrade to
// unknown values and timing lookups that error are simply skipped.
func (p *Pipeline) Process(ctx context.Context, hit *Hit) *TrackingEvent {
	sig := hit.Signals
	device := ClassifyDevice(sig.UserAgent)
	client := ClassifyEmailClient(sig.UserAgent)
	timing := p.resolveTiming(ctx, hit)
	result := p.policy.ScorePrefetch(sig, client, timing)

	ev := &TrackingEvent{
		ID:            uuid.New(),
		CampaignID:    hit.CampaignID,
		ContactID:     hit.ContactID,
		EventType:     hit.Kind,
		EventAt:       hit.ReceivedAt,
		DeviceType:    device.Type,
		OS:            device.OS,
		Browser:       device.Browser,
		EmailClient:   client.Client,
		ClientVersion: client.Version,
		IPAddress:     AnonymizeIP(sig.RemoteIP),
		UserAgent:     sig.UserAgent,
		IsPrefetch:    result.IsLikelyPrefetch,
		Confidence:    result.Confidence,
		Metadata: MetadataJSON{
			"score":          result.Score,
			"reasons":        result.Reasons,
			"policy_version": p.policy.Version,
		},
	}

	if hit.Kind == EventClicked {
		// A click requires deliberate interaction; the scorer output is kept
		// for audit but the event itself is never treated as prefetch.
		ev.Metadata["scored_prefetch"] = result.IsLikelyPrefetch
		ev.IsPrefetch = false
		ev.LinkURL = hit.LinkURL
		ev.LinkDomain = displayDomain(hit.LinkURL)
		ev.LinkPosition = hit.LinkPos
	}

	if sig.AcceptLanguage != "" {
		ev.Metadata["accept_language"] = sig.AcceptLanguage
	}
	if sig.Referer != "" {
		ev.Metadata["referer"] = sig.Referer
	}

	return ev
}

func (p *Pipeline) resolveTiming(ctx context.Context, hit *Hit) Timing {
	var timing Timing

	sentAt := hit.SentAt
	if sentAt == nil && p.times != nil {
		t, err := p.times.CampaignSentAt(ctx, hit.CampaignID)
		if err != nil {
			logger.Warn("tracking: campaign sent_at lookup failed", "campaign_id", hit.CampaignID.String(), "error", err.Error())
		} else {
			sentAt = t
		}
	}
	if sentAt != nil && !hit.ReceivedAt.Before(*sentAt) {
		ms := hit.ReceivedAt.Sub(*sentAt).Milliseconds()
		timing.MillisSinceSend = &ms
	}

	if p.times != nil {
		last, err := p.times.LastEventAt(ctx, hit.CampaignID, hit.ContactID)
		if err != nil {
			logger.Warn("tracking: last event lookup failed", "campaign_id", hit.CampaignID.String(), "error", err.Error())
		} else if last != nil && !hit.ReceivedAt.Before(*last) {
			ms := hit.ReceivedAt.Sub(*last).Milliseconds()
			timing.MillisSinceLastEvent = &ms
		}
	}

	return timing
}

func displayDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
