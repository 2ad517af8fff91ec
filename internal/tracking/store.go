package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// EventStore is the storage contract the pipeline consumes. Implemented by
// Store (PostgreSQL); substituted with fakes in tests.
type EventStore interface {
	InsertEvent(ctx context.Context, ev *TrackingEvent) error
	CountRealOpens(ctx context.Context, campaignID, contactID uuid.UUID) (int, error)
	CountClicks(ctx context.Context, campaignID, contactID uuid.UUID, linkURL string) (int, error)
	UpsertLinkSummary(ctx context.Context, campaignID uuid.UUID, linkURL string, uniqueDelta int, at time.Time) error
	IncrementContactEngagement(ctx context.Context, contactID uuid.UUID, kind EventType, countDelta int, at time.Time) error
	CampaignSentAt(ctx context.Context, campaignID uuid.UUID) (*time.Time, error)
	LastEventAt(ctx context.Context, campaignID, contactID uuid.UUID) (*time.Time, error)
}

// Store provides the PostgreSQL-backed event storage.
type Store struct {
	db *sql.DB
}

// NewStore creates a tracking store on top of an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertEvent records one tracking event row. Every hit is recorded,
// prefetch or not.
func (s *Store) InsertEvent(ctx context.Context, ev *TrackingEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	query := `INSERT INTO tracking_events (id, campaign_id, contact_id, event_type, event_at,
		device_type, os, browser, email_client, client_version, ip_address, user_agent,
		is_prefetch, confidence_score, link_url, link_domain, link_position, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := s.db.ExecContext(ctx, query, ev.ID, ev.CampaignID, ev.ContactID, ev.EventType,
		ev.EventAt, ev.DeviceType, ev.OS, ev.Browser, ev.EmailClient, ev.ClientVersion,
		ev.IPAddress, ev.UserAgent, ev.IsPrefetch, ev.Confidence,
		nullStr(ev.LinkURL), nullStr(ev.LinkDomain), ev.LinkPosition, ev.Metadata)
	return err
}

// CountRealOpens reports how many non-prefetch opened events exist for the
// (campaign, contact) pair. Used as the dedup probe for unique opens.
func (s *Store) CountRealOpens(ctx context.Context, campaignID, contactID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracking_events
		WHERE campaign_id = $1 AND contact_id = $2 AND event_type = 'opened' AND is_prefetch = false`,
		campaignID, contactID).Scan(&n)
	return n, err
}

// CountClicks reports how many clicked events exist for the
// (campaign, contact, exact URL) triple.
func (s *Store) CountClicks(ctx context.Context, campaignID, contactID uuid.UUID, linkURL string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracking_events
		WHERE campaign_id = $1 AND contact_id = $2 AND event_type = 'clicked' AND link_url = $3`,
		campaignID, contactID, linkURL).Scan(&n)
	return n, err
}

// UpsertLinkSummary bumps the per-(campaign, link) rollup: total_clicks always,
// unique_clicks by uniqueDelta (1 when this contact had no prior click on the
// link, 0 otherwise). Creates the row with unique_clicks = uniqueDelta on
// first sight. The increment is a single atomic statement; no application
// lock is taken.
func (s *Store) UpsertLinkSummary(ctx context.Context, campaignID uuid.UUID, linkURL string, uniqueDelta int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO link_click_summaries
		(id, campaign_id, link_url, total_clicks, unique_clicks, first_click_at, last_click_at)
		VALUES ($1, $2, $3, 1, $4, $5, $5)
		ON CONFLICT (campaign_id, link_url) DO UPDATE SET
			total_clicks = link_click_summaries.total_clicks + 1,
			unique_clicks = link_click_summaries.unique_clicks + $4,
			last_click_at = $5`,
		uuid.New(), campaignID, linkURL, uniqueDelta, at)
	return err
}

// IncrementContactEngagement updates the contact's engagement fields in
// place: last_engaged_at always, the open/click counter by countDelta.
func (s *Store) IncrementContactEngagement(ctx context.Context, contactID uuid.UUID, kind EventType, countDelta int, at time.Time) error {
	column := "total_opens"
	if kind == EventClicked {
		column = "total_clicks"
	}
	query := `UPDATE contacts SET ` + column + ` = ` + column + ` + $2,
		last_engaged_at = GREATEST(COALESCE(last_engaged_at, $3), $3), updated_at = NOW()
		WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, contactID, countDelta, at)
	return err
}

// CampaignSentAt reads the campaign's send timestamp. Returns nil when the
// campaign is unknown or has not been sent.
func (s *Store) CampaignSentAt(ctx context.Context, campaignID uuid.UUID) (*time.Time, error) {
	var sentAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT sent_at FROM campaigns WHERE id = $1`, campaignID).Scan(&sentAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sentAt.Valid {
		return nil, nil
	}
	return &sentAt.Time, nil
}

// LastEventAt reads the most recent event timestamp for the contact within
// the campaign. Used for the rapid-repeat scoring signal.
func (s *Store) LastEventAt(ctx context.Context, campaignID, contactID uuid.UUID) (*time.Time, error) {
	var at sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT MAX(event_at) FROM tracking_events
		WHERE campaign_id = $1 AND contact_id = $2`, campaignID, contactID).Scan(&at)
	if err != nil {
		return nil, err
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
