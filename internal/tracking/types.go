package tracking

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of engagement hit.
type EventType string

const (
	EventOpened  EventType = "opened"
	EventClicked EventType = "clicked"
)

// Hit is a raw tracking request as captured at the endpoint, before
// classification. Hits are what travels through the record queue (or SQS);
// classification and persistence happen on the consumer side so the
// client-visible response never waits on them.
type Hit struct {
	Kind       EventType  `json:"kind"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	ContactID  uuid.UUID  `json:"contact_id"`
	ReceivedAt time.Time  `json:"received_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"` // from the t= parameter when present
	Signals    Signals    `json:"signals"`
	LinkURL    string     `json:"link_url,omitempty"`
	LinkPos    int        `json:"link_pos,omitempty"`
}

// TrackingEvent is one classified, recordable engagement event.
// Rows are insert-only; nothing in this service updates or deletes them.
type TrackingEvent struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	ContactID     uuid.UUID
	EventType     EventType
	EventAt       time.Time
	DeviceType    string
	OS            string
	Browser       string
	EmailClient   string
	ClientVersion string
	IPAddress     string // anonymized before it reaches this struct
	UserAgent     string
	IsPrefetch    bool
	Confidence    float64 // always within [0,1]
	LinkURL       string
	LinkDomain    string
	LinkPosition  int
	Metadata      MetadataJSON
}

// LinkClickSummary is the per-(campaign, link) rollup.
// unique_clicks never exceeds total_clicks.
type LinkClickSummary struct {
	ID           uuid.UUID
	CampaignID   uuid.UUID
	LinkURL      string
	TotalClicks  int64
	UniqueClicks int64
	FirstClickAt time.Time
	LastClickAt  time.Time
}

// MetadataJSON stores free-form event metadata (classifier reasons, browser
// details) as a JSONB column.
type MetadataJSON map[string]any

// Value implements driver.Valuer.
func (m MetadataJSON) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *MetadataJSON) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, m)
}
