package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkUpsert struct {
	linkURL     string
	uniqueDelta int
}

type engagementUpdate struct {
	kind       EventType
	countDelta int
}

type fakeStore struct {
	openCount  int
	clickCount int
	probeErr   error
	insertErr  error

	probeCalls  int
	inserted    []*TrackingEvent
	linkUpserts []linkUpsert
	engagements []engagementUpdate
}

func (f *fakeStore) InsertEvent(ctx context.Context, ev *TrackingEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, ev)
	return nil
}

func (f *fakeStore) CountRealOpens(ctx context.Context, campaignID, contactID uuid.UUID) (int, error) {
	f.probeCalls++
	return f.openCount, f.probeErr
}

func (f *fakeStore) CountClicks(ctx context.Context, campaignID, contactID uuid.UUID, linkURL string) (int, error) {
	f.probeCalls++
	return f.clickCount, f.probeErr
}

func (f *fakeStore) UpsertLinkSummary(ctx context.Context, campaignID uuid.UUID, linkURL string, uniqueDelta int, at time.Time) error {
	f.linkUpserts = append(f.linkUpserts, linkUpsert{linkURL: linkURL, uniqueDelta: uniqueDelta})
	return nil
}

func (f *fakeStore) IncrementContactEngagement(ctx context.Context, contactID uuid.UUID, kind EventType, countDelta int, at time.Time) error {
	f.engagements = append(f.engagements, engagementUpdate{kind: kind, countDelta: countDelta})
	return nil
}

func (f *fakeStore) CampaignSentAt(ctx context.Context, campaignID uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (f *fakeStore) LastEventAt(ctx context.Context, campaignID, contactID uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func openEvent(prefetch bool, confidence float64) *TrackingEvent {
	return &TrackingEvent{
		ID:         uuid.New(),
		CampaignID: uuid.New(),
		ContactID:  uuid.New(),
		EventType:  EventOpened,
		EventAt:    time.Now().UTC(),
		IsPrefetch: prefetch,
		Confidence: confidence,
	}
}

func clickEvent(linkURL string) *TrackingEvent {
	ev := openEvent(false, 0.9)
	ev.EventType = EventClicked
	ev.LinkURL = linkURL
	ev.LinkDomain = "example.com"
	return ev
}

func TestRecordFirstRealOpenIncrementsEngagement(t *testing.T) {
	store := &fakeStore{openCount: 0}
	rec := NewEventRecorder(store, nil, 0.7)

	rec.Record(context.Background(), openEvent(false, 1.0))

	require.Len(t, store.inserted, 1)
	require.Len(t, store.engagements, 1)
	assert.Equal(t, EventOpened, store.engagements[0].kind)
	assert.Equal(t, 1, store.engagements[0].countDelta)
}

func TestRecordRepeatOpenInsertsButDoesNotIncrement(t *testing.T) {
	// A non-prefetch open already exists for this (campaign, contact).
	store := &fakeStore{openCount: 1}
	rec := NewEventRecorder(store, nil, 0.7)

	rec.Record(context.Background(), openEvent(false, 1.0))

	require.Len(t, store.inserted, 1, "every hit gets a row")
	require.Len(t, store.engagements, 1)
	assert.Equal(t, 0, store.engagements[0].countDelta, "already-seen open must not increment total_opens")
}

func TestRecordPrefetchOpenIsAuditOnly(t *testing.T) {
	store := &fakeStore{}
	rec := NewEventRecorder(store, nil, 0.7)

	rec.Record(context.Background(), openEvent(true, 0.95))

	assert.Len(t, store.inserted, 1, "prefetch hits are retained for audit")
	assert.Zero(t, store.probeCalls, "prefetch opens skip the dedup probe")
	assert.Empty(t, store.engagements, "prefetch opens never touch contact aggregates")
}

func TestRecordLowConfidencePrefetchTreatedAsReal(t *testing.T) {
	store := &fakeStore{openCount: 0}
	rec := NewEventRecorder(store, nil, 0.7)

	rec.Record(context.Background(), openEvent(true, 0.55))

	require.Len(t, store.engagements, 1)
	assert.Equal(t, 1, store.engagements[0].countDelta)
}

func TestRecordClickUpdatesLinkSummary(t *testing.T) {
	tests := []struct {
		name       string
		priorCount int
		wantUnique int
	}{
		{"first click on link", 0, 1},
		{"repeat click on link", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{clickCount: tt.priorCount}
			rec := NewEventRecorder(store, nil, 0.7)

			rec.Record(context.Background(), clickEvent("https://example.com/offer"))

			require.Len(t, store.inserted, 1)
			require.Len(t, store.linkUpserts, 1)
			assert.Equal(t, tt.wantUnique, store.linkUpserts[0].uniqueDelta)
			require.Len(t, store.engagements, 1)
			assert.Equal(t, EventClicked, store.engagements[0].kind)
			assert.Equal(t, tt.wantUnique, store.engagements[0].countDelta)
		})
	}
}

func TestRecordProbeFailureStillInserts(t *testing.T) {
	store := &fakeStore{probeErr: errors.New("connection refused")}
	rec := NewEventRecorder(store, nil, 0.7)

	rec.Record(context.Background(), openEvent(false, 1.0))

	require.Len(t, store.inserted, 1)
	require.Len(t, store.engagements, 1)
	assert.Equal(t, 0, store.engagements[0].countDelta, "probe failure must not inflate unique counts")
}

func TestRecordInsertFailureStillUpdatesAggregates(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}
	rec := NewEventRecorder(store, nil, 0.7)

	rec.Record(context.Background(), clickEvent("https://example.com"))

	assert.Empty(t, store.inserted)
	assert.Len(t, store.linkUpserts, 1, "aggregate update is independent of the insert")
}

func TestRecordDedupCacheShortCircuitsRepeat(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	dedup := NewDedupCache(rdb, time.Hour)

	store := &fakeStore{openCount: 0}
	rec := NewEventRecorder(store, dedup, 0.7)

	ev := openEvent(false, 1.0)
	rec.Record(context.Background(), ev)

	repeat := openEvent(false, 1.0)
	repeat.CampaignID = ev.CampaignID
	repeat.ContactID = ev.ContactID
	rec.Record(context.Background(), repeat)

	require.Len(t, store.inserted, 2)
	assert.Equal(t, 1, store.probeCalls, "second open must be answered by the cache alone")
	require.Len(t, store.engagements, 2)
	assert.Equal(t, 1, store.engagements[0].countDelta)
	assert.Equal(t, 0, store.engagements[1].countDelta)
}

func TestRecordDedupCacheDownFallsBackToStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	dedup := NewDedupCache(rdb, time.Hour)
	mr.Close()

	store := &fakeStore{openCount: 0}
	rec := NewEventRecorder(store, dedup, 0.7)

	rec.Record(context.Background(), openEvent(false, 1.0))

	require.Len(t, store.engagements, 1)
	assert.Equal(t, 1, store.engagements[0].countDelta)
	assert.Equal(t, 1, store.probeCalls)
}
