package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// EventSink accepts hits for detached background processing. Enqueue must
// never block: it reports false when the hit was shed instead.
type EventSink interface {
	Enqueue(hit *Hit) bool
}

// RecordQueue is the in-process sink: a bounded channel drained by a fixed
// pool of workers that classify and record each hit. A full queue sheds the
// hit and counts it, so overload is visible in logs rather than hidden in an
// unbounded pile of dangling goroutines.
type RecordQueue struct {
	hits     chan *Hit
	pipeline *Pipeline
	recorder *EventRecorder
	workers  int

	processed atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRecordQueue creates a queue with the given capacity and worker count.
func NewRecordQueue(pipeline *Pipeline, recorder *EventRecorder, size, workers int) *RecordQueue {
	if size <= 0 {
		size = 10000
	}
	if workers <= 0 {
		workers = 4
	}
	return &RecordQueue{
		hits:     make(chan *Hit, size),
		pipeline: pipeline,
		recorder: recorder,
		workers:  workers,
	}
}

// Start launches the worker pool and a periodic depth gauge. ctx only stops
// the gauge; workers run until Stop drains the channel.
func (q *RecordQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	go q.reportLoop(ctx)
	logger.Info("tracking: record queue started", "workers", q.workers, "capacity", cap(q.hits))
}

// Stop closes the queue and waits for queued hits to finish. Hits enqueued
// after Stop are shed.
func (q *RecordQueue) Stop() {
	q.stopOnce.Do(func() { close(q.hits) })
	q.wg.Wait()
}

// Enqueue hands a hit to the worker pool without blocking. Returns false and
// logs when the queue is full.
func (q *RecordQueue) Enqueue(hit *Hit) (ok bool) {
	defer func() {
		if recover() != nil {
			// Queue already stopped; treat as shed.
			q.dropped.Add(1)
			ok = false
		}
	}()
	select {
	case q.hits <- hit:
		return true
	default:
		q.dropped.Add(1)
		logger.Warn("tracking: record queue full, shedding hit",
			"kind", string(hit.Kind),
			"campaign_id", hit.CampaignID.String(),
			"dropped_total", q.dropped.Load())
		return false
	}
}

// Depth reports the number of queued, unprocessed hits.
func (q *RecordQueue) Depth() int { return len(q.hits) }

// Dropped reports how many hits were shed since start.
func (q *RecordQueue) Dropped() int64 { return q.dropped.Load() }

// Processed reports how many hits finished recording since start.
func (q *RecordQueue) Processed() int64 { return q.processed.Load() }

func (q *RecordQueue) work() {
	defer q.wg.Done()
	for hit := range q.hits {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ev := q.pipeline.Process(ctx, hit)
		q.recorder.Record(ctx, ev)
		cancel()
		q.processed.Add(1)
	}
}

func (q *RecordQueue) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth := q.Depth(); depth > 0 || q.Dropped() > 0 {
				logger.Info("tracking: record queue stats",
					"depth", depth,
					"processed", q.Processed(),
					"dropped", q.Dropped())
			}
		}
	}
}
