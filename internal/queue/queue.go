// Package queue implements the Delivery Queue: three priority-ordered
// FIFO sub-queues drained by a bounded worker pool that hands items to
// the HTTP Dispatcher and reschedules or dead-letters them on failure
// (spec §4.6).
package queue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/relaydock/docrelay/internal/dispatch"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
)

// Dispatcher is the read surface the Queue drives. Satisfied by
// *dispatch.Dispatcher.
type Dispatcher interface {
	Attempt(ctx context.Context, item *model.DeliveryItem) dispatch.Result
}

// History is the Delivery History write surface (spec §4.8): fire-and-
// forget from the Queue's point of view, errors are logged and swallowed.
type History interface {
	RecordDeliveryAttempt(attempt *model.DeliveryAttemptRecord) error
	UpdateSubscriptionCounters(subscriptionID string, deliveredDelta, failedDelta int64) error
}

// DeadLetterSink receives items that exhausted their retry budget.
type DeadLetterSink interface {
	Add(item *model.DeliveryItem, reason string) error
}

// Config bounds the Queue's capacity and scheduling discipline.
type Config struct {
	MaxQueueSize       int
	MaxConcurrent      int
	ProcessingInterval time.Duration
	DeliveryTimeout    time.Duration
	JitterCapMs        int64
	MaxDelayCap        time.Duration
}

// DefaultConfig mirrors spec §4.6's defaults plus a jitter cap left to
// the implementation's discretion (spec §9 open question): 1 second,
// small enough not to meaningfully delay retries but enough to avoid
// thundering-herd resends after a downstream outage clears.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:       10000,
		MaxConcurrent:      10,
		ProcessingInterval: 250 * time.Millisecond,
		DeliveryTimeout:    30 * time.Second,
		JitterCapMs:        1000,
		MaxDelayCap:        300 * time.Second,
	}
}

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
type ErrQueueFull struct{}

func (ErrQueueFull) Error() string { return "queue-full" }

// Stats accumulates queue-level counters (spec §4.6 "statistics").
type Stats struct {
	mu         sync.Mutex
	enqueued   int64
	completed  int64
	retried    int64
	deadLettered int64
	rejected   int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Enqueued     int64
	Completed    int64
	Retried      int64
	DeadLettered int64
	Rejected     int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{s.enqueued, s.completed, s.retried, s.deadLettered, s.rejected}
}

// Queue drains three priority-ordered FIFO lanes through a bounded worker
// pool.
type Queue struct {
	config     Config
	lanes      [3]*lane
	dispatcher Dispatcher
	history    History
	deadLetter DeadLetterSink
	stats      *Stats
	logger     logrus.FieldLogger

	size   int64
	sizeMu sync.Mutex

	sem     chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New constructs a Queue. Call Start to begin draining.
func New(config Config, dispatcher Dispatcher, history History, deadLetter DeadLetterSink, logger logrus.FieldLogger) *Queue {
	q := &Queue{
		config:     config,
		dispatcher: dispatcher,
		history:    history,
		deadLetter: deadLetter,
		stats:      &Stats{},
		logger:     logger.WithField("component", "queue"),
		sem:        make(chan struct{}, config.MaxConcurrent),
		stopCh:     make(chan struct{}),
	}
	for i := range q.lanes {
		q.lanes[i] = newLane()
	}
	return q
}

// Stats returns the Queue's statistics accumulator.
func (q *Queue) Stats() *Stats { return q.stats }

// Enqueue admits item onto its priority lane, failing with ErrQueueFull
// once total size reaches maxQueueSize (spec §4.6 "Capacity").
func (q *Queue) Enqueue(item *model.DeliveryItem) error {
	q.sizeMu.Lock()
	if q.size >= int64(q.config.MaxQueueSize) {
		q.sizeMu.Unlock()
		q.stats.mu.Lock()
		q.stats.rejected++
		q.stats.mu.Unlock()
		return ErrQueueFull{}
	}
	q.size++
	q.sizeMu.Unlock()

	item.Status = model.DeliveryStatusQueued
	q.laneFor(item.Priority).push(item)

	q.stats.mu.Lock()
	q.stats.enqueued++
	q.stats.mu.Unlock()
	return nil
}

func (q *Queue) laneFor(priority model.Priority) *lane {
	idx := int(priority) - 1
	if idx < 0 || idx >= len(q.lanes) {
		idx = int(model.PriorityMedium) - 1
	}
	return q.lanes[idx]
}

// Status returns the current count of items resident in each lane,
// keyed by priority (spec §4.6's "iteration over items filtered by
// status" is served for the queued state by this, and for terminal
// states by the History/Dead-Letter stores, which are the system of
// record once an item leaves the Queue).
func (q *Queue) Status() map[model.Priority]int {
	return map[model.Priority]int{
		model.PriorityHigh:   q.lanes[0].len(),
		model.PriorityMedium: q.lanes[1].len(),
		model.PriorityLow:    q.lanes[2].len(),
	}
}

// Start launches the polling loop that drains the lanes until ctx is
// done or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	if q.started {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.run(ctx)
}

// Stop signals the polling loop to exit and waits for in-flight attempts
// to finish.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.config.ProcessingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.pollOnce(ctx)
		}
	}
}

// pollOnce scans priorities 1->3 for one ready item and, capacity
// permitting, dispatches it concurrently (spec §4.6 "Scheduling
// discipline"). A not-yet-eligible head is requeued at the tail and the
// scan continues, accepting starvation of late low-priority items as a
// deliberate trade-off.
func (q *Queue) pollOnce(ctx context.Context) {
	for {
		item := q.popReady()
		if item == nil {
			return
		}
		select {
		case q.sem <- struct{}{}:
		default:
			q.laneFor(item.Priority).pushFront(item)
			return
		}
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			defer func() { <-q.sem }()
			q.process(ctx, item)
		}()
	}
}

// popReady scans every lane once for the first item whose next-eligible
// time has elapsed, requeuing not-yet-eligible heads at the tail.
func (q *Queue) popReady() *model.DeliveryItem {
	now := model.GetMillis()
	for _, l := range q.lanes {
		for attempts := 0; attempts < l.len(); attempts++ {
			item := l.pop()
			if item == nil {
				break
			}
			if item.NextEligibleMillis > now {
				l.push(item)
				continue
			}
			return item
		}
	}
	return nil
}

func (q *Queue) process(parent context.Context, item *model.DeliveryItem) {
	item.Status = model.DeliveryStatusProcessing
	item.Attempts++

	ctx, cancel := context.WithTimeout(parent, q.config.DeliveryTimeout)
	defer cancel()

	start := model.GetMillis()
	result := q.dispatcher.Attempt(ctx, item)
	if ctx.Err() == context.DeadlineExceeded && result.Error == "" {
		result = dispatch.Result{Error: "Delivery attempt timeout", StatusCode: 408, ErrorCategory: model.ErrorCategoryTimeout, Retryable: true}
	}

	record := model.NewDeliveryAttemptRecord(item, item.Attempts, start)
	record.Duration = result.Duration
	record.HTTPStatus = result.StatusCode
	record.ErrorMessage = result.Error
	record.ErrorCategory = result.ErrorCategory
	record.ResponseBodyPrefix = result.BodyPrefix

	if result.Success {
		record.Outcome = model.AttemptOutcomeSuccess
		q.complete(item, record)
		return
	}

	record.Outcome = model.AttemptOutcomeFailure
	q.fail(item, record, result.Error)
}

func (q *Queue) complete(item *model.DeliveryItem, record *model.DeliveryAttemptRecord) {
	item.Status = model.DeliveryStatusCompleted
	q.recordHistory(record)
	q.updateCounters(item.SubscriptionID, 1, 0)
	q.dequeued()
	q.stats.mu.Lock()
	q.stats.completed++
	q.stats.mu.Unlock()
}

func (q *Queue) fail(item *model.DeliveryItem, record *model.DeliveryAttemptRecord, reason string) {
	if item.Attempts >= item.MaxAttempts {
		item.Status = model.DeliveryStatusDeadLettered
		q.recordHistory(record)
		q.updateCounters(item.SubscriptionID, 0, 1)
		q.dequeued()
		if err := q.deadLetter.Add(item, reason); err != nil {
			q.logger.WithError(err).WithField("delivery", item.ID).Error("failed to dead-letter delivery")
		}
		q.stats.mu.Lock()
		q.stats.deadLettered++
		q.stats.mu.Unlock()
		return
	}

	delay := backoffDelay(item.InitialDelayMs, item.BackoffMultiplier, item.Attempts, q.config.JitterCapMs, q.config.MaxDelayCap)
	next := model.GetMillis() + delay.Milliseconds()
	nextCopy := next
	record.NextRetryAtMillis = &nextCopy

	item.Status = model.DeliveryStatusScheduled
	item.NextEligibleMillis = next
	item.LastError = reason

	q.recordHistory(record)
	q.laneFor(item.Priority).push(item)

	q.stats.mu.Lock()
	q.stats.retried++
	q.stats.mu.Unlock()
}

// backoffDelay implements spec §4.6's retry formula:
// delay = min(initialDelay · multiplier^(attempts-1) + uniform[0,
// jitterCap], maxDelayCap).
func backoffDelay(initialDelayMs, multiplier, attempts int, jitterCapMs int64, maxDelayCap time.Duration) time.Duration {
	if multiplier < 1 {
		multiplier = 1
	}
	base := int64(initialDelayMs)
	for i := 1; i < attempts; i++ {
		base *= int64(multiplier)
	}
	jitter := int64(0)
	if jitterCapMs > 0 {
		jitter = rand.Int63n(jitterCapMs + 1)
	}
	delay := time.Duration(base+jitter) * time.Millisecond
	if delay > maxDelayCap {
		return maxDelayCap
	}
	return delay
}

func (q *Queue) recordHistory(record *model.DeliveryAttemptRecord) {
	if err := q.history.RecordDeliveryAttempt(record); err != nil {
		q.logger.WithError(err).Error("failed to record delivery attempt history")
	}
}

func (q *Queue) updateCounters(subscriptionID string, delivered, failed int64) {
	if err := q.history.UpdateSubscriptionCounters(subscriptionID, delivered, failed); err != nil {
		q.logger.WithError(err).Error("failed to update subscription counters")
	}
}

func (q *Queue) dequeued() {
	q.sizeMu.Lock()
	q.size--
	q.sizeMu.Unlock()
}

// lane is a mutex-guarded FIFO of delivery items.
type lane struct {
	mu    sync.Mutex
	items []*model.DeliveryItem
}

func newLane() *lane {
	return &lane{}
}

func (l *lane) push(item *model.DeliveryItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
}

func (l *lane) pushFront(item *model.DeliveryItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]*model.DeliveryItem{item}, l.items...)
}

func (l *lane) pop() *model.DeliveryItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil
	}
	item := l.items[0]
	l.items = l.items[1:]
	return item
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
