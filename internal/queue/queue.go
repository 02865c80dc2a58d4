package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultCapacity   = 1000
	DefaultDedupTTL   = 5 * time.Minute
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultMaxRetries = 3
)

var (
	ErrQueueCapacityExceeded = errors.New("queue capacity exceeded")
	ErrRetryExhausted        = errors.New("retry attempts exhausted")
	ErrMessageExpired        = errors.New("message expired before delivery")
	ErrMessageEvicted        = errors.New("message evicted to make room")
	ErrQueueClosed           = errors.New("queue closed")
)

// SendFunc delivers one message. A non-nil error schedules a retry.
type SendFunc func(msg *Message) error

// DropFunc observes messages that leave the queue without being delivered.
type DropFunc func(msg *Message, reason error)

type dedupEntry struct {
	id string
	at time.Time
}

// ReliableQueue is an in-memory, bounded, deduplicating priority queue with a single
// retrying drain loop. Enqueue never blocks on delivery; only the drain loop waits out backoff.
type ReliableQueue struct {
	mu     sync.Mutex
	items  []*Message // priority desc, then seq asc
	// inflight is the message handed to send; it counts toward capacity but is never evicted.
	inflight *Message
	seen     map[string]dedupEntry
	seq    uint64
	closed bool

	processing atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once

	capacity  int
	dedupTTL  time.Duration
	baseDelay time.Duration
	maxDelay  time.Duration
	sender    SendFunc
	onDrop    DropFunc
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*ReliableQueue)

func WithCapacity(n int) Option {
	return func(q *ReliableQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

func WithDedupTTL(d time.Duration) Option {
	return func(q *ReliableQueue) { q.dedupTTL = d }
}

// WithBackoff sets the first retry delay and the cap for later ones.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(q *ReliableQueue) {
		q.baseDelay = base
		q.maxDelay = maxDelay
	}
}

// WithSender makes Enqueue start a drain with send whenever the queue is idle.
func WithSender(send SendFunc) Option {
	return func(q *ReliableQueue) { q.sender = send }
}

func WithDropHandler(fn DropFunc) Option {
	return func(q *ReliableQueue) { q.onDrop = fn }
}

func WithClock(now func() time.Time) Option {
	return func(q *ReliableQueue) { q.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *ReliableQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func NewReliableQueue(opts ...Option) *ReliableQueue {
	q := &ReliableQueue{
		seen:      make(map[string]dedupEntry),
		done:      make(chan struct{}),
		capacity:  DefaultCapacity,
		dedupTTL:  DefaultDedupTTL,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetSender installs the automatic drain sender after construction.
func (q *ReliableQueue) SetSender(send SendFunc) {
	q.mu.Lock()
	q.sender = send
	q.mu.Unlock()
}

// Enqueue adds a message and returns its id. A request identical in (type, payload) to one
// accepted within the dedup window returns the earlier id without queueing anything.
func (q *ReliableQueue) Enqueue(req EnqueueRequest) (string, error) {
	key, err := contentKey(req.Type, req.Payload)
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}

	now := q.now()
	q.forgetLocked(now)
	if entry, ok := q.seen[key]; ok {
		q.mu.Unlock()
		q.logger.Debug("queue_duplicate_skipped", "message_id", entry.id, "type", req.Type)
		return entry.id, nil
	}

	var evicted *Message
	if q.sizeLocked() >= q.capacity {
		evicted = q.evictOldestLowLocked()
		if evicted == nil {
			size := q.sizeLocked()
			q.mu.Unlock()
			q.logger.Warn("queue_capacity_exceeded", "type", req.Type, "priority", req.Priority.String(), "size", size)
			return "", ErrQueueCapacityExceeded
		}
	}

	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	msg := &Message{
		ID:            messageID(key, now),
		Type:          req.Type,
		Payload:       req.Payload,
		Priority:      req.Priority,
		MaxRetries:    maxRetries,
		EnqueuedAt:    now,
		TargetClients: req.TargetClients,
		Metadata:      req.Metadata,
		contentKey:    key,
	}
	if req.TTL > 0 {
		expiresAt := now.Add(req.TTL)
		msg.ExpiresAt = &expiresAt
	}
	q.insertLocked(msg)
	q.seen[key] = dedupEntry{id: msg.ID, at: now}
	sender := q.sender
	q.mu.Unlock()

	if evicted != nil {
		q.drop(evicted, ErrMessageEvicted)
	}
	q.logger.Debug("queue_message_enqueued", "message_id", msg.ID, "type", msg.Type, "priority", msg.Priority.String())

	if sender != nil && !q.processing.Load() {
		go q.Drain(sender)
	}
	return msg.ID, nil
}

// Drain delivers queued messages with send until the queue is empty or closed.
// It returns false without doing anything when another drain is already running.
func (q *ReliableQueue) Drain(send SendFunc) bool {
	ran := false
	for q.processing.CompareAndSwap(false, true) {
		ran = true
		q.drainLoop(send)
		q.processing.Store(false)
		// a message enqueued after the loop saw an empty queue but before the flag
		// cleared would otherwise wait for the next Enqueue
		if q.Len() == 0 || q.isClosed() {
			break
		}
	}
	return ran
}

func (q *ReliableQueue) drainLoop(send SendFunc) {
	for !q.isClosed() {
		msg, expired := q.head()
		for _, m := range expired {
			q.drop(m, ErrMessageExpired)
		}
		if msg == nil {
			return
		}

		err := send(msg)
		if err == nil {
			q.settle(nil)
			q.logger.Debug("queue_message_delivered", "message_id", msg.ID, "attempts", msg.RetryCount+1)
			continue
		}

		msg.RetryCount++
		if msg.RetryCount > msg.MaxRetries {
			q.logger.Error("queue_retry_exhausted",
				"message_id", msg.ID,
				"type", msg.Type,
				"attempts", msg.RetryCount,
				"error", err.Error(),
			)
			q.settle(nil)
			q.drop(msg, fmt.Errorf("%w: %v", ErrRetryExhausted, err))
			continue
		}

		delay := q.backoff(msg.RetryCount)
		q.settle(msg)
		q.logger.Warn("queue_send_failed_retrying",
			"message_id", msg.ID,
			"retry", msg.RetryCount,
			"max_retries", msg.MaxRetries,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if !q.wait(delay) {
			return
		}
	}
}

// backoff returns min(base * 2^(retry-1), max).
func (q *ReliableQueue) backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	shift := retry - 1
	if shift >= 32 {
		return q.maxDelay
	}
	d := q.baseDelay << uint(shift)
	if d <= 0 || d > q.maxDelay {
		return q.maxDelay
	}
	return d
}

// wait sleeps for d and reports false if the queue was closed meanwhile.
func (q *ReliableQueue) wait(d time.Duration) bool {
	if d <= 0 {
		return !q.isClosed()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-q.done:
		return false
	}
}

// head pops the first deliverable message and marks it in flight, removing expired
// ones in front of it.
func (q *ReliableQueue) head() (*Message, []*Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var expired []*Message
	for len(q.items) > 0 {
		msg := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		if !msg.Expired(now) {
			q.inflight = msg
			return msg, expired
		}
		expired = append(expired, msg)
	}
	return nil, expired
}

// settle clears the in-flight slot, putting retry back at the tail of its band when non-nil.
func (q *ReliableQueue) settle(retry *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight = nil
	if retry != nil {
		q.insertLocked(retry)
	}
}

func (q *ReliableQueue) sizeLocked() int {
	if q.inflight != nil {
		return len(q.items) + 1
	}
	return len(q.items)
}

func (q *ReliableQueue) insertLocked(msg *Message) {
	q.seq++
	msg.seq = q.seq
	idx := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].Priority < msg.Priority
	})
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = msg
}

// evictOldestLowLocked removes the longest-waiting queued low priority message, if any.
// The in-flight message is not in items and so is never a candidate.
func (q *ReliableQueue) evictOldestLowLocked() *Message {
	for i, m := range q.items {
		if m.Priority == PriorityLow {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return m
		}
	}
	return nil
}

func (q *ReliableQueue) forgetLocked(now time.Time) {
	for key, entry := range q.seen {
		if now.Sub(entry.at) >= q.dedupTTL {
			delete(q.seen, key)
		}
	}
}

func (q *ReliableQueue) drop(msg *Message, reason error) {
	q.logger.Warn("queue_message_dropped", "message_id", msg.ID, "type", msg.Type, "reason", reason.Error())
	if q.onDrop != nil {
		q.onDrop(msg, reason)
	}
}

func (q *ReliableQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued messages, including one currently being sent.
func (q *ReliableQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sizeLocked()
}

// Close stops accepting messages and interrupts a drain waiting on backoff.
// Queued messages are discarded with the process.
func (q *ReliableQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Status is a point-in-time snapshot of the queue.
type Status struct {
	Size             int            `json:"size"`
	IsProcessing     bool           `json:"is_processing"`
	OldestTimestamp  *time.Time     `json:"oldest_timestamp,omitempty"`
	NewestTimestamp  *time.Time     `json:"newest_timestamp,omitempty"`
	CountsByPriority map[string]int `json:"counts_by_priority"`
}

func (q *ReliableQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := Status{
		Size:         q.sizeLocked(),
		IsProcessing: q.processing.Load(),
		CountsByPriority: map[string]int{
			PriorityCritical.String(): 0,
			PriorityHigh.String():     0,
			PriorityNormal.String():   0,
			PriorityLow.String():      0,
		},
	}
	pending := q.items
	if q.inflight != nil {
		pending = append([]*Message{q.inflight}, q.items...)
	}
	for _, m := range pending {
		status.CountsByPriority[m.Priority.String()]++
		at := m.EnqueuedAt
		if status.OldestTimestamp == nil || at.Before(*status.OldestTimestamp) {
			status.OldestTimestamp = &at
		}
		if status.NewestTimestamp == nil || at.After(*status.NewestTimestamp) {
			status.NewestTimestamp = &at
		}
	}
	return status
}
