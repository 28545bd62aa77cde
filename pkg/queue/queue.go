// Package queue implements the single-admission user queue: a bounded FIFO
// with priority insertion, head-of-queue computation-key issuance, and
// head-timeout eviction.
//
// The queue is represented as a contiguous slice plus a hash map from
// access key to slice index, rather than a linked list, so that there are
// no owning pointers between entries and position lookups are O(1).
package queue

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// AddResult is the outcome of add_user / add_priority_user.
type AddResult string

// Possible outcomes of an admission attempt.
const (
	Succeeded     AddResult = "SUCCEEDED"
	AlreadyQueued AddResult = "ALREADY_IN_QUEUE"
	Full          AddResult = "QUEUE_IS_FULL"
)

type entry struct {
	accessKey      string
	computationKey string
	timeAtHead     time.Time // zero value means "not yet head"
}

func (e *entry) isHead() bool { return !e.timeAtHead.IsZero() }

// Queue is the bounded, single-writer user admission queue described in the
// coordination subsystem design.
type Queue struct {
	mu          sync.Mutex
	entries     []entry
	index       map[string]int // access_key -> position in entries
	maxSize     int
	headTimeout time.Duration

	now     func() time.Time
	randKey func() (string, error)
}

// Option configures a Queue at construction time. Used by tests to inject a
// deterministic clock or key generator.
type Option func(*Queue)

// WithClock overrides the queue's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithKeyGenerator overrides how fresh computation keys are minted.
func WithKeyGenerator(gen func() (string, error)) Option {
	return func(q *Queue) { q.randKey = gen }
}

// New constructs a Queue bounded at maxSize entries, evicting a head that has
// held its computation key longer than headTimeout.
func New(maxSize int, headTimeout time.Duration, opts ...Option) *Queue {
	q := &Queue{
		entries:     make([]entry, 0, maxSize),
		index:       make(map[string]int, maxSize),
		maxSize:     maxSize,
		headTimeout: headTimeout,
		now:         time.Now,
		randKey:     randomComputationKey,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// randomComputationKey mints a token with at least 128 bits of entropy and
// no predictable structure, per the coordination subsystem's requirement
// that a replayed or guessed token must never validate.
func randomComputationKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating computation key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AddUser appends accessKey to the tail of the queue. If the queue was
// empty, the new entry is immediately promoted to head.
func (q *Queue) AddUser(accessKey string) (AddResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.add(accessKey, false)
}

// AddPriorityUser inserts accessKey immediately behind the current head
// (position 1), preserving head identity and its already-issued
// computation key. If the queue is empty this is identical to AddUser.
func (q *Queue) AddPriorityUser(accessKey string) (AddResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.add(accessKey, true)
}

func (q *Queue) add(accessKey string, priority bool) (AddResult, error) {
	q.evictExpiredHeadLocked()

	if _, exists := q.index[accessKey]; exists {
		return AlreadyQueued, nil
	}
	if len(q.entries) >= q.maxSize {
		return Full, nil
	}

	if len(q.entries) == 0 || !priority {
		q.entries = append(q.entries, entry{accessKey: accessKey})
	} else {
		// Insert at position 1, after the current head.
		q.entries = append(q.entries, entry{})
		copy(q.entries[2:], q.entries[1:len(q.entries)-1])
		q.entries[1] = entry{accessKey: accessKey}
	}
	q.reindexLocked()

	if err := q.promoteHeadLocked(); err != nil {
		return "", err
	}
	return Succeeded, nil
}

// GetPosition returns the 0-based distance from head for accessKey, or nil
// if the key is not present.
func (q *Queue) GetPosition(accessKey string) *int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evictExpiredHeadLocked()

	pos, ok := q.index[accessKey]
	if !ok {
		return nil
	}
	return &pos
}

// GetComputationKey returns the head's computation key iff accessKey names
// the current head, else nil.
func (q *Queue) GetComputationKey(accessKey string) *string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evictExpiredHeadLocked()

	if len(q.entries) == 0 {
		return nil
	}
	head := &q.entries[0]
	if head.accessKey != accessKey || !head.isHead() {
		return nil
	}
	key := head.computationKey
	return &key
}

// ValidateComputationKey reports whether accessKey is currently head and
// computationKey matches the token issued on its promotion.
func (q *Queue) ValidateComputationKey(accessKey, computationKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evictExpiredHeadLocked()
	return q.isValidHeadLocked(accessKey, computationKey)
}

func (q *Queue) isValidHeadLocked(accessKey, computationKey string) bool {
	if len(q.entries) == 0 {
		return false
	}
	head := &q.entries[0]
	return head.accessKey == accessKey && head.isHead() && head.computationKey == computationKey
}

// FinishComputation pops the head if the supplied credentials validate,
// promoting the new head. It is idempotent: once the head has been popped,
// subsequent calls with the same (now stale) credentials return false.
func (q *Queue) FinishComputation(accessKey, computationKey string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evictExpiredHeadLocked()

	if !q.isValidHeadLocked(accessKey, computationKey) {
		return false, nil
	}

	q.entries = q.entries[1:]
	q.reindexLocked()
	if err := q.promoteHeadLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Len reports the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// promoteHeadLocked mints a computation key for the head if it doesn't
// already have one. Must be called with q.mu held.
func (q *Queue) promoteHeadLocked() error {
	if len(q.entries) == 0 {
		return nil
	}
	head := &q.entries[0]
	if head.isHead() {
		return nil
	}
	key, err := q.randKey()
	if err != nil {
		return err
	}
	head.computationKey = key
	head.timeAtHead = q.now()
	return nil
}

// evictExpiredHeadLocked drops a head that has held its computation key
// longer than headTimeout, then promotes the new head. Strictly-greater
// comparison: a wait exactly equal to the timeout does not evict.
func (q *Queue) evictExpiredHeadLocked() {
	for len(q.entries) > 0 {
		head := &q.entries[0]
		if !head.isHead() {
			break
		}
		if q.now().Sub(head.timeAtHead) <= q.headTimeout {
			break
		}
		q.entries = q.entries[1:]
		q.reindexLocked()
		// promoteHeadLocked can only fail on key generation; eviction is a
		// best-effort background concern of every read, so surface nothing
		// here and let the next explicit operation retry promotion.
		_ = q.promoteHeadLocked()
	}
}

// reindexLocked rebuilds the access-key -> position map after any mutation
// that shifts entries. Must be called with q.mu held.
func (q *Queue) reindexLocked() {
	for k := range q.index {
		delete(q.index, k)
	}
	for i := range q.entries {
		q.index[q.entries[i].accessKey] = i
	}
}
