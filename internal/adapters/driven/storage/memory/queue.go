package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure JobQueue implements the interface.
var _ driven.JobQueue = (*JobQueue)(nil)

// DefaultLeaseDuration is how long a received message stays invisible
// before it becomes eligible for redelivery.
const DefaultLeaseDuration = 5 * time.Minute

// queueEntry is one message with its delivery bookkeeping.
type queueEntry struct {
	id        string
	msg       domain.JobMessage
	attempts  int
	visibleAt time.Time
	leasedTo  time.Time
}

// JobQueue is an in-memory at-least-once delivery queue with visibility
// leases. A message received but never settled becomes deliverable again
// once its lease expires.
type JobQueue struct {
	mu      sync.Mutex
	entries []*queueEntry
	dead    []domain.JobMessage
	lease   time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewJobQueue creates a new in-memory job queue.
func NewJobQueue(lease time.Duration) *JobQueue {
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	return &JobQueue{
		lease: lease,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue makes a job message available for delivery.
func (q *JobQueue) Enqueue(_ context.Context, msg domain.JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, &queueEntry{
		id:        uuid.New().String(),
		msg:       msg,
		visibleAt: q.now(),
	})
	return nil
}

// Receive leases the next deliverable message, higher priority first,
// then oldest visibility.
func (q *JobQueue) Receive(_ context.Context) (*driven.Lease, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var best *queueEntry
	for _, e := range q.entries {
		if e.visibleAt.After(now) || e.leasedTo.After(now) {
			continue
		}
		if best == nil || deliverBefore(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, domain.ErrQueueEmpty
	}

	best.attempts++
	best.leasedTo = now.Add(q.lease)
	return &driven.Lease{
		ID:        best.id,
		Message:   best.msg,
		Attempt:   best.attempts,
		ExpiresAt: best.leasedTo,
	}, nil
}

// deliverBefore orders deliverable entries by (priority, visible_at).
func deliverBefore(a, b *queueEntry) bool {
	ra, rb := a.msg.Priority.Rank(), b.msg.Priority.Rank()
	if ra != rb {
		return ra < rb
	}
	return a.visibleAt.Before(b.visibleAt)
}

// Ack removes a leased message permanently.
func (q *JobQueue) Ack(_ context.Context, lease *driven.Lease) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(lease.ID)
	return nil
}

// Nack releases a leased message for redelivery after delay, keeping
// the attempt counter.
func (q *JobQueue) Nack(_ context.Context, lease *driven.Lease, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.id == lease.ID {
			e.leasedTo = time.Time{}
			e.visibleAt = q.now().Add(delay)
			return nil
		}
	}
	return domain.ErrNotFound
}

// DeadLetter moves a leased message out of normal delivery.
func (q *JobQueue) DeadLetter(_ context.Context, lease *driven.Lease) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.id == lease.ID {
			q.dead = append(q.dead, e.msg)
			q.remove(lease.ID)
			return nil
		}
	}
	return domain.ErrNotFound
}

// DeadLetters returns the dead-lettered messages, mainly for inspection.
func (q *JobQueue) DeadLetters() []domain.JobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.JobMessage, len(q.dead))
	copy(out, q.dead)
	return out
}

// remove deletes an entry by ID. Caller holds the lock.
func (q *JobQueue) remove(id string) {
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}
