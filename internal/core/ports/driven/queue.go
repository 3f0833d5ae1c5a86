package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// JobQueue delivers analysis-job messages to pipeline workers
// at-least-once. A received message is invisible to other workers until
// its lease expires; an unacknowledged message becomes eligible for
// redelivery, so consumers must be idempotent.
type JobQueue interface {
	// Enqueue makes a job message available for delivery.
	Enqueue(ctx context.Context, msg domain.JobMessage) error

	// Receive leases the next available message. It returns
	// domain.ErrQueueEmpty when nothing is deliverable right now.
	Receive(ctx context.Context) (*Lease, error)

	// Ack removes a leased message permanently.
	Ack(ctx context.Context, lease *Lease) error

	// Nack releases a leased message for redelivery after delay.
	// The attempt counter is preserved.
	Nack(ctx context.Context, lease *Lease, delay time.Duration) error

	// DeadLetter moves a leased message to the dead-letter path,
	// removing it from normal delivery.
	DeadLetter(ctx context.Context, lease *Lease) error
}

// Lease is a claimed queue message plus its delivery bookkeeping.
type Lease struct {
	// ID identifies the queue entry (not the job).
	ID string

	// Message is the job request payload.
	Message domain.JobMessage

	// Attempt is the 1-based delivery attempt count.
	Attempt int

	// ExpiresAt is when the lease lapses and the message becomes
	// eligible for redelivery.
	ExpiresAt time.Time
}
