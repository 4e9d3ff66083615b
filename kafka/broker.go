package kafka

import (
	"context"
	"time"
)

// Broker is a dedicated broker-client session for a single partition consumer.
// The session is created when the consumer starts and closed when it terminates;
// no other component may use it in between.
type Broker interface {
	// Fetch returns records for the partition starting at the given offset,
	// in ascending offset order. Offsets are never auto-committed.
	Fetch(ctx context.Context, topic string, partition int32, offset int64, opts FetchOptions) ([]Record, error)

	// CommittedOffset returns the durable committed offset for the group.
	// A negative offset means the group has no commit for this partition.
	CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, error)

	// CommitOffset durably marks the given offset for the group.
	CommitOffset(ctx context.Context, group, topic string, partition int32, offset int64) error

	EarliestOffset(ctx context.Context, topic string, partition int32) (int64, error)
	LatestOffset(ctx context.Context, topic string, partition int32) (int64, error)

	Close()
}

// FetchOptions bound a single fetch round trip. Zero values fall back to the
// session defaults.
type FetchOptions struct {
	MinBytes   int32
	MaxBytes   int32
	MaxWait    time.Duration
	MaxRecords int
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.MinBytes <= 0 {
		o.MinBytes = 1
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 1 << 20
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 250 * time.Millisecond
	}
	return o
}
