package consumer

import (
	"context"

	"github.com/hugolhafner/go-consume/kafka"
)

// Subscriber is the downstream half of a partition consumer. It signals
// capacity through PartitionConsumer.Ask and receives record batches through
// Deliver, in ascending offset order, never exceeding what it asked for.
//
// The subscriber is linked to its consumer: closing Done terminates the
// consumer (which runs its final commit), and consumer termination calls Stop.
type Subscriber interface {
	// Deliver hands the subscriber one batch. Batches may be empty. Blocking
	// is how the subscriber slows the consumer down further; returning an
	// error terminates the consumer.
	Deliver(ctx context.Context, records []kafka.Record) error

	// Done is closed when the subscriber has terminated on its own.
	Done() <-chan struct{}

	// Stop tells the subscriber the consumer is shutting down. No Deliver
	// calls follow it.
	Stop(ctx context.Context) error
}

// SubscriberFactory starts the subscriber when a partition consumer
// initializes. It receives the consumer handle so the subscriber can signal
// demand, and the opaque args the consumer was started with.
//
// A factory error fails Start.
type SubscriberFactory func(pc *PartitionConsumer, topic string, partition int32, args any) (Subscriber, error)
