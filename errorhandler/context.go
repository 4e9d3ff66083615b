package errorhandler

import (
	"github.com/hugolhafner/go-consume/kafka"
)

// ErrorContext provides context about a failed broker RPC. It contains all the
// information a handler needs to decide how the consumer should proceed.
type ErrorContext struct {
	// Group is the consumer group the failing consumer belongs to.
	Group string

	// TP is the topic-partition the failing consumer owns.
	TP kafka.TopicPartition

	// Offset is the offset involved in the failed RPC: the fetch position for
	// fetch failures, the offset being committed for commit failures.
	Offset int64

	// Error is the error returned by the broker client.
	Error error

	// Attempt is current attempt number, 1 indexed.
	Attempt int

	// Phase indicates which RPC failed.
	Phase ErrorPhase
}

func NewErrorContext(group string, tp kafka.TopicPartition, err error) ErrorContext {
	return ErrorContext{
		Group:   group,
		TP:      tp,
		Error:   err,
		Attempt: 1,
	}
}

func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	return ec
}

func (ec ErrorContext) WithOffset(offset int64) ErrorContext {
	ec.Offset = offset
	return ec
}

func (ec ErrorContext) WithAttempt(attempt int) ErrorContext {
	ec.Attempt = attempt
	return ec
}

func (ec ErrorContext) WithPhase(phase ErrorPhase) ErrorContext {
	ec.Phase = phase
	return ec
}

func (ec ErrorContext) IncrementAttempt() ErrorContext {
	ec.Attempt++
	return ec
}
