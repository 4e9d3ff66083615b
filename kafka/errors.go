package kafka

import (
	"errors"

	"github.com/twmb/franz-go/pkg/kerr"
)

// Broker error codes the consumer dispatches on. These alias the protocol
// errors so callers never import kerr directly.
var (
	ErrOffsetOutOfRange        error = kerr.OffsetOutOfRange
	ErrUnknownTopicOrPartition error = kerr.UnknownTopicOrPartition
)

func IsOffsetOutOfRange(err error) bool {
	return errors.Is(err, kerr.OffsetOutOfRange)
}

func IsUnknownTopicOrPartition(err error) bool {
	return errors.Is(err, kerr.UnknownTopicOrPartition)
}

// IsRetriable reports whether the error is a transient broker condition
// (leader change, timeout, not-enough-replicas, ...) that a later attempt may
// clear without any state change.
func IsRetriable(err error) bool {
	return kerr.IsRetriable(err)
}

func errorForCode(code int16) error {
	if code == 0 {
		return nil
	}
	return kerr.ErrorForCode(code)
}
