package errorhandler

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
)

// LogAndContinue logs the error and lets the next tick retry the step
func LogAndContinue(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"broker call failed, will retry on next tick",
				"error", ec.Error,
				"group", ec.Group,
				"topic", ec.TP.Topic,
				"partition", ec.TP.Partition,
				"offset", ec.Offset,
				"attempt", ec.Attempt,
				"phase", ec.Phase.String(),
			)
			return ActionContinue{}
		},
	)
}

// LogAndFail logs the error and terminates the consumer
func LogAndFail(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"broker call failed, terminating",
				"error", ec.Error,
				"group", ec.Group,
				"topic", ec.TP.Topic,
				"partition", ec.TP.Partition,
				"offset", ec.Offset,
				"attempt", ec.Attempt,
				"phase", ec.Phase.String(),
			)
			return ActionFail{}
		},
	)
}

// SilentFail terminates the consumer without logging at the handler level
func SilentFail() Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			return ActionFail{}
		},
	)
}

// ContinueRetriable absorbs transient broker errors and fails on everything else
func ContinueRetriable(l logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			if kafka.IsRetriable(ec.Error) {
				return LogAndContinue(l).Handle(ctx, ec)
			}
			return LogAndFail(l).Handle(ctx, ec)
		},
	)
}

// WithMaxAttempts wraps a handler with retry logic
// When the max attempts is reached, the fallback handler is called
func WithMaxAttempts(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			select {
			case <-ctx.Done():
				return ActionFail{}
			case <-time.After(b.Next(uint(ec.Attempt))):
			}

			if ec.Attempt < maxAttempts {
				return ActionRetry{}
			}

			return fallback.Handle(ctx, ec)
		},
	)
}

// ActionLogger logs the action decided by the next handler
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)

			l.Log(
				level,
				"Error handler decision",
				"action", action.Type().String(),
				"error", ec.Error,
				"group", ec.Group,
				"topic", ec.TP.Topic,
				"partition", ec.TP.Partition,
				"offset", ec.Offset,
				"attempt", ec.Attempt,
				"phase", ec.Phase.String(),
			)
			return action
		},
	)
}
