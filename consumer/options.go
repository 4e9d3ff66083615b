package consumer

import (
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
	consumeotel "github.com/hugolhafner/go-consume/otel"
)

type Option func(*Config)

// WithCommitInterval sets the async commit time bound.
func WithCommitInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CommitInterval = d
		}
	}
}

// WithCommitThreshold sets the async commit progress bound.
func WithCommitThreshold(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.CommitThreshold = n
		}
	}
}

// WithAutoOffsetReset sets the recovery policy for out-of-range fetch positions.
func WithAutoOffsetReset(r OffsetReset) Option {
	return func(c *Config) {
		c.AutoOffsetReset = r
	}
}

// WithCommitStrategy sets the configured commit strategy.
func WithCommitStrategy(s Strategy) Option {
	return func(c *Config) {
		c.CommitStrategy = s
	}
}

// WithFetchOptions sets the per-fetch bounds passed to the broker session.
func WithFetchOptions(opts kafka.FetchOptions) Option {
	return func(c *Config) {
		c.FetchOptions = opts
	}
}

// WithBootstrapServers sets the broker endpoints the default broker session
// is built from. Ignored when a broker builder is provided.
func WithBootstrapServers(servers []string) Option {
	return func(c *Config) {
		c.BootstrapServers = servers
	}
}

// WithBrokerBuilder replaces how the consumer creates its broker session.
func WithBrokerBuilder(b BrokerBuilder) Option {
	return func(c *Config) {
		c.BrokerBuilder = b
	}
}

// WithExtraConsumerArgs sets the opaque value forwarded to the subscriber factory.
func WithExtraConsumerArgs(args any) Option {
	return func(c *Config) {
		c.ExtraConsumerArgs = args
	}
}

// WithProducerOptions sets the opaque downstream-stage configuration.
func WithProducerOptions(opts any) Option {
	return func(c *Config) {
		c.ProducerOptions = opts
	}
}

// WithFinalCommitTimeout bounds the best-effort commit on termination.
func WithFinalCommitTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.FinalCommitTimeout = d
		}
	}
}

// WithFetchErrorBackoff sets the delay before re-entering the fetch loop
// after an absorbed fetch error.
func WithFetchErrorBackoff(b backoff.Backoff) Option {
	return func(c *Config) {
		if b != nil {
			c.FetchErrorBackoff = b
		}
	}
}

// WithErrorHandler replaces the broker-error handler.
func WithErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithTelemetry(t *consumeotel.Telemetry) Option {
	return func(c *Config) {
		if t != nil {
			c.Telemetry = t
		}
	}
}
