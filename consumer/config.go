package consumer

import (
	"fmt"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
	consumeotel "github.com/hugolhafner/go-consume/otel"
)

// OffsetReset selects what happens when the fetch position falls outside the
// broker's retained log.
type OffsetReset int

const (
	// ResetNone treats an out-of-range position as fatal.
	ResetNone OffsetReset = iota

	// ResetEarliest rewinds to the earliest retained offset.
	ResetEarliest

	// ResetLatest forwards to the log end.
	ResetLatest
)

func (r OffsetReset) String() string {
	switch r {
	case ResetNone:
		return "none"
	case ResetEarliest:
		return "earliest"
	case ResetLatest:
		return "latest"
	default:
		return "unknown"
	}
}

// ParseOffsetReset maps a configuration string to an OffsetReset.
func ParseOffsetReset(s string) (OffsetReset, error) {
	switch s {
	case "none", "":
		return ResetNone, nil
	case "earliest":
		return ResetEarliest, nil
	case "latest":
		return ResetLatest, nil
	default:
		return ResetNone, fmt.Errorf("unknown auto offset reset %q", s)
	}
}

// BrokerBuilder creates the dedicated broker session a consumer owns for its
// lifetime. It is invoked once during Start; a builder error fails Start.
type BrokerBuilder func() (kafka.Broker, error)

type Config struct {
	CommitInterval  time.Duration
	CommitThreshold int64
	AutoOffsetReset OffsetReset
	CommitStrategy  Strategy
	FetchOptions    kafka.FetchOptions

	BootstrapServers []string
	BrokerBuilder    BrokerBuilder

	// ExtraConsumerArgs is forwarded verbatim to the subscriber factory.
	ExtraConsumerArgs any

	// ProducerOptions is opaque configuration for the downstream stage,
	// exposed to the subscriber through PartitionConsumer.ProducerOptions.
	ProducerOptions any

	DemandTickDelay    time.Duration
	TickInterval       time.Duration
	FinalCommitTimeout time.Duration

	FetchErrorBackoff backoff.Backoff

	Logger       logger.Logger
	Telemetry    *consumeotel.Telemetry
	ErrorHandler errorhandler.Handler
}

func defaultConfig() Config {
	return Config{
		CommitInterval:     5 * time.Second,
		CommitThreshold:    100,
		AutoOffsetReset:    ResetNone,
		CommitStrategy:     StrategyAsync,
		DemandTickDelay:    5 * time.Millisecond,
		TickInterval:       10 * time.Millisecond,
		FinalCommitTimeout: 10 * time.Second,
		FetchErrorBackoff:  backoff.NewFixed(time.Second),
		Logger:             logger.NewNoopLogger(),
		Telemetry:          consumeotel.Noop(),
	}
}
