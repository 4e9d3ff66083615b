package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
	consumeotel "github.com/hugolhafner/go-consume/otel"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrSubscriberTerminated is the terminal error when the linked subscriber
// died and took the consumer down with it.
var ErrSubscriberTerminated = errors.New("subscriber terminated")

type commitRequest struct {
	strategy Strategy
	offset   int64
}

// PartitionConsumer fetches records for a single (group, topic, partition)
// on downstream demand, forwards them to its linked subscriber, and commits
// offsets independently of delivery.
//
// All state lives on one goroutine: demand signals, commit triggers, timer
// ticks and shutdown are processed one at a time, so no step ever observes a
// half-applied offset transition.
type PartitionConsumer struct {
	group     string
	topic     string
	partition int32

	broker     kafka.Broker
	subscriber Subscriber
	config     Config
	policy     commitPolicy
	handler    errorhandler.Handler

	demandCh chan int64
	commitCh chan commitRequest
	stopCh   chan struct{}
	doneCh   chan struct{}

	stopOnce sync.Once
	cancel   context.CancelFunc

	// owned by the run goroutine
	offsets     offsetTracker
	demand      int64
	errAttempts uint

	// written by the run goroutine before doneCh closes
	terminalErr error

	logger    logger.Logger
	telemetry *consumeotel.Telemetry
}

// Start creates the broker session, spawns and links the subscriber, and
// begins serving demand. No offsets are loaded until the first demand signal
// arrives.
//
// The consumer terminates when ctx is cancelled, Stop is called, the
// subscriber dies, or a fatal broker condition occurs. Termination always
// runs one best-effort final commit and releases the broker session.
func Start(
	ctx context.Context,
	group, topic string,
	partition int32,
	factory SubscriberFactory,
	opts ...Option,
) (*PartitionConsumer, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	l := config.Logger.With(
		"component", "partition-consumer",
		"group", group,
		"topic", topic,
		"partition", partition,
	)

	handler := config.ErrorHandler
	if handler == nil {
		handler = errorhandler.NewPhaseRouter(
			errorhandler.ContinueRetriable(l),
			nil,
			errorhandler.LogAndFail(l),
			errorhandler.LogAndContinue(l),
		)
	}

	builder := config.BrokerBuilder
	if builder == nil {
		servers := config.BootstrapServers
		clientID := fmt.Sprintf("%s-%s-%d", group, topic, partition)
		brokerLogger := config.Logger
		builder = func() (kafka.Broker, error) {
			kgoOpts := []kafka.KgoOption{
				kafka.WithClientID(clientID),
				kafka.WithLogger(brokerLogger),
				kafka.WithDefaultFetchOptions(config.FetchOptions),
			}
			if len(servers) > 0 {
				kgoOpts = append(kgoOpts, kafka.WithBootstrapServers(servers))
			}
			return kafka.NewKgoBroker(kgoOpts...)
		}
	}

	broker, err := builder()
	if err != nil {
		return nil, fmt.Errorf("create broker session: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	pc := &PartitionConsumer{
		group:     group,
		topic:     topic,
		partition: partition,
		broker:    broker,
		config:    config,
		policy:    commitPolicy{interval: config.CommitInterval, threshold: config.CommitThreshold},
		handler:   handler,
		demandCh:  make(chan int64, 16),
		commitCh:  make(chan commitRequest, 16),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		cancel:    cancel,
		offsets:   newOffsetTracker(),
		logger:    l,
		telemetry: config.Telemetry,
	}

	subscriber, err := factory(pc, topic, partition, config.ExtraConsumerArgs)
	if err != nil {
		cancel()
		broker.Close()
		return nil, fmt.Errorf("start subscriber: %w", err)
	}
	pc.subscriber = subscriber

	pc.telemetry.ConsumersActive.Add(runCtx, 1)

	// Stop must also unblock a consumer suspended in a broker RPC or in
	// Deliver, so it cancels the run context as well
	go func() {
		select {
		case <-pc.stopCh:
			cancel()
		case <-pc.doneCh:
		}
	}()

	go pc.run(runCtx)

	return pc, nil
}

// Partition returns the topic-partition this consumer owns.
func (c *PartitionConsumer) Partition() kafka.TopicPartition {
	return kafka.TopicPartition{Topic: c.topic, Partition: c.partition}
}

// Group returns the consumer group name.
func (c *PartitionConsumer) Group() string {
	return c.group
}

// ProducerOptions returns the opaque downstream-stage configuration the
// consumer was started with.
func (c *PartitionConsumer) ProducerOptions() any {
	return c.config.ProducerOptions
}

// Ask signals that the subscriber is ready for n more records. Demand
// accumulates; asking for zero or less is a no-op. Safe to call from any
// goroutine; a no-op once the consumer has stopped.
func (c *PartitionConsumer) Ask(n int64) {
	if n <= 0 {
		return
	}
	select {
	case c.demandCh <- n:
	case <-c.doneCh:
	}
}

// TriggerCommit asynchronously raises the acked offset and runs the commit
// policy under the given strategy. Offsets at or below the current acked mark
// are ignored; acked never regresses.
func (c *PartitionConsumer) TriggerCommit(strategy Strategy, offset int64) {
	select {
	case c.commitCh <- commitRequest{strategy: strategy, offset: offset}:
	case <-c.doneCh:
	}
}

// Stop requests termination and waits for it to complete or ctx to expire.
func (c *PartitionConsumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s to stop: %w", c.Partition(), ctx.Err())
	}
}

// Done is closed once the consumer has fully terminated.
func (c *PartitionConsumer) Done() <-chan struct{} {
	return c.doneCh
}

// Err returns the terminal error after the consumer has stopped, or nil for a
// clean shutdown. It returns nil while the consumer is still running.
func (c *PartitionConsumer) Err() error {
	select {
	case <-c.doneCh:
		return c.terminalErr
	default:
		return nil
	}
}

func (c *PartitionConsumer) tp() kafka.TopicPartition {
	return kafka.TopicPartition{Topic: c.topic, Partition: c.partition}
}

func (c *PartitionConsumer) run(ctx context.Context) {
	defer close(c.doneCh)

	tick := time.NewTimer(time.Hour)
	if !tick.Stop() {
		<-tick.C
	}
	defer tick.Stop()

	c.logger.Debug("Partition consumer started")

	for {
		select {
		case <-ctx.Done():
			c.terminate(nil)
			return

		case <-c.stopCh:
			c.terminate(nil)
			return

		case <-c.subscriber.Done():
			c.logger.Info("Subscriber terminated, shutting down")
			c.terminate(ErrSubscriberTerminated)
			return

		case n := <-c.demandCh:
			if err := c.onDemand(ctx, n, tick); err != nil {
				c.finish(err)
				return
			}

		case req := <-c.commitCh:
			if err := c.onTriggerCommit(ctx, req); err != nil {
				c.finish(err)
				return
			}

		case <-tick.C:
			if err := c.onTick(ctx, tick); err != nil {
				c.finish(err)
				return
			}
		}
	}
}

// onDemand stores incoming demand. The very first signal also performs the
// initial offset load; no fetch happens on the signal itself, only on the
// tick it schedules.
func (c *PartitionConsumer) onDemand(ctx context.Context, n int64, tick *time.Timer) error {
	if !c.offsets.loaded {
		if err := c.loadInitialOffset(ctx); err != nil {
			return err
		}
	}

	c.demand += n
	c.telemetry.Demand.Add(
		ctx, n, metric.WithAttributes(
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(c.partition), 10)),
		),
	)

	if c.offsets.loaded && c.demand > 0 {
		scheduleTick(tick, c.config.DemandTickDelay)
	}
	return nil
}

// loadInitialOffset resolves the starting position: the group's committed
// offset, or the earliest retained offset when the group has none. Returns
// nil with offsets still unloaded when the handler absorbed the failure; the
// next demand signal retries.
func (c *PartitionConsumer) loadInitialOffset(ctx context.Context) error {
	ec := errorhandler.NewErrorContext(c.group, c.tp(), nil).WithPhase(errorhandler.PhaseOffsetLoad)

	for {
		offset, err := c.committedOrEarliest(ctx)
		if err == nil {
			c.offsets.load(offset, time.Now())
			c.logger.Debug("Offsets loaded", "offset", offset)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.telemetry.Errors.Add(
			ctx, 1, metric.WithAttributes(consumeotel.AttrErrorPhase.String(errorhandler.PhaseOffsetLoad.String())),
		)

		ec = ec.WithError(err)
		switch c.handler.Handle(ctx, ec).Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
			continue

		case errorhandler.ActionTypeContinue:
			c.logger.Warn("Offset load failed, waiting for next demand signal", "error", err)
			return nil

		default:
			return fmt.Errorf("load offsets: %w", err)
		}
	}
}

func (c *PartitionConsumer) committedOrEarliest(ctx context.Context) (int64, error) {
	committed, err := c.broker.CommittedOffset(ctx, c.group, c.topic, c.partition)
	switch {
	case err == nil && committed >= 0:
		return committed, nil
	case err != nil && !kafka.IsUnknownTopicOrPartition(err):
		return 0, err
	}

	// the group has no commit for this partition: start from the earliest
	// retained offset
	earliest, err := c.broker.EarliestOffset(ctx, c.topic, c.partition)
	if err != nil {
		return 0, err
	}
	return earliest, nil
}

// onTick runs one fetch step while demand remains. Ticks with no outstanding
// demand are no-ops; the next demand signal restarts the loop.
func (c *PartitionConsumer) onTick(ctx context.Context, tick *time.Timer) error {
	if !c.offsets.loaded || c.demand <= 0 {
		return nil
	}

	delay, err := c.fetchStep(ctx)
	if err != nil {
		return err
	}

	if delay <= 0 {
		delay = c.config.TickInterval
	}
	if c.demand > 0 {
		scheduleTick(tick, delay)
	}
	return nil
}

// fetchStep issues one bounded fetch at the current position, emits the batch
// downstream, and runs the commit policy once. The returned delay overrides
// the tick interval for the next step, used to back off after absorbed fetch
// errors.
func (c *PartitionConsumer) fetchStep(ctx context.Context) (time.Duration, error) {
	ec := errorhandler.NewErrorContext(c.group, c.tp(), nil).
		WithPhase(errorhandler.PhaseFetch).
		WithOffset(c.offsets.current)

	for {
		records, err := c.fetchOnce(ctx)
		if err == nil {
			c.errAttempts = 0
			return 0, c.finishStep(ctx, records)
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		if kafka.IsOffsetOutOfRange(err) {
			recovered, rerr := c.resetOffsets(ctx, err)
			if rerr != nil {
				return 0, rerr
			}
			if !recovered {
				c.errAttempts++
				return c.config.FetchErrorBackoff.Next(c.errAttempts), nil
			}
			// the reset step yields zero records
			c.errAttempts = 0
			return 0, c.finishStep(ctx, nil)
		}

		c.telemetry.Errors.Add(
			ctx, 1, metric.WithAttributes(consumeotel.AttrErrorPhase.String(errorhandler.PhaseFetch.String())),
		)

		ec = ec.WithError(err)
		switch c.handler.Handle(ctx, ec).Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
			continue

		case errorhandler.ActionTypeContinue:
			// no offsets moved; the next tick retries from the same position
			c.errAttempts++
			return c.config.FetchErrorBackoff.Next(c.errAttempts), nil

		default:
			return 0, fmt.Errorf("fetch %s at %d: %w", c.tp(), c.offsets.current, err)
		}
	}
}

func (c *PartitionConsumer) fetchOnce(ctx context.Context) ([]kafka.Record, error) {
	opts := c.config.FetchOptions
	// never request more than the subscriber asked for
	if opts.MaxRecords <= 0 || int64(opts.MaxRecords) > c.demand {
		opts.MaxRecords = int(c.demand)
	}

	start := time.Now()
	records, err := c.broker.Fetch(ctx, c.topic, c.partition, c.offsets.current, opts)

	status := consumeotel.StatusSuccess
	if err != nil {
		status = consumeotel.StatusError
	}
	c.telemetry.FetchDuration.Record(
		ctx, time.Since(start).Seconds(), metric.WithAttributes(
			consumeotel.AttrFetchStatus.String(status),
		),
	)

	if err != nil {
		return nil, err
	}

	c.telemetry.RecordsFetched.Add(
		ctx, int64(len(records)), metric.WithAttributes(
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(c.partition), 10)),
		),
	)
	return records, nil
}

// finishStep advances offsets past the batch, emits it downstream and runs
// the commit policy once with the step's effective strategy.
func (c *PartitionConsumer) finishStep(ctx context.Context, records []kafka.Record) error {
	strategy := c.config.CommitStrategy

	if n := len(records); n == 0 || records[n-1].Offset < 0 {
		// empty batch, or a batch whose final record carries no offset: emit
		// as-is, leave offsets where they are, and downgrade the step to the
		// async policy so unchanged offsets never force a sync commit
		strategy = StrategyAsync
	} else {
		last := records[n-1].Offset
		c.offsets.advance(last)

		delivered := int64(n)
		decremented := min(delivered, c.demand)
		c.demand -= decremented
		c.telemetry.Demand.Add(
			ctx, -decremented, metric.WithAttributes(
				semconv.MessagingDestinationName(c.topic),
				semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(c.partition), 10)),
			),
		)
	}

	if err := c.deliver(ctx, records); err != nil {
		return fmt.Errorf("deliver batch: %w", err)
	}

	return c.commitStep(ctx, strategy)
}

func (c *PartitionConsumer) deliver(ctx context.Context, records []kafka.Record) error {
	tel := c.telemetry

	if len(records) > 0 {
		carrier := consumeotel.NewKafkaHeadersCarrier(&records[0].Headers)
		ctx = tel.Propagator.Extract(ctx, carrier)
	}

	ctx, span := tel.Tracer.Start(
		ctx, c.topic+" deliver",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationTypeProcess,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(c.partition), 10)),
			semconv.MessagingConsumerGroupName(c.group),
			semconv.MessagingBatchMessageCount(len(records)),
		),
	)
	defer span.End()

	if err := c.subscriber.Deliver(ctx, records); err != nil {
		span.RecordError(err)
		return err
	}

	tel.RecordsDelivered.Add(
		ctx, int64(len(records)), metric.WithAttributes(
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(c.partition), 10)),
		),
	)
	return nil
}

// resetOffsets recovers from an out-of-range fetch position per the
// configured policy. Returns (false, nil) when the offset lookup failed and
// was absorbed; the next tick re-enters the same recovery.
func (c *PartitionConsumer) resetOffsets(ctx context.Context, cause error) (bool, error) {
	var lookup func(context.Context, string, int32) (int64, error)
	switch c.config.AutoOffsetReset {
	case ResetEarliest:
		lookup = c.broker.EarliestOffset
	case ResetLatest:
		lookup = c.broker.LatestOffset
	default:
		return false, fmt.Errorf("offset %d out of range and auto offset reset disabled: %w", c.offsets.current, cause)
	}

	ec := errorhandler.NewErrorContext(c.group, c.tp(), nil).
		WithPhase(errorhandler.PhaseOffsetLoad).
		WithOffset(c.offsets.current)

	for {
		offset, err := lookup(ctx, c.topic, c.partition)
		if err == nil {
			c.logger.Warn(
				"Fetch position out of range, resetting",
				"from", c.offsets.current,
				"to", offset,
				"policy", c.config.AutoOffsetReset.String(),
			)
			c.offsets.reset(offset)
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		c.telemetry.Errors.Add(
			ctx, 1, metric.WithAttributes(consumeotel.AttrErrorPhase.String(errorhandler.PhaseOffsetLoad.String())),
		)

		ec = ec.WithError(err)
		switch c.handler.Handle(ctx, ec).Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
			continue

		case errorhandler.ActionTypeContinue:
			return false, nil

		default:
			return false, fmt.Errorf("offset reset lookup: %w", err)
		}
	}
}

// onTriggerCommit raises acked and runs the policy under the requested
// strategy. Offsets at or below the acked mark leave it untouched, so the
// trigger is idempotent; the policy itself only commits pending progress.
func (c *PartitionConsumer) onTriggerCommit(ctx context.Context, req commitRequest) error {
	if !c.offsets.loaded {
		c.logger.Warn("Ignoring commit trigger before offsets are loaded", "offset", req.offset)
		return nil
	}

	c.offsets.markAcked(req.offset)

	return c.commitStep(ctx, req.strategy)
}

// commitStep runs the commit policy once and performs the broker commit when
// it is due.
func (c *PartitionConsumer) commitStep(ctx context.Context, strategy Strategy) error {
	verdict, reason := c.policy.evaluate(strategy, c.offsets, time.Now())
	switch verdict {
	case commitTouch:
		c.offsets.touch(time.Now())
		return nil
	case commitSkip:
		return nil
	}
	return c.commit(ctx, reason)
}

// commit flushes the acked offset to the broker. A failed commit leaves
// committed untouched so the next eligible step retries.
func (c *PartitionConsumer) commit(ctx context.Context, reason string) error {
	ec := errorhandler.NewErrorContext(c.group, c.tp(), nil).
		WithPhase(errorhandler.PhaseCommit).
		WithOffset(c.offsets.acked)

	for {
		start := time.Now()
		err := c.broker.CommitOffset(ctx, c.group, c.topic, c.partition, c.offsets.acked)

		status := consumeotel.StatusSuccess
		if err != nil {
			status = consumeotel.StatusError
		}
		c.telemetry.CommitDuration.Record(
			ctx, time.Since(start).Seconds(), metric.WithAttributes(
				consumeotel.AttrCommitStatus.String(status),
			),
		)

		if err == nil {
			c.offsets.committedTo(time.Now())
			c.telemetry.Commits.Add(
				ctx, 1, metric.WithAttributes(consumeotel.AttrCommitReason.String(reason)),
			)
			c.logger.Debug("Offsets committed", "offset", c.offsets.committed, "reason", reason)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.telemetry.Errors.Add(
			ctx, 1, metric.WithAttributes(consumeotel.AttrErrorPhase.String(errorhandler.PhaseCommit.String())),
		)

		ec = ec.WithError(err)
		switch c.handler.Handle(ctx, ec).Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
			continue

		case errorhandler.ActionTypeContinue:
			// committed stays put; the next eligible step retries
			return nil

		default:
			return fmt.Errorf("commit offset %d: %w", c.offsets.acked, err)
		}
	}
}

// finish maps cancellation, which is how Stop interrupts a suspended step,
// onto a clean shutdown before terminating.
func (c *PartitionConsumer) finish(err error) {
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	c.terminate(err)
}

// terminate runs one best-effort final commit, stops the subscriber and
// releases the broker session. Runs on every shutdown path.
func (c *PartitionConsumer) terminate(cause error) {
	c.logger.Info("Terminating", "reason", terminationReason(cause))

	if c.offsets.loaded && c.offsets.pending() > 0 {
		commitCtx, commitCancel := context.WithTimeout(context.Background(), c.config.FinalCommitTimeout)
		if err := c.broker.CommitOffset(commitCtx, c.group, c.topic, c.partition, c.offsets.acked); err != nil {
			c.logger.Error("Final commit failed", "offset", c.offsets.acked, "error", err)
		} else {
			c.offsets.committedTo(time.Now())
			c.telemetry.Commits.Add(
				commitCtx, 1, metric.WithAttributes(
					consumeotel.AttrCommitReason.String(consumeotel.CommitReasonShutdown),
				),
			)
		}
		commitCancel()
	}

	c.cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), c.config.FinalCommitTimeout)
	if err := c.subscriber.Stop(stopCtx); err != nil {
		c.logger.Warn("Subscriber stop failed", "error", err)
	}
	stopCancel()

	c.broker.Close()
	c.telemetry.ConsumersActive.Add(context.Background(), -1)

	c.terminalErr = cause
	c.logger.Info("Partition consumer stopped")
}

func terminationReason(cause error) string {
	if cause == nil {
		return "stop"
	}
	return cause.Error()
}

func scheduleTick(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
