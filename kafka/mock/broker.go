package mockkafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/hugolhafner/go-consume/kafka"
)

var _ kafka.Broker = (*Broker)(nil)

// CommitCall records a single CommitOffset invocation for test assertions.
type CommitCall struct {
	Group  string
	TP     kafka.TopicPartition
	Offset int64
}

type groupPartition struct {
	group string
	tp    kafka.TopicPartition
}

// Broker is an in-memory broker session. Record logs are seeded with
// AddRecords, committed offsets with SetCommittedOffset; every RPC can be made
// to fail via the Set*Error hooks.
type Broker struct {
	mu sync.RWMutex

	logs      map[kafka.TopicPartition][]kafka.Record
	logStarts map[kafka.TopicPartition]int64

	committedOffsets map[groupPartition]int64
	commitCalls      []CommitCall

	fetchCalls   int
	fetchOffsets []int64

	maxFetchRecords int

	fetchErr       func(offset int64) error
	commitErr      func() error
	offsetFetchErr func() error
	listErr        func() error

	closed bool
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		logs:             make(map[kafka.TopicPartition][]kafka.Record),
		logStarts:        make(map[kafka.TopicPartition]int64),
		committedOffsets: make(map[groupPartition]int64),
		maxFetchRecords:  10,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// AddRecords appends records to the partition log. Topic, partition and
// contiguous offsets are filled in when unset, continuing from the current
// log end.
func (b *Broker) AddRecords(topic string, partition int32, records ...kafka.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	log := b.logs[tp]

	next := b.logStartLocked(tp)
	if len(log) > 0 {
		next = log[len(log)-1].Offset + 1
	}

	for i := range records {
		if records[i].Topic == "" {
			records[i].Topic = topic
		}
		records[i].Partition = partition
		if records[i].Offset == 0 && next != 0 {
			records[i].Offset = next
		}
		next = records[i].Offset + 1
	}

	b.logs[tp] = append(log, records...)
}

// SetLogStart sets the earliest retained offset for a partition, simulating
// retention truncation. Records below it are dropped from the log.
func (b *Broker) SetLogStart(topic string, partition int32, offset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	b.logStarts[tp] = offset

	log := b.logs[tp]
	trimmed := log[:0]
	for _, r := range log {
		if r.Offset >= offset {
			trimmed = append(trimmed, r)
		}
	}
	b.logs[tp] = trimmed
}

// SetCommittedOffset seeds the durable committed offset for a group.
func (b *Broker) SetCommittedOffset(group, topic string, partition int32, offset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	b.committedOffsets[groupPartition{group: group, tp: tp}] = offset
}

func (b *Broker) Fetch(
	ctx context.Context, topic string, partition int32, offset int64, opts kafka.FetchOptions,
) ([]kafka.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	b.fetchCalls++
	b.fetchOffsets = append(b.fetchOffsets, offset)

	if b.fetchErr != nil {
		if err := b.fetchErr(offset); err != nil {
			return nil, err
		}
	}

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	start := b.logStartLocked(tp)
	end := b.logEndLocked(tp)

	if offset < start || offset > end {
		return nil, fmt.Errorf("fetch %s at %d (log %d..%d): %w", tp, offset, start, end, kafka.ErrOffsetOutOfRange)
	}

	limit := b.maxFetchRecords
	if opts.MaxRecords > 0 && opts.MaxRecords < limit {
		limit = opts.MaxRecords
	}

	var records []kafka.Record
	for _, r := range b.logs[tp] {
		if r.Offset < offset {
			continue
		}
		records = append(records, r)
		if len(records) >= limit {
			break
		}
	}

	return records, nil
}

func (b *Broker) CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.offsetFetchErr != nil {
		if err := b.offsetFetchErr(); err != nil {
			return 0, err
		}
	}

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	offset, ok := b.committedOffsets[groupPartition{group: group, tp: tp}]
	if !ok {
		return -1, nil
	}
	return offset, nil
}

func (b *Broker) CommitOffset(ctx context.Context, group, topic string, partition int32, offset int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.commitErr != nil {
		if err := b.commitErr(); err != nil {
			return err
		}
	}

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	b.committedOffsets[groupPartition{group: group, tp: tp}] = offset
	b.commitCalls = append(b.commitCalls, CommitCall{Group: group, TP: tp, Offset: offset})

	return nil
}

func (b *Broker) EarliestOffset(ctx context.Context, topic string, partition int32) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.listErr != nil {
		if err := b.listErr(); err != nil {
			return 0, err
		}
	}

	return b.logStartLocked(kafka.TopicPartition{Topic: topic, Partition: partition}), nil
}

func (b *Broker) LatestOffset(ctx context.Context, topic string, partition int32) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.listErr != nil {
		if err := b.listErr(); err != nil {
			return 0, err
		}
	}

	return b.logEndLocked(kafka.TopicPartition{Topic: topic, Partition: partition}), nil
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}

func (b *Broker) logStartLocked(tp kafka.TopicPartition) int64 {
	if start, ok := b.logStarts[tp]; ok {
		return start
	}
	if log := b.logs[tp]; len(log) > 0 {
		return log[0].Offset
	}
	return 0
}

func (b *Broker) logEndLocked(tp kafka.TopicPartition) int64 {
	if log := b.logs[tp]; len(log) > 0 {
		return log[len(log)-1].Offset + 1
	}
	return b.logStartLocked(tp)
}

// SetFetchError configures an error to be returned on all Fetch calls.
// Pass nil to clear the error.
func (b *Broker) SetFetchError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.fetchErr = nil
	} else {
		b.fetchErr = func(int64) error { return err }
	}
}

// SetFetchErrorFunc configures a function to determine Fetch errors.
// The function receives the requested offset and can fail conditionally.
func (b *Broker) SetFetchErrorFunc(fn func(offset int64) error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fetchErr = fn
}

// SetCommitError configures an error to be returned on all CommitOffset calls.
func (b *Broker) SetCommitError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.commitErr = nil
	} else {
		b.commitErr = func() error { return err }
	}
}

// SetCommitErrorFunc configures a function to determine CommitOffset errors.
func (b *Broker) SetCommitErrorFunc(fn func() error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commitErr = fn
}

// SetOffsetFetchError configures an error to be returned on CommittedOffset calls.
func (b *Broker) SetOffsetFetchError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.offsetFetchErr = nil
	} else {
		b.offsetFetchErr = func() error { return err }
	}
}

// SetListOffsetsError configures an error for EarliestOffset/LatestOffset calls.
func (b *Broker) SetListOffsetsError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.listErr = nil
	} else {
		b.listErr = func() error { return err }
	}
}

// CommitCalls returns a copy of all CommitOffset invocations in order.
func (b *Broker) CommitCalls() []CommitCall {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]CommitCall, len(b.commitCalls))
	copy(result, b.commitCalls)
	return result
}

// CommittedFor returns the committed offset for a group-partition.
// Returns (offset, true) if committed, (0, false) otherwise.
func (b *Broker) CommittedFor(group string, tp kafka.TopicPartition) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	offset, ok := b.committedOffsets[groupPartition{group: group, tp: tp}]
	return offset, ok
}

// FetchCalls returns the number of Fetch invocations.
func (b *Broker) FetchCalls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.fetchCalls
}

// FetchOffsets returns the offsets requested by each Fetch call in order.
func (b *Broker) FetchOffsets() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]int64, len(b.fetchOffsets))
	copy(result, b.fetchOffsets)
	return result
}

// IsClosed returns whether Close has been called.
func (b *Broker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.closed
}
