package mockkafka

import (
	"fmt"
	"time"

	"github.com/hugolhafner/go-consume/kafka"
)

// RecordBuilder provides a fluent interface for building Records.
type RecordBuilder struct {
	record kafka.Record
}

// Record creates a new RecordBuilder with the given key and value.
func Record(key, value string) *RecordBuilder {
	return &RecordBuilder{
		record: kafka.Record{
			Key:       []byte(key),
			Value:     []byte(value),
			Timestamp: time.Now(),
		},
	}
}

// WithOffset sets the record's offset.
func (b *RecordBuilder) WithOffset(offset int64) *RecordBuilder {
	b.record.Offset = offset
	return b
}

// WithTimestamp sets the record's timestamp.
func (b *RecordBuilder) WithTimestamp(ts time.Time) *RecordBuilder {
	b.record.Timestamp = ts
	return b
}

// WithHeader adds a header to the record.
func (b *RecordBuilder) WithHeader(key string, value []byte) *RecordBuilder {
	b.record.Headers = append(b.record.Headers, kafka.Header{Key: key, Value: value})
	return b
}

// WithLeaderEpoch sets the leader epoch.
func (b *RecordBuilder) WithLeaderEpoch(epoch int32) *RecordBuilder {
	b.record.LeaderEpoch = epoch
	return b
}

// Build returns the constructed Record.
func (b *RecordBuilder) Build() kafka.Record {
	return b.record
}

// SimpleRecord creates a Record with just key and value as strings.
func SimpleRecord(key, value string) kafka.Record {
	return Record(key, value).Build()
}

// RecordsAt creates n records with contiguous offsets starting at the given
// offset, with generated keys and values.
func RecordsAt(startOffset int64, n int) []kafka.Record {
	records := make([]kafka.Record, n)
	for i := range records {
		offset := startOffset + int64(i)
		records[i] = Record(
			fmt.Sprintf("key-%d", offset),
			fmt.Sprintf("value-%d", offset),
		).WithOffset(offset).Build()
	}
	return records
}
