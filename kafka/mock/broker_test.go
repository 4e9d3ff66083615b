//go:build unit

package mockkafka_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hugolhafner/go-consume/kafka"
	mockkafka "github.com/hugolhafner/go-consume/kafka/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockBroker_ImplementsInterface(t *testing.T) {
	var _ kafka.Broker = (*mockkafka.Broker)(nil)
}

func TestMockBroker_FetchFromOffset(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.AddRecords("t", 0, mockkafka.RecordsAt(0, 5)...)

	records, err := broker.Fetch(context.Background(), "t", 0, 2, kafka.FetchOptions{})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.EqualValues(t, 2, records[0].Offset)
	assert.EqualValues(t, 4, records[2].Offset)
}

func TestMockBroker_FetchRespectsMaxRecords(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.AddRecords("t", 0, mockkafka.RecordsAt(0, 20)...)

	records, err := broker.Fetch(context.Background(), "t", 0, 0, kafka.FetchOptions{MaxRecords: 3})
	require.NoError(t, err)

	require.Len(t, records, 3)
}

func TestMockBroker_FetchAtLogEndIsEmpty(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.AddRecords("t", 0, mockkafka.RecordsAt(0, 5)...)

	records, err := broker.Fetch(context.Background(), "t", 0, 5, kafka.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMockBroker_FetchOutOfRange(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.SetLogStart("t", 0, 100)
	broker.AddRecords("t", 0, mockkafka.RecordsAt(100, 5)...)

	_, err := broker.Fetch(context.Background(), "t", 0, 50, kafka.FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, kafka.ErrOffsetOutOfRange)

	_, err = broker.Fetch(context.Background(), "t", 0, 200, kafka.FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, kafka.ErrOffsetOutOfRange)
}

func TestMockBroker_AddRecordsAssignsContiguousOffsets(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.AddRecords("t", 0, mockkafka.SimpleRecord("k1", "v1"), mockkafka.SimpleRecord("k2", "v2"))
	broker.AddRecords("t", 0, mockkafka.SimpleRecord("k3", "v3"))

	records, err := broker.Fetch(context.Background(), "t", 0, 0, kafka.FetchOptions{})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.EqualValues(t, 0, records[0].Offset)
	assert.EqualValues(t, 1, records[1].Offset)
	assert.EqualValues(t, 2, records[2].Offset)
}

func TestMockBroker_CommittedOffset(t *testing.T) {
	broker := mockkafka.NewBroker()

	offset, err := broker.CommittedOffset(context.Background(), "g", "t", 0)
	require.NoError(t, err)
	assert.EqualValues(t, -1, offset, "a group without commits reports a negative offset")

	broker.SetCommittedOffset("g", "t", 0, 42)

	offset, err = broker.CommittedOffset(context.Background(), "g", "t", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 42, offset)
}

func TestMockBroker_CommitOffset(t *testing.T) {
	broker := mockkafka.NewBroker()

	require.NoError(t, broker.CommitOffset(context.Background(), "g", "t", 0, 10))
	require.NoError(t, broker.CommitOffset(context.Background(), "g", "t", 0, 20))

	broker.AssertCommitCount(t, 2)
	broker.AssertCommittedOffset(t, "g", kafka.TopicPartition{Topic: "t", Partition: 0}, 20)

	calls := broker.CommitCalls()
	assert.EqualValues(t, 10, calls[0].Offset)
	assert.EqualValues(t, 20, calls[1].Offset)
}

func TestMockBroker_LogBounds(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.SetLogStart("t", 0, 100)
	broker.AddRecords("t", 0, mockkafka.RecordsAt(100, 5)...)

	earliest, err := broker.EarliestOffset(context.Background(), "t", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 100, earliest)

	latest, err := broker.LatestOffset(context.Background(), "t", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 105, latest)
}

func TestMockBroker_ErrorInjection(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.AddRecords("t", 0, mockkafka.RecordsAt(0, 5)...)

	fetchErr := errors.New("fetch boom")
	broker.SetFetchError(fetchErr)
	_, err := broker.Fetch(context.Background(), "t", 0, 0, kafka.FetchOptions{})
	assert.ErrorIs(t, err, fetchErr)

	broker.SetFetchError(nil)
	_, err = broker.Fetch(context.Background(), "t", 0, 0, kafka.FetchOptions{})
	assert.NoError(t, err)

	commitErr := errors.New("commit boom")
	broker.SetCommitError(commitErr)
	err = broker.CommitOffset(context.Background(), "g", "t", 0, 1)
	assert.ErrorIs(t, err, commitErr)
	broker.AssertNoCommits(t)
}

func TestMockBroker_FetchBookkeeping(t *testing.T) {
	broker := mockkafka.NewBroker()
	broker.AddRecords("t", 0, mockkafka.RecordsAt(0, 5)...)

	_, _ = broker.Fetch(context.Background(), "t", 0, 0, kafka.FetchOptions{})
	_, _ = broker.Fetch(context.Background(), "t", 0, 3, kafka.FetchOptions{})

	assert.Equal(t, 2, broker.FetchCalls())
	assert.Equal(t, []int64{0, 3}, broker.FetchOffsets())
	broker.AssertFetchedFrom(t, 3)
}

func TestMockBroker_Close(t *testing.T) {
	broker := mockkafka.NewBroker()

	broker.AssertNotClosed(t)
	broker.Close()
	broker.AssertClosed(t)
}
