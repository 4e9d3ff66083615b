package mockkafka

import (
	"testing"

	"github.com/hugolhafner/go-consume/kafka"
	"github.com/stretchr/testify/require"
)

// AssertCommitted verifies that an offset was committed for the group-partition.
func (b *Broker) AssertCommitted(tb testing.TB, group string, tp kafka.TopicPartition) {
	tb.Helper()

	_, ok := b.CommittedFor(group, tp)
	require.True(tb, ok, "committed offset not found for %s/%s", group, tp)
}

// AssertCommittedOffset verifies that a specific offset is durable for the group-partition.
func (b *Broker) AssertCommittedOffset(tb testing.TB, group string, tp kafka.TopicPartition, expected int64) {
	tb.Helper()

	actual, ok := b.CommittedFor(group, tp)
	require.True(tb, ok, "expected offset %d to be committed for %s/%s, but none found", expected, group, tp)
	require.Equal(tb, expected, actual, "expected offset %d to be committed for %s/%s, got %d", expected, group, tp, actual)
}

// AssertCommitCount verifies the number of commit RPCs issued.
func (b *Broker) AssertCommitCount(tb testing.TB, expected int) {
	tb.Helper()

	actual := len(b.CommitCalls())
	require.Equal(tb, expected, actual, "expected %d commit calls, got %d", expected, actual)
}

// AssertNoCommits verifies that no commit RPC was issued.
func (b *Broker) AssertNoCommits(tb testing.TB) {
	tb.Helper()

	calls := b.CommitCalls()
	require.Empty(tb, calls, "expected no commit calls, got %d", len(calls))
}

// AssertFetchedFrom verifies that some Fetch call requested the given offset.
func (b *Broker) AssertFetchedFrom(tb testing.TB, offset int64) {
	tb.Helper()

	for _, o := range b.FetchOffsets() {
		if o == offset {
			return
		}
	}

	tb.Errorf("expected a fetch from offset %d, fetches were %v", offset, b.FetchOffsets())
}

// AssertClosed verifies that Close() was called.
func (b *Broker) AssertClosed(tb testing.TB) {
	tb.Helper()

	require.True(tb, b.IsClosed(), "expected broker to be closed")
}

// AssertNotClosed verifies that Close() was not called.
func (b *Broker) AssertNotClosed(tb testing.TB) {
	tb.Helper()

	require.False(tb, b.IsClosed(), "expected broker to not be closed, but it is")
}
