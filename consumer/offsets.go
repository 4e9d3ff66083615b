package consumer

import (
	"time"
)

// offsetTracker holds the offset progression for one partition:
//
//	committed <= acked <= current
//
// current is the next offset to request from the broker, acked the high-water
// mark of records handed downstream (and so commit-eligible), committed the
// mark known durable at the broker. All three are -1 until the initial offset
// load.
type offsetTracker struct {
	current   int64
	acked     int64
	committed int64

	lastCommit time.Time
	loaded     bool
}

func newOffsetTracker() offsetTracker {
	return offsetTracker{
		current:   -1,
		acked:     -1,
		committed: -1,
	}
}

// load seeds all three offsets from the initial offset load and starts the
// commit interval clock.
func (t *offsetTracker) load(offset int64, now time.Time) {
	t.current = offset
	t.acked = offset
	t.committed = offset
	t.lastCommit = now
	t.loaded = true
}

// advance moves the fetch position past an emitted batch whose final record
// sits at lastOffset. The batch becomes commit-eligible.
func (t *offsetTracker) advance(lastOffset int64) {
	t.current = lastOffset + 1
	t.acked = lastOffset + 1
}

// reset rewinds (or forwards) all three offsets after an out-of-range
// recovery. Pending progress is discarded with the old position.
func (t *offsetTracker) reset(offset int64) {
	t.current = offset
	t.acked = offset
	t.committed = offset
}

// markAcked raises acked without touching current or committed. Reports
// whether acked moved; offsets at or below the current mark are ignored.
func (t *offsetTracker) markAcked(offset int64) bool {
	if offset <= t.acked {
		return false
	}
	t.acked = offset
	return true
}

// committedTo records a successful commit of the acked offset.
func (t *offsetTracker) committedTo(now time.Time) {
	t.committed = t.acked
	t.lastCommit = now
}

// touch restarts the commit interval clock without a broker call.
func (t *offsetTracker) touch(now time.Time) {
	t.lastCommit = now
}

// pending returns the number of acked but not yet committed records.
func (t *offsetTracker) pending() int64 {
	return t.acked - t.committed
}
