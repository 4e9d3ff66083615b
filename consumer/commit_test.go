//go:build unit

package consumer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackerWith(committed, acked int64, lastCommit time.Time) offsetTracker {
	tracker := newOffsetTracker()
	tracker.load(committed, lastCommit)
	if acked > committed {
		tracker.advance(acked - 1)
	}
	return tracker
}

func TestCommitPolicy_Evaluate(t *testing.T) {
	now := time.Now()
	policy := commitPolicy{interval: 5 * time.Second, threshold: 100}

	tests := []struct {
		name        string
		strategy    Strategy
		tracker     offsetTracker
		wantVerdict commitVerdict
		wantReason  string
	}{
		{
			name:        "none never commits",
			strategy:    StrategyNone,
			tracker:     trackerWith(0, 500, now.Add(-time.Minute)),
			wantVerdict: commitSkip,
		},
		{
			name:        "sync commits any pending progress",
			strategy:    StrategySync,
			tracker:     trackerWith(0, 1, now),
			wantVerdict: commitIssue,
			wantReason:  "sync",
		},
		{
			name:        "sync skips with nothing pending",
			strategy:    StrategySync,
			tracker:     trackerWith(10, 10, now),
			wantVerdict: commitSkip,
		},
		{
			name:        "async below threshold within interval skips",
			strategy:    StrategyAsync,
			tracker:     trackerWith(0, 10, now),
			wantVerdict: commitSkip,
		},
		{
			name:        "async commits at threshold",
			strategy:    StrategyAsync,
			tracker:     trackerWith(0, 100, now),
			wantVerdict: commitIssue,
			wantReason:  "threshold",
		},
		{
			name:        "async commits past threshold",
			strategy:    StrategyAsync,
			tracker:     trackerWith(0, 250, now),
			wantVerdict: commitIssue,
			wantReason:  "threshold",
		},
		{
			name:        "async commits pending progress after interval",
			strategy:    StrategyAsync,
			tracker:     trackerWith(0, 3, now.Add(-6*time.Second)),
			wantVerdict: commitIssue,
			wantReason:  "interval",
		},
		{
			name:        "async touches after interval with nothing pending",
			strategy:    StrategyAsync,
			tracker:     trackerWith(10, 10, now.Add(-6*time.Second)),
			wantVerdict: commitTouch,
		},
		{
			name:        "async skips with nothing pending within interval",
			strategy:    StrategyAsync,
			tracker:     trackerWith(10, 10, now),
			wantVerdict: commitSkip,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				verdict, reason := policy.evaluate(tt.strategy, tt.tracker, now)

				assert.Equal(t, tt.wantVerdict, verdict)
				assert.Equal(t, tt.wantReason, reason)
			},
		)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "async_commit", want: StrategyAsync},
		{in: "async", want: StrategyAsync},
		{in: "", want: StrategyAsync},
		{in: "sync_commit", want: StrategySync},
		{in: "sync", want: StrategySync},
		{in: "none", want: StrategyNone},
		{in: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(
			tt.in, func(t *testing.T) {
				got, err := ParseStrategy(tt.in)
				if tt.wantErr {
					require.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			},
		)
	}
}

func TestParseOffsetReset(t *testing.T) {
	tests := []struct {
		in      string
		want    OffsetReset
		wantErr bool
	}{
		{in: "none", want: ResetNone},
		{in: "", want: ResetNone},
		{in: "earliest", want: ResetEarliest},
		{in: "latest", want: ResetLatest},
		{in: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(
			tt.in, func(t *testing.T) {
				got, err := ParseOffsetReset(tt.in)
				if tt.wantErr {
					require.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			},
		)
	}
}
