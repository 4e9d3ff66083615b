//go:build unit

package consume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Empty(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)

	assert.Empty(t, s.Brokers)
	assert.Zero(t, s.CommitInterval)
	assert.Zero(t, s.CommitThreshold)

	opts, err := s.ConsumerOptions()
	require.NoError(t, err)
	assert.Empty(t, opts, "zero settings must not override any consumer default")
}

func TestLoadSettings_FromEnvironment(t *testing.T) {
	t.Setenv("CONSUME__BROKERS", "k1:9092,k2:9092")
	t.Setenv("CONSUME__COMMIT_INTERVAL", "2s")
	t.Setenv("CONSUME__COMMIT_THRESHOLD", "7")
	t.Setenv("CONSUME__COMMIT_STRATEGY", "sync_commit")
	t.Setenv("CONSUME__AUTO_OFFSET_RESET", "earliest")
	t.Setenv("CONSUME__FETCH__MAX_RECORDS", "50")

	s, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, s.Brokers)
	assert.Equal(t, 2*time.Second, s.CommitInterval)
	assert.EqualValues(t, 7, s.CommitThreshold)
	assert.Equal(t, "sync_commit", s.CommitStrategy)
	assert.Equal(t, "earliest", s.AutoOffsetReset)
	assert.Equal(t, 50, s.Fetch.MaxRecords)

	opts, err := s.ConsumerOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestLoadSettings_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consume.yaml")
	require.NoError(
		t, os.WriteFile(
			path, []byte(`
brokers:
  - localhost:9092
commit_interval: 10s
commit_threshold: 250
auto_offset_reset: latest
fetch:
  max_wait: 500ms
`,
			), 0o600,
		),
	)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, s.Brokers)
	assert.Equal(t, 10*time.Second, s.CommitInterval)
	assert.EqualValues(t, 250, s.CommitThreshold)
	assert.Equal(t, "latest", s.AutoOffsetReset)
	assert.Equal(t, 500*time.Millisecond, s.Fetch.MaxWait)
}

func TestLoadSettings_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consume.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commit_threshold: 250\n"), 0o600))

	t.Setenv("CONSUME__COMMIT_THRESHOLD", "9")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.EqualValues(t, 9, s.CommitThreshold)
}

func TestLoadSettings_MissingFileIsNotAnError(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
}

func TestSettings_ConsumerOptionsRejectsBadValues(t *testing.T) {
	_, err := Settings{CommitStrategy: "bogus"}.ConsumerOptions()
	require.Error(t, err)

	_, err = Settings{AutoOffsetReset: "bogus"}.ConsumerOptions()
	require.Error(t, err)
}
