package consume

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/hugolhafner/go-consume/consumer"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CONSUME__"

// Settings is the process-wide configuration layer. Zero values defer to the
// consumer defaults, so only keys actually present in the file or environment
// take effect.
type Settings struct {
	Brokers []string `koanf:"brokers"`

	CommitInterval  time.Duration `koanf:"commit_interval"`
	CommitThreshold int64         `koanf:"commit_threshold"`
	AutoOffsetReset string        `koanf:"auto_offset_reset"`
	CommitStrategy  string        `koanf:"commit_strategy"`

	Fetch FetchSettings `koanf:"fetch"`
}

type FetchSettings struct {
	MinBytes   int32         `koanf:"min_bytes"`
	MaxBytes   int32         `koanf:"max_bytes"`
	MaxWait    time.Duration `koanf:"max_wait"`
	MaxRecords int           `koanf:"max_records"`
}

// LoadSettings merges an optional YAML file with CONSUME__* environment
// variables; the environment wins. A missing file is not an error.
// CONSUME__BROKERS takes a comma-separated broker list.
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load settings file %s: %w", path, err)
		}
	}

	if err := k.Load(
		env.ProviderWithValue(
			envPrefix, ".", func(key, value string) (string, any) {
				key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
				if key == "brokers" {
					return key, strings.Split(value, ",")
				}
				return key, value
			},
		), nil,
	); err != nil {
		return Settings{}, fmt.Errorf("load settings from environment: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}

	return s, nil
}

// ConsumerOptions maps the settings layer onto consumer options. Apply these
// before any explicit options so explicit values take precedence.
func (s Settings) ConsumerOptions() ([]consumer.Option, error) {
	var opts []consumer.Option

	if len(s.Brokers) > 0 {
		opts = append(opts, consumer.WithBootstrapServers(s.Brokers))
	}
	if s.CommitInterval > 0 {
		opts = append(opts, consumer.WithCommitInterval(s.CommitInterval))
	}
	if s.CommitThreshold > 0 {
		opts = append(opts, consumer.WithCommitThreshold(s.CommitThreshold))
	}

	if s.AutoOffsetReset != "" {
		reset, err := consumer.ParseOffsetReset(s.AutoOffsetReset)
		if err != nil {
			return nil, err
		}
		opts = append(opts, consumer.WithAutoOffsetReset(reset))
	}

	if s.CommitStrategy != "" {
		strategy, err := consumer.ParseStrategy(s.CommitStrategy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, consumer.WithCommitStrategy(strategy))
	}

	if s.Fetch != (FetchSettings{}) {
		opts = append(
			opts, consumer.WithFetchOptions(
				kafka.FetchOptions{
					MinBytes:   s.Fetch.MinBytes,
					MaxBytes:   s.Fetch.MaxBytes,
					MaxWait:    s.Fetch.MaxWait,
					MaxRecords: s.Fetch.MaxRecords,
				},
			),
		)
	}

	return opts, nil
}
