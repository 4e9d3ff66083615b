package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/hugolhafner/go-consume/logger"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

var _ Broker = (*KgoBroker)(nil)

type KgoBrokerConfig struct {
	BootstrapServers []string
	ClientID         string
	DefaultFetch     FetchOptions

	Logger logger.Logger
}

func defaultBrokerConfig() KgoBrokerConfig {
	return KgoBrokerConfig{
		BootstrapServers: []string{"localhost:9092"},
		ClientID:         "go-consume",
		Logger:           logger.NewNoopLogger(),
	}
}

type KgoOption func(*KgoBrokerConfig)

func WithBootstrapServers(servers []string) KgoOption {
	return func(cfg *KgoBrokerConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithClientID(id string) KgoOption {
	return func(cfg *KgoBrokerConfig) {
		cfg.ClientID = id
	}
}

func WithDefaultFetchOptions(opts FetchOptions) KgoOption {
	return func(cfg *KgoBrokerConfig) {
		cfg.DefaultFetch = opts
	}
}

func WithLogger(l logger.Logger) KgoOption {
	return func(cfg *KgoBrokerConfig) {
		cfg.Logger = l.With("client", "kgo")
	}
}

// KgoBroker is a franz-go backed broker session. It manages no consumer group
// membership: fetches address explicit offsets and commits carry the group name
// directly, so the session can be owned by a single partition consumer.
type KgoBroker struct {
	client *kgo.Client
	config KgoBrokerConfig

	logger logger.Logger
}

func NewKgoBroker(opts ...KgoOption) (*KgoBroker, error) {
	cfg := defaultBrokerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &KgoBroker{config: cfg, logger: cfg.Logger}

	kgoOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.WithLogger(newKgoLogger(b.logger)),
	}

	client, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	b.client = client

	return b, nil
}

func (b *KgoBroker) Fetch(
	ctx context.Context, topic string, partition int32, offset int64, opts FetchOptions,
) ([]Record, error) {
	opts = mergeFetchOptions(opts, b.config.DefaultFetch).withDefaults()

	leaderID, leaderEpoch, err := b.client.PartitionLeader(topic, partition)
	if err != nil {
		return nil, fmt.Errorf("finding leader for %s-%d: %w", topic, partition, err)
	}

	req := buildFetchRequest(topic, partition, offset, leaderEpoch, opts)

	resp, err := req.RequestWith(ctx, b.client.Broker(int(leaderID)))
	if err != nil {
		return nil, fmt.Errorf("fetch %s-%d at %d: %w", topic, partition, offset, err)
	}

	if len(resp.Topics) != 1 || len(resp.Topics[0].Partitions) != 1 {
		return nil, fmt.Errorf("fetch %s-%d: malformed response", topic, partition)
	}

	rawPartition := resp.Topics[0].Partitions[0]
	if err := errorForCode(rawPartition.ErrorCode); err != nil {
		return nil, fmt.Errorf("fetch %s-%d at %d: %w", topic, partition, offset, err)
	}

	parsed, _ := kgo.ProcessFetchPartition(
		kgo.ProcessFetchPartitionOpts{
			KeepControlRecords: false,
			Offset:             offset,
			IsolationLevel:     kgo.ReadUncommitted(),
			Topic:              topic,
			Partition:          partition,
		},
		&rawPartition,
		kgo.DefaultDecompressor(),
		func(kgo.FetchBatchMetrics) {},
	)
	if parsed.Err != nil {
		return nil, fmt.Errorf("fetch %s-%d at %d: %w", topic, partition, offset, parsed.Err)
	}

	records := parsed.Records
	if opts.MaxRecords > 0 && len(records) > opts.MaxRecords {
		records = records[:opts.MaxRecords]
	}

	return convertRecords(records), nil
}

func mergeFetchOptions(opts, defaults FetchOptions) FetchOptions {
	if opts.MinBytes <= 0 {
		opts.MinBytes = defaults.MinBytes
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaults.MaxBytes
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaults.MaxWait
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = defaults.MaxRecords
	}
	return opts
}

func buildFetchRequest(
	topic string, partition int32, offset int64, leaderEpoch int32, opts FetchOptions,
) kmsg.FetchRequest {
	req := kmsg.NewFetchRequest()
	req.Version = 11
	req.MinBytes = opts.MinBytes
	req.MaxBytes = opts.MaxBytes
	req.MaxWaitMillis = int32(opts.MaxWait / time.Millisecond)

	reqTopic := kmsg.NewFetchRequestTopic()
	reqTopic.Topic = topic

	reqPartition := kmsg.NewFetchRequestTopicPartition()
	reqPartition.Partition = partition
	reqPartition.FetchOffset = offset
	reqPartition.CurrentLeaderEpoch = leaderEpoch
	reqPartition.PartitionMaxBytes = opts.MaxBytes

	reqTopic.Partitions = append(reqTopic.Partitions, reqPartition)
	req.Topics = append(req.Topics, reqTopic)
	return req
}

func (b *KgoBroker) CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, error) {
	req := kmsg.NewOffsetFetchRequest()
	req.Version = 7
	req.Group = group

	reqTopic := kmsg.NewOffsetFetchRequestTopic()
	reqTopic.Topic = topic
	reqTopic.Partitions = []int32{partition}
	req.Topics = append(req.Topics, reqTopic)

	resp, err := req.RequestWith(ctx, b.client)
	if err != nil {
		return 0, fmt.Errorf("offset fetch %s/%s-%d: %w", group, topic, partition, err)
	}

	if err := errorForCode(resp.ErrorCode); err != nil {
		return 0, fmt.Errorf("offset fetch %s/%s-%d: %w", group, topic, partition, err)
	}

	if len(resp.Topics) != 1 || len(resp.Topics[0].Partitions) != 1 {
		return 0, fmt.Errorf("offset fetch %s/%s-%d: malformed response", group, topic, partition)
	}

	p := resp.Topics[0].Partitions[0]
	if err := errorForCode(p.ErrorCode); err != nil {
		return 0, fmt.Errorf("offset fetch %s/%s-%d: %w", group, topic, partition, err)
	}

	return p.Offset, nil
}

func (b *KgoBroker) CommitOffset(ctx context.Context, group, topic string, partition int32, offset int64) error {
	req := kmsg.NewOffsetCommitRequest()
	req.Version = 7
	req.Group = group

	reqPartition := kmsg.NewOffsetCommitRequestTopicPartition()
	reqPartition.Partition = partition
	reqPartition.Offset = offset

	reqTopic := kmsg.NewOffsetCommitRequestTopic()
	reqTopic.Topic = topic
	reqTopic.Partitions = append(reqTopic.Partitions, reqPartition)
	req.Topics = append(req.Topics, reqTopic)

	resp, err := req.RequestWith(ctx, b.client)
	if err != nil {
		return fmt.Errorf("offset commit %s/%s-%d at %d: %w", group, topic, partition, offset, err)
	}

	if len(resp.Topics) != 1 || len(resp.Topics[0].Partitions) != 1 {
		return fmt.Errorf("offset commit %s/%s-%d: malformed response", group, topic, partition)
	}

	if err := errorForCode(resp.Topics[0].Partitions[0].ErrorCode); err != nil {
		return fmt.Errorf("offset commit %s/%s-%d at %d: %w", group, topic, partition, offset, err)
	}

	return nil
}

func (b *KgoBroker) EarliestOffset(ctx context.Context, topic string, partition int32) (int64, error) {
	return b.listOffset(ctx, topic, partition, -2)
}

func (b *KgoBroker) LatestOffset(ctx context.Context, topic string, partition int32) (int64, error) {
	return b.listOffset(ctx, topic, partition, -1)
}

func (b *KgoBroker) listOffset(ctx context.Context, topic string, partition int32, timestamp int64) (int64, error) {
	req := kmsg.NewListOffsetsRequest()
	req.Version = 4

	reqPartition := kmsg.NewListOffsetsRequestTopicPartition()
	reqPartition.Partition = partition
	reqPartition.Timestamp = timestamp

	reqTopic := kmsg.NewListOffsetsRequestTopic()
	reqTopic.Topic = topic
	reqTopic.Partitions = append(reqTopic.Partitions, reqPartition)
	req.Topics = append(req.Topics, reqTopic)

	resp, err := req.RequestWith(ctx, b.client)
	if err != nil {
		return 0, fmt.Errorf("list offsets %s-%d: %w", topic, partition, err)
	}

	if len(resp.Topics) != 1 || len(resp.Topics[0].Partitions) != 1 {
		return 0, fmt.Errorf("list offsets %s-%d: malformed response", topic, partition)
	}

	p := resp.Topics[0].Partitions[0]
	if err := errorForCode(p.ErrorCode); err != nil {
		return 0, fmt.Errorf("list offsets %s-%d: %w", topic, partition, err)
	}

	return p.Offset, nil
}

func (b *KgoBroker) Close() {
	b.client.Close()
}

func convertRecords(records []*kgo.Record) []Record {
	converted := make([]Record, len(records))
	for i, r := range records {
		converted[i] = Record{
			Topic:       r.Topic,
			Partition:   r.Partition,
			Offset:      r.Offset,
			Key:         r.Key,
			Value:       r.Value,
			Headers:     convertFromKgoHeaders(r.Headers),
			Timestamp:   r.Timestamp,
			LeaderEpoch: r.LeaderEpoch,
		}
	}

	return converted
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}
