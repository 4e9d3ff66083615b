// Package consume provides a demand-driven Kafka partition consumer with
// backpressure: one consumer per (group, topic, partition) that fetches only
// when its downstream subscriber has signalled capacity, and commits offsets
// independently of delivery.
//
// The consumer state machine lives in the consumer package; the kafka package
// holds the broker session capability and an in-memory mock. This package
// carries the process-wide configuration layer: explicit options override
// environment and file settings, which override the hard-coded defaults.
package consume
