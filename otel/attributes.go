package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrFetchStatus  = attribute.Key("consume.fetch.status")
	AttrCommitStatus = attribute.Key("consume.commit.status")
	AttrCommitReason = attribute.Key("consume.commit.reason")
	AttrErrorPhase   = attribute.Key("consume.error.phase")
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Commit reason values
const (
	CommitReasonThreshold = "threshold"
	CommitReasonInterval  = "interval"
	CommitReasonSync      = "sync"
	CommitReasonTriggered = "triggered"
	CommitReasonShutdown  = "shutdown"
)
