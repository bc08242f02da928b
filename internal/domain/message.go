package domain

import (
	"context"
	"time"
)

// InboundMessage is a record read from the attestation topic, carrying the
// offset commit for its source.
type InboundMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
	Commit    func(ctx context.Context) error
}
