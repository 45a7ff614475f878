package messaging

import (
	"context"
)

// Channels
const (
	ChannelSummaries = "summaries"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw JSON payloads until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
