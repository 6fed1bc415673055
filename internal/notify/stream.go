package notify

import (
	"context"
	"fmt"

	commonredis "emmo-data/internal/common/redis"

	"github.com/go-redis/redis/v8"
)

// streamMaxLen caps the event stream; consumers are expected to keep up.
const streamMaxLen = 10000

// StreamNotifier appends events to a Redis stream.
type StreamNotifier struct {
	client *redis.Client
	stream string
}

func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream}
}

func (n *StreamNotifier) Notify(ctx context.Context, ev StatusChangedEvent) error {
	if _, err := commonredis.PublishJSONToStream(ctx, n.client, n.stream, streamMaxLen, ev); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", n.stream, err)
	}
	return nil
}
