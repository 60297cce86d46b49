package gateway

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voicehub/backend/internal/voice"
)

// PresenceSubscriber consumes voice presence events the gateway publishes on
// a Redis pub/sub channel and feeds them to a handler.
type PresenceSubscriber struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewPresenceSubscriber creates a presence subscriber.
func NewPresenceSubscriber(client *redis.Client, channel string, logger *zap.Logger) *PresenceSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceSubscriber{client: client, channel: channel, logger: logger}
}

// Run subscribes and dispatches events until ctx is done. Malformed payloads
// are logged and skipped; each event is handled on its own goroutine so a
// slow debounce never blocks the stream.
func (s *PresenceSubscriber) Run(ctx context.Context, handler func(context.Context, voice.PresenceEvent)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	s.logger.Info("presence subscriber started", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev voice.PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("invalid presence payload", zap.String("raw", msg.Payload), zap.Error(err))
				continue
			}
			go handler(ctx, ev)
		}
	}
}
