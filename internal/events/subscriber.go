package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscriber consumes JSON events from a Redis Pub/Sub channel.
type Subscriber struct {
	client     *redis.Client
	channel    string
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewSubscriber(client *redis.Client, channel string, dispatcher *Dispatcher, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client:     client,
		channel:    channel,
		dispatcher: dispatcher,
		logger:     logger.Named("subscriber"),
	}
}

// Run subscribes and dispatches messages until ctx is done. Bad messages are
// logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info("subscribed to event channel", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload []byte) {
	e, err := Decode(payload)
	if err != nil {
		s.logger.Warn("skipping malformed event", zap.Error(err))
		return
	}
	if err := s.dispatcher.Dispatch(ctx, e); err != nil {
		s.logger.Error("event handling failed",
			zap.String("event_id", e.ID),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}
