package relay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

// Redis fans broadcasts out across processes. Producers publish through it
// and every process, this one included, delivers what it receives on the
// channel to its own hub.
type Redis struct {
	client  *redis.Client
	channel string
	local   hub.Broadcaster
	logger  logger.Logger
}

var _ hub.Broadcaster = (*Redis)(nil)

func NewRedis(client *redis.Client, channel string, local hub.Broadcaster, logger logger.Logger) *Redis {
	return &Redis{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.WithFields(map[string]any{"component": "relay", "channel": channel}),
	}
}

// Broadcast publishes message to the channel. Publish failures are logged;
// the message is then lost for every process.
func (r *Redis) Broadcast(ctx context.Context, message hub.Message) {
	if err := r.client.Publish(ctx, r.channel, []byte(message)).Err(); err != nil {
		r.logger.Errorf("Failed to publish message: %v", err)
	}
}

// Run subscribes to the channel and hands every payload to the local hub
// until ctx is cancelled.
func (r *Redis) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("Subscribed to broadcast channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Relay stopped")
			return nil

		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.local.Broadcast(ctx, hub.Message(msg.Payload))
		}
	}
}
