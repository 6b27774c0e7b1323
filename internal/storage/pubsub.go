package storage

import (
	"context"
	"errors"
)

// ErrRelayDisabled is returned by the pub/sub methods when no Redis client is configured.
var ErrRelayDisabled = errors.New("storage: redis relay not configured")

// Publish sends payload on a Redis channel.
func (s *Service) Publish(ctx context.Context, channel string, payload []byte) error {
	if s.Redis == nil {
		return ErrRelayDisabled
	}
	return s.Redis.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on a Redis channel. The returned stream is closed when ctx
// is cancelled or the close function is called.
func (s *Service) Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error) {
	if s.Redis == nil {
		return nil, nil, ErrRelayDisabled
	}

	pubsub := s.Redis.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so publishes right after return are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, pubsub.Close, nil
}

// Ping checks the Redis connection, if any.
func (s *Service) Ping(ctx context.Context) error {
	if s.Redis == nil {
		return ErrRelayDisabled
	}
	return s.Redis.Ping(ctx).Err()
}
