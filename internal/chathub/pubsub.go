package chathub

import (
	"chatterbox/backend/internal/metrics"
	"chatterbox/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRelayChannel is the Redis channel shared by all nodes.
const DefaultRelayChannel = "chat:broadcast"

const (
	relayKindPublic  = "public"
	relayKindPrivate = "private"
)

// Bus is the pub/sub transport behind the relay. storage.Service implements it
// on Redis.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
}

type relayEnvelope struct {
	NodeID         string                 `json:"node_id"`
	Kind           string                 `json:"kind"`
	Message        *models.ChatMessage    `json:"message,omitempty"`
	PrivateMessage *models.PrivateMessage `json:"private_message,omitempty"`
}

// Relay shares accepted messages between nodes. Messages are persisted once by
// the node that accepted them; receivers only deliver to their own
// connections. Presence and typing stay local to each node.
type Relay struct {
	bus     Bus
	channel string
	nodeID  string
	log     zerolog.Logger
}

func NewRelay(bus Bus, channel string, log zerolog.Logger) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	nodeID := uuid.NewString()
	return &Relay{
		bus:     bus,
		channel: channel,
		nodeID:  nodeID,
		log:     log.With().Str("component", "relay").Str("node_id", nodeID).Logger(),
	}
}

// NodeID identifies this process on the relay channel.
func (r *Relay) NodeID() string { return r.nodeID }

func (r *Relay) PublishPublic(ctx context.Context, msg *models.ChatMessage) error {
	return r.publish(ctx, relayEnvelope{Kind: relayKindPublic, Message: msg})
}

func (r *Relay) PublishPrivate(ctx context.Context, msg *models.PrivateMessage) error {
	return r.publish(ctx, relayEnvelope{Kind: relayKindPrivate, PrivateMessage: msg})
}

func (r *Relay) publish(ctx context.Context, env relayEnvelope) error {
	env.NodeID = r.nodeID
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}
	if err := r.bus.Publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	metrics.RelayEvents.WithLabelValues("published").Inc()
	return nil
}

// Listen delivers messages published by other nodes through router until ctx
// is done or the subscription ends.
func (r *Relay) Listen(ctx context.Context, router *Router) error {
	stream, closeSub, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("relay subscribe %s: %w", r.channel, err)
	}
	defer func() {
		if err := closeSub(); err != nil {
			r.log.Warn().Err(err).Msg("closing relay subscription")
		}
	}()
	r.log.Info().Str("channel", r.channel).Msg("relay listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-stream:
			if !ok {
				return nil
			}
			r.handle(payload, router)
		}
	}
}

func (r *Relay) handle(payload string, router *Router) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed relay payload")
		return
	}
	if env.NodeID == r.nodeID {
		return
	}

	switch {
	case env.Kind == relayKindPublic && env.Message != nil:
		router.DeliverPublic(env.Message)
	case env.Kind == relayKindPrivate && env.PrivateMessage != nil:
		router.DeliverPrivate(env.PrivateMessage)
	default:
		r.log.Warn().Str("kind", env.Kind).Msg("dropping relay payload without message")
		return
	}
	metrics.RelayEvents.WithLabelValues("received").Inc()
}
