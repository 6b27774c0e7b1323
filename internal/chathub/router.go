package chathub

import (
	"chatterbox/backend/internal/metrics"
	"chatterbox/backend/internal/models"
	"chatterbox/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Publisher forwards accepted messages to other nodes.
type Publisher interface {
	PublishPublic(ctx context.Context, msg *models.ChatMessage) error
	PublishPrivate(ctx context.Context, msg *models.PrivateMessage) error
}

// RouterOptions tunes message routing.
type RouterOptions struct {
	StoreTimeout time.Duration
	// HistoryLimit is used when a history read asks for no particular size.
	HistoryLimit int
	// RequireKnownRecipient rejects private messages to usernames with no identity.
	RequireKnownRecipient bool
}

// Router validates, persists and fans out messages. Messages from one sender
// are persisted and delivered under that sender's lock, so every recipient
// sees them in the order they were accepted.
type Router struct {
	registry  *Registry
	store     *guardedStore
	publisher Publisher
	opts      RouterOptions
	log       zerolog.Logger

	locks keyLock
}

func NewRouter(registry *Registry, store storage.Storage, opts RouterOptions, log zerolog.Logger) *Router {
	if opts.HistoryLimit <= 0 || opts.HistoryLimit > MaxHistoryLimit {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Router{
		registry: registry,
		store:    newGuardedStore(store, opts.StoreTimeout),
		opts:     opts,
		log:      log.With().Str("component", "router").Logger(),
	}
}

// SetPublisher enables cross-node relaying of accepted messages.
func (r *Router) SetPublisher(p Publisher) {
	r.publisher = p
}

// SendPublic persists a public message and delivers it to every live
// connection, the sender's included. Nothing is delivered if the write fails.
func (r *Router) SendPublic(ctx context.Context, sender, content string) (*models.ChatMessage, error) {
	if err := r.validateSender(sender, content); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(sender)
	defer unlock()

	return r.appendAndBroadcast(ctx, sender, content, "public")
}

// Announce posts a message from the reserved System sender.
func (r *Router) Announce(ctx context.Context, content string) (*models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}

	unlock := r.locks.Lock(models.SystemSender)
	defer unlock()

	return r.appendAndBroadcast(ctx, models.SystemSender, content, "system")
}

func (r *Router) appendAndBroadcast(ctx context.Context, sender, content, kind string) (*models.ChatMessage, error) {
	msg, err := r.store.AppendPublicMessage(ctx, sender, content)
	if err != nil {
		r.log.Error().Err(err).Str("sender", sender).Msg("public message not persisted")
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(kind).Inc()

	r.DeliverPublic(msg)
	if r.publisher != nil {
		if err := r.publisher.PublishPublic(ctx, msg); err != nil {
			r.log.Warn().Err(err).Uint("message_id", msg.ID).Msg("relay publish failed")
		}
	}
	return msg, nil
}

// SendPrivate persists a direct message and delivers it to every live
// connection of the receiver and of the sender. A receiver with no live
// connection is not an error.
func (r *Router) SendPrivate(ctx context.Context, sender, receiver, content string) (*models.PrivateMessage, error) {
	if err := r.validateSender(sender, content); err != nil {
		return nil, err
	}
	if strings.TrimSpace(receiver) == "" {
		return nil, fmt.Errorf("%w: empty receiver", ErrInvalidMessage)
	}

	if r.opts.RequireKnownRecipient {
		if _, err := r.store.FindIdentity(ctx, receiver); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownRecipient, receiver)
			}
			return nil, err
		}
	}

	unlock := r.locks.Lock(sender)
	defer unlock()

	msg, err := r.store.AppendPrivateMessage(ctx, sender, receiver, content)
	if err != nil {
		r.log.Error().Err(err).Str("sender", sender).Str("receiver", receiver).Msg("private message not persisted")
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues("private").Inc()

	delivered := r.DeliverPrivate(msg)
	r.log.Debug().Str("sender", sender).Str("receiver", receiver).Int("delivered", delivered).Msg("private message routed")

	if r.publisher != nil {
		if err := r.publisher.PublishPrivate(ctx, msg); err != nil {
			r.log.Warn().Err(err).Uint("message_id", msg.ID).Msg("relay publish failed")
		}
	}
	return msg, nil
}

// DeliverPublic fans an already persisted public message out to local connections.
func (r *Router) DeliverPublic(msg *models.ChatMessage) int {
	return fanOut(r.log, r.registry.Clients(), models.Event{
		Type:    models.EventPublicMessage,
		Message: msg,
	})
}

// DeliverPrivate fans an already persisted private message out to the local
// connections of its receiver and sender.
func (r *Router) DeliverPrivate(msg *models.PrivateMessage) int {
	return fanOut(r.log, r.registry.ClientsFor(msg.Receiver, msg.Sender), models.Event{
		Type:           models.EventPrivateMessage,
		PrivateMessage: msg,
	})
}

// History returns recent public messages, most recent first.
func (r *Router) History(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	return r.store.RecentPublic(ctx, r.clampLimit(limit))
}

// PrivateHistory returns recent messages between userA and userB in either
// direction, most recent first.
func (r *Router) PrivateHistory(ctx context.Context, userA, userB string, limit int) ([]models.PrivateMessage, error) {
	if strings.TrimSpace(userA) == "" || strings.TrimSpace(userB) == "" {
		return nil, fmt.Errorf("%w: private history needs two usernames", ErrInvalidMessage)
	}
	return r.store.RecentPrivate(ctx, userA, userB, r.clampLimit(limit))
}

func (r *Router) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return r.opts.HistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func (r *Router) validateSender(sender, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}
	if sender == "" || !r.registry.IsOnline(sender) {
		return fmt.Errorf("%w: sender %q has no live connection", ErrInvalidMessage, sender)
	}
	return nil
}
