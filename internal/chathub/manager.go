package chathub

import (
	"chatterbox/backend/internal/localization"
	"chatterbox/backend/internal/models"
	"chatterbox/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryInterval is how often failed presence writes are retried.
const DefaultRetryInterval = 10 * time.Second

// Options configures a ManagerService.
type Options struct {
	StoreTimeout          time.Duration
	RetryInterval         time.Duration
	TypingTTL             time.Duration
	HistoryLimit          int
	RequireKnownRecipient bool

	// AnnouncePresence posts "joined"/"left" system messages on presence changes.
	AnnouncePresence bool
	AnnounceLang     string
	Localizer        *localization.Localizer

	// Bus enables the cross-node relay when non-nil.
	Bus          Bus
	RelayChannel string
}

// ManagerService wires the registry, presence, router and typing tracker
// together and dispatches inbound commands from connections.
type ManagerService struct {
	Registry *Registry
	Presence *Presence
	Router   *Router
	Typing   *TypingTracker
	Relay    *Relay

	opts     Options
	validate *validator.Validate
	log      zerolog.Logger
}

func NewManagerService(store storage.Storage, opts Options, log zerolog.Logger) *ManagerService {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	registry := NewRegistry()
	typing := NewTypingTracker(registry, opts.TypingTTL, log)
	m := &ManagerService{
		Registry: registry,
		Typing:   typing,
		Presence: NewPresence(registry, store, opts.StoreTimeout, typing, log),
		Router: NewRouter(registry, store, RouterOptions{
			StoreTimeout:          opts.StoreTimeout,
			HistoryLimit:          opts.HistoryLimit,
			RequireKnownRecipient: opts.RequireKnownRecipient,
		}, log),
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "manager").Logger(),
	}

	if opts.Bus != nil {
		m.Relay = NewRelay(opts.Bus, opts.RelayChannel, log)
		m.Router.SetPublisher(m.Relay)
	}
	if opts.AnnouncePresence && opts.Localizer != nil {
		m.Presence.OnChange(m.announce)
	}
	return m
}

func (m *ManagerService) announce(ctx context.Context, change models.PresenceChange) {
	key := localization.KeyLeft
	if change.Online {
		key = localization.KeyJoined
	}
	text := m.opts.Localizer.Format(m.opts.AnnounceLang, key, change.Username)
	if _, err := m.Router.Announce(ctx, text); err != nil {
		m.log.Warn().Err(err).Str("username", change.Username).Msg("presence announcement failed")
	}
}

// Connect registers a new connection and sends it the initial sync: the
// presence snapshot followed by recent public history.
func (m *ManagerService) Connect(ctx context.Context, client Client) {
	m.Registry.Register(client)
	m.log.Debug().Str("conn_id", client.ID()).Int("connections", m.Registry.Len()).Msg("client connected")

	snapshot, err := m.Presence.Snapshot(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("snapshot served from live connections only")
	}
	client.Deliver(models.Event{Type: models.EventPresenceSnapshot, Identities: snapshot})

	history, err := m.Router.History(ctx, m.opts.HistoryLimit)
	if err != nil {
		client.Deliver(models.NewErrorEvent(ErrorCode(err), err))
		return
	}
	client.Deliver(models.Event{Type: models.EventHistory, Messages: history})
}

// Disconnect removes the connection and settles its user's presence.
func (m *ManagerService) Disconnect(ctx context.Context, client Client) {
	if err := m.Presence.OnLeave(ctx, client.ID()); err != nil {
		m.log.Error().Err(err).Str("conn_id", client.ID()).Msg("disconnect")
	}
	m.log.Debug().Str("conn_id", client.ID()).Int("connections", m.Registry.Len()).Msg("client disconnected")
}

// Handle runs one inbound command. Any error is reported to the originating
// connection as an error event and also returned.
func (m *ManagerService) Handle(ctx context.Context, client Client, cmd models.Command) error {
	err := m.dispatch(ctx, client, cmd)
	if err != nil {
		client.Deliver(models.NewErrorEvent(ErrorCode(err), err))
		m.log.Debug().Err(err).Str("conn_id", client.ID()).Str("command", string(cmd.Type)).Msg("command rejected")
	}
	return err
}

func (m *ManagerService) dispatch(ctx context.Context, client Client, cmd models.Command) error {
	if err := m.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%s: %w", cmd.Type, err)
	}

	connID := client.ID()
	switch cmd.Type {
	case models.CommandJoin:
		return m.Presence.OnJoin(ctx, connID, cmd.Username)

	case models.CommandLeave:
		err := m.Presence.OnLeave(ctx, connID)
		// The socket stays open and keeps receiving public traffic.
		m.Registry.Register(client)
		return err

	case models.CommandHistory:
		history, err := m.Router.History(ctx, cmd.Limit)
		if err != nil {
			return err
		}
		client.Deliver(models.Event{Type: models.EventHistory, Messages: history})
		return nil
	}

	username, ok := m.Registry.UsernameOf(connID)
	if !ok {
		return fmt.Errorf("%w: join before sending %s", ErrInvalidMessage, cmd.Type)
	}

	switch cmd.Type {
	case models.CommandPublicMessage:
		_, err := m.Router.SendPublic(ctx, username, cmd.Content)
		return err

	case models.CommandPrivateMessage:
		_, err := m.Router.SendPrivate(ctx, username, cmd.To, cmd.Content)
		return err

	case models.CommandTypingStart:
		m.Typing.StartTyping(username, audienceFor(username, cmd.To))
		return nil

	case models.CommandTypingStop:
		m.Typing.StopTyping(username, audienceFor(username, cmd.To))
		return nil

	case models.CommandPrivateHistory:
		history, err := m.Router.PrivateHistory(ctx, username, cmd.With, cmd.Limit)
		if err != nil {
			return err
		}
		client.Deliver(models.Event{Type: models.EventPrivateHistory, PrivateMessages: history})
		return nil
	}

	return fmt.Errorf("unsupported command %q", cmd.Type)
}

func audienceFor(username, to string) models.Audience {
	if to == "" {
		return models.PublicAudience()
	}
	return models.PrivateAudience(username, to)
}

// Run reconciles stored presence, then retries failed presence writes and
// listens on the relay until ctx is cancelled. On return every live client
// has been closed.
func (m *ManagerService) Run(ctx context.Context) error {
	if err := m.Presence.Recover(ctx); err != nil {
		m.log.Error().Err(err).Msg("presence recovery incomplete")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(m.opts.RetryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if m.Presence.Pending() == 0 {
					continue
				}
				if err := m.Presence.Retry(ctx); err != nil {
					m.log.Warn().Err(err).Int("pending", m.Presence.Pending()).Msg("presence retry")
				}
			}
		}
	})
	if m.Relay != nil {
		g.Go(func() error {
			// Without the relay this node still serves its own connections.
			if err := m.Relay.Listen(ctx, m.Router); err != nil {
				m.log.Error().Err(err).Msg("relay stopped")
			}
			return nil
		})
	}

	err := g.Wait()
	m.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *ManagerService) shutdown() {
	clients := m.Registry.Clients()
	for _, c := range clients {
		c.Close()
	}
	m.Typing.Close()
	m.log.Info().Int("closed", len(clients)).Msg("hub stopped")
}
