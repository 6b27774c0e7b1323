package chathub

import (
	"chatterbox/backend/internal/metrics"
	"chatterbox/backend/internal/models"
	"chatterbox/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// PresenceHook is called after a presence change has been broadcast.
type PresenceHook func(ctx context.Context, change models.PresenceChange)

type pendingWrite struct {
	online bool
	at     time.Time
}

// Presence derives online/offline transitions from the registry, persists
// them and broadcasts presence_changed events.
//
// A username is online iff the registry holds at least one connection for it.
// Transitions for one username are serialized; the published map records the
// last state that was broadcast so every transition is announced exactly once.
type Presence struct {
	registry *Registry
	store    *guardedStore
	typing   *TypingTracker
	log      zerolog.Logger
	now      func() time.Time

	locks keyLock

	mu        sync.Mutex
	published map[string]bool
	pending   map[string]pendingWrite
	hooks     []PresenceHook
}

func NewPresence(registry *Registry, store storage.Storage, storeTimeout time.Duration, typing *TypingTracker, log zerolog.Logger) *Presence {
	return &Presence{
		registry:  registry,
		store:     newGuardedStore(store, storeTimeout),
		typing:    typing,
		log:       log.With().Str("component", "presence").Logger(),
		now:       time.Now,
		published: make(map[string]bool),
		pending:   make(map[string]pendingWrite),
	}
}

// OnChange registers a hook run after every broadcast transition.
func (p *Presence) OnChange(hook PresenceHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hook)
}

// OnJoin binds connID to username. The first live connection of a username
// marks it online; further devices change nothing. Rebinding a connection to
// another username settles the old one too.
func (p *Presence) OnJoin(ctx context.Context, connID, username string) error {
	if err := validateUsername(username); err != nil {
		return err
	}

	prev, err := p.registry.Bind(connID, username)
	if err != nil {
		return err
	}
	if prev == username {
		return nil
	}

	var errs []error
	var changes []models.PresenceChange
	if prev != "" {
		change, err := p.settle(ctx, prev)
		errs = append(errs, err)
		changes = appendChange(changes, change)
	}
	change, err := p.settle(ctx, username)
	errs = append(errs, err)
	changes = appendChange(changes, change)

	p.notify(ctx, changes)
	return errors.Join(errs...)
}

// OnLeave removes connID. When it was the username's last connection the
// user goes offline with a fresh last_seen.
func (p *Presence) OnLeave(ctx context.Context, connID string) error {
	username := p.registry.Unbind(connID)
	if username == "" {
		return nil
	}

	change, err := p.settle(ctx, username)
	p.notify(ctx, appendChange(nil, change))
	return err
}

// settle brings the published state of username in line with the registry.
// A failed store write does not roll anything back: the state still changes,
// the broadcast still goes out and the write is queued for Retry.
func (p *Presence) settle(ctx context.Context, username string) (*models.PresenceChange, error) {
	unlock := p.locks.Lock(username)
	defer unlock()

	online := p.registry.IsOnline(username)

	p.mu.Lock()
	was := p.published[username]
	p.mu.Unlock()
	if online == was {
		return nil, nil
	}

	change := models.PresenceChange{Username: username, Online: online}
	write := pendingWrite{online: online}
	var err error
	if online {
		err = p.store.UpsertOnline(ctx, username)
	} else {
		write.at = p.now().UTC()
		change.LastSeen = &write.at
		err = p.store.SetOffline(ctx, username, write.at)
	}

	p.mu.Lock()
	if online {
		p.published[username] = true
	} else {
		delete(p.published, username)
	}
	if err != nil {
		p.pending[username] = write
	} else {
		delete(p.pending, username)
	}
	p.mu.Unlock()

	if !online && p.typing != nil {
		p.typing.ClearUser(username)
	}

	state := models.StatusOffline
	if online {
		state = models.StatusOnline
	}
	metrics.PresenceTransitions.WithLabelValues(state).Inc()
	fanOut(p.log, p.registry.Clients(), models.Event{
		Type:     models.EventPresenceChanged,
		Presence: &change,
	})

	if err != nil {
		p.log.Error().Err(err).Str("username", username).Str("state", state).Msg("presence write failed, queued for retry")
		return &change, err
	}
	p.log.Info().Str("username", username).Str("state", state).Msg("presence changed")
	return &change, nil
}

func (p *Presence) notify(ctx context.Context, changes []models.PresenceChange) {
	if len(changes) == 0 {
		return
	}
	p.mu.Lock()
	hooks := slices.Clone(p.hooks)
	p.mu.Unlock()

	for _, change := range changes {
		for _, hook := range hooks {
			hook(ctx, change)
		}
	}
}

// Retry re-attempts the store writes that failed earlier. Writes that fail
// again stay queued.
func (p *Presence) Retry(ctx context.Context) error {
	p.mu.Lock()
	usernames := lo.Keys(p.pending)
	p.mu.Unlock()
	slices.Sort(usernames)

	var errs []error
	for _, username := range usernames {
		errs = append(errs, p.retryOne(ctx, username))
	}
	return errors.Join(errs...)
}

func (p *Presence) retryOne(ctx context.Context, username string) error {
	unlock := p.locks.Lock(username)
	defer unlock()

	p.mu.Lock()
	write, ok := p.pending[username]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	var err error
	if write.online {
		err = p.store.UpsertOnline(ctx, username)
	} else {
		err = p.store.SetOffline(ctx, username, write.at)
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.pending, username)
	p.mu.Unlock()
	p.log.Info().Str("username", username).Bool("online", write.online).Msg("queued presence write applied")
	return nil
}

// Pending is the number of store writes waiting for Retry.
func (p *Presence) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Recover runs at startup: identities the store still reports online but that
// have no live connection here are set offline.
func (p *Presence) Recover(ctx context.Context) error {
	stale, err := p.store.FindOnline(ctx)
	if err != nil {
		return fmt.Errorf("recover presence: %w", err)
	}

	var errs []error
	reset := 0
	for _, identity := range stale {
		if p.registry.IsOnline(identity.Username) {
			continue
		}
		unlock := p.locks.Lock(identity.Username)
		if err := p.store.SetOffline(ctx, identity.Username, p.now().UTC()); err != nil {
			errs = append(errs, err)
		} else {
			reset++
		}
		unlock()
	}
	p.log.Info().Int("reset", reset).Int("stale", len(stale)).Msg("presence recovered")
	return errors.Join(errs...)
}

// Snapshot lists known identities with live registry truth laid over the
// stored status. Users connected here but missing from the store are included.
// When the store is unavailable the live users are still returned with the error.
func (p *Presence) Snapshot(ctx context.Context) ([]models.Identity, error) {
	stored, err := p.store.FindAll(ctx)

	live := p.registry.OnlineUsernames()
	liveSet := lo.SliceToMap(live, func(u string) (string, struct{}) { return u, struct{}{} })

	out := make([]models.Identity, 0, len(stored)+len(live))
	seen := make(map[string]struct{}, len(stored))
	for _, identity := range stored {
		seen[identity.Username] = struct{}{}
		if _, ok := liveSet[identity.Username]; ok {
			identity.Status = models.StatusOnline
			identity.LastSeen = nil
		} else if identity.IsOnline() {
			identity.Status = models.StatusOffline
		}
		out = append(out, identity)
	}
	for _, username := range live {
		if _, ok := seen[username]; !ok {
			out = append(out, models.Identity{Username: username, Status: models.StatusOnline})
		}
	}
	slices.SortFunc(out, func(a, b models.Identity) int { return strings.Compare(a.Username, b.Username) })

	if err != nil {
		return out, fmt.Errorf("snapshot: %w", err)
	}
	return out, nil
}

func validateUsername(username string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return fmt.Errorf("%w: username must not be empty", ErrInvalidMessage)
	case len(username) > models.MaxUsernameLength:
		return fmt.Errorf("%w: username longer than %d characters", ErrInvalidMessage, models.MaxUsernameLength)
	case username == models.SystemSender:
		return fmt.Errorf("%w: username %q is reserved", ErrInvalidMessage, username)
	}
	return nil
}

func appendChange(changes []models.PresenceChange, change *models.PresenceChange) []models.PresenceChange {
	if change == nil {
		return changes
	}
	return append(changes, *change)
}
