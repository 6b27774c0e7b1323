package chathub

import (
	"chatterbox/backend/internal/metrics"
	"chatterbox/backend/internal/models"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultTypingTTL is how long a typing indicator lives without a refresh.
const DefaultTypingTTL = 8 * time.Second

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

type typingSet struct {
	audience models.Audience
	typers   map[string]*typingEntry
}

// TypingTracker keeps the short-lived set of typers per audience and expires
// them on a server-side timer. Changes to one audience are serialized; other
// audiences proceed in parallel.
type TypingTracker struct {
	registry *Registry
	ttl      time.Duration
	log      zerolog.Logger

	locks keyLock

	mu        sync.Mutex
	audiences map[string]*typingSet
	gen       uint64
}

func NewTypingTracker(registry *Registry, ttl time.Duration, log zerolog.Logger) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		registry:  registry,
		ttl:       ttl,
		log:       log.With().Str("component", "typing").Logger(),
		audiences: make(map[string]*typingSet),
	}
}

// StartTyping marks username as typing in audience, re-arms its expiry timer
// and broadcasts the full typer set.
func (t *TypingTracker) StartTyping(username string, audience models.Audience) {
	key := audience.Key()
	unlock := t.locks.Lock(key)
	defer unlock()

	t.mu.Lock()
	set, ok := t.audiences[key]
	if !ok {
		set = &typingSet{audience: audience, typers: make(map[string]*typingEntry)}
		t.audiences[key] = set
	}
	if entry, ok := set.typers[username]; ok {
		entry.timer.Stop()
	}
	t.gen++
	gen := t.gen
	set.typers[username] = &typingEntry{
		gen: gen,
		timer: time.AfterFunc(t.ttl, func() {
			t.expire(username, audience, gen)
		}),
	}
	typers := sortedTypers(set)
	t.mu.Unlock()

	t.broadcast(username, audience, typers)
}

// StopTyping clears username from audience and broadcasts the remaining set.
// Stopping a user who was not typing does nothing.
func (t *TypingTracker) StopTyping(username string, audience models.Audience) {
	unlock := t.locks.Lock(audience.Key())
	defer unlock()

	if typers, ok := t.remove(username, audience, 0); ok {
		t.broadcast(username, audience, typers)
	}
}

func (t *TypingTracker) expire(username string, audience models.Audience, gen uint64) {
	unlock := t.locks.Lock(audience.Key())
	defer unlock()

	typers, ok := t.remove(username, audience, gen)
	if !ok {
		// Refreshed or stopped after the timer fired.
		return
	}
	metrics.TypingExpiries.Inc()
	t.log.Debug().Str("username", username).Str("audience", audience.Key()).Msg("typing expired")
	t.broadcast(username, audience, typers)
}

// remove deletes the entry and returns the remaining typers. A non-zero gen
// only matches the entry armed with that generation.
func (t *TypingTracker) remove(username string, audience models.Audience, gen uint64) ([]string, bool) {
	key := audience.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.audiences[key]
	if !ok {
		return nil, false
	}
	entry, ok := set.typers[username]
	if !ok || (gen != 0 && entry.gen != gen) {
		return nil, false
	}
	entry.timer.Stop()
	delete(set.typers, username)
	if len(set.typers) == 0 {
		delete(t.audiences, key)
	}
	return sortedTypers(set), true
}

// Typers returns the sorted usernames currently typing in audience.
func (t *TypingTracker) Typers(audience models.Audience) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.audiences[audience.Key()]
	if !ok {
		return []string{}
	}
	return sortedTypers(set)
}

// ClearUser stops every indicator username holds, in every audience.
func (t *TypingTracker) ClearUser(username string) {
	t.mu.Lock()
	var held []models.Audience
	for _, set := range t.audiences {
		if _, ok := set.typers[username]; ok {
			held = append(held, set.audience)
		}
	}
	t.mu.Unlock()

	for _, audience := range held {
		t.StopTyping(username, audience)
	}
}

// Close stops all pending timers without broadcasting.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, set := range t.audiences {
		for _, entry := range set.typers {
			entry.timer.Stop()
		}
		delete(t.audiences, key)
	}
}

// broadcast sends the typer set to the audience's live connections, skipping
// the actor's own devices.
func (t *TypingTracker) broadcast(actor string, audience models.Audience, typers []string) {
	var recipients []Client
	if audience.IsPublic() {
		recipients = t.registry.Clients()
	} else {
		recipients = t.registry.ClientsFor(audience.Users...)
	}
	recipients = excluding(recipients, t.registry.ConnectionsFor(actor))

	fanOut(t.log, recipients, models.Event{
		Type:   models.EventTypingChanged,
		Typing: &models.TypingChange{Audience: audience, Typers: typers},
	})
}

func sortedTypers(set *typingSet) []string {
	typers := lo.Keys(set.typers)
	slices.Sort(typers)
	return typers
}
