package chathub

import (
	"chatterbox/backend/internal/metrics"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type registration struct {
	client   Client
	username string
}

// Registry maps live connections to usernames. It is the only source of truth
// for who is reachable right now.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*registration     // connection id -> registration
	byUser map[string]map[string]Client // username -> connection id -> client
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*registration),
		byUser: make(map[string]map[string]Client),
	}
}

// Register records a connection with no identity. Registering an id twice
// keeps the existing binding.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.ID()]; ok {
		return
	}
	r.conns[c.ID()] = &registration{client: c}
	r.updateGauges()
}

// Bind attaches username to a registered connection and returns the username
// it was bound to before, if any. Other connections are untouched.
func (r *Registry) Bind(connID, username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.conns[connID]
	if !ok {
		return "", fmt.Errorf("bind %s: %w", connID, ErrUnknownConnection)
	}
	prev := reg.username
	if prev == username {
		return prev, nil
	}
	if prev != "" {
		r.detach(prev, connID)
	}

	reg.username = username
	set := r.byUser[username]
	if set == nil {
		set = make(map[string]Client)
		r.byUser[username] = set
	}
	set[connID] = reg.client
	r.updateGauges()
	return prev, nil
}

// Unbind removes the connection and returns the username it was bound to, or
// "" if it had none. Unknown ids are ignored.
func (r *Registry) Unbind(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.conns[connID]
	if !ok {
		return ""
	}
	delete(r.conns, connID)
	if reg.username != "" {
		r.detach(reg.username, connID)
	}
	r.updateGauges()
	return reg.username
}

// detach must be called with mu held.
func (r *Registry) detach(username, connID string) {
	set := r.byUser[username]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byUser, username)
	}
}

func (r *Registry) updateGauges() {
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	metrics.OnlineUsers.Set(float64(len(r.byUser)))
}

// ConnectionsFor returns the sorted connection ids bound to username.
func (r *Registry) ConnectionsFor(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := lo.Keys(r.byUser[username])
	slices.Sort(ids)
	return ids
}

// IsOnline reports whether username has at least one live connection.
func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[username]) > 0
}

// UsernameOf returns the username bound to connID.
// The bool is false for unknown connections and for connections without a username.
func (r *Registry) UsernameOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.conns[connID]
	if !ok || reg.username == "" {
		return "", false
	}
	return reg.username, true
}

// Clients returns every registered connection, bound or not.
func (r *Registry) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.MapToSlice(r.conns, func(_ string, reg *registration) Client {
		return reg.client
	})
}

// ClientsFor returns the connections bound to any of the given usernames.
// A username listed twice contributes its connections once.
func (r *Registry) ClientsFor(usernames ...string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Client
	for _, username := range lo.Uniq(usernames) {
		for _, c := range r.byUser[username] {
			out = append(out, c)
		}
	}
	return out
}

// OnlineUsernames returns the sorted usernames with a live connection.
func (r *Registry) OnlineUsernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.byUser)
	slices.Sort(names)
	return names
}

// Len is the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
