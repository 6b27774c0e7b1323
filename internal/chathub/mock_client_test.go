package chathub_test

import (
	"chatterbox/backend/internal/chathub"
	"chatterbox/backend/internal/models"
	"sync"
	"testing"
)

// MockClient records delivered events instead of writing to a socket.
type MockClient struct {
	id       string
	capacity int // negative means unbounded

	mu     sync.Mutex
	events []models.Event
	closed bool
}

var _ chathub.Client = (*MockClient)(nil)

func newMockClient(id string) *MockClient {
	return &MockClient{id: id, capacity: -1}
}

// newStuckClient returns a client whose send queue is always full.
func newStuckClient(id string) *MockClient {
	return &MockClient{id: id, capacity: 0}
}

func (c *MockClient) ID() string { return c.id }

func (c *MockClient) Deliver(event models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (c.capacity >= 0 && len(c.events) >= c.capacity) {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *MockClient) EventsOfType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range c.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// connect registers a client with the registry and binds it to username.
func connect(t *testing.T, r *chathub.Registry, connID, username string) *MockClient {
	t.Helper()
	c := newMockClient(connID)
	r.Register(c)
	if username != "" {
		if _, err := r.Bind(connID, username); err != nil {
			t.Fatalf("bind %s: %v", connID, err)
		}
	}
	return c
}
