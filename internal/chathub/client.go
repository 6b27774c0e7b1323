package chathub

import "chatterbox/backend/internal/models"

// Client is one live transport connection.
// The hub only ever talks to a connection through this interface, so the
// websocket transport and test doubles are interchangeable.
type Client interface {
	// ID returns the transport-assigned connection id. It never changes.
	ID() string

	// Deliver queues an event for the connection without blocking.
	// It returns false when the queue is full or the client is closed.
	Deliver(event models.Event) bool

	// Run starts the connection's read and write pumps.
	Run()
	// Close shuts the connection down. Safe to call more than once.
	Close()
}
