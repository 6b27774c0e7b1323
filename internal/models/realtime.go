package models

import "time"

// EventType names an outbound frame sent to a connection.
type EventType string

const (
	EventPresenceSnapshot EventType = "presence_snapshot"
	EventPresenceChanged  EventType = "presence_changed"
	EventPublicMessage    EventType = "public_message"
	EventPrivateMessage   EventType = "private_message"
	EventTypingChanged    EventType = "typing_changed"
	EventHistory          EventType = "history"
	EventPrivateHistory   EventType = "private_history"
	EventError            EventType = "error"
)

// PresenceChange is broadcast when a user goes online or offline.
type PresenceChange struct {
	Username string     `json:"username"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen"`
}

// TypingChange carries the full set of users currently typing in an audience.
type TypingChange struct {
	Audience Audience `json:"audience"`
	Typers   []string `json:"typers"`
}

// Event is the single outbound envelope. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type            EventType        `json:"type"`
	Identities      []Identity       `json:"identities,omitempty"`
	Presence        *PresenceChange  `json:"presence,omitempty"`
	Message         *ChatMessage     `json:"message,omitempty"`
	PrivateMessage  *PrivateMessage  `json:"private_message,omitempty"`
	Typing          *TypingChange    `json:"typing,omitempty"`
	Messages        []ChatMessage    `json:"messages,omitempty"`
	PrivateMessages []PrivateMessage `json:"private_messages,omitempty"`
	Code            string           `json:"code,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// NewErrorEvent builds the frame reported to the connection that caused err.
func NewErrorEvent(code string, err error) Event {
	return Event{Type: EventError, Code: code, Error: err.Error()}
}

// CommandType names an inbound frame received from a connection.
type CommandType string

const (
	CommandJoin           CommandType = "join"
	CommandLeave          CommandType = "leave"
	CommandPublicMessage  CommandType = "public_message"
	CommandPrivateMessage CommandType = "private_message"
	CommandTypingStart    CommandType = "typing_start"
	CommandTypingStop     CommandType = "typing_stop"
	CommandHistory        CommandType = "history"
	CommandPrivateHistory CommandType = "private_history"
)

// Command is an inbound frame. Sender identity is never taken from the frame;
// it comes from the username the connection joined with.
type Command struct {
	Type     CommandType `json:"type" validate:"required,oneof=join leave public_message private_message typing_start typing_stop history private_history"`
	Username string      `json:"username,omitempty" validate:"required_if=Type join,max=50"`
	To       string      `json:"to,omitempty" validate:"required_if=Type private_message,max=50"`
	With     string      `json:"with,omitempty" validate:"required_if=Type private_history,max=50"`
	Content  string      `json:"content,omitempty" validate:"max=4000"`
	Limit    int         `json:"limit,omitempty" validate:"gte=0,lte=500"`
}
