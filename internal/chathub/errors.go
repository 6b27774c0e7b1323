package chathub

import "errors"

var (
	// ErrInvalidMessage covers blank content, blank usernames and senders that
	// have no live connection.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownConnection is returned when a connection id was never registered.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrStoreUnavailable wraps every failed or timed-out identity store call.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnknownRecipient is returned for private messages to a username with no
	// identity when recipients must be known.
	ErrUnknownRecipient = errors.New("unknown recipient")
)

// Wire codes sent in error events.
const (
	CodeInvalidMessage    = "invalid_message"
	CodeUnknownConnection = "unknown_connection"
	CodeStoreUnavailable  = "store_unavailable"
	CodeUnknownRecipient  = "unknown_recipient"
	CodeBadRequest        = "bad_request"
)

// ErrorCode maps err to the code reported to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, ErrUnknownConnection):
		return CodeUnknownConnection
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrUnknownRecipient):
		return CodeUnknownRecipient
	default:
		return CodeBadRequest
	}
}
