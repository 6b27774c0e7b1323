package handler

import (
	"chatterbox/backend/internal/chathub"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the HTTP and websocket handlers.
type Options struct {
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	SendBuffer     int
	MaxMessageSize int64
}

// Handler holds the chat hub and the collaborators the HTTP routes need.
type Handler struct {
	Hub    *chathub.ManagerService
	Tokens *TokenIssuer

	opts Options
	log  zerolog.Logger
}

func NewHandler(hub *chathub.ManagerService, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		Hub:    hub,
		Tokens: NewTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		opts:   opts,
		log:    log.With().Str("component", "http").Logger(),
	}
}
