package handler

import (
	"chatterbox/backend/internal/chathub"
	"chatterbox/backend/internal/models"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), any origin when "*" is configured, and the listed origins otherwise.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin)
}

// ServeWebSocket upgrades the request. With a valid token the connection is
// joined straight away; otherwise the client sends a join command itself.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	var username string
	if raw := bearerToken(c); raw != "" {
		name, err := h.Tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		username = name
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, h.opts.SendBuffer, h.opts.MaxMessageSize, h.log)
	ctx := c.Request.Context()
	h.Hub.Connect(ctx, client)
	if username != "" {
		_ = h.Hub.Handle(ctx, client, models.Command{Type: models.CommandJoin, Username: username})
	}
	client.Run()
}
