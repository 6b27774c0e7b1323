package handler

import (
	"chatterbox/backend/internal/chathub"
	"chatterbox/backend/internal/storage"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.Hub.Registry.Len()})
}

// ListUsers handles GET /users with the same snapshot a new connection receives.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Hub.Presence.Snapshot(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListMessages handles GET /messages?limit=.
func (h *Handler) ListMessages(c *gin.Context) {
	limit, ok := h.limitParam(c)
	if !ok {
		return
	}
	messages, err := h.Hub.Router.History(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type privateHistoryQuery struct {
	UserA string `form:"user_a" binding:"required,max=50"`
	UserB string `form:"user_b" binding:"required,max=50"`
}

// ListPrivateMessages handles GET /messages/private?user_a=&user_b=&limit=.
func (h *Handler) ListPrivateMessages(c *gin.Context) {
	var q privateHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, ok := h.limitParam(c)
	if !ok {
		return
	}
	messages, err := h.Hub.Router.PrivateHistory(c.Request.Context(), q.UserA, q.UserB, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}

// writeError maps hub and storage errors to HTTP status codes. Unexpected
// errors are logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chathub.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrUnknownRecipient), errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		h.log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
