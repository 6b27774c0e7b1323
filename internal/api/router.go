package api

import (
	"chatterbox/backend/internal/api/handler"
	"chatterbox/backend/internal/metrics"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *handler.Handler, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/token", h.IssueToken)
	r.GET("/ws", h.ServeWebSocket)

	r.GET("/users", h.ListUsers)
	r.GET("/messages", h.ListMessages)
	r.GET("/messages/private", h.ListPrivateMessages)

	return r
}

// requestLogger logs each request once it completes and records its latency.
// Websocket upgrades are logged when the connection is handed off.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if route != "/metrics" {
			metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
		}

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if route == "/healthz" || route == "/metrics" {
			event = log.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
