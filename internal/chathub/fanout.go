package chathub

import (
	"chatterbox/backend/internal/metrics"
	"chatterbox/backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// fanOut queues event on every client without blocking. A client whose queue
// is full loses the event and is closed; its read pump then runs Disconnect.
func fanOut(log zerolog.Logger, clients []Client, event models.Event) int {
	delivered := 0
	for _, c := range clients {
		if c.Deliver(event) {
			delivered++
			continue
		}
		metrics.DroppedDeliveries.Inc()
		log.Warn().
			Str("conn_id", c.ID()).
			Str("event", string(event.Type)).
			Msg("send queue full, closing slow connection")
		c.Close()
	}
	return delivered
}

// excluding drops the clients whose id is in ids.
func excluding(clients []Client, ids []string) []Client {
	if len(ids) == 0 {
		return clients
	}
	return lo.Filter(clients, func(c Client, _ int) bool {
		return !lo.Contains(ids, c.ID())
	})
}
