package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/derived"
	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/rs/zerolog"
)

// Message is the envelope pushed to consoles
type Message struct {
	Type string       `json:"type"`
	Data derived.View `json:"data"`
}

// Broadcaster rebuilds the view after every store change and pushes it to the hub
type Broadcaster struct {
	store     *store.Store
	hub       *Hub
	connected func() bool
	interval  time.Duration
	logger    zerolog.Logger
}

// NewBroadcaster creates a broadcaster. connected reports backend
// reachability; it is rechecked every interval since it can change without
// a store mutation.
func NewBroadcaster(st *store.Store, hub *Hub, connected func() bool, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	if connected == nil {
		connected = func() bool { return true }
	}
	return &Broadcaster{
		store:     st,
		hub:       hub,
		connected: connected,
		interval:  interval,
		logger:    logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Run publishes until ctx is cancelled
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	wasConnected := b.connected()
	b.publish(ctx, wasConnected)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.store.Changes():
			wasConnected = b.connected()
			b.publish(ctx, wasConnected)
		case <-ticker.C:
			if now := b.connected(); now != wasConnected {
				wasConnected = now
				b.publish(ctx, now)
			}
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context, connected bool) {
	view := derived.BuildView(b.store.Snapshot(), connected)
	data, err := json.Marshal(Message{Type: "view", Data: view})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal view")
		return
	}
	select {
	case b.hub.broadcast <- data:
	case <-ctx.Done():
	}
}
