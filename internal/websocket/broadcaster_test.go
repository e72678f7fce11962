package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/config"
	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func receiveView(t *testing.T, send <-chan []byte) Message {
	t.Helper()
	select {
	case data := <-send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no view received")
	}
	return Message{}
}

func TestBroadcasterPushesStoreChanges(t *testing.T) {
	st := store.New(nil, zerolog.Nop())
	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{id: "viewer", hub: hub, send: make(chan []byte, 10)}
	hub.register <- client

	b := NewBroadcaster(st, hub, nil, time.Hour, zerolog.Nop())
	go b.Run(ctx)

	initial := receiveView(t, client.send)
	if initial.Type != "view" {
		t.Errorf("expected view message, got %q", initial.Type)
	}

	st.SetAgents([]types.Agent{{AgentID: "A1", CurrentLoad: 2, Capacity: map[string]int{"chat": 4}}})

	updated := receiveView(t, client.send)
	if len(updated.Data.Agents) != 1 || updated.Data.Agents[0].AgentID != "A1" {
		t.Errorf("expected pushed view to contain the new agent, got %+v", updated.Data.Agents)
	}
}

func TestBroadcasterPushesConnectivityChange(t *testing.T) {
	st := store.New(nil, zerolog.Nop())
	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{id: "viewer", hub: hub, send: make(chan []byte, 10)}
	hub.register <- client

	var connected atomic.Bool
	connected.Store(true)
	b := NewBroadcaster(st, hub, connected.Load, 5*time.Millisecond, zerolog.Nop())
	go b.Run(ctx)

	if !receiveView(t, client.send).Data.Connected {
		t.Fatal("expected connected initially")
	}

	connected.Store(false)
	if receiveView(t, client.send).Data.Connected {
		t.Error("expected disconnected view to be pushed")
	}
}

func TestHandlerServesViewOverWebSocket(t *testing.T) {
	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		PongWait:       time.Second,
		PingPeriod:     900 * time.Millisecond,
		WriteWait:      time.Second,
		MaxMessageSize: 512,
	}

	st := store.New(nil, zerolog.Nop())
	st.SetMetrics(types.MetricsSnapshot{CSAT: 0.9})

	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	go NewBroadcaster(st, hub, nil, time.Hour, zerolog.Nop()).Run(ctx)

	srv := httptest.NewServer(NewHandler(hub, cfg, zerolog.Nop()))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("allowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://localhost:5173"}}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "view" || len(msg.Data.KPIs) == 0 || msg.Data.KPIs[0].Value != 0.9 {
			t.Errorf("unexpected view: %+v", msg)
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		if err == nil {
			t.Fatal("expected handshake to be rejected")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %v", resp)
		}
	})
}
