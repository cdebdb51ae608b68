package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/hazardmap/internal/adapters/nats"
	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/state"
	"github.com/samirrijal/hazardmap/internal/pkg/metrics"
)

// wsMessage is sent from client to drive its session.
type wsMessage struct {
	Action string   `json:"action"` // position | clear_position | select | deselect | refresh
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Kind   string   `json:"kind"`
	ID     string   `json:"id"`
}

// wsEnvelope is every server-to-client frame.
type wsEnvelope struct {
	Type  string          `json:"type"` // state | error
	State *state.Snapshot `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

// WebSocketHandler returns a handler that upgrades to WebSocket and runs a
// position-driven session. Each connection owns a state.Coordinator; every
// accepted action pushes a fresh snapshot. Record events on NATS reload the
// affected collection.
//
// Clients send JSON such as {"action":"position","lat":52.52,"lon":13.405}
// or {"action":"select","kind":"incident","id":"7"}.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		logger := slog.Default().With("remote", c.RemoteAddr().String())
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		coord := state.NewCoordinator(state.State{}, logger)
		go coord.Run(ctx)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		sendError := func(msg string) {
			_ = writeJSON(wsEnvelope{Type: "error", Error: msg})
		}

		updates, unsubscribe := coord.Subscribe()
		defer unsubscribe()
		go func() {
			for s := range updates {
				snap := s.Snapshot()
				if err := writeJSON(wsEnvelope{Type: "state", State: &snap}); err != nil {
					return
				}
			}
		}()

		load := func(kind domain.Kind) {
			recs, err := deps.Records.List(ctx, kind, nil)
			if err != nil {
				logger.Warn("ws load records failed", "kind", kind, "error", err)
				sendError("failed to load " + string(kind) + " records")
				return
			}
			if err := coord.Dispatch(ctx, state.RecordsLoaded{Kind: kind, Records: recs}); err != nil && ctx.Err() == nil {
				logger.Warn("ws dispatch failed", "kind", kind, "error", err)
			}
		}
		loadAll := func() {
			for _, kind := range domain.StoredKinds {
				load(kind)
			}
		}

		loadAll()

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.SubjectRecords, func(msg *nats.Msg) {
				var ev domain.RecordEvent
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					return
				}
				load(ev.Kind)
			})
			if err != nil {
				logger.Warn("ws record event subscribe failed", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
		defer close(done)

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				sendError("invalid JSON")
				continue
			}

			action, errMsg := sessionAction(m)
			if errMsg != "" {
				sendError(errMsg)
				continue
			}
			if action == nil {
				loadAll()
				continue
			}
			if err := coord.Dispatch(ctx, action); err != nil {
				sendError(err.Error())
			}
		}

		logger.Info("ws client disconnected")
	}
}

// sessionAction maps a client message to a state action. A nil action with
// no error message means "reload everything".
func sessionAction(m wsMessage) (state.Action, string) {
	switch m.Action {
	case "position":
		if m.Lat == nil || m.Lon == nil {
			return nil, "position requires lat and lon"
		}
		return state.PositionChanged{Position: domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}}, ""
	case "clear_position":
		return state.PositionCleared{}, ""
	case "select":
		kind, err := domain.ParseKind(m.Kind)
		if err != nil {
			return nil, err.Error()
		}
		if m.ID == "" {
			return nil, "select requires id"
		}
		return state.Select{Kind: kind, ID: m.ID}, ""
	case "deselect":
		return state.ClearSelection{}, ""
	case "refresh":
		return nil, ""
	}
	return nil, "unknown action: " + m.Action
}
