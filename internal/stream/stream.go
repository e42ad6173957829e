// Package stream pushes verdicts and operational alerts to WebSocket
// subscribers as they happen.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// Event types.
const (
	TypeVerdict = "verdict"
	TypeAlert   = "alert"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Event is the envelope for every message sent to subscribers.
type Event struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// VerdictEvent is the subscriber view of a verdict.
type VerdictEvent struct {
	DecisionID   *uuid.UUID          `json:"decision_id,omitempty"`
	Actor        string              `json:"actor"`
	DecisionType string              `json:"decision_type"`
	Level        model.DecisionLevel `json:"level,omitempty"`
	Outcome      model.Outcome       `json:"outcome"`
	Reason       string              `json:"reason"`
}

type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// Hub tracks subscribers and fans events out to them. A subscriber that
// falls behind by more than sendBuffer events loses the overflow.
type Hub struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	conns   map[*conn]struct{}
	dropped int
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, now: time.Now, conns: make(map[*conn]struct{})}
}

// HandleWS upgrades the request and streams events until the client goes
// away or the hub is closed.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("stream: websocket accept failed", "error", err)
		return
	}

	// Subscribers only listen; CloseRead discards input and cancels ctx when
	// the peer closes.
	ctx, cancel := context.WithCancel(ws.CloseRead(context.WithoutCancel(r.Context())))
	c := &conn{ws: ws, send: make(chan []byte, sendBuffer), cancel: cancel}
	h.add(c)
	defer h.remove(c)

	h.logger.Info("stream: subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusGoingAway, "")
			return
		case msg := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				h.logger.Debug("stream: write failed", "error", err)
				_ = ws.CloseNow()
				return
			}
		}
	}
}

// Publish queues an event for every subscriber without blocking.
func (h *Hub) Publish(typ string, payload any) {
	data, err := json.Marshal(Event{Type: typ, At: h.now().UTC(), Payload: payload})
	if err != nil {
		h.logger.Error("stream: marshal event", "type", typ, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			h.dropped++
		}
	}
}

// Verdict publishes a verdict event. It matches the governance verdict hook.
func (h *Hub) Verdict(p model.ProposedDecision, v model.Verdict) {
	h.Publish(TypeVerdict, VerdictEvent{
		DecisionID:   v.DecisionID,
		Actor:        p.Actor,
		DecisionType: p.DecisionType,
		Level:        v.Level,
		Outcome:      v.Outcome,
		Reason:       v.Reason,
	})
}

// Raise implements alert.Sink.
func (h *Hub) Raise(_ context.Context, a alert.Alert) error {
	h.Publish(TypeAlert, a)
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.cancel()
		delete(h.conns, c)
	}
	return nil
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		h.logger.Info("stream: subscriber disconnected")
	}
}
