package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/alert"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/testutil"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.CloseNow() })

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) (Event, json.RawMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)

	var raw struct {
		Event
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw.Event, raw.Payload
}

func TestHubStreamsVerdictsAndAlerts(t *testing.T) {
	h := NewHub(testutil.TestLogger())
	c := dial(t, h)

	id := uuid.New()
	h.Verdict(
		model.ProposedDecision{Actor: "growth-engine", DecisionType: "scale_accounts"},
		model.Verdict{DecisionID: &id, Level: model.LevelCritical, Outcome: model.OutcomeRejected, Reason: "fleet in DANGER"},
	)
	ev, payload := readEvent(t, c)
	assert.Equal(t, TypeVerdict, ev.Type)
	var v VerdictEvent
	require.NoError(t, json.Unmarshal(payload, &v))
	require.NotNil(t, v.DecisionID)
	assert.Equal(t, id, *v.DecisionID)
	assert.Equal(t, "growth-engine", v.Actor)
	assert.Equal(t, model.OutcomeRejected, v.Outcome)

	require.NoError(t, h.Raise(context.Background(), alert.Alert{
		Kind:     alert.KindLedgerUnavailable,
		Severity: alert.SeverityCritical,
		Message:  "ledger down",
	}))
	ev, payload = readEvent(t, c)
	assert.Equal(t, TypeAlert, ev.Type)
	var a alert.Alert
	require.NoError(t, json.Unmarshal(payload, &a))
	assert.Equal(t, alert.KindLedgerUnavailable, a.Kind)
}

func TestHubDisconnect(t *testing.T) {
	h := NewHub(testutil.TestLogger())
	c := dial(t, h)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	h := NewHub(testutil.TestLogger())
	c := dial(t, h)

	require.NoError(t, h.Close())
	assert.Equal(t, 0, h.Subscribers())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	assert.Error(t, err)
}

func TestPublishDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(testutil.TestLogger())
	slow := &conn{send: make(chan []byte, 1), cancel: func() {}}
	h.add(slow)

	h.Publish(TypeAlert, "first")
	h.Publish(TypeAlert, "second")

	assert.Equal(t, 1, h.Dropped())
	assert.Len(t, slow.send, 1)
}
