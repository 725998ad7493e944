package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// TestSocketModeClient_AcksAndDispatchesInteractiveEnvelope spins up a
// local websocket server standing in for Slack's Socket Mode endpoint,
// sends one interactive envelope, and confirms the client both acks it
// and routes the payload into the Dispatcher.
func TestSocketModeClient_AcksAndDispatchesInteractiveEnvelope(t *testing.T) {
	ctx := context.Background()
	d, store, b := newTestDispatcher(t, nil)

	approval := models.NewApprovalRequest("sess1", "Add helper", nil, "diff", "main.go", models.RiskLow, "hash1")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	resolved := make(chan struct{})
	go func() {
		_, _ = b.RequestApproval(ctx, approval)
		close(resolved)
	}()

	upgrader := websocket.Upgrader{}
	acked := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		payload := `{"type":"block_actions","user":{"id":"U1"},"channel":{"id":"C1"},` +
			`"message":{"ts":"1.1"},"actions":[{"action_id":"approve_accept","value":"` + approval.ID + `"}]}`
		env := socketEnvelope{Type: "interactive", EnvelopeID: "env1", Payload: json.RawMessage(payload)}
		data, err := json.Marshal(env)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

		_, msg, err := conn.ReadMessage()
		if err == nil {
			var ack socketAck
			if json.Unmarshal(msg, &ack) == nil {
				acked <- ack.EnvelopeID
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client := &SocketModeClient{logger: zap.NewNop(), dispatcher: d}
	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(connCtx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	client.handleFrame(ctx, conn, data)

	select {
	case envelopeID := <-acked:
		require.Equal(t, "env1", envelopeID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack")
	}

	select {
	case <-resolved:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for approval resolution")
	}
}
