package slack

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	socketReconnectDelay = 2 * time.Second
	socketDialTimeout    = 10 * time.Second
)

// SocketModeClient maintains a Socket Mode connection, acking every
// envelope and routing interactive/slash-command payloads to a
// Dispatcher. Grounded on original_source/src/slack/client.rs's
// connection loop (open a fresh URL via apps.connections.open, read
// frames until the socket closes, then reconnect) — gorilla/websocket
// is in the pack's go.mod but used server-side elsewhere (e.g.
// kadirpekel-hector's a2a server Upgrader); this is its first
// client-dial use here.
type SocketModeClient struct {
	api        *webAPIClient
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewSocketModeClient constructs a client ready to Run.
func NewSocketModeClient(svc *Service, dispatcher *Dispatcher, logger *zap.Logger) *SocketModeClient {
	return &SocketModeClient{api: svc.api, dispatcher: dispatcher, logger: logger}
}

// Run connects and reconnects until ctx is canceled, acking and
// dispatching every incoming envelope.
func (c *SocketModeClient) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.runOnce(ctx); err != nil {
			c.logger.Warn("socket mode connection ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(socketReconnectDelay):
		}
	}
}

func (c *SocketModeClient) runOnce(ctx context.Context) error {
	url, err := c.api.connectionsOpen(ctx)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, socketDialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.logger.Info("socket mode connected")

	closed := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(closed)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-closed:
				return nil
			default:
			}
			return err
		}
		c.handleFrame(ctx, conn, data)
	}
}

func (c *SocketModeClient) handleFrame(ctx context.Context, conn *websocket.Conn, data []byte) {
	var env socketEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("malformed socket mode envelope", zap.Error(err))
		return
	}

	if env.Type == "hello" || env.Type == "disconnect" {
		return
	}

	if env.EnvelopeID != "" {
		ack, err := json.Marshal(socketAck{EnvelopeID: env.EnvelopeID})
		if err == nil {
			if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
				c.logger.Warn("failed to ack socket mode envelope", zap.Error(err))
			}
		}
	}

	switch env.Type {
	case "interactive":
		var p interactionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.logger.Warn("malformed interactive payload", zap.Error(err))
			return
		}
		c.dispatcher.Dispatch(ctx, &p)
	case "slash_commands":
		var p slashCommandPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.logger.Warn("malformed slash command payload", zap.Error(err))
			return
		}
		c.dispatcher.DispatchCommand(ctx, &p)
	}
}
