package eventbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsBus is the multi-instance backend, selected when nats_url is
// configured. Several daemon instances sharing one chat workspace
// publish stall events onto the same NATS subjects so any
// instance's in-process consumers see every other instance's events.
type natsBus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSBus connects to the NATS server at url and returns a Bus
// backed by it.
func NewNATSBus(url string, logger *zap.Logger) (Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name("agent-intercom"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats error", zap.String("subject", subject), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %q: %w", url, err)
	}
	return &natsBus{conn: conn, logger: logger}, nil
}

func (b *natsBus) Publish(ctx context.Context, subject string, payload any) error {
	data, err := marshal(payload)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %q: %w", subject, err)
	}
	return nil
}

func (b *natsBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(context.Background(), Event{Subject: msg.Subject, Payload: msg.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %q: %w", subject, err)
	}
	return &natsSubscription{sub: sub}, nil
}

func (b *natsBus) Close() error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() {
	_ = s.sub.Unsubscribe()
}
