package eventbus

import "go.uber.org/zap"

// New selects the channel bus by default, or a NATS-backed bus when
// natsURL is non-empty.
func New(natsURL string, logger *zap.Logger) (Bus, error) {
	if natsURL == "" {
		return NewChannelBus(logger), nil
	}
	return NewNATSBus(natsURL, logger)
}
