package pubsub

import (
	"log/slog"
	"time"
)

// BrokerOption is a functional option for configuring a broker
type BrokerOption func(*brokerOptions)

type brokerOptions struct {
	tickInterval        time.Duration
	shutdownTimeout     time.Duration
	keyPrefix           string
	strict              bool
	reloadOnActionsOnly bool
	logger              *slog.Logger
}

// WithTickInterval sets the target duration of one broker cycle.
func WithTickInterval(d time.Duration) BrokerOption {
	return func(o *brokerOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithBrokerShutdownTimeout bounds how long Stop waits for an in-flight tick.
func WithBrokerShutdownTimeout(d time.Duration) BrokerOption {
	return func(o *brokerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithBrokerKeyPrefix sets the store key namespace.
func WithBrokerKeyPrefix(prefix string) BrokerOption {
	return func(o *brokerOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithStrictMode makes malformed records and publishes to unknown channels
// fail the tick instead of being dropped.
func WithStrictMode(strict bool) BrokerOption {
	return func(o *brokerOptions) {
		o.strict = strict
	}
}

// WithReloadOnActionsOnly reloads the listener map only on ticks that have
// pending actions. By default it is reloaded at the start of every tick.
func WithReloadOnActionsOnly() BrokerOption {
	return func(o *brokerOptions) {
		o.reloadOnActionsOnly = true
	}
}

func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(o *brokerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
