package pubsub

import (
	"log/slog"
	"time"
)

// ClientOption is a functional option for configuring a client handle
type ClientOption func(*clientOptions)

type clientOptions struct {
	id           string
	idSet        bool
	keyPrefix    string
	strict       bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// WithClientID sets the stable participant id. Without it a random UUID is used.
func WithClientID(id string) ClientOption {
	return func(o *clientOptions) {
		o.id = id
		o.idSet = true
	}
}

// WithClientKeyPrefix sets the store key namespace; it must match the broker's.
func WithClientKeyPrefix(prefix string) ClientOption {
	return func(o *clientOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithClientStrictMode makes Listen fail on malformed inbox entries
// instead of skipping them.
func WithClientStrictMode(strict bool) ClientOption {
	return func(o *clientOptions) {
		o.strict = strict
	}
}

// WithPollInterval sets the default interval used by Poll.
func WithPollInterval(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
