package pubsub

import "time"

// Config holds the configuration for the broker and client handles.
// Designed for environment-based configuration using popular env parsing libraries.
type Config struct {
	// Shared
	KeyPrefix  string `env:"IONMQ_KEY_PREFIX" envDefault:"ion-mq"`
	StrictMode bool   `env:"IONMQ_STRICT_MODE" envDefault:"false"`

	// Broker configuration
	TickInterval        time.Duration `env:"IONMQ_TICK_INTERVAL" envDefault:"500ms"`
	ShutdownTimeout     time.Duration `env:"IONMQ_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReloadOnActionsOnly bool          `env:"IONMQ_RELOAD_ON_ACTIONS_ONLY" envDefault:"false"`

	// Client configuration
	PollInterval time.Duration `env:"IONMQ_POLL_INTERVAL" envDefault:"500ms"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:       DefaultKeyPrefix,
		TickInterval:    500 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
		PollInterval:    500 * time.Millisecond,
	}
}

// NewBrokerFromConfig creates a Broker from configuration.
// Additional options override config values.
func NewBrokerFromConfig(cfg Config, store Store, opts ...BrokerOption) (*Broker, error) {
	allOpts := []BrokerOption{
		WithTickInterval(cfg.TickInterval),
		WithBrokerShutdownTimeout(cfg.ShutdownTimeout),
		WithBrokerKeyPrefix(cfg.KeyPrefix),
		WithStrictMode(cfg.StrictMode),
	}
	if cfg.ReloadOnActionsOnly {
		allOpts = append(allOpts, WithReloadOnActionsOnly())
	}
	return NewBroker(store, append(allOpts, opts...)...)
}

// NewClientFromConfig creates a Client from configuration.
// Additional options override config values.
func NewClientFromConfig(cfg Config, store Store, opts ...ClientOption) (*Client, error) {
	allOpts := append([]ClientOption{
		WithClientKeyPrefix(cfg.KeyPrefix),
		WithClientStrictMode(cfg.StrictMode),
		WithPollInterval(cfg.PollInterval),
	}, opts...)

	return NewClient(store, allOpts...)
}
