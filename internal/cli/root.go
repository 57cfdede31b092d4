// Package cli contains the cobra commands of the ionmq binary.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/anton-trapeznikov/ion-mq/core/config"
	"github.com/anton-trapeznikov/ion-mq/core/logger"
	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

// Config holds process-level settings read from the environment.
// Command line flags take precedence.
type Config struct {
	Backend   string `env:"IONMQ_BACKEND" envDefault:"redis"`
	LogLevel  string `env:"IONMQ_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"IONMQ_LOG_FORMAT" envDefault:"text"`
}

// StoreOpener connects to backend and returns the store with a release func.
type StoreOpener func(ctx context.Context, backend string, log *slog.Logger) (pubsub.Store, func(), error)

// Option configures the root command.
type Option func(*app)

// WithStoreOpener replaces the default backend resolution.
func WithStoreOpener(open StoreOpener) Option {
	return func(a *app) {
		if open != nil {
			a.open = open
		}
	}
}

type app struct {
	open    StoreOpener
	logger  *slog.Logger
	backend string
	cfg     pubsub.Config
}

// NewRootCommand builds the ionmq command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{open: OpenStore, logger: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:               "ionmq",
		Short:             "Publish/subscribe over a shared list store",
		Long:              "ionmq runs the pub/sub broker and offers publish and subscribe commands against Redis, PostgreSQL or an in-process store.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("backend", "", "Store backend: redis|postgres|memory (default from IONMQ_BACKEND, else redis)")
	flags.String("prefix", "", "Store key prefix (default from IONMQ_KEY_PREFIX, else ion-mq)")
	flags.String("log-level", "", "Log level: debug|info|warn|error (default from IONMQ_LOG_LEVEL)")
	flags.String("log-format", "", "Log format: text|json (default from IONMQ_LOG_FORMAT)")

	root.AddCommand(
		a.newBrokerCommand(),
		a.newPublishCommand(),
		a.newSubscribeCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if err := config.Load(&a.cfg); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("prefix") {
		a.cfg.KeyPrefix, _ = flags.GetString("prefix")
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logOpts := []logger.Option{
		logger.WithLevel(level),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithAttr(slog.String("service", "ionmq")),
	}
	switch cfg.LogFormat {
	case "", "text":
	case "json":
		logOpts = append(logOpts, logger.WithJSONFormatter())
	default:
		return fmt.Errorf("invalid --log-format %q; use text|json", cfg.LogFormat)
	}

	a.logger = logger.New(logOpts...)
	a.backend = cfg.Backend
	return nil
}

// connect opens the configured backend.
func (a *app) connect(ctx context.Context) (pubsub.Store, func(), error) {
	store, release, err := a.open(ctx, a.backend, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", a.backend, err)
	}
	a.logger.DebugContext(ctx, "store ready", logger.Backend(a.backend))
	return store, release, nil
}
