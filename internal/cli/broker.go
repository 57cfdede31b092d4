package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anton-trapeznikov/ion-mq/core/health"
	"github.com/anton-trapeznikov/ion-mq/core/logger"
	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

func (a *app) newBrokerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Run the broker tick loop until interrupted",
		Long:  "Run exactly one broker per key prefix. It applies subscription actions and fans published messages out to subscriber inboxes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("interval") {
				a.cfg.TickInterval, _ = flags.GetDuration("interval")
			}
			if flags.Changed("strict") {
				a.cfg.StrictMode, _ = flags.GetBool("strict")
			}
			statsEvery, _ := flags.GetDuration("stats-interval")
			healthAddr, _ := flags.GetString("health-addr")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store, release, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer release()

			broker, err := pubsub.NewBrokerFromConfig(a.cfg, store,
				pubsub.WithBrokerLogger(a.logger.With(logger.Component("broker"))))
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(broker.Run(gctx))
			if healthAddr != "" {
				g.Go(func() error {
					return health.Serve(gctx, healthAddr, a.logger, broker.Healthcheck)
				})
			}
			if statsEvery > 0 {
				g.Go(func() error {
					a.reportStats(gctx, broker, statsEvery)
					return nil
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().Duration("interval", 0, "Tick interval (default from IONMQ_TICK_INTERVAL, else 500ms)")
	cmd.Flags().Bool("strict", false, "Fail on malformed records and publishes to unknown channels")
	cmd.Flags().Duration("stats-interval", time.Minute, "How often to log broker statistics (0 disables)")
	cmd.Flags().String("health-addr", "", "Serve /health/live and /health/ready on this address (empty disables)")
	return cmd
}

func (a *app) reportStats(ctx context.Context, broker *pubsub.Broker, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := broker.Stats()
			a.logger.InfoContext(ctx, "broker stats",
				slog.Int64("ticks", s.Ticks),
				slog.Int64("actions_applied", s.ActionsApplied),
				slog.Int64("deliveries", s.Deliveries),
				slog.Int64("dropped", s.MessagesDropped),
				slog.Int64("malformed", s.MalformedRecords),
				slog.Duration("last_tick", s.LastTickDuration))
		}
	}
}
