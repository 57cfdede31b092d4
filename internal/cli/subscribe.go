package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anton-trapeznikov/ion-mq/core/logger"
	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

// delivery is the JSON line printed for each received message.
type delivery struct {
	Channel   string `json:"channel"`
	Publisher string `json:"publisher"`
	Payload   string `json:"payload"`
}

func (a *app) newSubscribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to channels and print deliveries as JSON lines",
		Long:  "Subscribe to one or more channels and print every delivered message until interrupted. All channels are unsubscribed on exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			id, _ := flags.GetString("client")
			channels, _ := flags.GetStringSlice("channel")
			interval, _ := flags.GetDuration("interval")
			limit, _ := flags.GetInt("count")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store, release, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer release()

			client, err := a.newClient(store, id)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			received := 0
			printer := pubsub.HandlerFunc(func(_ context.Context, m pubsub.Message) error {
				if err := enc.Encode(delivery{Channel: m.Channel, Publisher: m.Publisher, Payload: m.Payload}); err != nil {
					return err
				}
				received++
				if limit > 0 && received >= limit {
					cancel()
				}
				return nil
			})

			defer a.unsubscribeAll(ctx, client)
			for _, ch := range channels {
				if err := client.Subscribe(ctx, ch, printer); err != nil {
					return err
				}
			}
			a.logger.InfoContext(ctx, "subscribed",
				logger.ClientID(client.ID()), logger.Count("channels", len(channels)))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return client.Poll(gctx, interval)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("client", "", "Subscriber id (default: random UUID)")
	cmd.Flags().StringSlice("channel", nil, "Channel to subscribe to (repeatable)")
	cmd.Flags().Duration("interval", 0, "Poll interval (default from IONMQ_POLL_INTERVAL, else 500ms)")
	cmd.Flags().Int("count", 0, "Exit after this many messages (0 = until interrupted)")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

// unsubscribeAll runs after ctx is cancelled, so it uses a detached deadline.
func (a *app) unsubscribeAll(ctx context.Context, client *pubsub.Client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := client.UnsubscribeFromAll(ctx); err != nil {
		a.logger.ErrorContext(ctx, "failed to unsubscribe", logger.Error(err))
	}
}
