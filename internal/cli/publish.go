package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anton-trapeznikov/ion-mq/core/logger"
	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

func (a *app) newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish MESSAGE",
		Short: "Publish a message to a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("client")
			channel, _ := cmd.Flags().GetString("channel")

			store, release, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			client, err := a.newClient(store, id)
			if err != nil {
				return err
			}
			if err := client.Publish(cmd.Context(), channel, args[0]); err != nil {
				return err
			}

			a.logger.DebugContext(cmd.Context(), "published", logger.Channel(channel), logger.ClientID(client.ID()))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}

	cmd.Flags().String("client", "", "Publisher id (default: random UUID)")
	cmd.Flags().String("channel", "", "Channel name")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func (a *app) newClient(store pubsub.Store, id string) (*pubsub.Client, error) {
	opts := []pubsub.ClientOption{pubsub.WithClientLogger(a.logger.With(logger.Component("client")))}
	if id != "" {
		opts = append(opts, pubsub.WithClientID(id))
	}
	return pubsub.NewClientFromConfig(a.cfg, store, opts...)
}
