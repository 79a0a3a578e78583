// Handles the "s3funnel create" command

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create BUCKET",
	Short: "Create a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := funnelManager.Store.CreateBucket(ctx, args[0]); err != nil {
			return errors.Wrap(err, "create failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
