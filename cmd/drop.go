// Handles the "s3funnel drop" command

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var dropCmd = &cobra.Command{
	Use:   "drop BUCKET",
	Short: "Delete a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := funnelManager.Store.DropBucket(ctx, args[0]); err != nil {
			return errors.Wrap(err, "drop failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dropCmd)
}
