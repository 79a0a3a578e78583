// Handles the "s3funnel list" command

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

var listCmdConfig struct {
	marker    string
	prefix    string
	delimiter string
}

var listCmd *cobra.Command

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [BUCKET]",
		Short: "List keys in a bucket, or all buckets",
		Long: `Enumerate a bucket's keys page by page, printing one key per line to
stdout. The output is meant for piping into another invocation. With no
bucket, list the account's bucket names instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if len(args) == 0 {
				return listBuckets(ctx)
			}

			spec := &funnel.Spec{
				Op:     funnel.OpList,
				Bucket: args[0],
				List: funnel.ListOptions{
					Marker:    listCmdConfig.marker,
					Prefix:    listCmdConfig.prefix,
					Delimiter: listCmdConfig.delimiter,
				},
			}
			if err := spec.Validate(); err != nil {
				return err
			}

			reporter := funnel.NewReporter(os.Stdout, os.Stderr)
			err := funnel.ListKeys(ctx, funnelManager.Store, spec, funnelManager.PoolConfig(),
				funnelManager.Logger.WithField("module", "list"), reporter.Report)
			return errors.Wrap(err, "list failed")
		},
	}
}

func listBuckets(ctx context.Context) error {
	names, err := funnelManager.Store.ListBuckets(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list buckets")
	}
	out := listCmd.OutOrStdout()
	for _, name := range names {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	listCmd = newListCmd()
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listCmdConfig.marker, "list-marker", "", "start listing after this key")
	listCmd.Flags().StringVar(&listCmdConfig.prefix, "list-prefix", "", "only list keys with this prefix")
	listCmd.Flags().StringVar(&listCmdConfig.delimiter, "list-delimiter", "", "group keys by this delimiter")
}
