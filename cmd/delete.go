// Handles the "s3funnel delete" command

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

var deleteCmd = &cobra.Command{
	Use:   "delete BUCKET [KEY...]",
	Short: "Delete keys from a bucket",
	Long: `Delete each named key (or each key read from stdin / --input) from the
bucket. Deleting a key that does not exist counts as success, so delete runs
are safe to repeat.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := &funnel.Spec{
			Op:     funnel.OpDelete,
			Bucket: args[0],
		}
		return runItems(spec, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
