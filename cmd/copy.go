// Handles the "s3funnel copy" command

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

var copyCmdConfig struct {
	sourceBucket string
}

var copyCmd = &cobra.Command{
	Use:   "copy BUCKET [KEY...]",
	Short: "Copy keys into a bucket from a source bucket",
	Long: `Copy each named key (or each key read from stdin / --input) from
--source-bucket into the target bucket. Each key is one unit of work: the
download and re-upload either both succeed or report one failure. Pipes well
with list:

  s3funnel src-bucket list | s3funnel dst-bucket copy --source-bucket src-bucket`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := &funnel.Spec{
			Op:     funnel.OpCopy,
			Bucket: args[0],
			Copy:   funnel.CopyOptions{SourceBucket: copyCmdConfig.sourceBucket},
		}
		return runItems(spec, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)

	copyCmd.Flags().StringVar(&copyCmdConfig.sourceBucket, "source-bucket", "", "bucket to copy keys from (required)")
}
