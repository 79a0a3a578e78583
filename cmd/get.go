// Handles the "s3funnel get" command

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

var getCmdConfig struct {
	stdout bool
}

var getCmd = &cobra.Command{
	Use:   "get BUCKET [KEY...]",
	Short: "Download keys from a bucket",
	Long: `Download each named key (or each key read from stdin / --input) into a
local file named after the key, or to stdout with --get-stdout. A failed
download removes its partial local file and is reported on stderr; the rest
of the batch continues.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := &funnel.Spec{
			Op:     funnel.OpGet,
			Bucket: args[0],
			Get:    funnel.GetOptions{Stdout: getCmdConfig.stdout},
		}
		return runItems(spec, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().BoolVar(&getCmdConfig.stdout, "get-stdout", false, "write content to stdout instead of key-named files")
}
