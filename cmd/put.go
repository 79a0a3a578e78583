// Handles the "s3funnel put" command

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

var putCmdConfig struct {
	acl      string
	fullPath bool
	onlyNew  bool
	headers  []string
}

var putCmd = &cobra.Command{
	Use:   "put BUCKET [FILE...]",
	Short: "Upload local files to a bucket",
	Long: `Upload each named file (or each path read from stdin / --input) to the
bucket. The key is the file's basename unless --put-full-path is given. With
--put-only-new, files whose MD5 digest already matches the remote object are
skipped without transferring data.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headers, err := parseHeaders(putCmdConfig.headers)
		if err != nil {
			return err
		}
		spec := &funnel.Spec{
			Op:     funnel.OpPut,
			Bucket: args[0],
			Put: funnel.PutOptions{
				ACL:      putCmdConfig.acl,
				FullPath: putCmdConfig.fullPath,
				OnlyNew:  putCmdConfig.onlyNew,
				Headers:  headers,
			},
		}
		return runItems(spec, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(putCmd)

	putCmd.Flags().StringVar(&putCmdConfig.acl, "put-acl", "private", "canned ACL for stored objects (private or public-read)")
	putCmd.Flags().BoolVar(&putCmdConfig.fullPath, "put-full-path", false, "use the full file path as the key instead of the basename")
	putCmd.Flags().BoolVar(&putCmdConfig.onlyNew, "put-only-new", false, "skip files whose digest matches the remote object")
	putCmd.Flags().StringArrayVar(&putCmdConfig.headers, "put-header", nil, "extra header NAME:VALUE sent with each put (repeatable)")
}
