// s3funnel is a single executable using the subcommand pattern, as is common
// for cloud utilities. All argument handling lives in the cmd package.
package main

import "github.com/serverlessresearch/s3funnel/cmd"

func main() {
	cmd.Execute()
}
