// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
	"github.com/serverlessresearch/s3funnel/pkg/funnelmgr"
)

var rootCmdConfig struct {
	cfgFile   string
	threads   int
	timeout   int
	retries   int
	input     string
	accessKey string
	secretKey string
	endpoint  string
	insecure  bool
	verbose   bool
}

var funnelManager *funnelmgr.Manager

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "s3funnel",
	Short: "Multithreaded batch operations on object storage",
	Long: `s3funnel applies one operation (put, get, delete, copy, list, create,
drop) to a stream of keys read from the command line, a manifest file, or
standard input, running up to --threads operations concurrently. Successful
keys are printed to stdout so runs can be piped into each other; failures go
to stderr.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := logrus.New()
		if rootCmdConfig.verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.WarnLevel)
		}

		mgrArgs := map[string]interface{}{"logger": funnel.Logger(logger)}
		if rootCmdConfig.cfgFile != "" {
			mgrArgs["config-file"] = rootCmdConfig.cfgFile
		}
		mgrArgs["overrides"] = flagOverrides(cmd)

		var err error
		funnelManager, err = funnelmgr.NewManager(mgrArgs)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if funnelManager != nil {
			funnelManager.Destroy()
		}
	},
}

// flagOverrides collects explicitly-set global flags so they take precedence
// over the config file and environment.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	overrides := map[string]interface{}{}
	flags := cmd.Flags()
	if flags.Changed("threads") {
		overrides["threads"] = rootCmdConfig.threads
	}
	if flags.Changed("timeout") {
		overrides["timeout"] = rootCmdConfig.timeout
	}
	if flags.Changed("retry") {
		overrides["retries"] = rootCmdConfig.retries
	}
	if flags.Changed("access-key") {
		overrides["access-key"] = rootCmdConfig.accessKey
	}
	if flags.Changed("secret-key") {
		overrides["secret-key"] = rootCmdConfig.secretKey
	}
	if flags.Changed("endpoint") {
		overrides["endpoint"] = rootCmdConfig.endpoint
	}
	if flags.Changed("insecure") {
		overrides["insecure"] = rootCmdConfig.insecure
	}
	return overrides
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by s3funnel.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		if funnelManager == nil || funnelManager.Logger == nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		} else {
			funnelManager.Logger.Error(err)
		}
		os.Exit(1)
	}
}

// normalizeArgs accepts the classic "s3funnel BUCKET OPERATION [FILE...]"
// argument order and case-insensitive operation names by rewriting the two
// leading positionals into subcommand form before cobra sees them. Arguments
// starting with a flag are left for cobra, which knows each flag's arity; the
// classic order never put flags before the bucket anyway.
func normalizeArgs(args []string) []string {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return args
	}
	if _, err := funnel.ParseOp(args[0]); err == nil {
		args[0] = strings.ToLower(args[0])
		return args
	}
	if len(args) >= 2 && !strings.HasPrefix(args[1], "-") {
		if _, err := funnel.ParseOp(args[1]); err == nil {
			args[0], args[1] = strings.ToLower(args[1]), args[0]
		}
	}
	return args
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootCmdConfig.cfgFile, "config", "", "config file (default is ~/.s3funnel/s3funnel.yaml)")
	pf.IntVarP(&rootCmdConfig.threads, "threads", "t", 1, "number of concurrent operations")
	pf.IntVarP(&rootCmdConfig.timeout, "timeout", "T", 0, "socket timeout in seconds, 0 = never")
	pf.IntVar(&rootCmdConfig.retries, "retry", funnel.DefaultRetries, "retry bound for transient failures")
	pf.StringVarP(&rootCmdConfig.input, "input", "i", "", "manifest file with one key per line (default is stdin)")
	pf.StringVarP(&rootCmdConfig.accessKey, "access-key", "a", "", "access key (default is $AWS_ACCESS_KEY_ID)")
	pf.StringVarP(&rootCmdConfig.secretKey, "secret-key", "s", "", "secret key (default is $AWS_SECRET_ACCESS_KEY)")
	pf.StringVar(&rootCmdConfig.endpoint, "endpoint", "", "custom service endpoint, for S3-compatible services")
	pf.BoolVar(&rootCmdConfig.insecure, "insecure", false, "disable transport encryption")
	pf.BoolVarP(&rootCmdConfig.verbose, "verbose", "v", false, "enable per-item progress output on stderr")
}
