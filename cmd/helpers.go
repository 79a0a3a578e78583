// Common helpers shared by the operation subcommands.

package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

// getFeed builds the item feed. Precedence: explicit positional arguments,
// then the --input manifest file, then standard input.
func getFeed(args []string) (<-chan funnel.Item, error) {
	if len(args) > 0 {
		return funnel.FeedArgs(args), nil
	}
	if rootCmdConfig.input != "" {
		return funnel.FeedFile(rootCmdConfig.input)
	}
	return funnel.FeedLines(os.Stdin), nil
}

// runItems validates the spec, fans args (or stdin / the manifest) out to
// the worker pool, and streams outcomes to stdout/stderr. Returns an error
// when any item failed so the process exits non-zero.
func runItems(spec *funnel.Spec, args []string) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	feed, err := getFeed(args)
	if err != nil {
		return err
	}

	// An interrupt stops dispatching new items; in-flight items finish and
	// report before the run returns.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool := funnel.NewPool(funnelManager.Store, spec, funnelManager.PoolConfig(),
		funnelManager.Logger.WithField("module", "pool"))

	out := io.Writer(os.Stdout)
	if spec.Op == funnel.OpGet && spec.Get.Stdout {
		// Content owns stdout in this mode; successful keys are only
		// visible at higher verbosity.
		out = io.Discard
	}
	reporter := funnel.NewReporter(out, os.Stderr)

	if failed := reporter.Consume(pool.Run(ctx, feed)); failed > 0 {
		return errors.Errorf("%d operation(s) failed", failed)
	}
	if err := ctx.Err(); err != nil {
		return errors.New("interrupted")
	}
	return nil
}

// parseHeaders converts repeated NAME:VALUE flags into a header map.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, ":")
		if !found || name == "" {
			return nil, errors.Errorf("malformed header %q (want NAME:VALUE)", pair)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}
