package funnel

import (
	"fmt"
	"io"
)

// Reporter streams outcomes to the process's output streams as they arrive:
// successful identifiers to Out, one per line, so a run's output can be
// piped into the next invocation; failures to Err with their cause so
// downstream tooling can grep out failed keys for a retry pass.
type Reporter struct {
	Out io.Writer
	Err io.Writer

	failed int
}

// NewReporter writes successes to out and failures to errw.
func NewReporter(out, errw io.Writer) *Reporter {
	return &Reporter{Out: out, Err: errw}
}

// Report writes one line for a single outcome.
func (r *Reporter) Report(o Outcome) {
	if o.Failed() {
		r.failed++
		fmt.Fprintf(r.Err, "%s: %v\n", o.Key, o.Err)
		return
	}
	fmt.Fprintln(r.Out, o.Key)
}

// Consume drains the outcome channel, reporting each as it arrives, and
// returns the total failure count once the channel closes.
func (r *Reporter) Consume(outcomes <-chan Outcome) int {
	for o := range outcomes {
		r.Report(o)
	}
	return r.failed
}

// Failed returns the failure count so far.
func (r *Reporter) Failed() int { return r.failed }
