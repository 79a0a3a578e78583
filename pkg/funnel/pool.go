package funnel

import (
	"context"
	"io"
	"os"
	"sync"
)

// Outcome is the result of applying the run's operation to one Item. Exactly
// one Outcome is produced per consumed Item.
type Outcome struct {
	// Key is the item's printable identifier (remote key for put, the
	// listed key for list).
	Key string
	// Err is nil on success.
	Err error
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool { return o.Err != nil }

// Pool fans a feed of Items out to a bounded set of workers, each applying
// the run's operation through the shared ObjectStore, and fans the per-item
// Outcomes back in on a single channel. Outcome order is unspecified.
type Pool struct {
	store ObjectStore
	spec  *Spec
	cfg   PoolConfig
	log   Logger

	// Output receives object content in get --get-stdout mode. Workers
	// serialize writes through outMu so concurrent downloads don't
	// interleave.
	Output io.Writer
	outMu  sync.Mutex
}

// NewPool builds a pool for one run. The spec must already be validated.
func NewPool(store ObjectStore, spec *Spec, cfg PoolConfig, log Logger) *Pool {
	return &Pool{
		store:  store,
		spec:   spec,
		cfg:    cfg.normalize(),
		log:    log,
		Output: os.Stdout,
	}
}

// Run starts cfg.Threads workers consuming items and returns the outcome
// channel. The channel is closed once the feed is exhausted and every claimed
// item has produced its outcome.
//
// Cancelling ctx stops workers from claiming further items; items already in
// flight run to completion and their outcomes are still delivered, and the
// unclaimed remainder of the feed is drained without outcomes. At most
// cfg.Threads store calls are outstanding at any instant because each worker
// performs one synchronous call at a time.
func (p *Pool) Run(ctx context.Context, items <-chan Item) <-chan Outcome {
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Threads; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.log.Debugf("worker %d: cancelled", worker)
					return
				case item, ok := <-items:
					if !ok {
						return
					}
					results <- p.runItem(ctx, item)
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		// After cancellation the feed goroutine may be parked on a send.
		// Drain the channel so it can close its input and exit.
		for range items {
		}
		close(results)
	}()

	return results
}

// runItem applies the spec's operation to a single item. Failures are
// captured here and never abort the run.
func (p *Pool) runItem(ctx context.Context, item Item) Outcome {
	switch p.spec.Op {
	case OpPut:
		return p.putItem(ctx, item)
	case OpGet:
		return p.getItem(ctx, item)
	case OpDelete:
		return p.deleteItem(ctx, item)
	case OpCopy:
		return p.copyItem(ctx, item)
	}
	// Bucket-level operations never reach the pool; Spec.Validate and the
	// command layer route them elsewhere.
	return Outcome{Key: item.Key, Err: errorsUnsupported(p.spec.Op)}
}
