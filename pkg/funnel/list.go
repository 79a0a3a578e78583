package funnel

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// listPageRetries bounds retries of a single list page. A small fixed bound
// keeps a dead service from hanging a piped run.
const listPageRetries = 3

// ListKeys enumerates a bucket sequentially, marker page by marker page,
// emitting one success Outcome per key. List is not fanned out to the worker
// pool: pagination is inherently ordered, each page's marker coming from the
// page before it.
//
// Any page failing after listPageRetries attempts is a bucket-level fatal
// error: the enumeration stops and the error is returned. A missing bucket
// fails on the first page, before any outcome is emitted.
func ListKeys(ctx context.Context, store ObjectStore, spec *Spec, cfg PoolConfig, log Logger, emit func(Outcome)) error {
	opts := spec.List
	marker := opts.Marker
	log.Infof("listing keys from marker: %q", marker)

	for {
		var page *ListPage
		var err error
		delay := cfg.RetryDelay
		for attempt := 1; attempt <= listPageRetries; attempt++ {
			callCtx := ctx
			var cancel context.CancelFunc
			if cfg.Timeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			}
			page, err = store.List(callCtx, spec.Bucket, opts.Prefix, marker, opts.Delimiter, 0)
			if cancel != nil {
				cancel()
			}
			if err == nil || !IsTransient(err) {
				break
			}
			log.Warnf("list page failed (attempt %d/%d): %v", attempt, listPageRetries, err)
			if delay > 0 && attempt < listPageRetries {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
				delay *= 2
			}
		}
		if err != nil {
			return errors.Wrap(err, "failed to list bucket "+spec.Bucket)
		}

		for _, key := range page.Keys {
			emit(Outcome{Key: key})
			marker = key
		}
		if !page.Truncated {
			break
		}
		if page.NextMarker != "" {
			marker = page.NextMarker
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	log.Infof("done listing bucket: %s", spec.Bucket)
	return nil
}
