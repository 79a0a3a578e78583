// Per-item operation logic applied by pool workers: bounded retry with
// exponential backoff for transient failures, logical errors classified
// per operation.

package funnel

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

func errorsUnsupported(op Op) error {
	return errors.Errorf("operation %s is not item-scoped", op)
}

// withRetry runs call up to cfg.Retries times, retrying only transient
// failures. Each attempt gets its own timeout context when cfg.Timeout is
// set; a per-call deadline expiry counts as transient. Backoff doubles from
// cfg.RetryDelay between attempts.
func (p *Pool) withRetry(ctx context.Context, call func(context.Context) error) error {
	delay := p.cfg.RetryDelay
	var err error
	for attempt := 1; ; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if p.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		}
		err = call(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if errors.Cause(err) == context.DeadlineExceeded && ctx.Err() == nil {
			err = Transient(err)
		}
		if !IsTransient(err) || attempt >= p.cfg.Retries {
			return err
		}
		p.log.Warnf("transient failure (attempt %d/%d): %v", attempt, p.cfg.Retries, err)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return err
			}
			delay *= 2
		}
	}
}

// putKey derives the remote key for a local path.
func (p *Pool) putKey(path string) string {
	if p.spec.Put.FullPath {
		return path
	}
	return filepath.Base(path)
}

func (p *Pool) putItem(ctx context.Context, item Item) Outcome {
	path := item.Key
	key := p.putKey(path)

	f, err := os.Open(path)
	if err != nil {
		return Outcome{Key: key, Err: errors.Wrap(err, "failed to open local file")}
	}
	defer f.Close()

	if p.spec.Put.OnlyNew && p.unchanged(ctx, key, f) {
		p.log.Infof("unchanged, skipping: %s", key)
		return Outcome{Key: key}
	}

	err = p.withRetry(ctx, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "failed to rewind local file")
		}
		return p.store.Put(ctx, p.spec.Bucket, key, f, p.spec.Put)
	})
	if err != nil {
		return Outcome{Key: key, Err: errors.Wrap(err, "put failed")}
	}
	p.log.Infof("sent: %s", key)
	return Outcome{Key: key}
}

// unchanged reports whether the remote object already carries the local
// file's content. Any failure here (missing object, transient head error,
// multipart ETag) falls through to a normal upload; the check is an
// optimization, never a gate.
func (p *Pool) unchanged(ctx context.Context, key string, f *os.File) bool {
	info, err := p.store.Head(ctx, p.spec.Bucket, key)
	if err != nil {
		if !IsNotFound(err) {
			p.log.Debugf("head failed for %s, uploading anyway: %v", key, err)
		}
		return false
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return hex.EncodeToString(h.Sum(nil)) == info.ETag
}

func (p *Pool) getItem(ctx context.Context, item Item) Outcome {
	key := item.Key

	if p.spec.Get.Stdout {
		// Buffer the whole object so concurrent downloads don't
		// interleave on the shared writer.
		var buf bytes.Buffer
		err := p.withRetry(ctx, func(ctx context.Context) error {
			buf.Reset()
			body, err := p.store.Get(ctx, p.spec.Bucket, key)
			if err != nil {
				return err
			}
			defer body.Close()
			_, err = io.Copy(&buf, body)
			return err
		})
		if err != nil {
			return Outcome{Key: key, Err: errors.Wrap(err, "get failed")}
		}
		p.outMu.Lock()
		_, err = p.Output.Write(buf.Bytes())
		p.outMu.Unlock()
		if err != nil {
			return Outcome{Key: key, Err: errors.Wrap(err, "failed to write content")}
		}
		return Outcome{Key: key}
	}

	f, err := os.Create(key)
	if err != nil {
		return Outcome{Key: key, Err: errors.Wrap(err, "failed to create local file")}
	}
	err = p.withRetry(ctx, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := f.Truncate(0); err != nil {
			return err
		}
		body, err := p.store.Get(ctx, p.spec.Bucket, key)
		if err != nil {
			return err
		}
		defer body.Close()
		_, err = io.Copy(f, body)
		return err
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		// Don't leave a partial or empty file behind.
		os.Remove(key)
		return Outcome{Key: key, Err: errors.Wrap(err, "get failed")}
	}
	p.log.Infof("got: %s", key)
	return Outcome{Key: key}
}

func (p *Pool) deleteItem(ctx context.Context, item Item) Outcome {
	key := item.Key
	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.store.Delete(ctx, p.spec.Bucket, key)
	})
	if err != nil && !IsNotFound(err) {
		return Outcome{Key: key, Err: errors.Wrap(err, "delete failed")}
	}
	p.log.Infof("deleted: %s", key)
	return Outcome{Key: key}
}

// copyItem moves one key between buckets as a single unit of work: a get
// from the source bucket followed by a put to the target. Either half
// failing yields one Failure outcome.
func (p *Pool) copyItem(ctx context.Context, item Item) Outcome {
	key := item.Key

	var buf bytes.Buffer
	err := p.withRetry(ctx, func(ctx context.Context) error {
		buf.Reset()
		body, err := p.store.Get(ctx, p.spec.Copy.SourceBucket, key)
		if err != nil {
			return err
		}
		defer body.Close()
		_, err = io.Copy(&buf, body)
		return err
	})
	if err != nil {
		return Outcome{Key: key, Err: errors.Wrap(err, "copy failed reading source")}
	}

	content := bytes.NewReader(buf.Bytes())
	err = p.withRetry(ctx, func(ctx context.Context) error {
		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return p.store.Put(ctx, p.spec.Bucket, key, content, p.spec.Put)
	})
	if err != nil {
		return Outcome{Key: key, Err: errors.Wrap(err, "copy failed writing target")}
	}
	p.log.Infof("copied: %s", key)
	return Outcome{Key: key}
}
