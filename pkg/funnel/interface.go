// Standard interfaces and datatypes for the s3funnel project.
// Terms:
//   "store" : A specific object storage backend (e.g. AWS S3, minio)
//   "provider" : A configured set of services selected in the config file
package funnel

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the subset of logrus.FieldLogger used throughout s3funnel.
// Callers may substitute any compatible implementation.
type Logger interface {
	WithField(key string, value interface{}) *logrus.Entry
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// ErrNotFound is returned by ObjectStore implementations when the requested
// object or bucket does not exist. Operation semantics decide whether that is
// a failure (get) or a success (delete).
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err has ErrNotFound at the root of its cause
// chain.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// ObjectInfo describes a remote object as reported by Head or List.
type ObjectInfo struct {
	Key  string
	Size int64
	// ETag is the content digest reported by the service, without
	// surrounding quotes. For non-multipart uploads this is the hex MD5 of
	// the content.
	ETag string
}

// ListPage is one page of a marker-driven key enumeration.
type ListPage struct {
	Keys       []string
	NextMarker string
	Truncated  bool
}

// ObjectStore is the capability the worker pool needs from a storage backend.
// Implementations must be safe for concurrent use: up to PoolConfig.Threads
// calls may be outstanding at once.
//
// Transient failures (timeouts, connection resets, 5xx responses) must be
// wrapped with Transient() so the retry loop can tell them apart from logical
// errors such as ErrNotFound or permission denials.
type ObjectStore interface {
	// Put stores body under bucket/key. The body must be rewindable so
	// retries can reread it.
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker, opts PutOptions) error

	// Get returns a reader for the object's content. The caller closes it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes bucket/key. Deleting a missing key returns ErrNotFound;
	// the delete job maps that to success.
	Delete(ctx context.Context, bucket, key string) error

	// Head fetches object metadata without the content.
	Head(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// List returns one page of keys beginning after marker. max <= 0 lets
	// the backend choose its page size.
	List(ctx context.Context, bucket, prefix, marker, delimiter string, max int) (*ListPage, error)

	CreateBucket(ctx context.Context, name string) error
	DropBucket(ctx context.Context, name string) error
	ListBuckets(ctx context.Context) ([]string, error)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Cause() error  { return e.err }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Store implementations wrap network and
// server-side errors with this before returning them.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or any error in its cause chain) was
// marked with Transient.
func IsTransient(err error) bool {
	type causer interface {
		Cause() error
	}
	type unwrapper interface {
		Unwrap() error
	}
	for err != nil {
		if _, ok := err.(*transientError); ok {
			return true
		}
		switch e := err.(type) {
		case causer:
			err = e.Cause()
		case unwrapper:
			err = e.Unwrap()
		default:
			return false
		}
	}
	return false
}
