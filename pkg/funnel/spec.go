package funnel

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Op enumerates the supported operations.
type Op int

const (
	OpPut Op = iota
	OpGet
	OpDelete
	OpCopy
	OpList
	OpCreate
	OpDrop
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpGet:
		return "get"
	case OpDelete:
		return "delete"
	case OpCopy:
		return "copy"
	case OpList:
		return "list"
	case OpCreate:
		return "create"
	case OpDrop:
		return "drop"
	}
	return "unknown"
}

// ParseOp maps a user-supplied operation name (case-insensitive) to an Op.
func ParseOp(name string) (Op, error) {
	switch strings.ToLower(name) {
	case "put":
		return OpPut, nil
	case "get":
		return OpGet, nil
	case "delete":
		return OpDelete, nil
	case "copy":
		return OpCopy, nil
	case "list":
		return OpList, nil
	case "create":
		return OpCreate, nil
	case "drop":
		return OpDrop, nil
	}
	return 0, errors.Errorf("unknown operation %q", name)
}

// PutOptions control the put operation.
type PutOptions struct {
	// ACL applied to stored objects. Only "private" and "public-read" are
	// accepted.
	ACL string
	// FullPath keeps the whole local path as the key instead of the
	// basename.
	FullPath bool
	// OnlyNew skips the upload when the remote object's digest already
	// matches the local file.
	OnlyNew bool
	// Headers are extra request headers sent with each put.
	Headers map[string]string
}

// GetOptions control the get operation.
type GetOptions struct {
	// Stdout streams retrieved content to standard output instead of
	// writing key-named files.
	Stdout bool
}

// CopyOptions control the copy operation.
type CopyOptions struct {
	SourceBucket string
}

// ListOptions control the list operation's pagination.
type ListOptions struct {
	Prefix    string
	Marker    string
	Delimiter string
}

// Spec describes the single operation applied to every item of a run. It is
// resolved and validated once before the pool starts and is read-only
// afterwards, so workers may share it freely.
type Spec struct {
	Op     Op
	Bucket string

	Put  PutOptions
	Get  GetOptions
	Copy CopyOptions
	List ListOptions
}

// PoolConfig bounds the worker pool.
type PoolConfig struct {
	// Threads is the number of concurrent workers (>= 1).
	Threads int
	// Timeout bounds each individual network call. 0 disables it.
	Timeout time.Duration
	// Retries is the attempt bound for transient failures.
	Retries int
	// RetryDelay is the base of the exponential backoff between attempts.
	// Tests set it to 0.
	RetryDelay time.Duration
}

// DefaultRetries is the per-item attempt bound for transient failures.
const DefaultRetries = 5

func (c *PoolConfig) normalize() PoolConfig {
	out := *c
	if out.Threads < 1 {
		out.Threads = 1
	}
	if out.Retries < 1 {
		out.Retries = DefaultRetries
	}
	return out
}

var validACLs = map[string]bool{
	"":            true, // defaults to private
	"private":     true,
	"public-read": true,
}

// Validate rejects option combinations that don't belong to the selected
// operation. A failure here aborts the run before any worker starts.
func (s *Spec) Validate() error {
	if s.Bucket == "" && s.Op != OpList {
		return errors.Errorf("operation %s requires a bucket", s.Op)
	}
	if s.Op != OpCopy && s.Copy.SourceBucket != "" {
		return errors.New("--source-bucket is only meaningful for copy")
	}
	if s.Op == OpCopy && s.Copy.SourceBucket == "" {
		return errors.New("copy requires --source-bucket")
	}
	if s.Op != OpPut {
		if s.Put.ACL != "" || s.Put.FullPath || s.Put.OnlyNew || len(s.Put.Headers) > 0 {
			return errors.Errorf("put options are not meaningful for %s", s.Op)
		}
	}
	if s.Op != OpList {
		if s.List.Prefix != "" || s.List.Marker != "" || s.List.Delimiter != "" {
			return errors.Errorf("list options are not meaningful for %s", s.Op)
		}
	}
	if s.Op != OpGet && s.Get.Stdout {
		return errors.New("--get-stdout is only meaningful for get")
	}
	if !validACLs[s.Put.ACL] {
		return errors.Errorf("unsupported ACL %q (want private or public-read)", s.Put.ACL)
	}
	return nil
}

// EffectiveACL resolves the default ACL.
func (o *PutOptions) EffectiveACL() string {
	if o.ACL == "" {
		return "private"
	}
	return o.ACL
}
