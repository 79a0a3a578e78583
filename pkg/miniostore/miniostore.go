// minio specific functions. Implements the funnel.ObjectStore interface for
// minio and other S3-compatible deployments reached through minio-go.

package miniostore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

// Config collects the connection settings for the minio backend.
type Config struct {
	// Endpoint is host[:port], without a scheme.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// Insecure disables TLS.
	Insecure bool
	// Timeout bounds each HTTP request. 0 disables it.
	Timeout time.Duration
}

// Store talks to an S3-compatible service through minio-go. Safe for
// concurrent use.
type Store struct {
	client *minio.Client
	log    funnel.Logger
}

// New builds a Store from cfg.
func New(logger funnel.Logger, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio provider requires an endpoint")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	}
	if cfg.Timeout > 0 {
		opts.Transport = &http.Transport{
			ResponseHeaderTimeout: cfg.Timeout,
			Proxy:                 http.ProxyFromEnvironment,
		}
	}
	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minio client")
	}
	return &Store{client: client, log: logger}, nil
}

// classify maps minio-go errors onto the funnel taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if cause := errors.Cause(err); cause == context.Canceled || cause == context.DeadlineExceeded {
		return err
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code != "" {
		switch {
		case resp.StatusCode == http.StatusNotFound ||
			resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
			return errors.Wrap(funnel.ErrNotFound, resp.Code)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return funnel.Transient(err)
		}
		return err
	}
	return funnel.Transient(err)
}

func (s *Store) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, opts funnel.PutOptions) error {
	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "failed to size content")
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to rewind content")
	}

	putOpts := minio.PutObjectOptions{
		UserMetadata: opts.Headers,
	}
	if opts.EffectiveACL() == "public-read" {
		putOpts.UserMetadata = mergeMeta(opts.Headers, "x-amz-acl", "public-read")
	}
	_, err = s.client.PutObject(ctx, bucket, key, body, size, putOpts)
	return classify(err)
}

func mergeMeta(headers map[string]string, name, value string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[name] = value
	return out
}

func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	// GetObject is lazy; surface missing keys now rather than at first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, classify(err)
	}
	return obj, nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	// RemoveObject succeeds for missing keys, matching S3's idempotent
	// delete, so no not-found mapping is needed here.
	return classify(s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
}

func (s *Store) Head(ctx context.Context, bucket, key string) (*funnel.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	return &funnel.ObjectInfo{
		Key:  info.Key,
		Size: info.Size,
		ETag: strings.Trim(info.ETag, `"`),
	}, nil
}

func (s *Store) List(ctx context.Context, bucket, prefix, marker, delimiter string, max int) (*funnel.ListPage, error) {
	if max <= 0 {
		max = 1000
	}
	// minio-go only exposes the "/" delimiter, as the Recursive toggle. In
	// that mode the listing already carries group entries (keys ending in
	// "/"). Any other delimiter is grouped here, over a recursive listing.
	group := delimiter != "" && delimiter != "/"
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: marker,
		Recursive:  delimiter == "" || group,
	})

	// A grouped entry can span pages; markerGroup suppresses the group the
	// previous page already emitted.
	var markerGroup string
	if group && marker != "" {
		markerGroup = groupKey(marker, prefix, delimiter)
	}

	page := &funnel.ListPage{}
	for obj := range objects {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		key := obj.Key
		if group {
			key = groupKey(obj.Key, prefix, delimiter)
			if key == markerGroup {
				continue
			}
			// Keys sharing a group are lexically contiguous, so one
			// look-back deduplicates within the page.
			if n := len(page.Keys); n > 0 && page.Keys[n-1] == key {
				continue
			}
		}
		page.Keys = append(page.Keys, key)
		if len(page.Keys) == max {
			page.Truncated = true
			page.NextMarker = obj.Key
			break
		}
	}
	return page, nil
}

// groupKey collapses a key to its group entry when the delimiter occurs past
// the listing prefix, mirroring S3's CommonPrefixes rollup. Keys without the
// delimiter pass through unchanged.
func groupKey(key, prefix, delimiter string) string {
	rest := strings.TrimPrefix(key, prefix)
	if i := strings.Index(rest, delimiter); i >= 0 {
		return prefix + rest[:i+len(delimiter)]
	}
	return key
}

func (s *Store) CreateBucket(ctx context.Context, name string) error {
	err := s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{})
	if err != nil {
		return errors.Wrap(classify(err), "bucket could not be created: "+name)
	}
	s.log.Infof("created bucket: %s", name)
	return nil
}

func (s *Store) DropBucket(ctx context.Context, name string) error {
	err := s.client.RemoveBucket(ctx, name)
	if err != nil {
		return errors.Wrap(classify(err), "bucket could not be deleted: "+name)
	}
	s.log.Infof("deleted bucket: %s", name)
	return nil
}

func (s *Store) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, classify(err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}
