// AWS S3 specific functions. Implements the funnel.ObjectStore interface.

package s3store

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/serverlessresearch/s3funnel/pkg/funnel"
)

// Config collects the connection settings for the S3 backend.
type Config struct {
	Region string
	// Endpoint overrides the AWS endpoint, for S3-compatible services.
	Endpoint string
	// AccessKey/SecretKey override the SDK's default credential chain when
	// set.
	AccessKey string
	SecretKey string
	// Insecure disables TLS at the transport boundary.
	Insecure bool
	// Timeout bounds each HTTP request. 0 disables it.
	Timeout time.Duration
}

// Store talks to S3 through the AWS SDK. A single Store is safe for
// concurrent use; the underlying transport pools connections.
type Store struct {
	client *s3.S3
	log    funnel.Logger
}

// New builds a Store from cfg. Credentials fall back to the SDK's standard
// chain (env, shared config, instance role) when not given explicitly.
func New(logger funnel.Logger, cfg Config) (*Store, error) {
	awsCfg := &aws.Config{
		// The pool owns retries; don't stack the SDK's on top.
		MaxRetries: aws.Int(0),
	}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.Insecure {
		awsCfg.DisableSSL = aws.Bool(true)
	}
	if cfg.Timeout > 0 {
		awsCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	return &Store{client: s3.New(sess), log: logger}, nil
}

// classify translates SDK errors into the funnel error taxonomy: 404s become
// funnel.ErrNotFound, server-side and network-level failures are marked
// transient, everything else (auth, 4xx) passes through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if cause := errors.Cause(err); cause == context.Canceled || cause == context.DeadlineExceeded {
		return err
	}
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		switch {
		case reqErr.StatusCode() == http.StatusNotFound:
			return errors.Wrap(funnel.ErrNotFound, reqErr.Code())
		case reqErr.StatusCode() >= 500 || reqErr.StatusCode() == http.StatusTooManyRequests:
			return funnel.Transient(err)
		}
		return err
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return errors.Wrap(funnel.ErrNotFound, aerr.Code())
		case request.ErrCodeRequestError, request.ErrCodeSerialization,
			request.ErrCodeResponseTimeout, request.CanceledErrorCode:
			return funnel.Transient(err)
		}
		return err
	}
	// Anything below the SDK (dial failures, resets) is worth retrying.
	return funnel.Transient(err)
}

func (s *Store) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, opts funnel.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
		ACL:    aws.String(opts.EffectiveACL()),
	}
	if len(opts.Headers) > 0 {
		meta := make(map[string]*string, len(opts.Headers))
		for name, value := range opts.Headers {
			meta[name] = aws.String(value)
		}
		input.Metadata = meta
	}
	_, err := s.client.PutObjectWithContext(ctx, input)
	return classify(err)
}

func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err)
	}
	return resp.Body, nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return classify(err)
}

func (s *Store) Head(ctx context.Context, bucket, key string) (*funnel.ObjectInfo, error) {
	resp, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err)
	}
	info := &funnel.ObjectInfo{Key: key}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.ETag != nil {
		info.ETag = strings.Trim(*resp.ETag, `"`)
	}
	return info, nil
}

func (s *Store) List(ctx context.Context, bucket, prefix, marker, delimiter string, max int) (*funnel.ListPage, error) {
	input := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if marker != "" {
		input.Marker = aws.String(marker)
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if max > 0 {
		input.MaxKeys = aws.Int64(int64(max))
	}

	resp, err := s.client.ListObjectsWithContext(ctx, input)
	if err != nil {
		return nil, classify(err)
	}
	return listPage(resp), nil
}

// listPage flattens a ListObjects response into a page of key entries. With a
// delimiter, S3 splits the results in two: Contents holds the ungrouped keys
// and CommonPrefixes the rolled-up groups. Both are entries here, merged back
// into lexical order.
func listPage(resp *s3.ListObjectsOutput) *funnel.ListPage {
	page := &funnel.ListPage{}
	for _, obj := range resp.Contents {
		if obj.Key != nil {
			page.Keys = append(page.Keys, *obj.Key)
		}
	}
	for _, cp := range resp.CommonPrefixes {
		if cp.Prefix != nil {
			page.Keys = append(page.Keys, *cp.Prefix)
		}
	}
	sort.Strings(page.Keys)
	if resp.IsTruncated != nil {
		page.Truncated = *resp.IsTruncated
	}
	// NextMarker is only populated when a delimiter is used; the caller
	// falls back to the last key otherwise.
	if resp.NextMarker != nil {
		page.NextMarker = *resp.NextMarker
	}
	return page
}

func (s *Store) CreateBucket(ctx context.Context, name string) error {
	_, err := s.client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return errors.Wrap(classify(err), "bucket could not be created: "+name)
	}
	s.log.Infof("created bucket: %s", name)
	return nil
}

func (s *Store) DropBucket(ctx context.Context, name string) error {
	_, err := s.client.DeleteBucketWithContext(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return errors.Wrap(classify(err), "bucket could not be deleted: "+name)
	}
	s.log.Infof("deleted bucket: %s", name)
	return nil
}

func (s *Store) ListBuckets(ctx context.Context) ([]string, error) {
	resp, err := s.client.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classify(err)
	}
	names := make([]string, 0, len(resp.Buckets))
	for _, b := range resp.Buckets {
		if b.Name != nil {
			names = append(names, *b.Name)
		}
	}
	return names, nil
}
