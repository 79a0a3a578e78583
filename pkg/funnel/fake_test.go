package funnel

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func testLogger() Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// fakeStore is an in-memory ObjectStore that records call counts and the
// high-water mark of concurrently outstanding calls.
type fakeStore struct {
	mu        sync.Mutex
	buckets   map[string]map[string][]byte
	calls     map[string]int
	inFlight  int
	highWater int

	// delay stretches each call so concurrency is observable.
	delay time.Duration
	// transient[key] is the number of injected transient failures left for
	// that key; negative means fail forever.
	transient map[string]int
	// errs[key] is a permanent (logical) error for that key.
	errs map[string]error

	pageSize int
}

func newFakeStore(bucketNames ...string) *fakeStore {
	f := &fakeStore{
		buckets:   make(map[string]map[string][]byte),
		calls:     make(map[string]int),
		transient: make(map[string]int),
		errs:      make(map[string]error),
		pageSize:  1000,
	}
	for _, name := range bucketNames {
		f.buckets[name] = make(map[string][]byte)
	}
	return f
}

func (f *fakeStore) enter(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.inFlight++
	if f.inFlight > f.highWater {
		f.highWater = f.inFlight
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeStore) exit() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) maybeFail(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.transient[key]; ok && n != 0 {
		if n > 0 {
			f.transient[key] = n - 1
		}
		return Transient(errors.New("injected transient failure"))
	}
	return f.errs[key]
}

func (f *fakeStore) bucket(name string) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "no such bucket "+name)
	}
	return b, nil
}

func (f *fakeStore) put(bucket, key string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket][key] = content
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, opts PutOptions) error {
	f.enter("put")
	defer f.exit()
	if err := f.maybeFail(key); err != nil {
		return err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	b[key] = content
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.enter("get")
	defer f.exit()
	if err := f.maybeFail(key); err != nil {
		return nil, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	content, ok := b[key]
	f.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "no such key "+key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeStore) Delete(ctx context.Context, bucket, key string) error {
	f.enter("delete")
	defer f.exit()
	if err := f.maybeFail(key); err != nil {
		return err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := b[key]; !ok {
		return errors.Wrap(ErrNotFound, "no such key "+key)
	}
	delete(b, key)
	return nil
}

func (f *fakeStore) Head(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	f.enter("head")
	defer f.exit()
	if err := f.maybeFail(key); err != nil {
		return nil, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	content, ok := b[key]
	f.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "no such key "+key)
	}
	sum := md5.Sum(content)
	return &ObjectInfo{
		Key:  key,
		Size: int64(len(content)),
		ETag: hex.EncodeToString(sum[:]),
	}, nil
}

func (f *fakeStore) List(ctx context.Context, bucket, prefix, marker, delimiter string, max int) (*ListPage, error) {
	f.enter("list")
	defer f.exit()
	if err := f.maybeFail(bucket); err != nil {
		return nil, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	var keys []string
	for key := range b {
		if strings.HasPrefix(key, prefix) && key > marker {
			keys = append(keys, key)
		}
	}
	pageSize := f.pageSize
	f.mu.Unlock()
	sort.Strings(keys)

	if delimiter != "" {
		// Roll keys up to their group entry, the way S3 folds them into
		// CommonPrefixes. Groups are contiguous after sorting, so a
		// look-back deduplicates; the marker comparison drops groups a
		// previous page already returned.
		grouped := keys[:0]
		var last string
		for _, key := range keys {
			g := key
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				g = prefix + rest[:i+len(delimiter)]
			}
			if g == last || g <= marker {
				continue
			}
			grouped = append(grouped, g)
			last = g
		}
		keys = grouped
	}

	if max > 0 && max < pageSize {
		pageSize = max
	}
	page := &ListPage{}
	if len(keys) > pageSize {
		page.Keys = keys[:pageSize]
		page.Truncated = true
	} else {
		page.Keys = keys
	}
	return page, nil
}

func (f *fakeStore) CreateBucket(ctx context.Context, name string) error {
	f.enter("create-bucket")
	defer f.exit()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[name]; ok {
		return errors.New("bucket already exists: " + name)
	}
	f.buckets[name] = make(map[string][]byte)
	return nil
}

func (f *fakeStore) DropBucket(ctx context.Context, name string) error {
	f.enter("drop-bucket")
	defer f.exit()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[name]; !ok {
		return errors.Wrap(ErrNotFound, "no such bucket "+name)
	}
	delete(f.buckets, name)
	return nil
}

func (f *fakeStore) ListBuckets(ctx context.Context) ([]string, error) {
	f.enter("list-buckets")
	defer f.exit()
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
