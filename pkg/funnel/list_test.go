package funnel

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListKeysPaginates(t *testing.T) {
	store := newFakeStore("b")
	store.pageSize = 3
	var want []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%02d", i)
		store.put("b", key, nil)
		want = append(want, key)
	}

	spec := &Spec{Op: OpList, Bucket: "b"}
	var got []string
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(o Outcome) {
		require.False(t, o.Failed())
		got = append(got, o.Key)
	})

	require.NoError(t, err)
	assert.Equal(t, want, got)
	// 10 keys at 3 per page takes 4 pages.
	assert.Equal(t, 4, store.callCount("list"))
}

func TestListKeysPrefix(t *testing.T) {
	store := newFakeStore("b")
	store.put("b", "logs/a", nil)
	store.put("b", "logs/b", nil)
	store.put("b", "data/c", nil)

	spec := &Spec{Op: OpList, Bucket: "b", List: ListOptions{Prefix: "logs/"}}
	var got []string
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(o Outcome) {
		got = append(got, o.Key)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"logs/a", "logs/b"}, got)
}

// A delimiter rolls keys up to their group entry; the groups themselves are
// listed alongside ungrouped keys, and pagination keeps working when a page
// boundary lands between groups.
func TestListKeysDelimiter(t *testing.T) {
	store := newFakeStore("b")
	store.pageSize = 2
	store.put("b", "logs-2020-a", nil)
	store.put("b", "logs-2021-b", nil)
	store.put("b", "readme", nil)
	store.put("b", "tmp-x", nil)
	store.put("b", "tmp-y", nil)

	spec := &Spec{Op: OpList, Bucket: "b", List: ListOptions{Delimiter: "-"}}
	var got []string
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(o Outcome) {
		require.False(t, o.Failed())
		got = append(got, o.Key)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"logs-", "readme", "tmp-"}, got)
	assert.Equal(t, 2, store.callCount("list"))
}

func TestListKeysPrefixAndDelimiter(t *testing.T) {
	store := newFakeStore("b")
	store.put("b", "logs-2020-a", nil)
	store.put("b", "logs-2021-b", nil)
	store.put("b", "readme", nil)

	spec := &Spec{Op: OpList, Bucket: "b", List: ListOptions{Prefix: "logs-", Delimiter: "-"}}
	var got []string
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(o Outcome) {
		got = append(got, o.Key)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"logs-2020-", "logs-2021-"}, got)
}

func TestListKeysMarker(t *testing.T) {
	store := newFakeStore("b")
	store.put("b", "a", nil)
	store.put("b", "b", nil)
	store.put("b", "c", nil)

	spec := &Spec{Op: OpList, Bucket: "b", List: ListOptions{Marker: "a"}}
	var got []string
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(o Outcome) {
		got = append(got, o.Key)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got)
}

// A missing bucket is fatal: the error surfaces before any outcome is
// emitted.
func TestListKeysMissingBucketFatal(t *testing.T) {
	store := newFakeStore() // no buckets at all

	spec := &Spec{Op: OpList, Bucket: "ghost"}
	emitted := 0
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(Outcome) {
		emitted++
	})

	require.Error(t, err)
	assert.Equal(t, 0, emitted)
	assert.Equal(t, 1, store.callCount("list"))
}

// Transient page failures are retried a bounded number of times, then fatal.
func TestListKeysTransientPageRetry(t *testing.T) {
	store := newFakeStore("b")
	store.put("b", "k", nil)
	store.transient["b"] = 2 // first two page fetches fail

	spec := &Spec{Op: OpList, Bucket: "b"}
	var got []string
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(o Outcome) {
		got = append(got, o.Key)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, got)
	assert.Equal(t, 3, store.callCount("list"))
}

func TestListKeysTransientExhausted(t *testing.T) {
	store := newFakeStore("b")
	store.transient["b"] = -1

	spec := &Spec{Op: OpList, Bucket: "b"}
	err := ListKeys(context.Background(), store, spec, testPoolConfig(1), testLogger(), func(Outcome) {
		t.Fatal("no outcome expected")
	})

	require.Error(t, err)
	assert.Equal(t, listPageRetries, store.callCount("list"))
}
