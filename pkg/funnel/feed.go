package funnel

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Item is one unit of work: a key name, or a local file path for put. Items
// are immutable once produced by a feed.
type Item struct {
	Key string
}

// A feed is a lazily-populated channel of Items. Feeds never buffer the
// whole input, so one invocation's output can be piped straight into the
// next. Duplicate identifiers are passed through as separate Items; blank
// lines are dropped.

// FeedArgs produces Items from explicit command-line identifiers.
func FeedArgs(args []string) <-chan Item {
	items := make(chan Item)
	go func() {
		defer close(items)
		for _, a := range args {
			items <- Item{Key: a}
		}
	}()
	return items
}

// FeedLines produces one Item per line read from r, skipping blank lines.
// Reading stops at EOF or the first read error; a read error mid-stream ends
// the feed early, matching pipe semantics.
func FeedLines(r io.Reader) <-chan Item {
	items := make(chan Item)
	go func() {
		defer close(items)
		scanner := bufio.NewScanner(r)
		// Keys can be long; grow past the default token limit.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			items <- Item{Key: line}
		}
	}()
	return items
}

// FeedFile produces Items from a manifest file, one identifier per line.
// The file is closed when the feed is exhausted.
func FeedFile(path string) (<-chan Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open input file "+path)
	}
	items := make(chan Item)
	go func() {
		defer close(items)
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			items <- Item{Key: line}
		}
	}()
	return items, nil
}
