package resolve

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/klauspost/readahead"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"github.com/ardnew/shgo/syntax"
)

// Cache holds parsed units keyed by file name and content hash, so
// unchanged files are parsed once across resolutions. Parsed files are
// never modified after parsing, so entries are shared between results.
type Cache struct {
	entries sync.Map // string -> *cacheEntry
}

type cacheEntry struct {
	once sync.Once
	file *syntax.File
	err  error
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

func cacheKey(name string, src []byte) string {
	return strconv.FormatUint(xxh3.Hash(src)^xxh3.HashString(name), 36)
}

// Parse returns the parse of src, reusing an earlier parse of identical
// content under the same name. hit reports whether the cache was used.
func (c *Cache) Parse(
	ctx context.Context,
	name string,
	src []byte,
	opts ...syntax.ParseOption,
) (f *syntax.File, hit bool, err error) {
	key := cacheKey(name, src)
	value, hit := c.entries.LoadOrStore(key, new(cacheEntry))
	e, _ := value.(*cacheEntry)

	e.once.Do(func() {
		e.file, e.err = syntax.Parse(ctx, name, src, opts...)
	})

	if e.err != nil {
		// Cancellation is not a property of the content.
		c.entries.CompareAndDelete(key, e)

		return nil, hit, e.err
	}

	return e.file, hit, nil
}

// Len returns the number of cached units.
func (c *Cache) Len() int {
	n := 0

	c.entries.Range(func(any, any) bool {
		n++

		return true
	})

	return n
}

// Clear removes every entry.
func (c *Cache) Clear() { c.entries.Clear() }

// readFile reads p fully through a read-ahead buffer and releases it.
func readFile(fs afero.Fs, p string) ([]byte, error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ra := readahead.NewReader(f)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrResolve.Wrap(err).With(slog.String("path", p))
	}

	return data, nil
}
