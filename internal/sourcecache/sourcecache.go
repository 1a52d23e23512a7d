// Package sourcecache memoizes source-file content by local path or by an
// adapter-supplied sourceReference, line-addressable for the console's
// "list" command.
package sourcecache

import (
	"fmt"
	"os"
	"strings"
)

// Fetcher retrieves the full content of a sourceReference from the active
// debug session. It is installed as a closure at construction time rather
// than the cache holding a back-pointer to its owner (spec.md §9: "model as
// the cache holding a fetcher closure, not a back-pointer").
type Fetcher func(sourceReference int) (string, error)

// Cache is the SourceFileCache of spec.md §4.3.
type Cache struct {
	fetch  Fetcher
	byPath map[string][]string
	byRef  map[int][]string
}

// New returns a Cache that calls fetch on a sourceReference cache miss.
func New(fetch Fetcher) *Cache {
	return &Cache{
		fetch:  fetch,
		byPath: map[string][]string{},
		byRef:  map[int][]string{},
	}
}

// splitLines splits on \n; a trailing \r on any line is stripped.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// GetByPath reads the local filesystem lazily and caches the result.
// Filesystem failure is not fatal: it returns an empty sequence since
// callers already tolerate missing source.
func (c *Cache) GetByPath(path string) []string {
	if lines, ok := c.byPath[path]; ok {
		return lines
	}
	content, err := os.ReadFile(path)
	if err != nil {
		c.byPath[path] = nil
		return nil
	}
	lines := splitLines(string(content))
	c.byPath[path] = lines
	return lines
}

// GetBySourceReference calls the installed fetcher on a cache miss. Fetcher
// failure yields a one-line sequence containing a human-readable error,
// which is itself cached (so a dead sourceReference is not re-fetched on
// every "list").
func (c *Cache) GetBySourceReference(ref int) []string {
	if lines, ok := c.byRef[ref]; ok {
		return lines
	}
	content, err := c.fetch(ref)
	if err != nil {
		lines := []string{fmt.Sprintf("<error reading source: %v>", err)}
		c.byRef[ref] = lines
		return lines
	}
	lines := splitLines(content)
	c.byRef[ref] = lines
	return lines
}

// Flush clears every cached entry.
func (c *Cache) Flush() {
	c.byPath = map[string][]string{}
	c.byRef = map[int][]string{}
}

// Slice applies the 1-based start / length windowing rule from spec.md §4.7
// to an already-resolved line sequence: start > len(lines) returns empty;
// otherwise returns lines[start-1 : min(start-1+length, len(lines))].
func Slice(lines []string, start, length int) []string {
	if start > len(lines) {
		return nil
	}
	if start < 1 {
		start = 1
	}
	from := start - 1
	to := from + length
	if to > len(lines) {
		to = len(lines)
	}
	if to < from {
		to = from
	}
	return lines[from:to]
}
