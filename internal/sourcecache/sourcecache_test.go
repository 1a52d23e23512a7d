package sourcecache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetByPathMissingFileReturnsEmpty(t *testing.T) {
	c := New(nil)
	lines := c.GetByPath("/does/not/exist.go")
	assert.Empty(t, lines)
}

func TestGetByPathReadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("line1\nline2\n"), 0o644))

	c := New(nil)
	lines := c.GetByPath(path)
	assert.Equal(t, []string{"line1", "line2", ""}, lines)

	// Mutating the file after the first read must not affect the cached copy.
	require.NoError(t, os.WriteFile(path, []byte("changed\n"), 0o644))
	again := c.GetByPath(path)
	assert.Equal(t, lines, again)
}

func TestGetBySourceReferenceStripsCR(t *testing.T) {
	c := New(func(ref int) (string, error) {
		return "a\r\nb\r\nc\n", nil
	})

	lines := c.GetBySourceReference(9)
	assert.Equal(t, []string{"a", "b", "c", ""}, lines)
}

func TestGetBySourceReferenceFetcherFailure(t *testing.T) {
	c := New(func(ref int) (string, error) {
		return "", errors.New("boom")
	})

	lines := c.GetBySourceReference(1)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "boom")
}

func TestFlushClearsEntries(t *testing.T) {
	calls := 0
	c := New(func(ref int) (string, error) {
		calls++
		return "x\n", nil
	})
	c.GetBySourceReference(1)
	c.Flush()
	c.GetBySourceReference(1)
	assert.Equal(t, 2, calls)
}

func TestSliceBoundaries(t *testing.T) {
	lines := []string{"a", "b", "c"}

	assert.Empty(t, Slice(lines, 4, 2))
	assert.Equal(t, []string{"a", "b"}, Slice(lines, 1, 2))
	assert.Equal(t, []string{"b", "c"}, Slice(lines, 2, 10))
}

func TestSourceReferenceExampleFromSpec(t *testing.T) {
	c := New(func(ref int) (string, error) {
		return "a\r\nb\r\nc\n", nil
	})

	lines := c.GetBySourceReference(9)
	got := Slice(lines, 1, 2)
	assert.Equal(t, []string{"a", "b"}, got)
}
