package breakpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSourceRoundTrip(t *testing.T) {
	c := New()
	idx := c.AddSource("/a.py", 10)

	bp, err := c.GetByIndex(idx)
	require.NoError(t, err)
	assert.Equal(t, "/a.py", bp.Path)
	assert.Equal(t, uint32(10), bp.Line)
	assert.True(t, bp.Enabled)
}

func TestIndicesNeverReused(t *testing.T) {
	c := New()
	i1 := c.AddSource("/a.py", 1)
	i2 := c.AddSource("/a.py", 2)
	require.NoError(t, c.Delete(i1))
	i3 := c.AddSource("/a.py", 3)

	assert.Less(t, i1, i2)
	assert.Less(t, i2, i3)
	assert.NotEqual(t, i1, i3)

	_, err := c.GetByIndex(i1)
	var notFound *NoSuchBreakpoint
	assert.ErrorAs(t, err, &notFound)
}

func TestSetEnabledRoundTripIsNoOp(t *testing.T) {
	c := New()
	idx := c.AddSource("/a.py", 1)

	require.NoError(t, c.SetEnabled(idx, false))
	require.NoError(t, c.SetEnabled(idx, true))

	bp, err := c.GetByIndex(idx)
	require.NoError(t, err)
	assert.True(t, bp.Enabled)
}

func TestGetByIDIsConstantTime(t *testing.T) {
	c := New()
	idx := c.AddSource("/a.py", 1)
	require.NoError(t, c.SetID(idx, 42))

	bp, err := c.GetByID(42)
	require.NoError(t, err)
	assert.Equal(t, idx, bp.Index)

	_, err = c.GetByID(999)
	assert.Error(t, err)
}

func TestApplyVerificationNoIDAutoVerifies(t *testing.T) {
	c := New()
	idx := c.AddSource("/a.py", 5)

	require.NoError(t, c.ApplyVerification(idx, nil, false, ""))

	bp, err := c.GetByIndex(idx)
	require.NoError(t, err)
	assert.True(t, bp.Verified)
	assert.Nil(t, bp.ID)
}

func TestApplyVerificationUnverifiedGetsCannedMessage(t *testing.T) {
	c := New()
	idx := c.AddSource("/x", 5)
	id := 42

	require.NoError(t, c.ApplyVerification(idx, &id, false, ""))

	bp, err := c.GetByIndex(idx)
	require.NoError(t, err)
	assert.False(t, bp.Verified)
	assert.Equal(t, 42, *bp.ID)
	assert.Equal(t, unresolvedMessage, bp.Message)
}

func TestApplyVerificationLaterEventFlipsVerified(t *testing.T) {
	c := New()
	idx := c.AddSource("/x", 5)
	id := 42
	require.NoError(t, c.ApplyVerification(idx, &id, false, ""))

	// breakpoint{reason:"changed", id:42, verified:true}
	found, err := c.GetByID(42)
	require.NoError(t, err)
	require.NoError(t, c.SetVerified(found.Index, true))

	bp, err := c.GetByIndex(idx)
	require.NoError(t, err)
	assert.True(t, bp.Verified)
}

func TestAllEnabledBySourceGroupsByPath(t *testing.T) {
	c := New()
	c.AddSource("/a.py", 1)
	c.AddSource("/a.py", 2)
	idx3 := c.AddSource("/b.py", 3)
	require.NoError(t, c.SetEnabled(idx3, false))

	grouped := c.AllEnabledBySource()
	assert.Len(t, grouped["/a.py"], 2)
	assert.Len(t, grouped["/b.py"], 0)
}

func TestAllPathsIncludesDisabled(t *testing.T) {
	c := New()
	idx := c.AddSource("/a.py", 1)
	require.NoError(t, c.SetEnabled(idx, false))

	paths := c.AllPaths()
	_, ok := paths["/a.py"]
	assert.True(t, ok)
}

func TestDeleteAllEmptiesButKeepsIndexCounter(t *testing.T) {
	c := New()
	c.AddSource("/a.py", 1)
	c.DeleteAll()
	assert.Empty(t, c.All())

	idx := c.AddSource("/b.py", 2)
	assert.Equal(t, uint32(2), idx)
}
