package vclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsEmptyAndSame(t *testing.T) {
	a := New()
	b := New()
	require.True(t, a.Same(b))
	require.True(t, a.Descends(b))
	require.False(t, a.Concurrent(b))
}

func TestNextAdvancesOnlyNamedNode(t *testing.T) {
	a := New().Next("n1")
	require.False(t, a.Same(New()))
	require.True(t, a.Descends(New()))
	require.False(t, New().Descends(a))

	entries := a.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "n1", entries[0].NodeTag)
	require.Equal(t, int64(1), entries[0].Timestamp)
}

func TestDescendsIsReflexive(t *testing.T) {
	a := New().Next("n1").Next("n2")
	require.True(t, a.Descends(a))
	require.True(t, a.Same(a))
}

func TestConcurrentClocks(t *testing.T) {
	base := New().Next("n1")
	left := base.Next("n1")  // n1:2
	right := base.Next("n2") // n1:1, n2:1

	require.False(t, left.Descends(right))
	require.False(t, right.Descends(left))
	require.True(t, left.Concurrent(right))
	require.True(t, right.Concurrent(left))
}

func TestMergeTakesComponentWiseMax(t *testing.T) {
	left := New().Next("n1").Next("n1") // n1:2
	right := New().Next("n2")           // n2:1

	merged := left.Merge(right)
	require.True(t, merged.Descends(left))
	require.True(t, merged.Descends(right))

	entries := merged.Entries()
	require.Len(t, entries, 2)
}

func TestFromEntriesRoundTrips(t *testing.T) {
	original := New().Next("a").Next("b").Next("a")
	rebuilt := FromEntries(original.Entries())
	require.True(t, rebuilt.Same(original))
}
