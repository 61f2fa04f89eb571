package evmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteGuard_InsertRemoveReplaceClear(t *testing.T) {
	w, r := New[string, int]()

	g := w.Guard()
	g.Insert("a", 1)
	g.Insert("b", 2)
	assert.Equal(t, 2, g.Len())

	v, ok := g.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	removed := g.Remove("a")
	assert.True(t, removed)
	assert.False(t, g.ContainsKey("a"))

	removedAgain := g.Remove("a")
	assert.False(t, removedAgain)

	newVal := g.Replace("b", func(old int, ok bool) int {
		assert.True(t, ok)
		return old + 40
	})
	assert.Equal(t, 42, newVal)

	// Readers see none of this until Publish.
	rg := r.Guard()
	assert.Equal(t, 0, rg.Len())
	rg.Close()

	g.Publish()

	rg = r.Guard()
	defer rg.Close()
	v, ok = rg.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	g2 := w.Guard()
	g2.Clear()
	g2.Publish()

	rg2 := r.Guard()
	defer rg2.Close()
	assert.Equal(t, 0, rg2.Len())
}

func TestWriteGuard_ReplaceOnAbsentKey(t *testing.T) {
	w, _ := New[string, int]()
	g := w.Guard()
	v := g.Replace("missing", func(old int, ok bool) int {
		assert.False(t, ok)
		assert.Equal(t, 0, old)
		return 7
	})
	assert.Equal(t, 7, v)
}

func TestWriteGuard_PublishIsIdempotent(t *testing.T) {
	w, r := New[string, int]()
	g := w.Guard()
	g.Insert("a", 1)
	g.Publish()
	g.Publish() // must not double-toggle the readable index

	rg := r.Guard()
	defer rg.Close()
	assert.Equal(t, 1, rg.Len())
}

func TestWriteGuard_MaxReplicationWriteLagAutoPublishes(t *testing.T) {
	w, r, err := NewBuilder[string, int](
		WithMaxReplicationWriteLag[string, int](2),
	).Build()
	require := assert.New(t)
	require.NoError(err)

	g := w.Guard()
	g.Insert("a", 1)
	g.Insert("b", 2)
	// The third write crosses the lag threshold and auto-publishes.
	g.Insert("c", 3)

	rg := r.Guard()
	defer rg.Close()
	require.GreaterOrEqual(rg.Len(), 2)
}

func TestWriter_CloseThenGuardPanics(t *testing.T) {
	w, _ := New[string, int]()
	w.Close()
	assert.Panics(t, func() { w.Guard() })
}
