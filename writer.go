package evmap

import (
	"sync/atomic"

	"github.com/doubleslot/evmap/pkg/oplog"
)

// Writer is the unique handle mutating the map. Only one Writer exists
// per core: the public type surface makes a second writer for the same
// core unconstructible, so no runtime assertion against concurrent
// writers is needed.
type Writer[K comparable, V any] struct {
	core *core[K, V]
	log  *oplog.Log[K, V]

	// maxReplicationWriteLag bounds how long mutations go unpublished:
	// when non-zero, a WriteGuard auto-publishes once more than this
	// many mutations have accumulated since the last publish, instead of
	// requiring an explicit Publish/Close.
	maxReplicationWriteLag int
	writeLag               int

	closed atomic.Bool
}

func newWriter[K comparable, V any](c *core[K, V], maxReplicationWriteLag int) *Writer[K, V] {
	return &Writer[K, V]{
		core:                   c,
		log:                    oplog.NewLog[K, V](),
		maxReplicationWriteLag: maxReplicationWriteLag,
	}
}

// Guard starts a new write session: it parks until residual readers on
// the about-to-become-writable slot have drained, replays the operation
// log onto that slot, and returns a WriteGuard over the result.
func (w *Writer[K, V]) Guard() *WriteGuard[K, V] {
	if w.closed.Load() {
		panic("evmap: Guard called on a closed Writer")
	}
	w.core.startWrite(w.log)
	return &WriteGuard[K, V]{writer: w}
}

// Close drops the writer handle. Existing and future read guards
// continue to work against whatever was last published; the core itself
// stays alive as long as any Reader handle references it.
func (w *Writer[K, V]) Close() {
	w.closed.Store(true)
}

// WriteGuard is the scoped mutator view obtained from Writer.Guard. Its
// read operations see the writable slot, including this guard's own
// uncommitted mutations.
type WriteGuard[K comparable, V any] struct {
	writer    *Writer[K, V]
	published bool
}

// Insert overwrites any existing entry under key with value.
func (g *WriteGuard[K, V]) Insert(key K, value V) {
	w := g.writer
	w.core.writable().Insert(key, value)
	w.log.Push(oplog.Insert(key, value))
	g.observeWrite()
}

// Remove deletes key if present, reporting whether it was present.
func (g *WriteGuard[K, V]) Remove(key K) bool {
	w := g.writer
	ok := w.core.writable().Remove(key)
	w.log.Push(oplog.Remove[K, V](key))
	g.observeWrite()
	return ok
}

// Replace applies fn to the current value under key (the zero value and
// ok=false if absent) and stores the result, returning the new value.
// fn is called exactly once, against the writable slot; the computed
// result — not fn itself — is what gets replayed onto the sibling slot,
// since fn may not be safe or meaningful to invoke twice.
func (g *WriteGuard[K, V]) Replace(key K, fn func(old V, ok bool) V) V {
	w := g.writer
	newValue := w.core.writable().Replace(key, fn)
	w.log.Push(oplog.Replace(key, newValue))
	g.observeWrite()
	return newValue
}

// Clear removes every entry.
func (g *WriteGuard[K, V]) Clear() {
	w := g.writer
	w.core.writable().Clear()
	w.log.Push(oplog.Clear[K, V]())
	g.observeWrite()
}

// Get, ContainsKey, Len, IsEmpty and Iter read the writable slot,
// reflecting every mutation made through this guard (and any prior
// guard) that has not yet been published.
func (g *WriteGuard[K, V]) Get(key K) (V, bool) {
	return g.writer.core.writable().Lookup(key)
}

func (g *WriteGuard[K, V]) ContainsKey(key K) bool {
	return g.writer.core.writable().ContainsKey(key)
}

func (g *WriteGuard[K, V]) Len() int {
	return g.writer.core.writable().Len()
}

func (g *WriteGuard[K, V]) IsEmpty() bool {
	return g.Len() == 0
}

func (g *WriteGuard[K, V]) Iter(fn func(K, V) bool) {
	g.writer.core.writable().Iterate(fn)
}

// Publish exposes every mutation made through this guard to new reads.
// Equivalent to Close: closing a guard without an explicit Publish
// still publishes its mutations.
func (g *WriteGuard[K, V]) Publish() {
	if g.published {
		return
	}
	g.published = true
	g.writer.core.publish()
	g.writer.writeLag = 0
}

// Close publishes the guard's accumulated mutations. Safe to call more
// than once or after an explicit Publish.
func (g *WriteGuard[K, V]) Close() {
	g.Publish()
}

// observeWrite implements the optional MaxReplicationWriteLag
// convenience: once enough mutations have accumulated, publish
// immediately and start a fresh write cycle so the guard can keep
// being used without the caller managing batching itself.
func (g *WriteGuard[K, V]) observeWrite() {
	w := g.writer
	w.writeLag++
	if w.maxReplicationWriteLag > 0 && w.writeLag > w.maxReplicationWriteLag {
		w.core.publish()
		w.writeLag = 0
		w.core.startWrite(w.log)
	}
}
