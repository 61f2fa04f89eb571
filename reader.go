package evmap

import "sync/atomic"

// Reader is a cloneable handle granting read access to the map. Each
// clone owns an independent reference count cell, so concurrent readers
// never contend with each other on the hot path: creating or dropping a
// Reader takes the shared registry lock, but acquiring and releasing
// guards from it never does.
type Reader[K comparable, V any] struct {
	core   *core[K, V]
	cell   *refCell
	closed atomic.Bool
}

func newReader[K comparable, V any](c *core[K, V]) *Reader[K, V] {
	return &Reader[K, V]{core: c, cell: c.newReaderCell()}
}

// Clone creates an independent reader handle sharing the same
// underlying map, with its own reference count cell.
func (r *Reader[K, V]) Clone() *Reader[K, V] {
	if r.closed.Load() {
		panic("evmap: Clone called on a closed Reader")
	}
	return newReader(r.core)
}

// Guard takes a snapshot read guard over whichever slot is currently
// readable. The guard is valid, and stable, for its entire lifetime:
// publishes that occur while it is open never change what it sees,
// since the guard resolves reads against the slot index captured here,
// not against whatever is currently readable.
func (r *Reader[K, V]) Guard() *ReadGuard[K, V] {
	if r.closed.Load() {
		panic("evmap: Guard called on a closed Reader")
	}
	idx := r.cell.increment()
	return &ReadGuard[K, V]{reader: r, idx: idx}
}

// Close releases this reader handle. Any guards still outstanding at
// the time of Close are folded into residual accounting rather than
// leaked (see core.dropReaderCell). Guards obtained from r before Close
// must not be used afterwards.
func (r *Reader[K, V]) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.core.dropReaderCell(r.cell)
}

// ReadGuard is a scoped snapshot view obtained from Reader.Guard. It
// borrows whichever dictionary slot was readable at the moment it was
// created and answers every read against that exact snapshot, never the
// live map, for its whole life.
type ReadGuard[K comparable, V any] struct {
	reader   *Reader[K, V]
	idx      MapIndex
	released bool
}

// Get returns the value stored under key in this guard's snapshot.
func (g *ReadGuard[K, V]) Get(key K) (V, bool) {
	return g.reader.core.readable(g.idx).Lookup(key)
}

// ContainsKey reports whether key is present in this guard's snapshot.
func (g *ReadGuard[K, V]) ContainsKey(key K) bool {
	return g.reader.core.readable(g.idx).ContainsKey(key)
}

// Len reports the number of entries in this guard's snapshot.
func (g *ReadGuard[K, V]) Len() int {
	return g.reader.core.readable(g.idx).Len()
}

// IsEmpty reports whether this guard's snapshot has no entries.
func (g *ReadGuard[K, V]) IsEmpty() bool {
	return g.Len() == 0
}

// Iter calls fn for every entry in this guard's snapshot, in unspecified
// order, stopping early if fn returns false. The iterator is only valid
// while the guard is held.
func (g *ReadGuard[K, V]) Iter(fn func(K, V) bool) {
	g.reader.core.readable(g.idx).Iterate(fn)
}

// Close releases the guard. If no publish happened during the guard's
// life (from its cell's perspective), this is a single uncontended
// atomic decrement; otherwise the guard was residual and this call also
// resolves the shared residual counter, possibly unparking the writer.
func (g *ReadGuard[K, V]) Close() {
	if g.released {
		return
	}
	g.released = true
	oldIdx := g.reader.cell.decrement()
	if oldIdx == g.idx {
		return
	}
	g.reader.core.residual.decrementResidual()
}
