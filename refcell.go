package evmap

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// MapIndex identifies one of the two map slots held by a core.
type MapIndex uint32

const (
	indexBit     uint64 = 1 << 63
	countMask    uint64 = indexBit - 1
	maxSafeCount uint64 = 1 << 61 // two bits of headroom below indexBit, per I4
)

// refCell is the per-reader-handle reference count cell: a single packed
// atomic word carrying the handle's current readable map index in the
// high bit and its live guard count in the rest. One cell is created per
// reader handle (including clones) and is never shared across handles.
//
// Cache-line padded so that concurrent increments/decrements from
// distinct reader handles never false-share a line with each other or
// with the registry's bookkeeping.
type refCell struct {
	word atomic.Uint64
	_    cpu.CacheLinePad
}

// increment registers a new read guard and returns the map index the
// guard should read from. The returned index is sampled from the
// pre-update value, so the caller learns which slot to read in the same
// operation that makes its presence visible to a concurrent publish.
func (c *refCell) increment() MapIndex {
	next := c.word.Add(1)
	if next&countMask > maxSafeCount {
		// I4/P6: guard-count overflow would eventually alias the index
		// bit. There is no safe recovery; abort rather than risk
		// silent corruption of the map-index bit shared by every
		// reader of this handle.
		panic("evmap: reference count cell overflow")
	}
	pre := next - 1
	return indexOf(pre)
}

// decrement releases one read guard and returns the map index that was
// in effect before the decrement, for the caller to compare against the
// index it captured at guard creation.
func (c *refCell) decrement() MapIndex {
	next := c.word.Add(^uint64(0)) // -1
	pre := next + 1
	return indexOf(pre)
}

// swapMaps toggles the cell's map-index bit and returns the guard count
// that was live at the moment of the toggle: every guard counted here
// was incremented before the toggle and is therefore residual against
// the slot that just became writable.
//
// A relaxed add would be sufficient here since the cell's own word has
// no other memory it needs to order against; this uses the same
// sequentially-consistent atomic op Go provides everywhere else, which
// is strictly stronger than required but still correct. The registry
// lock held by the caller around every call to swapMaps is what
// actually carries the happens-before edge to a subsequent reader's
// increment.
func (c *refCell) swapMaps() uint64 {
	next := c.word.Add(indexBit)
	pre := next - indexBit
	return pre & countMask
}

// snapshot returns the current map index and guard count without
// mutating the cell. Used only by tests.
func (c *refCell) snapshot() (MapIndex, uint64) {
	w := c.word.Load()
	return indexOf(w), w & countMask
}

func indexOf(word uint64) MapIndex {
	if word&indexBit != 0 {
		return 1
	}
	return 0
}
