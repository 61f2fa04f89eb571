// Package evmap implements a single-writer, many-reader, eventually
// consistent map. Readers take an atomic reference-counted snapshot
// ("guard") of one of two backing dictionaries; a single writer mutates
// the other dictionary and, on publish, swaps the two roles. New reads
// see every write completed before the most recent publish; reads in
// flight at publish time keep seeing whatever snapshot they already
// captured.
//
// See Reader and Writer for the two handles exposed to callers, and
// New/NewBuilder for construction.
package evmap

import (
	"github.com/doubleslot/evmap/internal/dict"
	"github.com/doubleslot/evmap/pkg/oplog"
)

// core is the shared coordinator owning the two map slots, the reader
// registry, and the residual counter. Reader and Writer handles each
// hold a reference to the same core; it stays alive as long as any
// handle does.
type core[K comparable, V any] struct {
	slots [2]*dict.Dict[K, V]

	// currentReadable is the index of the slot currently exposed to
	// readers. Owned exclusively by the writer: only publish ever
	// mutates it, via registry.publish's toggle callback, and every
	// mutation happens while the registry lock is held, so no atomic is
	// needed here.
	currentReadable MapIndex

	registry *registry
	residual *residualCounter

	strategy ValueStrategy
	clone    Cloner[V]
}

func newCore[K comparable, V any](capacity int, hasher dict.Hasher[K], strategy ValueStrategy, clone Cloner[V]) *core[K, V] {
	first := dict.New[K, V](capacity, hasher)
	// The second slot is built by cloning the first rather than calling
	// dict.New again, so both slots share one hasher instance (including
	// its maphash seed, when the caller leaves hasher nil) instead of
	// quietly hashing keys two different ways across the two sides.
	// first is still empty at this point, so the clone is empty too.
	second := first.Clone(nil)
	return &core[K, V]{
		slots:    [2]*dict.Dict[K, V]{first, second},
		registry: &registry{},
		residual: newResidualCounter(),
		strategy: strategy,
		clone:    clone,
	}
}

func (c *core[K, V]) writable() *dict.Dict[K, V] {
	return c.slots[1-c.currentReadable]
}

func (c *core[K, V]) readable(idx MapIndex) *dict.Dict[K, V] {
	return c.slots[idx]
}

// replayClone is the function the operation log should use when
// replaying entries onto the sibling dictionary: the configured Cloner
// for StrategyClone, or nil (store as-is) for StrategyAlias.
func (c *core[K, V]) replayClone() Cloner[V] {
	if c.strategy == StrategyClone {
		return c.clone
	}
	return nil
}

// startWrite parks until any residual readers on the about-to-become-
// writable slot have drained, then replays the operation log recorded
// during the previous write cycle so the new writable slot matches what
// is currently readable.
func (c *core[K, V]) startWrite(log *oplog.Log[K, V]) {
	if c.residual.markParkedOrSkip() {
		c.residual.park()
	}
	w := c.writable()
	log.Apply(w, c.replayClone())
	log.Clear()
}

// publish flips the readable index and toggles every live cell's
// map-index bit under the registry lock, summing the guard counts each
// cell reports into the residual counter.
func (c *core[K, V]) publish() {
	sum := c.registry.publish(func() {
		c.currentReadable = 1 - c.currentReadable
	})
	c.residual.add(sum)
}

// newReaderCell registers a fresh reference count cell, initialized
// (under the registry lock) to the core's current readable index, so a
// brand-new handle's first guard observes the latest publish even if
// one races with this call.
func (c *core[K, V]) newReaderCell() *refCell {
	return c.registry.addInit(func() *refCell {
		cell := &refCell{}
		if c.currentReadable == 1 {
			cell.word.Store(indexBit)
		}
		return cell
	})
}

// dropReaderCell unregisters cell. A reader handle dropped while still
// holding live guards folds those guards into residual accounting
// rather than leaking them or leaving the writer parked forever waiting
// for decrements that will never come. It does so by performing one
// last toggle+snapshot of the cell (identical to what a publish would
// do), crediting the residual counter with that snapshot, and then
// immediately resolving the same amount — net effect zero on the shared
// counter, but correctly surfacing the unpark transition if this cell's
// retirement happens to be what the writer was waiting on. See
// DESIGN.md for why this is safe without per-guard bookkeeping.
func (c *core[K, V]) dropReaderCell(cell *refCell) {
	count := c.registry.removeAndDrain(cell)
	if count == 0 {
		return
	}
	c.residual.add(count)
	for i := uint64(0); i < count; i++ {
		c.residual.decrementResidual()
	}
}
