package evmap

import "sync/atomic"

const (
	parkedFlag        uint64 = 1 << 63
	residualCountMask uint64 = parkedFlag - 1
)

// residualCounter tracks, in a single packed atomic word, the number of
// read guards still holding the slot that just became writable (the
// "count") plus a flag bit recording whether the writer is parked
// waiting for that count to drain.
//
// Go's standard library has no portable thread park/unpark primitive,
// so the handshake is implemented with a capacity-1 channel: at most one
// wakeup is ever outstanding, matching the "exactly one reader observes
// the transition" guarantee the counter itself provides. This mirrors
// the single-slot wake channel used by the reference-counting rundown
// pattern found elsewhere in the wider Go concurrency ecosystem
// (balasanjay/lrlock's refCount.waitch, tailscale's syncs.WaitGroupChan).
type residualCounter struct {
	word atomic.Uint64
	wake chan struct{}
}

func newResidualCounter() *residualCounter {
	return &residualCounter{wake: make(chan struct{}, 1)}
}

// add accounts for n newly-residual guards, called by publish right
// after toggling every reference count cell.
func (r *residualCounter) add(n uint64) {
	if n != 0 {
		r.word.Add(n)
	}
}

// decrementResidual is called by a read guard, on drop, that discovered
// it was residual against the slot a write cycle is waiting to reclaim.
// Exactly one decrement can ever observe the count-to-zero-with-
// parked-flag-set transition, so unpark is called at most once per
// parked write.
func (r *residualCounter) decrementResidual() {
	next := r.word.Add(^uint64(0)) // atomic -1
	if next&residualCountMask == 0 && next&parkedFlag != 0 {
		r.unpark()
	}
}

// markParkedOrSkip is called at the start of every write. It reports
// whether the writer must park (residual readers are still draining) or
// may proceed immediately.
func (r *residualCounter) markParkedOrSkip() (shouldPark bool) {
	for {
		old := r.word.Load()
		if old&residualCountMask == 0 {
			// No residual readers: nothing can touch this word
			// concurrently (every residual decrement targets a
			// count that, by definition, is still above zero), so a
			// plain store clearing any stale parked flag is safe.
			r.word.Store(0)
			return false
		}
		if r.word.CompareAndSwap(old, old|parkedFlag) {
			return true
		}
	}
}

// park blocks until a matching unpark call arrives. Expected to be rare
// and short-lived: residual readers are already mid-release by the time
// a write parks, so the receive typically unblocks almost immediately.
func (r *residualCounter) park() {
	<-r.wake
}

// unpark releases one parked writer. Safe to call with no writer
// currently parked: the channel buffers exactly one pending wakeup.
func (r *residualCounter) unpark() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
