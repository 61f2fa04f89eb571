// Package interleave provides a small, deterministic interleaving harness
// for exercising the handful of orderings that matter to the evmap
// core's correctness: registry-lock-protected toggles racing against
// reader increments, guards outliving a publish, and residual draining
// racing against a parked writer.
//
// Go has no exhaustive C11-memory-model permutation checker the way a
// loom-style harness would in other ecosystems. Instead of attempting to
// enumerate every possible scheduling (infeasible without a custom
// runtime), this harness runs test steps on separate goroutines in a
// fixed order, synchronized with channels, so a test can force a
// specific, otherwise-racy ordering of whole steps (e.g. "reader takes a
// guard, writer publishes, reader releases the guard") and assert on the
// result. It does not pause a goroutine in the middle of a step. Every test
// built on this harness is additionally run under `go test -race` so
// the Go race detector's happens-before analysis backs the ordering
// claims the harness enforces by construction.
package interleave

// Gate is a single rendezvous point. A goroutine calls Wait to block
// until Open is called; Open may be called before or after Wait, and
// only unblocks the next single Wait call (it is not a broadcast).
type Gate struct {
	ch chan struct{}
}

// NewGate returns a ready-to-use Gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open releases exactly one blocked (or future) Wait call.
func (g *Gate) Open() {
	g.ch <- struct{}{}
}

// Wait blocks until a matching Open call arrives.
func (g *Gate) Wait() {
	<-g.ch
}

// Sequence runs steps one at a time, each in its own goroutine, waiting
// for step i to return before starting step i+1. This lets a test script
// an exact happens-before chain across goroutines that would otherwise
// race.
func Sequence(steps ...func()) {
	done := make(chan struct{})
	for _, step := range steps {
		step := step
		go func() {
			step()
			close(done)
		}()
		<-done
		done = make(chan struct{})
	}
}
