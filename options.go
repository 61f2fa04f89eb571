package evmap

import (
	"fmt"

	"github.com/doubleslot/evmap/internal/dict"
)

// ValueStrategy selects how the operation log replays a value onto the
// sibling dictionary.
type ValueStrategy uint8

const (
	// StrategyClone duplicates every inserted/replaced value so each
	// map slot owns an independent copy. The default, appropriate for
	// small, cheaply-copyable values.
	StrategyClone ValueStrategy = iota
	// StrategyAlias stores the same value (typically a pointer or
	// other reference type) in both slots. Appropriate for large or
	// non-cloneable values; callers must treat published values as
	// immutable, since both slots observe the same underlying storage.
	StrategyAlias
)

// Cloner duplicates a value of type V. Used only with StrategyClone; a
// nil Cloner there means values are copied by plain assignment.
type Cloner[V any] func(V) V

// Hasher re-exports dict.Hasher so callers configuring a Builder don't
// need to import the internal package.
type Hasher[K comparable] = dict.Hasher[K]

// Options holds the resolved configuration of a Builder. Exported so
// callers assembling options programmatically (rather than through the
// OptionFunc chain) can inspect or copy a configuration.
type Options[K comparable, V any] struct {
	Capacity int
	Hasher   Hasher[K]
	Strategy ValueStrategy
	Cloner   Cloner[V]

	// MaxReplicationWriteLag bounds how long a WriteGuard may batch
	// mutations before they become visible to readers: when non-zero, a
	// WriteGuard auto-publishes once more than this many mutations are
	// buffered instead of requiring an explicit Publish/Close. Zero (the
	// default) means explicit-publish-only: mutations are invisible to
	// readers until the caller publishes.
	MaxReplicationWriteLag int
}

// OptionFunc customizes Options with a single function, applied in
// order by Builder.Build.
type OptionFunc[K comparable, V any] func(*Options[K, V])

// WithCapacity pre-sizes both backing dictionaries to hold at least n
// entries before their first grow.
func WithCapacity[K comparable, V any](n int) OptionFunc[K, V] {
	return func(o *Options[K, V]) { o.Capacity = n }
}

// WithHasher sets the hash function used by the underlying dictionary.
func WithHasher[K comparable, V any](h Hasher[K]) OptionFunc[K, V] {
	return func(o *Options[K, V]) { o.Hasher = h }
}

// WithValueStrategy sets how the operation log duplicates values when
// replaying them onto the sibling dictionary. cloner is only used for
// StrategyClone, where nil means copy by plain assignment; pass nil for
// StrategyAlias.
func WithValueStrategy[K comparable, V any](s ValueStrategy, cloner Cloner[V]) OptionFunc[K, V] {
	return func(o *Options[K, V]) {
		o.Strategy = s
		o.Cloner = cloner
	}
}

// WithMaxReplicationWriteLag sets MaxReplicationWriteLag.
func WithMaxReplicationWriteLag[K comparable, V any](writes int) OptionFunc[K, V] {
	return func(o *Options[K, V]) { o.MaxReplicationWriteLag = writes }
}

// Builder assembles a configured (Writer, Reader) pair.
type Builder[K comparable, V any] struct {
	opts Options[K, V]
}

// NewBuilder returns a Builder with defaults: no pre-sizing, the
// default hasher, and StrategyClone with a nil cloner (meaning "copy by
// value assignment", correct for any non-reference V).
func NewBuilder[K comparable, V any](options ...OptionFunc[K, V]) *Builder[K, V] {
	b := &Builder[K, V]{}
	for _, opt := range options {
		opt(&b.opts)
	}
	return b
}

// Build validates the accumulated options and constructs a fresh
// (Writer, Reader) pair. It is the only construction-time operation
// that can fail: a non-nil Cloner only makes sense for StrategyClone,
// so setting one alongside StrategyAlias is rejected outright — aliased
// values are shared by reference on purpose, and a Cloner configured
// there would silently never run. StrategyClone with a nil Cloner is
// accepted without error: that combination is only safe for value types
// Go can copy by plain assignment, which Build cannot verify generically,
// so the caller is trusted rather than rejected for the common case (V
// a plain struct or scalar).
func (b *Builder[K, V]) Build() (*Writer[K, V], *Reader[K, V], error) {
	if b.opts.Strategy == StrategyAlias && b.opts.Cloner != nil {
		return nil, nil, fmt.Errorf("evmap: Cloner must not be set for StrategyAlias")
	}
	c := newCore[K, V](b.opts.Capacity, b.opts.Hasher, b.opts.Strategy, b.opts.Cloner)
	w := newWriter(c, b.opts.MaxReplicationWriteLag)
	r := newReader(c)
	return w, r, nil
}

// New constructs a fresh (Writer, Reader) pair over empty dictionaries
// using default options.
func New[K comparable, V any]() (*Writer[K, V], *Reader[K, V]) {
	w, r, _ := NewBuilder[K, V]().Build()
	return w, r
}
