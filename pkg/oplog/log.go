package oplog

import "github.com/doubleslot/evmap/internal/dict"

// Log stores an ordered sequence of mutations recorded against the
// writer's current writable dictionary. It is drained into the sibling
// dictionary at the start of the next write so the two sides converge.
//
// Not thread-safe: the single writer owns a Log exclusively and is the
// only goroutine that touches it.
type Log[K comparable, V any] struct {
	entries []Entry[K, V]
}

// NewLog creates an empty oplog.
func NewLog[K comparable, V any]() *Log[K, V] {
	return &Log[K, V]{}
}

// Push appends e without applying it anywhere.
func (l *Log[K, V]) Push(e Entry[K, V]) {
	l.entries = append(l.entries, e)
}

// PushAndApply appends e and immediately applies it to d, which must be
// the writer's current writable dictionary.
func (l *Log[K, V]) PushAndApply(e Entry[K, V], d *dict.Dict[K, V], clone func(V) V) {
	l.entries = append(l.entries, e)
	applyEntry(e, d, clone)
}

// Apply replays every recorded entry, in order, onto d. When clone is
// non-nil it is called on each inserted/replaced value before it is
// stored; a nil clone stores values as-is. This implements the map's
// configured ValueStrategy (nil for Alias, the configured Cloner for
// Clone).
func (l *Log[K, V]) Apply(d *dict.Dict[K, V], clone func(V) V) {
	for _, e := range l.entries {
		applyEntry(e, d, clone)
	}
}

// Clear empties the log. Callers must do this after a successful Apply
// so the same mutations are never replayed twice.
func (l *Log[K, V]) Clear() {
	l.entries = l.entries[:0]
}

// Len reports the number of buffered, not-yet-replayed entries.
func (l *Log[K, V]) Len() int {
	return len(l.entries)
}

func applyEntry[K comparable, V any](e Entry[K, V], d *dict.Dict[K, V], clone func(V) V) {
	switch e.kind {
	case KindInsert, KindReplace:
		v := e.val
		if clone != nil {
			v = clone(v)
		}
		d.Insert(e.key, v)
	case KindRemove:
		d.Remove(e.key)
	case KindClear:
		d.Clear()
	}
}
