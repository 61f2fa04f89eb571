package dict

import (
	"fmt"
	"hash/maphash"
)

// hashAny is the default Hasher used when a Builder does not supply one.
// It is correct for any comparable K but, lacking reflection-free access
// to Go's internal map hash, pays the cost of a formatted representation.
// Callers with a performance-sensitive key type should supply their own
// Hasher via WithHasher.
func hashAny[K comparable](seed maphash.Seed, k K) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	fmt.Fprintf(&h, "%v", k)
	return h.Sum64()
}
