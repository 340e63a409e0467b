package utils

import "hash/fnv"

// FingerprintString returns the 64-bit FNV-1a hash of s. Cache keys are
// built from it; callers keep the source text next to the cached value and
// compare on hit.
func FingerprintString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
