package hashindex

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

func getHash(hasher func(b []byte) uint64, key, size int64) uint {
	buf := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(buf, key)
	h := int64(hasher(buf))
	if h < 0 {
		h = -h
	}
	return uint(h % size)
}

// xxHash bounds key's xxHash digest to [0, size).
func xxHash(key, size int64) uint { return getHash(xxhash.Sum64, key, size) }

// murmurHash bounds key's MurmurHash3 digest to [0, size). Unused by
// the directory lookup itself (spec doesn't call for a second
// hash family) but kept available for a caller that wants to verify
// bucket placement against an independent hash, the way the teacher's
// verify.go cross-checks a bucket's claimed local depth.
func murmurHash(key, size int64) uint { return getHash(murmur3.Sum64, key, size) }

// hashOf returns key's directory hash at the given depth.
func hashOf(key, depth int64) int64 {
	return int64(xxHash(key, powInt(2, depth)))
}

func powInt(x, y int64) int64 {
	return int64(math.Pow(float64(x), float64(y)))
}
