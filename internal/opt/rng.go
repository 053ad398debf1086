package opt

import (
	"math/rand"
	"time"
)

// rngFromSeed returns a deterministic source for a non-zero seed and a
// time-seeded one otherwise.
func rngFromSeed(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// deriveSeed mixes base and stream with SplitMix64 so that neighbouring
// streams get uncorrelated seeds.
func deriveSeed(base int64, stream uint64) int64 {
	z := uint64(base) + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}

// deriveRNG returns the generator for one parallel task. Callers draw base
// once from their own generator, then hand task i the stream i.
func deriveRNG(base int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(base, stream)))
}
