package protocols

import (
	"encoding/binary"
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/hash"
)

// iterationMultiplier bounds the rejection-sampling loop at
// iterationMultiplier * requested attempts before giving up. The spec
// calls 1000x a safety cap, not a tight bound: any cap large enough
// that it cannot plausibly exhaust itself for the supported parameter
// ranges is conforming.
const iterationMultiplier = 1000

// QueryIndexGenerator derives the pseudorandom query positions the
// prover opens and the verifier re-derives, binding both to a
// commitment root via the configured hash so index selection is
// Fiat-Shamir-safe.
type QueryIndexGenerator struct {
	hasher          *hash.Hasher
	extensionFactor int
}

// NewQueryIndexGenerator builds a generator bound to hasher. Both
// exeIndexes and friIndexes exclude multiples of extensionFactor, per
// the invariant that no query may land on a trivially-openable trace
// domain point.
func NewQueryIndexGenerator(hasher *hash.Hasher, extensionFactor int) *QueryIndexGenerator {
	return &QueryIndexGenerator{hasher: hasher, extensionFactor: extensionFactor}
}

// ExeIndexes returns up to count distinct indices in [0, domainSize)
// derived from seed, excluding multiples of extensionFactor.
func (g *QueryIndexGenerator) ExeIndexes(seed []byte, domainSize, count int) ([]int, error) {
	return g.generate(seed, domainSize, count)
}

// FriIndexes returns up to count distinct indices in [0, columnLength)
// derived from seed, under the same exclusion rule as ExeIndexes.
func (g *QueryIndexGenerator) FriIndexes(seed []byte, columnLength, count int) ([]int, error) {
	return g.generate(seed, columnLength, count)
}

func (g *QueryIndexGenerator) generate(seed []byte, domainSize, count int) ([]int, error) {
	if domainSize <= 0 {
		return nil, fmt.Errorf("protocols: domainSize must be positive, got %d", domainSize)
	}

	excludedCount := 0
	if g.extensionFactor > 1 && g.extensionFactor <= domainSize {
		excludedCount = domainSize / g.extensionFactor
	}
	maxAvailable := domainSize - excludedCount
	if count > maxAvailable {
		count = maxAvailable
	}
	if count <= 0 {
		return nil, nil
	}

	state := g.hasher.Digest(seed)
	chosen := make(map[int]bool, count)
	out := make([]int, 0, count)

	for i := 0; len(out) < count; i++ {
		if i >= iterationMultiplier*count {
			return nil, fmt.Errorf("protocols: InsufficientEntropy: could not draw %d indices from domain of size %d after %d attempts", count, domainSize, i)
		}
		var iBytes [8]byte
		binary.LittleEndian.PutUint64(iBytes[:], uint64(i))
		digest := g.hasher.Digest(append(append([]byte{}, state...), iBytes[:]...))
		candidate := int(digestToUint64(digest) % uint64(domainSize))

		if g.extensionFactor > 1 && candidate%g.extensionFactor == 0 {
			continue
		}
		if chosen[candidate] {
			continue
		}
		chosen[candidate] = true
		out = append(out, candidate)
	}
	return out, nil
}

func digestToUint64(digest []byte) uint64 {
	var v uint64
	n := len(digest)
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		v = (v << 8) | uint64(digest[i])
	}
	return v
}
