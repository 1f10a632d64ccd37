package starkcore

import (
	"github.com/vybium/starkcore/internal/starkcore/hash"
)

const (
	minExtensionFactor = 2
	maxExtensionFactor = 32
	maxExeQueryCount   = 128
	defaultExeQueryCount = 80
	maxFriQueryCount   = 64
	defaultFriQueryCount = 40
)

// Options configures one prove or verify call. Every field is
// optional; resolve fills in defaults derived from the AIR's maximum
// constraint degree where the spec calls for it.
type Options struct {
	// ExtensionFactor is a power of two in [2,32]. Zero selects the
	// smallest power of two >= 2*maxConstraintDegree.
	ExtensionFactor int

	// ExeQueryCount is the number of execution-domain query positions,
	// 1..128. Zero selects 80.
	ExeQueryCount int

	// FriQueryCount is the number of FRI consistency-check query
	// positions per layer, 1..64. Zero selects 40.
	FriQueryCount int

	// HashAlgorithm selects the random-oracle implementation. Empty
	// selects "sha256".
	HashAlgorithm hash.Algorithm
}

// resolved is an Options value with every field populated and validated.
type resolved struct {
	ExtensionFactor int
	ExeQueryCount   int
	FriQueryCount   int
	HashAlgorithm   hash.Algorithm
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func ilog2(n int) int {
	if n <= 0 {
		return 0
	}
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	return bits
}

func smallestPowerOfTwoAtLeast(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// resolve fills in defaults and validates the result, given the AIR's
// maximum transition-constraint degree.
func (o Options) resolve(maxConstraintDegree int) (*resolved, error) {
	r := &resolved{
		ExtensionFactor: o.ExtensionFactor,
		ExeQueryCount:   o.ExeQueryCount,
		FriQueryCount:   o.FriQueryCount,
		HashAlgorithm:   o.HashAlgorithm,
	}

	if r.ExtensionFactor == 0 {
		r.ExtensionFactor = smallestPowerOfTwoAtLeast(2 * maxConstraintDegree)
		if r.ExtensionFactor < minExtensionFactor {
			r.ExtensionFactor = minExtensionFactor
		}
	}
	if !isPowerOfTwo(r.ExtensionFactor) || r.ExtensionFactor < minExtensionFactor || r.ExtensionFactor > maxExtensionFactor {
		return nil, newErr(ErrConfiguration, nil, "extensionFactor must be a power of two in [%d,%d], got %d", minExtensionFactor, maxExtensionFactor, r.ExtensionFactor)
	}

	if r.ExeQueryCount == 0 {
		r.ExeQueryCount = defaultExeQueryCount
	}
	if r.ExeQueryCount < 1 || r.ExeQueryCount > maxExeQueryCount {
		return nil, newErr(ErrConfiguration, nil, "exeQueryCount must be in [1,%d], got %d", maxExeQueryCount, r.ExeQueryCount)
	}

	if r.FriQueryCount == 0 {
		r.FriQueryCount = defaultFriQueryCount
	}
	if r.FriQueryCount < 1 || r.FriQueryCount > maxFriQueryCount {
		return nil, newErr(ErrConfiguration, nil, "friQueryCount must be in [1,%d], got %d", maxFriQueryCount, r.FriQueryCount)
	}

	if r.HashAlgorithm == "" {
		r.HashAlgorithm = hash.SHA256
	}
	if r.HashAlgorithm != hash.SHA256 && r.HashAlgorithm != hash.Blake2s256 {
		return nil, newErr(ErrConfiguration, nil, "unsupported hash algorithm %q", r.HashAlgorithm)
	}

	return r, nil
}

// securityLevel reports the bit-security level the given resolved
// options and field/hash configuration provide, for diagnostics only
// — the core never relies on this figure for correctness.
func securityLevel(r *resolved, maxConstraintDegree, digestSize int) int {
	min := func(a, b int) int {
		if a < b {
			return a
		}
		return b
	}
	bound1 := ilog2(r.ExtensionFactor/maxConstraintDegree) * r.ExeQueryCount
	bound2 := ilog2(r.ExtensionFactor) * r.FriQueryCount
	bound3 := 4 * digestSize
	return min(min(bound1, bound2), bound3)
}
