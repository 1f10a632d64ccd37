// Package merkle implements a binary Merkle tree with compact batch
// openings: a single proof can authenticate many leaves at once while
// sharing internal nodes common to more than one authentication path.
package merkle

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/vybium/starkcore/internal/starkcore/hash"
)

// Tree is a binary Merkle tree over a power-of-two number of leaves.
type Tree struct {
	hasher *hash.Hasher
	leaves [][]byte   // raw, un-hashed leaf bytes
	levels [][][]byte // levels[0] = leaf digests, levels[len-1] = [root]
}

// Create builds a Merkle tree over the given raw leaves using hasher.
// len(leaves) must be a power of two.
func Create(leaves [][]byte, hasher *hash.Hasher) (*Tree, error) {
	n := len(leaves)
	if n == 0 {
		return nil, fmt.Errorf("merkle: cannot build a tree with zero leaves")
	}
	if n&(n-1) != 0 {
		return nil, fmt.Errorf("merkle: leaf count %d must be a power of two", n)
	}

	digests := make([][]byte, n)
	for i, l := range leaves {
		digests[i] = hasher.Digest(l)
	}

	levels := [][][]byte{digests}
	current := digests
	for len(current) > 1 {
		next := make([][]byte, len(current)/2)
		for i := range next {
			next[i] = hasher.Digest(append(append([]byte{}, current[2*i]...), current[2*i+1]...))
		}
		levels = append(levels, next)
		current = next
	}

	storedLeaves := make([][]byte, n)
	for i, l := range leaves {
		storedLeaves[i] = append([]byte(nil), l...)
	}

	return &Tree{hasher: hasher, leaves: storedLeaves, levels: levels}, nil
}

// Root returns the tree's root digest.
func (t *Tree) Root() []byte {
	return append([]byte(nil), t.levels[len(t.levels)-1][0]...)
}

// Depth returns the number of levels above the leaves (log2 of leaf count).
func (t *Tree) Depth() int { return len(t.levels) - 1 }

// NumLeaves returns the number of leaves in the tree.
func (t *Tree) NumLeaves() int { return len(t.leaves) }

// Leaf returns the raw bytes of the leaf at index i.
func (t *Tree) Leaf(i int) []byte { return t.leaves[i] }

// BatchProof authenticates a set of leaves against one root with shared
// internal nodes folded together. Nodes is organized per level: Nodes[l]
// holds, in ascending sibling-index order, exactly the digests at level l
// that a verifier cannot derive from Values or from earlier levels.
type BatchProof struct {
	Values [][]byte
	Nodes  [][][]byte
	Depth  int
}

func sortUniquePositions(positions []int) []int {
	seen := make(map[int]bool, len(positions))
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// ProveBatch builds a compact authentication proof for the given leaf
// positions (order-insensitive; duplicates are collapsed). Values in the
// returned proof are ordered by ascending position.
func (t *Tree) ProveBatch(positions []int) (*BatchProof, error) {
	sorted := sortUniquePositions(positions)
	n := t.NumLeaves()
	for _, p := range sorted {
		if p < 0 || p >= n {
			return nil, fmt.Errorf("merkle: query position %d out of range [0,%d)", p, n)
		}
	}

	values := make([][]byte, len(sorted))
	for i, p := range sorted {
		values[i] = append([]byte(nil), t.leaves[p]...)
	}

	depth := t.Depth()
	nodes := make([][][]byte, depth)

	known := make(map[int]bool, len(sorted))
	for _, p := range sorted {
		known[p] = true
	}

	for level := 0; level < depth; level++ {
		orderedKnown := sortedKeys(known)
		added := make(map[int]bool)
		for _, idx := range orderedKnown {
			sib := idx ^ 1
			if !known[sib] && !added[sib] {
				nodes[level] = append(nodes[level], append([]byte(nil), t.levels[level][sib]...))
				added[sib] = true
			}
		}
		next := make(map[int]bool)
		for idx := range known {
			next[idx/2] = true
		}
		known = next
	}

	return &BatchProof{Values: values, Nodes: nodes, Depth: depth}, nil
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func hashPair(hasher *hash.Hasher, left, right []byte) []byte {
	return hasher.Digest(append(append([]byte{}, left...), right...))
}

// VerifyBatch checks that proof authenticates leaf values at the given
// positions (order-insensitive; duplicates collapsed the same way
// ProveBatch collapses them) against root.
func VerifyBatch(root []byte, positions []int, proof *BatchProof, hasher *hash.Hasher) (bool, error) {
	sorted := sortUniquePositions(positions)
	if len(proof.Values) != len(sorted) {
		return false, fmt.Errorf("merkle: proof has %d values, expected %d", len(proof.Values), len(sorted))
	}
	if len(proof.Nodes) != proof.Depth {
		return false, fmt.Errorf("merkle: proof declares depth %d but carries %d node levels", proof.Depth, len(proof.Nodes))
	}

	knownDigest := make(map[int][]byte, len(sorted))
	for i, p := range sorted {
		knownDigest[p] = hasher.Digest(proof.Values[i])
	}

	for level := 0; level < proof.Depth; level++ {
		orderedKnown := sortedKeysFromDigestMap(knownDigest)
		siblingDigest := make(map[int][]byte)
		added := make(map[int]bool)
		ptr := 0
		for _, idx := range orderedKnown {
			sib := idx ^ 1
			if _, ok := knownDigest[sib]; ok {
				continue
			}
			if added[sib] {
				continue
			}
			if ptr >= len(proof.Nodes[level]) {
				return false, fmt.Errorf("merkle: proof exhausted at level %d", level)
			}
			siblingDigest[sib] = proof.Nodes[level][ptr]
			ptr++
			added[sib] = true
		}
		if ptr != len(proof.Nodes[level]) {
			return false, fmt.Errorf("merkle: proof supplies %d extra nodes at level %d", len(proof.Nodes[level])-ptr, level)
		}

		nextDigest := make(map[int][]byte)
		processed := make(map[int]bool)
		for _, idx := range orderedKnown {
			parent := idx / 2
			if processed[parent] {
				continue
			}
			processed[parent] = true
			left, right := parent*2, parent*2+1
			leftDigest, ok := knownDigest[left]
			if !ok {
				leftDigest, ok = siblingDigest[left]
				if !ok {
					return false, fmt.Errorf("merkle: missing digest for node %d at level %d", left, level)
				}
			}
			rightDigest, ok := knownDigest[right]
			if !ok {
				rightDigest, ok = siblingDigest[right]
				if !ok {
					return false, fmt.Errorf("merkle: missing digest for node %d at level %d", right, level)
				}
			}
			nextDigest[parent] = hashPair(hasher, leftDigest, rightDigest)
		}
		knownDigest = nextDigest
	}

	final, ok := knownDigest[0]
	if !ok {
		return false, fmt.Errorf("merkle: proof did not resolve to the root")
	}
	return bytes.Equal(final, root), nil
}

func sortedKeysFromDigestMap(m map[int][]byte) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
