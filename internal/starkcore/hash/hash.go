// Package hash wraps the two random-oracle implementations the STARK core
// is allowed to pick from (sha256, blake2s256) behind one small interface,
// plus the vector-merging helpers the evaluation Merkle tree and the
// query-index generator build leaves and seeds from.
package hash

import (
	"crypto/sha256"
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/field"
	"golang.org/x/crypto/blake2s"
)

// Algorithm identifies a supported hash function.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	Blake2s256 Algorithm = "blake2s256"
)

// Hasher computes fixed-size digests for one configured algorithm.
type Hasher struct {
	algo Algorithm
	size int
}

// New builds a Hasher for the given algorithm.
func New(algo Algorithm) (*Hasher, error) {
	switch algo {
	case SHA256:
		return &Hasher{algo: algo, size: sha256.Size}, nil
	case Blake2s256:
		return &Hasher{algo: algo, size: blake2s.Size}, nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algo)
	}
}

// Algorithm returns the configured algorithm name.
func (h *Hasher) Algorithm() Algorithm { return h.algo }

// DigestSize returns the fixed digest length in bytes.
func (h *Hasher) DigestSize() int { return h.size }

// Digest hashes an arbitrary byte string to a fixed-size digest.
func (h *Hasher) Digest(data []byte) []byte {
	switch h.algo {
	case SHA256:
		d := sha256.Sum256(data)
		return d[:]
	case Blake2s256:
		d := blake2s.Sum256(data)
		return d[:]
	default:
		panic("hash: unreachable algorithm")
	}
}

// DigestValues splits a flat byte slice into leafWidth-byte leaves and
// returns them un-hashed; each leaf is later passed to Digest by the
// Merkle layer. leafWidth must evenly divide len(data).
func (h *Hasher) DigestValues(data []byte, leafWidth int) ([][]byte, error) {
	if leafWidth <= 0 || len(data)%leafWidth != 0 {
		return nil, fmt.Errorf("hash: data length %d not a multiple of leaf width %d", len(data), leafWidth)
	}
	count := len(data) / leafWidth
	leaves := make([][]byte, count)
	for i := 0; i < count; i++ {
		leaves[i] = append([]byte(nil), data[i*leafWidth:(i+1)*leafWidth]...)
	}
	return leaves, nil
}

// MergeVectorRows takes one or more equal-length column vectors and
// returns, for each row index i, the concatenation of every column's
// i-th element. This is how the evaluation Merkle tree's leaves are
// built from the trace-polynomial and secret-input evaluation columns:
// mergeVectorRows([P_1...P_R, S_1...S_K])[i] is the i-th leaf's values.
func MergeVectorRows(columns [][]field.Element) ([][]field.Element, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("hash: no columns to merge")
	}
	n := len(columns[0])
	for i, c := range columns {
		if len(c) != n {
			return nil, fmt.Errorf("hash: column %d has length %d, expected %d", i, len(c), n)
		}
	}
	rows := make([][]field.Element, n)
	for i := 0; i < n; i++ {
		row := make([]field.Element, len(columns))
		for c := range columns {
			row[c] = columns[c][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// SerializeRow concatenates a row's field elements into its fixed-width
// little-endian byte representation, used as a Merkle leaf before hashing.
func SerializeRow(row []field.Element) []byte {
	if len(row) == 0 {
		return nil
	}
	size := row[0].Field().ElementSize()
	out := make([]byte, 0, size*len(row))
	for _, e := range row {
		out = append(out, e.Bytes()...)
	}
	return out
}
