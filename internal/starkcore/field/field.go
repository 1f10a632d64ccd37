// Package field implements prime-field arithmetic for the STARK core.
//
// Unlike the VM's original Goldilocks-only field.Element, this field is
// parameterized by an arbitrary prime modulus whose (p-1) has a large
// power-of-two factor, as required for FFT-friendly evaluation domains.
// Values are kept as big.Int internally but every element serializes to
// a fixed-width little-endian byte string sized to the modulus.
package field

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
)

// Field is a finite field Z/pZ for a prime p.
type Field struct {
	modulus     *big.Int
	elementSize int
	generator   *Element // cached generator of the full multiplicative group
}

// Element is a residue modulo the field's modulus.
type Element struct {
	field *Field
	value *big.Int
}

// New creates a field with the given prime modulus. The modulus is not
// checked for primality; callers are expected to supply a verified prime.
func New(modulus *big.Int) (*Field, error) {
	if modulus.Cmp(big.NewInt(2)) <= 0 {
		return nil, fmt.Errorf("field: modulus must be greater than 2")
	}
	size := (modulus.BitLen() + 7) / 8
	if size == 0 {
		size = 1
	}
	return &Field{modulus: new(big.Int).Set(modulus), elementSize: size}, nil
}

// MustNew is like New but panics on error. Intended for package-level
// constant fields known to be valid at init time.
func MustNew(modulus *big.Int) *Field {
	f, err := New(modulus)
	if err != nil {
		panic(err)
	}
	return f
}

// Modulus returns a copy of the field's prime modulus.
func (f *Field) Modulus() *big.Int { return new(big.Int).Set(f.modulus) }

// ElementSize returns the fixed serialized width of an element, in bytes.
func (f *Field) ElementSize() int { return f.elementSize }

// Zero returns the additive identity.
func (f *Field) Zero() Element { return Element{field: f, value: big.NewInt(0)} }

// One returns the multiplicative identity.
func (f *Field) One() Element { return Element{field: f, value: big.NewInt(1)} }

// NewElement reduces v modulo the field's modulus.
func (f *Field) NewElement(v *big.Int) Element {
	r := new(big.Int).Mod(v, f.modulus)
	return Element{field: f, value: r}
}

// NewElementFromUint64 builds an element from a uint64.
func (f *Field) NewElementFromUint64(v uint64) Element {
	return f.NewElement(new(big.Int).SetUint64(v))
}

// NewElementFromInt64 builds an element from an int64, handling negatives.
func (f *Field) NewElementFromInt64(v int64) Element {
	return f.NewElement(big.NewInt(v))
}

// Field returns the field this element belongs to.
func (e Element) Field() *Field { return e.field }

// Big returns the element's value as a non-negative big.Int less than p.
func (e Element) Big() *big.Int { return new(big.Int).Set(e.value) }

// IsZero reports whether the element is the additive identity.
func (e Element) IsZero() bool { return e.value.Sign() == 0 }

// IsOne reports whether the element is the multiplicative identity.
func (e Element) IsOne() bool { return e.value.Cmp(big.NewInt(1)) == 0 }

// Equal reports value equality within the same field.
func (e Element) Equal(o Element) bool {
	return e.value.Cmp(o.value) == 0
}

// Add returns e + o.
func (e Element) Add(o Element) Element {
	return e.field.NewElement(new(big.Int).Add(e.value, o.value))
}

// Sub returns e - o.
func (e Element) Sub(o Element) Element {
	return e.field.NewElement(new(big.Int).Sub(e.value, o.value))
}

// Neg returns -e.
func (e Element) Neg() Element {
	return e.field.NewElement(new(big.Int).Neg(e.value))
}

// Mul returns e * o.
func (e Element) Mul(o Element) Element {
	return e.field.NewElement(new(big.Int).Mul(e.value, o.value))
}

// Inverse returns the multiplicative inverse of e. Panics if e is zero;
// callers on hot paths are expected to check IsZero or use BatchInverse.
func (e Element) Inverse() Element {
	if e.IsZero() {
		panic("field: inverse of zero")
	}
	inv := new(big.Int).ModInverse(e.value, e.field.modulus)
	return Element{field: e.field, value: inv}
}

// TryInverse is the non-panicking form of Inverse.
func (e Element) TryInverse() (Element, error) {
	if e.IsZero() {
		return Element{}, fmt.Errorf("field: inverse of zero")
	}
	return e.Inverse(), nil
}

// Div returns e / o.
func (e Element) Div(o Element) (Element, error) {
	inv, err := o.TryInverse()
	if err != nil {
		return Element{}, err
	}
	return e.Mul(inv), nil
}

// Exp returns e^n for a non-negative exponent.
func (e Element) Exp(n *big.Int) Element {
	r := new(big.Int).Exp(e.value, n, e.field.modulus)
	return Element{field: e.field, value: r}
}

// ExpInt is a convenience wrapper around Exp for small exponents.
func (e Element) ExpInt(n int64) Element {
	return e.Exp(big.NewInt(n))
}

// String renders the element's residue in decimal.
func (e Element) String() string { return e.value.String() }

// Bytes serializes the element to a fixed-width little-endian byte string
// sized to the field's ElementSize.
func (e Element) Bytes() []byte {
	size := e.field.elementSize
	out := make([]byte, size)
	b := e.value.Bytes() // big-endian, no leading zeros
	for i := 0; i < len(b) && i < size; i++ {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// FromBytes parses a fixed-width little-endian byte string into an element.
func (f *Field) FromBytes(b []byte) Element {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return f.NewElement(new(big.Int).SetBytes(be))
}

// GetRootOfUnity returns a primitive n-th root of unity, where n must be a
// power of two dividing (p-1). Returns an error if no such root exists.
func (f *Field) GetRootOfUnity(n int) (Element, error) {
	if n <= 0 || (n&(n-1)) != 0 {
		return Element{}, fmt.Errorf("field: domain size %d is not a power of two", n)
	}
	pMinus1 := new(big.Int).Sub(f.modulus, big.NewInt(1))
	nBig := big.NewInt(int64(n))
	q, r := new(big.Int).QuoRem(pMinus1, nBig, new(big.Int))
	if r.Sign() != 0 {
		return Element{}, fmt.Errorf("field: %d does not divide p-1", n)
	}

	// Find a generator of Z/pZ* by trial, then raise it to (p-1)/n.
	g, err := f.findGenerator()
	if err != nil {
		return Element{}, err
	}
	root := g.Exp(q)
	if root.IsOne() {
		return Element{}, fmt.Errorf("field: could not find primitive %d-th root of unity", n)
	}
	return root, nil
}

// findGenerator locates a generator of the full multiplicative group by
// trial squarefree-factor exponentiation. Suitable for the small-ish
// moduli used throughout this package; cached per field instance.
func (f *Field) findGenerator() (Element, error) {
	if f.generator != nil {
		return *f.generator, nil
	}
	pMinus1 := new(big.Int).Sub(f.modulus, big.NewInt(1))
	factors := primeFactors(pMinus1)

	for candidate := int64(2); candidate < 10000; candidate++ {
		g := f.NewElementFromInt64(candidate)
		if g.IsZero() {
			continue
		}
		isGenerator := true
		for _, p := range factors {
			exp := new(big.Int).Div(pMinus1, p)
			if g.Exp(exp).IsOne() {
				isGenerator = false
				break
			}
		}
		if isGenerator {
			f.generator = &g
			return g, nil
		}
	}
	return Element{}, fmt.Errorf("field: failed to locate a generator")
}

// primeFactors returns the distinct prime factors of n via trial division.
// n is expected to be smooth enough (p-1 for STARK-friendly primes always
// has very few large prime factors beyond the power-of-two part).
func primeFactors(n *big.Int) []*big.Int {
	n = new(big.Int).Set(n)
	var factors []*big.Int
	two := big.NewInt(2)
	if new(big.Int).Mod(n, two).Sign() == 0 {
		factors = append(factors, new(big.Int).Set(two))
		for new(big.Int).Mod(n, two).Sign() == 0 {
			n.Div(n, two)
		}
	}
	for d := big.NewInt(3); new(big.Int).Mul(d, d).Cmp(n) <= 0; d.Add(d, big.NewInt(2)) {
		if new(big.Int).Mod(n, d).Sign() == 0 {
			factors = append(factors, new(big.Int).Set(d))
			for new(big.Int).Mod(n, d).Sign() == 0 {
				n.Div(n, d)
			}
		}
	}
	if n.Cmp(big.NewInt(1)) > 0 {
		factors = append(factors, n)
	}
	return factors
}

// PRNG deterministically expands a seed into count field elements, each
// uniform over [0, p). Used to derive composition and linear-combination
// coefficients from a Merkle root in a reproducible, Fiat-Shamir-safe way.
//
// state = SHA256(seed); element i = SHA256(state || i) mod p.
func (f *Field) PRNG(seed []byte, count int) []Element {
	state := sha256.Sum256(seed)
	out := make([]Element, count)
	for i := 0; i < count; i++ {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(i))
		h := sha256.Sum256(append(append([]byte{}, state[:]...), buf[:]...))
		out[i] = f.NewElement(new(big.Int).SetBytes(h[:]))
	}
	return out
}
