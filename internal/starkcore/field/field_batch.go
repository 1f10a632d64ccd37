package field

import "fmt"

// BatchInverse inverts every element in one pass using Montgomery's trick:
// one accumulated product, a single inversion, and a back-substitution
// pass. It turns O(n) inversions into O(n) multiplications plus a
// single inversion, and errors if any element is zero. The prover's
// divisions by Z(x) and Z_r(x) do not go through it: they use exact
// polynomial division (Polynomial.DivideExact) instead.
func BatchInverse(elements []Element) ([]Element, error) {
	n := len(elements)
	if n == 0 {
		return []Element{}, nil
	}

	for i, e := range elements {
		if e.IsZero() {
			return nil, fmt.Errorf("field: batch inverse of zero element at index %d", i)
		}
	}

	acc := make([]Element, n)
	acc[0] = elements[0]
	for i := 1; i < n; i++ {
		acc[i] = acc[i-1].Mul(elements[i])
	}

	accInv := acc[n-1].Inverse()

	results := make([]Element, n)
	for i := n - 1; i > 0; i-- {
		results[i] = accInv.Mul(acc[i-1])
		accInv = accInv.Mul(elements[i])
	}
	results[0] = accInv

	return results, nil
}

// AddVec adds two equal-length vectors elementwise.
func AddVec(a, b []Element) []Element {
	out := make([]Element, len(a))
	for i := range a {
		out[i] = a[i].Add(b[i])
	}
	return out
}

// SubVec subtracts two equal-length vectors elementwise.
func SubVec(a, b []Element) []Element {
	out := make([]Element, len(a))
	for i := range a {
		out[i] = a[i].Sub(b[i])
	}
	return out
}

// MulVec multiplies two equal-length vectors elementwise.
func MulVec(a, b []Element) []Element {
	out := make([]Element, len(a))
	for i := range a {
		out[i] = a[i].Mul(b[i])
	}
	return out
}

// ScaleVec multiplies every element of a by the scalar c.
func ScaleVec(a []Element, c Element) []Element {
	out := make([]Element, len(a))
	for i := range a {
		out[i] = a[i].Mul(c)
	}
	return out
}
