package field

import "fmt"

// Polynomial is a dense coefficient-form polynomial over a Field, stored
// lowest degree first. The zero polynomial is represented as a single
// zero coefficient.
type Polynomial struct {
	field *Field
	coefs []Element
}

// NewPolynomial builds a polynomial from coefficients (lowest degree
// first), trimming trailing zero coefficients.
func NewPolynomial(f *Field, coefs []Element) *Polynomial {
	trimmed := trimTrailingZeros(coefs)
	if len(trimmed) == 0 {
		trimmed = []Element{f.Zero()}
	}
	return &Polynomial{field: f, coefs: trimmed}
}

func trimTrailingZeros(coefs []Element) []Element {
	n := len(coefs)
	for n > 0 && coefs[n-1].IsZero() {
		n--
	}
	return coefs[:n]
}

// Degree returns the polynomial's degree; the zero polynomial has degree -1.
func (p *Polynomial) Degree() int {
	if len(p.coefs) == 1 && p.coefs[0].IsZero() {
		return -1
	}
	return len(p.coefs) - 1
}

// Coefficients returns a defensive copy of the coefficient vector.
func (p *Polynomial) Coefficients() []Element {
	out := make([]Element, len(p.coefs))
	copy(out, p.coefs)
	return out
}

// Evaluate computes p(x) via Horner's method.
func (p *Polynomial) Evaluate(x Element) Element {
	result := p.field.Zero()
	for i := len(p.coefs) - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p.coefs[i])
	}
	return result
}

// ScaleByPower returns x^shift * p(x), i.e. p with every coefficient's
// exponent incremented by shift. The composition and linear-combination
// degree adjustments do not call it; they multiply by x^shift pointwise.
func (p *Polynomial) ScaleByPower(shift int) *Polynomial {
	out := make([]Element, shift+len(p.coefs))
	for i := 0; i < shift; i++ {
		out[i] = p.field.Zero()
	}
	copy(out[shift:], p.coefs)
	return NewPolynomial(p.field, out)
}

// Add returns p + q.
func (p *Polynomial) Add(q *Polynomial) *Polynomial {
	n := len(p.coefs)
	if len(q.coefs) > n {
		n = len(q.coefs)
	}
	out := make([]Element, n)
	for i := 0; i < n; i++ {
		var a, b Element
		if i < len(p.coefs) {
			a = p.coefs[i]
		} else {
			a = p.field.Zero()
		}
		if i < len(q.coefs) {
			b = q.coefs[i]
		} else {
			b = p.field.Zero()
		}
		out[i] = a.Add(b)
	}
	return NewPolynomial(p.field, out)
}

// Sub returns p - q.
func (p *Polynomial) Sub(q *Polynomial) *Polynomial {
	n := len(p.coefs)
	if len(q.coefs) > n {
		n = len(q.coefs)
	}
	out := make([]Element, n)
	for i := 0; i < n; i++ {
		var a, b Element
		if i < len(p.coefs) {
			a = p.coefs[i]
		} else {
			a = p.field.Zero()
		}
		if i < len(q.coefs) {
			b = q.coefs[i]
		} else {
			b = p.field.Zero()
		}
		out[i] = a.Sub(b)
	}
	return NewPolynomial(p.field, out)
}

// DivMod divides p by divisor via schoolbook long division, returning
// quotient and remainder such that p = quotient*divisor + remainder
// and remainder.Degree() < divisor.Degree().
func (p *Polynomial) DivMod(divisor *Polynomial) (quotient, remainder *Polynomial, err error) {
	dDeg := divisor.Degree()
	if dDeg < 0 {
		return nil, nil, fmt.Errorf("field: division by the zero polynomial")
	}
	leadInv := divisor.coefs[dDeg].Inverse()

	rem := make([]Element, len(p.coefs))
	copy(rem, p.coefs)
	remDeg := p.Degree()

	qLen := remDeg - dDeg + 1
	if qLen < 1 {
		qLen = 1
	}
	qCoefs := make([]Element, qLen)
	for i := range qCoefs {
		qCoefs[i] = p.field.Zero()
	}

	for remDeg >= dDeg {
		coef := rem[remDeg].Mul(leadInv)
		qCoefs[remDeg-dDeg] = coef
		for i := 0; i <= dDeg; i++ {
			rem[remDeg-dDeg+i] = rem[remDeg-dDeg+i].Sub(coef.Mul(divisor.coefs[i]))
		}
		for remDeg >= 0 && rem[remDeg].IsZero() {
			remDeg--
		}
	}

	var remCoefs []Element
	if remDeg < 0 {
		remCoefs = []Element{p.field.Zero()}
	} else {
		remCoefs = rem[:remDeg+1]
	}
	return NewPolynomial(p.field, qCoefs), NewPolynomial(p.field, remCoefs), nil
}

// DivideExact divides p by divisor and errors if a nonzero remainder
// survives. Used where p is known by construction to vanish at every
// root of divisor, e.g. a combined constraint polynomial divided by
// the trace domain's zero polynomial: a nonzero remainder there means
// the trace does not actually satisfy the constraints.
func (p *Polynomial) DivideExact(divisor *Polynomial) (*Polynomial, error) {
	q, r, err := p.DivMod(divisor)
	if err != nil {
		return nil, err
	}
	if r.Degree() >= 0 {
		return nil, fmt.Errorf("field: exact division left a nonzero remainder of degree %d", r.Degree())
	}
	return q, nil
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// bitReverse returns the bits of x reversed within a field of `bits` bits.
func bitReverse(x, bits int) int {
	r := 0
	for i := 0; i < bits; i++ {
		r = (r << 1) | (x & 1)
		x >>= 1
	}
	return r
}

// ntt performs an in-place radix-2 Cooley-Tukey NTT using the given
// primitive root of unity for len(values). Used by both EvaluateOnDomain
// (forward) and InterpolateDomain (inverse, via root.Inverse() and a
// final scale by 1/n).
func ntt(values []Element, root Element) {
	n := len(values)
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	for i := 0; i < n; i++ {
		j := bitReverse(i, bits)
		if j > i {
			values[i], values[j] = values[j], values[i]
		}
	}

	f := root.Field()
	for size := 2; size <= n; size <<= 1 {
		halfSize := size / 2
		// twiddle = primitive (size)-th root of unity, derived from root by
		// exponentiating: root is an n-th root, so root^(n/size) is a
		// size-th root.
		exp := int64(n / size)
		w := root.ExpInt(exp)
		for start := 0; start < n; start += size {
			wPow := f.One()
			for k := 0; k < halfSize; k++ {
				u := values[start+k]
				v := values[start+k+halfSize].Mul(wPow)
				values[start+k] = u.Add(v)
				values[start+k+halfSize] = u.Sub(v)
				wPow = wPow.Mul(w)
			}
		}
	}
}

// EvaluateOnDomain evaluates p over the domain {root^0, root^1, ..., root^(n-1)}
// using an NTT, where n is a power of two and root is a primitive n-th root
// of unity. The polynomial's coefficient vector is zero-padded to length n.
func EvaluateOnDomain(p *Polynomial, root Element, n int) ([]Element, error) {
	if !isPowerOfTwo(n) {
		return nil, fmt.Errorf("field: domain size %d must be a power of two", n)
	}
	if len(p.coefs) > n {
		return nil, fmt.Errorf("field: polynomial degree %d exceeds domain size %d", p.Degree(), n)
	}
	values := make([]Element, n)
	f := p.field
	for i := 0; i < n; i++ {
		if i < len(p.coefs) {
			values[i] = p.coefs[i]
		} else {
			values[i] = f.Zero()
		}
	}
	ntt(values, root)
	return values, nil
}

// InterpolateDomain recovers the unique polynomial of degree < n agreeing
// with values over the domain generated by root (a primitive n-th root of
// unity), via an inverse NTT.
func InterpolateDomain(f *Field, values []Element, root Element) (*Polynomial, error) {
	n := len(values)
	if !isPowerOfTwo(n) {
		return nil, fmt.Errorf("field: domain size %d must be a power of two", n)
	}
	coefs := make([]Element, n)
	copy(coefs, values)
	invRoot := root.Inverse()
	ntt(coefs, invRoot)
	nInv := f.NewElementFromUint64(uint64(n)).Inverse()
	for i := range coefs {
		coefs[i] = coefs[i].Mul(nInv)
	}
	return NewPolynomial(f, coefs), nil
}

// LagrangeInterpolate recovers the unique minimal-degree polynomial
// through an arbitrary (non-domain) set of (x, y) pairs. This is O(n^2)
// and is used only for small point sets: per-register boundary
// interpolants I_r(x), FRI's 4-point fiber rows, and the FRI remainder
// check. Vanishing polynomials Z_r(x) come from VanishingPolynomial.
func LagrangeInterpolate(f *Field, xs, ys []Element) (*Polynomial, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("field: interpolation point/value count mismatch")
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("field: cannot interpolate zero points")
	}

	result := NewPolynomial(f, []Element{f.Zero()})
	for i := range xs {
		// Build the Lagrange basis polynomial l_i(x) = prod_{j!=i} (x - x_j)/(x_i - x_j)
		basis := NewPolynomial(f, []Element{f.One()})
		denom := f.One()
		for j := range xs {
			if i == j {
				continue
			}
			// multiply basis by (x - x_j)
			basis = basis.mulLinear(xs[j])
			diff := xs[i].Sub(xs[j])
			if diff.IsZero() {
				return nil, fmt.Errorf("field: duplicate interpolation point %s", xs[i])
			}
			denom = denom.Mul(diff)
		}
		denomInv := denom.Inverse()
		scale := ys[i].Mul(denomInv)
		result = result.Add(basis.scale(scale))
	}
	return result, nil
}

// mulLinear multiplies the polynomial by (x - root).
func (p *Polynomial) mulLinear(root Element) *Polynomial {
	n := len(p.coefs)
	out := make([]Element, n+1)
	for i := range out {
		out[i] = p.field.Zero()
	}
	for i, c := range p.coefs {
		out[i+1] = out[i+1].Add(c)
		out[i] = out[i].Sub(c.Mul(root))
	}
	return NewPolynomial(p.field, out)
}

// scale multiplies every coefficient by c.
func (p *Polynomial) scale(c Element) *Polynomial {
	out := make([]Element, len(p.coefs))
	for i, v := range p.coefs {
		out[i] = v.Mul(c)
	}
	return NewPolynomial(p.field, out)
}

// VanishingPolynomial builds Z(x) = prod (x - x_j) over the given roots.
func VanishingPolynomial(f *Field, roots []Element) *Polynomial {
	result := NewPolynomial(f, []Element{f.One()})
	for _, r := range roots {
		result = result.mulLinear(r)
	}
	return result
}
