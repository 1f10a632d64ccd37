package protocols

import "github.com/vybium/starkcore/internal/starkcore/field"

// ZeroPolynomial is Z(x) = (x^n - 1) / (x - x_last), the vanishing
// polynomial over the execution domain with its final point excluded
// (the transition constraints are not required to hold there, since
// there is no next row).
type ZeroPolynomial struct {
	field      *field.Field
	traceLen   int
	lastPoint  field.Element
}

// NewZeroPolynomial builds Z(x) for an execution domain of size
// traceLen embedded in the evaluation domain generated by evalRoot
// (G2 in the spec's notation), at the last execution-domain step.
func NewZeroPolynomial(f *field.Field, traceLen int, evalRoot field.Element, extensionFactor int) *ZeroPolynomial {
	lastExp := int64(traceLen-1) * int64(extensionFactor)
	return &ZeroPolynomial{
		field:     f,
		traceLen:  traceLen,
		lastPoint: evalRoot.ExpInt(lastExp),
	}
}

// atLastPoint is Z(x_last), computed via L'Hopital's rule: both
// (x^n - 1) and (x - x_last) vanish at x_last, and the limit of their
// ratio is the numerator's derivative (n*x^(n-1)) over the
// denominator's derivative (1).
func (z *ZeroPolynomial) atLastPoint() field.Element {
	n := z.field.NewElementFromInt64(int64(z.traceLen))
	return n.Mul(z.lastPoint.ExpInt(int64(z.traceLen - 1)))
}

// EvaluateAt returns Z(x).
func (z *ZeroPolynomial) EvaluateAt(x field.Element) field.Element {
	if x.Equal(z.lastPoint) {
		return z.atLastPoint()
	}
	num := x.ExpInt(int64(z.traceLen)).Sub(z.field.One())
	den := x.Sub(z.lastPoint)
	return num.Mul(den.Inverse())
}

// EvaluateAll returns, for every point in domain, the numerator
// (x^n - 1) and denominator (x - x_last) separately so the caller can
// batch-invert the denominators across the whole domain at once. The
// domain point equal to x_last itself (always present, since domains
// carry no coset offset) is a removable singularity: its numerator and
// denominator are substituted with Z(x_last) and one respectively, so
// num[i]*inv(den[i]) still yields the correct value there without
// ever handing BatchInverse a zero.
func (z *ZeroPolynomial) EvaluateAll(domain []field.Element) (numerators, denominators []field.Element) {
	numerators = make([]field.Element, len(domain))
	denominators = make([]field.Element, len(domain))
	one := z.field.One()
	for i, x := range domain {
		if x.Equal(z.lastPoint) {
			numerators[i] = z.atLastPoint()
			denominators[i] = one
			continue
		}
		numerators[i] = x.ExpInt(int64(z.traceLen)).Sub(one)
		denominators[i] = x.Sub(z.lastPoint)
	}
	return numerators, denominators
}

// Polynomial returns Z(x) in coefficient form via the closed-form
// expansion (x^n - a^n)/(x - a) = sum_{k=0}^{n-1} x^(n-1-k) a^k (here
// a = x_last), a genuine degree-(n-1) polynomial with no singularity
// anywhere. Used to divide a combined constraint polynomial by Z(x)
// exactly, including at Z's own roots, where pointwise division is
// undefined.
func (z *ZeroPolynomial) Polynomial() *field.Polynomial {
	coefs := make([]field.Element, z.traceLen)
	pow := z.field.One()
	for k := 0; k < z.traceLen; k++ {
		coefs[z.traceLen-1-k] = pow
		pow = pow.Mul(z.lastPoint)
	}
	return field.NewPolynomial(z.field, coefs)
}
