// Package protocols implements the STARK core: the algebraic machinery
// that turns an execution trace plus a set of constraints into a proof,
// and the mirrored machinery that checks one. Every sub-component here
// (query index generation, the zero polynomial, boundary constraints,
// the composition polynomial, the linear combination, and FRI) is a
// leaf the orchestrator in the parent package wires together.
package protocols

import (
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/field"
)

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func ilog2(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	return bits
}

// Domain is a power-of-two-length roots-of-unity domain {offset *
// generator^i : i = 0..length-1}. Offset defaults to one: every domain
// the orchestrator derives is a pure multiplicative subgroup, not a
// coset, so a trace-domain point and an evaluation-domain point with
// the same exponent coincide. That coincidence is deliberate (it is
// exactly what lets the query index generator reject "multiples of
// extensionFactor" as trivial openings); WithOffset exists for
// completeness but production code never calls it with a non-identity
// value.
type Domain struct {
	Field     *field.Field
	Offset    field.Element
	Generator field.Element
	Length    int
}

// NewDomain builds the length-th roots of unity domain with no offset.
func NewDomain(f *field.Field, length int) (*Domain, error) {
	if !isPowerOfTwo(length) {
		return nil, fmt.Errorf("protocols: domain length %d must be a power of two", length)
	}
	g, err := f.GetRootOfUnity(length)
	if err != nil {
		return nil, fmt.Errorf("protocols: deriving domain of length %d: %w", length, err)
	}
	return &Domain{Field: f, Offset: f.One(), Generator: g, Length: length}, nil
}

// WithOffset returns a copy of d shifted by offset.
func (d *Domain) WithOffset(offset field.Element) *Domain {
	return &Domain{Field: d.Field, Offset: offset, Generator: d.Generator, Length: d.Length}
}

// Elements returns every point in the domain, in index order.
func (d *Domain) Elements() []field.Element {
	out := make([]field.Element, d.Length)
	cur := d.Offset
	for i := range out {
		out[i] = cur
		cur = cur.Mul(d.Generator)
	}
	return out
}

// At returns the i-th domain point without materializing the whole domain.
func (d *Domain) At(i int) field.Element {
	return d.Offset.Mul(d.Generator.ExpInt(int64(i)))
}

// Evaluate low-degree-extends p (whose coefficient count must not
// exceed d.Length) over the domain via an NTT, applying d's coset
// offset first if it is not the identity.
func (d *Domain) Evaluate(p *field.Polynomial) ([]field.Element, error) {
	coefs := p.Coefficients()
	if len(coefs) > d.Length {
		return nil, fmt.Errorf("protocols: polynomial of degree %d does not fit domain of length %d", p.Degree(), d.Length)
	}
	padded := make([]field.Element, d.Length)
	zero := d.Field.Zero()
	for i := range padded {
		padded[i] = zero
	}
	copy(padded, coefs)
	if !d.Offset.IsOne() {
		pow := d.Field.One()
		for i := range padded {
			padded[i] = padded[i].Mul(pow)
			pow = pow.Mul(d.Offset)
		}
	}
	return field.EvaluateOnDomain(field.NewPolynomial(d.Field, padded), d.Generator, d.Length)
}

// Interpolate recovers the unique polynomial of degree < d.Length
// agreeing with values over d, undoing d's coset offset if present.
func (d *Domain) Interpolate(values []field.Element) (*field.Polynomial, error) {
	if len(values) != d.Length {
		return nil, fmt.Errorf("protocols: value count %d does not match domain length %d", len(values), d.Length)
	}
	p, err := field.InterpolateDomain(d.Field, values, d.Generator)
	if err != nil {
		return nil, err
	}
	if d.Offset.IsOne() {
		return p, nil
	}
	coefs := p.Coefficients()
	invOffset := d.Offset.Inverse()
	pow := d.Field.One()
	for i := range coefs {
		coefs[i] = coefs[i].Mul(pow)
		pow = pow.Mul(invOffset)
	}
	return field.NewPolynomial(d.Field, coefs), nil
}

// Domains bundles every power-of-two domain the orchestrator needs,
// all nested subgroups of one another (trace | composition | evaluation).
type Domains struct {
	// Execution is the traceLength-th roots of unity.
	Execution *Domain

	// Evaluation is the (traceLength*extensionFactor)-th roots of unity,
	// the domain over which trace polynomials are committed.
	Evaluation *Domain

	// Composition is sized to fit the combined, degree-adjusted
	// transition-constraint vector before division by Z(x).
	Composition *Domain

	TraceLength      int
	ExtensionFactor  int
	CombinationDegree int
	CompositionDegree int
}

// Derive computes every domain needed for one prove/verify call from
// the trace length, the extension factor, and the AIR's maximum
// transition-constraint degree.
func Derive(f *field.Field, traceLength, extensionFactor, maxConstraintDegree int) (*Domains, error) {
	if !isPowerOfTwo(traceLength) {
		return nil, fmt.Errorf("protocols: traceLength %d must be a power of two", traceLength)
	}
	if !isPowerOfTwo(extensionFactor) || extensionFactor < 2 || extensionFactor > 32 {
		return nil, fmt.Errorf("protocols: extensionFactor %d must be a power of two in [2,32]", extensionFactor)
	}
	if maxConstraintDegree < 1 {
		return nil, fmt.Errorf("protocols: maxConstraintDegree must be >= 1, got %d", maxConstraintDegree)
	}

	exeDomain, err := NewDomain(f, traceLength)
	if err != nil {
		return nil, err
	}
	evalLen := traceLength * extensionFactor
	evalDomain, err := NewDomain(f, evalLen)
	if err != nil {
		return nil, err
	}

	degreeShift := nextPowerOfTwo(maxConstraintDegree)
	combinationDegree := degreeShift * traceLength
	compositionDegree := combinationDegree - traceLength

	compDomainLen := nextPowerOfTwo(combinationDegree)
	if compDomainLen < 1 {
		compDomainLen = 1
	}
	compDomain, err := NewDomain(f, compDomainLen)
	if err != nil {
		return nil, err
	}

	return &Domains{
		Execution:         exeDomain,
		Evaluation:        evalDomain,
		Composition:       compDomain,
		TraceLength:       traceLength,
		ExtensionFactor:   extensionFactor,
		CombinationDegree: combinationDegree,
		CompositionDegree: compositionDegree,
	}, nil
}
