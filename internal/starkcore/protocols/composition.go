package protocols

import (
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/air"
	"github.com/vybium/starkcore/internal/starkcore/field"
)

// CompositionPolynomial fuses every transition constraint and every
// boundary assertion into a single polynomial C(x) of known degree
// bound, per the degree-adjustment and PRNG-coefficient scheme in
// §4.4: each constraint (and each boundary register) contributes a
// plain term and, where its native degree falls short of the shared
// target, a degree-adjusted term, each scaled by its own PRNG-derived
// coefficient.
type CompositionPolynomial struct {
	field *field.Field

	constraintDegrees []int
	constraintShifts  []int // combinationDegree - degree_i*traceLength
	constraintCoefs   [][2]field.Element

	boundary       *BoundaryConstraints
	boundaryShift  int // compositionDegree - traceLength, used only if > 0
	boundaryCoefs  [][2]field.Element

	zero *ZeroPolynomial

	traceLength           int
	extensionFactor        int
	compositionStepFactor int // "next row" stride within the composition domain
	combinationDegree      int
	compositionDegree      int

	coefsConsumed int // total PRNG elements drawn; LinearCombination continues from here
}

// NewCompositionPolynomial derives every coefficient and helper
// polynomial needed to build or check C(x) for one AIR instance, one
// assertion set, and one commitment seed (the evaluation Merkle root).
func NewCompositionPolynomial(f *field.Field, a *air.AIR, assertions []Assertion, domains *Domains, seed []byte) (*CompositionPolynomial, error) {
	numConstraints := len(a.Constraints)

	degreeShift := nextPowerOfTwo(a.MaxConstraintDegree)
	if degreeShift*domains.TraceLength != domains.CombinationDegree {
		return nil, fmt.Errorf("protocols: AIR max degree %d inconsistent with derived domains", a.MaxConstraintDegree)
	}

	shifts := make([]int, numConstraints)
	degrees := make([]int, numConstraints)
	for i, c := range a.Constraints {
		native := c.Degree * domains.TraceLength
		if native > domains.CombinationDegree {
			return nil, fmt.Errorf("protocols: constraint %d degree %d exceeds combination degree", i, c.Degree)
		}
		degrees[i] = c.Degree
		shifts[i] = domains.CombinationDegree - native
	}

	boundary, err := NewBoundaryConstraints(f, assertions, domains.Evaluation.Generator, domains.ExtensionFactor)
	if err != nil {
		return nil, err
	}
	numBoundary := len(boundary.Registers())

	totalCoefs := 2*numConstraints + 2*numBoundary
	coefs := f.PRNG(seed, totalCoefs)

	constraintCoefs := make([][2]field.Element, numConstraints)
	for i := 0; i < numConstraints; i++ {
		constraintCoefs[i] = [2]field.Element{coefs[2*i], coefs[2*i+1]}
	}
	boundaryCoefs := make([][2]field.Element, numBoundary)
	base := 2 * numConstraints
	for i := 0; i < numBoundary; i++ {
		boundaryCoefs[i] = [2]field.Element{coefs[base+2*i], coefs[base+2*i+1]}
	}

	boundaryShift := domains.CompositionDegree - domains.TraceLength

	zero := NewZeroPolynomial(f, domains.TraceLength, domains.Evaluation.Generator, domains.ExtensionFactor)

	return &CompositionPolynomial{
		field:                 f,
		constraintDegrees:     degrees,
		constraintShifts:      shifts,
		constraintCoefs:       constraintCoefs,
		boundary:              boundary,
		boundaryShift:         boundaryShift,
		boundaryCoefs:         boundaryCoefs,
		zero:                  zero,
		traceLength:           domains.TraceLength,
		extensionFactor:       domains.ExtensionFactor,
		compositionStepFactor: degreeShift,
		combinationDegree:     domains.CombinationDegree,
		compositionDegree:     domains.CompositionDegree,
		coefsConsumed:         totalCoefs,
	}, nil
}

// CoefsConsumed returns how many PRNG elements this instance drew from
// seed, so LinearCombination can continue the same deterministic stream
// without reusing positions.
func (c *CompositionPolynomial) CoefsConsumed() int { return c.coefsConsumed }

// Evaluate runs the prove-path algorithm (§4.4 steps 1-6): it evaluates
// Q(x) over the composition domain via the AIR's pointwise constraint
// evaluator, degree-adjusts and combines, interpolates the result,
// divides it by Z(x) exactly in coefficient form, low-degree-extends the
// quotient to the evaluation domain, folds in the boundary terms, and
// returns C(x) evaluated over the full evaluation domain.
func (c *CompositionPolynomial) Evaluate(
	a *air.AIR,
	pPolys []*field.Polynomial,
	sPolys []*field.Polynomial,
	compDomain *Domain,
	evalDomain *Domain,
) ([]field.Element, error) {
	n := compDomain.Length
	combined := make([]field.Element, n)
	zero := c.field.Zero()
	for i := range combined {
		combined[i] = zero
	}

	pVals := make([][]field.Element, len(pPolys))
	for r, poly := range pPolys {
		vals, err := compDomain.Evaluate(poly)
		if err != nil {
			return nil, fmt.Errorf("protocols: evaluating trace polynomial %d over composition domain: %w", r, err)
		}
		pVals[r] = vals
	}
	sVals := make([][]field.Element, len(sPolys))
	for k, poly := range sPolys {
		vals, err := compDomain.Evaluate(poly)
		if err != nil {
			return nil, fmt.Errorf("protocols: evaluating secret polynomial %d over composition domain: %w", k, err)
		}
		sVals[k] = vals
	}

	stride := c.compositionStepFactor
	for i := 0; i < n; i++ {
		x := compDomain.At(i)
		ni := (i + stride) % n

		p := make([]field.Element, len(pPolys))
		nx := make([]field.Element, len(pPolys))
		for r := range pPolys {
			p[r] = pVals[r][i]
			nx[r] = pVals[r][ni]
		}
		s := make([]field.Element, len(sPolys))
		for k := range sPolys {
			s[k] = sVals[k][i]
		}

		q, err := a.EvaluateConstraintsAt(x, p, nx, s)
		if err != nil {
			return nil, fmt.Errorf("protocols: evaluating constraints at composition-domain point %d: %w", i, err)
		}
		if len(q) != len(c.constraintCoefs) {
			return nil, fmt.Errorf("protocols: AIR returned %d constraint values, expected %d", len(q), len(c.constraintCoefs))
		}

		acc := zero
		for ci, qi := range q {
			coef := c.constraintCoefs[ci]
			term := coef[0].Mul(qi)
			if c.constraintShifts[ci] > 0 {
				adjusted := x.ExpInt(int64(c.constraintShifts[ci])).Mul(qi)
				term = term.Add(coef[1].Mul(adjusted))
			}
			acc = acc.Add(term)
		}
		combined[i] = acc
	}

	dPoly, err := compDomain.Interpolate(combined)
	if err != nil {
		return nil, fmt.Errorf("protocols: interpolating combined constraint vector: %w", err)
	}

	// dPoly vanishes at every execution-domain point but the last by
	// construction (valid traces satisfy every transition constraint
	// there), the same roots as Z(x), so this division is exact. It is
	// done in coefficient form, not pointwise, since Z(x) is genuinely
	// zero at those roots and dPoly is too: a pointwise divide would be
	// an unresolved 0/0 at every one of them.
	quotient, err := dPoly.DivideExact(c.zero.Polynomial())
	if err != nil {
		return nil, fmt.Errorf("protocols: dividing combined constraint polynomial by Z(x): %w", err)
	}
	out, err := evalDomain.Evaluate(quotient)
	if err != nil {
		return nil, fmt.Errorf("protocols: low-degree-extending the constraint quotient: %w", err)
	}

	pPolysByRegister := make(map[int]*field.Polynomial, len(pPolys))
	for r, poly := range pPolys {
		pPolysByRegister[r] = poly
	}
	boundaryVals, err := c.boundary.EvaluateAll(pPolysByRegister, evalDomain)
	if err != nil {
		return nil, fmt.Errorf("protocols: evaluating boundary terms: %w", err)
	}
	for ri := range boundaryVals {
		coef := c.boundaryCoefs[ri]
		row := boundaryVals[ri]
		for i := range out {
			term := coef[0].Mul(row[i])
			if c.boundaryShift > 0 {
				adjusted := evalDomain.At(i).ExpInt(int64(c.boundaryShift)).Mul(row[i])
				term = term.Add(coef[1].Mul(adjusted))
			}
			out[i] = out[i].Add(term)
		}
	}

	return out, nil
}

// EvaluateAt is the verifier's pointwise mirror of Evaluate: given x (an
// evaluation-domain point), this register's value there (pValues), at
// the next execution step (nValues), and the secret-input registers'
// value there (sValues), it returns the single C(x) value a correct
// prover would have committed to at that position.
func (c *CompositionPolynomial) EvaluateAt(a *air.AIR, x field.Element, pValues, nValues, sValues []field.Element, pValuesByRegister map[int]field.Element) (field.Element, error) {
	q, err := a.EvaluateConstraintsAt(x, pValues, nValues, sValues)
	if err != nil {
		return field.Element{}, fmt.Errorf("protocols: evaluating constraints at %s: %w", x, err)
	}
	if len(q) != len(c.constraintCoefs) {
		return field.Element{}, fmt.Errorf("protocols: AIR returned %d constraint values, expected %d", len(q), len(c.constraintCoefs))
	}

	acc := c.field.Zero()
	for ci, qi := range q {
		coef := c.constraintCoefs[ci]
		term := coef[0].Mul(qi)
		if c.constraintShifts[ci] > 0 {
			adjusted := x.ExpInt(int64(c.constraintShifts[ci])).Mul(qi)
			term = term.Add(coef[1].Mul(adjusted))
		}
		acc = acc.Add(term)
	}

	zVal := c.zero.EvaluateAt(x)
	result := acc.Mul(zVal.Inverse())

	boundaryVals, err := c.boundary.EvaluateAt(pValuesByRegister, x)
	if err != nil {
		return field.Element{}, fmt.Errorf("protocols: evaluating boundary terms at %s: %w", x, err)
	}
	for ri, bv := range boundaryVals {
		coef := c.boundaryCoefs[ri]
		term := coef[0].Mul(bv)
		if c.boundaryShift > 0 {
			adjusted := x.ExpInt(int64(c.boundaryShift)).Mul(bv)
			term = term.Add(coef[1].Mul(adjusted))
		}
		result = result.Add(term)
	}

	return result, nil
}
