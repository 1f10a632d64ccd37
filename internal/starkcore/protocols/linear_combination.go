package protocols

import (
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/field"
)

// LinearCombination produces L(x), the single polynomial FRI proves
// low-degree: a random combination of the composition polynomial with
// the raw trace and secret-input evaluations (degree-adjusted where
// the composition degree exceeds the trace length), bound to the same
// commitment seed as CompositionPolynomial but continuing its PRNG
// stream so no coefficient position is reused.
type LinearCombination struct {
	field *field.Field

	registerCount int
	secretCount   int
	shift         int // compositionDegree - traceLength, used only if > 0

	coefs     []field.Element // length (registerCount+secretCount), plain terms
	coefsAdj  []field.Element // same length, degree-adjusted terms (nil if shift <= 0)
}

// NewLinearCombination derives L(x)'s coefficients from seed,
// continuing the PRNG stream immediately after the coefsAlreadyConsumed
// positions CompositionPolynomial already drew.
func NewLinearCombination(f *field.Field, registerCount, secretCount, compositionDegree, traceLength, coefsAlreadyConsumed int, seed []byte) (*LinearCombination, error) {
	shift := compositionDegree - traceLength
	width := registerCount + secretCount
	needed := width
	if shift > 0 {
		needed *= 2
	}

	full := f.PRNG(seed, coefsAlreadyConsumed+needed)
	drawn := full[coefsAlreadyConsumed:]

	coefs := make([]field.Element, width)
	copy(coefs, drawn[:width])

	var coefsAdj []field.Element
	if shift > 0 {
		coefsAdj = make([]field.Element, width)
		copy(coefsAdj, drawn[width:2*width])
	}

	return &LinearCombination{
		field:         f,
		registerCount: registerCount,
		secretCount:   secretCount,
		shift:         shift,
		coefs:         coefs,
		coefsAdj:      coefsAdj,
	}, nil
}

// Evaluate returns L(x) over evalDomain given C(x)'s evaluations there
// and the (already low-degree-extended) trace/secret-input evaluation
// columns in [P_1..P_R, S_1..S_K] order.
func (lc *LinearCombination) Evaluate(cEvals []field.Element, columns [][]field.Element, evalDomain *Domain) ([]field.Element, error) {
	width := lc.registerCount + lc.secretCount
	if len(columns) != width {
		return nil, fmt.Errorf("protocols: expected %d trace+secret columns, got %d", width, len(columns))
	}
	n := evalDomain.Length
	out := make([]field.Element, n)
	copy(out, cEvals)

	for col := 0; col < width; col++ {
		v := columns[col]
		if len(v) != n {
			return nil, fmt.Errorf("protocols: column %d has length %d, expected %d", col, len(v), n)
		}
		coef := lc.coefs[col]
		if lc.shift <= 0 {
			for i := 0; i < n; i++ {
				out[i] = out[i].Add(coef.Mul(v[i]))
			}
			continue
		}
		adjCoef := lc.coefsAdj[col]
		for i := 0; i < n; i++ {
			x := evalDomain.At(i)
			plain := coef.Mul(v[i])
			adjusted := adjCoef.Mul(x.ExpInt(int64(lc.shift))).Mul(v[i])
			out[i] = out[i].Add(plain).Add(adjusted)
		}
	}
	return out, nil
}

// ComputeOne is the verifier's pointwise mirror of Evaluate: given x,
// C(x)'s value there, and the trace/secret-input values in the same
// [P_1..P_R, S_1..S_K] order, it returns the L(x) value a correct
// prover would have committed to at that position.
func (lc *LinearCombination) ComputeOne(x field.Element, cValue field.Element, values []field.Element) (field.Element, error) {
	width := lc.registerCount + lc.secretCount
	if len(values) != width {
		return field.Element{}, fmt.Errorf("protocols: expected %d trace+secret values, got %d", width, len(values))
	}
	result := cValue
	for col := 0; col < width; col++ {
		coef := lc.coefs[col]
		result = result.Add(coef.Mul(values[col]))
		if lc.shift > 0 {
			adjCoef := lc.coefsAdj[col]
			adjusted := adjCoef.Mul(x.ExpInt(int64(lc.shift))).Mul(values[col])
			result = result.Add(adjusted)
		}
	}
	return result, nil
}
