package air

import (
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/field"
)

// Fibonacci builds a two-register linear-recurrence AIR:
//
//	a[0], b[0] = publicInputs
//	a[i] = a[i-1] + b[i-1]
//	b[i] = a[i-1]
//
// Both transition constraints are degree 1. Mirrors the spec's
// "Fibonacci, 64 steps, 2 registers" end-to-end scenario.
func Fibonacci(f *field.Field) *AIR {
	return &AIR{
		Field:               f,
		RegisterCount:       2,
		SecretRegisterCount: 0,
		Constraints: []ConstraintSpec{
			{Degree: 1},
			{Degree: 1},
		},
		MaxConstraintDegree: 1,
		Name:                "fibonacci2",
		GenerateTrace: func(publicInputs, secretInputs []field.Element, traceLength int) ([][]field.Element, error) {
			if len(publicInputs) != 2 {
				return nil, fmt.Errorf("fibonacci: expected 2 public inputs, got %d", len(publicInputs))
			}
			a := make([]field.Element, traceLength)
			b := make([]field.Element, traceLength)
			a[0], b[0] = publicInputs[0], publicInputs[1]
			for i := 1; i < traceLength; i++ {
				a[i] = a[i-1].Add(b[i-1])
				b[i] = a[i-1]
			}
			return [][]field.Element{a, b}, nil
		},
		EvaluateConstraintsAt: func(x field.Element, p, n, s []field.Element) ([]field.Element, error) {
			c0 := n[0].Sub(p[0].Add(p[1]))
			c1 := n[1].Sub(p[0])
			return []field.Element{c0, c1}, nil
		},
	}
}

// Counter builds a single-register AIR computing x[i] = x[i-1] + 1, a
// degree-1 transition constraint. Mirrors the spec's "x_{n+1} = x_n + 1"
// end-to-end scenario.
func Counter(f *field.Field) *AIR {
	one := f.One()
	return &AIR{
		Field:               f,
		RegisterCount:       1,
		SecretRegisterCount: 0,
		Constraints:         []ConstraintSpec{{Degree: 1}},
		MaxConstraintDegree: 1,
		Name:                "counter1",
		GenerateTrace: func(publicInputs, secretInputs []field.Element, traceLength int) ([][]field.Element, error) {
			if len(publicInputs) != 1 {
				return nil, fmt.Errorf("counter: expected 1 public input, got %d", len(publicInputs))
			}
			x := make([]field.Element, traceLength)
			x[0] = publicInputs[0]
			for i := 1; i < traceLength; i++ {
				x[i] = x[i-1].Add(one)
			}
			return [][]field.Element{x}, nil
		},
		EvaluateConstraintsAt: func(x field.Element, p, n, s []field.Element) ([]field.Element, error) {
			c0 := n[0].Sub(p[0].Add(one))
			return []field.Element{c0}, nil
		},
	}
}

// Cubic builds a single-register MiMC-style AIR: x[i] = x[i-1]^3 + k[i-1],
// where the round constants k are carried as a secret-input register S(x)
// rather than baked into the callback, giving per-step constants without
// growing the transition-function signature. The transition constraint is
// degree 3. Mirrors the spec's "MiMC-style cubic, 2^13 steps" scenario.
func Cubic(f *field.Field, roundConstants []field.Element) *AIR {
	return &AIR{
		Field:               f,
		RegisterCount:       1,
		SecretRegisterCount: 1,
		Constraints:         []ConstraintSpec{{Degree: 3}},
		MaxConstraintDegree: 3,
		Name:                "cubic1",
		GenerateTrace: func(publicInputs, secretInputs []field.Element, traceLength int) ([][]field.Element, error) {
			if len(publicInputs) != 1 {
				return nil, fmt.Errorf("cubic: expected 1 public input, got %d", len(publicInputs))
			}
			if len(roundConstants) < traceLength-1 {
				return nil, fmt.Errorf("cubic: need %d round constants, have %d", traceLength-1, len(roundConstants))
			}
			x := make([]field.Element, traceLength)
			x[0] = publicInputs[0]
			for i := 1; i < traceLength; i++ {
				cube := x[i-1].Mul(x[i-1]).Mul(x[i-1])
				x[i] = cube.Add(roundConstants[i-1])
			}
			return [][]field.Element{x}, nil
		},
		EvaluateConstraintsAt: func(x field.Element, p, n, s []field.Element) ([]field.Element, error) {
			cube := p[0].Mul(p[0]).Mul(p[0])
			c0 := n[0].Sub(cube.Add(s[0]))
			return []field.Element{c0}, nil
		},
		GenerateSecretTrace: func(secretInputs []field.Element, traceLength int) ([][]field.Element, error) {
			if len(roundConstants) < traceLength-1 {
				return nil, fmt.Errorf("cubic: need %d round constants, have %d", traceLength-1, len(roundConstants))
			}
			s := make([]field.Element, traceLength)
			copy(s, roundConstants[:traceLength-1])
			s[traceLength-1] = f.Zero()
			return [][]field.Element{s}, nil
		},
	}
}

// BoundaryOnly builds a single-register AIR with no transition constraints
// at all: every row may take any value, so only the boundary assertions
// constrain the trace. Mirrors the spec's boundary-only sanity scenario.
func BoundaryOnly(f *field.Field) *AIR {
	return &AIR{
		Field:               f,
		RegisterCount:       1,
		SecretRegisterCount: 0,
		Constraints:         nil,
		MaxConstraintDegree: 1,
		Name:                "boundary-only",
		GenerateTrace: func(publicInputs, secretInputs []field.Element, traceLength int) ([][]field.Element, error) {
			if len(publicInputs) != 1 {
				return nil, fmt.Errorf("boundary-only: expected 1 public input, got %d", len(publicInputs))
			}
			x := make([]field.Element, traceLength)
			for i := range x {
				x[i] = publicInputs[0]
			}
			return [][]field.Element{x}, nil
		},
		EvaluateConstraintsAt: func(x field.Element, p, n, s []field.Element) ([]field.Element, error) {
			return []field.Element{}, nil
		},
	}
}
