package protocols

import (
	"fmt"
	"sort"

	"github.com/vybium/starkcore/internal/starkcore/air"
	"github.com/vybium/starkcore/internal/starkcore/field"
)

// Assertion pins a single trace cell to a known value.
type Assertion = air.Assertion

type registerBoundary struct {
	points      []field.Element // x_j = G2^(step*extensionFactor)
	interpolant *field.Polynomial
	vanishing   *field.Polynomial
}

// BoundaryConstraints groups assertions by register and exposes, per
// constrained register, the pointwise value of
// B_r(x) = (P_r(x) - I_r(x)) / Z_r(x).
type BoundaryConstraints struct {
	field      *field.Field
	registers  []int // sorted, stable iteration order
	perReg     map[int]*registerBoundary
}

// NewBoundaryConstraints builds the interpolation and vanishing
// polynomials for every register named in assertions, evaluated at
// x_j = evalRoot^(step*extensionFactor).
func NewBoundaryConstraints(f *field.Field, assertions []Assertion, evalRoot field.Element, extensionFactor int) (*BoundaryConstraints, error) {
	byRegister := make(map[int][]Assertion)
	for _, a := range assertions {
		byRegister[a.Register] = append(byRegister[a.Register], a)
	}

	registers := make([]int, 0, len(byRegister))
	for r := range byRegister {
		registers = append(registers, r)
	}
	sort.Ints(registers)

	perReg := make(map[int]*registerBoundary, len(registers))
	for _, r := range registers {
		list := byRegister[r]
		xs := make([]field.Element, len(list))
		vs := make([]field.Element, len(list))
		for i, a := range list {
			xs[i] = evalRoot.ExpInt(int64(a.Step) * int64(extensionFactor))
			vs[i] = a.Value
		}
		interp, err := field.LagrangeInterpolate(f, xs, vs)
		if err != nil {
			return nil, fmt.Errorf("protocols: boundary interpolation for register %d: %w", r, err)
		}
		perReg[r] = &registerBoundary{
			points:      xs,
			interpolant: interp,
			vanishing:   field.VanishingPolynomial(f, xs),
		}
	}

	return &BoundaryConstraints{field: f, registers: registers, perReg: perReg}, nil
}

// Registers returns the sorted list of registers carrying at least one
// boundary assertion.
func (b *BoundaryConstraints) Registers() []int {
	out := make([]int, len(b.registers))
	copy(out, b.registers)
	return out
}

// EvaluateAt returns one B_r(x) value per constrained register (in
// Registers() order), given that register's trace-polynomial value at x.
func (b *BoundaryConstraints) EvaluateAt(pValues map[int]field.Element, x field.Element) ([]field.Element, error) {
	out := make([]field.Element, len(b.registers))
	for i, r := range b.registers {
		rb := b.perReg[r]
		pv, ok := pValues[r]
		if !ok {
			return nil, fmt.Errorf("protocols: missing trace value for constrained register %d", r)
		}
		num := pv.Sub(rb.interpolant.Evaluate(x))
		den := rb.vanishing.Evaluate(x)
		out[i] = num.Mul(den.Inverse())
	}
	return out, nil
}

// EvaluateAll returns, per constrained register (in Registers()
// order), the vector of B_r values over evalDomain, given that
// register's trace polynomial. P_r(x) - I_r(x) vanishes at exactly the
// same points as Z_r(x) (every one of that register's asserted
// steps), so the division is done in coefficient form via exact
// polynomial division rather than pointwise batch inversion, which
// would hit a 0/0 removable singularity at each assertion point.
func (b *BoundaryConstraints) EvaluateAll(pPolys map[int]*field.Polynomial, evalDomain *Domain) ([][]field.Element, error) {
	out := make([][]field.Element, len(b.registers))
	for ri, r := range b.registers {
		rb := b.perReg[r]
		poly, ok := pPolys[r]
		if !ok {
			return nil, fmt.Errorf("protocols: missing trace polynomial for constrained register %d", r)
		}
		quotient, err := poly.Sub(rb.interpolant).DivideExact(rb.vanishing)
		if err != nil {
			return nil, fmt.Errorf("protocols: dividing boundary numerator by Z(x) for register %d: %w", r, err)
		}
		row, err := evalDomain.Evaluate(quotient)
		if err != nil {
			return nil, fmt.Errorf("protocols: low-degree-extending boundary quotient for register %d: %w", r, err)
		}
		out[ri] = row
	}
	return out, nil
}
