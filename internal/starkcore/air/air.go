// Package air defines the boundary between the STARK core and the
// algebraic intermediate representation collaborator: a concrete Go
// value carrying a transition/constraint callback pair plus a degree
// table, rather than the JIT-compiled expression closures of the
// original system. Dispatch happens once per domain point per call, so
// a narrow function-valued interface costs nothing inside the hot loops.
package air

import (
	"fmt"

	"github.com/vybium/starkcore/internal/starkcore/field"
)

// ConstraintSpec describes one transition constraint's algebraic degree,
// i.e. the maximum total degree of P_r, P_r(next) terms appearing in it.
type ConstraintSpec struct {
	Degree int
}

// Assertion pins P_register(G2^(step*extensionFactor)) = Value.
type Assertion struct {
	Register int
	Step     int
	Value    field.Element
}

// AIR is the opaque algebraic description the STARK core consumes. It is
// supplied by the (out-of-scope) AIR compiler; this package only defines
// its shape and a handful of reference instances used for testing.
type AIR struct {
	Field *field.Field

	// RegisterCount is the number of mutable trace registers.
	RegisterCount int

	// SecretRegisterCount is the number of secret-input registers S(x)
	// committed to alongside the trace but not asserted on directly.
	SecretRegisterCount int

	// Constraints lists every transition constraint with its degree.
	Constraints []ConstraintSpec

	// MaxConstraintDegree is the maximum Degree across Constraints (1 if
	// there are no transition constraints at all).
	MaxConstraintDegree int

	// GenerateTrace runs the computation and returns a RegisterCount x
	// traceLength matrix (row-major by register).
	GenerateTrace func(publicInputs, secretInputs []field.Element, traceLength int) ([][]field.Element, error)

	// GenerateSecretTrace builds the SecretRegisterCount x traceLength
	// matrix of secret-input register values committed alongside the
	// trace registers. Required iff SecretRegisterCount > 0.
	GenerateSecretTrace func(secretInputs []field.Element, traceLength int) ([][]field.Element, error)

	// EvaluateConstraintsAt evaluates every transition constraint at one
	// point: p and n are this register's value at x and at the next
	// execution-domain step, s is the secret-input registers' value at x.
	// Returns one value per entry in Constraints (empty if there are none).
	EvaluateConstraintsAt func(x field.Element, p, n, s []field.Element) ([]field.Element, error)

	// Name identifies the AIR instance for diagnostics.
	Name string
}

// Validate checks structural invariants the STARK core relies on.
func (a *AIR) Validate() error {
	if a.Field == nil {
		return fmt.Errorf("air: field is required")
	}
	if a.RegisterCount <= 0 {
		return fmt.Errorf("air: register count must be positive")
	}
	if a.GenerateTrace == nil {
		return fmt.Errorf("air: GenerateTrace is required")
	}
	if a.EvaluateConstraintsAt == nil {
		return fmt.Errorf("air: EvaluateConstraintsAt is required")
	}
	if a.SecretRegisterCount > 0 && a.GenerateSecretTrace == nil {
		return fmt.Errorf("air: GenerateSecretTrace is required when SecretRegisterCount > 0")
	}
	if a.SecretRegisterCount < 0 {
		return fmt.Errorf("air: secret register count must not be negative")
	}
	maxDegree := 1
	for _, c := range a.Constraints {
		if c.Degree < 1 {
			return fmt.Errorf("air: constraint degree must be >= 1, got %d", c.Degree)
		}
		if c.Degree > maxDegree {
			maxDegree = c.Degree
		}
	}
	if a.MaxConstraintDegree != 0 && a.MaxConstraintDegree != maxDegree {
		return fmt.Errorf("air: declared MaxConstraintDegree %d does not match constraint table (%d)", a.MaxConstraintDegree, maxDegree)
	}
	a.MaxConstraintDegree = maxDegree
	return nil
}
