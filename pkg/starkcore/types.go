package starkcore

import (
	"github.com/vybium/starkcore/internal/starkcore/air"
	"github.com/vybium/starkcore/internal/starkcore/field"
	"github.com/vybium/starkcore/internal/starkcore/protocols"
)

// AIR is the algebraic intermediate representation a Prove/Verify call
// operates over: a concrete value carrying the trace-generation and
// constraint-evaluation callbacks, re-exported from the internal air
// package so callers never import internal/ directly.
type AIR = air.AIR

// ConstraintSpec describes one transition constraint's algebraic degree.
type ConstraintSpec = air.ConstraintSpec

// Assertion pins P_register(G2^(step*extensionFactor)) = Value.
type Assertion = protocols.Assertion

// Field re-exports the prime-field type AIR instances and callers share.
type Field = field.Field

// Element re-exports a field element.
type Element = field.Element
