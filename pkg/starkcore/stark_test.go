package starkcore

import (
	"math/big"
	"testing"

	"github.com/vybium/starkcore/internal/starkcore/air"
	"github.com/vybium/starkcore/internal/starkcore/field"
)

func testField(t *testing.T) *field.Field {
	t.Helper()
	f, err := field.New(big.NewInt(3221225473)) // 2^32 - 3*2^25 + 1
	if err != nil {
		t.Fatalf("building field: %v", err)
	}
	return f
}

func elem(f *field.Field, v int64) field.Element { return f.NewElementFromInt64(v) }

func TestFibonacciEndToEnd(t *testing.T) {
	f := testField(t)
	a := air.Fibonacci(f)
	publicInputs := []field.Element{elem(f, 1), elem(f, 1)}
	assertions := []Assertion{
		{Register: 0, Step: 0, Value: elem(f, 1)},
		{Register: 1, Step: 0, Value: elem(f, 1)},
		{Register: 0, Step: 63, Value: elem(f, 3311482032)},
	}

	proof, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	ok, err := Verify(a, assertions, proof, Options{})
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
}

func TestCounterEndToEnd(t *testing.T) {
	f := testField(t)
	a := air.Counter(f)
	publicInputs := []field.Element{elem(f, 1)}
	assertions := []Assertion{
		{Register: 0, Step: 0, Value: elem(f, 1)},
		{Register: 0, Step: 63, Value: elem(f, 64)},
	}

	proof, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	ok, err := Verify(a, assertions, proof, Options{})
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
}

func TestCubicEndToEndAndTamperedAssertion(t *testing.T) {
	f := testField(t)
	const traceLength = 1 << 13
	roundConstants := f.PRNG([]byte("cubic-round-constants-test"), traceLength)
	a := air.Cubic(f, roundConstants)

	publicInputs := []field.Element{elem(f, 3)}
	trace, err := a.GenerateTrace(publicInputs, nil, traceLength)
	if err != nil {
		t.Fatalf("generating reference trace: %v", err)
	}
	lastValue := trace[0][traceLength-1]

	assertions := []Assertion{
		{Register: 0, Step: 0, Value: publicInputs[0]},
		{Register: 0, Step: traceLength - 1, Value: lastValue},
	}

	proof, err := Prove(a, publicInputs, nil, assertions, traceLength, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	ok, err := Verify(a, assertions, proof, Options{})
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}

	tamperedAssertions := []Assertion{
		assertions[0],
		{Register: 0, Step: traceLength - 1, Value: lastValue.Add(f.One())},
	}
	if _, err := Prove(a, publicInputs, nil, tamperedAssertions, traceLength, Options{}); err == nil {
		t.Fatal("expected prove to reject a trace-inconsistent assertion")
	}
}

func TestBoundaryOnlyEndToEnd(t *testing.T) {
	f := testField(t)
	a := air.BoundaryOnly(f)
	publicInputs := []field.Element{elem(f, 5)}
	assertions := []Assertion{{Register: 0, Step: 0, Value: elem(f, 5)}}

	proof, err := Prove(a, publicInputs, nil, assertions, 8, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	ok, err := Verify(a, assertions, proof, Options{})
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	f := testField(t)
	a := air.Fibonacci(f)
	publicInputs := []field.Element{elem(f, 1), elem(f, 1)}
	assertions := []Assertion{
		{Register: 0, Step: 0, Value: elem(f, 1)},
		{Register: 1, Step: 0, Value: elem(f, 1)},
	}

	proof, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	wire, err := proof.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	shape := WireShape{Field: f, ElementSize: f.ElementSize(), DigestSize: len(proof.EvRoot), ColumnWidth: a.RegisterCount + a.SecretRegisterCount}
	parsed, err := Deserialize(wire, shape)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	reencoded, err := parsed.Serialize()
	if err != nil {
		t.Fatalf("re-serialize: %v", err)
	}
	if len(wire) != len(reencoded) {
		t.Fatalf("round-trip length mismatch: %d vs %d", len(wire), len(reencoded))
	}
	for i := range wire {
		if wire[i] != reencoded[i] {
			t.Fatalf("round-trip byte mismatch at offset %d", i)
		}
	}

	ok, err := Verify(a, assertions, parsed, Options{})
	if err != nil || !ok {
		t.Fatalf("verify after round-trip: ok=%v err=%v", ok, err)
	}
}

func TestDeterminism(t *testing.T) {
	f := testField(t)
	a := air.Counter(f)
	publicInputs := []field.Element{elem(f, 1)}
	assertions := []Assertion{{Register: 0, Step: 0, Value: elem(f, 1)}}

	p1, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove 1: %v", err)
	}
	p2, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove 2: %v", err)
	}

	w1, err := p1.Serialize()
	if err != nil {
		t.Fatalf("serialize 1: %v", err)
	}
	w2, err := p2.Serialize()
	if err != nil {
		t.Fatalf("serialize 2: %v", err)
	}
	if len(w1) != len(w2) {
		t.Fatalf("length mismatch across identical prove calls: %d vs %d", len(w1), len(w2))
	}
	for i := range w1 {
		if w1[i] != w2[i] {
			t.Fatalf("byte mismatch across identical prove calls at offset %d", i)
		}
	}
}

func TestTamperedRemainderRejected(t *testing.T) {
	f := testField(t)
	a := air.Fibonacci(f)
	publicInputs := []field.Element{elem(f, 1), elem(f, 1)}
	assertions := []Assertion{
		{Register: 0, Step: 0, Value: elem(f, 1)},
		{Register: 1, Step: 0, Value: elem(f, 1)},
	}

	proof, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if len(proof.Remainder) == 0 {
		t.Fatal("expected a nonempty FRI remainder")
	}
	proof.Remainder[0] = proof.Remainder[0].Add(f.One())

	ok, err := Verify(a, assertions, proof, Options{})
	if err == nil && ok {
		t.Fatal("expected verify to reject a tampered remainder")
	}
}

func TestPublicInputBindingRejected(t *testing.T) {
	f := testField(t)
	a := air.Fibonacci(f)
	publicInputs := []field.Element{elem(f, 1), elem(f, 1)}
	assertions := []Assertion{
		{Register: 0, Step: 0, Value: elem(f, 1)},
		{Register: 1, Step: 0, Value: elem(f, 1)},
	}

	proof, err := Prove(a, publicInputs, nil, assertions, 64, Options{})
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	mismatchedAssertions := []Assertion{
		{Register: 0, Step: 0, Value: elem(f, 2)},
		{Register: 1, Step: 0, Value: elem(f, 1)},
	}
	ok, err := Verify(a, mismatchedAssertions, proof, Options{})
	if err == nil && ok {
		t.Fatal("expected verify to reject a proof checked against mismatched public-input assertions")
	}
}
