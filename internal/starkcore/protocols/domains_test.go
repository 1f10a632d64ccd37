package protocols

import (
	"math/big"
	"testing"

	"github.com/vybium/starkcore/internal/starkcore/field"
	"github.com/vybium/starkcore/internal/starkcore/hash"
)

func testFieldP(t *testing.T) *field.Field {
	t.Helper()
	f, err := field.New(big.NewInt(3221225473))
	if err != nil {
		t.Fatalf("building field: %v", err)
	}
	return f
}

func mustHasher(t *testing.T) *hash.Hasher {
	t.Helper()
	h, err := hash.New(hash.SHA256)
	if err != nil {
		t.Fatalf("building hasher: %v", err)
	}
	return h
}

func TestDomainEvaluateInterpolateRoundTrip(t *testing.T) {
	f := testFieldP(t)
	d, err := NewDomain(f, 16)
	if err != nil {
		t.Fatalf("new domain: %v", err)
	}
	coefs := make([]field.Element, 16)
	for i := range coefs {
		coefs[i] = f.NewElementFromInt64(int64(i + 1))
	}
	poly := field.NewPolynomial(f, coefs)

	values, err := d.Evaluate(poly)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	back, err := d.Interpolate(values)
	if err != nil {
		t.Fatalf("interpolate: %v", err)
	}
	for i, c := range coefs {
		got := back.Coefficients()
		if i >= len(got) || !got[i].Equal(c) {
			t.Fatalf("coefficient %d mismatch after round trip", i)
		}
	}
}

func TestDeriveDomainsDegenerateAndAdjusted(t *testing.T) {
	f := testFieldP(t)

	degenerate, err := Derive(f, 64, 2, 1)
	if err != nil {
		t.Fatalf("derive degenerate: %v", err)
	}
	if degenerate.CompositionDegree != 0 {
		t.Fatalf("expected compositionDegree 0 for maxDegree 1, got %d", degenerate.CompositionDegree)
	}

	adjusted, err := Derive(f, 8192, 8, 3)
	if err != nil {
		t.Fatalf("derive adjusted: %v", err)
	}
	if adjusted.CombinationDegree != 4*8192 {
		t.Fatalf("expected combinationDegree %d, got %d", 4*8192, adjusted.CombinationDegree)
	}
	if adjusted.CompositionDegree != 4*8192-8192 {
		t.Fatalf("expected compositionDegree %d, got %d", 4*8192-8192, adjusted.CompositionDegree)
	}
}

func TestQueryIndexGeneratorExcludesMultiplesAndDeduplicates(t *testing.T) {
	hasher := mustHasher(t)
	qig := NewQueryIndexGenerator(hasher, 4)
	indices, err := qig.ExeIndexes([]byte("seed"), 256, 40)
	if err != nil {
		t.Fatalf("exeIndexes: %v", err)
	}
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i%4 == 0 {
			t.Fatalf("index %d is a multiple of extensionFactor", i)
		}
		if seen[i] {
			t.Fatalf("duplicate index %d", i)
		}
		seen[i] = true
	}
}
