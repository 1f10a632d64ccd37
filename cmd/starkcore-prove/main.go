// Command starkcore-prove runs one of the built-in AIR scenarios end to
// end: it generates a trace, produces a proof, serializes it, parses it
// back, and verifies it, reporting each stage to stderr.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/vybium/starkcore/internal/starkcore/air"
	"github.com/vybium/starkcore/internal/starkcore/field"
	"github.com/vybium/starkcore/internal/starkcore/hash"
	"github.com/vybium/starkcore/pkg/starkcore"
)

// ScenarioInput selects a built-in AIR and supplies its public inputs,
// trace length, and assertions, read as a single JSON line from stdin.
type ScenarioInput struct {
	Scenario      string   `json:"scenario"` // "fibonacci" | "counter" | "cubic" | "boundary-only"
	TraceLength   int      `json:"trace_length"`
	PublicInputs  []string `json:"public_inputs"` // decimal strings
	Assertions    []struct {
		Register int    `json:"register"`
		Step     int    `json:"step"`
		Value    string `json:"value"`
	} `json:"assertions"`
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	if !scanner.Scan() {
		fatal("failed to read scenario input")
	}
	var in ScenarioInput
	if err := json.Unmarshal(scanner.Bytes(), &in); err != nil {
		fatal(fmt.Sprintf("failed to parse scenario input: %v", err))
	}

	f := defaultField()

	publicInputs := make([]field.Element, len(in.PublicInputs))
	for i, s := range in.PublicInputs {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			fatal(fmt.Sprintf("invalid public input %q", s))
		}
		publicInputs[i] = f.NewElement(v)
	}

	var a *air.AIR
	switch in.Scenario {
	case "fibonacci":
		a = air.Fibonacci(f)
	case "counter":
		a = air.Counter(f)
	case "cubic":
		a = air.Cubic(f, f.PRNG([]byte("starkcore-prove:cubic-round-constants"), in.TraceLength))
	case "boundary-only":
		a = air.BoundaryOnly(f)
	default:
		fatal(fmt.Sprintf("unknown scenario %q", in.Scenario))
	}

	assertions := make([]starkcore.Assertion, len(in.Assertions))
	for i, asn := range in.Assertions {
		v, ok := new(big.Int).SetString(asn.Value, 10)
		if !ok {
			fatal(fmt.Sprintf("invalid assertion value %q", asn.Value))
		}
		assertions[i] = starkcore.Assertion{Register: asn.Register, Step: asn.Step, Value: f.NewElement(v)}
	}

	opts := starkcore.Options{HashAlgorithm: hash.SHA256}

	logStderr(fmt.Sprintf("proving %s over %d steps...", in.Scenario, in.TraceLength))
	proof, err := starkcore.Prove(a, publicInputs, nil, assertions, in.TraceLength, opts)
	if err != nil {
		fatal(fmt.Sprintf("prove failed: %v", err))
	}

	wire, err := proof.Serialize()
	if err != nil {
		fatal(fmt.Sprintf("serialize failed: %v", err))
	}
	logStderr(fmt.Sprintf("proof serialized to %d bytes", len(wire)))

	shape := starkcore.WireShape{
		Field:       f,
		ElementSize: f.ElementSize(),
		DigestSize:  len(proof.EvRoot),
		ColumnWidth: a.RegisterCount + a.SecretRegisterCount,
	}
	parsed, err := starkcore.Deserialize(wire, shape)
	if err != nil {
		fatal(fmt.Sprintf("deserialize failed: %v", err))
	}

	ok, err := starkcore.Verify(a, assertions, parsed, opts)
	if err != nil {
		fatal(fmt.Sprintf("verify failed: %v", err))
	}
	if !ok {
		fatal("verify returned false")
	}
	logStderr("verify ok")
	fmt.Println("true")
}

func defaultField() *field.Field {
	modulus := big.NewInt(3221225473) // 2^32 - 3*2^25 + 1
	f, err := field.New(modulus)
	if err != nil {
		fatal(fmt.Sprintf("failed to build field: %v", err))
	}
	return f
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "starkcore-prove:", msg)
}

func fatal(msg string) {
	logStderr("ERROR: " + msg)
	os.Exit(1)
}
