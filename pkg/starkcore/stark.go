package starkcore

import (
	"sort"

	"github.com/vybium/starkcore/internal/starkcore/air"
	"github.com/vybium/starkcore/internal/starkcore/field"
	"github.com/vybium/starkcore/internal/starkcore/hash"
	"github.com/vybium/starkcore/internal/starkcore/merkle"
	"github.com/vybium/starkcore/internal/starkcore/protocols"
)

// Prove runs the full prover pipeline for a: generates and validates
// the execution trace against assertions, interpolates and
// low-degree-extends trace and secret-input polynomials, commits the
// evaluation Merkle tree, builds the composition polynomial and the
// linear combination, runs FRI over the result, and selects query
// positions bound to FRI's own commitment root.
//
// publicInputs and secretInputs feed a.GenerateTrace/GenerateSecretTrace
// directly; the public inputs the resulting proof is bound to are
// whatever assertions the caller supplies (typically pinning specific
// trace cells to the values in publicInputs).
func Prove(a *air.AIR, publicInputs, secretInputs []field.Element, assertions []Assertion, traceLength int, opts Options) (*Proof, error) {
	if err := a.Validate(); err != nil {
		return nil, newErr(ErrConfiguration, err, "invalid AIR")
	}
	resolved, err := opts.resolve(a.MaxConstraintDegree)
	if err != nil {
		return nil, err
	}
	if !isPowerOfTwo(traceLength) {
		return nil, newErr(ErrConfiguration, nil, "traceLength %d must be a power of two", traceLength)
	}
	hasher, err := hash.New(resolved.HashAlgorithm)
	if err != nil {
		return nil, newErr(ErrConfiguration, err, "building hasher")
	}

	trace, err := a.GenerateTrace(publicInputs, secretInputs, traceLength)
	if err != nil {
		return nil, newErr(ErrTraceGeneration, err, "generating execution trace")
	}
	if len(trace) != a.RegisterCount {
		return nil, newErr(ErrTraceGeneration, nil, "trace has %d registers, AIR declares %d", len(trace), a.RegisterCount)
	}

	var secretTrace [][]field.Element
	if a.SecretRegisterCount > 0 {
		secretTrace, err = a.GenerateSecretTrace(secretInputs, traceLength)
		if err != nil {
			return nil, newErr(ErrTraceGeneration, err, "generating secret register trace")
		}
		if len(secretTrace) != a.SecretRegisterCount {
			return nil, newErr(ErrTraceGeneration, nil, "secret trace has %d registers, AIR declares %d", len(secretTrace), a.SecretRegisterCount)
		}
	}

	for _, asn := range assertions {
		if asn.Register < 0 || asn.Register >= a.RegisterCount {
			return nil, newErr(ErrAssertion, nil, "assertion references register %d out of range", asn.Register)
		}
		if asn.Step < 0 || asn.Step >= traceLength {
			return nil, newErr(ErrAssertion, nil, "assertion references step %d out of range", asn.Step)
		}
		if !trace[asn.Register][asn.Step].Equal(asn.Value) {
			return nil, newErr(ErrAssertion, nil, "trace[%d][%d] does not equal the asserted value", asn.Register, asn.Step)
		}
	}

	domains, err := protocols.Derive(a.Field, traceLength, resolved.ExtensionFactor, a.MaxConstraintDegree)
	if err != nil {
		return nil, newErr(ErrConfiguration, err, "deriving domains")
	}

	for j := 0; j < traceLength-1; j++ {
		p := make([]field.Element, a.RegisterCount)
		n := make([]field.Element, a.RegisterCount)
		for r := 0; r < a.RegisterCount; r++ {
			p[r] = trace[r][j]
			n[r] = trace[r][j+1]
		}
		s := make([]field.Element, a.SecretRegisterCount)
		for k := 0; k < a.SecretRegisterCount; k++ {
			s[k] = secretTrace[k][j]
		}
		x := domains.Execution.At(j)
		q, err := a.EvaluateConstraintsAt(x, p, n, s)
		if err != nil {
			return nil, newErr(ErrConstraintViolation, err, "evaluating constraints at execution step %d", j)
		}
		for ci, qi := range q {
			if !qi.IsZero() {
				return nil, newErr(ErrConstraintViolation, nil, "constraint %d is nonzero at execution step %d", ci, j)
			}
		}
	}

	pPolys := make([]*field.Polynomial, a.RegisterCount)
	for r := 0; r < a.RegisterCount; r++ {
		pPolys[r], err = domains.Execution.Interpolate(trace[r])
		if err != nil {
			return nil, newErr(ErrTraceGeneration, err, "interpolating trace register %d", r)
		}
	}
	sPolys := make([]*field.Polynomial, a.SecretRegisterCount)
	for k := 0; k < a.SecretRegisterCount; k++ {
		sPolys[k], err = domains.Execution.Interpolate(secretTrace[k])
		if err != nil {
			return nil, newErr(ErrTraceGeneration, err, "interpolating secret register %d", k)
		}
	}

	pEvaluations := make([][]field.Element, a.RegisterCount)
	for r, poly := range pPolys {
		pEvaluations[r], err = domains.Evaluation.Evaluate(poly)
		if err != nil {
			return nil, newErr(ErrTraceGeneration, err, "low-degree-extending trace register %d", r)
		}
	}
	sEvaluations := make([][]field.Element, a.SecretRegisterCount)
	for k, poly := range sPolys {
		sEvaluations[k], err = domains.Evaluation.Evaluate(poly)
		if err != nil {
			return nil, newErr(ErrTraceGeneration, err, "low-degree-extending secret register %d", k)
		}
	}

	columns := append(append([][]field.Element{}, pEvaluations...), sEvaluations...)
	evTree, evRoot, err := buildEvaluationTree(columns, hasher)
	if err != nil {
		return nil, newErr(ErrTraceGeneration, err, "committing evaluation Merkle tree")
	}

	comp, err := protocols.NewCompositionPolynomial(a.Field, a, assertions, domains, evRoot)
	if err != nil {
		return nil, newErr(ErrConfiguration, err, "building composition polynomial")
	}
	cEvals, err := comp.Evaluate(a, pPolys, sPolys, domains.Composition, domains.Evaluation)
	if err != nil {
		return nil, newErr(ErrConstraintViolation, err, "evaluating composition polynomial")
	}

	lc, err := protocols.NewLinearCombination(a.Field, a.RegisterCount, a.SecretRegisterCount, domains.CompositionDegree, domains.TraceLength, comp.CoefsConsumed(), evRoot)
	if err != nil {
		return nil, newErr(ErrConfiguration, err, "building linear combination")
	}
	lEvals, err := lc.Evaluate(cEvals, columns, domains.Evaluation)
	if err != nil {
		return nil, newErr(ErrTraceGeneration, err, "evaluating linear combination")
	}

	initial, err := protocols.CommitInitialLayer(a.Field, hasher, lEvals, domains.Evaluation.Generator)
	if err != nil {
		return nil, newErr(ErrFriLayer, err, "committing FRI initial layer")
	}
	lcRoot := initial.Root()

	qig := protocols.NewQueryIndexGenerator(hasher, resolved.ExtensionFactor)
	exePositions, err := qig.ExeIndexes(lcRoot, domains.Evaluation.Length, resolved.ExeQueryCount)
	if err != nil {
		return nil, newErr(ErrConfiguration, err, "deriving execution query positions")
	}
	augmented := augmentWithNextRow(exePositions, resolved.ExtensionFactor, domains.Evaluation.Length)

	fiberCount := domains.Evaluation.Length / 4
	extraFiberPositions := fiberIndicesOf(augmented, fiberCount)

	friProof, err := protocols.Prove(initial, hasher, qig, resolved.FriQueryCount, extraFiberPositions)
	if err != nil {
		return nil, newErr(ErrFriLayer, err, "running FRI")
	}

	evProof, err := evTree.ProveBatch(augmented)
	if err != nil {
		return nil, newErr(ErrMerkleVerification, err, "opening evaluation Merkle tree")
	}

	return &Proof{
		EvRoot:      evRoot,
		EvProof:     evProof,
		LCRoot:      friProof.LCRoot,
		LCProof:     friProof.LCProof,
		Components:  friProof.Components,
		Remainder:   friProof.Remainder,
		InputShapes: []uint32{uint32(traceLength), uint32(len(publicInputs))},
	}, nil
}

// Verify checks proof against a and assertions. The public inputs a
// proof is bound to are exactly whatever assertions pin; verifying
// with assertions derived from different public inputs than the ones
// used to produce the trace will fail the consistency check between
// the recomputed composition value and the value FRI committed to.
func Verify(a *air.AIR, assertions []Assertion, proof *Proof, opts Options) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, newErr(ErrConfiguration, err, "invalid AIR")
	}
	resolved, err := opts.resolve(a.MaxConstraintDegree)
	if err != nil {
		return false, err
	}
	hasher, err := hash.New(resolved.HashAlgorithm)
	if err != nil {
		return false, newErr(ErrConfiguration, err, "building hasher")
	}

	if len(proof.InputShapes) < 1 {
		return false, newErr(ErrSerialization, nil, "proof is missing its traceLength shape entry")
	}
	traceLength := int(proof.InputShapes[0])

	domains, err := protocols.Derive(a.Field, traceLength, resolved.ExtensionFactor, a.MaxConstraintDegree)
	if err != nil {
		return false, newErr(ErrConfiguration, err, "deriving domains")
	}

	qig := protocols.NewQueryIndexGenerator(hasher, resolved.ExtensionFactor)
	exePositions, err := qig.ExeIndexes(proof.LCRoot, domains.Evaluation.Length, resolved.ExeQueryCount)
	if err != nil {
		return false, newErr(ErrConfiguration, err, "deriving execution query positions")
	}
	augmented := augmentWithNextRow(exePositions, resolved.ExtensionFactor, domains.Evaluation.Length)

	columnWidth := a.RegisterCount + a.SecretRegisterCount
	ok, err := merkle.VerifyBatch(proof.EvRoot, augmented, proof.EvProof, hasher)
	if err != nil || !ok {
		return false, newErr(ErrMerkleVerification, err, "evaluation Merkle opening failed")
	}
	rows := decodeRowsByPosition(proof.EvProof, augmented, a.Field, columnWidth)

	comp, err := protocols.NewCompositionPolynomial(a.Field, a, assertions, domains, proof.EvRoot)
	if err != nil {
		return false, newErr(ErrConfiguration, err, "building composition polynomial")
	}
	lc, err := protocols.NewLinearCombination(a.Field, a.RegisterCount, a.SecretRegisterCount, domains.CompositionDegree, domains.TraceLength, comp.CoefsConsumed(), proof.EvRoot)
	if err != nil {
		return false, newErr(ErrConfiguration, err, "building linear combination")
	}

	fiberCount := domains.Evaluation.Length / 4
	extraFiberPositions := fiberIndicesOf(augmented, fiberCount)

	var round0 []int
	if len(proof.Components) > 0 {
		round0, err = qig.FriIndexes(proof.Components[0].ColumnRoot, fiberCount, resolved.FriQueryCount)
		if err != nil {
			return false, newErr(ErrConfiguration, err, "deriving FRI round-0 query positions")
		}
	}
	lcFiberPositions := sortUniqueIntsLocal(append(append([]int{}, extraFiberPositions...), round0...))

	for _, i := range exePositions {
		x := domains.Evaluation.At(i)
		row, ok := rows[i]
		if !ok {
			return false, newErr(ErrMerkleVerification, nil, "missing opened row at position %d", i)
		}
		nPos := (i + resolved.ExtensionFactor) % domains.Evaluation.Length
		nRow, ok := rows[nPos]
		if !ok {
			return false, newErr(ErrMerkleVerification, nil, "missing opened next-row at position %d", nPos)
		}

		pValues := row[:a.RegisterCount]
		sValues := row[a.RegisterCount:]
		nValues := nRow[:a.RegisterCount]

		pValuesByRegister := make(map[int]field.Element, a.RegisterCount)
		for r, v := range pValues {
			pValuesByRegister[r] = v
		}

		cValue, err := comp.EvaluateAt(a, x, pValues, nValues, sValues, pValuesByRegister)
		if err != nil {
			return false, newErr(ErrConstraintViolation, err, "evaluating composition polynomial at query position %d", i)
		}
		combinedValues := append(append([]field.Element{}, pValues...), sValues...)
		lValue, err := lc.ComputeOne(x, cValue, combinedValues)
		if err != nil {
			return false, newErr(ErrConstraintViolation, err, "evaluating linear combination at query position %d", i)
		}

		fi := i % fiberCount
		slot := i / fiberCount
		committed, err := protocols.DecodeFiberValue(proof.LCProof, lcFiberPositions, fi, slot, a.Field)
		if err != nil {
			return false, newErr(ErrMerkleVerification, err, "reading committed L(x) value at query position %d", i)
		}
		if !lValue.Equal(committed) {
			return false, newErr(ErrConstraintViolation, nil, "recomputed linear-combination value disagrees with the committed proof at query position %d", i)
		}
	}

	friOK, err := protocols.Verify(a.Field, hasher, qig, resolved.FriQueryCount, proof.LCRoot, &protocols.Proof{
		LCRoot:     proof.LCRoot,
		LCProof:    proof.LCProof,
		Components: proof.Components,
		Remainder:  proof.Remainder,
	}, domains.Evaluation.Generator, domains.Evaluation.Length, domains.CompositionDegree, extraFiberPositions)
	if err != nil || !friOK {
		return false, newErr(ErrFriLayer, err, "FRI verification failed")
	}

	return true, nil
}

func buildEvaluationTree(columns [][]field.Element, hasher *hash.Hasher) (*merkle.Tree, []byte, error) {
	rows, err := hash.MergeVectorRows(columns)
	if err != nil {
		return nil, nil, err
	}
	leaves := make([][]byte, len(rows))
	for i, row := range rows {
		leaves[i] = hash.SerializeRow(row)
	}
	tree, err := merkle.Create(leaves, hasher)
	if err != nil {
		return nil, nil, err
	}
	return tree, tree.Root(), nil
}

// augmentWithNextRow extends positions with, for each i, the
// "next-row" position (i + extensionFactor) mod domainLength required
// to evaluate transition constraints, returning the sorted, deduplicated
// union.
func augmentWithNextRow(positions []int, extensionFactor, domainLength int) []int {
	seen := make(map[int]bool, 2*len(positions))
	out := make([]int, 0, 2*len(positions))
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, i := range positions {
		add(i)
		add((i + extensionFactor) % domainLength)
	}
	sort.Ints(out)
	return out
}

func fiberIndicesOf(positions []int, fiberCount int) []int {
	if fiberCount <= 0 {
		return nil
	}
	seen := make(map[int]bool, len(positions))
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		fi := p % fiberCount
		if !seen[fi] {
			seen[fi] = true
			out = append(out, fi)
		}
	}
	sort.Ints(out)
	return out
}

func sortUniqueIntsLocal(positions []int) []int {
	seen := make(map[int]bool, len(positions))
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// decodeRowsByPosition decodes a batch proof's revealed leaves into a
// map keyed by position, mirroring the canonical sorted-unique order
// merkle.Tree.ProveBatch uses to lay out proof.Values.
func decodeRowsByPosition(proof *merkle.BatchProof, positions []int, f *field.Field, width int) map[int][]field.Element {
	sorted := sortUniqueIntsLocal(positions)
	size := f.ElementSize()
	out := make(map[int][]field.Element, len(sorted))
	for i, p := range sorted {
		if i >= len(proof.Values) {
			break
		}
		data := proof.Values[i]
		row := make([]field.Element, width)
		for j := 0; j < width; j++ {
			row[j] = f.FromBytes(data[j*size : (j+1)*size])
		}
		out[p] = row
	}
	return out
}
