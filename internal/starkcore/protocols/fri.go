package protocols

import (
	"fmt"
	"sort"

	"github.com/vybium/starkcore/internal/starkcore/field"
	"github.com/vybium/starkcore/internal/starkcore/hash"
	"github.com/vybium/starkcore/internal/starkcore/merkle"
)

// remainderThreshold is the layer size at which folding stops and the
// remaining values are emitted verbatim rather than folded again.
const remainderThreshold = 64

// InitialLayer is the committed, not-yet-folded evaluation of L(x): a
// Merkle tree whose leaves are the quartic fibers {v_i, v_(i+m),
// v_(i+2m), v_(i+3m)} for m = len(values)/4. Its root doubles as both
// the anchor for FRI's own first folding round and the seed the
// orchestrator uses to draw execution query positions (§4.7 item 4),
// which is why committing it is split out from the rest of Prove: the
// caller needs the root before it can know which extra positions its
// own query-index derivation requires opened.
type InitialLayer struct {
	field      *field.Field
	values     []field.Element
	generator  field.Element
	tree       *merkle.Tree
	fiberCount int
}

// CommitInitialLayer builds the fiber tree over values, the evaluation
// of L(x) over the domain generated by generator.
func CommitInitialLayer(f *field.Field, hasher *hash.Hasher, values []field.Element, generator field.Element) (*InitialLayer, error) {
	n := len(values)
	if n == 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("protocols: FRI initial layer length %d must be a positive power of two", n)
	}
	if n%4 != 0 {
		return nil, fmt.Errorf("protocols: FRI initial layer length %d must be a multiple of 4", n)
	}
	tree, err := buildFiberTree(hasher, values)
	if err != nil {
		return nil, fmt.Errorf("protocols: committing FRI initial layer: %w", err)
	}
	return &InitialLayer{field: f, values: values, generator: generator, tree: tree, fiberCount: n / 4}, nil
}

// Root returns the initial layer's commitment, lcRoot.
func (l *InitialLayer) Root() []byte { return append([]byte(nil), l.tree.Root()...) }

// FiberIndex maps a flat position in [0, len(values)) to the index of
// the fiber it belongs to, for callers building extra open positions.
func (l *InitialLayer) FiberIndex(pos int) int { return pos % l.fiberCount }

func buildFiberTree(hasher *hash.Hasher, values []field.Element) (*merkle.Tree, error) {
	n := len(values)
	m := n / 4
	leaves := make([][]byte, m)
	for i := 0; i < m; i++ {
		row := []field.Element{values[i], values[i+m], values[i+2*m], values[i+3*m]}
		leaves[i] = hash.SerializeRow(row)
	}
	return merkle.Create(leaves, hasher)
}

// Component is one folding round's worth of proof material.
type Component struct {
	ColumnRoot  []byte
	ColumnProof *merkle.BatchProof
	PolyProof   *merkle.BatchProof
}

// Proof is the complete low-degree proof for L(x): the initial
// commitment plus one Component per folding round and the final
// remainder.
type Proof struct {
	LCRoot     []byte
	LCProof    *merkle.BatchProof
	Components []Component
	Remainder  []field.Element
}

type foldRound struct {
	values    []field.Element
	generator field.Element
	tree      *merkle.Tree
}

func sortUniqueInts(positions []int) []int {
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

// quarticRoot returns a primitive 4th root of unity compatible with
// domain generator g of the given fiber count m (g^m, since g has
// order 4m).
func quarticRoot(f *field.Field, g field.Element, m int) (field.Element, error) {
	zeta := g.ExpInt(int64(m))
	if zeta.IsOne() {
		return field.Element{}, fmt.Errorf("protocols: degenerate quartic root for fiber count %d", m)
	}
	return zeta, nil
}

func decodeRow(data []byte, f *field.Field, width int) []field.Element {
	size := f.ElementSize()
	out := make([]field.Element, width)
	for i := 0; i < width; i++ {
		out[i] = f.FromBytes(data[i*size : (i+1)*size])
	}
	return out
}

// rowsByPosition decodes a batch proof's revealed leaves into a map
// keyed by the (sorted, deduplicated) positions they were proven at —
// the same canonical order merkle.Tree.ProveBatch uses internally.
func rowsByPosition(proof *merkle.BatchProof, positions []int, f *field.Field, width int) map[int][]field.Element {
	sorted := sortUniqueInts(positions)
	out := make(map[int][]field.Element, len(sorted))
	for i, p := range sorted {
		if i >= len(proof.Values) {
			break
		}
		out[p] = decodeRow(proof.Values[i], f, width)
	}
	return out
}

// Prove runs the recursive 4-to-1 folding over the committed initial
// layer until the remaining layer is at most remainderThreshold long,
// then emits the remainder verbatim. extraFiberPositions names
// additional fiber indices of the initial layer (beyond FRI's own
// round-0 query positions) that lcProof must also open — the
// orchestrator supplies these for the execution-query cross-check.
func Prove(initial *InitialLayer, hasher *hash.Hasher, qig *QueryIndexGenerator, friQueryCount int, extraFiberPositions []int) (*Proof, error) {
	f := initial.field

	round := foldRound{values: initial.values, generator: initial.generator, tree: initial.tree}
	var components []Component
	var round0FriPositions []int

	for len(round.values) > remainderThreshold {
		n := len(round.values)
		m := n / 4
		columnRoot := round.tree.Root()

		zeta, err := quarticRoot(f, round.generator, m)
		if err != nil {
			return nil, err
		}
		specialX := f.PRNG(columnRoot, 1)[0]

		nextValues := make([]field.Element, m)
		for i := 0; i < m; i++ {
			baseX := round.generator.ExpInt(int64(i))
			xs := make([]field.Element, 4)
			ys := make([]field.Element, 4)
			pow := f.One()
			for k := 0; k < 4; k++ {
				xs[k] = baseX.Mul(pow)
				ys[k] = round.values[i+k*m]
				pow = pow.Mul(zeta)
			}
			poly, err := field.LagrangeInterpolate(f, xs, ys)
			if err != nil {
				return nil, fmt.Errorf("protocols: interpolating FRI fiber %d: %w", i, err)
			}
			nextValues[i] = poly.Evaluate(specialX)
		}

		nextGenerator := round.generator.ExpInt(4)
		nextTree, err := buildFiberTree(hasher, nextValues)
		if err != nil {
			return nil, fmt.Errorf("protocols: committing FRI layer: %w", err)
		}
		nextRoot := nextTree.Root()

		queryIndices, err := qig.FriIndexes(nextRoot, m, friQueryCount)
		if err != nil {
			return nil, fmt.Errorf("protocols: deriving FRI query indices: %w", err)
		}
		if len(components) == 0 {
			round0FriPositions = queryIndices
		}

		columnProof, err := proveColumn(nextValues, nextTree, queryIndices)
		if err != nil {
			return nil, fmt.Errorf("protocols: proving FRI column opening: %w", err)
		}
		polyProof, err := round.tree.ProveBatch(queryIndices)
		if err != nil {
			return nil, fmt.Errorf("protocols: proving FRI poly opening: %w", err)
		}

		components = append(components, Component{
			ColumnRoot:  append([]byte(nil), nextRoot...),
			ColumnProof: columnProof,
			PolyProof:   polyProof,
		})

		round = foldRound{values: nextValues, generator: nextGenerator, tree: nextTree}
	}

	lcPositions := sortUniqueInts(append(append([]int{}, extraFiberPositions...), round0FriPositions...))
	lcProof, err := initial.tree.ProveBatch(lcPositions)
	if err != nil {
		return nil, fmt.Errorf("protocols: proving FRI initial layer opening: %w", err)
	}

	return &Proof{
		LCRoot:     initial.Root(),
		LCProof:    lcProof,
		Components: components,
		Remainder:  round.values,
	}, nil
}

// proveColumn opens values (the new, folded column) at flat positions,
// each located within a 4-wide fiber of tree.
func proveColumn(values []field.Element, tree *merkle.Tree, positions []int) (*merkle.BatchProof, error) {
	m := len(values) / 4
	fiberPositions := uniqueFiberPositions(positions, m)
	return tree.ProveBatch(fiberPositions)
}

func uniqueFiberPositions(positions []int, fiberCount int) []int {
	if fiberCount <= 0 {
		return nil
	}
	seen := make(map[int]bool)
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

// DecodeFiberValue returns the single field element at fiberIndex's
// slot-th position within proof's revealed fibers, given the full,
// sorted set of fiber positions proof was opened at. Used by the
// orchestrator to read L(x) directly out of FRI's initial-layer
// opening at an execution query position, rather than re-deriving it.
func DecodeFiberValue(proof *merkle.BatchProof, fiberPositions []int, fiberIndex, slot int, f *field.Field) (field.Element, error) {
	rows := rowsByPosition(proof, fiberPositions, f, 4)
	row, ok := rows[fiberIndex]
	if !ok {
		return field.Element{}, fmt.Errorf("protocols: fiber %d not present in the opened proof", fiberIndex)
	}
	if slot < 0 || slot >= len(row) {
		return field.Element{}, fmt.Errorf("protocols: slot %d out of range for fiber %d", slot, fiberIndex)
	}
	return row[slot], nil
}

// Verify checks proof against lcRoot, the domain generator and length
// of L(x)'s evaluation, the claimed overall degree bound, and the same
// extraFiberPositions the prover's caller used (re-derived
// deterministically from lcRoot, never transmitted).
func Verify(f *field.Field, hasher *hash.Hasher, qig *QueryIndexGenerator, friQueryCount int, lcRoot []byte, proof *Proof, generator field.Element, domainLength, degreeBound int, extraFiberPositions []int) (bool, error) {
	if string(proof.LCRoot) != string(lcRoot) {
		return false, fmt.Errorf("protocols: FRI proof's lcRoot does not match the expected commitment")
	}

	currentRoot := lcRoot
	currentGenerator := generator
	currentLength := domainLength

	for d, comp := range proof.Components {
		m := currentLength / 4
		queryIndices, err := qig.FriIndexes(comp.ColumnRoot, m, friQueryCount)
		if err != nil {
			return false, fmt.Errorf("protocols: deriving FRI query indices for layer %d: %w", d, err)
		}
		if d == 0 {
			round0 := sortUniqueInts(append(append([]int{}, extraFiberPositions...), queryIndices...))
			ok, err := merkle.VerifyBatch(lcRoot, round0, proof.LCProof, hasher)
			if err != nil || !ok {
				return false, fmt.Errorf("protocols: MerkleVerificationError: FRI initial layer opening failed: %w", err)
			}
		}

		polyOK, err := merkle.VerifyBatch(currentRoot, queryIndices, comp.PolyProof, hasher)
		if err != nil || !polyOK {
			return false, fmt.Errorf("protocols: FriLayerError: layer %d poly opening failed: %w", d, err)
		}

		columnFiberPositions := uniqueFiberPositions(queryIndices, m/4)
		columnOK, err := merkle.VerifyBatch(comp.ColumnRoot, columnFiberPositions, comp.ColumnProof, hasher)
		if err != nil || !columnOK {
			return false, fmt.Errorf("protocols: FriLayerError: layer %d column opening failed: %w", d, err)
		}

		zeta, err := quarticRoot(f, currentGenerator, m)
		if err != nil {
			return false, err
		}
		specialX := f.PRNG(currentRoot, 1)[0]

		revealedPoly := rowsByPosition(comp.PolyProof, queryIndices, f, 4)
		revealedColumn := rowsByPosition(comp.ColumnProof, columnFiberPositions, f, 4)

		for _, idx := range queryIndices {
			row, ok := revealedPoly[idx]
			if !ok {
				return false, fmt.Errorf("protocols: FriLayerError: missing revealed row for layer %d index %d", d, idx)
			}
			baseX := currentGenerator.ExpInt(int64(idx))
			xs := make([]field.Element, 4)
			pow := f.One()
			for k := 0; k < 4; k++ {
				xs[k] = baseX.Mul(pow)
				pow = pow.Mul(zeta)
			}
			poly, err := field.LagrangeInterpolate(f, xs, row)
			if err != nil {
				return false, fmt.Errorf("protocols: FriLayerError: %w", err)
			}
			got := poly.Evaluate(specialX)

			fi := idx % (m / 4)
			slot := idx / (m / 4)
			colVal, ok := revealedColumn[fi]
			if !ok || slot >= len(colVal) {
				return false, fmt.Errorf("protocols: FriLayerError: missing revealed column value for layer %d index %d", d, idx)
			}
			if !got.Equal(colVal[slot]) {
				return false, fmt.Errorf("protocols: FriLayerError: degree-4 consistency check failed at layer %d index %d", d, idx)
			}
		}

		currentRoot = comp.ColumnRoot
		currentGenerator = currentGenerator.ExpInt(4)
		currentLength = m
	}

	if len(proof.Components) == 0 {
		ok, err := merkle.VerifyBatch(lcRoot, sortUniqueInts(extraFiberPositions), proof.LCProof, hasher)
		if err != nil || !ok {
			return false, fmt.Errorf("protocols: MerkleVerificationError: FRI initial layer opening failed: %w", err)
		}
	}

	remainderTree, err := buildFiberTree(hasher, proof.Remainder)
	if err != nil {
		return false, fmt.Errorf("protocols: building remainder fiber tree: %w", err)
	}
	if string(remainderTree.Root()) != string(currentRoot) {
		return false, fmt.Errorf("protocols: FriLayerError: remainder does not match the last committed column root")
	}

	depth := len(proof.Components)
	divisor := 1
	for i := 0; i < depth; i++ {
		divisor *= 4
	}
	expectedDegree := degreeBound / divisor
	if expectedDegree < 1 {
		expectedDegree = 1
	}
	if expectedDegree > len(proof.Remainder) {
		expectedDegree = len(proof.Remainder)
	}

	xs := make([]field.Element, expectedDegree)
	ys := make([]field.Element, expectedDegree)
	for i := 0; i < expectedDegree; i++ {
		xs[i] = currentGenerator.ExpInt(int64(i))
		ys[i] = proof.Remainder[i]
	}
	remPoly, err := field.LagrangeInterpolate(f, xs, ys)
	if err != nil {
		return false, fmt.Errorf("protocols: RemainderDegreeError: %w", err)
	}
	for i := expectedDegree; i < len(proof.Remainder); i++ {
		x := currentGenerator.ExpInt(int64(i))
		if !remPoly.Evaluate(x).Equal(proof.Remainder[i]) {
			return false, fmt.Errorf("protocols: RemainderDegreeError: remainder is not consistent with a degree-%d polynomial", expectedDegree-1)
		}
	}

	return true, nil
}
