package starkcore

import (
	"encoding/binary"

	"github.com/vybium/starkcore/internal/starkcore/field"
	"github.com/vybium/starkcore/internal/starkcore/merkle"
	"github.com/vybium/starkcore/internal/starkcore/protocols"
)

// Proof is the complete, canonically-encoded output of Prove: the
// evaluation-Merkle opening of the trace and secret-input columns,
// the FRI low-degree proof for L(x), and the application-defined
// input-shape trailer.
type Proof struct {
	EvRoot      []byte
	EvProof     *merkle.BatchProof
	LCRoot      []byte
	LCProof     *merkle.BatchProof
	Components  []protocols.Component
	Remainder   []field.Element
	InputShapes []uint32
}

// WireShape carries the sizes and field a Deserialize call needs but
// the wire format itself does not repeat: the element width, the
// hash's digest width, and the evaluation leaf's column count
// (registers plus secret-input registers).
type WireShape struct {
	Field       *field.Field
	ElementSize int
	DigestSize  int
	ColumnWidth int // R+K
}

// Serialize encodes p in the canonical bit-exact wire format (§6):
// evRoot, evProof, ldProof (lcRoot/lcProof/components/remainder), then
// the inputShapes trailer.
func (p *Proof) Serialize() ([]byte, error) {
	var buf []byte

	buf = append(buf, p.EvRoot...)
	evBytes, err := encodeBatchProof(p.EvProof)
	if err != nil {
		return nil, newErr(ErrSerialization, err, "encoding evProof")
	}
	buf = append(buf, evBytes...)

	buf = append(buf, p.LCRoot...)
	lcBytes, err := encodeBatchProof(p.LCProof)
	if err != nil {
		return nil, newErr(ErrSerialization, err, "encoding lcProof")
	}
	buf = append(buf, lcBytes...)

	if len(p.Components) > 255 {
		return nil, newErr(ErrSerialization, nil, "component count %d exceeds 255", len(p.Components))
	}
	buf = append(buf, byte(len(p.Components)))
	for i, c := range p.Components {
		buf = append(buf, c.ColumnRoot...)
		colBytes, err := encodeBatchProof(c.ColumnProof)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "encoding component %d columnProof", i)
		}
		buf = append(buf, colBytes...)
		polyBytes, err := encodeBatchProof(c.PolyProof)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "encoding component %d polyProof", i)
		}
		buf = append(buf, polyBytes...)
	}

	remLen := len(p.Remainder)
	if remLen > 256 {
		return nil, newErr(ErrSerialization, nil, "remainder length %d exceeds 256", remLen)
	}
	buf = append(buf, lengthByte(remLen))
	for _, e := range p.Remainder {
		buf = append(buf, e.Bytes()...)
	}

	if len(p.InputShapes) > 255 {
		return nil, newErr(ErrSerialization, nil, "inputShapes depth %d exceeds 255", len(p.InputShapes))
	}
	buf = append(buf, byte(len(p.InputShapes)))
	for _, s := range p.InputShapes {
		var sb [4]byte
		binary.LittleEndian.PutUint32(sb[:], s)
		buf = append(buf, sb[:]...)
	}

	return buf, nil
}

// Deserialize parses a byte-exact proof previously produced by Serialize.
func Deserialize(data []byte, shape WireShape) (*Proof, error) {
	r := &byteReader{data: data}

	evRoot, err := r.take(shape.DigestSize)
	if err != nil {
		return nil, newErr(ErrSerialization, err, "reading evRoot")
	}
	evLeafWidth := shape.ColumnWidth * shape.ElementSize
	evProof, err := decodeBatchProof(r, evLeafWidth, shape.DigestSize)
	if err != nil {
		return nil, newErr(ErrSerialization, err, "decoding evProof")
	}

	lcRoot, err := r.take(shape.DigestSize)
	if err != nil {
		return nil, newErr(ErrSerialization, err, "reading lcRoot")
	}
	fiberLeafWidth := 4 * shape.ElementSize
	lcProof, err := decodeBatchProof(r, fiberLeafWidth, shape.DigestSize)
	if err != nil {
		return nil, newErr(ErrSerialization, err, "decoding lcProof")
	}

	componentCount, err := r.byte1()
	if err != nil {
		return nil, newErr(ErrSerialization, err, "reading componentCount")
	}
	components := make([]protocols.Component, componentCount)
	for i := 0; i < int(componentCount); i++ {
		root, err := r.take(shape.DigestSize)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "reading component %d columnRoot", i)
		}
		colProof, err := decodeBatchProof(r, fiberLeafWidth, shape.DigestSize)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "decoding component %d columnProof", i)
		}
		polyProof, err := decodeBatchProof(r, fiberLeafWidth, shape.DigestSize)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "decoding component %d polyProof", i)
		}
		components[i] = protocols.Component{ColumnRoot: root, ColumnProof: colProof, PolyProof: polyProof}
	}

	remLenByte, err := r.byte1()
	if err != nil {
		return nil, newErr(ErrSerialization, err, "reading remainder length")
	}
	remLen := int(remLenByte)
	if remLen == 0 {
		remLen = 256
	}
	remainder := make([]field.Element, remLen)
	for i := 0; i < remLen; i++ {
		b, err := r.take(shape.ElementSize)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "reading remainder element %d", i)
		}
		remainder[i] = shape.Field.FromBytes(b)
	}

	depthByte, err := r.byte1()
	if err != nil {
		return nil, newErr(ErrSerialization, err, "reading inputShapes depth")
	}
	shapes := make([]uint32, depthByte)
	for i := 0; i < int(depthByte); i++ {
		b, err := r.take(4)
		if err != nil {
			return nil, newErr(ErrSerialization, err, "reading inputShapes entry %d", i)
		}
		shapes[i] = binary.LittleEndian.Uint32(b)
	}

	if !r.exhausted() {
		return nil, newErr(ErrSerialization, nil, "trailing bytes after a complete proof")
	}

	return &Proof{
		EvRoot:      evRoot,
		EvProof:     evProof,
		LCRoot:      lcRoot,
		LCProof:     lcProof,
		Components:  components,
		Remainder:   remainder,
		InputShapes: shapes,
	}, nil
}

func lengthByte(n int) byte {
	if n == 256 {
		return 0
	}
	return byte(n)
}

// encodeMatrixColumnCount encodes a Nodes matrix's column count.
// lengthByte's 0-means-256 convention cannot represent a genuinely
// empty matrix (a depth-0 Merkle tree has none), since wire byte 0 is
// already claimed by 256; a leading presence byte disambiguates the
// two instead.
func encodeMatrixColumnCount(n int) ([]byte, error) {
	if n > 256 {
		return nil, newErr(ErrSerialization, nil, "matrix column count %d exceeds 256", n)
	}
	if n == 0 {
		return []byte{0}, nil
	}
	return []byte{1, lengthByte(n)}, nil
}

func encodeBatchProof(bp *merkle.BatchProof) ([]byte, error) {
	var buf []byte
	if len(bp.Values) > 256 {
		return nil, newErr(ErrSerialization, nil, "array length %d exceeds 256", len(bp.Values))
	}
	buf = append(buf, lengthByte(len(bp.Values)))
	for _, v := range bp.Values {
		buf = append(buf, v...)
	}

	colCountBytes, err := encodeMatrixColumnCount(len(bp.Nodes))
	if err != nil {
		return nil, err
	}
	buf = append(buf, colCountBytes...)
	for _, col := range bp.Nodes {
		if len(col) > 127 {
			return nil, newErr(ErrSerialization, nil, "matrix column length %d exceeds 127", len(col))
		}
		buf = append(buf, byte(len(col)<<1)) // typeBit always 0: our leaves are always pre-hashed
	}
	for _, col := range bp.Nodes {
		for _, n := range col {
			buf = append(buf, n...)
		}
	}

	buf = append(buf, byte(bp.Depth))
	return buf, nil
}

func decodeBatchProof(r *byteReader, leafWidth, nodeWidth int) (*merkle.BatchProof, error) {
	valCount, err := r.byte1()
	if err != nil {
		return nil, err
	}
	n := int(valCount)
	if n == 0 {
		n = 256
	}
	values := make([][]byte, n)
	for i := 0; i < n; i++ {
		v, err := r.take(leafWidth)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	colCountPresent, err := r.byte1()
	if err != nil {
		return nil, err
	}
	colCount := 0
	if colCountPresent != 0 {
		colCountByte, err := r.byte1()
		if err != nil {
			return nil, err
		}
		colCount = int(colCountByte)
		if colCount == 0 {
			colCount = 256
		}
	}
	widths := make([]int, colCount)
	lengths := make([]int, colCount)
	for i := 0; i < colCount; i++ {
		b, err := r.byte1()
		if err != nil {
			return nil, err
		}
		typeBit := b & 1
		length := int(b >> 1)
		lengths[i] = length
		if typeBit == 1 {
			widths[i] = leafWidth
		} else {
			widths[i] = nodeWidth
		}
	}
	nodes := make([][][]byte, colCount)
	for i := 0; i < colCount; i++ {
		col := make([][]byte, lengths[i])
		for j := 0; j < lengths[i]; j++ {
			v, err := r.take(widths[i])
			if err != nil {
				return nil, err
			}
			col[j] = v
		}
		nodes[i] = col
	}

	depthByte, err := r.byte1()
	if err != nil {
		return nil, err
	}

	return &merkle.BatchProof{Values: values, Nodes: nodes, Depth: int(depthByte)}, nil
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, newErr(ErrSerialization, nil, "unexpected end of proof bytes")
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) byte1() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) exhausted() bool { return r.pos == len(r.data) }
