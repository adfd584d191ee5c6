// Package schema holds the FlatBuffers accessors and builders for graph.fbs.
// They follow the layout flatc emits for Go: one reader type per table that
// wraps a flatbuffers.Table, plus XStart/XAdd*/XEnd builder functions.
package schema

import flatbuffers "github.com/google/flatbuffers/go"

const (
	// FileIdentifier is stored at bytes [4:8] of every serialized model.
	FileIdentifier = "OPVG"
	// SchemaVersion is written to Model.version.
	SchemaVersion uint32 = 3
)

// BufferHasIdentifier reports whether buf is long enough to hold a root
// offset and carries the OPVG file identifier.
func BufferHasIdentifier(buf []byte) bool {
	if len(buf) < flatbuffers.SizeUOffsetT+len(FileIdentifier) {
		return false
	}

	return flatbuffers.BufferHasIdentifier(buf, FileIdentifier)
}

// CreateInt32Vector writes values as a [int] vector.
func CreateInt32Vector(b *flatbuffers.Builder, values []int32) flatbuffers.UOffsetT {
	b.StartVector(4, len(values), 4)
	for i := len(values) - 1; i >= 0; i-- {
		b.PrependInt32(values[i])
	}

	return b.EndVector(len(values))
}

func int32Slot(tab *flatbuffers.Table, vt flatbuffers.VOffsetT) []int32 {
	o := flatbuffers.UOffsetT(tab.Offset(vt))
	if o == 0 {
		return nil
	}

	n := tab.VectorLen(o)
	a := tab.Vector(o)
	if uint64(a)+uint64(n)*4 > uint64(len(tab.Bytes)) {
		panic("schema: int vector exceeds buffer")
	}

	out := make([]int32, n)

	for j := range out {
		out[j] = tab.GetInt32(a + flatbuffers.UOffsetT(j*4))
	}

	return out
}

func tableAt(tab *flatbuffers.Table, vt flatbuffers.VOffsetT, j int) (flatbuffers.UOffsetT, bool) {
	o := flatbuffers.UOffsetT(tab.Offset(vt))
	if o == 0 {
		return 0, false
	}

	x := tab.Vector(o)
	x += flatbuffers.UOffsetT(j) * 4

	return tab.Indirect(x), true
}

func vectorLen(tab *flatbuffers.Table, vt flatbuffers.VOffsetT) int {
	o := flatbuffers.UOffsetT(tab.Offset(vt))
	if o != 0 {
		return tab.VectorLen(o)
	}

	return 0
}
