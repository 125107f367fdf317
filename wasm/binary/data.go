package binary

import (
	"fmt"
	"io"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/leb128"
)

func decodeDataSegment(r io.Reader) (*wasm.DataSegment, error) {
	mi, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read memory index: %v", err)
	}

	if mi != 0 {
		return nil, fmt.Errorf("invalid memory index: %d", mi)
	}

	expr, err := decodeConstantExpression(r)
	if err != nil {
		return nil, fmt.Errorf("read offset expression: %v", err)
	}

	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %v", err)
	}

	b := make([]byte, vs)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read bytes for init: %v", err)
	}

	return &wasm.DataSegment{
		MemoryIndex: mi,
		OffsetExpr:  expr,
		Init:        b,
	}, nil
}

// encodeDataSegment encodes a data segment in WebAssembly 1.0 (MVP) Binary Format.
// See https://www.w3.org/TR/wasm-core-1/#binary-data
func encodeDataSegment(d *wasm.DataSegment) []byte {
	data := leb128.EncodeUint32(d.MemoryIndex)
	data = append(data, encodeConstantExpression(d.OffsetExpr)...)
	return append(data, encodeSizePrefixed(d.Init)...)
}
