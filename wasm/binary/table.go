package binary

import (
	"fmt"
	"io"

	"github.com/zenvm/wasm-gas/wasm"
)

func decodeTableType(r io.Reader) (*wasm.TableType, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read leading byte: %v", err)
	}

	if b[0] != 0x70 {
		return nil, fmt.Errorf("%w: invalid element type %#x != %#x", wasm.ErrInvalidByte, b[0], 0x70)
	}

	lm, err := decodeLimitsType(r)
	if err != nil {
		return nil, fmt.Errorf("read limits: %v", err)
	}

	return &wasm.TableType{
		ElemType: 0x70, // funcref
		Limit:    lm,
	}, nil
}

// encodeTableType encodes the table type in WebAssembly 1.0 (MVP) Binary Format.
// See https://www.w3.org/TR/wasm-core-1/#binary-tabletype
func encodeTableType(t *wasm.TableType) []byte {
	return append([]byte{t.ElemType}, encodeLimitsType(t.Limit)...)
}
