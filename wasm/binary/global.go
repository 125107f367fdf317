package binary

import (
	"fmt"
	"io"

	"github.com/zenvm/wasm-gas/wasm"
)

func decodeGlobal(r io.Reader) (*wasm.Global, error) {
	gt, err := decodeGlobalType(r)
	if err != nil {
		return nil, fmt.Errorf("read global type: %v", err)
	}

	init, err := decodeConstantExpression(r)
	if err != nil {
		return nil, fmt.Errorf("get init expression: %v", err)
	}

	return &wasm.Global{
		Type: gt,
		Init: init,
	}, nil
}

func decodeGlobalType(r io.Reader) (*wasm.GlobalType, error) {
	vt, err := decodeValueTypes(r, 1)
	if err != nil {
		return nil, fmt.Errorf("read value type: %w", err)
	}

	ret := &wasm.GlobalType{
		ValType: vt[0],
	}

	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read mutablity: %w", err)
	}

	switch mut := b[0]; mut {
	case 0x00:
	case 0x01:
		ret.Mutable = true
	default:
		return nil, fmt.Errorf("%w for mutability: %#x != 0x00 or 0x01", wasm.ErrInvalidByte, mut)
	}
	return ret, nil
}

// encodeGlobal encodes the global in WebAssembly 1.0 (MVP) Binary Format.
// See https://www.w3.org/TR/wasm-core-1/#binary-global
func encodeGlobal(g *wasm.Global) []byte {
	return append(encodeGlobalType(g.Type), encodeConstantExpression(g.Init)...)
}

// encodeGlobalType encodes the global type in WebAssembly 1.0 (MVP) Binary Format.
// See https://www.w3.org/TR/wasm-core-1/#binary-globaltype
func encodeGlobalType(t *wasm.GlobalType) []byte {
	var mut byte
	if t.Mutable {
		mut = 0x01
	}
	return []byte{t.ValType, mut}
}
