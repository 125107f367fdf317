package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/leb128"
)

func decodeConstantExpression(r io.Reader) (*wasm.ConstantExpression, error) {
	b := make([]byte, 1)
	_, err := io.ReadFull(r, b)
	if err != nil {
		return nil, fmt.Errorf("read opcode: %v", err)
	}
	buf := new(bytes.Buffer)
	teeR := io.TeeReader(r, buf)

	opcode := b[0]
	switch opcode {
	case wasm.OpcodeI32Const:
		_, _, err = leb128.DecodeInt32(teeR)
	case wasm.OpcodeI64Const:
		_, _, err = leb128.DecodeInt64(teeR)
	case wasm.OpcodeF32Const:
		_, err = io.CopyN(io.Discard, teeR, 4)
	case wasm.OpcodeF64Const:
		_, err = io.CopyN(io.Discard, teeR, 8)
	case wasm.OpcodeGlobalGet:
		_, _, err = leb128.DecodeUint32(teeR)
	default:
		return nil, fmt.Errorf("%w for const expression opcode: %#x", wasm.ErrInvalidByte, b[0])
	}

	if err != nil {
		return nil, fmt.Errorf("read value: %v", err)
	}

	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("look for end opcode: %v", err)
	}

	if b[0] != wasm.OpcodeEnd {
		return nil, fmt.Errorf("constant expression has not been terminated")
	}

	return &wasm.ConstantExpression{
		Opcode: opcode,
		Data:   buf.Bytes(),
	}, nil
}

// encodeConstantExpression encodes a constant expression in WebAssembly 1.0 (MVP) Binary Format.
// See https://www.w3.org/TR/wasm-core-1/#binary-expr
func encodeConstantExpression(expr *wasm.ConstantExpression) []byte {
	data := append([]byte{expr.Opcode}, expr.Data...)
	return append(data, wasm.OpcodeEnd)
}
