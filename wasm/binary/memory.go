package binary

import (
	"io"

	"github.com/zenvm/wasm-gas/wasm"
)

func decodeMemoryType(r io.Reader) (*wasm.MemoryType, error) {
	return decodeLimitsType(r)
}

// encodeMemoryType encodes the memory type in WebAssembly 1.0 (MVP) Binary Format.
// See https://www.w3.org/TR/wasm-core-1/#binary-memtype
func encodeMemoryType(m *wasm.MemoryType) []byte {
	return encodeLimitsType(m)
}
