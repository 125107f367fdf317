package binary

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/leb128"
)

func decodeCode(r io.Reader) (*wasm.Code, error) {
	ss, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get the size of code: %w", err)
	}

	r = io.LimitReader(r, int64(ss))

	// parse locals
	ls, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get the size locals: %v", err)
	}

	var nums []uint64
	var types []wasm.ValueType
	var sum uint64
	b := make([]byte, 1)
	for i := uint32(0); i < ls; i++ {
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read n of locals: %v", err)
		}
		sum += uint64(n)
		nums = append(nums, uint64(n))

		_, err = io.ReadFull(r, b)
		if err != nil {
			return nil, fmt.Errorf("read type of local: %v", err)
		}
		switch vt := wasm.ValueType(b[0]); vt {
		case wasm.ValueTypeI32, wasm.ValueTypeF32, wasm.ValueTypeI64, wasm.ValueTypeF64:
			types = append(types, vt)
		default:
			return nil, fmt.Errorf("invalid local type: 0x%x", vt)
		}
	}

	if sum > math.MaxUint32 {
		return nil, fmt.Errorf("too many locals: %d", sum)
	}

	var localTypes []wasm.ValueType
	for i, num := range nums {
		t := types[i]
		for j := uint64(0); j < num; j++ {
			localTypes = append(localTypes, t)
		}
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if len(body) == 0 || body[len(body)-1] != wasm.OpcodeEnd {
		return nil, fmt.Errorf("expr not end with OpcodeEnd")
	}

	return &wasm.Code{
		Body:       body,
		LocalTypes: localTypes,
	}, nil
}

// encodeCode returns the wasm.Code encoded in WebAssembly 1.0 (MVP) Binary Format.
//
// Consecutive locals of the same type compress into a single (count, type) entry.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-code
func encodeCode(c *wasm.Code) []byte {
	// groups consecutive LocalTypes into compressed (count, type) entries
	var entries []byte
	var entryCount uint32
	for i := 0; i < len(c.LocalTypes); {
		t := c.LocalTypes[i]
		j := i + 1
		for j < len(c.LocalTypes) && c.LocalTypes[j] == t {
			j++
		}
		entries = append(entries, leb128.EncodeUint32(uint32(j-i))...)
		entries = append(entries, t)
		entryCount++
		i = j
	}

	content := new(bytes.Buffer)
	content.Write(leb128.EncodeUint32(entryCount))
	content.Write(entries)
	content.Write(c.Body)

	return encodeSizePrefixed(content.Bytes())
}
