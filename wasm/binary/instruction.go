package binary

import (
	"bytes"
	"fmt"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/leb128"
)

// DecodeInstructions deserializes a function body into its instruction sequence,
// including the trailing OpcodeEnd.
//
// Immediates are retained as raw bytes so that untouched instructions re-encode
// byte for byte. Branch labels and call targets are additionally decoded, as
// rewriting needs them.
//
// See https://www.w3.org/TR/wasm-core-1/#instructions%E2%91%A8
func DecodeInstructions(body []byte) ([]*wasm.Instruction, error) {
	var ret []*wasm.Instruction
	for pc := 0; pc < len(body); {
		op := body[pc]
		pc++

		instr := &wasm.Instruction{Opcode: op}
		num, err := decodeImmediate(instr, body[pc:])
		if err != nil {
			return nil, fmt.Errorf("instruction at %#x: %w", pc-1, err)
		}
		instr.Imm = body[pc : pc+num]
		pc += num
		ret = append(ret, instr)
	}
	return ret, nil
}

// EncodeInstructions is the inverse of DecodeInstructions.
func EncodeInstructions(instructions []*wasm.Instruction) []byte {
	buf := new(bytes.Buffer)
	for _, instr := range instructions {
		buf.WriteByte(instr.Opcode)
		buf.Write(instr.Imm)
	}
	return buf.Bytes()
}

// decodeImmediate decodes the immediate of instr from imm, returning the number
// of bytes consumed.
func decodeImmediate(instr *wasm.Instruction, imm []byte) (int, error) {
	switch op := instr.Opcode; op {
	case wasm.OpcodeUnreachable, wasm.OpcodeNop, wasm.OpcodeElse, wasm.OpcodeEnd, wasm.OpcodeReturn,
		wasm.OpcodeDrop, wasm.OpcodeSelect:
		return 0, nil
	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
		bt, num, err := leb128.DecodeInt33AsInt64(bytes.NewReader(imm))
		if err != nil {
			return 0, fmt.Errorf("read block type: %w", err)
		}
		switch bt {
		case -64, // 0x40 in original byte = nil
			-1, -2, -3, -4: // i32, i64, f32, f64 in original byte
			return int(num), nil
		default:
			return 0, fmt.Errorf("%w for block type: %d", wasm.ErrInvalidByte, bt)
		}
	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		l, num, err := leb128.DecodeUint32(bytes.NewReader(imm))
		if err != nil {
			return 0, err
		}
		instr.Label = l
		return int(num), nil
	case wasm.OpcodeBrTable:
		r := bytes.NewReader(imm)
		nl, num, err := leb128.DecodeUint32(r)
		if err != nil {
			return 0, err
		}
		n := int(num)

		targets := make([]wasm.Index, nl)
		for i := uint32(0); i < nl; i++ {
			l, num, err := leb128.DecodeUint32(r)
			if err != nil {
				return 0, fmt.Errorf("read target %d: %w", i, err)
			}
			targets[i] = l
			n += int(num)
		}

		dl, num, err := leb128.DecodeUint32(r)
		if err != nil {
			return 0, fmt.Errorf("read default target: %w", err)
		}
		instr.Targets = targets
		instr.Default = dl
		return n + int(num), nil
	case wasm.OpcodeCall:
		f, num, err := leb128.DecodeUint32(bytes.NewReader(imm))
		if err != nil {
			return 0, err
		}
		instr.FuncIndex = f
		return int(num), nil
	case wasm.OpcodeCallIndirect:
		_, num, err := leb128.DecodeUint32(bytes.NewReader(imm))
		if err != nil {
			return 0, err
		}
		// table index is fixed to zero
		if int(num) >= len(imm) {
			return 0, fmt.Errorf("missing table index")
		}
		if imm[num] != 0x00 {
			return 0, fmt.Errorf("%w for table index: %#x", wasm.ErrInvalidByte, imm[num])
		}
		return int(num) + 1, nil
	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee, wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		_, num, err := leb128.DecodeUint32(bytes.NewReader(imm))
		if err != nil {
			return 0, err
		}
		return int(num), nil
	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		if len(imm) == 0 || imm[0] != 0x00 {
			return 0, fmt.Errorf("%w for memory index", wasm.ErrInvalidByte)
		}
		return 1, nil
	case wasm.OpcodeI32Const:
		_, num, err := leb128.DecodeInt32(bytes.NewReader(imm))
		if err != nil {
			return 0, err
		}
		return int(num), nil
	case wasm.OpcodeI64Const:
		_, num, err := leb128.DecodeInt64(bytes.NewReader(imm))
		if err != nil {
			return 0, err
		}
		return int(num), nil
	case wasm.OpcodeF32Const:
		if len(imm) < 4 {
			return 0, fmt.Errorf("missing f32 literal")
		}
		return 4, nil
	case wasm.OpcodeF64Const:
		if len(imm) < 8 {
			return 0, fmt.Errorf("missing f64 literal")
		}
		return 8, nil
	default:
		if op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Store32 {
			// memarg: alignment and offset
			r := bytes.NewReader(imm)
			_, an, err := leb128.DecodeUint32(r)
			if err != nil {
				return 0, fmt.Errorf("read alignment: %w", err)
			}
			_, on, err := leb128.DecodeUint32(r)
			if err != nil {
				return 0, fmt.Errorf("read offset: %w", err)
			}
			return int(an) + int(on), nil
		}
		if op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeF64ReinterpretI64 {
			// numeric instructions have no immediate
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %#x", wasm.ErrUnknownOpcode, op)
	}
}
