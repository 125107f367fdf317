package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenvm/wasm-gas/wasm"
)

func TestDecodeInstructions(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		expected []*wasm.Instruction
	}{
		{
			name:     "empty function",
			body:     []byte{wasm.OpcodeEnd},
			expected: []*wasm.Instruction{{Opcode: wasm.OpcodeEnd, Imm: []byte{}}},
		},
		{
			name: "constants and arithmetic",
			body: []byte{
				wasm.OpcodeI32Const, 0x01,
				wasm.OpcodeI64Const, 0x7f, // -1
				wasm.OpcodeF32Const, 0x00, 0x00, 0x80, 0x3f,
				wasm.OpcodeI32Add,
				wasm.OpcodeEnd,
			},
			expected: []*wasm.Instruction{
				{Opcode: wasm.OpcodeI32Const, Imm: []byte{0x01}},
				{Opcode: wasm.OpcodeI64Const, Imm: []byte{0x7f}},
				{Opcode: wasm.OpcodeF32Const, Imm: []byte{0x00, 0x00, 0x80, 0x3f}},
				{Opcode: wasm.OpcodeI32Add, Imm: []byte{}},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
			},
		},
		{
			name: "control flow with labels",
			body: []byte{
				wasm.OpcodeBlock, 0x40,
				wasm.OpcodeLoop, 0x40,
				wasm.OpcodeBr, 0x01,
				wasm.OpcodeBrIf, 0x00,
				wasm.OpcodeEnd,
				wasm.OpcodeEnd,
				wasm.OpcodeEnd,
			},
			expected: []*wasm.Instruction{
				{Opcode: wasm.OpcodeBlock, Imm: []byte{0x40}},
				{Opcode: wasm.OpcodeLoop, Imm: []byte{0x40}},
				{Opcode: wasm.OpcodeBr, Imm: []byte{0x01}, Label: 1},
				{Opcode: wasm.OpcodeBrIf, Imm: []byte{0x00}, Label: 0},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
			},
		},
		{
			name: "br_table",
			body: []byte{
				wasm.OpcodeBrTable, 0x02, 0x01, 0x00, 0x03,
				wasm.OpcodeEnd,
			},
			expected: []*wasm.Instruction{
				{
					Opcode:  wasm.OpcodeBrTable,
					Imm:     []byte{0x02, 0x01, 0x00, 0x03},
					Targets: []wasm.Index{1, 0},
					Default: 3,
				},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
			},
		},
		{
			name: "calls",
			body: []byte{
				wasm.OpcodeCall, 0x0a,
				wasm.OpcodeCallIndirect, 0x02, 0x00,
				wasm.OpcodeEnd,
			},
			expected: []*wasm.Instruction{
				{Opcode: wasm.OpcodeCall, Imm: []byte{0x0a}, FuncIndex: 10},
				{Opcode: wasm.OpcodeCallIndirect, Imm: []byte{0x02, 0x00}},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
			},
		},
		{
			name: "memory access",
			body: []byte{
				wasm.OpcodeLocalGet, 0x00,
				wasm.OpcodeI32Load, 0x02, 0x08,
				wasm.OpcodeI32Store, 0x02, 0x00,
				wasm.OpcodeMemorySize, 0x00,
				wasm.OpcodeMemoryGrow, 0x00,
				wasm.OpcodeEnd,
			},
			expected: []*wasm.Instruction{
				{Opcode: wasm.OpcodeLocalGet, Imm: []byte{0x00}},
				{Opcode: wasm.OpcodeI32Load, Imm: []byte{0x02, 0x08}},
				{Opcode: wasm.OpcodeI32Store, Imm: []byte{0x02, 0x00}},
				{Opcode: wasm.OpcodeMemorySize, Imm: []byte{0x00}},
				{Opcode: wasm.OpcodeMemoryGrow, Imm: []byte{0x00}},
				{Opcode: wasm.OpcodeEnd, Imm: []byte{}},
			},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			instrs, err := DecodeInstructions(tc.body)
			require.NoError(t, err)
			require.Equal(t, tc.expected, instrs)

			// re-encoding is byte exact
			require.Equal(t, tc.body, EncodeInstructions(instrs))
		})
	}
}

func TestDecodeInstructions_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		expectedErr error
	}{
		{
			name:        "unknown opcode",
			body:        []byte{0xc0, wasm.OpcodeEnd},
			expectedErr: wasm.ErrUnknownOpcode,
		},
		{
			name:        "reserved opcode",
			body:        []byte{0x06, wasm.OpcodeEnd},
			expectedErr: wasm.ErrUnknownOpcode,
		},
		{
			name:        "invalid block type",
			body:        []byte{wasm.OpcodeBlock, 0x55, wasm.OpcodeEnd},
			expectedErr: wasm.ErrInvalidByte,
		},
		{
			name:        "nonzero table index on call_indirect",
			body:        []byte{wasm.OpcodeCallIndirect, 0x00, 0x01, wasm.OpcodeEnd},
			expectedErr: wasm.ErrInvalidByte,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInstructions(tc.body)
			require.ErrorIs(t, err, tc.expectedErr)
		})
	}
}
