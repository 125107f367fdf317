package gas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenvm/wasm-gas/wasm"
)

// opcodeCostRules prices only the listed opcodes, making everything else forbidden.
type opcodeCostRules map[wasm.Opcode]uint32

func (r opcodeCostRules) InstructionCost(instr *wasm.Instruction) (uint32, bool) {
	cost, ok := r[instr.Opcode]
	return cost, ok
}

func (r opcodeCostRules) MemoryGrowCost() MemoryGrowCost { return 0 }
func (r opcodeCostRules) CallPerLocalCost() uint32       { return 1 }

func op(opcode wasm.Opcode) *wasm.Instruction {
	return &wasm.Instruction{Opcode: opcode}
}

func br(label wasm.Index) *wasm.Instruction {
	return &wasm.Instruction{Opcode: wasm.OpcodeBr, Label: label}
}

func brIf(label wasm.Index) *wasm.Instruction {
	return &wasm.Instruction{Opcode: wasm.OpcodeBrIf, Label: label}
}

func TestDetermineMeteredBlocks(t *testing.T) {
	unit := NewConstantCostRules(1, 0, 1)

	tests := []struct {
		name     string
		instrs   []*wasm.Instruction
		expected []MeteredBlock
	}{
		{
			name: "straight line",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeI32Const), op(wasm.OpcodeI32Const), op(wasm.OpcodeI32Add), op(wasm.OpcodeDrop),
			},
			expected: []MeteredBlock{{StartPos: 0, Cost: 4}},
		},
		{
			name: "conditional branch splits at its successor",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeBlock), op(wasm.OpcodeI32Const), brIf(0), op(wasm.OpcodeI32Const), op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{{StartPos: 0, Cost: 3}, {StartPos: 3, Cost: 2}},
		},
		{
			name: "block without branches merges into one charge",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeBlock), op(wasm.OpcodeI32Const), op(wasm.OpcodeEnd), op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{{StartPos: 0, Cost: 4}},
		},
		{
			name: "loop with backward branch",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeLoop), op(wasm.OpcodeI32Const), br(0), op(wasm.OpcodeEnd), op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{
				{StartPos: 0, Cost: 2},
				{StartPos: 1, Cost: 2},
				{StartPos: 3, Cost: 1},
			},
		},
		{
			name: "if else arms are metered separately",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeIf), op(wasm.OpcodeI32Const), op(wasm.OpcodeElse), op(wasm.OpcodeI32Const), op(wasm.OpcodeEnd), op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{
				{StartPos: 0, Cost: 2},
				{StartPos: 1, Cost: 2},
				{StartPos: 3, Cost: 2},
			},
		},
		{
			name: "branch across two levels finalizes the outer block",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeBlock), op(wasm.OpcodeBlock), br(1), op(wasm.OpcodeEnd), op(wasm.OpcodeI32Const), op(wasm.OpcodeEnd), op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{
				{StartPos: 0, Cost: 4},
				{StartPos: 3, Cost: 1},
				{StartPos: 4, Cost: 2},
			},
		},
		{
			name: "return splits the function block",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeI32Const), op(wasm.OpcodeReturn), op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{
				{StartPos: 0, Cost: 2},
				{StartPos: 2, Cost: 1},
			},
		},
		{
			name: "br_table forces a split",
			instrs: []*wasm.Instruction{
				op(wasm.OpcodeBlock),
				op(wasm.OpcodeI32Const),
				{Opcode: wasm.OpcodeBrTable, Targets: []wasm.Index{0}, Default: 0},
				op(wasm.OpcodeEnd),
				op(wasm.OpcodeEnd),
			},
			expected: []MeteredBlock{
				{StartPos: 0, Cost: 4},
				{StartPos: 3, Cost: 1},
			},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			blocks, err := DetermineMeteredBlocks(tc.instrs, unit, 0)
			require.NoError(t, err)
			require.Equal(t, tc.expected, blocks)

			// metered blocks never overlap
			end := -1
			for _, b := range blocks {
				require.Greater(t, b.StartPos, end)
				end = b.StartPos
			}
		})
	}
}

func TestDetermineMeteredBlocks_LocalsCost(t *testing.T) {
	instrs := []*wasm.Instruction{op(wasm.OpcodeI32Const), op(wasm.OpcodeEnd)}

	rules := NewConstantCostRules(1, 0, 3)
	blocks, err := DetermineMeteredBlocks(instrs, rules, 4)
	require.NoError(t, err)

	// 2 instructions plus 4 locals at 3 each
	require.Equal(t, []MeteredBlock{{StartPos: 0, Cost: 14}}, blocks)
}

func TestDetermineMeteredBlocks_UnpricedInstruction(t *testing.T) {
	rules := opcodeCostRules{wasm.OpcodeI32Const: 1}

	instrs := []*wasm.Instruction{op(wasm.OpcodeI32Const), op(wasm.OpcodeI32Add), op(wasm.OpcodeEnd)}
	_, err := DetermineMeteredBlocks(instrs, rules, 0)
	require.ErrorIs(t, err, ErrUnpricedInstruction)
}

func TestCounter_IncrementOverflow(t *testing.T) {
	c := &counter{}
	c.beginControlBlock(0, false)

	require.NoError(t, c.increment(math.MaxUint64))
	require.ErrorIs(t, c.increment(1), ErrCostOverflow)
}

func TestCounter_MergeOverflow(t *testing.T) {
	// a block opened at the same position as the enclosing active block merges its cost upward
	c := &counter{}
	c.beginControlBlock(0, false)
	require.NoError(t, c.increment(math.MaxUint64))

	c.beginControlBlock(0, false)
	require.NoError(t, c.increment(1))

	require.ErrorIs(t, c.finalizeMeteredBlock(1), ErrCostOverflow)
}

func TestDetermineMeteredBlocks_BranchUnderflow(t *testing.T) {
	unit := NewConstantCostRules(1, 0, 1)

	instrs := []*wasm.Instruction{br(5), op(wasm.OpcodeEnd)}
	_, err := DetermineMeteredBlocks(instrs, unit, 0)
	require.ErrorIs(t, err, ErrStackUnderflow)
}
