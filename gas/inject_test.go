package gas

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/binary"
	"github.com/zenvm/wasm-gas/wasm/leb128"
)

func TestInject_ExportMode(t *testing.T) {
	i32, i64 := wasm.ValueTypeI32, wasm.ValueTypeI64

	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{Results: []wasm.ValueType{i32}}},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeI32Const, 0x01,
				wasm.OpcodeI32Const, 0x02,
				wasm.OpcodeI32Add,
				wasm.OpcodeEnd,
			}},
		},
		ExportSection: map[string]*wasm.Export{
			"answer": {Kind: wasm.ExportKindFunc, Name: "answer", Index: 0},
		},
	}

	out, err := Inject(mod, DefaultConstantCostRules())
	require.NoError(t, err)

	// the accounting function is appended with an (i64) -> () signature and exported
	require.Len(t, out.FunctionSection, 2)
	require.Len(t, out.TypeSection, 2)
	require.Equal(t, &wasm.FunctionType{Params: []wasm.ValueType{i64}}, out.TypeSection[out.FunctionSection[1]])
	require.Equal(t, []byte{wasm.OpcodeEnd}, out.CodeSection[1].Body)
	require.Equal(t,
		&wasm.Export{Kind: wasm.ExportKindFunc, Name: DefaultGasSymbol, Index: 1},
		out.ExportSection[DefaultGasSymbol])

	// one metered block covering the whole body, charged up front
	require.Equal(t, []byte{
		wasm.OpcodeI64Const, 0x04,
		wasm.OpcodeCall, 0x01,
		wasm.OpcodeI32Const, 0x01,
		wasm.OpcodeI32Const, 0x02,
		wasm.OpcodeI32Add,
		wasm.OpcodeEnd,
	}, out.CodeSection[0].Body)

	// the input module is untouched
	require.Len(t, mod.TypeSection, 1)
	require.Len(t, mod.FunctionSection, 1)
	require.NotContains(t, mod.ExportSection, DefaultGasSymbol)
	require.Equal(t, []byte{
		wasm.OpcodeI32Const, 0x01,
		wasm.OpcodeI32Const, 0x02,
		wasm.OpcodeI32Add,
		wasm.OpcodeEnd,
	}, mod.CodeSection[0].Body)
}

func TestInject_ReusesExistingGasType(t *testing.T) {
	i64 := wasm.ValueTypeI64

	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{i64}}},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
	}

	out, err := Inject(mod, DefaultConstantCostRules())
	require.NoError(t, err)

	require.Len(t, out.TypeSection, 1)
	require.Equal(t, wasm.Index(0), out.FunctionSection[1])
}

func TestInject_GrowCounter(t *testing.T) {
	i32 := wasm.ValueTypeI32

	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1}},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeLocalGet, 0x00,
				wasm.OpcodeMemoryGrow, 0x00,
				wasm.OpcodeEnd,
			}},
		},
	}

	out, err := Inject(mod, NewConstantCostRules(1, 100, 1))
	require.NoError(t, err)

	// gas function at index 1, grow helper at index 2
	require.Len(t, out.FunctionSection, 3)
	require.Len(t, out.CodeSection, 3)

	// the raw memory.grow is replaced by a call to the helper
	require.Equal(t, []byte{
		wasm.OpcodeI64Const, 0x03,
		wasm.OpcodeCall, 0x01,
		wasm.OpcodeLocalGet, 0x00,
		wasm.OpcodeCall, 0x02,
		wasm.OpcodeEnd,
	}, out.CodeSection[0].Body)

	// the helper reuses the module's (i32) -> i32 type, charges per page, then grows
	require.Equal(t, wasm.Index(0), out.FunctionSection[2])
	expectedHelper := binary.EncodeInstructions([]*wasm.Instruction{
		wasm.NewLocalGet(0),
		wasm.NewLocalGet(0),
		{Opcode: wasm.OpcodeI64ExtendI32U},
		wasm.NewI64Const(100),
		{Opcode: wasm.OpcodeI64Mul},
		wasm.NewCall(1),
		wasm.NewMemoryGrow(),
		{Opcode: wasm.OpcodeEnd},
	})
	require.Equal(t, expectedHelper, out.CodeSection[2].Body)
}

func TestInject_GrowFreeLeavesMemoryGrow(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1}},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeI32Const, 0x01,
				wasm.OpcodeMemoryGrow, 0x00,
				wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			}},
		},
	}

	out, err := Inject(mod, DefaultConstantCostRules())
	require.NoError(t, err)

	// no helper appended, memory.grow kept as is
	require.Len(t, out.FunctionSection, 2)
	require.Contains(t, string(out.CodeSection[0].Body), string([]byte{wasm.OpcodeMemoryGrow, 0x00}))
}

func TestInject_ImportMode(t *testing.T) {
	i64 := wasm.ValueTypeI64
	start := wasm.Index(1)

	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		ImportSection: []*wasm.Import{
			{Kind: wasm.ImportKindFunc, Module: "env", Name: "foo", DescFunc: 0},
		},
		TableSection: []*wasm.TableType{{ElemType: 0x70, Limit: &wasm.LimitsType{Min: 1}}},
		ElementSection: []*wasm.ElementSegment{
			{
				OffsetExpr: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}},
				Init:       []wasm.Index{1},
			},
		},
		StartSection: &start,
		ExportSection: map[string]*wasm.Export{
			"run": {Kind: wasm.ExportKindFunc, Name: "run", Index: 1},
		},
		NameSection: &wasm.NameSection{
			FunctionNames: wasm.NameMap{{Index: 0, Name: "foo"}, {Index: 1, Name: "run"}},
		},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeCall, 0x01, // itself
				wasm.OpcodeCall, 0x00, // the import
				wasm.OpcodeEnd,
			}},
		},
	}

	out, err := Inject(mod, DefaultConstantCostRules(), WithGasTransfer(GasTransferByImport))
	require.NoError(t, err)

	// the accounting import lands after the existing function imports, at index 1
	require.Len(t, out.ImportSection, 2)
	require.Equal(t, &wasm.Import{
		Kind:     wasm.ImportKindFunc,
		Module:   DefaultGasImportModule,
		Name:     DefaultGasSymbol,
		DescFunc: 1,
	}, out.ImportSection[1])
	require.Equal(t, &wasm.FunctionType{Params: []wasm.ValueType{i64}}, out.TypeSection[1])

	// every function index reference at or above the import shifts by one
	require.Equal(t, wasm.Index(2), out.ExportSection["run"].Index)
	require.Equal(t, []wasm.Index{2}, out.ElementSection[0].Init)
	require.Equal(t, wasm.Index(2), *out.StartSection)
	require.Equal(t, wasm.NameMap{{Index: 0, Name: "foo"}, {Index: 2, Name: "run"}}, out.NameSection.FunctionNames)

	// call immediates are renumbered and the charge targets the import
	require.Equal(t, []byte{
		wasm.OpcodeI64Const, 0x03,
		wasm.OpcodeCall, 0x01,
		wasm.OpcodeCall, 0x02,
		wasm.OpcodeCall, 0x00,
		wasm.OpcodeEnd,
	}, out.CodeSection[0].Body)

	// no export of the accounting function in import mode
	require.NotContains(t, out.ExportSection, DefaultGasSymbol)

	// the input module is untouched
	require.Equal(t, wasm.Index(1), mod.ExportSection["run"].Index)
	require.Equal(t, []wasm.Index{1}, mod.ElementSection[0].Init)
	require.Equal(t, wasm.Index(1), *mod.StartSection)
	require.Len(t, mod.ImportSection, 1)
}

func TestInject_FailClosed(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeI32Const, 0x01,
				wasm.OpcodeI32Const, 0x01,
				wasm.OpcodeI32Add,
				wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			}},
		},
	}
	before := binary.EncodeModule(mod)

	rules := opcodeCostRules{wasm.OpcodeI32Const: 1}
	_, err := Inject(mod, rules)
	require.ErrorIs(t, err, ErrUnpricedInstruction)

	// all or nothing: the input module is exactly as it was
	require.Equal(t, before, binary.EncodeModule(mod))
}

func TestInject_ExportNameConflict(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		ExportSection: map[string]*wasm.Export{
			DefaultGasSymbol: {Kind: wasm.ExportKindFunc, Name: DefaultGasSymbol, Index: 0},
		},
		CodeSection: []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
	}

	_, err := Inject(mod, DefaultConstantCostRules())
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("func export %q already exists", DefaultGasSymbol))
}

func TestInject_CustomSymbol(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
	}

	out, err := Inject(mod, DefaultConstantCostRules(), WithGasSymbol("use_gas"))
	require.NoError(t, err)

	require.Contains(t, out.ExportSection, "use_gas")
	require.NotContains(t, out.ExportSection, DefaultGasSymbol)
}

func TestInsertMeteringCalls_UnconsumedBlocks(t *testing.T) {
	instrs := []*wasm.Instruction{{Opcode: wasm.OpcodeEnd, Imm: []byte{}}}

	_, err := insertMeteringCalls(instrs, 0, []MeteredBlock{{StartPos: 99, Cost: 1}}, 0)
	require.ErrorIs(t, err, ErrUnconsumedBlocks)
}

func TestInsertMeteringCalls_CostOverflow(t *testing.T) {
	instrs := []*wasm.Instruction{{Opcode: wasm.OpcodeEnd, Imm: []byte{}}}

	tests := []struct {
		name      string
		cost      uint64
		gasFnCost uint64
	}{
		{
			name:      "charge sum wraps around",
			cost:      math.MaxUint64,
			gasFnCost: 1,
		},
		{
			name: "charge exceeds the i64 range",
			cost: math.MaxInt64 + 1,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := insertMeteringCalls(instrs, tc.gasFnCost, []MeteredBlock{{StartPos: 0, Cost: tc.cost}}, 0)
			require.ErrorIs(t, err, ErrCostOverflow)
		})
	}
}

func TestTransformWithRules(t *testing.T) {
	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		ExportSection: map[string]*wasm.Export{
			"run": {Kind: wasm.ExportKindFunc, Name: "run", Index: 0},
		},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeI32Const, 0x2a,
				wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			}},
		},
	}
	raw := binary.EncodeModule(mod)

	instrumented, err := TransformDefault(raw)
	require.NoError(t, err)

	// the output decodes and carries the accounting export
	decoded, err := binary.DecodeModule(instrumented)
	require.NoError(t, err)
	require.Contains(t, decoded.ExportSection, DefaultGasSymbol)

	// same input, same output
	again, err := TransformDefault(raw)
	require.NoError(t, err)
	require.Equal(t, instrumented, again)
}

func TestTransformDefault_MetersMemoryGrow(t *testing.T) {
	i32 := wasm.ValueTypeI32

	mod := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}},
		FunctionSection: []wasm.Index{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1}},
		CodeSection: []*wasm.Code{
			{Body: []byte{
				wasm.OpcodeLocalGet, 0x00,
				wasm.OpcodeMemoryGrow, 0x00,
				wasm.OpcodeEnd,
			}},
		},
	}
	raw := binary.EncodeModule(mod)

	instrumented, err := TransformDefault(raw)
	require.NoError(t, err)

	decoded, err := binary.DecodeModule(instrumented)
	require.NoError(t, err)

	// growth is metered out of the box: gas function at 1, growth helper at 2
	require.Len(t, decoded.FunctionSection, 3)
	require.Equal(t, []byte{
		wasm.OpcodeI64Const, 0x03,
		wasm.OpcodeCall, 0x01,
		wasm.OpcodeLocalGet, 0x00,
		wasm.OpcodeCall, 0x02,
		wasm.OpcodeEnd,
	}, decoded.CodeSection[0].Body)

	// the helper charges the default 8192 gas per page
	require.Contains(t,
		string(decoded.CodeSection[2].Body),
		string(append([]byte{wasm.OpcodeI64Const}, leb128.EncodeInt64(8192)...)))
}
