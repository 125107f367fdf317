package gas

import (
	"fmt"
	"math"

	"github.com/zenvm/wasm-gas/wasm"
	"github.com/zenvm/wasm-gas/wasm/binary"
)

// Inject transforms a module into one that tracks the gas charged during its execution.
//
// The output module reports the gas spent through an accounting function taking the amount of gas
// required to continue execution as its sole i64 argument. Depending on the configured
// GasTransferKind the function is either a module-local no-op that the host intercepts via its
// export, or a host import. The execution engine is meant to keep a running total and halt the
// program once it exceeds the allowed limit.
//
// The body of every function in the module is divided into metered blocks, and calls to the
// accounting function are inserted at the beginning of each. A metered block is defined so that,
// unless there is a trap, either all of its instructions execute or none do. These are similar to
// basic blocks in a control flow graph, except that multiple basic blocks merge into a single
// metered block when every path through one also passes through the other. Charging at the start
// of each metered block means all executed instructions are already paid for, unexecuted ones are
// not charged unless a trap occurs, and the number of accounting calls is minimal.
//
// Additionally, when the rules put a price on memory growth, every memory.grow is rewritten into
// a call to a synthesized helper that first charges for the requested pages. This cannot be part
// of the block charge because the page count is a stack operand.
//
// Inject never mutates its input: on error the caller keeps the original module untouched, and on
// success a new module is returned. It runs in time linear in the size of the input.
func Inject(mod *wasm.Module, rules Rules, opts ...Option) (*wasm.Module, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	functionsSpace := mod.FunctionsSpace()
	out := cloneModule(mod)

	var gasIdx wasm.Index
	switch cfg.transfer {
	case GasTransferByExport:
		gasIdx = functionsSpace
	case GasTransferByImport:
		gasIdx = mod.ImportFuncCount()
		// The import takes over the first module-defined index, shifting everything after it.
		shiftFunctionIndices(out, gasIdx)
	default:
		return nil, fmt.Errorf("unknown gas transfer kind: %d", cfg.transfer)
	}

	// The synthesized growth helper, if needed, lands right after the accounting function.
	totalFunc := functionsSpace + 1

	growCost := rules.MemoryGrowCost()
	var needGrowCounter bool
	for i, code := range out.CodeSection {
		instrumented, usedGrow, err := instrumentCode(code, rules, cfg, gasIdx, totalFunc, cfg.transfer == GasTransferByImport)
		if err != nil {
			return nil, fmt.Errorf("function[%d]: %w", i, err)
		}
		out.CodeSection[i] = instrumented
		needGrowCounter = needGrowCounter || usedGrow
	}

	gasType := typeIndex(out, []wasm.ValueType{wasm.ValueTypeI64}, nil)
	switch cfg.transfer {
	case GasTransferByExport:
		out.FunctionSection = append(out.FunctionSection, gasType)
		out.CodeSection = append(out.CodeSection, &wasm.Code{Body: []byte{wasm.OpcodeEnd}})
		if existing, ok := out.ExportSection[cfg.symbol]; ok {
			return nil, fmt.Errorf("%s export %q already exists", wasm.ExportKindName(existing.Kind), cfg.symbol)
		}
		if out.ExportSection == nil {
			out.ExportSection = map[string]*wasm.Export{}
		}
		out.ExportSection[cfg.symbol] = &wasm.Export{
			Kind:  wasm.ExportKindFunc,
			Name:  cfg.symbol,
			Index: gasIdx,
		}
	case GasTransferByImport:
		out.ImportSection = append(out.ImportSection, &wasm.Import{
			Kind:     wasm.ImportKindFunc,
			Module:   cfg.importModule,
			Name:     cfg.symbol,
			DescFunc: gasType,
		})
	}

	if needGrowCounter {
		appendGrowCounter(out, uint32(growCost), gasIdx)
	}
	return out, nil
}

// instrumentCode rewrites one function body: renumbers calls when an import shifted the index
// namespace, injects the metering calls, and redirects memory.grow to the growth helper.
func instrumentCode(code *wasm.Code, rules Rules, cfg *config, gasIdx, growFunc wasm.Index, shifted bool) (*wasm.Code, bool, error) {
	instrs, err := binary.DecodeInstructions(code.Body)
	if err != nil {
		return nil, false, err
	}

	if shifted {
		for i, instr := range instrs {
			if instr.Opcode == wasm.OpcodeCall && instr.FuncIndex >= gasIdx {
				instrs[i] = wasm.NewCall(instr.FuncIndex + 1)
			}
		}
	}

	blocks, err := DetermineMeteredBlocks(instrs, rules, uint32(len(code.LocalTypes)))
	if err != nil {
		return nil, false, err
	}

	instrs, err = insertMeteringCalls(instrs, cfg.gasFnCost, blocks, gasIdx)
	if err != nil {
		return nil, false, err
	}

	var usedGrow bool
	if rules.MemoryGrowCost().Enabled() {
		for i, instr := range instrs {
			if instr.Opcode == wasm.OpcodeMemoryGrow {
				instrs[i] = wasm.NewCall(growFunc)
				usedGrow = true
			}
		}
	}

	return &wasm.Code{
		LocalTypes: code.LocalTypes,
		Body:       binary.EncodeInstructions(instrs),
	}, usedGrow, nil
}

// insertMeteringCalls prefixes each metered block with a charge: i64.const of the block cost plus
// the accounting function's own cost, followed by a call to the accounting function. Blocks must
// be ordered by start position. This is a single linear merge pass over the instructions.
func insertMeteringCalls(instrs []*wasm.Instruction, gasFnCost uint64, blocks []MeteredBlock, gasIdx wasm.Index) ([]*wasm.Instruction, error) {
	result := make([]*wasm.Instruction, 0, len(instrs)+2*len(blocks))

	next := 0
	for pos, instr := range instrs {
		if next < len(blocks) && blocks[next].StartPos == pos {
			charge := blocks[next].Cost + gasFnCost
			if charge < blocks[next].Cost || charge > math.MaxInt64 {
				return nil, ErrCostOverflow
			}
			result = append(result, wasm.NewI64Const(int64(charge)), wasm.NewCall(gasIdx))
			next++
		}
		result = append(result, instr)
	}

	if next != len(blocks) {
		return nil, fmt.Errorf("%w: %d of %d", ErrUnconsumedBlocks, len(blocks)-next, len(blocks))
	}
	return result, nil
}

// appendGrowCounter adds the (i32)->i32 growth helper: charge perPage gas for every requested
// page, then perform the grow itself.
func appendGrowCounter(m *wasm.Module, perPage uint32, gasIdx wasm.Index) {
	body := []*wasm.Instruction{
		wasm.NewLocalGet(0),
		wasm.NewLocalGet(0),
		{Opcode: wasm.OpcodeI64ExtendI32U},
		wasm.NewI64Const(int64(perPage)),
		{Opcode: wasm.OpcodeI64Mul},
		wasm.NewCall(gasIdx),
		wasm.NewMemoryGrow(),
		{Opcode: wasm.OpcodeEnd},
	}

	m.FunctionSection = append(m.FunctionSection, typeIndex(m, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32}))
	m.CodeSection = append(m.CodeSection, &wasm.Code{Body: binary.EncodeInstructions(body)})
}

// typeIndex returns the index of the function type with the given signature, appending it to the
// type section when absent.
func typeIndex(m *wasm.Module, params, results []wasm.ValueType) wasm.Index {
	for i, t := range m.TypeSection {
		if t.EqualsSignature(params, results) {
			return wasm.Index(i)
		}
	}
	m.TypeSection = append(m.TypeSection, &wasm.FunctionType{Params: params, Results: results})
	return wasm.Index(len(m.TypeSection) - 1)
}

// shiftFunctionIndices renumbers every function index reference at or above from by one:
// exports, element segment initializers, the start section and the name section. Call immediates
// inside function bodies are handled separately by instrumentCode.
func shiftFunctionIndices(m *wasm.Module, from wasm.Index) {
	for _, exp := range m.ExportSection {
		if exp.Kind == wasm.ExportKindFunc && exp.Index >= from {
			exp.Index++
		}
	}
	for _, elem := range m.ElementSection {
		for i, funcIdx := range elem.Init {
			if funcIdx >= from {
				elem.Init[i] = funcIdx + 1
			}
		}
	}
	if m.StartSection != nil && *m.StartSection >= from {
		*m.StartSection++
	}
	if n := m.NameSection; n != nil {
		for _, na := range n.FunctionNames {
			if na.Index >= from {
				na.Index++
			}
		}
		for _, nma := range n.LocalNames {
			if nma.Index >= from {
				nma.Index++
			}
		}
	}
}

// cloneModule copies the module deeply enough that Inject can rewrite sections without the caller
// observing any change through the original.
func cloneModule(m *wasm.Module) *wasm.Module {
	out := *m

	out.TypeSection = append([]*wasm.FunctionType(nil), m.TypeSection...)
	out.FunctionSection = append([]wasm.Index(nil), m.FunctionSection...)
	out.CodeSection = append([]*wasm.Code(nil), m.CodeSection...)

	if m.ImportSection != nil {
		out.ImportSection = make([]*wasm.Import, len(m.ImportSection))
		for i, imp := range m.ImportSection {
			impCopy := *imp
			out.ImportSection[i] = &impCopy
		}
	}
	if m.ExportSection != nil {
		out.ExportSection = make(map[string]*wasm.Export, len(m.ExportSection))
		for name, exp := range m.ExportSection {
			expCopy := *exp
			out.ExportSection[name] = &expCopy
		}
	}
	if m.ElementSection != nil {
		out.ElementSection = make([]*wasm.ElementSegment, len(m.ElementSection))
		for i, elem := range m.ElementSection {
			elemCopy := *elem
			elemCopy.Init = append([]wasm.Index(nil), elem.Init...)
			out.ElementSection[i] = &elemCopy
		}
	}
	if m.StartSection != nil {
		start := *m.StartSection
		out.StartSection = &start
	}
	if m.NameSection != nil {
		ns := &wasm.NameSection{ModuleName: m.NameSection.ModuleName}
		for _, na := range m.NameSection.FunctionNames {
			naCopy := *na
			ns.FunctionNames = append(ns.FunctionNames, &naCopy)
		}
		for _, nma := range m.NameSection.LocalNames {
			nmaCopy := *nma
			nmaCopy.NameMap = append(wasm.NameMap(nil), nma.NameMap...)
			ns.LocalNames = append(ns.LocalNames, &nmaCopy)
		}
		out.NameSection = ns
	}
	return &out
}
