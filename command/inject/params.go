package inject

import (
	"strings"

	"github.com/zenvm/wasm-gas/gas"
)

const (
	costFlag           = "cost"
	memoryGrowCostFlag = "memory-grow-cost"
	callPerLocalFlag   = "call-per-local"
	gasSymbolFlag      = "gas-symbol"
	importGasFlag      = "import-gas"
	importModuleFlag   = "import-module"
	outputFlag         = "output"
)

var (
	params = &injectParams{}
)

type injectParams struct {
	cost           uint32
	memoryGrowCost uint32
	callPerLocal   uint32

	gasSymbol    string
	importGas    bool
	importModule string

	output string
}

func (p *injectParams) rules() gas.Rules {
	return gas.NewConstantCostRules(p.cost, p.memoryGrowCost, p.callPerLocal)
}

func (p *injectParams) options() []gas.Option {
	opts := []gas.Option{
		gas.WithGasSymbol(p.gasSymbol),
	}
	if p.importGas {
		opts = append(opts,
			gas.WithGasTransfer(gas.GasTransferByImport),
			gas.WithGasImportModule(p.importModule),
		)
	}
	return opts
}

// outputPath defaults to the input path with a .metered.wasm suffix.
func (p *injectParams) outputPath(input string) string {
	if p.output != "" {
		return p.output
	}
	return strings.TrimSuffix(input, ".wasm") + ".metered.wasm"
}
