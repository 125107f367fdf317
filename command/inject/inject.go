package inject

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/zenvm/wasm-gas/gas"
)

// GetCommand returns the inject command
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject <module.wasm>",
		Short: "Injects gas metering calls into a WebAssembly module",
		Args:  cobra.ExactArgs(1),
		RunE:  runCommand,
	}

	setFlags(cmd)

	return cmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(
		&params.cost,
		costFlag,
		1,
		"the gas cost charged for every instruction",
	)
	cmd.Flags().Uint32Var(
		&params.memoryGrowCost,
		memoryGrowCostFlag,
		0,
		"the gas cost charged per page on memory.grow (0 disables growth instrumentation)",
	)
	cmd.Flags().Uint32Var(
		&params.callPerLocal,
		callPerLocalFlag,
		1,
		"the gas surcharge per local when calling a function",
	)
	cmd.Flags().StringVar(
		&params.gasSymbol,
		gasSymbolFlag,
		gas.DefaultGasSymbol,
		"the name the gas accounting function is exported or imported under",
	)
	cmd.Flags().BoolVar(
		&params.importGas,
		importGasFlag,
		false,
		"bind the gas accounting function as a host import instead of a local export",
	)
	cmd.Flags().StringVar(
		&params.importModule,
		importModuleFlag,
		gas.DefaultGasImportModule,
		"the module namespace of the gas accounting import",
	)
	cmd.Flags().StringVarP(
		&params.output,
		outputFlag,
		"o",
		"",
		"path for the instrumented module (default: input with a .metered.wasm suffix)",
	)
}

func runCommand(cmd *cobra.Command, args []string) error {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "wasm-gas",
		Level: hclog.Info,
	})

	input := args[0]
	raw, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read module: %w", err)
	}

	instrumented, err := gas.TransformWithRules(raw, params.rules(), params.options()...)
	if err != nil {
		return fmt.Errorf("failed to instrument %s: %w", input, err)
	}

	output := params.outputPath(input)
	if err := os.WriteFile(output, instrumented, 0644); err != nil {
		return fmt.Errorf("failed to write instrumented module: %w", err)
	}

	logger.Info("module instrumented",
		"input", input,
		"output", output,
		"size", len(raw),
		"instrumentedSize", len(instrumented),
	)

	return nil
}
