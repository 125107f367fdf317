package gas

// DefaultGasSymbol is the name the accounting function is exported or imported under.
const DefaultGasSymbol = "__instrumented_use_gas"

// DefaultGasImportModule is the module namespace used when the accounting function is imported.
const DefaultGasImportModule = "env"

// GasTransferKind selects how the instrumented module hands gas charges to the host.
type GasTransferKind int

const (
	// GasTransferByExport appends a local accounting function with a no-op body and exports it.
	// The hosting engine intercepts calls to the export and tracks the budget itself.
	GasTransferByExport GasTransferKind = iota

	// GasTransferByImport binds the accounting function as a host import instead. Adding an
	// import shifts the function index namespace, so every function index reference in the
	// module is renumbered.
	GasTransferByImport
)

type config struct {
	symbol       string
	importModule string
	transfer     GasTransferKind
	gasFnCost    uint64
}

func defaultConfig() *config {
	return &config{
		symbol:       DefaultGasSymbol,
		importModule: DefaultGasImportModule,
		transfer:     GasTransferByExport,
		// The default accounting function body is empty, so its cost is self-accounted.
		gasFnCost: 0,
	}
}

// Option adjusts how Inject binds the accounting function.
type Option func(*config)

// WithGasSymbol overrides the export or import name of the accounting function.
func WithGasSymbol(symbol string) Option {
	return func(c *config) {
		c.symbol = symbol
	}
}

// WithGasTransfer selects the binding discipline for the accounting function.
func WithGasTransfer(kind GasTransferKind) Option {
	return func(c *config) {
		c.transfer = kind
	}
}

// WithGasImportModule overrides the module namespace of the accounting import. It has no effect
// under GasTransferByExport.
func WithGasImportModule(module string) Option {
	return func(c *config) {
		c.importModule = module
	}
}
