package gas

import "errors"

var (
	// ErrUnpricedInstruction means the rule set returned no cost for an instruction. A partial rule
	// set treats unlisted instructions as forbidden, so instrumentation stops rather than guessing.
	ErrUnpricedInstruction = errors.New("instruction has no cost rule")

	// ErrStackUnderflow means a branch label or end had no matching open control block. The input
	// is structurally corrupt.
	ErrStackUnderflow = errors.New("control stack underflow")

	// ErrCostOverflow means an accumulated block cost exceeded the representable range.
	ErrCostOverflow = errors.New("block cost overflow")

	// ErrUnconsumedBlocks means the analyzer produced a metered block whose start position the
	// injector never reached. This indicates a bug, not bad input.
	ErrUnconsumedBlocks = errors.New("metered blocks left unconsumed")
)
