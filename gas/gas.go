// Package gas instruments WebAssembly modules with gas metering code.
//
// The pass is a pure bytecode transform: it decodes a module, divides every function body into
// metered blocks, inserts a charge for each block's static cost at its first instruction, and
// hands the charges to the host through a single accounting function. See Inject for the
// algorithm and Rules for pricing.
package gas

import (
	"github.com/zenvm/wasm-gas/wasm/binary"
)

// TransformDefault instruments a binary-encoded module with a flat instruction cost of 1,
// memory growth metered at 8192 gas per page, and a per-local call surcharge of 1.
func TransformDefault(code []byte) ([]byte, error) {
	return TransformWithRules(code, NewConstantCostRules(1, 8192, 1))
}

// TransformWithRules decodes a binary-encoded module, injects gas metering under the given rules
// and re-encodes it. The input slice is never modified, so on error the caller keeps the
// original bytes.
func TransformWithRules(code []byte, rules Rules, opts ...Option) ([]byte, error) {
	mod, err := binary.DecodeModule(code)
	if err != nil {
		return nil, err
	}

	injected, err := Inject(mod, rules, opts...)
	if err != nil {
		return nil, err
	}
	return binary.EncodeModule(injected), nil
}
