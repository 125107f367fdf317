package gas

import (
	"github.com/zenvm/wasm-gas/wasm"
)

// Rules describes instruction costs.
type Rules interface {
	// InstructionCost returns the cost for the passed instruction.
	//
	// Returning false makes the instrumentation end with ErrUnpricedInstruction. This is meant as
	// a way to have a partial rule set where any instruction that is not specified is considered
	// as forbidden.
	InstructionCost(instr *wasm.Instruction) (uint32, bool)

	// MemoryGrowCost returns the cost for growing the memory using the memory.grow instruction.
	//
	// Note that this cost is in addition to the cost specified by InstructionCost for the
	// memory.grow instruction itself. It is a dynamic cost that takes the number of pages the
	// memory is grown by into consideration, which is impossible through InstructionCost because
	// the page count is a stack operand. It is therefore injected as code in front of every
	// memory.grow, so anything but a free cost adds some overhead to the instruction.
	MemoryGrowCost() MemoryGrowCost

	// CallPerLocalCost is a surcharge for calling a function, added per local of that function.
	CallPerLocalCost() uint32
}

// MemoryGrowCost is the dynamic cost for memory growth: the amount charged per page grown.
// The zero value is free, meaning no growth instrumentation is injected.
//
// Free makes sense when the number of pages a module may use is limited to a rather small number
// by static validation. In that case it is viable to benchmark memory.grow at its worst case
// and fold that into the flat instruction cost.
type MemoryGrowCost uint32

// LinearMemoryGrowCost returns a cost charging perPage for each page the memory is grown by.
func LinearMemoryGrowCost(perPage uint32) MemoryGrowCost {
	return MemoryGrowCost(perPage)
}

// Enabled returns true iff memory growth code needs to be injected.
func (c MemoryGrowCost) Enabled() bool {
	return c != 0
}

// ConstantCostRules implements Rules so that every instruction costs the same.
//
// This is a simplification that is mostly useful for development and testing. In a production
// environment it usually makes no sense to assign every instruction the same cost: a proper
// Rules implementation is probably created by benchmarking.
type ConstantCostRules struct {
	instructionCost  uint32
	memoryGrowCost   uint32
	callPerLocalCost uint32
}

// NewConstantCostRules uses instructionCost for every instruction and memoryGrowCost to
// dynamically meter the memory growth instruction. A zero memoryGrowCost disables growth
// instrumentation.
func NewConstantCostRules(instructionCost, memoryGrowCost, callPerLocalCost uint32) *ConstantCostRules {
	return &ConstantCostRules{
		instructionCost:  instructionCost,
		memoryGrowCost:   memoryGrowCost,
		callPerLocalCost: callPerLocalCost,
	}
}

// DefaultConstantCostRules uses an instruction cost of 1 and disables memory growth
// instrumentation.
func DefaultConstantCostRules() *ConstantCostRules {
	return NewConstantCostRules(1, 0, 1)
}

func (r *ConstantCostRules) InstructionCost(*wasm.Instruction) (uint32, bool) {
	return r.instructionCost, true
}

func (r *ConstantCostRules) MemoryGrowCost() MemoryGrowCost {
	return MemoryGrowCost(r.memoryGrowCost)
}

func (r *ConstantCostRules) CallPerLocalCost() uint32 {
	return r.callPerLocalCost
}
