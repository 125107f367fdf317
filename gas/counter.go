package gas

import (
	"fmt"
	"sort"

	"github.com/zenvm/wasm-gas/wasm"
)

// MeteredBlock is a run of instructions that a single charge, inserted at its first instruction,
// pays for. Metered blocks are constructed with the property that, in the absence of any traps,
// either all instructions in the block execute or none do.
type MeteredBlock struct {
	// StartPos is the index of the first instruction in the block.
	StartPos int
	// Cost is the sum of costs of all instructions until the end of the block.
	Cost uint64
}

// controlBlock is an analysis-time frame for one open structured construct. A control block is
// opened with block, loop or if and closed with end. Each implicitly defines a new label, and the
// open blocks form a stack during program execution.
type controlBlock struct {
	// lowestForwardBrTarget is the lowest control stack index targeted by a forward jump (br,
	// br_if or br_table) within this control block. The target must not be a loop, since branches
	// to loops jump backward. Given how control flow is structured, the lowest index on the stack
	// is the furthest forward branch target.
	//
	// This value is always at most the index of the block itself, even when no branch targets
	// this control block. That does not affect how the value is used in the metering algorithm.
	lowestForwardBrTarget int

	// activeMeteredBlock is the metered block that new instructions contribute their cost to.
	activeMeteredBlock MeteredBlock

	// isLoop marks a loop construct. Branches to a loop jump to the beginning of the block, not
	// past the end as with the other control blocks.
	isLoop bool
}

// counter manages state during the metered block analysis.
type counter struct {
	// stack of open control blocks. It grows when control blocks open with block, loop and if,
	// and shrinks when they close with end. The first entry corresponds to the function body
	// itself, not to any labelled block, so the Wasm label index of each control block is one
	// less than its stack position.
	stack []controlBlock

	// finalizedBlocks are metered blocks whose cost will no longer change.
	finalizedBlocks []MeteredBlock
}

// beginControlBlock opens a new control block. The cursor is the position of the first
// instruction in the block.
func (c *counter) beginControlBlock(cursor int, isLoop bool) {
	c.stack = append(c.stack, controlBlock{
		lowestForwardBrTarget: len(c.stack),
		activeMeteredBlock:    MeteredBlock{StartPos: cursor},
		isLoop:                isLoop,
	})
}

// finalizeControlBlock closes the top control block. The cursor is the position of the final
// (pseudo-)instruction in the block.
func (c *counter) finalizeControlBlock(cursor int) error {
	// This either finalizes the active metered block or merges its cost into the active metered
	// block of the previous control block on the stack.
	if err := c.finalizeMeteredBlock(cursor); err != nil {
		return err
	}

	if len(c.stack) == 0 {
		return ErrStackUnderflow
	}
	closing := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	closingIndex := len(c.stack)

	if len(c.stack) == 0 {
		return nil
	}

	top := &c.stack[len(c.stack)-1]
	if closing.lowestForwardBrTarget < top.lowestForwardBrTarget {
		top.lowestForwardBrTarget = closing.lowestForwardBrTarget
	}

	// If a branch may jump past the closing block, the instruction after it starts a new basic
	// block, so the enclosing active metered block must be finalized as well.
	if closing.lowestForwardBrTarget < closingIndex {
		return c.finalizeMeteredBlock(cursor)
	}
	return nil
}

// finalizeMeteredBlock closes the top control block's active metered block and opens a fresh one
// at cursor+1. Finalized blocks have a final cost that will not change later.
func (c *counter) finalizeMeteredBlock(cursor int) error {
	if len(c.stack) == 0 {
		return ErrStackUnderflow
	}
	top := &c.stack[len(c.stack)-1]
	closing := top.activeMeteredBlock
	top.activeMeteredBlock = MeteredBlock{StartPos: cursor + 1}

	// A block opened with `block` starts its metered block at the same position as the enclosing
	// active one, because the instructions between the `block` and the first branch belong to the
	// same basic block as the preceding instructions. In that case merge the cost upward instead
	// of finalizing, to avoid injecting an unnecessary charge.
	if n := len(c.stack); n > 1 {
		prev := &c.stack[n-2].activeMeteredBlock
		if closing.StartPos == prev.StartPos {
			sum := prev.Cost + closing.Cost
			if sum < prev.Cost {
				return ErrCostOverflow
			}
			prev.Cost = sum
			return nil
		}
	}

	if closing.Cost > 0 {
		c.finalizedBlocks = append(c.finalizedBlocks, closing)
	}
	return nil
}

// branch handles a branch instruction at cursor. The indices are the stack positions of the
// target control blocks: 0 for a return, and activeIndex-label for br, br_if and br_table.
func (c *counter) branch(cursor int, indices []int) error {
	if err := c.finalizeMeteredBlock(cursor); err != nil {
		return err
	}

	for _, index := range indices {
		if index < 0 || index >= len(c.stack) {
			return ErrStackUnderflow
		}
		// Branches to a loop jump backward, so they do not constrain metered blocks after the
		// loop ends.
		if c.stack[index].isLoop {
			continue
		}
		top := &c.stack[len(c.stack)-1]
		if index < top.lowestForwardBrTarget {
			top.lowestForwardBrTarget = index
		}
	}
	return nil
}

// increment adds cost to the active metered block.
func (c *counter) increment(cost uint64) error {
	if len(c.stack) == 0 {
		return ErrStackUnderflow
	}
	active := &c.stack[len(c.stack)-1].activeMeteredBlock
	sum := active.Cost + cost
	if sum < active.Cost {
		return ErrCostOverflow
	}
	active.Cost = sum
	return nil
}

// DetermineMeteredBlocks divides a function body into metered blocks, returning them ordered by
// start position. Every instruction must have a cost under the given rules, or the analysis fails
// with ErrUnpricedInstruction.
//
// localsCount is the number of locals the function declares; their initialization is charged to
// the block at position 0 using Rules.CallPerLocalCost.
func DetermineMeteredBlocks(instructions []*wasm.Instruction, rules Rules, localsCount uint32) ([]MeteredBlock, error) {
	c := &counter{}

	// Begin an implicit function (i.e. `func...end`) block.
	c.beginControlBlock(0, false)
	if err := c.increment(uint64(rules.CallPerLocalCost()) * uint64(localsCount)); err != nil {
		return nil, err
	}

	for cursor, instr := range instructions {
		cost, priced := rules.InstructionCost(instr)
		if !priced {
			return nil, fmt.Errorf("%w: %s at %d", ErrUnpricedInstruction, instr.Name(), cursor)
		}

		var err error
		switch instr.Opcode {
		case wasm.OpcodeBlock:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			// Open a new control block whose metered block starts where the enclosing active one
			// does, signalling the two should merge: the instructions up to the first branch are
			// in the same basic block as those preceding the `block`.
			start := c.stack[len(c.stack)-1].activeMeteredBlock.StartPos
			c.beginControlBlock(start, false)
		case wasm.OpcodeIf:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			c.beginControlBlock(cursor+1, false)
		case wasm.OpcodeLoop:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			c.beginControlBlock(cursor+1, true)
		case wasm.OpcodeEnd:
			// The end belongs to the block it closes, so charge it there before finalizing.
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			err = c.finalizeControlBlock(cursor)
		case wasm.OpcodeElse:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			err = c.finalizeMeteredBlock(cursor)
		case wasm.OpcodeBr, wasm.OpcodeBrIf:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			target := len(c.stack) - 1 - int(instr.Label)
			err = c.branch(cursor, []int{target})
		case wasm.OpcodeBrTable:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			activeIndex := len(c.stack) - 1
			targets := make([]int, 0, len(instr.Targets)+1)
			targets = append(targets, activeIndex-int(instr.Default))
			for _, label := range instr.Targets {
				targets = append(targets, activeIndex-int(label))
			}
			err = c.branch(cursor, targets)
		case wasm.OpcodeReturn:
			if err = c.increment(uint64(cost)); err != nil {
				return nil, err
			}
			err = c.branch(cursor, []int{0})
		default:
			// An ordinary non control flow instruction increments the cost of the current block.
			err = c.increment(uint64(cost))
		}
		if err != nil {
			return nil, fmt.Errorf("%s at %d: %w", instr.Name(), cursor, err)
		}
	}

	// A well-formed body closes every control block with its trailing end. Tolerate bodies
	// without one by draining whatever remains open.
	for len(c.stack) > 0 {
		if err := c.finalizeControlBlock(len(instructions) - 1); err != nil {
			return nil, err
		}
	}

	sort.Slice(c.finalizedBlocks, func(i, j int) bool {
		return c.finalizedBlocks[i].StartPos < c.finalizedBlocks[j].StartPos
	})
	return c.finalizedBlocks, nil
}
