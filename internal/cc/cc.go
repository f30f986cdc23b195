// Package cc implements the Ripple VM's calling convention: a stateless
// set of rules for marshalling arguments into registers and the stack,
// and the function Frame that generates prologue/epilogue/call
// sequences from it. Spec.md section 4.3.
//
// Grounded on the original backend's codegen::abi (rcc-codegen/src/abi.rs).
package cc

import (
	"github.com/pkg/errors"

	"ripplecc/internal/asm"
)

// MaxRegParams is the number of argument slots passed in registers
// before the rest spill to the stack.
const MaxRegParams = 4

// ParamRegs are the registers argument slots 0..MaxRegParams-1 occupy.
var ParamRegs = [MaxRegParams]asm.Reg{asm.A0, asm.A1, asm.A2, asm.A3}

// CalleeSaved mirrors asm.CalleeSaved; kept as its own name here so
// callers of this package do not need to import asm just for this list.
var CalleeSaved = asm.CalleeSaved

// ParamReg returns the register for register-passed argument slot index.
func ParamReg(index int) (asm.Reg, error) {
	if index >= MaxRegParams {
		return 0, errors.Wrapf(ErrTooManyParameters, "slot %d (max %d)", index, MaxRegParams)
	}
	return ParamRegs[index], nil
}

// Slot describes where one argument slot (a scalar word, or one half of
// a fat pointer) lives after marshalling.
type Slot struct {
	InRegister bool
	Reg        asm.Reg
	StackIndex int // Valid when !InRegister: position among stack-passed slots, 0-based.
}

// ArgPlan is the result of marshalling a function call's argument list.
// Each IR argument maps to either one slot (scalar) or two consecutive
// slots (fat pointer: address then bank), per spec.md section 4.3's
// atomic-or-spill rule: a fat pointer is never split across the
// register/stack boundary — if both halves don't fit in the four
// register slots, BOTH halves go to the stack, and every later argument
// cascades to the stack with them.
type ArgPlan struct {
	Slots      [][]Slot // Per-argument list of 1 or 2 slots.
	StackWords int      // Total words the caller must push for stack-passed slots.
}

// PlanArgs assigns isFatPtr[i] (true if argument i is a fat pointer,
// consuming two slots) to registers A0-A3 and, once those are exhausted,
// sequential stack words.
func PlanArgs(isFatPtr []bool) ArgPlan {
	plan := ArgPlan{Slots: make([][]Slot, len(isFatPtr))}
	nextReg := 0
	nextStack := 0

	for i, fat := range isFatPtr {
		width := 1
		if fat {
			width = 2
		}

		fitsInRegs := nextReg+width <= MaxRegParams && nextStack == 0
		var slots []Slot
		if fitsInRegs {
			for w := 0; w < width; w++ {
				slots = append(slots, Slot{InRegister: true, Reg: ParamRegs[nextReg]})
				nextReg++
			}
		} else {
			for w := 0; w < width; w++ {
				slots = append(slots, Slot{InRegister: false, StackIndex: nextStack})
				nextStack++
			}
		}
		plan.Slots[i] = slots
	}

	plan.StackWords = nextStack
	return plan
}

// StackArgOffset returns the FP-relative word offset of the stack-passed
// argument at stackIndex, per spec.md section 4.3: stack args sit at
// FP-3-k for k = 0, 1, 2, ... below the saved FP/RA/RAB triple. The worked
// examples elsewhere (FP-7, FP-8, FP-9 for the first few stack args) start
// from this same FP-3 baseline but additionally push any callee-saved
// registers the frame spills below FP before the stack args begin; this
// function returns the offset relative to the fixed RA/RAB/FP triple only,
// and callers in frames with callee-saved spills must add that frame's
// callee-saved word count on top.
func StackArgOffset(stackIndex int) int16 {
	return int16(-3 - stackIndex)
}
