package cc

import (
	"github.com/pkg/errors"

	"ripplecc/internal/asm"
)

// Frame describes one function's stack frame layout: locals, whether it
// needs a frame pointer, and which callee-saved registers it must
// preserve. Grounded on the original backend's codegen::abi::Frame.
type Frame struct {
	LocalsSize    int16
	SavedRegs     []asm.Reg
	HasCalls      bool
	NeedsFramePtr bool
	TotalSize     int16
}

// NewFrame creates a Frame for a function with localsSize words of
// locals. A frame pointer is only needed once there are locals to
// address relative to it (spec.md section 4.3: the zero-locals,
// no-calls leaf case skips the frame entirely).
func NewFrame(localsSize int16) *Frame {
	f := &Frame{LocalsSize: localsSize, NeedsFramePtr: localsSize > 0}
	f.computeSize()
	return f
}

// SetHasCalls records whether the function makes calls, which requires
// saving RA/RAB across the call, and recomputes TotalSize.
func (f *Frame) SetHasCalls(hasCalls bool) {
	f.HasCalls = hasCalls
	f.computeSize()
}

// AddSavedReg records reg as needing callee-save treatment, if not
// already recorded, and recomputes TotalSize.
func (f *Frame) AddSavedReg(reg asm.Reg) {
	for _, r := range f.SavedRegs {
		if r == reg {
			return
		}
	}
	f.SavedRegs = append(f.SavedRegs, reg)
	f.computeSize()
}

func (f *Frame) computeSize() {
	var size int16
	if f.NeedsFramePtr {
		size++
	}
	if f.HasCalls {
		size += 2 // RA and RAB.
	}
	size += int16(len(f.SavedRegs))
	size += f.LocalsSize
	f.TotalSize = size
}

// IsTrivial reports whether this function needs no frame at all: no
// locals, no calls, no callee-saved registers in use.
func (f *Frame) IsTrivial() bool {
	return !f.NeedsFramePtr && f.TotalSize == 0
}

// GenPrologue returns the instruction sequence that establishes f's
// frame. A trivial frame emits nothing.
func (f *Frame) GenPrologue() []asm.Inst {
	if f.IsTrivial() {
		return nil
	}

	var code []asm.Inst

	if f.NeedsFramePtr {
		code = append(code,
			asm.Store{Val: asm.FP, Bank: asm.SB, Addr: asm.SP},
			asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: 1},
		)
	}

	if f.HasCalls {
		code = append(code,
			asm.Store{Val: asm.RA, Bank: asm.SB, Addr: asm.SP},
			asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: 1},
			asm.Store{Val: asm.RAB, Bank: asm.SB, Addr: asm.SP},
			asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: 1},
		)
	}

	for _, reg := range f.SavedRegs {
		code = append(code,
			asm.Store{Val: reg, Bank: asm.SB, Addr: asm.SP},
			asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: 1},
		)
	}

	if f.NeedsFramePtr {
		code = append(code, asm.Binary{Mnemonic: asm.MAdd, Dst: asm.FP, Lhs: asm.SP, Rhs: asm.R0})
	}

	if f.LocalsSize > 0 {
		code = append(code, asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: int64(f.LocalsSize)})
	}

	return code
}

// GenEpilogue returns the instruction sequence that tears down f's
// frame and returns to the caller.
func (f *Frame) GenEpilogue() []asm.Inst {
	if f.IsTrivial() {
		return []asm.Inst{asm.Ret{}}
	}

	var code []asm.Inst

	switch {
	case f.NeedsFramePtr:
		code = append(code, asm.Binary{Mnemonic: asm.MAdd, Dst: asm.SP, Lhs: asm.FP, Rhs: asm.R0})
	case f.LocalsSize > 0:
		code = append(code, asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: int64(f.LocalsSize)})
	}

	for i := len(f.SavedRegs) - 1; i >= 0; i-- {
		reg := f.SavedRegs[i]
		code = append(code,
			asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: 1},
			asm.Load{Dst: reg, Bank: asm.SB, Addr: asm.SP},
		)
	}

	if f.HasCalls {
		code = append(code,
			asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: 1},
			asm.Load{Dst: asm.RAB, Bank: asm.SB, Addr: asm.SP},
			asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: 1},
			asm.Load{Dst: asm.RA, Bank: asm.SB, Addr: asm.SP},
		)
	}

	if f.NeedsFramePtr {
		code = append(code,
			asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: 1},
			asm.Load{Dst: asm.FP, Bank: asm.SB, Addr: asm.SP},
		)
	}

	code = append(code, asm.Ret{})
	return code
}

// GenCall returns the instruction sequence that moves argRegs into their
// parameter slots and invokes target. Stack-passed arguments are the
// caller's responsibility to have already pushed; argRegs here covers
// only the register-resident slots (len(argRegs) <= MaxRegParams).
func (f *Frame) GenCall(target string, argRegs []asm.Reg) ([]asm.Inst, error) {
	if len(argRegs) > MaxRegParams {
		return nil, errors.Wrapf(ErrTooManyParameters, "%d args (max %d)", len(argRegs), MaxRegParams)
	}

	var code []asm.Inst
	for i, argReg := range argRegs {
		paramReg, err := ParamReg(i)
		if err != nil {
			return nil, err
		}
		if argReg != paramReg {
			code = append(code, asm.Move{Dst: paramReg, Src: argReg})
		}
	}

	code = append(code, asm.Jal{Link: asm.RA, LinkBank: asm.RAB, Target: target})
	return code, nil
}
