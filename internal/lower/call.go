package lower

import (
	"fmt"

	"ripplecc/internal/asm"
	"ripplecc/internal/cc"
	"ripplecc/internal/ir"
	"ripplecc/internal/rpm"
)

// LowerCall lowers an OpCall instruction per the calling convention's
// five-step call sequence (spec.md section 4.3): spill caller-saved live
// values that must survive the call, materialise arguments into their
// target registers/stack slots (cc.PlanArgs), emit the JAL, pop the stack
// arguments, then read the return value. Everything live in a
// caller-saved register is spilled up front — rather than only the
// values the call's own arguments need — since the call sequence has no
// liveness analysis telling it which other temps survive past the JAL;
// Reload (spec.md section 4.2) then transparently restores any of those
// values a later lowering step still needs, including this call's own
// arguments if one of them was itself resident before the spill.
func (l *Lowerer) LowerCall(inst ir.Instruction) ([]asm.Inst, error) {
	if inst.Callee.Kind != ir.KindFunction {
		return nil, fmt.Errorf("lower: indirect calls through computed function pointers are not supported")
	}
	target := inst.Callee.Function

	isFatPtr := make([]bool, len(inst.Args))
	for i, t := range inst.ArgTypes {
		isFatPtr[i] = t.IsPointer
	}
	plan := cc.PlanArgs(isFatPtr)

	var insts []asm.Inst
	l.mgr.SpillAll()
	insts = append(insts, l.mgr.TakeInstructions()...)

	var regArgs []asm.Reg // Positional, indexed by register slot.
	var stackPushes []asm.Inst

	for i, arg := range inst.Args {
		slots := plan.Slots[i]
		regs, argInsts, err := l.materializeArgWords(arg, isFatPtr[i])
		if err != nil {
			return nil, err
		}
		insts = append(insts, argInsts...)

		for w, slot := range slots {
			if slot.InRegister {
				regArgs = append(regArgs, regs[w])
			} else {
				stackPushes = append(stackPushes,
					asm.Store{Val: regs[w], Bank: asm.SB, Addr: asm.SP},
					asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: 1},
				)
			}
		}
	}

	insts = append(insts, stackPushes...)

	callCode, err := callFrame(target, regArgs)
	if err != nil {
		return nil, err
	}
	insts = append(insts, callCode...)

	if plan.StackWords > 0 {
		insts = append(insts, asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: int64(plan.StackWords)})
	}

	// Every caller-saved register binding was already dropped by the
	// SpillAll above, so GetRegister below allocates a register with no
	// stale binding to clash with: the result is the only caller-saved
	// value bound across the call, matching spec.md section 4.5's "after
	// the call, invalidate any caller-saved register bindings except
	// those explicitly bound to the return value".
	if !inst.Void && inst.HasResult {
		resultName := l.naming.TempName(inst.Result)
		dst := l.mgr.GetRegister(resultName)
		insts = append(insts, l.mgr.TakeInstructions()...)
		if dst != asm.RV0 {
			insts = append(insts, asm.Move{Dst: dst, Src: asm.RV0})
		}
		if inst.Type.IsPointer {
			bankWordName := l.naming.TempWithContext(resultName, "ret_bank")
			bankReg := l.mgr.GetRegister(bankWordName)
			insts = append(insts, l.mgr.TakeInstructions()...)
			insts = append(insts, asm.Move{Dst: bankReg, Src: asm.RV1})
			l.mgr.BindValueToRegister(bankReg, bankWordName)
			l.mgr.SetPointerBank(resultName, rpm.NamedValueBank(bankWordName))
		}
	}

	return insts, nil
}

// materializeArgWords returns the register(s) holding arg's marshalled
// words: one for a scalar, two (address then bank) for a fat pointer.
func (l *Lowerer) materializeArgWords(arg ir.Value, isFatPtr bool) ([]asm.Reg, []asm.Inst, error) {
	arg, err := l.Canonicalize(arg)
	if err != nil {
		return nil, nil, err
	}

	if !isFatPtr {
		reg, insts, err := l.GetValueRegister(arg)
		if err != nil {
			return nil, nil, err
		}
		return []asm.Reg{reg}, insts, nil
	}

	if arg.Kind != ir.KindFatPtr {
		return nil, nil, fmt.Errorf("lower: argument typed as pointer but value is %v", arg.Kind)
	}

	addrReg, insts, err := l.GetValueRegister(arg.FatPtr.Addr)
	if err != nil {
		return nil, nil, err
	}
	bankInfo := l.ResolveBankTagToInfo(arg.FatPtr.Bank, arg.FatPtr)
	bankReg, bankInsts := l.GetBankRegisterWithRuntimeCheck(bankInfo, "call_arg")
	insts = append(insts, bankInsts...)

	return []asm.Reg{addrReg, bankReg}, insts, nil
}

// callFrame builds a throwaway cc.Frame purely to reuse GenCall's
// register-to-param-slot move sequence; call lowering needs no frame of
// its own since the caller's frame is already established by the time a
// call instruction is reached.
func callFrame(target string, argRegs []asm.Reg) ([]asm.Inst, error) {
	f := &cc.Frame{}
	return f.GenCall(target, argRegs)
}
