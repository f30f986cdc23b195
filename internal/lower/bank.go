package lower

import (
	"fmt"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
	"ripplecc/internal/rpm"
)

// ResolveBankTagToInfo converts a static ir.BankTag on a fat pointer fp
// into a concrete rpm.BankInfo, resolving BankMixed by consulting the
// tracked bank info for fp's underlying temp. Grounded on
// helpers::resolve_bank_tag_to_info.
func (l *Lowerer) ResolveBankTagToInfo(tag ir.BankTag, fp ir.FatPointer) rpm.BankInfo {
	switch tag {
	case ir.BankGlobal:
		return rpm.GlobalBank()
	case ir.BankStack:
		return rpm.StackBank()
	case ir.BankMixed:
		return l.resolveMixedBank(fp)
	case ir.BankNull:
		panic("lower: NULL pointer dereference: attempted to access NULL pointer")
	default:
		panic(fmt.Sprintf("lower: unsupported bank tag %v for fat pointer", tag))
	}
}

// resolveMixedBank resolves a BankMixed fat pointer by looking up the
// bank info already tracked for its address temp. Every pointer must
// have tracked bank info by the time it reaches lowering; a miss is a
// compiler bug in an earlier pass, not a user error. Grounded on
// helpers::resolve_mixed_bank.
func (l *Lowerer) resolveMixedBank(fp ir.FatPointer) rpm.BankInfo {
	switch fp.Addr.Kind {
	case ir.KindTemp:
		name := l.naming.TempName(fp.Addr.Temp)
		info, ok := l.mgr.LookupPointerBank(name)
		if !ok {
			panic(fmt.Sprintf("lower: compiler bug: no bank info for mixed pointer %q; every pointer must have tracked bank info", name))
		}
		return info
	case ir.KindConstant:
		panic("lower: fat pointer with BankMixed tag cannot have a constant address")
	default:
		l.log.Warnf("unexpected address kind %v for mixed fat pointer, defaulting to stack bank", fp.Addr.Kind)
		return rpm.StackBank()
	}
}

// MaterializeBankToRegister copies the concrete register backing tag
// (GP for global, SB for stack) into a fresh scratch register, for
// callers that need an owned, freeable register rather than a borrow of
// a fixed architectural register. Grounded on helpers::materialize_bank_to_register.
func (l *Lowerer) MaterializeBankToRegister(tag ir.BankTag, context string) (asm.Reg, []asm.Inst) {
	var src asm.Reg
	var purpose string
	switch tag {
	case ir.BankGlobal:
		src, purpose = asm.GP, "bank_global"
	case ir.BankStack:
		src, purpose = asm.SB, "bank_stack"
	case ir.BankMixed:
		panic("lower: cannot materialize mixed bank tag without additional context; resolve the mixed bank first")
	case ir.BankNull:
		panic("lower: NULL pointer dereference: attempted to use NULL pointer")
	default:
		panic(fmt.Sprintf("lower: unexpected bank tag %v", tag))
	}

	name := l.naming.TempWithContext(context, purpose)
	reg := l.mgr.GetRegister(name)
	insts := l.mgr.TakeInstructions()
	insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: reg, Lhs: src, Rhs: asm.R0})
	return reg, insts
}

// GetBankRegisterWithRuntimeCheck is the one safe entry point for turning
// an rpm.BankInfo into a concrete register: BankNamedValue requires
// synthesizing a runtime tag check (a spilled fat pointer's bank word can
// hold either a real dynamic bank address or one of the TagGlobal/
// TagStack sentinels), everything else is a direct register answer.
// Spec.md section 4.5; grounded on
// helpers::get_bank_register_with_runtime_check_safe and its private
// get_bank_register_with_runtime_check.
func (l *Lowerer) GetBankRegisterWithRuntimeCheck(info rpm.BankInfo, context string) (asm.Reg, []asm.Inst) {
	switch info.Kind {
	case rpm.BankGlobal:
		return asm.GP, nil
	case rpm.BankStack:
		return asm.SB, nil
	case rpm.BankRegister:
		return info.Reg, nil
	case rpm.BankNamedValue:
		return l.runtimeBankTagCheck(info.Named, context)
	default:
		panic(fmt.Sprintf("lower: unhandled bank info kind %v", info.Kind))
	}
}

func (l *Lowerer) runtimeBankTagCheck(named, context string) (asm.Reg, []asm.Inst) {
	var insts []asm.Inst

	bankValReg := l.mgr.GetRegister(named)
	insts = append(insts, l.mgr.TakeInstructions()...)

	useGlobalLabel := l.naming.ContextLabel(context, "use_global")
	useStackLabel := l.naming.ContextLabel(context, "use_stack")
	doneLabel := l.naming.ContextLabel(context, "bank_done")

	resultName := l.naming.TempWithContext(context, "resolved_bank")
	resultReg := l.mgr.GetRegister(resultName)
	insts = append(insts, l.mgr.TakeInstructions()...)

	globalTagReg := l.mgr.GetRegister(l.naming.TempWithContext(context, "global_tag"))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts,
		asm.Li{Dst: globalTagReg, Imm: int64(rpm.TagGlobal)},
		asm.Branch{Mnemonic: asm.MBeq, Lhs: bankValReg, Rhs: globalTagReg, Target: useGlobalLabel},
	)

	stackTagReg := l.mgr.GetRegister(l.naming.TempWithContext(context, "stack_tag"))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts,
		asm.Li{Dst: stackTagReg, Imm: int64(rpm.TagStack)},
		asm.Branch{Mnemonic: asm.MBeq, Lhs: bankValReg, Rhs: stackTagReg, Target: useStackLabel},
	)

	// Not a tag: the value is itself a dynamic bank address, use as-is.
	insts = append(insts,
		asm.Binary{Mnemonic: asm.MAdd, Dst: resultReg, Lhs: bankValReg, Rhs: asm.R0},
		asm.Branch{Mnemonic: asm.MBeq, Lhs: asm.R0, Rhs: asm.R0, Target: doneLabel},

		asm.Label{Name: useGlobalLabel},
		asm.Binary{Mnemonic: asm.MAdd, Dst: resultReg, Lhs: asm.GP, Rhs: asm.R0},
		asm.Branch{Mnemonic: asm.MBeq, Lhs: asm.R0, Rhs: asm.R0, Target: doneLabel},

		asm.Label{Name: useStackLabel},
		asm.Binary{Mnemonic: asm.MAdd, Dst: resultReg, Lhs: asm.SB, Rhs: asm.R0},

		asm.Label{Name: doneLabel},
	)

	l.mgr.FreeRegister(globalTagReg)
	l.mgr.FreeRegister(stackTagReg)

	return resultReg, insts
}

// GetPointerAddressAndName returns the register holding ptr's address,
// the stable key to use for tracking/looking up its bank info, and any
// instructions needed to materialize it. Grounded on
// helpers::get_pointer_address_and_name.
func (l *Lowerer) GetPointerAddressAndName(ptr ir.Value, resultTemp ir.TempID) (asm.Reg, string, []asm.Inst) {
	switch ptr.Kind {
	case ir.KindTemp:
		name := l.naming.TempName(ptr.Temp)
		reg := l.mgr.GetRegister(name)
		return reg, name, l.mgr.TakeInstructions()

	case ir.KindFatPtr:
		var insts []asm.Inst
		var addrReg asm.Reg
		switch ptr.FatPtr.Addr.Kind {
		case ir.KindTemp:
			name := l.naming.TempName(ptr.FatPtr.Addr.Temp)
			addrReg = l.mgr.GetRegister(name)
			insts = append(insts, l.mgr.TakeInstructions()...)
		case ir.KindConstant:
			tempName := l.naming.ConstForTemp(resultTemp)
			addrReg = l.mgr.GetRegister(tempName)
			insts = append(insts, l.mgr.TakeInstructions()...)
			insts = append(insts, asm.Li{Dst: addrReg, Imm: ptr.FatPtr.Addr.Constant})
		default:
			panic(fmt.Sprintf("lower: invalid fat pointer address kind %v", ptr.FatPtr.Addr.Kind))
		}
		ptrName := l.naming.PointerBankKey(fmt.Sprintf("ptr_%d", resultTemp))
		return addrReg, ptrName, insts

	default:
		panic(fmt.Sprintf("lower: invalid pointer value kind %v", ptr.Kind))
	}
}
