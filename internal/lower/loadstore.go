package lower

import (
	"fmt"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
	"ripplecc/internal/rpm"
)

// LowerLoad lowers an OpLoad instruction, following the bank resolution
// procedure of spec.md section 4.5:
//  1. canonicalize the pointer operand and split it into address + bank tag
//  2. resolve the bank tag to a concrete bank register, synthesising a
//     runtime tag check when the bank is only known dynamically
//  3. emit the LOAD of the value word at (bank, addr)
//  4. if the loaded type is itself a pointer, also load the bank word at
//     addr+1 and mark the result's bank info as dynamic, keyed on the
//     result temp
func (l *Lowerer) LowerLoad(inst ir.Instruction) ([]asm.Inst, error) {
	ptr, err := l.Canonicalize(inst.Pointer)
	if err != nil {
		return nil, err
	}

	resultName := l.naming.TempName(inst.Result)
	context := l.naming.LoadBankAddr(inst.Result)

	var insts []asm.Inst

	addrReg, ptrKey, addrInsts := l.GetPointerAddressAndName(ptr, inst.Result)
	insts = append(insts, addrInsts...)

	bankInfo, bankInsts, err := l.resolvePointerBankInfo(ptr, ptrKey)
	if err != nil {
		return nil, err
	}
	insts = append(insts, bankInsts...)

	bankReg, checkInsts := l.GetBankRegisterWithRuntimeCheck(bankInfo, context)
	insts = append(insts, checkInsts...)

	dst := l.mgr.GetRegister(resultName)
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts, asm.Load{Dst: dst, Bank: bankReg, Addr: addrReg})

	if inst.Type.IsPointer {
		bankWordName := l.naming.LoadBankValue(inst.Result)
		bankWordReg := l.mgr.GetRegister(bankWordName)
		insts = append(insts, l.mgr.TakeInstructions()...)

		bankAddrReg := l.mgr.GetRegister(l.naming.LoadBankAddr(inst.Result))
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts,
			asm.Immediate{Mnemonic: asm.MAddI, Dst: bankAddrReg, Src: addrReg, Imm: 1},
			asm.Load{Dst: bankWordReg, Bank: bankReg, Addr: bankAddrReg},
		)
		l.mgr.FreeRegister(bankAddrReg)

		newKey := l.naming.TempPointerBankKey(inst.Result)
		l.mgr.BindValueToRegister(bankWordReg, newKey)
		l.mgr.SetPointerBank(resultName, rpm.NamedValueBank(newKey))
	}

	return insts, nil
}

// LowerStore lowers an OpStore instruction, mirroring LowerLoad's bank
// resolution but writing rather than reading the value word.
func (l *Lowerer) LowerStore(inst ir.Instruction) ([]asm.Inst, error) {
	ptr, err := l.Canonicalize(inst.Pointer)
	if err != nil {
		return nil, err
	}

	var insts []asm.Inst

	storedReg, storedInsts, err := l.GetValueRegister(inst.Stored)
	if err != nil {
		return nil, err
	}
	insts = append(insts, storedInsts...)
	l.mgr.Pin(valueKeyOf(inst.Stored, l))

	addrReg, ptrKey, addrInsts := l.GetPointerAddressAndName(ptr, 0)
	insts = append(insts, addrInsts...)

	bankInfo, bankInsts, err := l.resolvePointerBankInfo(ptr, ptrKey)
	if err != nil {
		l.mgr.Unpin(valueKeyOf(inst.Stored, l))
		return nil, err
	}
	insts = append(insts, bankInsts...)

	context := l.naming.StoreBankAddr()
	bankReg, checkInsts := l.GetBankRegisterWithRuntimeCheck(bankInfo, context)
	insts = append(insts, checkInsts...)

	l.mgr.Unpin(valueKeyOf(inst.Stored, l))
	insts = append(insts, asm.Store{Val: storedReg, Bank: bankReg, Addr: addrReg})

	// Fat-pointer stores additionally write the bank word at addr+1.
	stored, err := l.Canonicalize(inst.Stored)
	if err != nil {
		return nil, err
	}
	if stored.Kind == ir.KindFatPtr {
		storedBankInfo := l.ResolveBankTagToInfo(stored.FatPtr.Bank, stored.FatPtr)
		storedBankReg, materializeInsts := l.GetBankRegisterWithRuntimeCheck(storedBankInfo, l.naming.StoreFatPtrBank())
		insts = append(insts, materializeInsts...)

		bankAddrReg := l.mgr.GetRegister(l.naming.StoreBankAddr())
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts,
			asm.Immediate{Mnemonic: asm.MAddI, Dst: bankAddrReg, Src: addrReg, Imm: 1},
			asm.Store{Val: storedBankReg, Bank: bankReg, Addr: bankAddrReg},
		)
		l.mgr.FreeRegister(bankAddrReg)
	}

	return insts, nil
}

// resolvePointerBankInfo determines ptr's bank info: a temp pointer uses
// its previously tracked bank info (an error if none is tracked), and a
// fat pointer resolves its static BankTag.
func (l *Lowerer) resolvePointerBankInfo(ptr ir.Value, ptrKey string) (rpm.BankInfo, []asm.Inst, error) {
	if ptr.Kind == ir.KindTemp {
		if info, ok := l.mgr.LookupPointerBank(ptrKey); ok {
			return info, nil, nil
		}
		return rpm.BankInfo{}, nil, fmt.Errorf("lower: no bank info tracked for pointer %q", ptrKey)
	}
	if ptr.Kind == ir.KindFatPtr {
		return l.ResolveBankTagToInfo(ptr.FatPtr.Bank, ptr.FatPtr), nil, nil
	}
	return rpm.BankInfo{}, nil, fmt.Errorf("lower: unsupported pointer value kind %v", ptr.Kind)
}

func valueKeyOf(v ir.Value, l *Lowerer) string {
	if v.Kind == ir.KindTemp {
		return l.naming.TempName(v.Temp)
	}
	return ""
}
