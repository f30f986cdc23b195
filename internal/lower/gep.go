package lower

import (
	"fmt"
	"math/bits"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
	"ripplecc/internal/rpm"
)

// LowerGEP lowers an OpGetElementPtr instruction. Index is always scaled by
// inst.ElementSize (in words); bankSize is the configured words-per-bank
// used by the runtime overflow synthesis. Grounded on gep_tests.rs.
func (l *Lowerer) LowerGEP(inst ir.Instruction, bankSize int) ([]asm.Inst, error) {
	base, err := l.Canonicalize(inst.Base)
	if err != nil {
		return nil, err
	}

	addrReg, ptrKey, insts := l.GetPointerAddressAndName(base, inst.Result)
	bankInfo, bankInsts, err := l.resolvePointerBankInfo(base, ptrKey)
	if err != nil {
		return nil, err
	}
	insts = append(insts, bankInsts...)

	resultName := l.naming.TempName(inst.Result)

	index, err := l.Canonicalize(inst.Index)
	if err != nil {
		return nil, err
	}

	if index.Kind == ir.KindConstant {
		return l.lowerGEPConstant(inst, addrReg, bankInfo, index.Constant, resultName, bankSize, insts)
	}
	return l.lowerGEPDynamic(inst, addrReg, bankInfo, index, resultName, bankSize, insts)
}

func (l *Lowerer) lowerGEPConstant(inst ir.Instruction, baseAddr asm.Reg, bankInfo rpm.BankInfo, indexConst int64, resultName string, bankSize int, insts []asm.Inst) ([]asm.Inst, error) {
	offset := indexConst * int64(inst.ElementSize)

	dst := l.mgr.GetRegister(resultName)
	insts = append(insts, l.mgr.TakeInstructions()...)

	if offset == 0 {
		insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: dst, Lhs: baseAddr, Rhs: asm.R0})
	} else {
		if offset >= int64(bankSize) || offset <= -int64(bankSize) {
			insts = append(insts, asm.Comment{Text: fmt.Sprintf("possible bank overflow: static offset %d exceeds bank size %d", offset, bankSize)})
		}
		insts = append(insts, asm.Immediate{Mnemonic: asm.MAddI, Dst: dst, Src: baseAddr, Imm: offset})
	}

	l.mgr.SetPointerBank(resultName, bankInfo)
	return insts, nil
}

func (l *Lowerer) lowerGEPDynamic(inst ir.Instruction, baseAddr asm.Reg, bankInfo rpm.BankInfo, index ir.Value, resultName string, bankSize int, insts []asm.Inst) ([]asm.Inst, error) {
	indexReg, indexInsts, err := l.GetValueRegister(index)
	if err != nil {
		return nil, err
	}
	insts = append(insts, indexInsts...)

	deltaReg, deltaInsts := l.computeGepDelta(inst, indexReg)
	insts = append(insts, deltaInsts...)

	insts = append(insts, asm.Comment{Text: "runtime bank overflow calculation"})

	sumReg := l.mgr.GetRegister(l.naming.GepNewAddr(inst.Result))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: sumReg, Lhs: baseAddr, Rhs: deltaReg})

	bankSizeReg := l.mgr.GetRegister(l.naming.GepSize(inst.Result))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts, asm.Li{Dst: bankSizeReg, Imm: int64(bankSize)})

	bankDeltaReg := l.mgr.GetRegister(l.naming.GepBankDelta(inst.Result))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts, asm.Binary{Mnemonic: asm.MDiv, Dst: bankDeltaReg, Lhs: sumReg, Rhs: bankSizeReg})

	newOffsetReg := l.mgr.GetRegister(resultName)
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts, asm.Binary{Mnemonic: asm.MMod, Dst: newOffsetReg, Lhs: sumReg, Rhs: bankSizeReg})

	newBankKey := l.naming.GepNewBank(inst.Result)
	var newBankReg asm.Reg
	switch bankInfo.Kind {
	case rpm.BankRegister:
		newBankReg = bankInfo.Reg
		insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: newBankReg, Lhs: newBankReg, Rhs: bankDeltaReg})
	case rpm.BankGlobal:
		newBankReg = l.mgr.GetRegister(newBankKey)
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: newBankReg, Lhs: asm.GP, Rhs: bankDeltaReg})
	case rpm.BankStack:
		newBankReg = l.mgr.GetRegister(newBankKey)
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: newBankReg, Lhs: asm.SB, Rhs: bankDeltaReg})
	case rpm.BankNamedValue:
		resolvedReg, checkInsts := l.GetBankRegisterWithRuntimeCheck(bankInfo, l.naming.GepGlobal(newBankKey))
		insts = append(insts, checkInsts...)
		newBankReg = resolvedReg
		insts = append(insts, asm.Binary{Mnemonic: asm.MAdd, Dst: newBankReg, Lhs: newBankReg, Rhs: bankDeltaReg})
	default:
		return nil, fmt.Errorf("lower: unhandled bank info kind %v in GEP", bankInfo.Kind)
	}

	l.mgr.BindValueToRegister(newBankReg, newBankKey)
	l.mgr.SetPointerBank(resultName, rpm.RegisterBank(newBankReg))

	l.mgr.FreeRegister(sumReg)
	l.mgr.FreeRegister(bankSizeReg)
	l.mgr.FreeRegister(bankDeltaReg)

	return insts, nil
}

// computeGepDelta computes index * inst.ElementSize into a fresh register,
// using a shift for power-of-two element sizes and a multiply otherwise.
// An element size of exactly one word needs no scaling at all.
func (l *Lowerer) computeGepDelta(inst ir.Instruction, indexReg asm.Reg) (asm.Reg, []asm.Inst) {
	if inst.ElementSize == 1 {
		return indexReg, nil
	}

	deltaReg := l.mgr.GetRegister(l.naming.GepShift(inst.Result))
	insts := l.mgr.TakeInstructions()

	if isPowerOfTwo(inst.ElementSize) {
		shift := bits.TrailingZeros(uint(inst.ElementSize))
		shiftReg := l.mgr.GetRegister(l.naming.GepSize(inst.Result))
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts,
			asm.Li{Dst: shiftReg, Imm: int64(shift)},
			asm.Binary{Mnemonic: asm.MShl, Dst: deltaReg, Lhs: indexReg, Rhs: shiftReg},
		)
		l.mgr.FreeRegister(shiftReg)
		return deltaReg, insts
	}

	sizeReg := l.mgr.GetRegister(l.naming.GepSize(inst.Result))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts,
		asm.Li{Dst: sizeReg, Imm: int64(inst.ElementSize)},
		asm.Binary{Mnemonic: asm.MMul, Dst: deltaReg, Lhs: indexReg, Rhs: sizeReg},
	)
	l.mgr.FreeRegister(sizeReg)
	return deltaReg, insts
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
