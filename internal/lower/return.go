package lower

import (
	"ripplecc/internal/asm"
	"ripplecc/internal/function"
	"ripplecc/internal/ir"
)

// LowerReturn lowers an OpReturn instruction by materializing the return
// value (if any) and handing it to the function builder's Return, which
// moves it into RV0/RV1 and jumps to the function's one shared epilogue
// label. Spec.md section 4.5: "move the return value to RV0/RV1, then
// jump to the function-local epilogue label". A function may lower more
// than one OpReturn (early returns are routine in C); each one jumps to
// the same label rather than emitting its own epilogue, which the
// builder emits once after the last block.
func (l *Lowerer) LowerReturn(inst ir.Instruction, builder *function.Builder) error {
	var insts []asm.Inst
	ret := function.ReturnValue{}

	if inst.HasRetVal {
		val, err := l.Canonicalize(inst.RetVal)
		if err != nil {
			return err
		}

		ret.HasValue = true
		if val.Kind == ir.KindFatPtr {
			addrReg, addrInsts, err := l.GetValueRegister(val.FatPtr.Addr)
			if err != nil {
				return err
			}
			insts = append(insts, addrInsts...)

			bankInfo := l.ResolveBankTagToInfo(val.FatPtr.Bank, val.FatPtr)
			bankReg, bankInsts := l.GetBankRegisterWithRuntimeCheck(bankInfo, "return")
			insts = append(insts, bankInsts...)

			ret.Addr = addrReg
			ret.HasBank = true
			ret.Bank = bankReg
		} else {
			reg, regInsts, err := l.GetValueRegister(val)
			if err != nil {
				return err
			}
			insts = append(insts, regInsts...)
			ret.Addr = reg
		}
	}

	builder.AddInstructions(insts)
	builder.Return(ret, l.EpilogueLabel())
	return nil
}
