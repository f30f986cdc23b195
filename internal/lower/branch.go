package lower

import (
	"fmt"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

// fusedBranchForm describes how to turn a FusedCompare's operator into a
// single direct conditional branch, with an optional operand swap for the
// orderings (GT, LE) that have no dedicated machine branch opcode.
type fusedBranchForm struct {
	mnemonic string
	swap     bool
}

// fusedForms maps each comparison operator eligible for compare+branch
// fusion to its direct branch form. EQ/NE fuse onto BEQ/BNE directly;
// the four orderings fuse onto BLT/BGE, with GT and LE needing their
// operands swapped to reuse the same two opcodes (mirrors the swap used
// by the six comparison lowering formulas themselves). Spec.md section 4.5.
var fusedForms = map[ir.BinOp]fusedBranchForm{
	ir.Eq:  {asm.MBeq, false},
	ir.Ne:  {asm.MBne, false},
	ir.Lt:  {asm.MBlt, false},
	ir.LtU: {asm.MBlt, false},
	ir.Ge:  {asm.MBge, false},
	ir.GeU: {asm.MBge, false},
	ir.Gt:  {asm.MBlt, true},
	ir.GtU: {asm.MBlt, true},
	ir.Le:  {asm.MBge, true},
	ir.LeU: {asm.MBge, true},
}

// LowerBranch lowers an unconditional branch as BEQ R0, R0, target.
func (l *Lowerer) LowerBranch(target string) []asm.Inst {
	return []asm.Inst{asm.Branch{Mnemonic: asm.MBeq, Lhs: asm.R0, Rhs: asm.R0, Target: target}}
}

// LowerBranchCond lowers a conditional branch. When inst carries a
// FusedCompare, the comparison and branch fuse into a single direct
// machine branch instead of materialising a 0/1 value first; otherwise
// it falls back to `BEQ v, R0, falseTarget; BEQ R0, R0, trueTarget`
// (spec.md section 4.5).
func (l *Lowerer) LowerBranchCond(inst ir.Instruction) ([]asm.Inst, error) {
	if inst.FusedCompare != nil {
		return l.lowerFusedCompareBranch(*inst.FusedCompare, inst.TrueTarget, inst.FalseTarget)
	}

	condReg, insts, err := l.GetValueRegister(inst.Cond)
	if err != nil {
		return nil, err
	}
	insts = append(insts,
		asm.Branch{Mnemonic: asm.MBeq, Lhs: condReg, Rhs: asm.R0, Target: l.BlockLabel(inst.FalseTarget)},
		asm.Branch{Mnemonic: asm.MBeq, Lhs: asm.R0, Rhs: asm.R0, Target: l.BlockLabel(inst.TrueTarget)},
	)
	return insts, nil
}

func (l *Lowerer) lowerFusedCompareBranch(fc ir.FusedCompare, trueTarget, falseTarget int) ([]asm.Inst, error) {
	form, ok := fusedForms[fc.Op]
	if !ok {
		return nil, fmt.Errorf("lower: no fused branch form for comparison op %v", fc.Op)
	}

	lhs, rhs := fc.Lhs, fc.Rhs
	var insts []asm.Inst

	lhsReg, lhsInsts, err := l.GetValueRegister(lhs)
	if err != nil {
		return nil, err
	}
	insts = append(insts, lhsInsts...)
	l.mgr.Pin(tempKeyOf(lhs, l))
	rhsReg, rhsInsts, err := l.GetValueRegister(rhs)
	l.mgr.Unpin(tempKeyOf(lhs, l))
	if err != nil {
		return nil, err
	}
	insts = append(insts, rhsInsts...)

	trueLabel := l.BlockLabel(trueTarget)
	falseLabel := l.BlockLabel(falseTarget)

	a, b := lhsReg, rhsReg
	if form.swap {
		a, b = rhsReg, lhsReg
	}
	insts = append(insts,
		asm.Branch{Mnemonic: form.mnemonic, Lhs: a, Rhs: b, Target: trueLabel},
		asm.Branch{Mnemonic: asm.MBeq, Lhs: asm.R0, Rhs: asm.R0, Target: falseLabel},
	)
	return insts, nil
}
