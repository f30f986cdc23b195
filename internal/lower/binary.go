package lower

import (
	"fmt"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

// immMnemonic maps a binop to its immediate-form opcode, for the
// immediate-form fast paths that avoid materializing a constant operand
// into a register. Spec.md section 4.5. Not every arithmetic op has a
// machine immediate form (shl/lshr/slt/sltu do not), and subtraction of
// an immediate k is rewritten to addi(-k) rather than having its own
// opcode.
var immMnemonic = map[ir.BinOp]string{
	ir.Add: asm.MAddI,
	ir.And: asm.MAndI,
	ir.Or:  asm.MOrI,
	ir.Xor: asm.MXorI,
	ir.Mul: asm.MMulI,
	ir.Div: asm.MDivI,
	ir.Mod: asm.MModI,
}

var regMnemonic = map[ir.BinOp]string{
	ir.Add: asm.MAdd,
	ir.Sub: asm.MSub,
	ir.And: asm.MAnd,
	ir.Or:  asm.MOr,
	ir.Xor: asm.MXor,
	ir.Shl: asm.MShl,
	ir.Lshr: asm.MLshr,
	ir.Mul: asm.MMul,
	ir.Div: asm.MDiv,
	ir.Mod: asm.MMod,
}

// LowerBinary lowers a non-comparison binary instruction, resolving the
// result register via resultKey and binding it in the register manager.
// Immediate-form fast paths apply when rhs is a small constant; `sub` of
// a constant is rewritten to `addi` of its negation (spec.md section 4.5).
func (l *Lowerer) LowerBinary(op ir.BinOp, lhs, rhs ir.Value, resultKey string, maxImmediate int64) ([]asm.Inst, asm.Reg, error) {
	if isCompare(op) {
		return nil, 0, fmt.Errorf("lower: LowerBinary called with comparison op %v; use LowerCompare", op)
	}

	if rhs.Kind == ir.KindConstant && fitsImmediate(rhs.Constant, maxImmediate) {
		return l.lowerBinaryImmediate(op, lhs, rhs.Constant, resultKey)
	}

	var insts []asm.Inst
	lhsReg, lhsInsts, err := l.GetValueRegister(lhs)
	if err != nil {
		return nil, 0, err
	}
	insts = append(insts, lhsInsts...)
	l.mgr.Pin(tempKeyOf(lhs, l))
	rhsReg, rhsInsts, err := l.GetValueRegister(rhs)
	l.mgr.Unpin(tempKeyOf(lhs, l))
	if err != nil {
		return nil, 0, err
	}
	insts = append(insts, rhsInsts...)

	dst := l.mgr.GetRegister(resultKey)
	insts = append(insts, l.mgr.TakeInstructions()...)

	mnemonic, ok := regMnemonic[op]
	if !ok {
		return nil, 0, fmt.Errorf("lower: unsupported binary op %v", op)
	}
	insts = append(insts, asm.Binary{Mnemonic: mnemonic, Dst: dst, Lhs: lhsReg, Rhs: rhsReg})
	return insts, dst, nil
}

func (l *Lowerer) lowerBinaryImmediate(op ir.BinOp, lhs ir.Value, imm int64, resultKey string) ([]asm.Inst, asm.Reg, error) {
	lhsReg, insts, err := l.GetValueRegister(lhs)
	if err != nil {
		return nil, 0, err
	}

	dst := l.mgr.GetRegister(resultKey)
	insts = append(insts, l.mgr.TakeInstructions()...)

	if op == ir.Sub {
		insts = append(insts, asm.Immediate{Mnemonic: asm.MAddI, Dst: dst, Src: lhsReg, Imm: -imm})
		return insts, dst, nil
	}

	mnemonic, ok := immMnemonic[op]
	if !ok {
		// No immediate form for this op (e.g. shl/lshr): fall back to the
		// register form by materializing the constant.
		return l.lowerBinaryNoImmediate(op, lhsReg, imm, resultKey, insts, dst)
	}
	insts = append(insts, asm.Immediate{Mnemonic: mnemonic, Dst: dst, Src: lhsReg, Imm: imm})
	return insts, dst, nil
}

func (l *Lowerer) lowerBinaryNoImmediate(op ir.BinOp, lhsReg asm.Reg, imm int64, resultKey string, insts []asm.Inst, dst asm.Reg) ([]asm.Inst, asm.Reg, error) {
	constName := l.naming.ImmValue(int16(imm))
	constReg := l.mgr.GetRegister(constName)
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts, asm.Li{Dst: constReg, Imm: imm})

	mnemonic, ok := regMnemonic[op]
	if !ok {
		return nil, 0, fmt.Errorf("lower: unsupported binary op %v", op)
	}
	insts = append(insts, asm.Binary{Mnemonic: mnemonic, Dst: dst, Lhs: lhsReg, Rhs: constReg})
	return insts, dst, nil
}

func isCompare(op ir.BinOp) bool {
	switch op {
	case ir.Eq, ir.Ne, ir.Lt, ir.LtU, ir.Gt, ir.GtU, ir.Le, ir.LeU, ir.Ge, ir.GeU:
		return true
	default:
		return false
	}
}

func fitsImmediate(v, max int64) bool {
	return v >= -max-1 && v <= max
}

// tempKeyOf returns the naming key for v if it is a temp, else "" (used
// only to pin/unpin a live lhs register across rhs materialization; a
// non-temp lhs needs no pin since it is never a spill victim by key).
func tempKeyOf(v ir.Value, l *Lowerer) string {
	if v.Kind == ir.KindTemp {
		return l.naming.TempName(v.Temp)
	}
	return ""
}

// LowerCompare lowers one of the six comparison orderings per spec.md
// section 4.5's exact formulas, binding the 0/1 result to resultKey.
func (l *Lowerer) LowerCompare(op ir.BinOp, lhs, rhs ir.Value, resultKey string, resultTemp ir.TempID) ([]asm.Inst, asm.Reg, error) {
	var insts []asm.Inst

	lhsReg, lhsInsts, err := l.GetValueRegister(lhs)
	if err != nil {
		return nil, 0, err
	}
	insts = append(insts, lhsInsts...)
	l.mgr.Pin(tempKeyOf(lhs, l))
	rhsReg, rhsInsts, err := l.GetValueRegister(rhs)
	l.mgr.Unpin(tempKeyOf(lhs, l))
	if err != nil {
		return nil, 0, err
	}
	insts = append(insts, rhsInsts...)

	dst := l.mgr.GetRegister(resultKey)
	insts = append(insts, l.mgr.TakeInstructions()...)

	switch op {
	case ir.Eq:
		// XOR t, a, b; SLTU r, R0, t; XORI r, r, 1
		tmp := l.mgr.GetRegister(l.naming.XorTemp(resultTemp))
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts,
			asm.Binary{Mnemonic: asm.MXor, Dst: tmp, Lhs: lhsReg, Rhs: rhsReg},
			asm.Binary{Mnemonic: asm.MSltu, Dst: dst, Lhs: asm.R0, Rhs: tmp},
			asm.Immediate{Mnemonic: asm.MXorI, Dst: dst, Src: dst, Imm: 1},
		)
		l.mgr.FreeRegister(tmp)

	case ir.Ne:
		// XOR t, a, b; SLTU r, R0, t
		tmp := l.mgr.GetRegister(l.naming.XorTemp(resultTemp))
		insts = append(insts, l.mgr.TakeInstructions()...)
		insts = append(insts,
			asm.Binary{Mnemonic: asm.MXor, Dst: tmp, Lhs: lhsReg, Rhs: rhsReg},
			asm.Binary{Mnemonic: asm.MSltu, Dst: dst, Lhs: asm.R0, Rhs: tmp},
		)
		l.mgr.FreeRegister(tmp)

	case ir.Lt:
		insts = append(insts, asm.Binary{Mnemonic: asm.MSlt, Dst: dst, Lhs: lhsReg, Rhs: rhsReg})

	case ir.LtU:
		insts = append(insts, asm.Binary{Mnemonic: asm.MSltu, Dst: dst, Lhs: lhsReg, Rhs: rhsReg})

	case ir.Gt:
		// SLT r, b, a (operands swapped)
		insts = append(insts, asm.Binary{Mnemonic: asm.MSlt, Dst: dst, Lhs: rhsReg, Rhs: lhsReg})

	case ir.GtU:
		insts = append(insts, asm.Binary{Mnemonic: asm.MSltu, Dst: dst, Lhs: rhsReg, Rhs: lhsReg})

	case ir.Le:
		// SLT t, b, a; SUB r, one, t  (i.e. !GT)
		insts = append(insts, l.notOf(asm.MSlt, rhsReg, lhsReg, dst, resultTemp)...)

	case ir.Ge:
		// SLT t, a, b; SUB r, one, t
		insts = append(insts, l.notOf(asm.MSlt, lhsReg, rhsReg, dst, resultTemp)...)

	case ir.LeU:
		insts = append(insts, l.notOf(asm.MSltu, rhsReg, lhsReg, dst, resultTemp)...)

	case ir.GeU:
		insts = append(insts, l.notOf(asm.MSltu, lhsReg, rhsReg, dst, resultTemp)...)

	default:
		return nil, 0, fmt.Errorf("lower: LowerCompare: unsupported op %v", op)
	}

	return insts, dst, nil
}

// notOf emits `mnemonic t, x, y; SUB dst, one, t`, the shared shape
// behind LE/GE/LEU/GEU (each is a negated SLT/SLTU with swapped or
// unswapped operands).
func (l *Lowerer) notOf(mnemonic string, x, y, dst asm.Reg, resultTemp ir.TempID) []asm.Inst {
	tmp := l.mgr.GetRegister(l.naming.XorTemp(resultTemp))
	insts := l.mgr.TakeInstructions()
	oneReg := l.mgr.GetRegister(l.naming.ConstOne(resultTemp))
	insts = append(insts, l.mgr.TakeInstructions()...)
	insts = append(insts,
		asm.Binary{Mnemonic: mnemonic, Dst: tmp, Lhs: x, Rhs: y},
		asm.Li{Dst: oneReg, Imm: 1},
		asm.Binary{Mnemonic: asm.MSub, Dst: dst, Lhs: oneReg, Rhs: tmp},
	)
	l.mgr.FreeRegister(tmp)
	l.mgr.FreeRegister(oneReg)
	return insts
}
