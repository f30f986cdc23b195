package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

func TestLowerBranchEmitsUnconditionalBeqR0(t *testing.T) {
	low := testLower("f")
	insts := low.LowerBranch("L_f_3")
	require.Len(t, insts, 1)
	b := insts[0].(asm.Branch)
	assert.Equal(t, asm.MBeq, b.Mnemonic)
	assert.Equal(t, asm.R0, b.Lhs)
	assert.Equal(t, asm.R0, b.Rhs)
	assert.Equal(t, "L_f_3", b.Target)
}

func TestLowerBranchCondWithoutFusionEmitsTwoBranches(t *testing.T) {
	low := testLower("f")
	inst := ir.Instruction{
		Op:          ir.OpBranchCond,
		Cond:        ir.TempValue(ir.TempID(1)),
		TrueTarget:  2,
		FalseTarget: 3,
	}
	insts, err := low.LowerBranchCond(inst)
	require.NoError(t, err)
	require.Len(t, insts, 2)

	first := insts[0].(asm.Branch)
	assert.Equal(t, asm.MBeq, first.Mnemonic)
	assert.Equal(t, "L_f_3", first.Target)

	second := insts[1].(asm.Branch)
	assert.Equal(t, "L_f_2", second.Target)
}

func TestLowerBranchCondFusedEqUsesDirectBeq(t *testing.T) {
	low := testLower("f")
	inst := ir.Instruction{
		Op:          ir.OpBranchCond,
		TrueTarget:  1,
		FalseTarget: 2,
		FusedCompare: &ir.FusedCompare{
			Op:  ir.Eq,
			Lhs: ir.TempValue(ir.TempID(1)),
			Rhs: ir.TempValue(ir.TempID(2)),
		},
	}
	insts, err := low.LowerBranchCond(inst)
	require.NoError(t, err)
	require.Len(t, insts, 2)

	first := insts[0].(asm.Branch)
	assert.Equal(t, asm.MBeq, first.Mnemonic)
	assert.Equal(t, "L_f_1", first.Target)
}

func TestLowerBranchCondFusedGtSwapsOperands(t *testing.T) {
	low := testLower("f")
	lhsReg, _, err := low.GetValueRegister(ir.TempValue(ir.TempID(1)))
	require.NoError(t, err)
	rhsReg, _, err := low.GetValueRegister(ir.TempValue(ir.TempID(2)))
	require.NoError(t, err)

	low2 := testLower("f")
	inst := ir.Instruction{
		Op:          ir.OpBranchCond,
		TrueTarget:  1,
		FalseTarget: 2,
		FusedCompare: &ir.FusedCompare{
			Op:  ir.Gt,
			Lhs: ir.TempValue(ir.TempID(1)),
			Rhs: ir.TempValue(ir.TempID(2)),
		},
	}
	insts, err := low2.LowerBranchCond(inst)
	require.NoError(t, err)

	first := insts[0].(asm.Branch)
	assert.Equal(t, asm.MBlt, first.Mnemonic)
	assert.Equal(t, rhsReg, first.Lhs)
	assert.Equal(t, lhsReg, first.Rhs)
}
