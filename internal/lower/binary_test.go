package lower

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
	"ripplecc/internal/global"
	"ripplecc/internal/ir"
	"ripplecc/internal/naming"
	"ripplecc/internal/rpm"
)

func testLower(funcName string) *Lowerer {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	mgr := rpm.New(logrus.NewEntry(l))
	mgr.InitStackBank()
	nam := naming.New(0)
	globals := global.New(logrus.NewEntry(l))
	return New(funcName, mgr, nam, globals, logrus.NewEntry(l))
}

func TestLowerBinaryRegisterForm(t *testing.T) {
	low := testLower("f")
	insts, dst, err := low.LowerBinary(ir.Add, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", 32767)
	require.NoError(t, err)
	require.NotEmpty(t, insts)

	last := insts[len(insts)-1].(asm.Binary)
	assert.Equal(t, asm.MAdd, last.Mnemonic)
	assert.Equal(t, dst, last.Dst)
}

func TestLowerBinaryImmediateFormAvoidsMaterializingConstant(t *testing.T) {
	low := testLower("f")
	insts, dst, err := low.LowerBinary(ir.Add, ir.TempValue(ir.TempID(1)), ir.ConstantValue(5), "result", 32767)
	require.NoError(t, err)

	var sawImm bool
	for _, in := range insts {
		if imm, ok := in.(asm.Immediate); ok {
			sawImm = true
			assert.Equal(t, asm.MAddI, imm.Mnemonic)
			assert.Equal(t, int64(5), imm.Imm)
			assert.Equal(t, dst, imm.Dst)
		}
		if _, ok := in.(asm.Li); ok {
			t.Fatalf("immediate-form add must not materialize the constant via li: %v", insts)
		}
	}
	assert.True(t, sawImm, "expected an Immediate instruction in %v", insts)
}

func TestLowerBinarySubOfConstantRewritesToNegatedAddI(t *testing.T) {
	low := testLower("f")
	insts, _, err := low.LowerBinary(ir.Sub, ir.TempValue(ir.TempID(1)), ir.ConstantValue(3), "result", 32767)
	require.NoError(t, err)

	last := insts[len(insts)-1].(asm.Immediate)
	assert.Equal(t, asm.MAddI, last.Mnemonic)
	assert.Equal(t, int64(-3), last.Imm)
}

func TestLowerBinaryShlHasNoImmediateFormAndMaterializesConstant(t *testing.T) {
	low := testLower("f")
	insts, _, err := low.LowerBinary(ir.Shl, ir.TempValue(ir.TempID(1)), ir.ConstantValue(2), "result", 32767)
	require.NoError(t, err)

	var sawLi, sawBinary bool
	for _, in := range insts {
		if li, ok := in.(asm.Li); ok {
			sawLi = true
			assert.Equal(t, int64(2), li.Imm)
		}
		if bin, ok := in.(asm.Binary); ok {
			sawBinary = true
			assert.Equal(t, asm.MShl, bin.Mnemonic)
		}
	}
	assert.True(t, sawLi, "shl has no immediate form, the rhs constant must be materialized via li")
	assert.True(t, sawBinary)
}

func TestLowerBinaryRejectsComparisonOps(t *testing.T) {
	low := testLower("f")
	_, _, err := low.LowerBinary(ir.Eq, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", 32767)
	assert.Error(t, err)
}

func TestLowerCompareEqEmitsXorSltuXori(t *testing.T) {
	low := testLower("f")
	insts, dst, err := low.LowerCompare(ir.Eq, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", ir.TempID(9))
	require.NoError(t, err)
	require.Len(t, insts, 3)

	xor := insts[0].(asm.Binary)
	assert.Equal(t, asm.MXor, xor.Mnemonic)

	sltu := insts[1].(asm.Binary)
	assert.Equal(t, asm.MSltu, sltu.Mnemonic)
	assert.Equal(t, asm.R0, sltu.Lhs)

	xori := insts[2].(asm.Immediate)
	assert.Equal(t, asm.MXorI, xori.Mnemonic)
	assert.Equal(t, int64(1), xori.Imm)
	assert.Equal(t, dst, xori.Dst)
}

func TestLowerCompareLtEmitsSingleSlt(t *testing.T) {
	low := testLower("f")
	insts, dst, err := low.LowerCompare(ir.Lt, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", ir.TempID(9))
	require.NoError(t, err)

	last := insts[len(insts)-1].(asm.Binary)
	assert.Equal(t, asm.MSlt, last.Mnemonic)
	assert.Equal(t, dst, last.Dst)
}

func TestLowerCompareGtSwapsOperandsOfSlt(t *testing.T) {
	low := testLower("f")
	lhsReg, _, err := low.GetValueRegister(ir.TempValue(ir.TempID(1)))
	require.NoError(t, err)
	rhsReg, _, err := low.GetValueRegister(ir.TempValue(ir.TempID(2)))
	require.NoError(t, err)

	low2 := testLower("f")
	insts, _, err := low2.LowerCompare(ir.Gt, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", ir.TempID(9))
	require.NoError(t, err)

	last := insts[len(insts)-1].(asm.Binary)
	assert.Equal(t, asm.MSlt, last.Mnemonic)
	assert.Equal(t, rhsReg, last.Lhs)
	assert.Equal(t, lhsReg, last.Rhs)
}

func TestLowerCompareGeEmitsSltThenSub(t *testing.T) {
	low := testLower("f")
	insts, dst, err := low.LowerCompare(ir.Ge, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", ir.TempID(9))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(insts), 3)

	var sawSlt, sawSub bool
	for _, in := range insts {
		if bin, ok := in.(asm.Binary); ok {
			if bin.Mnemonic == asm.MSlt {
				sawSlt = true
			}
			if bin.Mnemonic == asm.MSub {
				sawSub = true
				assert.Equal(t, dst, bin.Dst)
			}
		}
	}
	assert.True(t, sawSlt)
	assert.True(t, sawSub)
}

func TestLowerCompareRejectsUnsupportedOp(t *testing.T) {
	low := testLower("f")
	_, _, err := low.LowerCompare(ir.Add, ir.TempValue(ir.TempID(1)), ir.TempValue(ir.TempID(2)), "result", ir.TempID(9))
	assert.Error(t, err)
}
