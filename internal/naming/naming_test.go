package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ripplecc/internal/ir"
)

func TestTempNameIsStableAcrossCalls(t *testing.T) {
	g := New(3)
	assert.Equal(t, "t7", g.TempName(ir.TempID(7)))
	assert.Equal(t, "t7", g.TempName(ir.TempID(7)), "TempName must not consume the operation counter")
}

func TestOperationNamesAreUniquePerCall(t *testing.T) {
	g := New(0)
	a := g.LoadBankAddr(ir.TempID(1))
	b := g.LoadBankAddr(ir.TempID(1))
	assert.NotEqual(t, a, b, "two calls for the same temp must still mint distinct operation ids")
}

func TestPointerBankKeyIsIdentity(t *testing.T) {
	g := New(0)
	assert.Equal(t, "foo", g.PointerBankKey("foo"))
	assert.Equal(t, g.TempName(ir.TempID(5)), g.TempPointerBankKey(ir.TempID(5)))
}

func TestBlockLabelIncludesFunctionAndBlock(t *testing.T) {
	g := New(2)
	assert.Equal(t, "L_main_4", g.BlockLabel("main", 4))
}

func TestGeneratorsForDifferentFunctionsAreIndependent(t *testing.T) {
	g1 := New(0)
	g2 := New(1)
	assert.NotEqual(t, g1.LoadBankAddr(ir.TempID(0)), g2.LoadBankAddr(ir.TempID(0)))
}

func TestFunctionIDReflectsOrdinal(t *testing.T) {
	g := New(9)
	assert.Equal(t, 9, g.FunctionID())
}
