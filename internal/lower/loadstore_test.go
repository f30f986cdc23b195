package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

func globalPointer() ir.Value {
	return ir.FatPtrValue(ir.FatPointer{Addr: ir.ConstantValue(100), Bank: ir.BankGlobal})
}

func TestLowerLoadScalarEmitsSingleLoad(t *testing.T) {
	low := testLower("f")
	inst := ir.Instruction{
		Op:      ir.OpLoad,
		Result:  ir.TempID(1),
		Type:    ir.Type{SizeWords: 1},
		Pointer: globalPointer(),
	}
	insts, err := low.LowerLoad(inst)
	require.NoError(t, err)

	var loads []asm.Load
	for _, in := range insts {
		if ld, ok := in.(asm.Load); ok {
			loads = append(loads, ld)
		}
	}
	require.Len(t, loads, 1, "a scalar load must emit exactly one Load")
	assert.Equal(t, asm.GP, loads[0].Bank)
}

func TestLowerLoadPointerTypeEmitsTwoLoadsAndTracksBank(t *testing.T) {
	low := testLower("f")
	inst := ir.Instruction{
		Op:      ir.OpLoad,
		Result:  ir.TempID(1),
		Type:    ir.Type{SizeWords: 2, IsPointer: true},
		Pointer: globalPointer(),
	}
	insts, err := low.LowerLoad(inst)
	require.NoError(t, err)

	var loadCount int
	for _, in := range insts {
		if _, ok := in.(asm.Load); ok {
			loadCount++
		}
	}
	assert.Equal(t, 2, loadCount, "loading a pointer-typed value must also load its bank word")

	_, ok := low.mgr.LookupPointerBank(low.naming.TempName(ir.TempID(1)))
	assert.True(t, ok, "the loaded pointer's bank info must be tracked for later use")
}

func TestLowerStoreScalarEmitsSingleStore(t *testing.T) {
	low := testLower("f")
	inst := ir.Instruction{
		Op:      ir.OpStore,
		Type:    ir.Type{SizeWords: 1},
		Pointer: globalPointer(),
		Stored:  ir.ConstantValue(7),
	}
	insts, err := low.LowerStore(inst)
	require.NoError(t, err)

	var stores []asm.Store
	for _, in := range insts {
		if st, ok := in.(asm.Store); ok {
			stores = append(stores, st)
		}
	}
	require.Len(t, stores, 1)
	assert.Equal(t, asm.GP, stores[0].Bank)
}

func TestLowerStoreFatPointerEmitsBankWordStore(t *testing.T) {
	low := testLower("f")
	storedPtr := ir.FatPtrValue(ir.FatPointer{Addr: ir.ConstantValue(42), Bank: ir.BankStack})
	inst := ir.Instruction{
		Op:      ir.OpStore,
		Type:    ir.Type{SizeWords: 2, IsPointer: true},
		Pointer: globalPointer(),
		Stored:  storedPtr,
	}
	insts, err := low.LowerStore(inst)
	require.NoError(t, err)

	var storeCount int
	for _, in := range insts {
		if _, ok := in.(asm.Store); ok {
			storeCount++
		}
	}
	assert.Equal(t, 2, storeCount, "storing a fat pointer must also store its bank word")
}

func TestLowerLoadOfTempPointerWithoutTrackedInfoErrors(t *testing.T) {
	low := testLower("f")
	inst := ir.Instruction{
		Op:      ir.OpLoad,
		Result:  ir.TempID(1),
		Type:    ir.Type{SizeWords: 1},
		Pointer: ir.TempValue(ir.TempID(5)),
	}
	_, err := low.LowerLoad(inst)
	assert.Error(t, err, "a temp pointer with no tracked bank info must be reported, not silently defaulted")
}
