package cc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
)

func TestPlanArgsAllScalarsFitInRegisters(t *testing.T) {
	plan := PlanArgs([]bool{false, false})
	require.Len(t, plan.Slots, 2)
	assert.Equal(t, []Slot{{InRegister: true, Reg: asm.A0}}, plan.Slots[0])
	assert.Equal(t, []Slot{{InRegister: true, Reg: asm.A1}}, plan.Slots[1])
	assert.Equal(t, 0, plan.StackWords)
}

func TestPlanArgsFatPointerConsumesTwoSlotsAtomically(t *testing.T) {
	plan := PlanArgs([]bool{true})
	require.Len(t, plan.Slots[0], 2)
	assert.Equal(t, asm.A0, plan.Slots[0][0].Reg)
	assert.Equal(t, asm.A1, plan.Slots[0][1].Reg)
}

func TestPlanArgsOverflowCascadesAllLaterArgsToStack(t *testing.T) {
	// Three scalars (A0, A1, A2) then a fat pointer: it needs two slots
	// but only one register (A3) remains, so BOTH halves spill, and the
	// scalar args already placed stay where they are, but anything after
	// the fat pointer must cascade to the stack even if it would
	// numerically fit.
	plan := PlanArgs([]bool{false, false, false, true, false})

	assert.True(t, plan.Slots[0][0].InRegister)
	assert.True(t, plan.Slots[1][0].InRegister)
	assert.True(t, plan.Slots[2][0].InRegister)

	require.Len(t, plan.Slots[3], 2)
	assert.False(t, plan.Slots[3][0].InRegister)
	assert.False(t, plan.Slots[3][1].InRegister)
	assert.Equal(t, 0, plan.Slots[3][0].StackIndex)
	assert.Equal(t, 1, plan.Slots[3][1].StackIndex)

	assert.False(t, plan.Slots[4][0].InRegister, "argument after a spilled fat pointer must cascade to the stack")
	assert.Equal(t, 2, plan.Slots[4][0].StackIndex)

	assert.Equal(t, 3, plan.StackWords)
}

func TestParamRegRejectsOutOfRangeSlot(t *testing.T) {
	_, err := ParamReg(MaxRegParams)
	assert.ErrorIs(t, err, ErrTooManyParameters)
}

func TestStackArgOffsetStartsBelowSavedTriple(t *testing.T) {
	assert.Equal(t, int16(-3), StackArgOffset(0))
	assert.Equal(t, int16(-4), StackArgOffset(1))
}
