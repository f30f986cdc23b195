package cc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
)

func TestNewFrameWithNoLocalsIsTrivial(t *testing.T) {
	f := NewFrame(0)
	assert.True(t, f.IsTrivial())
	assert.Empty(t, f.GenPrologue())
	assert.Equal(t, []asm.Inst{asm.Ret{}}, f.GenEpilogue())
}

func TestNewFrameWithLocalsNeedsFramePointer(t *testing.T) {
	f := NewFrame(4)
	assert.True(t, f.NeedsFramePtr)
	assert.False(t, f.IsTrivial())
	assert.NotEmpty(t, f.GenPrologue())
}

func TestSetHasCallsAddsRaRabToFrameSize(t *testing.T) {
	f := NewFrame(0)
	before := f.TotalSize
	f.SetHasCalls(true)
	assert.Equal(t, before+2, f.TotalSize)
}

func TestAddSavedRegIsIdempotent(t *testing.T) {
	f := NewFrame(0)
	f.AddSavedReg(asm.S0)
	size1 := f.TotalSize
	f.AddSavedReg(asm.S0)
	assert.Equal(t, size1, f.TotalSize, "adding the same saved register twice must not grow the frame")
	assert.Len(t, f.SavedRegs, 1)
}

func TestGenPrologueAndEpilogueAreMirrorImages(t *testing.T) {
	f := NewFrame(2)
	f.SetHasCalls(true)
	f.AddSavedReg(asm.S0)

	prologue := f.GenPrologue()
	epilogue := f.GenEpilogue()
	require.NotEmpty(t, prologue)
	require.NotEmpty(t, epilogue)

	last := epilogue[len(epilogue)-1]
	_, ok := last.(asm.Ret)
	assert.True(t, ok, "epilogue must end in Ret")

	var saved, restored []asm.Reg
	for _, in := range prologue {
		if st, ok := in.(asm.Store); ok {
			saved = append(saved, st.Val)
		}
	}
	for _, in := range epilogue {
		if ld, ok := in.(asm.Load); ok {
			restored = append(restored, ld.Dst)
		}
	}
	assert.Equal(t, []asm.Reg{asm.FP, asm.RA, asm.RAB, asm.S0}, saved)
	assert.Equal(t, []asm.Reg{asm.S0, asm.RAB, asm.RA, asm.FP}, restored, "epilogue must restore in reverse save order")
}

func TestGenCallMovesMismatchedArgIntoParamSlot(t *testing.T) {
	f := &Frame{}
	code, err := f.GenCall("callee", []asm.Reg{asm.T0})
	require.NoError(t, err)

	var sawMove, sawJal bool
	for _, in := range code {
		if mv, ok := in.(asm.Move); ok {
			sawMove = true
			assert.Equal(t, asm.A0, mv.Dst)
			assert.Equal(t, asm.T0, mv.Src)
		}
		if jal, ok := in.(asm.Jal); ok {
			sawJal = true
			assert.Equal(t, "callee", jal.Target)
		}
	}
	assert.True(t, sawMove)
	assert.True(t, sawJal)
}

func TestGenCallSkipsMoveWhenArgAlreadyInParamSlot(t *testing.T) {
	f := &Frame{}
	code, err := f.GenCall("callee", []asm.Reg{asm.A0})
	require.NoError(t, err)

	for _, in := range code {
		if _, ok := in.(asm.Move); ok {
			t.Fatalf("an argument already in its parameter register must not be moved: %v", code)
		}
	}
}

func TestGenCallRejectsTooManyArgs(t *testing.T) {
	f := &Frame{}
	tooMany := make([]asm.Reg, MaxRegParams+1)
	_, err := f.GenCall("callee", tooMany)
	assert.ErrorIs(t, err, ErrTooManyParameters)
}
