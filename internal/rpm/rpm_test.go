package rpm

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestGetRegisterPrefersCalleeSavedFirst(t *testing.T) {
	m := New(testLog())
	reg := m.GetRegister("a")
	assert.Equal(t, asm.S3, reg, "S3 must be handed out before any caller-saved register")
}

func TestGetRegisterReturnsSameRegisterForSameValue(t *testing.T) {
	m := New(testLog())
	first := m.GetRegister("a")
	second := m.GetRegister("a")
	assert.Equal(t, first, second)
}

func TestGetRegisterExhaustionSpillsOldestUnpinnedInCanonicalOrder(t *testing.T) {
	m := New(testLog())
	m.InitStackBank()

	names := make([]string, len(asm.Allocatable))
	for i := range asm.Allocatable {
		names[i] = string(rune('a' + i))
		m.GetRegister(names[i])
	}
	m.TakeInstructions()

	// All 12 allocatable registers are now in use; requesting a 13th must
	// spill the first in canonical order (S3, since nothing is pinned).
	reg := m.GetRegister("overflow")
	assert.Equal(t, asm.S3, reg)

	insts := m.TakeInstructions()
	require.NotEmpty(t, insts, "spilling must emit address-compute + store instructions")
	_, ok := insts[len(insts)-1].(asm.Store)
	assert.True(t, ok, "last emitted instruction on spill must be a Store")
}

func TestPinPreventsSpillSelection(t *testing.T) {
	m := New(testLog())
	m.InitStackBank()

	for i := range asm.Allocatable {
		name := string(rune('a' + i))
		reg := m.GetRegister(name)
		if reg == asm.S3 {
			m.Pin(name)
		}
	}
	m.TakeInstructions()

	reg := m.GetRegister("overflow")
	assert.NotEqual(t, asm.S3, reg, "a pinned value's register must never be chosen as a spill victim")
}

func TestUsedCalleeSavedOnlyTracksCalleeSavedRegisters(t *testing.T) {
	m := New(testLog())
	m.GetRegister("a") // S3: callee-saved
	assert.Equal(t, []asm.Reg{asm.S3}, m.UsedCalleeSaved())
}

func TestBindValueToRegisterRemovesFromFreeList(t *testing.T) {
	m := New(testLog())
	m.BindValueToRegister(asm.S3, "bound")
	reg := m.GetRegister("bound")
	assert.Equal(t, asm.S3, reg)

	// Next allocation must not also hand out S3.
	reg2 := m.GetRegister("other")
	assert.NotEqual(t, asm.S3, reg2)
}

func TestFreeRegisterReturnsToFreeListInCanonicalPosition(t *testing.T) {
	m := New(testLog())
	m.GetRegister("a") // S3
	m.FreeRegister(asm.S3)
	reg := m.GetRegister("b")
	assert.Equal(t, asm.S3, reg, "freed register must be reused before moving to the next in canonical order")
}

func TestPointerBankRoundTrip(t *testing.T) {
	m := New(testLog())
	m.SetPointerBank("p", GlobalBank())
	info, ok := m.LookupPointerBank("p")
	require.True(t, ok)
	assert.Equal(t, BankGlobal, info.Kind)
	assert.Equal(t, asm.GP, m.GetPointerBank("p"))
}

func TestGetPointerBankOnNamedValuePanics(t *testing.T) {
	m := New(testLog())
	m.SetPointerBank("p", NamedValueBank("bank_word"))
	assert.Panics(t, func() { m.GetPointerBank("p") })
}

func TestSpillAllClearsEveryResidentRegister(t *testing.T) {
	m := New(testLog())
	m.InitStackBank()
	m.GetRegister("a")
	m.GetRegister("b")
	m.TakeInstructions()

	m.SpillAll()
	insts := m.TakeInstructions()
	assert.NotEmpty(t, insts)

	// Both values must now be re-allocatable to their prior registers.
	reg := m.GetRegister("a")
	assert.Equal(t, asm.S3, reg)
}
