// Package rpm implements the Register Pressure Manager: the single
// stateful component that tracks which tracked value (by name) currently
// lives in which register, spills/reloads values across the stack bank
// when registers run out, and tracks each pointer value's bank
// separately from its address. Spec.md section 4.2.
//
// Grounded on the original backend's regmgmt::allocator::RegAllocV2
// (rcc-backend/src/regmgmt/allocator.rs). The original selects a spill
// victim via Rust HashMap iteration order, which that codebase does not
// promise is stable; spec.md's determinism property (section 8, property
// 6) rules that out here, so Manager instead walks registers in the
// fixed order registers were defined (spec.md section 3) and picks the
// first in-use, unpinned one — byte-identical across runs by construction.
package rpm

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"ripplecc/internal/asm"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Manager is one function's register and spill-slot bookkeeping. A fresh
// Manager must be created per function.
type Manager struct {
	log *logrus.Entry

	// freeList holds unallocated registers, next-to-allocate last (mirrors
	// the original's pop()-from-end free list over the same fixed order).
	freeList []asm.Reg

	// regOf maps a register to the value name it currently holds; absence
	// means the register is free. Spilling and lookups walk the fixed
	// asm.Allocatable order (see package doc) rather than map iteration
	// order.
	regOf map[asm.Reg]string

	spillSlots       map[string]int16
	nextSpillOffset  int16

	instructions []asm.Inst

	lastSpilled      string
	lastSpilledValid bool
	lastSpilledOff   int16

	pinned map[string]bool

	sbInitialized bool

	pointerBanks map[string]BankInfo

	usedCalleeSaved map[asm.Reg]bool
}

// ---------------------
// ----- Functions -----
// ---------------------

// New creates a Manager with the 12 allocatable registers free.
func New(log *logrus.Entry) *Manager {
	m := &Manager{
		log:             log,
		regOf:           make(map[asm.Reg]string),
		spillSlots:      make(map[string]int16),
		pinned:          make(map[string]bool),
		pointerBanks:    make(map[string]BankInfo),
		usedCalleeSaved: make(map[asm.Reg]bool),
	}
	m.resetFreeList()
	return m
}

// resetFreeList rebuilds freeList as the reverse of asm.Allocatable, so
// that popping from the end (in GetRegister) yields S3 first, matching
// the original's preference for callee-saved registers.
func (m *Manager) resetFreeList() {
	n := len(asm.Allocatable)
	m.freeList = make([]asm.Reg, n)
	for i, r := range asm.Allocatable {
		m.freeList[n-1-i] = r
	}
}

func (m *Manager) emit(in asm.Inst) {
	m.instructions = append(m.instructions, in)
}

// InitStackBank marks SB as ready for use; it is the function
// prologue's (or the program's crt0 entry's) job to have actually loaded
// it, the Manager only needs to know it may now reference it.
func (m *Manager) InitStackBank() {
	if !m.sbInitialized {
		m.sbInitialized = true
		m.log.Debug("stack bank marked initialized")
	}
}

// GetPointerBank returns the concrete register to use for ptrValue's
// bank, resolving straightforward cases (Global/Stack/Register) directly.
// A BankNamedValue entry is a programmer error to pass here: callers must
// resolve Dynamic banks via the lowering package's runtime tag-check
// synthesis (spec.md section 4.5), which consults pointerBanks itself.
func (m *Manager) GetPointerBank(ptrValue string) asm.Reg {
	info, ok := m.pointerBanks[ptrValue]
	if !ok {
		m.log.Debugf("no bank info for %q, defaulting to stack", ptrValue)
		m.requireStackBank()
		return asm.SB
	}
	switch info.Kind {
	case BankGlobal:
		return asm.GP
	case BankStack:
		m.requireStackBank()
		return asm.SB
	case BankRegister:
		return info.Reg
	case BankNamedValue:
		panic(fmt.Sprintf("rpm: GetPointerBank(%q): named-value bank %q requires runtime resolution, not direct lookup", ptrValue, info.Named))
	default:
		panic(fmt.Sprintf("rpm: GetPointerBank(%q): unhandled bank kind %v", ptrValue, info.Kind))
	}
}

func (m *Manager) requireStackBank() {
	if !m.sbInitialized {
		panic("rpm: stack bank accessed before InitStackBank")
	}
}

// SetPointerBank records bank info for a pointer value, keyed by the
// naming package's stable key for that value.
func (m *Manager) SetPointerBank(ptrValue string, bank BankInfo) {
	m.log.Debugf("set bank info for %q: %s", ptrValue, bank)
	m.pointerBanks[ptrValue] = bank
}

// LookupPointerBank returns the raw bank info for ptrValue, for callers
// (lowering's runtime tag-check synthesis) that must distinguish
// BankNamedValue from the concrete cases themselves.
func (m *Manager) LookupPointerBank(ptrValue string) (BankInfo, bool) {
	info, ok := m.pointerBanks[ptrValue]
	return info, ok
}

// GetRegister returns a register currently holding forValue, allocating
// one (spilling a victim if necessary) if it is not already resident.
func (m *Manager) GetRegister(forValue string) asm.Reg {
	if reg, ok := m.findHolder(forValue); ok {
		return reg
	}

	if n := len(m.freeList); n > 0 {
		reg := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		if asm.IsCalleeSaved(reg) {
			m.usedCalleeSaved[reg] = true
		}
		m.regOf[reg] = forValue
		m.log.Debugf("allocated %s for %q (was free)", reg, forValue)
		return reg
	}

	victim, victimValue := m.selectVictim()
	m.log.Debugf("spilling %q from %s to make room for %q", victimValue, victim, forValue)
	delete(m.regOf, victim)

	offset := m.spillSlot(victimValue)
	m.requireStackBankInit()

	m.emit(asm.Comment{Text: fmt.Sprintf("spilling %s to FP+%d", victimValue, offset)})
	m.emit(asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SC, Src: asm.FP, Imm: int64(offset)})
	m.emit(asm.Store{Val: victim, Bank: asm.SB, Addr: asm.SC})

	m.lastSpilled, m.lastSpilledValid, m.lastSpilledOff = victimValue, true, offset

	m.regOf[victim] = forValue
	return victim
}

func (m *Manager) requireStackBankInit() {
	if !m.sbInitialized {
		m.InitStackBank()
	}
}

func (m *Manager) findHolder(value string) (asm.Reg, bool) {
	for _, r := range asm.Allocatable {
		if v, ok := m.regOf[r]; ok && v == value {
			return r, true
		}
	}
	return 0, false
}

// selectVictim walks registers in the fixed allocation order (spec.md
// determinism property 6) and returns the first in-use, unpinned one.
func (m *Manager) selectVictim() (asm.Reg, string) {
	for _, r := range asm.Allocatable {
		v, ok := m.regOf[r]
		if !ok {
			continue
		}
		if m.pinned[v] {
			continue
		}
		return r, v
	}
	panic("rpm: no spillable registers")
}

// Reload returns a register holding value, reloading it from its spill
// slot if it was spilled and is not already resident.
func (m *Manager) Reload(value string) asm.Reg {
	if reg, ok := m.findHolder(value); ok {
		return reg
	}

	if offset, ok := m.spillSlots[value]; ok {
		m.log.Debugf("reloading %q from FP+%d", value, offset)
		reg := m.GetRegister(value)
		m.requireStackBankInit()

		m.emit(asm.Comment{Text: fmt.Sprintf("reloading %s from FP+%d", value, offset)})
		m.emit(asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SC, Src: asm.FP, Imm: int64(offset)})
		m.emit(asm.Load{Dst: reg, Bank: asm.SB, Addr: asm.SC})
		return reg
	}

	return m.GetRegister(value)
}

// BindValueToRegister records that reg already holds value (e.g. a
// freshly loaded parameter), without emitting any instructions.
func (m *Manager) BindValueToRegister(reg asm.Reg, value string) {
	m.log.Debugf("binding %s to %q", reg, value)
	m.regOf[reg] = value
	m.freeList = removeReg(m.freeList, reg)
}

// FreeRegister releases reg back to the free list in its canonical
// position, if it is one of the allocatable registers.
func (m *Manager) FreeRegister(reg asm.Reg) {
	if !isAllocatable(reg) {
		return
	}
	delete(m.regOf, reg)
	if containsReg(m.freeList, reg) {
		return
	}
	m.freeList = insertInCanonicalOrder(m.freeList, reg)
}

// Pin prevents value from being chosen as a spill victim until Unpin.
func (m *Manager) Pin(value string) { m.pinned[value] = true }

// Unpin reverses Pin.
func (m *Manager) Unpin(value string) { delete(m.pinned, value) }

// ClearPins releases every pin, used at statement boundaries.
func (m *Manager) ClearPins() { m.pinned = make(map[string]bool) }

// FreeTemporaries releases every register binding, used at statement
// boundaries since every live value is addressable via the stack between
// statements.
func (m *Manager) FreeTemporaries() {
	m.log.Debug("freeing all temporaries")
	m.regOf = make(map[asm.Reg]string)
	m.resetFreeList()
}

func (m *Manager) spillSlot(value string) int16 {
	if off, ok := m.spillSlots[value]; ok {
		return off
	}
	off := m.nextSpillOffset
	m.nextSpillOffset++
	m.spillSlots[value] = off
	m.log.Debugf("allocated spill slot for %q at FP+%d", value, off)
	return off
}

// SetSpillBase sets the first offset spill slots are allocated from,
// letting the function builder reserve room below them for locals.
func (m *Manager) SetSpillBase(offset int16) { m.nextSpillOffset = offset }

// TakeInstructions returns and clears the accumulated spill/reload
// instruction stream.
func (m *Manager) TakeInstructions() []asm.Inst {
	out := m.instructions
	m.instructions = nil
	return out
}

// TakeLastSpilled returns the most recently spilled value's name and
// offset, if any has occurred since the last call.
func (m *Manager) TakeLastSpilled() (value string, offset int16, ok bool) {
	if !m.lastSpilledValid {
		return "", 0, false
	}
	value, offset = m.lastSpilled, m.lastSpilledOff
	m.lastSpilledValid = false
	return value, offset, true
}

// IsTracked reports whether value currently lives in a register or a
// spill slot.
func (m *Manager) IsTracked(value string) bool {
	if _, ok := m.findHolder(value); ok {
		return true
	}
	_, ok := m.spillSlots[value]
	return ok
}

// UsedCalleeSaved returns the callee-saved registers (S0-S3) allocated at
// least once, in ascending order, for the function builder's prologue.
func (m *Manager) UsedCalleeSaved() []asm.Reg {
	var out []asm.Reg
	for _, r := range asm.CalleeSaved {
		if m.usedCalleeSaved[r] {
			out = append(out, r)
		}
	}
	return out
}

// InvalidateAllocaBindings drops every register/spill binding whose
// value name satisfies isAllocaValue; codegen calls it at every basic
// block boundary after the first. Spec.md section 4.2.
func (m *Manager) InvalidateAllocaBindings(isAllocaValue func(string) bool) {
	for r, v := range m.regOf {
		if isAllocaValue(v) {
			delete(m.regOf, r)
			if !containsReg(m.freeList, r) {
				m.freeList = insertInCanonicalOrder(m.freeList, r)
			}
		}
	}
	for v := range m.spillSlots {
		if isAllocaValue(v) {
			delete(m.spillSlots, v)
		}
	}
}

// InvalidateGepBankBindings drops pointer-bank tracking for any value
// whose key matches isGepDerived; codegen calls it at every basic block
// boundary after the first.
func (m *Manager) InvalidateGepBankBindings(isGepDerived func(string) bool) {
	for k := range m.pointerBanks {
		if isGepDerived(k) {
			delete(m.pointerBanks, k)
		}
	}
}

// SpillAll forces every currently-resident value to its spill slot, used
// before a call to honor the caller-saved convention for T0-T7 and
// before an inline assembly block. Spec.md section 4.2/4.3.
func (m *Manager) SpillAll() {
	for _, r := range asm.Allocatable {
		v, ok := m.regOf[r]
		if !ok {
			continue
		}
		offset := m.spillSlot(v)
		m.requireStackBankInit()
		m.emit(asm.Comment{Text: fmt.Sprintf("spilling %s to FP+%d", v, offset)})
		m.emit(asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SC, Src: asm.FP, Imm: int64(offset)})
		m.emit(asm.Store{Val: r, Bank: asm.SB, Addr: asm.SC})
		delete(m.regOf, r)
		if !containsReg(m.freeList, r) {
			m.freeList = insertInCanonicalOrder(m.freeList, r)
		}
	}
}

// ----- small slice helpers over the fixed canonical register order -----

func isAllocatable(r asm.Reg) bool {
	return containsReg(asm.Allocatable[:], r)
}

func containsReg(s []asm.Reg, r asm.Reg) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}

func removeReg(s []asm.Reg, r asm.Reg) []asm.Reg {
	out := s[:0:0]
	for _, x := range s {
		if x != r {
			out = append(out, x)
		}
	}
	return out
}

// insertInCanonicalOrder re-inserts r into freeList so the list, read
// back-to-front, remains a subsequence of asm.Allocatable — preserving
// the original's pop()-from-end priority (S3 highest, T0 lowest).
func insertInCanonicalOrder(freeList []asm.Reg, r asm.Reg) []asm.Reg {
	rank := canonicalRank(r)
	idx := len(freeList)
	for i, x := range freeList {
		if canonicalRank(x) < rank {
			idx = i
			break
		}
	}
	out := make([]asm.Reg, 0, len(freeList)+1)
	out = append(out, freeList[:idx]...)
	out = append(out, r)
	out = append(out, freeList[idx:]...)
	return out
}

func canonicalRank(r asm.Reg) int {
	for i, x := range asm.Allocatable {
		if x == r {
			return i
		}
	}
	return len(asm.Allocatable)
}
