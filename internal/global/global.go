// Package global implements the Global Manager: a two-pass bump
// allocator over bank 0 (allocate every global's address first, then
// lower every initializer, so cross-global pointer initializers can
// always find their target's final address) plus the initializer
// lowering itself. Spec.md section 4.6.
//
// Grounded on the original backend's globals::GlobalManager
// (rcc-backend/src/globals.rs).
package global

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

// Info records one global's final address and size within bank 0.
type Info struct {
	Address int
	Size    int
}

// Manager allocates and lowers every global in a module. Its allocation
// table must be fully populated (via AllocateAll) before LowerInitializers
// is called, so that pointer-to-global initializers can resolve their
// target regardless of declaration order.
type Manager struct {
	log         *logrus.Entry
	allocations map[string]Info
	nextAddress int
}

// New creates an empty Manager.
func New(log *logrus.Entry) *Manager {
	return &Manager{log: log, allocations: make(map[string]Info)}
}

// AllocateGlobal reserves g's words at the next free address and records
// its Info.
func (m *Manager) AllocateGlobal(g *ir.Global) Info {
	size := g.Type.SizeInWords()
	info := Info{Address: m.nextAddress, Size: size}
	m.nextAddress += size
	m.allocations[g.Name] = info
	m.log.Debugf("allocated global %q at address %d (size %d words)", g.Name, info.Address, size)
	return info
}

// AllocateAll runs AllocateGlobal over every global in module order. This
// must complete before any call to LowerInitializers (spec.md section
// 4.6's two-pass invariant).
func (m *Manager) AllocateAll(globals []*ir.Global) {
	for _, g := range globals {
		m.AllocateGlobal(g)
	}
}

// GlobalInfo returns the allocation info for name, if known.
func (m *Manager) GlobalInfo(name string) (Info, bool) {
	info, ok := m.allocations[name]
	return info, ok
}

// AllAllocations returns every recorded allocation, keyed by name.
func (m *Manager) AllAllocations() map[string]Info {
	return m.allocations
}

// LowerGlobalInit returns the instructions that initialize g, given its
// already-computed Info. Must only be called after AllocateAll.
func (m *Manager) LowerGlobalInit(g *ir.Global, info Info) []asm.Inst {
	if !g.HasInit {
		return []asm.Inst{asm.Comment{Text: fmt.Sprintf("uninitialized global %s", g.Name)}}
	}

	if g.Initializer.Kind == ir.KindConstantArray {
		return m.lowerArrayInit(g, g.Initializer.Array, info.Address)
	}
	return m.lowerSingleValueInit(g, g.Initializer, info.Address)
}

// LowerInitializers runs LowerGlobalInit over every global in module
// order, returning the concatenated instruction stream.
func (m *Manager) LowerInitializers(globals []*ir.Global) ([]asm.Inst, error) {
	var out []asm.Inst
	for _, g := range globals {
		info, ok := m.GlobalInfo(g.Name)
		if !ok {
			return nil, errors.Errorf("global %q lowered before being allocated", g.Name)
		}
		out = append(out, m.LowerGlobalInit(g, info)...)
	}
	return out, nil
}

func (m *Manager) lowerArrayInit(g *ir.Global, values []int64, address int) []asm.Inst {
	var insts []asm.Inst

	if comment, ok := stringComment(values, address); ok {
		insts = append(insts, asm.Comment{Text: comment})
	} else {
		insts = append(insts, asm.Comment{Text: fmt.Sprintf("array %s at address %d", g.Name, address)})
	}

	addr := address
	for _, value := range values {
		insts = append(insts,
			asm.Li{Dst: asm.T0, Imm: value},
			asm.Li{Dst: asm.T1, Imm: int64(addr)},
			asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
		)
		addr++
	}
	return insts
}

// stringComment reports whether values looks like a NUL-terminated ASCII
// string (every value but a trailing 0 is in the ASCII range 0..127), and
// if so renders it as a comment with non-printable characters escaped. Grounded on globals.rs's
// is_likely_string heuristic.
func stringComment(values []int64, address int) (string, bool) {
	if len(values) == 0 || values[len(values)-1] != 0 {
		return "", false
	}
	body := values[:len(values)-1]
	for _, v := range body {
		if v < 0 || v > 127 {
			return "", false
		}
	}

	var escaped []byte
	for _, v := range body {
		c := byte(v)
		switch c {
		case '\n':
			escaped = append(escaped, '\\', 'n')
		case '\t':
			escaped = append(escaped, '\\', 't')
		case '\r':
			escaped = append(escaped, '\\', 'r')
		case '\\':
			escaped = append(escaped, '\\', '\\')
		default:
			if c >= 0x20 && c < 0x7f {
				escaped = append(escaped, c)
			} else {
				escaped = append(escaped, []byte(fmt.Sprintf("\\x%02x", c))...)
			}
		}
	}
	return fmt.Sprintf("string data %q at address %d", string(escaped), address), true
}

func (m *Manager) lowerSingleValueInit(g *ir.Global, init ir.Value, address int) []asm.Inst {
	insts := []asm.Inst{asm.Comment{Text: fmt.Sprintf("global variable: %s at address %d", g.Name, address)}}

	switch init.Kind {
	case ir.KindConstant:
		if g.Type.SizeWords >= 2 {
			low := init.Constant & 0xFFFF
			high := (init.Constant >> 16) & 0xFFFF
			insts = append(insts,
				asm.Li{Dst: asm.T0, Imm: low},
				asm.Li{Dst: asm.T1, Imm: int64(address)},
				asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
				asm.Li{Dst: asm.T0, Imm: high},
				asm.Li{Dst: asm.T1, Imm: int64(address + 1)},
				asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
			)
		} else {
			insts = append(insts,
				asm.Li{Dst: asm.T0, Imm: init.Constant},
				asm.Li{Dst: asm.T1, Imm: int64(address)},
				asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
			)
		}

	case ir.KindFatPtr:
		insts = append(insts, m.lowerFatPtrInit(g, init.FatPtr, address)...)

	default:
		panic(fmt.Sprintf("global: %s: unsupported initializer kind %v", g.Name, init.Kind))
	}

	return insts
}

func (m *Manager) lowerFatPtrInit(g *ir.Global, fp ir.FatPointer, address int) []asm.Inst {
	switch fp.Addr.Kind {
	case ir.KindGlobal:
		target, ok := m.GlobalInfo(fp.Addr.Global)
		if !ok {
			panic(fmt.Sprintf("global %q: pointer initializer references undefined global %q", g.Name, fp.Addr.Global))
		}
		m.log.Debugf("global %q: pointer to global %q at address %d", g.Name, fp.Addr.Global, target.Address)
		return []asm.Inst{
			asm.Comment{Text: fmt.Sprintf("pointer to global %s", fp.Addr.Global)},
			asm.Li{Dst: asm.T0, Imm: int64(target.Address)},
			asm.Li{Dst: asm.T1, Imm: int64(address)},
			asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
			asm.Binary{Mnemonic: asm.MAdd, Dst: asm.T0, Lhs: asm.GP, Rhs: asm.R0},
			asm.Li{Dst: asm.T1, Imm: int64(address + 1)},
			asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
		}

	case ir.KindConstant:
		bankSrc := asm.GP
		if fp.Bank == ir.BankStack {
			bankSrc = asm.SB
		}
		return []asm.Inst{
			asm.Li{Dst: asm.T0, Imm: fp.Addr.Constant},
			asm.Li{Dst: asm.T1, Imm: int64(address)},
			asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
			asm.Binary{Mnemonic: asm.MAdd, Dst: asm.T0, Lhs: bankSrc, Rhs: asm.R0},
			asm.Li{Dst: asm.T1, Imm: int64(address + 1)},
			asm.Store{Val: asm.T0, Bank: asm.GP, Addr: asm.T1},
		}

	default:
		panic(fmt.Sprintf("global %q: unsupported fat pointer address kind %v", g.Name, fp.Addr.Kind))
	}
}
