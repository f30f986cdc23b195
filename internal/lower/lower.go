// Package lower translates one function's IR instructions into Ripple VM
// assembly, instruction by instruction. Spec.md section 4.5.
//
// Grounded throughout on the original backend's v2::instr module (read
// via rcc-backend/src/instr/helpers.rs, rcc-backend/src/v2/instr/
// inline_asm.rs, store.rs and their gep_tests.rs), generalized from its
// free-function style into methods on Lowerer so state (the register
// manager, naming generator, global manager) does not need to be threaded
// through every call by hand.
package lower

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ripplecc/internal/asm"
	"ripplecc/internal/global"
	"ripplecc/internal/ir"
	"ripplecc/internal/naming"
	"ripplecc/internal/rpm"
)

// Lowerer holds the per-function state instruction lowering consults:
// the register pressure manager, the naming generator, and a read-only
// handle to the module's global manager for resolving Value.Global.
type Lowerer struct {
	log      *logrus.Entry
	mgr      *rpm.Manager
	naming   *naming.Generator
	globals  *global.Manager
	funcName string
}

// New creates a Lowerer for the function named funcName.
func New(funcName string, mgr *rpm.Manager, nam *naming.Generator, globals *global.Manager, log *logrus.Entry) *Lowerer {
	return &Lowerer{log: log, mgr: mgr, naming: nam, globals: globals, funcName: funcName}
}

// BlockLabel formats the label for blockID within this Lowerer's function.
func (l *Lowerer) BlockLabel(blockID int) string {
	return l.naming.BlockLabel(l.funcName, blockID)
}

// EpilogueLabel formats this Lowerer's function's one shared epilogue
// label, the target every lowered return branches to.
func (l *Lowerer) EpilogueLabel() string {
	return l.naming.EpilogueLabel(l.funcName)
}

// TempName returns the stable naming key for temp t.
func (l *Lowerer) TempName(t ir.TempID) string {
	return l.naming.TempName(t)
}

// Canonicalize resolves any Value::Global reference within v to a FatPtr
// via the global manager, the way every value must be canonicalized
// before it reaches the rest of instruction lowering. Spec.md section
// 4.5's invariant that KindGlobal never reaches a lowering routine
// directly.
func (l *Lowerer) Canonicalize(v ir.Value) (ir.Value, error) {
	switch v.Kind {
	case ir.KindGlobal:
		return l.resolveGlobalToFatPtr(v.Global)
	case ir.KindFatPtr:
		if v.FatPtr.Addr.Kind == ir.KindGlobal {
			info, ok := l.globals.GlobalInfo(v.FatPtr.Addr.Global)
			if !ok {
				return ir.Value{}, errors.Errorf("unknown global variable in fat pointer: %s", v.FatPtr.Addr.Global)
			}
			return ir.FatPtrValue(ir.FatPointer{
				Addr: ir.ConstantValue(int64(info.Address)),
				Bank: v.FatPtr.Bank,
			}), nil
		}
		return v, nil
	case ir.KindFunction:
		return ir.Value{}, errors.Errorf("function pointers are not supported: %s", v.Function)
	default:
		return v, nil
	}
}

func (l *Lowerer) resolveGlobalToFatPtr(name string) (ir.Value, error) {
	info, ok := l.globals.GlobalInfo(name)
	if !ok {
		return ir.Value{}, errors.Errorf("unknown global variable: %s", name)
	}
	return ir.FatPtrValue(ir.FatPointer{
		Addr: ir.ConstantValue(int64(info.Address)),
		Bank: ir.BankGlobal,
	}), nil
}

// GetValueRegister returns a register holding v, canonicalizing and
// materializing constants as needed.
func (l *Lowerer) GetValueRegister(v ir.Value) (asm.Reg, []asm.Inst, error) {
	cv, err := l.Canonicalize(v)
	if err != nil {
		return 0, nil, err
	}
	switch cv.Kind {
	case ir.KindTemp:
		return l.mgr.Reload(l.naming.TempName(cv.Temp)), l.mgr.TakeInstructions(), nil
	case ir.KindConstant:
		name := l.naming.ConstValue(cv.Constant)
		reg := l.mgr.GetRegister(name)
		insts := l.mgr.TakeInstructions()
		insts = append(insts, asm.Li{Dst: reg, Imm: cv.Constant})
		return reg, insts, nil
	case ir.KindFatPtr:
		return l.GetValueRegister(cv.FatPtr.Addr)
	case ir.KindUndef:
		panic("lower: cannot use undefined value in instruction")
	default:
		return 0, nil, errors.Errorf("lower: unsupported value kind %v for register materialization", cv.Kind)
	}
}

// CalculateValueNeed estimates the number of registers v will consume,
// without allocating any (used by callers sizing ahead of a batch of
// materializations, e.g. calling convention argument planning).
func CalculateValueNeed(v ir.Value) int {
	switch v.Kind {
	case ir.KindConstant, ir.KindTemp, ir.KindFunction:
		return 1
	case ir.KindFatPtr:
		return 2
	case ir.KindConstantArray, ir.KindUndef:
		return 0
	default:
		panic(fmt.Sprintf("lower: CalculateValueNeed: unhandled kind %v", v.Kind))
	}
}
