// Package codegen drives whole-module code generation: it allocates and
// lowers globals, then lowers every function's basic blocks in turn (each
// function through its own Lowerer, register manager, naming generator,
// and function builder) and concatenates the result into one assembly
// stream. Spec.md section 4.
//
// Grounded on the original backend's top-level module driver plus, for
// the optional parallel-functions path, vslc's GenRiscv worker-pool
// pattern (hhramberg-go-vslc/src/backend/riscv/riscv.go): a fixed pool
// of goroutines each claim a contiguous slice of functions, guarding a
// shared error slice with a mutex, synchronised by a WaitGroup.
package codegen

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"ripplecc/internal/asm"
	"ripplecc/internal/cc"
	"ripplecc/internal/function"
	"ripplecc/internal/global"
	"ripplecc/internal/ir"
	"ripplecc/internal/lower"
	"ripplecc/internal/naming"
	"ripplecc/internal/rpm"
	"ripplecc/internal/util"
)

// Config gathers the module-wide parameters instruction lowering and
// frame layout consult.
type Config struct {
	BankSize      int   // Words per bank, for GEP bank-overflow synthesis.
	MemoryOffset  int   // Reserved low-memory size; carried only, global allocation starts at address 0 regardless.
	StartBank     int16 // Bank the module's entry point begins execution in (diagnostic only).
	MaxImmediate  int64 // Largest value an immediate-form instruction may encode.
	Threads       int   // >1 enables parallel per-function codegen.
}

// DefaultConfig mirrors the reference assembler's default machine
// parameters (spec.md section 2).
func DefaultConfig() Config {
	return Config{BankSize: 4096, MemoryOffset: 0, StartBank: 0, MaxImmediate: 32767, Threads: 1}
}

// Result is the output of compiling one module.
type Result struct {
	Instructions []asm.Inst
	Globals      map[string]global.Info
}

// Module lowers every global and every function of m, returning the
// concatenated instruction stream in module order (globals first, then
// functions in declaration order).
func Module(m *ir.Module, cfg Config, log *logrus.Entry) (*Result, error) {
	globals := global.New(log.WithField("component", "globals"))
	globals.AllocateAll(m.Globals)

	var out []asm.Inst
	globalCode, err := globals.LowerInitializers(m.Globals)
	if err != nil {
		return nil, fmt.Errorf("codegen: lowering globals: %w", err)
	}
	out = append(out, globalCode...)

	funcCode, err := lowerFunctions(m.Functions, globals, cfg, log)
	if err != nil {
		return nil, err
	}
	out = append(out, funcCode...)

	return &Result{Instructions: out, Globals: globals.AllAllocations()}, nil
}

func lowerFunctions(fns []*ir.Function, globals *global.Manager, cfg Config, log *logrus.Entry) ([]asm.Inst, error) {
	if cfg.Threads <= 1 || len(fns) <= 1 {
		return lowerFunctionsSequential(fns, globals, cfg, log)
	}
	return lowerFunctionsParallel(fns, globals, cfg, log)
}

func lowerFunctionsSequential(fns []*ir.Function, globals *global.Manager, cfg Config, log *logrus.Entry) ([]asm.Inst, error) {
	var out []asm.Inst
	perr := util.NewPError(len(fns))
	for i, fn := range fns {
		code, err := lowerFunctionRecovered(fn, i, globals, cfg, log)
		if err != nil {
			perr.Append(err)
			continue
		}
		out = append(out, code...)
	}
	if perr.Len() > 0 {
		return nil, combineErrors(perr.Errors())
	}
	return out, nil
}

// lowerFunctionRecovered wraps Function with a panic recovery so that an
// internal invariant violation (spec.md section 7: bank info missing,
// illegal Function Builder transition, register exhaustion with
// everything pinned) in one function is reported as a regular error
// rather than taking down the whole compilation — the same reasoning
// that makes lowerFunctionsParallel run each worker's functions
// independently of the others.
func lowerFunctionRecovered(fn *ir.Function, ordinal int, globals *global.Manager, cfg Config, log *logrus.Entry) (code []asm.Inst, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function %q: panic: %v", fn.Name, r)
		}
	}()
	code, err = Function(fn, ordinal, globals, cfg, log)
	if err != nil {
		err = fmt.Errorf("function %q: %w", fn.Name, err)
	}
	return code, err
}

// lowerFunctionsParallel splits fns into cfg.Threads contiguous chunks,
// one worker goroutine per chunk, and reassembles output in original
// function order once every worker has finished. Grounded on vslc's
// GenRiscv worker-pool split (i1 += n, first `res` workers taking one
// extra job) and its mutex-guarded shared error slice.
func lowerFunctionsParallel(fns []*ir.Function, globals *global.Manager, cfg Config, log *logrus.Entry) ([]asm.Inst, error) {
	results := make([][]asm.Inst, len(fns))
	perr := util.NewPError(len(fns))

	threads := cfg.Threads
	l := len(fns)
	if threads > l {
		threads = l
	}
	n := l / threads
	res := l % threads

	var wg sync.WaitGroup
	i1 := 0
	for w := 0; w < threads && i1 < l; w++ {
		m := n
		if w < res {
			m++
		}
		start, end := i1, i1+m
		i1 = end

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for idx := start; idx < end; idx++ {
				fn := fns[idx]
				code, err := lowerFunctionRecovered(fn, idx, globals, cfg, log)
				if err != nil {
					perr.Append(err)
					continue
				}
				results[idx] = code
			}
		}(start, end)
	}
	wg.Wait()

	if perr.Len() > 0 {
		return nil, combineErrors(perr.Errors())
	}

	var out []asm.Inst
	for _, code := range results {
		out = append(out, code...)
	}
	return out, nil
}

func combineErrors(errs []error) error {
	msg := fmt.Sprintf("%d function(s) failed to lower:", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// Function lowers one function's basic blocks into assembly, building its
// frame from the computed locals size and register usage. ordinal seeds
// the function's naming generator deterministically (spec.md section 9
// design note: function ids come from ordinal position, not a shared
// atomic counter, so parallel codegen is reproducible).
func Function(fn *ir.Function, ordinal int, globals *global.Manager, cfg Config, log *logrus.Entry) ([]asm.Inst, error) {
	flog := log.WithField("function", fn.Name)

	localsSize, allocaOffsets := computeLocalSlots(fn)
	hasCalls := functionHasCalls(fn)

	// The prologue must save exactly the callee-saved registers the body
	// ends up using, but which those are is only known after lowering —
	// and the prologue is the very first thing lowering emits. Resolve
	// this with a throwaway discovery pass: lower the whole body once
	// against a disposable frame/builder purely to harvest
	// Manager.UsedCalleeSaved, then lower again for real with the frame's
	// saved-register set already fixed up front. Lowering is deterministic
	// given the same IR and config, so the discovery pass's register
	// assignments are reproduced exactly by the real pass.
	discoveryFrame := cc.NewFrame(int16(localsSize))
	discoveryFrame.SetHasCalls(hasCalls)
	discoveryMgr := rpm.New(flog)
	discoveryMgr.InitStackBank()
	discoveryMgr.SetSpillBase(int16(localsSize))
	if _, err := runBody(fn, ordinal, discoveryMgr, discoveryFrame, globals, allocaOffsets, cfg, flog); err != nil {
		return nil, err
	}

	frame := cc.NewFrame(int16(localsSize))
	frame.SetHasCalls(hasCalls)
	for _, reg := range discoveryMgr.UsedCalleeSaved() {
		frame.AddSavedReg(reg)
	}

	mgr := rpm.New(flog)
	mgr.InitStackBank()
	mgr.SetSpillBase(int16(localsSize))
	return runBody(fn, ordinal, mgr, frame, globals, allocaOffsets, cfg, flog)
}

// runBody lowers fn's basic blocks through a fresh Lowerer/Builder pair
// bound to mgr/frame, returning the built instruction stream. Used for
// both the discovery pass (register-usage harvesting, result discarded)
// and the real pass (result kept) — see the comment in Function.
func runBody(fn *ir.Function, ordinal int, mgr *rpm.Manager, frame *cc.Frame, globals *global.Manager, allocaOffsets map[ir.TempID]int16, cfg Config, log *logrus.Entry) ([]asm.Inst, error) {
	nam := naming.New(ordinal)
	low := lower.New(fn.Name, mgr, nam, globals, log)
	builder := function.New(frame, log)

	builder.BeginFunction()

	labelByBlock := make(map[int]string, len(fn.Blocks))
	for _, bb := range fn.Blocks {
		labelByBlock[bb.ID] = nam.BlockLabel(fn.Name, bb.ID)
	}

	allocaNames := allocaBindingNames(allocaOffsets, nam)
	gepNames := gepResultNames(fn, nam)

	for bi, bb := range fn.Blocks {
		if bi > 0 {
			builder.AddInstruction(asm.Label{Name: labelByBlock[bb.ID]})
			// A block reached by a back-edge (a loop header) may see
			// register/bank bindings from a different runtime path than
			// the one the linear lowering pass assumed when it last set
			// them; alloca- and GEP-derived bank registers must be
			// recomputed rather than trusted stale at every block
			// boundary. Spec.md section 3 Lifecycles / section 4.2.
			mgr.InvalidateAllocaBindings(func(v string) bool { return allocaNames[v] })
			mgr.InvalidateGepBankBindings(func(v string) bool { return gepNames[v] })
		}
		for _, inst := range bb.Insts {
			if err := lowerOneInstruction(low, builder, inst, allocaOffsets, cfg); err != nil {
				return nil, fmt.Errorf("block %d: %w", bb.ID, err)
			}
		}
	}

	builder.EndFunction(low.EpilogueLabel())
	return builder.Build(), nil
}

// allocaBindingNames returns the set of RPM value-tracking keys that
// belong to fn's alloca results, so their bindings can be dropped at
// every block boundary instead of trusted across a possible back-edge.
func allocaBindingNames(allocaOffsets map[ir.TempID]int16, nam *naming.Generator) map[string]bool {
	names := make(map[string]bool, len(allocaOffsets))
	for t := range allocaOffsets {
		names[nam.TempName(t)] = true
	}
	return names
}

// gepResultNames returns the set of RPM value-tracking keys that belong
// to fn's GetElementPtr results, the other binding kind that must not
// survive a block boundary unrefreshed.
func gepResultNames(fn *ir.Function, nam *naming.Generator) map[string]bool {
	names := make(map[string]bool)
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op == ir.OpGetElementPtr && inst.HasResult {
				names[nam.TempName(inst.Result)] = true
			}
		}
	}
	return names
}

func lowerOneInstruction(low *lower.Lowerer, builder *function.Builder, inst ir.Instruction, allocaOffsets map[ir.TempID]int16, cfg Config) error {
	switch inst.Op {
	case ir.OpAlloca:
		offset, ok := allocaOffsets[inst.Result]
		if !ok {
			return fmt.Errorf("alloca: no slot computed for result t%d", inst.Result)
		}
		builder.GetLocalAddress(offset)
		return nil

	case ir.OpLoad:
		insts, err := low.LowerLoad(inst)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil

	case ir.OpStore:
		insts, err := low.LowerStore(inst)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil

	case ir.OpBinary:
		return lowerBinaryInstruction(low, builder, inst, cfg)

	case ir.OpCall:
		insts, err := low.LowerCall(inst)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil

	case ir.OpReturn:
		return low.LowerReturn(inst, builder)

	case ir.OpBranch:
		builder.AddInstructions(low.LowerBranch(low.BlockLabel(inst.Target)))
		return nil

	case ir.OpBranchCond:
		insts, err := low.LowerBranchCond(inst)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil

	case ir.OpGetElementPtr:
		insts, err := low.LowerGEP(inst, cfg.BankSize)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil

	case ir.OpInlineAsm:
		insts, err := low.LowerInlineAsm(inst)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil

	default:
		return fmt.Errorf("unhandled instruction op %v", inst.Op)
	}
}

func lowerBinaryInstruction(low *lower.Lowerer, builder *function.Builder, inst ir.Instruction, cfg Config) error {
	resultName := low.TempName(inst.Result)
	if isCompareOp(inst.BinOp) {
		insts, _, err := low.LowerCompare(inst.BinOp, inst.Lhs, inst.Rhs, resultName, inst.Result)
		if err != nil {
			return err
		}
		builder.AddInstructions(insts)
		return nil
	}
	insts, _, err := low.LowerBinary(inst.BinOp, inst.Lhs, inst.Rhs, resultName, cfg.MaxImmediate)
	if err != nil {
		return err
	}
	builder.AddInstructions(insts)
	return nil
}

func isCompareOp(op ir.BinOp) bool {
	switch op {
	case ir.Eq, ir.Ne, ir.Lt, ir.LtU, ir.Gt, ir.GtU, ir.Le, ir.LeU, ir.Ge, ir.GeU:
		return true
	default:
		return false
	}
}

// functionHasCalls reports whether fn contains any OpCall instruction,
// determining whether its frame must preserve RA/RAB.
func functionHasCalls(fn *ir.Function) bool {
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op == ir.OpCall {
				return true
			}
		}
	}
	return false
}

// computeLocalSlots assigns each OpAlloca in fn a distinct FP-relative
// offset, bump-allocating upward from 0, and returns the total locals
// size alongside the per-temp offset table.
func computeLocalSlots(fn *ir.Function) (int, map[ir.TempID]int16) {
	offsets := make(map[ir.TempID]int16)
	var next int16
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op != ir.OpAlloca {
				continue
			}
			offsets[inst.Result] = next
			size := int16(inst.AllocaSize)
			if size <= 0 {
				size = 1
			}
			next += size
		}
	}
	return int(next), offsets
}
