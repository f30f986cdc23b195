// Package function implements the function builder: a state-machine
// wrapper around cc.Frame that makes
// it impossible to emit a function body out of order (epilogue before
// prologue, locals before prologue, an unbalanced call sequence).
// Spec.md section 4.4.
//
// Grounded on the original backend's v2::function::builder::FunctionBuilder
// (rcc-backend/src/v2/function/builder.rs): "make illegal states
// unrepresentable" is carried over verbatim as this package's design
// philosophy, ported from assert!-based invariants to Go panics since
// a violation here is a code generator bug, not a recoverable input error.
package function

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"ripplecc/internal/asm"
	"ripplecc/internal/cc"
	"ripplecc/internal/util"
)

// State is the function builder's current phase. Valid transitions are
// Created -> PrologueEmitted -> EpilogueEmitted -> Built; every operation
// other than BeginFunction requires PrologueEmitted, and every operation
// other than Build forbids EpilogueEmitted/Built.
type State int

const (
	Created State = iota
	PrologueEmitted
	EpilogueEmitted
	Built
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case PrologueEmitted:
		return "PrologueEmitted"
	case EpilogueEmitted:
		return "EpilogueEmitted"
	case Built:
		return "Built"
	default:
		return "?State"
	}
}

// Builder accumulates one function's assembly body under the state
// machine described above.
type Builder struct {
	log   *logrus.Entry
	frame *cc.Frame

	state        State
	instructions []asm.Inst
	cleanupStack util.Stack // Holds int16 pending stack-cleanup word counts.
}

// New creates a Builder for frame, ready to receive BeginFunction.
func New(frame *cc.Frame, log *logrus.Entry) *Builder {
	log.Debug("creating function builder")
	return &Builder{log: log, frame: frame}
}

func (b *Builder) requireState(want State, op string) {
	if b.state != want {
		panic(fmt.Sprintf("function builder: %s requires state %s, have %s", op, want, b.state))
	}
}

func (b *Builder) requireBodyOpen(op string) {
	if b.state != PrologueEmitted {
		panic(fmt.Sprintf("function builder: %s requires an open function body (prologue emitted, epilogue not), have %s", op, b.state))
	}
}

// BeginFunction emits the frame's prologue. Must be the first call.
func (b *Builder) BeginFunction() *Builder {
	b.requireState(Created, "BeginFunction")
	prologue := b.frame.GenPrologue()
	b.log.Debugf("prologue: %d instructions", len(prologue))
	b.instructions = append(b.instructions, prologue...)
	b.state = PrologueEmitted
	return b
}

// GetLocalAddress computes the address of a local at FP-relative offset
// into asm.SC and returns asm.SC. Callers needing the address beyond the
// immediately following instruction must copy it out of SC before it is
// clobbered by the next address computation.
func (b *Builder) GetLocalAddress(offset int16) asm.Reg {
	b.requireBodyOpen("GetLocalAddress")
	b.instructions = append(b.instructions,
		asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SC, Src: asm.FP, Imm: int64(offset)})
	return asm.SC
}

// LoadLocal loads the local at FP-relative offset into dest.
func (b *Builder) LoadLocal(offset int16, dest asm.Reg) *Builder {
	b.requireBodyOpen("LoadLocal")
	b.instructions = append(b.instructions,
		asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SC, Src: asm.FP, Imm: int64(offset)},
		asm.Load{Dst: dest, Bank: asm.SB, Addr: asm.SC})
	return b
}

// StoreLocal stores src to the local at FP-relative offset.
func (b *Builder) StoreLocal(offset int16, src asm.Reg) *Builder {
	b.requireBodyOpen("StoreLocal")
	b.instructions = append(b.instructions,
		asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SC, Src: asm.FP, Imm: int64(offset)},
		asm.Store{Val: src, Bank: asm.SB, Addr: asm.SC})
	return b
}

// PushStackArg pushes reg as one word of a stack-passed call argument.
func (b *Builder) PushStackArg(reg asm.Reg) *Builder {
	b.requireBodyOpen("PushStackArg")
	b.instructions = append(b.instructions,
		asm.Store{Val: reg, Bank: asm.SB, Addr: asm.SP},
		asm.Immediate{Mnemonic: asm.MAddI, Dst: asm.SP, Src: asm.SP, Imm: 1})
	return b
}

// BeginCall records that a call sequence needing stackWords of later
// cleanup is starting, and pushes that count so a matching EndCall can
// recover it. Nested call sequences (an argument expression that is
// itself a call) are supported: the cleanup stack is a LIFO.
func (b *Builder) BeginCall(stackWords int16) *Builder {
	b.requireBodyOpen("BeginCall")
	b.cleanupStack.Push(stackWords)
	return b
}

// EmitCall appends the call instruction sequence for target given the
// register-resident argument slots.
func (b *Builder) EmitCall(target string, argRegs []asm.Reg) *Builder {
	b.requireBodyOpen("EmitCall")
	code, err := b.frame.GenCall(target, argRegs)
	if err != nil {
		panic(fmt.Sprintf("function builder: EmitCall: %v", err))
	}
	b.instructions = append(b.instructions, code...)
	return b
}

// EndCall pops the stack-cleanup word count pushed by the matching
// BeginCall and emits the SP decrement. Panics if no BeginCall is open.
func (b *Builder) EndCall() *Builder {
	b.requireBodyOpen("EndCall")
	raw := b.cleanupStack.Pop()
	if raw == nil {
		panic("function builder: EndCall called without matching BeginCall")
	}
	stackWords := raw.(int16)
	if stackWords > 0 {
		b.instructions = append(b.instructions,
			asm.Immediate{Mnemonic: asm.MSubI, Dst: asm.SP, Src: asm.SP, Imm: int64(stackWords)})
	}
	return b
}

// AddInstruction appends a single already-lowered instruction.
func (b *Builder) AddInstruction(in asm.Inst) *Builder {
	b.requireBodyOpen("AddInstruction")
	b.instructions = append(b.instructions, in)
	return b
}

// AddInstructions appends a batch of already-lowered instructions.
func (b *Builder) AddInstructions(ins []asm.Inst) *Builder {
	b.requireBodyOpen("AddInstructions")
	b.instructions = append(b.instructions, ins...)
	return b
}

// ReturnValue describes what, if anything, to move into the return
// registers before the epilogue.
type ReturnValue struct {
	HasValue bool
	Addr     asm.Reg
	HasBank  bool
	Bank     asm.Reg
}

// Return lowers one `return` statement: it moves ret into RV0/RV1 if
// present, then jumps to epilogueLabel rather than emitting the epilogue
// inline, so that a function with more than one return (every early
// return is routine in C) shares a single epilogue instead of each
// return trying to close the function body on its own. Spec.md section
// 4.5 ("jump to a function-local epilogue label") and section 5
// ("return-value rendezvous list merged at the epilogue label"). The
// body stays open (state remains PrologueEmitted) so later blocks and
// further returns can still be lowered; EndFunction emits the epilogue
// itself exactly once, after the last block.
func (b *Builder) Return(ret ReturnValue, epilogueLabel string) *Builder {
	b.requireBodyOpen("Return")
	if b.cleanupStack.Size() != 0 {
		panic("function builder: Return with unclosed call sequences")
	}

	if ret.HasValue && ret.Addr != asm.RV0 {
		b.instructions = append(b.instructions, asm.Move{Dst: asm.RV0, Src: ret.Addr})
	}
	if ret.HasValue && ret.HasBank && ret.Bank != asm.RV1 {
		b.instructions = append(b.instructions, asm.Move{Dst: asm.RV1, Src: ret.Bank})
	}

	b.instructions = append(b.instructions, asm.Branch{Mnemonic: asm.MBeq, Lhs: asm.R0, Rhs: asm.R0, Target: epilogueLabel})
	return b
}

// EndFunction emits the function's one shared epilogue label and the
// frame's epilogue instructions, and closes the body. Every `return` in
// the function has already jumped here via Return; a function that
// falls off the end of its last block without an explicit return lands
// here too, since the label immediately precedes the epilogue. Panics
// if any BeginCall is unmatched.
func (b *Builder) EndFunction(epilogueLabel string) *Builder {
	b.requireBodyOpen("EndFunction")
	if b.cleanupStack.Size() != 0 {
		panic("function builder: EndFunction with unclosed call sequences")
	}

	b.instructions = append(b.instructions, asm.Label{Name: epilogueLabel})

	epilogue := b.frame.GenEpilogue()
	b.log.Debugf("epilogue: %d instructions", len(epilogue))
	b.instructions = append(b.instructions, epilogue...)
	b.state = EpilogueEmitted
	return b
}

// Build finalises the builder and returns the accumulated instructions.
func (b *Builder) Build() []asm.Inst {
	b.requireState(EpilogueEmitted, "Build")
	b.log.Debugf("function built: %d total instructions", len(b.instructions))
	b.state = Built
	return b.instructions
}
