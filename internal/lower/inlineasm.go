package lower

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

// parsedConstraint is one operand's parsed GCC-style extended-asm
// constraint: "=r" (output), "+r" (read-write, tied to itself as an
// input), "r" (plain register input/output), with "m" (memory) and "i"
// (immediate) rejected as unimplemented. Grounded on inline_asm.rs's
// ParsedConstraint/parse_constraint.
type parsedConstraint struct {
	isOutput     bool
	isReadWrite  bool
	constraintCh byte
}

func parseConstraint(s string) (parsedConstraint, error) {
	if s == "" {
		return parsedConstraint{}, errors.New("lower: inline asm: empty constraint string")
	}
	switch s[0] {
	case '=':
		if len(s) < 2 {
			return parsedConstraint{}, errors.Errorf("lower: inline asm: malformed output constraint %q", s)
		}
		return parsedConstraint{isOutput: true, constraintCh: s[1]}, nil
	case '+':
		if len(s) < 2 {
			return parsedConstraint{}, errors.Errorf("lower: inline asm: malformed read-write constraint %q", s)
		}
		return parsedConstraint{isOutput: true, isReadWrite: true, constraintCh: s[1]}, nil
	default:
		return parsedConstraint{constraintCh: s[0]}, nil
	}
}

type allocatedOperand struct {
	operand   ir.AsmOperand
	reg       asm.Reg
	valueName string
}

// LowerInlineAsm lowers an OpInlineAsm instruction. With no operands, the
// assembly text passes through verbatim, split into one Raw instruction
// per `;`/newline-separated line. With operands, every live value is
// spilled first (spec.md section 4.5's conservative rule), operands are
// allocated registers (outputs first, then inputs — tied read-write
// operands share the output's register), `%0, %1, ...` placeholders are
// substituted in declaration order (outputs, then inputs), and outputs
// are rebound to their result temps. Grounded on
// inline_asm.rs::lower_inline_asm_extended, implementing the INTENDED
// teardown behavior: the original's output teardown contains a literal
// short-circuit bug (an unconditional early return before ever reaching
// its memory-store code) immediately followed by a dead, broken
// hardcoded-FP+1 store; this binds each output directly to its result
// temp's register and leaves materialization to the rest of lowering,
// which is what the bound-but-unreachable code suggests was intended.
func (l *Lowerer) LowerInlineAsm(inst ir.Instruction) ([]asm.Inst, error) {
	if len(inst.AsmOutputs) == 0 && len(inst.AsmInputs) == 0 {
		return rawAsmLines(inst.AsmText), nil
	}

	var insts []asm.Inst
	insts = append(insts, asm.Comment{Text: "begin inline assembly"})

	l.mgr.SpillAll()
	insts = append(insts, l.mgr.TakeInstructions()...)

	outputs, err := l.allocateOutputs(inst.AsmOutputs)
	if err != nil {
		return nil, err
	}
	inputs, setupInsts, err := l.allocateInputsAndSetup(inst.AsmInputs, outputs)
	if err != nil {
		return nil, err
	}

	insts = append(insts, asm.Comment{Text: "setup: load inputs"})
	insts = append(insts, setupInsts...)

	substituted := substitutePlaceholders(inst.AsmText, outputs, inputs)
	insts = append(insts, asm.Comment{Text: "inline assembly code"})
	insts = append(insts, rawAsmLines(substituted)...)

	insts = append(insts, asm.Comment{Text: "teardown: bind outputs"})
	for _, op := range outputs {
		l.mgr.BindValueToRegister(op.reg, op.valueName)
		insts = append(insts, asm.Comment{Text: fmt.Sprintf("output %s now in %s", op.valueName, op.reg)})
	}

	insts = append(insts, asm.Comment{Text: "end inline assembly"})
	return insts, nil
}

func (l *Lowerer) allocateOutputs(outputs []ir.AsmOperand) ([]allocatedOperand, error) {
	var allocated []allocatedOperand
	for idx, out := range outputs {
		c, err := parseConstraint(out.Constraint)
		if err != nil {
			return nil, err
		}
		if err := rejectUnimplementedConstraint(c.constraintCh); err != nil {
			return nil, err
		}

		valueName := l.outputValueName(out.Value, idx)
		reg := l.mgr.GetRegister(valueName)
		allocated = append(allocated, allocatedOperand{operand: out, reg: reg, valueName: valueName})
	}
	return allocated, nil
}

func (l *Lowerer) outputValueName(v ir.Value, idx int) string {
	if v.Kind == ir.KindTemp {
		return l.naming.TempName(v.Temp)
	}
	return fmt.Sprintf("asm_output_%d", idx)
}

// allocateInputsAndSetup allocates registers for the input operand list and
// returns both the allocated list and the instructions that load each
// input's value into its allocated register. A read-write output (tied
// input) is found by Value: an input sharing its source Value with
// a read-write output's Value reuses that output's register rather than
// allocating a fresh one, matching the source language's single
// constraint string per read-write operand.
func (l *Lowerer) allocateInputsAndSetup(inputs []ir.AsmOperand, outputs []allocatedOperand) ([]allocatedOperand, []asm.Inst, error) {
	var allocated []allocatedOperand
	var insts []asm.Inst

	for idx, in := range inputs {
		c, err := parseConstraint(in.Constraint)
		if err != nil {
			return nil, nil, err
		}

		if tiedIdx, ok := findTiedOutput(in, outputs); ok {
			out := outputs[tiedIdx]
			allocated = append(allocated, allocatedOperand{operand: in, reg: out.reg, valueName: out.valueName})
			continue
		}

		if err := rejectUnimplementedConstraint(c.constraintCh); err != nil {
			return nil, nil, err
		}

		valueName := l.inputValueName(in.Value, idx)
		reg := l.mgr.Reload(valueName)
		insts = append(insts, l.mgr.TakeInstructions()...)

		switch in.Value.Kind {
		case ir.KindTemp:
			srcReg := l.mgr.GetRegister(valueName)
			insts = append(insts, l.mgr.TakeInstructions()...)
			if srcReg != reg {
				insts = append(insts, asm.Move{Dst: reg, Src: srcReg})
			}
		case ir.KindConstant:
			insts = append(insts, asm.Li{Dst: reg, Imm: in.Value.Constant})
		default:
			return nil, nil, fmt.Errorf("lower: inline asm: unsupported input value kind %v", in.Value.Kind)
		}

		allocated = append(allocated, allocatedOperand{operand: in, reg: reg, valueName: valueName})
	}

	return allocated, insts, nil
}

func (l *Lowerer) inputValueName(v ir.Value, idx int) string {
	switch v.Kind {
	case ir.KindTemp:
		return l.naming.TempName(v.Temp)
	case ir.KindConstant:
		return l.naming.ConstValue(v.Constant)
	default:
		return fmt.Sprintf("asm_input_%d", idx)
	}
}

// findTiedOutput reports whether in shares its Value with a read-write
// ("+r") output, which is how this IR models GCC-style numeric tying
// (rather than an explicit tied-operand index field).
func findTiedOutput(in ir.AsmOperand, outputs []allocatedOperand) (int, bool) {
	for i, out := range outputs {
		c, err := parseConstraint(out.operand.Constraint)
		if err != nil || !c.isReadWrite {
			continue
		}
		if sameValue(in.Value, out.operand.Value) {
			return i, true
		}
	}
	return 0, false
}

func sameValue(a, b ir.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.KindTemp:
		return a.Temp == b.Temp
	case ir.KindConstant:
		return a.Constant == b.Constant
	default:
		return false
	}
}

func rejectUnimplementedConstraint(c byte) error {
	switch c {
	case 'r':
		return nil
	case 'm':
		return errors.New("lower: inline asm: memory constraints are not implemented")
	case 'i':
		return errors.New("lower: inline asm: immediate constraints are not implemented")
	default:
		return errors.Errorf("lower: inline asm: unsupported constraint type %q", string(c))
	}
}

// placeholderPattern matches a %N operand reference. Matching the whole
// run of digits (rather than substituting one fixed-width literal "%1",
// "%2", ... at a time) keeps a two-digit reference like %10 from being
// clobbered by the replacement for %1.
var placeholderPattern = regexp.MustCompile(`%(\d+)`)

// substitutePlaceholders replaces %0, %1, ... with register mnemonics,
// numbering outputs first and then inputs, in declaration order.
func substitutePlaceholders(assembly string, outputs, inputs []allocatedOperand) string {
	byIndex := make(map[int]string, len(outputs)+len(inputs))
	for idx, op := range outputs {
		byIndex[idx] = op.reg.String()
	}
	base := len(outputs)
	for idx, op := range inputs {
		byIndex[base+idx] = op.reg.String()
	}

	return placeholderPattern.ReplaceAllStringFunc(assembly, func(match string) string {
		n, err := strconv.Atoi(match[1:])
		if err != nil {
			return match
		}
		reg, ok := byIndex[n]
		if !ok {
			return match
		}
		return reg
	})
}

func rawAsmLines(assembly string) []asm.Inst {
	var insts []asm.Inst
	for _, part := range strings.FieldsFunc(assembly, func(r rune) bool { return r == ';' || r == '\n' }) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			insts = append(insts, asm.Raw{Text: trimmed})
		}
	}
	return insts
}
