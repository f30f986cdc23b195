// Package naming produces deterministic, collision-free keys for every
// intermediate value a function's lowering touches, so that bank
// information and spill slots survive round-trips through the Register
// Pressure Manager. Spec.md section 4.1.
//
// Ported near-literally from the original Rust backend's NameGenerator
// (rcc-backend/src/v2/naming.rs): every exported method here has a
// matching Rust method of the same name and format.
package naming

import (
	"fmt"

	"ripplecc/internal/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Generator issues unique names scoped to a single function's lowering.
// A fresh Generator must be created per function; function_id is seeded
// from the function's ordinal position in the module (spec.md section 9
// design note) so naming is deterministic regardless of goroutine
// scheduling under parallel function codegen.
type Generator struct {
	functionID int
	nextOpID   int
	nextLabel  int
}

// ---------------------
// ----- Functions -----
// ---------------------

// New creates a Generator for the functionID-th function in the module
// (0-based ordinal position, not a shared atomic counter).
func New(functionID int) *Generator {
	return &Generator{functionID: functionID}
}

// FunctionID returns the generator's function ordinal, used by lowering
// code that needs to embed it directly into ad-hoc label names.
func (g *Generator) FunctionID() int { return g.functionID }

func (g *Generator) nextOperationID() int {
	id := g.nextOpID
	g.nextOpID++
	return id
}

func (g *Generator) nextLabelID() int {
	id := g.nextLabel
	g.nextLabel++
	return id
}

// ----- Temp naming -----

// TempName returns the stable, one-per-temp key for t.
func (g *Generator) TempName(t ir.TempID) string {
	return fmt.Sprintf("t%d", t)
}

// ----- Load operation naming -----

func (g *Generator) LoadConstAddr(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("load_f%d_op%d_t%d_addr", g.functionID, op, resultTemp)
}

func (g *Generator) LoadSrcPtrBank(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("load_src_ptr_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) LoadBankAddr(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("load_f%d_op%d_t%d_bank_addr", g.functionID, op, resultTemp)
}

func (g *Generator) LoadBankValue(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("load_f%d_op%d_t%d_bank_val", g.functionID, op, resultTemp)
}

func (g *Generator) LoadGlobalAddr(globalName string) string {
	op := g.nextOperationID()
	return fmt.Sprintf("load_f%d_op%d_global_%s_addr", g.functionID, op, globalName)
}

// ----- Store operation naming -----

func (g *Generator) StoreConstValue() string {
	op := g.nextOperationID()
	return fmt.Sprintf("store_f%d_op%d_const", g.functionID, op)
}

func (g *Generator) StoreFatPtrAddr() string {
	op := g.nextOperationID()
	return fmt.Sprintf("store_f%d_op%d_fp_addr", g.functionID, op)
}

func (g *Generator) StoreFatPtrBank() string {
	op := g.nextOperationID()
	return fmt.Sprintf("store_f%d_op%d_fp_bank", g.functionID, op)
}

func (g *Generator) StoreDestAddr() string {
	op := g.nextOperationID()
	return fmt.Sprintf("store_f%d_op%d_dest_addr", g.functionID, op)
}

func (g *Generator) StoreBankAddr() string {
	op := g.nextOperationID()
	return fmt.Sprintf("store_f%d_op%d_bank_addr", g.functionID, op)
}

func (g *Generator) StoreGlobalAddr(globalName string) string {
	op := g.nextOperationID()
	return fmt.Sprintf("store_f%d_op%d_global_%s_addr", g.functionID, op, globalName)
}

// ----- Pointer bank tracking naming -----

// PointerBankKey returns the canonical key used to look up a pointer's
// bank info; it MUST be identical for matching load/store pairs, so it is
// the identity function on baseName (spec.md section 4.1).
func (g *Generator) PointerBankKey(baseName string) string {
	return baseName
}

// TempPointerBankKey is PointerBankKey applied to a temp's stable name.
func (g *Generator) TempPointerBankKey(t ir.TempID) string {
	return g.TempName(t)
}

// ----- Label naming -----

func (g *Generator) LoadGlobalLabel(globalName string) string {
	id := g.nextLabelID()
	return fmt.Sprintf("load_global_%s_%d", globalName, id)
}

func (g *Generator) StoreGlobalLabel(globalName string) string {
	id := g.nextLabelID()
	return fmt.Sprintf("store_global_%s_%d", globalName, id)
}

// LabelName formats a raw numeric label id as an assembly label.
func (g *Generator) LabelName(labelID int) string {
	return fmt.Sprintf("L%d", labelID)
}

// BlockLabel formats a basic-block label for funcName's block blockID.
func (g *Generator) BlockLabel(funcName string, blockID int) string {
	return fmt.Sprintf("L_%s_%d", funcName, blockID)
}

// EpilogueLabel formats the one shared epilogue label every return in
// funcName jumps to (spec.md section 4.5/5).
func (g *Generator) EpilogueLabel(funcName string) string {
	return fmt.Sprintf("L_%s_epilogue", funcName)
}

func (g *Generator) SelectTrueLabel(resultTemp ir.TempID) string {
	id := g.nextLabelID()
	return fmt.Sprintf("L_select_true_f%d_l%d_t%d", g.functionID, id, resultTemp)
}

func (g *Generator) SelectEndLabel(resultTemp ir.TempID) string {
	id := g.nextLabelID()
	return fmt.Sprintf("L_select_end_f%d_l%d_t%d", g.functionID, id, resultTemp)
}

// ----- Calling convention naming -----

func (g *Generator) ParamName(index int) string {
	op := g.nextOperationID()
	return fmt.Sprintf("param_f%d_op%d_%d", g.functionID, op, index)
}

func (g *Generator) ParamBankName(index int) string {
	op := g.nextOperationID()
	return fmt.Sprintf("param_bank_f%d_op%d_%d", g.functionID, op, index)
}

func (g *Generator) RetAddrName() string {
	op := g.nextOperationID()
	return fmt.Sprintf("ret_addr_f%d_op%d", g.functionID, op)
}

func (g *Generator) RetBankName() string {
	op := g.nextOperationID()
	return fmt.Sprintf("ret_bank_f%d_op%d", g.functionID, op)
}

func (g *Generator) RetValName() string {
	op := g.nextOperationID()
	return fmt.Sprintf("ret_val_f%d_op%d", g.functionID, op)
}

// ----- Function local naming -----

func (g *Generator) LocalName(offset int16) string {
	op := g.nextOperationID()
	return fmt.Sprintf("local_f%d_op%d_off%d", g.functionID, op, offset)
}

func (g *Generator) LocalAddrName(offset int16) string {
	op := g.nextOperationID()
	return fmt.Sprintf("local_addr_f%d_op%d_off%d", g.functionID, op, offset)
}

// ----- Constant value naming -----

func (g *Generator) ConstValue(value int64) string {
	op := g.nextOperationID()
	return fmt.Sprintf("const_f%d_op%d_%d", g.functionID, op, value)
}

// ConstForTemp names a constant materialised for the use at resultTemp,
// distinguishing it from other constants materialised for other uses.
func (g *Generator) ConstForTemp(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("const_for_t%d_f%d_op%d", resultTemp, g.functionID, op)
}

func (g *Generator) FuncAddr(funcName string) string {
	op := g.nextOperationID()
	return fmt.Sprintf("func_f%d_op%d_%s", g.functionID, op, funcName)
}

// ----- Unary operation naming -----

func (g *Generator) AllOnes() string {
	op := g.nextOperationID()
	return fmt.Sprintf("all_ones_f%d_op%d", g.functionID, op)
}

func (g *Generator) ZeroTemp() string {
	op := g.nextOperationID()
	return fmt.Sprintf("zero_f%d_op%d", g.functionID, op)
}

// ----- Comparison operation naming -----

func (g *Generator) XorTemp(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("xor_temp_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) ConstOne(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("const_1_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) ConstZero(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("const_0_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

// ----- Binary operation naming -----

func (g *Generator) ImmValue(value int16) string {
	op := g.nextOperationID()
	return fmt.Sprintf("imm_f%d_op%d_%d", g.functionID, op, value)
}

// ----- GEP naming -----

func (g *Generator) GepShift(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("gep_shift_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) GepSize(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("gep_size_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) GepBankDelta(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("gep_bank_delta_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) GepNewAddr(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("gep_new_addr_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) GepNewBank(resultTemp ir.TempID) string {
	op := g.nextOperationID()
	return fmt.Sprintf("gep_new_bank_f%d_op%d_t%d", g.functionID, op, resultTemp)
}

func (g *Generator) GepGlobal(globalName string) string {
	op := g.nextOperationID()
	return fmt.Sprintf("gep_global_f%d_op%d_%s", g.functionID, op, globalName)
}

// ----- Context-scoped scratch naming -----

// TempWithContext names a scratch value tied to an arbitrary ctx string
// (e.g. "load", "store", "gep") and a short purpose label, used by bank
// resolution helpers that need a handful of uniquely-named temporaries
// around a runtime tag check.
func (g *Generator) TempWithContext(ctx, purpose string) string {
	op := g.nextOperationID()
	return fmt.Sprintf("%s_f%d_op%d_%s", ctx, g.functionID, op, purpose)
}

// ContextLabel formats a uniquely-numbered label scoped to ctx, used by
// the dynamic-bank runtime tag check (spec.md section 4.5).
func (g *Generator) ContextLabel(ctx, purpose string) string {
	id := g.nextLabelID()
	return fmt.Sprintf("L_%s_%s_f%d_l%d", ctx, purpose, g.functionID, id)
}
