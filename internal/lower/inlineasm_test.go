package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/asm"
	"ripplecc/internal/ir"
)

func TestLowerInlineAsmWithNoOperandsPassesTextThroughVerbatim(t *testing.T) {
	low := testLower("f")
	insts, err := low.LowerInlineAsm(ir.Instruction{
		Op:      ir.OpInlineAsm,
		AsmText: "nop\nhalt",
	})
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, asm.Raw{Text: "nop"}, insts[0])
	assert.Equal(t, asm.Raw{Text: "halt"}, insts[1])
}

func TestLowerInlineAsmSubstitutesOperandPlaceholders(t *testing.T) {
	low := testLower("f")
	insts, err := low.LowerInlineAsm(ir.Instruction{
		Op:      ir.OpInlineAsm,
		AsmText: "add %0, %1, %1",
		AsmOutputs: []ir.AsmOperand{
			{Constraint: "=r", Value: ir.TempValue(ir.TempID(1))},
		},
		AsmInputs: []ir.AsmOperand{
			{Constraint: "r", Value: ir.TempValue(ir.TempID(2))},
		},
	})
	require.NoError(t, err)

	var sawInlineCode bool
	for _, in := range insts {
		if raw, ok := in.(asm.Raw); ok {
			if raw.Text == "add %0, %1, %1" {
				t.Fatalf("placeholders must be substituted with register mnemonics: %q", raw.Text)
			}
			if raw.Text != "" {
				sawInlineCode = true
			}
		}
	}
	assert.True(t, sawInlineCode)
}

func TestLowerInlineAsmRejectsMemoryConstraint(t *testing.T) {
	low := testLower("f")
	_, err := low.LowerInlineAsm(ir.Instruction{
		Op:      ir.OpInlineAsm,
		AsmText: "nop",
		AsmOutputs: []ir.AsmOperand{
			{Constraint: "=m", Value: ir.TempValue(ir.TempID(1))},
		},
	})
	assert.Error(t, err)
}

func TestLowerInlineAsmTiedReadWriteOperandSharesRegister(t *testing.T) {
	low := testLower("f")
	insts, err := low.LowerInlineAsm(ir.Instruction{
		Op:      ir.OpInlineAsm,
		AsmText: "inc %0",
		AsmOutputs: []ir.AsmOperand{
			{Constraint: "+r", Value: ir.TempValue(ir.TempID(1))},
		},
		AsmInputs: []ir.AsmOperand{
			{Constraint: "r", Value: ir.TempValue(ir.TempID(1))},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, insts)

	outReg := low.mgr.GetRegister(low.naming.TempName(ir.TempID(1)))
	var sawPlaceholder bool
	for _, in := range insts {
		if raw, ok := in.(asm.Raw); ok && raw.Text == "inc "+outReg.String() {
			sawPlaceholder = true
		}
	}
	assert.True(t, sawPlaceholder, "tied input/output must substitute to the same register")
}

func TestLowerInlineAsmRejectsMalformedConstraint(t *testing.T) {
	low := testLower("f")
	_, err := low.LowerInlineAsm(ir.Instruction{
		Op:      ir.OpInlineAsm,
		AsmText: "nop",
		AsmOutputs: []ir.AsmOperand{
			{Constraint: "=", Value: ir.TempValue(ir.TempID(1))},
		},
	})
	assert.Error(t, err)
}
