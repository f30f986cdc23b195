package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintLabelsAndCommentsAreNotIndented(t *testing.T) {
	out := Print([]Inst{
		Label{Name: "L0"},
		Comment{Text: "hello"},
	})
	assert.Equal(t, "L0:\n; hello\n", out)
}

func TestPrintOrdinaryInstructionsAreTabIndented(t *testing.T) {
	out := Print([]Inst{
		Binary{Mnemonic: MAdd, Dst: T0, Lhs: T1, Rhs: T2},
	})
	assert.Equal(t, "\tadd\tt0, t1, t2", out[:len(out)-1])
}

func TestPrintPreservesInstructionOrder(t *testing.T) {
	insts := []Inst{
		Li{Dst: T0, Imm: 5},
		Move{Dst: T1, Src: T0},
		Ret{},
	}
	out := Print(insts)
	assert.Contains(t, out, "li\tt0, 5")
	assert.True(t, indexOf(out, "li") < indexOf(out, "move"))
	assert.True(t, indexOf(out, "move") < indexOf(out, "ret"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
