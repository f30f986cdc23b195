package asm

import "strings"

// Print renders a sequence of instructions as assembler text, one
// instruction per line, each written exactly as its String method
// renders it.
func Print(insts []Inst) string {
	var b strings.Builder
	for _, in := range insts {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}
