package asm

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Inst is a single assembly instruction (or pseudo-instruction) in the
// stream handed to the external assembler. Spec.md section 6.
type Inst interface {
	Op() string
	String() string
}

// Label marks a jump/branch target.
type Label struct{ Name string }

// Comment is an assembler comment; never affects codegen semantics, only
// readability (e.g. the bank-overflow synthesis note from spec.md section 4.5).
type Comment struct{ Text string }

// Raw passes verbatim assembly text through, used by inline assembly.
type Raw struct{ Text string }

// Li loads a narrowed immediate into a register.
type Li struct {
	Dst Reg
	Imm int64
}

// Move copies one register into another (Add Dst, Src, R0 under the hood).
type Move struct{ Dst, Src Reg }

// Binary is a three-operand R-type instruction: Dst = Lhs <Mnemonic> Rhs.
type Binary struct {
	Mnemonic string
	Dst, Lhs, Rhs Reg
}

// Immediate is a two-operand I-type instruction: Dst = Src <Mnemonic> Imm.
type Immediate struct {
	Mnemonic string
	Dst, Src Reg
	Imm      int64
}

// Load reads one word from (bank, addr) into dst.
type Load struct{ Dst, Bank, Addr Reg }

// Store writes one word from val to (bank, addr).
type Store struct{ Val, Bank, Addr Reg }

// Branch is a two-register conditional branch to a label.
type Branch struct {
	Mnemonic string // beq, bne, blt, bge
	Lhs, Rhs Reg
	Target   string
}

// Jal is an unconditional call: save return address/bank, jump to target.
type Jal struct {
	Link, LinkBank Reg
	Target         string
}

// Jalr is an indirect call/return through a register.
type Jalr struct {
	Link, LinkBank, Target Reg
}

// Ret is the bare return pseudo-instruction (PCB <- RAB; JALR R0, R0, RA).
type Ret struct{}

// ---------------------
// ----- Functions -----
// ---------------------

func (Label) Op() string     { return "label" }
func (l Label) String() string { return l.Name + ":" }

func (Comment) Op() string       { return "comment" }
func (c Comment) String() string { return "; " + c.Text }

func (Raw) Op() string       { return "raw" }
func (r Raw) String() string { return r.Text }

func (Li) Op() string { return "li" }
func (l Li) String() string {
	return fmt.Sprintf("\tli\t%s, %d", l.Dst, l.Imm)
}

func (Move) Op() string { return "move" }
func (m Move) String() string {
	return fmt.Sprintf("\tmove\t%s, %s", m.Dst, m.Src)
}

func (b Binary) Op() string { return b.Mnemonic }
func (b Binary) String() string {
	return fmt.Sprintf("\t%s\t%s, %s, %s", b.Mnemonic, b.Dst, b.Lhs, b.Rhs)
}

func (i Immediate) Op() string { return i.Mnemonic }
func (i Immediate) String() string {
	return fmt.Sprintf("\t%s\t%s, %s, %d", i.Mnemonic, i.Dst, i.Src, i.Imm)
}

func (Load) Op() string { return "load" }
func (l Load) String() string {
	return fmt.Sprintf("\tload\t%s, %s, %s", l.Dst, l.Bank, l.Addr)
}

func (Store) Op() string { return "store" }
func (s Store) String() string {
	return fmt.Sprintf("\tstore\t%s, %s, %s", s.Val, s.Bank, s.Addr)
}

func (b Branch) Op() string { return b.Mnemonic }
func (b Branch) String() string {
	return fmt.Sprintf("\t%s\t%s, %s, %s", b.Mnemonic, b.Lhs, b.Rhs, b.Target)
}

func (Jal) Op() string { return "jal" }
func (j Jal) String() string {
	return fmt.Sprintf("\tjal\t%s, %s, %s", j.Link, j.LinkBank, j.Target)
}

func (Jalr) Op() string { return "jalr" }
func (j Jalr) String() string {
	return fmt.Sprintf("\tjalr\t%s, %s, %s", j.Link, j.LinkBank, j.Target)
}

func (Ret) Op() string       { return "ret" }
func (Ret) String() string   { return "\tret" }

// Mnemonic constants for Binary/Immediate/Branch instructions, named so
// lowering code never spells the raw string more than once.
const (
	MAdd  = "add"
	MSub  = "sub"
	MAnd  = "and"
	MOr   = "or"
	MXor  = "xor"
	MShl  = "shl"
	MLshr = "lshr"
	MMul  = "mul"
	MDiv  = "div"
	MMod  = "mod"
	MSlt  = "slt"
	MSltu = "sltu"

	MAddI  = "addi"
	MSubI  = "subi"
	MAndI  = "andi"
	MOrI   = "ori"
	MXorI  = "xori"
	MMulI  = "muli"
	MDivI  = "divi"
	MModI  = "modi"

	MBeq = "beq"
	MBne = "bne"
	MBlt = "blt"
	MBge = "bge"
)
