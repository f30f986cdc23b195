package rpm

import (
	"fmt"

	"ripplecc/internal/asm"
)

// BankInfo is the runtime-refined classification of a pointer's bank,
// narrower than ir.BankTag: by the time a pointer reaches the register
// pressure manager its bank has resolved to one of these four concrete
// cases. Spec.md section 4.2; grounded on the original backend's
// regmgmt::bank::BankInfo (reconstructed from its call sites in
// instr/helpers.rs since the defining file itself carries no codegen
// logic worth porting).
type BankInfo struct {
	Kind     BankInfoKind
	Reg      asm.Reg // Valid when Kind == BankRegister.
	Named    string  // Valid when Kind == BankNamedValue: another tracked value's key.
}

// BankInfoKind tags the active member of BankInfo.
type BankInfoKind int

const (
	// BankGlobal: the pointer lives in bank 0, addressed via GP.
	BankGlobal BankInfoKind = iota
	// BankStack: the pointer lives in the current stack bank, addressed via SB.
	BankStack
	// BankRegister: the pointer's bank is already resident in a fixed register.
	BankRegister
	// BankNamedValue: the pointer's bank word is held by another tracked
	// value, named by Named and read through that value's register; this
	// is the "Dynamic" case that requires a runtime tag-check synthesis
	// rather than a direct register answer (spec.md section 4.5).
	BankNamedValue
)

func (k BankInfoKind) String() string {
	switch k {
	case BankGlobal:
		return "global"
	case BankStack:
		return "stack"
	case BankRegister:
		return "register"
	case BankNamedValue:
		return "named"
	default:
		return "unknown-bank-info"
	}
}

// GlobalBank, StackBank and RegisterBank/NamedValueBank are convenience
// constructors mirroring the original's enum variant constructors.
func GlobalBank() BankInfo          { return BankInfo{Kind: BankGlobal} }
func StackBank() BankInfo           { return BankInfo{Kind: BankStack} }
func RegisterBank(r asm.Reg) BankInfo { return BankInfo{Kind: BankRegister, Reg: r} }
func NamedValueBank(name string) BankInfo {
	return BankInfo{Kind: BankNamedValue, Named: name}
}

func (b BankInfo) String() string {
	switch b.Kind {
	case BankRegister:
		return fmt.Sprintf("register(%s)", b.Reg)
	case BankNamedValue:
		return fmt.Sprintf("named(%s)", b.Named)
	default:
		return b.Kind.String()
	}
}

// Sentinel bank tag values used to mark the kind of a spilled fat-pointer
// bank word in memory, so a later reload can tell a global/stack sentinel
// apart from an actual bank number without consulting pointer_banks
// (spec.md section 3). Grounded on the Ripple VM ABI documented in
// spec.md's glossary entry for "bank tag sentinel".
const (
	TagGlobal int16 = -1
	TagStack  int16 = -2
)
