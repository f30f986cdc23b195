package cc

import "github.com/pkg/errors"

// Sentinel errors for calling-convention failures, mirroring the
// original backend's AbiError variants (rcc-codegen/src/abi.rs). Callers
// wrap these with errors.Wrapf for the specific offending value.
var (
	ErrTooManyParameters        = errors.New("too many parameters")
	ErrInvalidParameterRegister = errors.New("invalid register for parameter")
	ErrFrameTooLarge            = errors.New("stack frame too large")
)
