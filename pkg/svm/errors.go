package svm

import (
	"errors"
	"fmt"
)

// InstructionError is a generic host error shared by every program and the
// runtime. Values are stable; the numbering of the program-facing errors
// follows the Solana ProgramError table.
type InstructionError uint32

// Generic program errors.
const (
	ErrInvalidArgument           InstructionError = 2
	ErrInvalidInstructionData    InstructionError = 3
	ErrInvalidAccountData        InstructionError = 4
	ErrAccountDataTooSmall       InstructionError = 5
	ErrInsufficientFunds         InstructionError = 6
	ErrIncorrectProgramID        InstructionError = 7
	ErrMissingRequiredSignature  InstructionError = 8
	ErrAccountAlreadyInitialized InstructionError = 9
	ErrUninitializedAccount      InstructionError = 10
	ErrNotEnoughAccountKeys      InstructionError = 11
	ErrMaxSeedLengthExceeded     InstructionError = 13
	ErrInvalidSeeds              InstructionError = 14
	ErrAccountNotRentExempt      InstructionError = 16
	ErrIllegalOwner              InstructionError = 18
	ErrArithmeticOverflow        InstructionError = 21
)

// Runtime errors raised while enforcing account rules around a program call.
const (
	ErrPrivilegeEscalation InstructionError = 100 + iota
	ErrCallDepth
	ErrMissingAccount
	ErrUnsupportedProgramID
	ErrReadonlyLamportChange
	ErrReadonlyDataModified
	ErrExternalAccountLamportSpend
	ErrExternalAccountDataModified
	ErrModifiedProgramID
	ErrExecutableModified
	ErrUnbalancedInstruction
	ErrComputationalBudgetExceeded
)

var instructionErrorNames = map[InstructionError]string{
	ErrInvalidArgument:             "InvalidArgument",
	ErrInvalidInstructionData:      "InvalidInstructionData",
	ErrInvalidAccountData:          "InvalidAccountData",
	ErrAccountDataTooSmall:         "AccountDataTooSmall",
	ErrInsufficientFunds:           "InsufficientFunds",
	ErrIncorrectProgramID:          "IncorrectProgramId",
	ErrMissingRequiredSignature:    "MissingRequiredSignature",
	ErrAccountAlreadyInitialized:   "AccountAlreadyInitialized",
	ErrUninitializedAccount:        "UninitializedAccount",
	ErrNotEnoughAccountKeys:        "NotEnoughAccountKeys",
	ErrMaxSeedLengthExceeded:       "MaxSeedLengthExceeded",
	ErrInvalidSeeds:                "InvalidSeeds",
	ErrAccountNotRentExempt:        "AccountNotRentExempt",
	ErrIllegalOwner:                "IllegalOwner",
	ErrArithmeticOverflow:          "ArithmeticOverflow",
	ErrPrivilegeEscalation:         "PrivilegeEscalation",
	ErrCallDepth:                   "CallDepth",
	ErrMissingAccount:              "MissingAccount",
	ErrUnsupportedProgramID:        "UnsupportedProgramId",
	ErrReadonlyLamportChange:       "ReadonlyLamportChange",
	ErrReadonlyDataModified:        "ReadonlyDataModified",
	ErrExternalAccountLamportSpend: "ExternalAccountLamportSpend",
	ErrExternalAccountDataModified: "ExternalAccountDataModified",
	ErrModifiedProgramID:           "ModifiedProgramId",
	ErrExecutableModified:          "ExecutableModified",
	ErrUnbalancedInstruction:       "UnbalancedInstruction",
	ErrComputationalBudgetExceeded: "ComputationalBudgetExceeded",
}

// Name returns the stable identifier of the error.
func (e InstructionError) Name() string {
	if name, ok := instructionErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("InstructionError(%d)", uint32(e))
}

func (e InstructionError) Error() string {
	return e.Name()
}

// Code returns the wire code: builtin errors live above bit 32, custom
// program codes below it.
func (e InstructionError) Code() uint64 {
	return uint64(e) << 32
}

// CodedError is implemented by every error kind the runtime can report.
type CodedError interface {
	error
	Code() uint64
}

// CustomError is implemented by program-specific error enumerations.
type CustomError interface {
	CodedError
	CustomCode() uint32
}

// Status describes the outcome of an instruction for logs and journals:
// "Ok", a builtin name such as "InvalidArgument", or "Custom(n)".
func Status(err error) string {
	if err == nil {
		return "Ok"
	}
	var custom CustomError
	if errors.As(err, &custom) {
		return fmt.Sprintf("Custom(%d)", custom.CustomCode())
	}
	var ie InstructionError
	if errors.As(err, &ie) {
		return ie.Name()
	}
	return "Failed"
}

// StatusCode returns the numeric code of err, or 0 when it carries none.
func StatusCode(err error) uint64 {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return 0
}
