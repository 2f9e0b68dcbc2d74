package token

import "fmt"

// Error is a Token Program custom error. Codes follow the SPL TokenError
// numbering so logs read the same as on a live cluster.
type Error uint32

// Token Program errors
const (
	ErrNotRentExempt        Error = 0
	ErrInsufficientFunds    Error = 1
	ErrInvalidMint          Error = 2
	ErrMintMismatch         Error = 3
	ErrOwnerMismatch        Error = 4
	ErrFixedSupply          Error = 5
	ErrAlreadyInUse         Error = 6
	ErrUninitializedState   Error = 9
	ErrNonNativeHasBalance  Error = 11
	ErrInvalidInstruction   Error = 12
	ErrOverflow             Error = 14
	ErrAccountFrozen        Error = 17
	ErrMintDecimalsMismatch Error = 18
)

var errorMessages = map[Error]string{
	ErrNotRentExempt:        "Lamport balance below rent-exempt threshold",
	ErrInsufficientFunds:    "Insufficient funds",
	ErrInvalidMint:          "Invalid Mint",
	ErrMintMismatch:         "Account not associated with this Mint",
	ErrOwnerMismatch:        "Owner does not match",
	ErrFixedSupply:          "Fixed supply",
	ErrAlreadyInUse:         "Already in use",
	ErrUninitializedState:   "State is uninitialized",
	ErrNonNativeHasBalance:  "Non-native account can only be closed if its balance is zero",
	ErrInvalidInstruction:   "Invalid instruction",
	ErrOverflow:             "Operation overflowed",
	ErrAccountFrozen:        "Account is frozen",
	ErrMintDecimalsMismatch: "The provided decimals value different from the Mint decimals",
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("token error %d", uint32(e))
}

// Code implements svm.CodedError.
func (e Error) Code() uint64 { return uint64(e) }

// CustomCode implements svm.CustomError.
func (e Error) CustomCode() uint32 { return uint32(e) }
