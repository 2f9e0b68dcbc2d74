package sale

import (
	"errors"
	"fmt"

	"github.com/fortiblox/clash-ico/pkg/svm"
)

// Error is a sale program failure reason. The numeric value is the stable
// custom code reported by the runtime as Custom(n).
type Error uint32

// Sale program errors. Values are part of the wire contract; append only.
const (
	// Instruction decoding
	ErrInvalidInstructionDataEmpty Error = iota
	ErrInvalidProgramInstruction

	// General
	ErrInvalidClashTokenID
	ErrInvalidAddressProgramPDA

	// Initialize
	ErrAlreadyCreatedPDAAccount
	ErrInitializerNotMintAuthority
	ErrInvalidInitializerATAAddress

	// Exchange
	ErrCannotTransferSameAccount
	ErrCannotTransferSameAssociatedAccount
	ErrInvalidSourceAssociatedAccountOwner
	ErrInvalidProgramAssociatedPDAOwner
	ErrInvalidClashTokenDestinationWallet
	ErrInvalidOfferTooFew
	ErrInvalidOfferTooMuch
	ErrInvalidClashTokenAmount
	ErrInsufficientClashToken

	// ExecutePayment
	ErrInvalidClashTrustedAuthority

	// Terminate
	ErrInvalidTerminateUninitializedICO
	ErrInitializerAccountMismatch
	ErrInitializerAssociatedAccountMismatch
)

var errorNames = map[Error]string{
	ErrInvalidInstructionDataEmpty:          "InvalidInstructionDataEmpty",
	ErrInvalidProgramInstruction:            "InvalidProgramInstruction",
	ErrInvalidClashTokenID:                  "InvalidClashTokenId",
	ErrInvalidAddressProgramPDA:             "InvalidAddressProgramPDA",
	ErrAlreadyCreatedPDAAccount:             "AlreadyCreatedPDAAccount",
	ErrInitializerNotMintAuthority:          "InitializerNotMintAuthority",
	ErrInvalidInitializerATAAddress:         "InvalidInitializerATAAddress",
	ErrCannotTransferSameAccount:            "CannotTransferSameAccount",
	ErrCannotTransferSameAssociatedAccount:  "CannotTransferSameAssociatedAccount",
	ErrInvalidSourceAssociatedAccountOwner:  "InvalidSourceAssociatedAccountOwner",
	ErrInvalidProgramAssociatedPDAOwner:     "InvalidProgramAssociatedPDAOwner",
	ErrInvalidClashTokenDestinationWallet:   "InvalidClashTokenDestinationWallet",
	ErrInvalidOfferTooFew:                   "InvalidOfferTooFew",
	ErrInvalidOfferTooMuch:                  "InvalidOfferTooMuch",
	ErrInvalidClashTokenAmount:              "InvalidClashTokenAmount",
	ErrInsufficientClashToken:               "InsuficientClashToken",
	ErrInvalidClashTrustedAuthority:         "InvalidClashTrustedAuthority",
	ErrInvalidTerminateUninitializedICO:     "InvalidTerminateUninitializedICO",
	ErrInitializerAccountMismatch:           "InitializerAccountMismatch",
	ErrInitializerAssociatedAccountMismatch: "InitializerAssociatedAccountMismatch",
}

var errorMessages = map[Error]string{
	ErrInvalidInstructionDataEmpty:          "Invalid instruction data: No data was passed to program",
	ErrInvalidProgramInstruction:            "Invalid program instruction",
	ErrInvalidClashTokenID:                  "Invalid Clash token ID",
	ErrInvalidAddressProgramPDA:             "Program account PDA does not match the expected PDA",
	ErrAlreadyCreatedPDAAccount:             "Program PDA account already exists! Terminate the current ICO and try again",
	ErrInitializerNotMintAuthority:          "Initializer is not the token mint authority",
	ErrInvalidInitializerATAAddress:         "Unexpected address for initializer associated token account",
	ErrCannotTransferSameAccount:            "Cannot transfer SOL from/to the same account",
	ErrCannotTransferSameAssociatedAccount:  "Cannot transfer CLASH from/to the same associated account",
	ErrInvalidSourceAssociatedAccountOwner:  "Invalid source associated account owner: must be owned by the source SOL account",
	ErrInvalidProgramAssociatedPDAOwner:     "Invalid program associated account owner: must be owner by the program PDA",
	ErrInvalidClashTokenDestinationWallet:   "Invalid Clash token destination account address",
	ErrInvalidOfferTooFew:                   "Invalid offer because its value in USD is bellow the limit",
	ErrInvalidOfferTooMuch:                  "Invalid offer because its value in USD is above the limit",
	ErrInvalidClashTokenAmount:              "Invalid Clash token count: more SOL may be required",
	ErrInsufficientClashToken:               "Not enough Clash tokens available to exchange",
	ErrInvalidClashTrustedAuthority:         "Invalid Clash trusted payment authority",
	ErrInvalidTerminateUninitializedICO:     "There is not an initialized ICO to terminate",
	ErrInitializerAccountMismatch:           "Incorrect initializer account",
	ErrInitializerAssociatedAccountMismatch: "Incorrect initializer associated token account",
}

// Name returns the stable identifier of the error.
func (e Error) Name() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ICOError(%d)", uint32(e))
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("unknown ICO error %d", uint32(e))
}

// Code implements svm.CodedError.
func (e Error) Code() uint64 { return uint64(e) }

// CustomCode implements svm.CustomError.
func (e Error) CustomCode() uint32 { return uint32(e) }

// Fail logs err and returns it. Sale errors are logged with their code and
// reason; host errors pass through untouched, their own sites log context.
func Fail(ctx svm.InvokeContext, err error) error {
	var saleErr Error
	if errors.As(err, &saleErr) {
		ctx.Logf("[ICOError #%d] Reason: '%s'", uint32(saleErr), saleErr.Error())
	}
	return err
}
