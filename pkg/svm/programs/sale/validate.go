package sale

import (
	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// ValidateAccount checks the structural requirements of an account in the
// order signer, writable, funded. The first failure is returned.
func ValidateAccount(ctx svm.InvokeContext, acc *svm.AccountInfo, signer, writable, funded bool) error {
	if signer && !acc.IsSigner {
		ctx.Logf("Invalid account info(`%s`): Missing signature!", acc)
		return svm.ErrMissingRequiredSignature
	}
	if writable && !acc.IsWritable {
		ctx.Logf("Invalid account info(`%s`): Missing writeable status!", acc)
		return svm.ErrInvalidArgument
	}
	if funded && acc.Lamports == 0 {
		ctx.Logf("Invalid account info(`%s`): Unfunded account! Balance is 0 lamports.", acc)
		return svm.ErrUninitializedAccount
	}
	return nil
}

// ValidateTokenAccount checks that a token account belongs to owner and
// holds mint, owner first.
func ValidateTokenAccount(ctx svm.InvokeContext, acc *token.Account, owner, mint types.Pubkey) error {
	if acc.Owner != owner {
		ctx.Logf("Invalid associated token account: Owner mismatch!\nExpected Owner: %s\nAccount Owner: %s", owner, acc.Owner)
		return svm.ErrIllegalOwner
	}
	if acc.Mint != mint {
		ctx.Logf("Invalid associated token account: Mint mismatch!\nExpected Mint: %s\nAccount Mint: %s", mint, acc.Mint)
		return svm.ErrInvalidArgument
	}
	return nil
}
