package sale

import (
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// terminate returns custody tokens and every sale lamport to the initializer
// and clears the sale record, after which Initialize is accepted again.
func (p *Processor) terminate(ctx svm.InvokeContext, accounts []*svm.AccountInfo) error {
	ctx.Log("Terminating Clash ICO accounts and metadata.")

	a, err := parseTerminateAccounts(ctx, accounts)
	if err != nil {
		return err
	}

	if err := checkMintID(a.Mint); err != nil {
		return err
	}
	auth, err := authority(ctx, a.SaleRecord)
	if err != nil {
		return err
	}
	if a.SaleRecord.Lamports == 0 {
		return ErrInvalidTerminateUninitializedICO
	}

	record, err := DecodeSaleRecord(a.SaleRecord.Data)
	if err != nil {
		return err
	}
	ctx.Logf("Terminating an ICO initialized by `%s`", record.Initializer)

	if record.Initializer != a.Initializer.Key {
		return ErrInitializerAccountMismatch
	}
	if record.InitializerTokenAccount != a.InitializerTokenAccount.Key {
		return ErrInitializerAssociatedAccountMismatch
	}

	decimals, err := mintDecimals(a.Mint)
	if err != nil {
		return err
	}

	if a.Custody.Lamports != 0 {
		ctx.Logf("Closing ATA account `%s` from program PDA `%s` and returning %d lamports to initializer account",
			a.Custody, a.SaleRecord, a.Custody.Lamports)

		custody, err := token.DecodeAccount(a.Custody.Data)
		if err != nil {
			return err
		}
		if err := ValidateTokenAccount(ctx, custody, auth.Address(), ClashTokenID); err != nil {
			return err
		}

		if custody.Amount > 0 {
			ctx.Logf("Transferring %s remaining Clash tokens to initializer Clash associated token account",
				FormatTokenAmount(custody.Amount, decimals))
			sweep := token.TransferChecked(a.Custody.Key, a.Mint.Key, a.InitializerTokenAccount.Key,
				auth.Address(), custody.Amount, decimals)
			if err := ctx.Invoke(sweep, auth.SignerSeeds()); err != nil {
				return err
			}
		}

		closeIx := token.CloseAccount(a.Custody.Key, a.Initializer.Key, auth.Address())
		if err := ctx.Invoke(closeIx, auth.SignerSeeds()); err != nil {
			return err
		}
		ctx.Log("Success closing Clash associated token account owned by the ICO program.")
	}

	ctx.Logf("Closing program account `%s`(PDA) and sending lamports back to initializer", a.SaleRecord)

	lamports := a.SaleRecord.Lamports
	ctx.Logf("Transferring %d lamports back to initializer account", lamports)

	if a.Initializer.Lamports > ^uint64(0)-lamports {
		return svm.ErrArithmeticOverflow
	}
	a.SaleRecord.Lamports = 0
	a.Initializer.Lamports += lamports
	for i := range a.SaleRecord.Data {
		a.SaleRecord.Data[i] = 0
	}

	ctx.Log("ICO has been terminated.")
	return nil
}
