package sale

import (
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// executePayment credits tokens for a payment settled off-chain. The trusted
// signer check is the only authorization; no lamports move.
func (p *Processor) executePayment(ctx svm.InvokeContext, accounts []*svm.AccountInfo, conf PaymentConfirmation) error {
	ctx.Log("Processing payment of CLASH tokens payed via Coinpayment")

	a, err := parseExecutePaymentAccounts(ctx, accounts)
	if err != nil {
		return err
	}

	if err := checkProgram(ctx, a.Program); err != nil {
		return err
	}
	if err := checkMintID(a.Mint); err != nil {
		return err
	}
	if a.PayerTokenAccount.Key == a.Custody.Key {
		return ErrCannotTransferSameAssociatedAccount
	}
	if a.TrustedSigner.Key != PaymentAuthority {
		return ErrInvalidClashTrustedAuthority
	}

	if a.PayerTokenAccount.Lamports != 0 {
		dest, err := token.DecodeAccount(a.PayerTokenAccount.Data)
		if err != nil {
			return err
		}
		if dest.Owner != a.Payer.Key {
			return ErrInvalidClashTokenDestinationWallet
		}
	}

	auth, err := authority(ctx, a.Authority)
	if err != nil {
		return err
	}
	custody, err := custodyBalance(a.Custody, auth)
	if err != nil {
		return err
	}

	amount := conf.ClashTokenAmount
	if amount == 0 {
		return ErrInvalidClashTokenAmount
	}
	if custody.Amount < amount {
		return ErrInsufficientClashToken
	}

	if a.PayerTokenAccount.Lamports == 0 {
		ctx.Logf("Creating ATA account `%s` because it does not exists yet", a.PayerTokenAccount)
		if err := ctx.Invoke(associated.Create(a.Payer.Key, a.Payer.Key, a.Mint.Key)); err != nil {
			return err
		}
		ctx.Logf("Success creating ATA account `%s` for account `%s`", a.PayerTokenAccount, a.Payer)
	}

	decimals, err := mintDecimals(a.Mint)
	if err != nil {
		return err
	}
	whole := FormatTokenAmount(amount, decimals)

	ctx.Logf("Transferring %s CLASH tokens to account `%s` for its payment via CoinPayment", whole, a.PayerTokenAccount)

	transfer := token.TransferChecked(a.Custody.Key, a.Mint.Key, a.PayerTokenAccount.Key, auth.Address(), amount, decimals)
	if err := ctx.Invoke(transfer, auth.SignerSeeds()); err != nil {
		return err
	}
	ctx.Logf("Success transferring %s CLASH tokens from `%s` to `%s`.", whole, a.Custody, a.PayerTokenAccount)
	return nil
}
