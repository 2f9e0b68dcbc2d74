package sale

import (
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// exchange sells tokens from custody for lamports paid to the treasury.
func (p *Processor) exchange(ctx svm.InvokeContext, accounts []*svm.AccountInfo, req ExchangeRequest) error {
	ctx.Log("Processing exchange SOL by CLASH tokens instruction.")

	a, err := parseExchangeAccounts(ctx, accounts)
	if err != nil {
		return err
	}

	if err := checkProgram(ctx, a.Program); err != nil {
		return err
	}
	if err := checkMintID(a.Mint); err != nil {
		return err
	}
	if a.Payer.Key == a.Treasury.Key {
		return ErrCannotTransferSameAccount
	}
	if a.Custody.Key == a.PayerTokenAccount.Key {
		return ErrCannotTransferSameAssociatedAccount
	}
	if a.Treasury.Key != TreasuryWallet {
		return ErrInvalidClashTokenDestinationWallet
	}

	if a.PayerTokenAccount.Lamports != 0 {
		dest, err := token.DecodeAccount(a.PayerTokenAccount.Data)
		if err != nil {
			return err
		}
		if dest.Owner != a.Payer.Key {
			return ErrInvalidSourceAssociatedAccountOwner
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

	lamports := req.SolAsLamportsAmount
	quote, err := p.pricing.Quote(lamports)
	if err != nil {
		return err
	}
	decimals, err := mintDecimals(a.Mint)
	if err != nil {
		return err
	}
	amount, err := quote.Amount(decimals)
	if err != nil {
		return err
	}

	if a.Payer.Lamports <= lamports {
		return svm.ErrInsufficientFunds
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

	ctx.Logf("Exchanging %s SOL tokens(%sUSD) by %s CLASH tokens from account `%s` to `%s`",
		formatFloat(quote.SOL), formatFloat(quote.USD), formatFloat(quote.Clash), a.Payer, a.Treasury)

	if err := ctx.Invoke(system.Transfer(a.Payer.Key, a.Treasury.Key, lamports)); err != nil {
		return err
	}
	ctx.Logf("Success transferred %d lamports from `%s` to `%s`.", lamports, a.Payer, a.Treasury)

	transfer := token.TransferChecked(a.Custody.Key, a.Mint.Key, a.PayerTokenAccount.Key, auth.Address(), amount, decimals)
	if err := ctx.Invoke(transfer, auth.SignerSeeds()); err != nil {
		return err
	}
	ctx.Logf("Success transferring %s CLASH tokens from `%s` to `%s`.",
		FormatTokenAmount(amount, decimals), a.Custody, a.PayerTokenAccount)
	return nil
}
