package sale

import (
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/system"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// initialize creates the sale record and, if missing, the custody account.
func (p *Processor) initialize(ctx svm.InvokeContext, accounts []*svm.AccountInfo) error {
	ctx.Log("Initializing Clash ICO accounts and data")

	a, err := parseInitializeAccounts(ctx, accounts)
	if err != nil {
		return err
	}

	initializerToken, err := token.DecodeAccount(a.InitializerTokenAccount.Data)
	if err != nil {
		return err
	}
	if err := ValidateTokenAccount(ctx, initializerToken, a.Initializer.Key, ClashTokenID); err != nil {
		return ErrInvalidInitializerATAAddress
	}
	if err := checkMintID(a.Mint); err != nil {
		return err
	}

	auth, err := authority(ctx, a.SaleRecord)
	if err != nil {
		return err
	}

	if a.SaleRecord.Lamports != 0 {
		existing, err := DecodeSaleRecord(a.SaleRecord.Data)
		if err != nil {
			return err
		}
		ctx.Logf("ICO was already initialized by `%s`", existing.Initializer)
		return ErrAlreadyCreatedPDAAccount
	}

	mint, err := token.DecodeMint(a.Mint.Data)
	if err != nil {
		return err
	}
	if !mint.MintAuthority.Contains(a.Initializer.Key) {
		return ErrInitializerNotMintAuthority
	}

	ctx.Logf("Creating ICO data account(PDA): `%s`\nInitializer: `%s`", a.SaleRecord, a.Initializer)

	create := system.CreateAccount(a.Initializer.Key, a.SaleRecord.Key,
		ctx.RentMinimum(SaleRecordSize), SaleRecordSize, ctx.ProgramID())
	if err := ctx.Invoke(create, auth.SignerSeeds()); err != nil {
		return err
	}

	if a.Custody.Lamports == 0 {
		ctx.Logf("Creating ATA account `%s` for program PDA `%s` to hold Clash tokens because it does not exists yet",
			a.Custody, a.SaleRecord)
		if err := ctx.Invoke(associated.Create(a.Initializer.Key, auth.Address(), a.Mint.Key)); err != nil {
			return err
		}
		ctx.Logf("Success creating ATA account `%s` for program PDA account `%s`", a.Custody, a.SaleRecord)
	}

	record := &SaleRecord{
		Initializer:             a.Initializer.Key,
		InitializerTokenAccount: a.InitializerTokenAccount.Key,
	}
	if len(a.SaleRecord.Data) != SaleRecordSize {
		return svm.ErrAccountDataTooSmall
	}
	copy(a.SaleRecord.Data, record.Encode())

	ctx.Logf("Clash ICO program initialized by `%s`.", a.Initializer)
	return nil
}
