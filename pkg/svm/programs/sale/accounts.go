package sale

import "github.com/fortiblox/clash-ico/pkg/svm"

// InitializeAccounts are the accounts of an Initialize instruction, in order.
type InitializeAccounts struct {
	Initializer             *svm.AccountInfo
	InitializerTokenAccount *svm.AccountInfo
	Mint                    *svm.AccountInfo
	SaleRecord              *svm.AccountInfo
	Custody                 *svm.AccountInfo
	SystemProgram           *svm.AccountInfo
	TokenProgram            *svm.AccountInfo
	AssociatedTokenProgram  *svm.AccountInfo
	Rent                    *svm.AccountInfo
}

// ExchangeAccounts are the accounts of an Exchange instruction, in order.
type ExchangeAccounts struct {
	Payer                  *svm.AccountInfo
	PayerTokenAccount      *svm.AccountInfo
	Treasury               *svm.AccountInfo
	Custody                *svm.AccountInfo
	Mint                   *svm.AccountInfo
	Program                *svm.AccountInfo
	Authority              *svm.AccountInfo
	SystemProgram          *svm.AccountInfo
	TokenProgram           *svm.AccountInfo
	AssociatedTokenProgram *svm.AccountInfo
	Rent                   *svm.AccountInfo
}

// ExecutePaymentAccounts are the accounts of an ExecutePayment instruction,
// in order.
type ExecutePaymentAccounts struct {
	Payer                  *svm.AccountInfo
	PayerTokenAccount      *svm.AccountInfo
	Mint                   *svm.AccountInfo
	TrustedSigner          *svm.AccountInfo
	Custody                *svm.AccountInfo
	Program                *svm.AccountInfo
	Authority              *svm.AccountInfo
	SystemProgram          *svm.AccountInfo
	TokenProgram           *svm.AccountInfo
	AssociatedTokenProgram *svm.AccountInfo
	Rent                   *svm.AccountInfo
}

// TerminateAccounts are the accounts of a Terminate instruction, in order.
type TerminateAccounts struct {
	Initializer             *svm.AccountInfo
	InitializerTokenAccount *svm.AccountInfo
	Mint                    *svm.AccountInfo
	SaleRecord              *svm.AccountInfo
	Custody                 *svm.AccountInfo
	TokenProgram            *svm.AccountInfo
}

// accountCheck is one structural requirement of ValidateAccount.
type accountCheck struct {
	acc                      *svm.AccountInfo
	signer, writable, funded bool
}

func validateAll(ctx svm.InvokeContext, checks ...accountCheck) error {
	for _, c := range checks {
		if err := ValidateAccount(ctx, c.acc, c.signer, c.writable, c.funded); err != nil {
			return err
		}
	}
	return nil
}

func parseInitializeAccounts(ctx svm.InvokeContext, accounts []*svm.AccountInfo) (*InitializeAccounts, error) {
	if err := svm.CheckAccounts(accounts, 9); err != nil {
		return nil, err
	}
	a := &InitializeAccounts{
		Initializer:             accounts[0],
		InitializerTokenAccount: accounts[1],
		Mint:                    accounts[2],
		SaleRecord:              accounts[3],
		Custody:                 accounts[4],
		SystemProgram:           accounts[5],
		TokenProgram:            accounts[6],
		AssociatedTokenProgram:  accounts[7],
		Rent:                    accounts[8],
	}
	return a, validateAll(ctx,
		accountCheck{a.Initializer, true, false, true},
		accountCheck{a.InitializerTokenAccount, false, false, true},
		accountCheck{a.Mint, false, true, true},
		accountCheck{a.SaleRecord, false, true, false},
		accountCheck{a.Custody, false, true, false},
	)
}

func parseExchangeAccounts(ctx svm.InvokeContext, accounts []*svm.AccountInfo) (*ExchangeAccounts, error) {
	if err := svm.CheckAccounts(accounts, 11); err != nil {
		return nil, err
	}
	a := &ExchangeAccounts{
		Payer:                  accounts[0],
		PayerTokenAccount:      accounts[1],
		Treasury:               accounts[2],
		Custody:                accounts[3],
		Mint:                   accounts[4],
		Program:                accounts[5],
		Authority:              accounts[6],
		SystemProgram:          accounts[7],
		TokenProgram:           accounts[8],
		AssociatedTokenProgram: accounts[9],
		Rent:                   accounts[10],
	}
	return a, validateAll(ctx,
		accountCheck{a.Payer, true, true, true},
		accountCheck{a.PayerTokenAccount, false, true, false},
		accountCheck{a.Treasury, false, true, true},
		accountCheck{a.Custody, false, true, true},
		accountCheck{a.Mint, false, false, true},
	)
}

func parseExecutePaymentAccounts(ctx svm.InvokeContext, accounts []*svm.AccountInfo) (*ExecutePaymentAccounts, error) {
	if err := svm.CheckAccounts(accounts, 11); err != nil {
		return nil, err
	}
	a := &ExecutePaymentAccounts{
		Payer:                  accounts[0],
		PayerTokenAccount:      accounts[1],
		Mint:                   accounts[2],
		TrustedSigner:          accounts[3],
		Custody:                accounts[4],
		Program:                accounts[5],
		Authority:              accounts[6],
		SystemProgram:          accounts[7],
		TokenProgram:           accounts[8],
		AssociatedTokenProgram: accounts[9],
		Rent:                   accounts[10],
	}
	return a, validateAll(ctx,
		accountCheck{a.Payer, false, false, true},
		accountCheck{a.PayerTokenAccount, false, true, false},
		accountCheck{a.Mint, false, false, true},
		accountCheck{a.TrustedSigner, true, false, true},
		accountCheck{a.Custody, false, true, true},
	)
}

func parseTerminateAccounts(ctx svm.InvokeContext, accounts []*svm.AccountInfo) (*TerminateAccounts, error) {
	if err := svm.CheckAccounts(accounts, 6); err != nil {
		return nil, err
	}
	a := &TerminateAccounts{
		Initializer:             accounts[0],
		InitializerTokenAccount: accounts[1],
		Mint:                    accounts[2],
		SaleRecord:              accounts[3],
		Custody:                 accounts[4],
		TokenProgram:            accounts[5],
	}
	return a, validateAll(ctx,
		accountCheck{a.Initializer, true, false, true},
		accountCheck{a.InitializerTokenAccount, false, false, true},
		accountCheck{a.Mint, false, true, true},
		accountCheck{a.SaleRecord, false, true, false},
		accountCheck{a.Custody, false, true, false},
	)
}
