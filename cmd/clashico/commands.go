package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/journal"
	"github.com/fortiblox/clash-ico/pkg/runtime"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands = map[string]command{
	"genesis":    {"create the sale mint and fund wallets: [-fund key=lamports]...", cmdGenesis},
	"initialize": {"start the sale: [-stock amount]", cmdInitialize},
	"exchange":   {"buy tokens with SOL: -payer key <lamports>", cmdExchange},
	"pay":        {"deliver tokens for an off-chain payment: -payer key <amount>", cmdPay},
	"terminate":  {"end the sale and return custody to the initializer", cmdTerminate},
	"quote":      {"price an offer without executing it: <lamports>", cmdQuote},
	"balance":    {"show lamports and sale tokens of a wallet: <key>", cmdBalance},
	"journal":    {"list recorded transactions: [-limit n] [-account key]", cmdJournal},
	"snapshot":   {"write the ledger to a file: <file>", cmdSnapshot},
	"restore":    {"load a snapshot into an empty data dir: <file>", cmdRestore},
	"state-hash": {"print the ledger state hash", cmdStateHash},
	"gc":         {"compact the accounts database", cmdGC},
	"serve":      {"serve the ledger over JSON-RPC until interrupted", cmdServe},
}

// fundFlag collects repeated key=lamports pairs.
type fundFlag map[types.Pubkey]uint64

func (f fundFlag) String() string {
	parts := make([]string, 0, len(f))
	for key, lamports := range f {
		parts = append(parts, fmt.Sprintf("%s=%d", key, lamports))
	}
	return strings.Join(parts, ",")
}

func (f fundFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return errors.Errorf("expected key=lamports, got %q", s)
	}
	key, err := types.PubkeyFromBase58(k)
	if err != nil {
		return err
	}
	lamports, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return errors.Wrap(err, "lamports")
	}
	f[key] += lamports
	return nil
}

// pubkeyFlag is a base58 address flag.
type pubkeyFlag struct {
	key types.Pubkey
	set bool
}

func (p *pubkeyFlag) String() string {
	if !p.set {
		return ""
	}
	return p.key.String()
}

func (p *pubkeyFlag) Set(s string) error {
	key, err := types.PubkeyFromBase58(s)
	if err != nil {
		return err
	}
	p.key, p.set = key, true
	return nil
}

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.out)
	return fs
}

// parseArgs parses fs and requires exactly n positional arguments.
func parseArgs(fs *flag.FlagSet, args []string, n int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != n {
		return nil, errors.Errorf("%s: expected %d argument(s), got %d", fs.Name(), n, fs.NArg())
	}
	return fs.Args(), nil
}

func parseUint(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return v, errors.Wrap(err, name)
}

func cmdGenesis(e *env, args []string) error {
	fs := newFlagSet(e, "genesis")
	funds := fundFlag{}
	fs.Var(funds, "fund", "credit a wallet at genesis, key=lamports (repeatable)")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	initializer, err := e.config.initializer()
	if err != nil {
		return err
	}
	funds[initializer] += e.config.InitialBalance

	g := runtime.Genesis{
		Balances:      funds,
		MintAuthority: initializer,
		Decimals:      e.config.Decimals,
	}
	if err := e.rt.ApplyGenesis(context.Background(), g); err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"mint":     sale.ClashTokenID.String(),
		"decimals": g.Decimals,
		"wallets":  len(funds),
	}).Info("genesis applied")
	fmt.Fprintf(e.out, "mint: %s\ndecimals: %d\nauthority: %s\n", sale.ClashTokenID, g.Decimals, initializer)
	return nil
}

func cmdInitialize(e *env, args []string) error {
	fs := newFlagSet(e, "initialize")
	stock := fs.Uint64("stock", 0, "base units minted into custody after initialization")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	initializer, err := e.config.initializer()
	if err != nil {
		return err
	}
	ixs := []svm.Instruction{
		sale.Initialize(sale.ProgramID, initializer, associated.MustFindAddress(initializer, sale.ClashTokenID)),
	}
	if *stock > 0 {
		custody := sale.CustodyAddress(sale.MustDeriveProgramAuthority(sale.ProgramID))
		ixs = append(ixs, token.MintTo(sale.ClashTokenID, custody, initializer, *stock))
	}
	return e.execute(ixs...)
}

func cmdExchange(e *env, args []string) error {
	fs := newFlagSet(e, "exchange")
	var payer pubkeyFlag
	fs.Var(&payer, "payer", "wallet paying lamports for tokens")
	rest, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	if !payer.set {
		return errors.New("exchange: -payer is required")
	}
	lamports, err := parseUint("lamports", rest[0])
	if err != nil {
		return err
	}
	return e.execute(sale.Exchange(sale.ProgramID, payer.key, lamports))
}

func cmdPay(e *env, args []string) error {
	fs := newFlagSet(e, "pay")
	var payer pubkeyFlag
	fs.Var(&payer, "payer", "wallet receiving the tokens")
	rest, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	if !payer.set {
		return errors.New("pay: -payer is required")
	}
	amount, err := parseUint("amount", rest[0])
	if err != nil {
		return err
	}
	return e.execute(sale.ExecutePayment(sale.ProgramID, payer.key, sale.PaymentAuthority, amount))
}

func cmdTerminate(e *env, args []string) error {
	if _, err := parseArgs(newFlagSet(e, "terminate"), args, 0); err != nil {
		return err
	}
	initializer, err := e.config.initializer()
	if err != nil {
		return err
	}
	return e.execute(sale.Terminate(sale.ProgramID, initializer, associated.MustFindAddress(initializer, sale.ClashTokenID)))
}

func cmdQuote(e *env, args []string) error {
	rest, err := parseArgs(newFlagSet(e, "quote"), args, 1)
	if err != nil {
		return err
	}
	lamports, err := parseUint("lamports", rest[0])
	if err != nil {
		return err
	}
	decimals, err := e.decimals()
	if err != nil {
		return err
	}

	q, amount, err := sale.DefaultPricing.QuoteAmount(lamports, decimals)
	fmt.Fprintf(e.out, "SOL: %s\nUSD: %s\ntokens: %s\n",
		decimal.NewFromFloat(q.SOL), decimal.NewFromFloat(q.USD), decimal.NewFromFloat(q.Clash))
	if err != nil {
		fmt.Fprintf(e.out, "rejected: %s %v\n", svm.Status(err), err)
		return nil
	}
	fmt.Fprintf(e.out, "base units: %d\n", amount)
	return nil
}

func cmdBalance(e *env, args []string) error {
	rest, err := parseArgs(newFlagSet(e, "balance"), args, 1)
	if err != nil {
		return err
	}
	wallet, err := types.PubkeyFromBase58(rest[0])
	if err != nil {
		return err
	}

	var lamports uint64
	acc, err := e.db.GetAccount(wallet)
	switch {
	case err == nil:
		lamports = acc.Lamports
	case !errors.Is(err, accounts.ErrAccountNotFound):
		return err
	}

	tokens, err := e.tokenBalance(associated.MustFindAddress(wallet, sale.ClashTokenID))
	if err != nil {
		return err
	}
	decimals, err := e.decimals()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "lamports: %d\ntokens: %s\n", lamports, sale.FormatTokenAmount(tokens, decimals))
	return nil
}

func cmdJournal(e *env, args []string) error {
	fs := newFlagSet(e, "journal")
	limit := fs.Int("limit", 10, "maximum entries, 0 for all")
	var account pubkeyFlag
	fs.Var(&account, "account", "only transactions that modified this account")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	if e.journal == nil {
		return errors.New("journal is disabled")
	}

	var entries []*journal.Entry
	var err error
	if account.set {
		entries, err = e.journal.ListByAccount(account.key, *limit)
	} else {
		entries, err = e.journal.List(*limit)
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		programs := make([]string, len(entry.Instructions))
		for i, ix := range entry.Instructions {
			programs[i] = ix.ProgramID.String()
		}
		fmt.Fprintf(e.out, "%d %s %s cu=%d modified=%d programs=%s\n",
			entry.Seq, entry.Time.Format("2006-01-02T15:04:05Z"), entry.Status,
			entry.ComputeUnits, len(entry.Modified), strings.Join(programs, ","))
	}
	return nil
}

func cmdSnapshot(e *env, args []string) error {
	rest, err := parseArgs(newFlagSet(e, "snapshot"), args, 1)
	if err != nil {
		return err
	}
	header, err := accounts.WriteSnapshotFile(rest[0], e.db)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "accounts: %d\nstate hash: %s\n", header.AccountsCount, header.StateHash)
	return nil
}

func cmdRestore(e *env, args []string) error {
	rest, err := parseArgs(newFlagSet(e, "restore"), args, 1)
	if err != nil {
		return err
	}
	n, err := e.db.AccountsCount()
	if err != nil {
		return err
	}
	if n != 0 {
		return errors.Errorf("data dir %s already holds %d accounts", e.config.DataDir, n)
	}
	header, err := accounts.ReadSnapshotFile(rest[0], e.db)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "accounts: %d\nstate hash: %s\n", header.AccountsCount, header.StateHash)
	return nil
}

func cmdStateHash(e *env, args []string) error {
	if _, err := parseArgs(newFlagSet(e, "state-hash"), args, 0); err != nil {
		return err
	}
	hash, err := accounts.ComputeStateHash(e.db)
	if err != nil {
		return err
	}
	n, err := e.db.AccountsCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "accounts: %d\nstate hash: %s\n", n, hash)
	return nil
}

func cmdGC(e *env, args []string) error {
	if _, err := parseArgs(newFlagSet(e, "gc"), args, 0); err != nil {
		return err
	}
	return e.db.RunGC()
}

// execute runs ixs as one transaction and prints the outcome. A failed
// transaction is returned as an error wrapping the instruction error.
func (e *env) execute(ixs ...svm.Instruction) error {
	result, err := e.rt.Execute(context.Background(), &runtime.Transaction{Instructions: ixs})
	if err != nil {
		return err
	}
	printResult(e.out, result)
	if result.Err != nil {
		return errors.Wrapf(result.Err, "transaction failed with %s", result.Status())
	}
	return nil
}

func printResult(w io.Writer, result *runtime.Result) {
	fmt.Fprintf(w, "status: %s\n", result.Status())
	if result.Seq != 0 {
		fmt.Fprintf(w, "seq: %d\n", result.Seq)
	}
	fmt.Fprintf(w, "compute units: %d\n", result.ComputeUnits)
	for _, line := range result.Logs {
		fmt.Fprintf(w, "  %s\n", line)
	}
	for _, key := range result.Modified {
		fmt.Fprintf(w, "modified: %s\n", key)
	}
}

// decimals returns the decimals of the sale mint, or the configured value
// before genesis.
func (e *env) decimals() (uint8, error) {
	acc, err := e.db.GetAccount(sale.ClashTokenID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return e.config.Decimals, nil
	}
	if err != nil {
		return 0, err
	}
	mint, err := token.DecodeMint(acc.Data)
	if err != nil {
		return 0, err
	}
	return mint.Decimals, nil
}

func (e *env) tokenBalance(key types.Pubkey) (uint64, error) {
	acc, err := e.db.GetAccount(key)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ta, err := token.DecodeAccount(acc.Data)
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}
