package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/journal"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// Version is reported by getVersion.
var Version = "0.1.0"

const (
	maxMultipleAccounts = 100
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

func parseParams(params json.RawMessage, required int, what string) ([]json.RawMessage, *RPCError) {
	var args []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, InvalidParamsError("invalid params")
		}
	}
	if len(args) < required {
		return nil, InvalidParamsErrorf("missing %s parameter", what)
	}
	return args, nil
}

func parsePubkey(raw json.RawMessage, what string) (types.Pubkey, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Pubkey{}, InvalidParamsErrorf("invalid %s", what)
	}
	key, err := types.PubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}, InvalidParamsErrorf("invalid %s format", what)
	}
	return key, nil
}

// parseConfig decodes the optional config object at args[i].
func parseConfig(args []json.RawMessage, i int, config interface{}) *RPCError {
	if len(args) <= i {
		return nil
	}
	if err := json.Unmarshal(args[i], config); err != nil {
		return InvalidParamsError("invalid config")
	}
	return nil
}

// Account Methods

func (s *Server) getAccountInfo(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(args[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var config AccountInfoConfig
	if rpcErr := parseConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	info, rpcErr := s.lookupAccountInfo(pubkey, config.Encoding, config.DataSlice)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.withContext(info), nil
}

func (s *Server) getBalance(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(args[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, err := s.accountsDB.GetAccount(pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return s.withContext(uint64(0)), nil
	}
	if err != nil {
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}
	return s.withContext(account.Lamports), nil
}

func (s *Server) getMultipleAccounts(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "pubkeys")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var pubkeyStrs []string
	if err := json.Unmarshal(args[0], &pubkeyStrs); err != nil {
		return nil, InvalidParamsError("invalid pubkeys array")
	}
	if len(pubkeyStrs) > maxMultipleAccounts {
		return nil, InvalidParamsErrorf("too many pubkeys (max %d)", maxMultipleAccounts)
	}
	var config AccountInfoConfig
	if rpcErr := parseConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	infos := make([]*AccountInfo, len(pubkeyStrs))
	for i, pubkeyStr := range pubkeyStrs {
		pubkey, err := types.PubkeyFromBase58(pubkeyStr)
		if err != nil {
			return nil, InvalidParamsErrorf("invalid pubkey at index %d", i)
		}
		if infos[i], rpcErr = s.lookupAccountInfo(pubkey, config.Encoding, config.DataSlice); rpcErr != nil {
			return nil, rpcErr
		}
	}
	return s.withContext(infos), nil
}

func (s *Server) getProgramAccounts(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "program ID")
	if rpcErr != nil {
		return nil, rpcErr
	}
	programID, rpcErr := parsePubkey(args[0], "program ID")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var config ProgramAccountsConfig
	if rpcErr := parseConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}
	filters, rpcErr := compileFilters(config.Filters)
	if rpcErr != nil {
		return nil, rpcErr
	}

	results := []KeyedAccountInfo{}
	err := s.accountsDB.IterateAccounts(func(pubkey types.Pubkey, account *accounts.Account) error {
		if account.Owner != programID || !filters.match(account.Data) {
			return nil
		}
		info, rpcErr := s.accountToAccountInfo(account, config.Encoding, config.DataSlice)
		if rpcErr != nil {
			return rpcErr
		}
		results = append(results, KeyedAccountInfo{Pubkey: pubkey.String(), Account: info})
		return nil
	})
	if err != nil {
		return nil, NewRPCError(ScanError, err.Error())
	}

	if config.WithContext {
		return s.withContext(results), nil
	}
	return results, nil
}

// Token Methods

func (s *Server) getTokenAccountBalance(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(args[0], "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	tokenAccount, rpcErr := s.loadTokenAccount(pubkey)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := s.loadMint(tokenAccount.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.withContext(tokenAmount(tokenAccount.Amount, mint.Decimals)), nil
}

func (s *Server) getTokenSupply(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(args[0], "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}

	mint, rpcErr := s.loadMint(pubkey)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.withContext(tokenAmount(mint.Supply, mint.Decimals)), nil
}

// Sale Methods

// getSaleState reports whether a sale is running, who started it and what
// custody still holds.
func (s *Server) getSaleState(params json.RawMessage) (interface{}, *RPCError) {
	auth := sale.MustDeriveProgramAuthority(sale.ProgramID)
	custody := sale.CustodyAddress(auth)
	state := &SaleState{
		Address: auth.Address().String(),
		Custody: custody.String(),
	}

	account, err := s.accountsDB.GetAccount(auth.Address())
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
	case err != nil:
		return nil, InternalServerErrorf("failed to get sale record: %v", err)
	case account.Owner == sale.ProgramID && len(account.Data) == sale.SaleRecordSize:
		record, err := sale.DecodeSaleRecord(account.Data)
		if err != nil {
			return nil, InternalServerErrorf("failed to decode sale record: %v", err)
		}
		state.Active = true
		state.Initializer = record.Initializer.String()
		state.InitializerTokenAccount = record.InitializerTokenAccount.String()
	}

	if tokenAccount, rpcErr := s.loadTokenAccount(custody); rpcErr == nil {
		mint, rpcErr := s.loadMint(tokenAccount.Mint)
		if rpcErr != nil {
			return nil, rpcErr
		}
		state.CustodyBalance = tokenAmount(tokenAccount.Amount, mint.Decimals)
	}
	return s.withContext(state), nil
}

// getQuote prices an exchange offer of the given lamports at the compiled-in
// rates. A rejected offer is a successful response with err set.
func (s *Server) getQuote(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "lamports")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var lamports uint64
	if err := json.Unmarshal(args[0], &lamports); err != nil {
		return nil, InvalidParamsError("invalid lamports")
	}
	mint, rpcErr := s.loadMint(sale.ClashTokenID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	q, amount, err := sale.DefaultPricing.QuoteAmount(lamports, mint.Decimals)
	resp := &QuoteResponse{
		Lamports: lamports,
		SOL:      decimal.NewFromFloat(q.SOL).String(),
		USD:      decimal.NewFromFloat(q.USD).String(),
	}
	if err != nil {
		resp.Error = svm.Status(err) + ": " + err.Error()
	} else {
		resp.Tokens = tokenAmount(amount, mint.Decimals)
	}
	return resp, nil
}

// Journal Methods

func (s *Server) getTransaction(params json.RawMessage) (interface{}, *RPCError) {
	if s.journal == nil {
		return nil, ErrNoHistory
	}
	args, rpcErr := parseParams(params, 1, "sequence number")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var seq uint64
	if err := json.Unmarshal(args[0], &seq); err != nil {
		return nil, InvalidParamsError("invalid sequence number")
	}

	entry, err := s.journal.Get(seq)
	if errors.Is(err, journal.ErrEntryNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, InternalServerErrorf("failed to read journal: %v", err)
	}
	return entryToResponse(entry), nil
}

func (s *Server) getTransactionsForAddress(params json.RawMessage) (interface{}, *RPCError) {
	if s.journal == nil {
		return nil, ErrNoHistory
	}
	args, rpcErr := parseParams(params, 1, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	pubkey, rpcErr := parsePubkey(args[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	config := LimitConfig{Limit: defaultHistoryLimit}
	if rpcErr := parseConfig(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}
	if config.Limit <= 0 || config.Limit > maxHistoryLimit {
		return nil, InvalidParamsErrorf("limit must be between 1 and %d", maxHistoryLimit)
	}

	entries, err := s.journal.ListByAccount(pubkey, config.Limit)
	if err != nil {
		return nil, InternalServerErrorf("failed to read journal: %v", err)
	}
	out := make([]*TransactionResponse, len(entries))
	for i, e := range entries {
		out[i] = entryToResponse(e)
	}
	return out, nil
}

func (s *Server) getTransactionCount(params json.RawMessage) (interface{}, *RPCError) {
	if s.journal == nil {
		return nil, ErrNoHistory
	}
	n, err := s.journal.Count()
	if err != nil {
		return nil, InternalServerErrorf("failed to read journal: %v", err)
	}
	return n, nil
}

// Node Methods

func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	return "ok", nil
}

func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return map[string]interface{}{
		"clash-ico":   Version,
		"saleProgram": sale.ProgramID.String(),
	}, nil
}

func (s *Server) getStateHash(params json.RawMessage) (interface{}, *RPCError) {
	hash, err := accounts.ComputeStateHash(s.accountsDB)
	if err != nil {
		return nil, InternalServerErrorf("failed to hash state: %v", err)
	}
	n, err := s.accountsDB.AccountsCount()
	if err != nil {
		return nil, InternalServerErrorf("failed to count accounts: %v", err)
	}
	return s.withContext(map[string]interface{}{
		"stateHash": hash.String(),
		"accounts":  n,
	}), nil
}

func (s *Server) getMinimumBalanceForRentExemption(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseParams(params, 1, "data length")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var dataLen uint64
	if err := json.Unmarshal(args[0], &dataLen); err != nil {
		return nil, InvalidParamsError("invalid data length")
	}
	if dataLen > accounts.MaxDataSize {
		return nil, InvalidParamsErrorf("data length exceeds %d", accounts.MaxDataSize)
	}
	return svm.MinimumBalance(dataLen), nil
}

// Helper methods

func (s *Server) withContext(value interface{}) ResponseWithContext {
	var seq uint64
	if s.journal != nil {
		seq, _ = s.journal.Count()
	}
	return ResponseWithContext{Context: Context{Seq: seq}, Value: value}
}

// lookupAccountInfo returns nil for missing accounts.
func (s *Server) lookupAccountInfo(pubkey types.Pubkey, encoding Encoding, dataSlice *DataSlice) (*AccountInfo, *RPCError) {
	account, err := s.accountsDB.GetAccount(pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}
	return s.accountToAccountInfo(account, encoding, dataSlice)
}

func (s *Server) accountToAccountInfo(account *accounts.Account, encoding Encoding, dataSlice *DataSlice) (*AccountInfo, *RPCError) {
	info := &AccountInfo{
		Executable: account.Executable,
		Lamports:   account.Lamports,
		Owner:      account.Owner.String(),
		RentEpoch:  account.RentEpoch,
		Space:      uint64(len(account.Data)),
	}

	if encoding == EncodingJSONParsed && dataSlice == nil {
		if parsed := s.parseAccount(account); parsed != nil {
			info.Data = parsed
			return info, nil
		}
	}

	encoded, err := EncodeAccountData(ApplyDataSlice(account.Data, dataSlice), encoding)
	if err != nil {
		return nil, InternalServerErrorf("failed to encode data: %v", err)
	}
	info.Data = encoded
	return info, nil
}

func (s *Server) loadTokenAccount(pubkey types.Pubkey) (*token.Account, *RPCError) {
	account, err := s.accountsDB.GetAccount(pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, InvalidParamsError("could not find account")
	}
	if err != nil {
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}
	if account.Owner != token.ProgramID {
		return nil, InvalidParamsError("not a token account")
	}
	tokenAccount, err := token.DecodeAccount(account.Data)
	if err != nil {
		return nil, InvalidParamsError("not a token account")
	}
	return tokenAccount, nil
}

func (s *Server) loadMint(pubkey types.Pubkey) (*token.Mint, *RPCError) {
	account, err := s.accountsDB.GetAccount(pubkey)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, InvalidParamsError("could not find mint")
	}
	if err != nil {
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}
	if account.Owner != token.ProgramID {
		return nil, InvalidParamsError("not a token mint")
	}
	mint, err := token.DecodeMint(account.Data)
	if err != nil {
		return nil, InvalidParamsError("not a token mint")
	}
	return mint, nil
}

func tokenAmount(amount uint64, decimals uint8) *TokenAmount {
	return &TokenAmount{
		Amount:         strconv.FormatUint(amount, 10),
		Decimals:       decimals,
		UIAmountString: sale.FormatTokenAmount(amount, decimals),
	}
}

func entryToResponse(e *journal.Entry) *TransactionResponse {
	resp := &TransactionResponse{
		Seq:          e.Seq,
		BlockTime:    e.Time.Unix(),
		Status:       e.Status,
		Code:         e.Code,
		ComputeUnits: e.ComputeUnits,
		LogMessages:  e.Logs,
		Modified:     pubkeysToStrings(e.Modified),
	}
	for _, ix := range e.Instructions {
		resp.Instructions = append(resp.Instructions, InstructionResponse{
			ProgramID: ix.ProgramID.String(),
			Accounts:  pubkeysToStrings(ix.Accounts),
			Data:      base58.Encode(ix.Data),
		})
	}
	return resp
}

func pubkeysToStrings(pubkeys []types.Pubkey) []string {
	out := make([]string, len(pubkeys))
	for i, pk := range pubkeys {
		out[i] = pk.String()
	}
	return out
}

// accountFilters is a decoded list of getProgramAccounts filters.
type accountFilters []func(data []byte) bool

func compileFilters(filters []ProgramAccountFilter) (accountFilters, *RPCError) {
	var out accountFilters
	for i, filter := range filters {
		if filter.DataSize != nil {
			size := *filter.DataSize
			out = append(out, func(data []byte) bool { return uint64(len(data)) == size })
		}
		if filter.Memcmp != nil {
			encoding := filter.Memcmp.Encoding
			if encoding == "" {
				encoding = EncodingBase58
			}
			want, err := DecodeAccountData(filter.Memcmp.Bytes, encoding)
			if err != nil {
				return nil, InvalidParamsErrorf("invalid memcmp bytes in filter %d", i)
			}
			offset := filter.Memcmp.Offset
			out = append(out, func(data []byte) bool {
				end := offset + uint64(len(want))
				return end >= offset && end <= uint64(len(data)) && bytes.Equal(data[offset:end], want)
			})
		}
	}
	return out, nil
}

func (f accountFilters) match(data []byte) bool {
	for _, fn := range f {
		if !fn(data) {
			return false
		}
	}
	return true
}
