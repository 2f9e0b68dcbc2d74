package rpc

import (
	"encoding/json"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Context tells which ledger state a response reflects: the sequence number
// of the last journaled transaction, or zero without a journal.
type Context struct {
	Seq uint64 `json:"seq"`
}

// ResponseWithContext wraps a value with context.
type ResponseWithContext struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// Encoding types for account data.
type Encoding string

const (
	EncodingBase58     Encoding = "base58"
	EncodingBase64     Encoding = "base64"
	EncodingBase64Zstd Encoding = "base64+zstd"
	EncodingJSONParsed Encoding = "jsonParsed"
)

// DataSlice specifies a portion of account data to return.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// AccountInfoConfig configures getAccountInfo and getMultipleAccounts.
type AccountInfoConfig struct {
	Encoding  Encoding   `json:"encoding,omitempty"`
	DataSlice *DataSlice `json:"dataSlice,omitempty"`
}

// ProgramAccountsConfig configures getProgramAccounts requests.
type ProgramAccountsConfig struct {
	Encoding    Encoding               `json:"encoding,omitempty"`
	DataSlice   *DataSlice             `json:"dataSlice,omitempty"`
	Filters     []ProgramAccountFilter `json:"filters,omitempty"`
	WithContext bool                   `json:"withContext,omitempty"`
}

// ProgramAccountFilter filters program accounts.
type ProgramAccountFilter struct {
	Memcmp   *MemcmpFilter `json:"memcmp,omitempty"`
	DataSize *uint64       `json:"dataSize,omitempty"`
}

// MemcmpFilter matches account data at an offset.
type MemcmpFilter struct {
	Offset   uint64   `json:"offset"`
	Bytes    string   `json:"bytes"`
	Encoding Encoding `json:"encoding,omitempty"`
}

// LimitConfig configures list methods.
type LimitConfig struct {
	Limit int `json:"limit,omitempty"`
}

// AccountInfo represents account information returned by RPC.
type AccountInfo struct {
	Data       interface{} `json:"data"` // [string, encoding] or ParsedAccount
	Executable bool        `json:"executable"`
	Lamports   uint64      `json:"lamports"`
	Owner      string      `json:"owner"`
	RentEpoch  uint64      `json:"rentEpoch"`
	Space      uint64      `json:"space"`
}

// KeyedAccountInfo wraps AccountInfo with its pubkey.
type KeyedAccountInfo struct {
	Pubkey  string       `json:"pubkey"`
	Account *AccountInfo `json:"account"`
}

// ParsedAccount is the jsonParsed rendering of a known account layout.
type ParsedAccount struct {
	Program string      `json:"program"`
	Parsed  ParsedValue `json:"parsed"`
	Space   uint64      `json:"space"`
}

// ParsedValue names the layout and carries its decoded fields.
type ParsedValue struct {
	Type string      `json:"type"`
	Info interface{} `json:"info"`
}

// TokenAmount is a token balance in base units and whole tokens.
type TokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// SaleState describes the sale as currently stored on the ledger.
type SaleState struct {
	Active                  bool         `json:"active"`
	Address                 string       `json:"address"`
	Custody                 string       `json:"custody"`
	Initializer             string       `json:"initializer,omitempty"`
	InitializerTokenAccount string       `json:"initializerTokenAccount,omitempty"`
	CustodyBalance          *TokenAmount `json:"custodyBalance,omitempty"`
}

// QuoteResponse prices an offer without executing it.
type QuoteResponse struct {
	Lamports uint64       `json:"lamports"`
	SOL      string       `json:"sol"`
	USD      string       `json:"usd"`
	Tokens   *TokenAmount `json:"tokens,omitempty"`
	Error    string       `json:"err,omitempty"`
}

// InstructionResponse is one journaled instruction.
type InstructionResponse struct {
	ProgramID string   `json:"programId"`
	Accounts  []string `json:"accounts"`
	Data      string   `json:"data"` // base58
}

// TransactionResponse is one journaled transaction.
type TransactionResponse struct {
	Seq          uint64                `json:"seq"`
	BlockTime    int64                 `json:"blockTime"`
	Status       string                `json:"status"`
	Code         uint64                `json:"code,omitempty"`
	ComputeUnits uint64                `json:"computeUnitsConsumed"`
	Instructions []InstructionResponse `json:"instructions"`
	LogMessages  []string              `json:"logMessages"`
	Modified     []string              `json:"modified"`
}
