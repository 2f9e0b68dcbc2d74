package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/journal"
	"github.com/fortiblox/clash-ico/pkg/runtime"
	"github.com/fortiblox/clash-ico/pkg/svm"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/associated"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

const sol = uint64(sale.LamportsPerSOL)

var (
	initializer = types.PubkeyFromSeed("rpc/initializer")
	payer       = types.PubkeyFromSeed("rpc/payer")
	custody     = sale.CustodyAddress(sale.MustDeriveProgramAuthority(sale.ProgramID))
)

// newTestServer builds a ledger with a running sale and one exchange, all
// journaled: genesis is seq 1, initialize seq 2, the exchange seq 3.
func newTestServer(t *testing.T) (*Server, *accounts.MemoryDB) {
	t.Helper()
	db := accounts.NewMemoryDB()
	j, err := journal.Open(journal.DefaultConfig(filepath.Join(t.TempDir(), "journal.db")))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	rt := runtime.New(db, runtime.WithJournal(j))
	ctx := context.Background()
	require.NoError(t, rt.ApplyGenesis(ctx, runtime.Genesis{
		Balances: map[types.Pubkey]uint64{
			initializer:         100 * sol,
			payer:               10 * sol,
			sale.TreasuryWallet: 1,
		},
		MintAuthority: initializer,
		Decimals:      6,
	}))

	for _, ixs := range [][]svm.Instruction{
		{
			sale.Initialize(sale.ProgramID, initializer, associated.MustFindAddress(initializer, sale.ClashTokenID)),
			token.MintTo(sale.ClashTokenID, custody, initializer, 1_000_000_000_000),
		},
		{sale.Exchange(sale.ProgramID, payer, 2*sol)},
	} {
		res, err := rt.Execute(ctx, &runtime.Transaction{Instructions: ixs})
		require.NoError(t, err)
		require.NoError(t, res.Err, "logs: %v", res.Logs)
	}

	return New(DefaultConfig(), db, j, nil), db
}

func call(t *testing.T, server *Server, method string, params ...interface{}) *Response {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": JSONRPCVersion, "id": 1, "method": method}
	if len(params) > 0 {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(rr, httpReq)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return &resp
}

// result decodes a successful response into out.
func result(t *testing.T, resp *Response, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

type contextValue[T any] struct {
	Context Context `json:"context"`
	Value   T       `json:"value"`
}

func TestGetHealth(t *testing.T) {
	server, _ := newTestServer(t)

	var health string
	result(t, call(t, server, "getHealth"), &health)
	assert.Equal(t, "ok", health)

	server.SetHealthy(false)
	resp := call(t, server, "getHealth")
	require.NotNil(t, resp.Error)
	assert.Equal(t, NodeUnhealthy, resp.Error.Code)
}

func TestGetVersion(t *testing.T) {
	server, _ := newTestServer(t)

	var version map[string]string
	result(t, call(t, server, "getVersion"), &version)
	assert.Equal(t, Version, version["clash-ico"])
	assert.Equal(t, sale.ProgramID.String(), version["saleProgram"])
}

func TestGetBalance(t *testing.T) {
	server, _ := newTestServer(t)
	rentAccount := svm.MinimumBalance(token.AccountSize)

	var balance contextValue[uint64]
	result(t, call(t, server, "getBalance", payer.String()), &balance)
	assert.Equal(t, 8*sol-rentAccount, balance.Value)
	assert.Equal(t, uint64(3), balance.Context.Seq)

	result(t, call(t, server, "getBalance", types.PubkeyFromSeed("nobody").String()), &balance)
	assert.Zero(t, balance.Value)

	resp := call(t, server, "getBalance", "not a key")
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)

	resp = call(t, server, "getBalance")
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestGetAccountInfoEncodings(t *testing.T) {
	server, db := newTestServer(t)
	acc, err := db.GetAccount(custody)
	require.NoError(t, err)

	for _, encoding := range []Encoding{EncodingBase58, EncodingBase64, EncodingBase64Zstd} {
		t.Run(string(encoding), func(t *testing.T) {
			var info contextValue[*struct {
				Data     []string `json:"data"`
				Owner    string   `json:"owner"`
				Lamports uint64   `json:"lamports"`
				Space    uint64   `json:"space"`
			}]
			result(t, call(t, server, "getAccountInfo", custody.String(), AccountInfoConfig{Encoding: encoding}), &info)
			require.NotNil(t, info.Value)
			require.Len(t, info.Value.Data, 2)
			assert.Equal(t, string(encoding), info.Value.Data[1])

			data, err := DecodeAccountData(info.Value.Data[0], encoding)
			require.NoError(t, err)
			assert.Equal(t, acc.Data, data)
			assert.Equal(t, token.ProgramID.String(), info.Value.Owner)
			assert.Equal(t, uint64(token.AccountSize), info.Value.Space)
		})
	}

	var sliced contextValue[*AccountInfo]
	result(t, call(t, server, "getAccountInfo", custody.String(),
		AccountInfoConfig{Encoding: EncodingBase64, DataSlice: &DataSlice{Offset: 32, Length: 32}}), &sliced)
	require.NotNil(t, sliced.Value)
	data, err := DecodeAccountData(sliced.Value.Data.([]interface{})[0].(string), EncodingBase64)
	require.NoError(t, err)
	assert.Equal(t, acc.Data[32:64], data)

	var missing contextValue[*AccountInfo]
	result(t, call(t, server, "getAccountInfo", types.PubkeyFromSeed("nobody").String()), &missing)
	assert.Nil(t, missing.Value)
}

func TestGetAccountInfoParsed(t *testing.T) {
	server, _ := newTestServer(t)
	config := AccountInfoConfig{Encoding: EncodingJSONParsed}

	var mint contextValue[struct {
		Data ParsedAccount `json:"data"`
	}]
	result(t, call(t, server, "getAccountInfo", sale.ClashTokenID.String(), config), &mint)
	assert.Equal(t, "mint", mint.Value.Data.Parsed.Type)
	info := mint.Value.Data.Parsed.Info.(map[string]interface{})
	assert.Equal(t, float64(6), info["decimals"])
	assert.Equal(t, initializer.String(), info["mintAuthority"])
	assert.Nil(t, info["freezeAuthority"])

	var holding contextValue[struct {
		Data ParsedAccount `json:"data"`
	}]
	result(t, call(t, server, "getAccountInfo", associated.MustFindAddress(payer, sale.ClashTokenID).String(), config), &holding)
	info = holding.Value.Data.Parsed.Info.(map[string]interface{})
	assert.Equal(t, payer.String(), info["owner"])
	assert.Equal(t, "400", info["tokenAmount"].(map[string]interface{})["uiAmountString"])

	var record contextValue[struct {
		Data ParsedAccount `json:"data"`
	}]
	auth := sale.MustDeriveProgramAuthority(sale.ProgramID)
	result(t, call(t, server, "getAccountInfo", auth.Address().String(), config), &record)
	assert.Equal(t, "saleRecord", record.Value.Data.Parsed.Type)
	info = record.Value.Data.Parsed.Info.(map[string]interface{})
	assert.Equal(t, initializer.String(), info["initializer"])

	// Wallets have no parsed form.
	var wallet contextValue[struct {
		Data []string `json:"data"`
	}]
	result(t, call(t, server, "getAccountInfo", payer.String(), config), &wallet)
	assert.Equal(t, []string{"", "base64"}, wallet.Value.Data)
}

func TestGetMultipleAccounts(t *testing.T) {
	server, _ := newTestServer(t)

	var infos contextValue[[]*AccountInfo]
	result(t, call(t, server, "getMultipleAccounts",
		[]string{payer.String(), types.PubkeyFromSeed("nobody").String(), custody.String()}), &infos)
	require.Len(t, infos.Value, 3)
	assert.NotNil(t, infos.Value[0])
	assert.Nil(t, infos.Value[1])
	assert.Equal(t, token.ProgramID.String(), infos.Value[2].Owner)

	keys := make([]string, maxMultipleAccounts+1)
	for i := range keys {
		keys[i] = payer.String()
	}
	resp := call(t, server, "getMultipleAccounts", keys)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestGetProgramAccounts(t *testing.T) {
	server, _ := newTestServer(t)
	size := uint64(token.AccountSize)

	var all []KeyedAccountInfo
	result(t, call(t, server, "getProgramAccounts", token.ProgramID.String()), &all)
	assert.Len(t, all, 4) // mint, initializer, custody and payer holdings

	var holdings []KeyedAccountInfo
	result(t, call(t, server, "getProgramAccounts", token.ProgramID.String(), ProgramAccountsConfig{
		Filters: []ProgramAccountFilter{
			{DataSize: &size},
			{Memcmp: &MemcmpFilter{Offset: 0, Bytes: sale.ClashTokenID.String()}},
		},
	}), &holdings)
	assert.Len(t, holdings, 3)

	var owned []KeyedAccountInfo
	result(t, call(t, server, "getProgramAccounts", token.ProgramID.String(), ProgramAccountsConfig{
		Filters: []ProgramAccountFilter{{Memcmp: &MemcmpFilter{Offset: 32, Bytes: payer.String()}}},
	}), &owned)
	require.Len(t, owned, 1)
	assert.Equal(t, associated.MustFindAddress(payer, sale.ClashTokenID).String(), owned[0].Pubkey)

	resp := call(t, server, "getProgramAccounts", token.ProgramID.String(), ProgramAccountsConfig{
		Filters: []ProgramAccountFilter{{Memcmp: &MemcmpFilter{Bytes: "0OIl"}}},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestTokenMethods(t *testing.T) {
	server, _ := newTestServer(t)

	var balance contextValue[TokenAmount]
	result(t, call(t, server, "getTokenAccountBalance", associated.MustFindAddress(payer, sale.ClashTokenID).String()), &balance)
	assert.Equal(t, TokenAmount{Amount: "400000000", Decimals: 6, UIAmountString: "400"}, balance.Value)

	var supply contextValue[TokenAmount]
	result(t, call(t, server, "getTokenSupply", sale.ClashTokenID.String()), &supply)
	assert.Equal(t, "1000000", supply.Value.UIAmountString)

	resp := call(t, server, "getTokenAccountBalance", payer.String())
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestGetSaleState(t *testing.T) {
	server, _ := newTestServer(t)

	var state contextValue[SaleState]
	result(t, call(t, server, "getSaleState"), &state)
	assert.True(t, state.Value.Active)
	assert.Equal(t, initializer.String(), state.Value.Initializer)
	assert.Equal(t, custody.String(), state.Value.Custody)
	require.NotNil(t, state.Value.CustodyBalance)
	assert.Equal(t, "999600", state.Value.CustodyBalance.UIAmountString)
}

func TestGetQuote(t *testing.T) {
	server, _ := newTestServer(t)

	var quote QuoteResponse
	result(t, call(t, server, "getQuote", 2*sol), &quote)
	assert.Equal(t, "50", quote.USD)
	require.NotNil(t, quote.Tokens)
	assert.Equal(t, "400000000", quote.Tokens.Amount)
	assert.Empty(t, quote.Error)

	result(t, call(t, server, "getQuote", sol/10), &quote)
	assert.Contains(t, quote.Error, "Custom(")
}

func TestJournalMethods(t *testing.T) {
	server, _ := newTestServer(t)

	var count uint64
	result(t, call(t, server, "getTransactionCount"), &count)
	assert.Equal(t, uint64(3), count)

	var tx TransactionResponse
	result(t, call(t, server, "getTransaction", 3), &tx)
	assert.Equal(t, uint64(3), tx.Seq)
	assert.Equal(t, "Ok", tx.Status)
	require.Len(t, tx.Instructions, 1)
	assert.Equal(t, sale.ProgramID.String(), tx.Instructions[0].ProgramID)
	assert.Contains(t, tx.Modified, payer.String())

	resp := call(t, server, "getTransaction", 99)
	require.NotNil(t, resp.Error)
	assert.Equal(t, TransactionNotFound, resp.Error.Code)

	var history []TransactionResponse
	result(t, call(t, server, "getTransactionsForAddress", custody.String()), &history)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(3), history[0].Seq)
	assert.Equal(t, uint64(2), history[1].Seq)

	result(t, call(t, server, "getTransactionsForAddress", custody.String(), LimitConfig{Limit: 1}), &history)
	assert.Len(t, history, 1)
}

func TestWithoutJournal(t *testing.T) {
	server := New(DefaultConfig(), accounts.NewMemoryDB(), nil, nil)

	for _, method := range []string{"getTransaction", "getTransactionsForAddress", "getTransactionCount"} {
		resp := call(t, server, method, 1)
		require.NotNil(t, resp.Error, method)
		assert.Equal(t, TransactionHistoryNotAvailable, resp.Error.Code)
	}

	var balance contextValue[uint64]
	result(t, call(t, server, "getBalance", payer.String()), &balance)
	assert.Zero(t, balance.Context.Seq)
}

func TestGetStateHash(t *testing.T) {
	server, db := newTestServer(t)
	want, err := accounts.ComputeStateHash(db)
	require.NoError(t, err)

	var got contextValue[struct {
		StateHash string `json:"stateHash"`
		Accounts  uint64 `json:"accounts"`
	}]
	result(t, call(t, server, "getStateHash"), &got)
	assert.Equal(t, want.String(), got.Value.StateHash)
	n, err := db.AccountsCount()
	require.NoError(t, err)
	assert.Equal(t, n, got.Value.Accounts)
}

func TestGetMinimumBalanceForRentExemption(t *testing.T) {
	server, _ := newTestServer(t)

	var rent uint64
	result(t, call(t, server, "getMinimumBalanceForRentExemption", token.AccountSize), &rent)
	assert.Equal(t, uint64(2_039_280), rent)
}

func TestInvalidRequests(t *testing.T) {
	server, _ := newTestServer(t)

	resp := call(t, server, "getBlock", 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)

	post := func(body string) *Response {
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return &resp
	}

	resp = post(`{"jsonrpc":"2.0","id":1,"method":`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ParseError, resp.Error.Code)

	resp = post(`{"jsonrpc":"1.0","id":1,"method":"getHealth"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestBatchRequest(t *testing.T) {
	server, _ := newTestServer(t)

	body := `[{"jsonrpc":"2.0","id":1,"method":"getHealth"},{"jsonrpc":"2.0","id":2,"method":"nope"}]`
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))

	var responses []Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &responses))
	require.Len(t, responses, 2)
	assert.Equal(t, "ok", responses[0].Result)
	assert.Nil(t, responses[0].Error)
	require.NotNil(t, responses[1].Error)
	assert.Equal(t, MethodNotFound, responses[1].Error.Code)
}

func TestApplyDataSlice(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	assert.Equal(t, data, ApplyDataSlice(data, nil))
	assert.Equal(t, []byte{1, 2}, ApplyDataSlice(data, &DataSlice{Offset: 1, Length: 2}))
	assert.Equal(t, []byte{3, 4}, ApplyDataSlice(data, &DataSlice{Offset: 3, Length: 10}))
	assert.Empty(t, ApplyDataSlice(data, &DataSlice{Offset: 9, Length: 1}))
	assert.Equal(t, []byte{4}, ApplyDataSlice(data, &DataSlice{Offset: 4, Length: ^uint64(0)}))
}
