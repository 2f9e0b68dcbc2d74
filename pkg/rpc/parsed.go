package rpc

import (
	"strconv"

	"github.com/fortiblox/clash-ico/pkg/accounts"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/sale"
	"github.com/fortiblox/clash-ico/pkg/svm/programs/token"
)

// parseAccount renders token mints, token accounts and the sale record for
// the jsonParsed encoding. It returns nil for any other layout.
func (s *Server) parseAccount(account *accounts.Account) *ParsedAccount {
	space := uint64(len(account.Data))

	switch {
	case account.Owner == token.ProgramID && space == token.MintSize:
		mint, err := token.DecodeMint(account.Data)
		if err != nil {
			return nil
		}
		return &ParsedAccount{
			Program: "spl-token",
			Space:   space,
			Parsed: ParsedValue{Type: "mint", Info: map[string]interface{}{
				"mintAuthority":   optionString(mint.MintAuthority),
				"supply":          strconv.FormatUint(mint.Supply, 10),
				"decimals":        mint.Decimals,
				"isInitialized":   mint.IsInitialized,
				"freezeAuthority": optionString(mint.FreezeAuthority),
			}},
		}

	case account.Owner == token.ProgramID && space == token.AccountSize:
		ta, err := token.DecodeAccount(account.Data)
		if err != nil {
			return nil
		}
		info := map[string]interface{}{
			"mint":  ta.Mint.String(),
			"owner": ta.Owner.String(),
			"state": accountStateName(ta.State),
		}
		if mint, rpcErr := s.loadMint(ta.Mint); rpcErr == nil {
			info["tokenAmount"] = tokenAmount(ta.Amount, mint.Decimals)
		} else {
			info["amount"] = strconv.FormatUint(ta.Amount, 10)
		}
		if ta.CloseAuthority.IsSome {
			info["closeAuthority"] = ta.CloseAuthority.Value.String()
		}
		return &ParsedAccount{
			Program: "spl-token",
			Space:   space,
			Parsed:  ParsedValue{Type: "account", Info: info},
		}

	case account.Owner == sale.ProgramID && space == sale.SaleRecordSize:
		record, err := sale.DecodeSaleRecord(account.Data)
		if err != nil {
			return nil
		}
		return &ParsedAccount{
			Program: "clash-ico",
			Space:   space,
			Parsed: ParsedValue{Type: "saleRecord", Info: map[string]interface{}{
				"initializer":             record.Initializer.String(),
				"initializerTokenAccount": record.InitializerTokenAccount.String(),
			}},
		}
	}
	return nil
}

func optionString(o token.COption) interface{} {
	if !o.IsSome {
		return nil
	}
	return o.Value.String()
}

func accountStateName(state uint8) string {
	switch state {
	case token.AccountStateInitialized:
		return "initialized"
	case token.AccountStateFrozen:
		return "frozen"
	default:
		return "uninitialized"
	}
}
