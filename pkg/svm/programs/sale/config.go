package sale

import "github.com/fortiblox/clash-ico/internal/types"

// Deployment addresses. These are compiled in and not runtime-configurable.
var (
	// ProgramID is the address the sale program is deployed at.
	ProgramID = types.MustPubkeyFromBase58("5KrUNXZABwSFEbq5HbqcBQJV48XmttUvATHAeGiptmy6")

	// ClashTokenID is the mint of the token on sale.
	ClashTokenID = types.MustPubkeyFromBase58("3z9mDzGPaWtD5daX8K9m7MzVnGYu7ubtvZUvXfNBuALT")

	// TreasuryWallet receives the lamports paid for exchanged tokens.
	TreasuryWallet = types.MustPubkeyFromBase58("9DNdMb5xGy1mUd2bGqAQh1wryRQeC9fcswiHyF9C4nRN")

	// PaymentAuthority is the only signer allowed to confirm off-chain payments.
	PaymentAuthority = types.MustPubkeyFromBase58("eu9BJ6SKJtLJhtEri5Ca5CNXmxbZjEGGUYxsPSi5gX4")
)

// Seeds of the sale record address, which is also the custody authority.
const (
	saleSeed1 = "clash-ico"
	saleSeed2 = "sale-authority"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Pricing holds the compiled-in exchange rates and offer limits, all in USD.
type Pricing struct {
	SolUSD   float64 // price of one SOL
	ClashUSD float64 // price of one whole token
	MinUSD   float64 // smallest accepted offer
	MaxUSD   float64 // largest accepted offer
}

// DefaultPricing is the deployed price table.
var DefaultPricing = Pricing{
	SolUSD:   25.0,
	ClashUSD: 0.125,
	MinUSD:   10.0,
	MaxUSD:   5000.0,
}

// saleSeeds returns a fresh copy of the derivation seeds.
func saleSeeds() [][]byte {
	return [][]byte{[]byte(saleSeed1), []byte(saleSeed2)}
}
