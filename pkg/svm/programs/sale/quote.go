package sale

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Quote is the price of an offer: the SOL, USD and whole-token values of
// a lamport amount, computed in float64 in that order.
type Quote struct {
	Lamports uint64
	SOL      float64
	USD      float64
	Clash    float64
}

// Quote prices lamports and enforces the USD offer limits. The returned
// Quote is populated even when the offer is rejected.
func (p Pricing) Quote(lamports uint64) (Quote, error) {
	q := Quote{Lamports: lamports}
	q.SOL = float64(lamports) / float64(LamportsPerSOL)
	q.USD = q.SOL * p.SolUSD
	q.Clash = q.USD / p.ClashUSD

	if q.USD < p.MinUSD {
		return q, ErrInvalidOfferTooFew
	}
	if q.USD > p.MaxUSD {
		return q, ErrInvalidOfferTooMuch
	}
	return q, nil
}

// Amount scales the whole-token value by the mint decimals and truncates it
// to base units. A zero result is rejected.
func (q Quote) Amount(decimals uint8) (uint64, error) {
	scaled := q.Clash
	if decimals > 0 {
		scaled *= pow10(decimals)
	}
	amount := truncate(scaled)
	if amount == 0 {
		return 0, ErrInvalidClashTokenAmount
	}
	return amount, nil
}

// QuoteAmount runs Quote and Amount in sequence.
func (p Pricing) QuoteAmount(lamports uint64, decimals uint8) (Quote, uint64, error) {
	q, err := p.Quote(lamports)
	if err != nil {
		return q, 0, err
	}
	amount, err := q.Amount(decimals)
	return q, amount, err
}

// pow10 is 10^n as a float64, exact for every n up to 22.
func pow10(n uint8) float64 {
	f := 1.0
	for i := uint8(0); i < n; i++ {
		f *= 10
	}
	return f
}

// two64 is 2^64, the first float64 above every uint64.
const two64 = float64(1 << 63) * 2

// truncate converts f to uint64 rounding toward zero and saturating at the
// bounds; NaN becomes 0.
func truncate(f float64) uint64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= two64:
		return math.MaxUint64
	default:
		return uint64(f)
	}
}

// FormatTokenAmount renders a base-unit token amount in whole tokens.
func FormatTokenAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

func formatFloat(f float64) string {
	return decimal.NewFromFloat(f).String()
}
