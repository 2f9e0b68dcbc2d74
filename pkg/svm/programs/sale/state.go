package sale

import (
	"fmt"

	"github.com/fortiblox/clash-ico/internal/types"
	"github.com/fortiblox/clash-ico/pkg/svm"
)

// SaleRecordSize is the serialized size of a SaleRecord.
const SaleRecordSize = 2 * types.PubkeySize

// SaleRecord is stored in the sale address while a sale is active.
// Layout (64 bytes): initializer (32) | initializer token account (32).
type SaleRecord struct {
	Initializer             types.Pubkey
	InitializerTokenAccount types.Pubkey
}

// DecodeSaleRecord decodes a SaleRecord. The data must be exactly
// SaleRecordSize bytes.
func DecodeSaleRecord(data []byte) (*SaleRecord, error) {
	if len(data) != SaleRecordSize {
		return nil, fmt.Errorf("%w: sale record is %d bytes, expected %d",
			svm.ErrInvalidAccountData, len(data), SaleRecordSize)
	}
	r := &SaleRecord{}
	copy(r.Initializer[:], data[:32])
	copy(r.InitializerTokenAccount[:], data[32:64])
	return r, nil
}

// Encode serializes the record.
func (r *SaleRecord) Encode() []byte {
	data := make([]byte, SaleRecordSize)
	copy(data[:32], r.Initializer[:])
	copy(data[32:], r.InitializerTokenAccount[:])
	return data
}

// ExchangeRequest is the payload of an Exchange instruction.
type ExchangeRequest struct {
	SolAsLamportsAmount uint64
}

// PaymentConfirmation is the payload of an ExecutePayment instruction.
type PaymentConfirmation struct {
	ClashTokenAmount uint64
}
