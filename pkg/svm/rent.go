package svm

// Rent parameters of the default Solana rent sysvar.
const (
	// AccountStorageOverhead is charged for every account on top of its data.
	AccountStorageOverhead = uint64(128)

	// LamportsPerByteYear is the rental rate.
	LamportsPerByteYear = uint64(3_480)

	// ExemptionThresholdYears is how many years of rent make an account exempt.
	ExemptionThresholdYears = uint64(2)
)

// MinimumBalance returns the rent-exempt minimum for an account holding
// dataLen bytes.
func MinimumBalance(dataLen uint64) uint64 {
	return (AccountStorageOverhead + dataLen) * LamportsPerByteYear * ExemptionThresholdYears
}
