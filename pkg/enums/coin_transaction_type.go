package enums

import "fmt"

// CoinTransactionType classifies movements on the loyalty coin ledger.
type CoinTransactionType string

const (
	CoinTransactionEarned   CoinTransactionType = "earned"
	CoinTransactionRedeemed CoinTransactionType = "redeemed"
	CoinTransactionReversed CoinTransactionType = "reversed"
)

var validCoinTransactionTypes = []CoinTransactionType{
	CoinTransactionEarned,
	CoinTransactionRedeemed,
	CoinTransactionReversed,
}

// String implements fmt.Stringer.
func (c CoinTransactionType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CoinTransactionType.
func (c CoinTransactionType) IsValid() bool {
	for _, candidate := range validCoinTransactionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCoinTransactionType converts raw input into a CoinTransactionType.
func ParseCoinTransactionType(value string) (CoinTransactionType, error) {
	for _, candidate := range validCoinTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coin transaction type %q", value)
}
