package wallet

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between ether and wei.
const EtherDecimals = 18

// ToWei converts an ether amount to wei, truncating sub-wei fractions.
func ToWei(ether decimal.Decimal) *big.Int {
	return ether.Shift(EtherDecimals).BigInt()
}

// FromWei converts wei back to ether.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -EtherDecimals)
}
