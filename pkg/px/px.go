package px

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceLots is an on-book integer price, in quote lots per base lot.
// The program stores it in the high 64 bits of an order key, so the full
// uint64 range is representable and must survive decoding untouched.
type PriceLots uint64

// QtyLots is an order size in base lots.
type QtyLots int64

// DisplayDivisor converts an on-book price into a human price.
// One display unit is 10,000 price lots.
const DisplayDivisor = 10_000

// DisplayPlaces is the number of decimal places shown for aggregated levels.
const DisplayPlaces = 4

// Display converts the lot price into a display price rounded to 4 places.
func (p PriceLots) Display() decimal.Decimal {
	raw := decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(p)), 0)
	return raw.DivRound(decimal.New(DisplayDivisor, 0), DisplayPlaces)
}

// FromDisplay converts a display price back into lots, truncating any
// precision beyond the lot grid.
func FromDisplay(d decimal.Decimal) PriceLots {
	lots := d.Mul(decimal.New(DisplayDivisor, 0)).Truncate(0)
	if lots.Sign() < 0 {
		return 0
	}
	bi := lots.BigInt()
	if !bi.IsUint64() {
		return PriceLots(^uint64(0))
	}
	return PriceLots(bi.Uint64())
}
