package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"clob_go/internal/domain"
	"clob_go/pkg/px"
	"clob_go/pkg/safe"
)

// Empty-side placeholders. A side with no resting orders still yields a
// top-of-book value so spread math never needs a nil check; the resulting
// spread for an empty book is degenerate and flagged by the infinite marker.
// The display values (0 for bids, 69 for asks) are kept as-is for parity
// with the existing book view.
var (
	emptyBidPrice = decimal.Zero
	emptyAskPrice = decimal.New(69, 0)
)

// InfiniteSpread marks a book whose spread equals the top ask, i.e. there
// are no real bids and a finite percentage would be meaningless.
const InfiniteSpread = "∞ (100.00%)"

// PriceLevel is one aggregated price point on a side.
type PriceLevel struct {
	PriceLots px.PriceLots    `json:"price_lots"`
	Price     decimal.Decimal `json:"price"`
	Size      int64           `json:"size"`
}

// TopOfBook holds each side's best display price.
type TopOfBook struct {
	TopBid decimal.Decimal `json:"top_bid"`
	TopAsk decimal.Decimal `json:"top_ask"`
}

// Snapshot is a fully aggregated order book view. It is immutable once built
// and superseded atomically by the next successful refresh.
type Snapshot struct {
	Bids []PriceLevel `json:"bids"` // descending by price
	Asks []PriceLevel `json:"asks"` // ascending by price

	ToB          TopOfBook       `json:"tob"`
	Spread       decimal.Decimal `json:"spread"`
	SpreadString string          `json:"spread_string"`

	TotalBidSize int64 `json:"total_bid_size"`
	TotalAskSize int64 `json:"total_ask_size"`
}

// AggregateSide groups leaf records into deduplicated, sorted price levels.
// Records are the same level only on exact lot-price equality; quantities
// within a level are summed. Asks sort ascending, bids descending, so the
// price closest to the market ranks first on both sides.
func AggregateSide(records []LeafOrderRecord, side domain.Side) []PriceLevel {
	if len(records) == 0 {
		return nil
	}

	sums := make(map[px.PriceLots]int64, len(records))
	for _, r := range records {
		sums[r.Key.Price()] = safe.Add(sums[r.Key.Price()], r.Quantity)
	}

	levels := make([]PriceLevel, 0, len(sums))
	for price, size := range sums {
		levels = append(levels, PriceLevel{
			PriceLots: price,
			Price:     price.Display(),
			Size:      size,
		})
	}

	sort.Slice(levels, func(i, j int) bool {
		if side == domain.Bid {
			return levels[i].PriceLots > levels[j].PriceLots
		}
		return levels[i].PriceLots < levels[j].PriceLots
	})
	return levels
}

// BuildSnapshot aggregates both sides and derives top-of-book and spread.
func BuildSnapshot(bids, asks []LeafOrderRecord) Snapshot {
	snap := Snapshot{
		Bids: AggregateSide(bids, domain.Bid),
		Asks: AggregateSide(asks, domain.Ask),
	}

	for _, r := range bids {
		snap.TotalBidSize = safe.Add(snap.TotalBidSize, r.Quantity)
	}
	for _, r := range asks {
		snap.TotalAskSize = safe.Add(snap.TotalAskSize, r.Quantity)
	}

	snap.ToB = TopOfBook{TopBid: emptyBidPrice, TopAsk: emptyAskPrice}
	if len(snap.Bids) > 0 {
		snap.ToB.TopBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		snap.ToB.TopAsk = snap.Asks[0].Price
	}

	snap.Spread = snap.ToB.TopAsk.Sub(snap.ToB.TopBid)
	snap.SpreadString = spreadString(snap.Spread, snap.ToB.TopAsk)
	return snap
}

func spreadString(spread, topAsk decimal.Decimal) string {
	// spread == topAsk means the top bid is the zero placeholder: no real
	// bids. The division would yield exactly 100% but the number carries no
	// meaning, so the infinite marker is reported instead.
	if topAsk.IsZero() || spread.Equal(topAsk) {
		return InfiniteSpread
	}
	pct := spread.Div(topAsk).Mul(decimal.New(100, 0))
	return spread.StringFixed(2) + " (" + pct.StringFixed(2) + "%)"
}
