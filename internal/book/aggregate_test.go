package book

import (
	"testing"

	"clob_go/internal/domain"
	"clob_go/pkg/px"
)

func leaf(price px.PriceLots, seq uint64, qty int64) LeafOrderRecord {
	return LeafOrderRecord{Key: OrderKey{Hi: uint64(price), Lo: seq}, Quantity: qty}
}

func TestAggregateSide_DedupAndSum(t *testing.T) {
	records := []LeafOrderRecord{
		leaf(100000, 1, 5),
		leaf(100000, 2, 7),
		leaf(100000, 3, 1),
	}
	levels := AggregateSide(records, domain.Bid)
	if len(levels) != 1 {
		t.Fatalf("got %d levels, want 1", len(levels))
	}
	if levels[0].Size != 13 {
		t.Errorf("size = %d, want 13", levels[0].Size)
	}
	if levels[0].PriceLots != 100000 {
		t.Errorf("price lots = %d, want 100000", levels[0].PriceLots)
	}
}

func TestAggregateSide_ExactEqualityOnly(t *testing.T) {
	// Adjacent lot prices must not merge even though they round to the same
	// display value at coarser precision.
	records := []LeafOrderRecord{
		leaf(100000, 1, 5),
		leaf(100001, 2, 7),
	}
	levels := AggregateSide(records, domain.Ask)
	if len(levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(levels))
	}
}

func TestAggregateSide_Ordering(t *testing.T) {
	records := []LeafOrderRecord{
		leaf(105000, 1, 1),
		leaf(100000, 2, 1),
		leaf(110000, 3, 1),
	}

	asks := AggregateSide(records, domain.Ask)
	for i := 1; i < len(asks); i++ {
		if asks[i-1].PriceLots >= asks[i].PriceLots {
			t.Errorf("asks not strictly ascending: %d then %d", asks[i-1].PriceLots, asks[i].PriceLots)
		}
	}

	bids := AggregateSide(records, domain.Bid)
	for i := 1; i < len(bids); i++ {
		if bids[i-1].PriceLots <= bids[i].PriceLots {
			t.Errorf("bids not strictly descending: %d then %d", bids[i-1].PriceLots, bids[i].PriceLots)
		}
	}
}

func TestAggregateSide_Empty(t *testing.T) {
	if levels := AggregateSide(nil, domain.Bid); levels != nil {
		t.Errorf("expected nil levels for empty input, got %v", levels)
	}
}

func TestBuildSnapshot_Spread(t *testing.T) {
	// top bid 10.0, top ask 10.5
	bids := []LeafOrderRecord{leaf(100000, 1, 3), leaf(95000, 2, 8)}
	asks := []LeafOrderRecord{leaf(105000, 3, 2), leaf(110000, 4, 4)}

	snap := BuildSnapshot(bids, asks)

	if got := snap.ToB.TopBid.String(); got != "10" {
		t.Errorf("TopBid = %s, want 10", got)
	}
	if got := snap.ToB.TopAsk.String(); got != "10.5" {
		t.Errorf("TopAsk = %s, want 10.5", got)
	}
	if got := snap.Spread.String(); got != "0.5" {
		t.Errorf("Spread = %s, want 0.5", got)
	}
	if snap.SpreadString != "0.50 (4.76%)" {
		t.Errorf("SpreadString = %q, want %q", snap.SpreadString, "0.50 (4.76%)")
	}
	if snap.TotalBidSize != 11 || snap.TotalAskSize != 6 {
		t.Errorf("totals = %d/%d, want 11/6", snap.TotalBidSize, snap.TotalAskSize)
	}
}

func TestBuildSnapshot_NoBidsIsInfinite(t *testing.T) {
	asks := []LeafOrderRecord{leaf(200000, 1, 2)} // top ask 20.0
	snap := BuildSnapshot(nil, asks)

	if !snap.Spread.Equal(snap.ToB.TopAsk) {
		t.Fatalf("spread %s should equal top ask %s", snap.Spread, snap.ToB.TopAsk)
	}
	if snap.SpreadString != InfiniteSpread {
		t.Errorf("SpreadString = %q, want infinite marker", snap.SpreadString)
	}
}

func TestBuildSnapshot_EmptyBookSentinels(t *testing.T) {
	snap := BuildSnapshot(nil, nil)
	if !snap.ToB.TopBid.IsZero() {
		t.Errorf("empty bid sentinel = %s, want 0", snap.ToB.TopBid)
	}
	if got := snap.ToB.TopAsk.String(); got != "69" {
		t.Errorf("empty ask sentinel = %s, want 69", got)
	}
	if snap.SpreadString != InfiniteSpread {
		t.Errorf("SpreadString = %q, want infinite marker", snap.SpreadString)
	}
}
