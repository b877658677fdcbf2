package px

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDisplay(t *testing.T) {
	cases := []struct {
		lots PriceLots
		want string
	}{
		{0, "0"},
		{1, "0.0001"},
		{100000, "10"},
		{105000, "10.5"},
		{123456, "12.3456"},
	}
	for _, c := range cases {
		if got := c.lots.Display().String(); got != c.want {
			t.Errorf("Display(%d) = %s, want %s", c.lots, got, c.want)
		}
	}
}

func TestDisplay_FullRange(t *testing.T) {
	// Prices above float64's 2^53 safe-integer range must not lose precision.
	p := PriceLots(math.MaxUint64)
	want := "1844674407370955.1616"
	if got := p.Display().String(); got != want {
		t.Errorf("Display(MaxUint64) = %s, want %s", got, want)
	}
}

func TestFromDisplay(t *testing.T) {
	d := decimal.RequireFromString("10.5")
	if got := FromDisplay(d); got != 105000 {
		t.Errorf("FromDisplay(10.5) = %d, want 105000", got)
	}
	if got := FromDisplay(decimal.RequireFromString("-3")); got != 0 {
		t.Errorf("FromDisplay(-3) = %d, want 0", got)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, lots := range []PriceLots{0, 1, 99, 105000, 1 << 40} {
		if got := FromDisplay(lots.Display()); got != lots {
			t.Errorf("round trip %d -> %s -> %d", lots, lots.Display(), got)
		}
	}
}
