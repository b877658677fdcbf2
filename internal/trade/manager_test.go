package trade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"clob_go/internal/book"
	"clob_go/internal/chain"
	"clob_go/internal/codec"
	"clob_go/internal/domain"
	"clob_go/internal/store"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[0] = b
	return a
}

func testMarket() domain.Market {
	return domain.Market{
		Address:    addr(1),
		Name:       "META/USDC",
		Bids:       addr(2),
		Asks:       addr(3),
		EventQueue: addr(4),
	}
}

// loadedStore returns a store whose market and book are populated from
// encoded fixtures, with best bid 10 and best ask 10.5.
func loadedStore(t *testing.T) *store.Store {
	t.Helper()
	m := testMarket()
	fetcher := &chain.MockFetcher{
		Accounts: map[domain.Address][]byte{
			m.Address: codec.EncodeMarket(m),
			m.Bids: codec.EncodeBookSide([]book.LeafOrderRecord{
				{Key: book.OrderKey{Hi: 100000, Lo: 1}, Quantity: 3},
			}, 8),
			m.Asks: codec.EncodeBookSide([]book.LeafOrderRecord{
				{Key: book.OrderKey{Hi: 105000, Lo: 2}, Quantity: 5},
			}, 8),
			m.EventQueue: codec.EncodeEventQueue(0),
		},
	}
	s := store.New(fetcher, m.Address, nil, time.Millisecond)
	t.Cleanup(s.Close)
	if err := s.RefreshMarket(context.Background()); err != nil {
		t.Fatalf("RefreshMarket: %v", err)
	}
	return s
}

func newManager(t *testing.T, s *store.Store, sender *chain.MockSender) (*Manager, *chain.MockBuilder) {
	t.Helper()
	builder := &chain.MockBuilder{Txs: []chain.Transaction{{}}}
	balances := StaticBalances{
		Base:  decimal.NewFromInt(100),
		Quote: decimal.NewFromInt(1000),
	}
	return NewManager(s, builder, sender, balances, nil), builder
}

func TestValidate_HardRejections(t *testing.T) {
	s := loadedStore(t)
	m, _ := newManager(t, s, &chain.MockSender{})
	snap, _ := s.Book()

	cases := []struct {
		name   string
		intent domain.OrderIntent
	}{
		{"zero amount", domain.OrderIntent{Side: domain.Bid, Kind: domain.Limit, Price: decimal.NewFromInt(9), Quantity: 0}},
		{"negative amount", domain.OrderIntent{Side: domain.Ask, Kind: domain.MarketOrder, Quantity: -3}},
		{"zero limit price", domain.OrderIntent{Side: domain.Bid, Kind: domain.Limit, Price: decimal.Zero, Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Validate(tc.intent, snap); err == nil {
				t.Error("expected hard rejection")
			}
		})
	}
}

func TestValidate_CrossingWarnings(t *testing.T) {
	s := loadedStore(t)
	m, _ := newManager(t, s, &chain.MockSender{})
	snap, _ := s.Book() // best bid 10, best ask 10.5

	// Bid at 11 meets the best ask: warned but allowed.
	warnings, err := m.Validate(domain.OrderIntent{
		Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.NewFromInt(11), Quantity: 1,
	}, snap)
	if err != nil {
		t.Fatalf("crossing bid must not be rejected: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("crossing bid should warn")
	}

	// Bid at 9 sits below the ask: clean.
	warnings, err = m.Validate(domain.OrderIntent{
		Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.NewFromInt(9), Quantity: 1,
	}, snap)
	if err != nil {
		t.Fatalf("resting bid rejected: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("resting bid should not warn: %v", warnings)
	}

	// Ask at the best bid crosses too.
	warnings, err = m.Validate(domain.OrderIntent{
		Side: domain.Ask, Kind: domain.Limit,
		Price: decimal.NewFromInt(10), Quantity: 1,
	}, snap)
	if err != nil {
		t.Fatalf("crossing ask must not be rejected: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("crossing ask should warn")
	}
}

func TestValidate_AffordabilityWarning(t *testing.T) {
	s := loadedStore(t)
	m, _ := newManager(t, s, &chain.MockSender{})
	snap, _ := s.Book()

	// Quote balance 1000 at price 10 affords 100; 101 is advisory only.
	warnings, err := m.Validate(domain.OrderIntent{
		Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.NewFromInt(10), Quantity: 101,
	}, snap)
	if err != nil {
		t.Fatalf("unaffordable order must not be rejected: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("unaffordable order should warn")
	}
}

func TestMaxOrderAmount(t *testing.T) {
	s := loadedStore(t)
	m, _ := newManager(t, s, &chain.MockSender{})

	if got := m.MaxOrderAmount(domain.Bid, decimal.NewFromInt(10)); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("bid max = %s, want 100", got)
	}
	if got := m.MaxOrderAmount(domain.Bid, decimal.NewFromInt(3)); !got.Equal(decimal.NewFromInt(333)) {
		t.Errorf("bid max = %s, want 333 (floored)", got)
	}
	if got := m.MaxOrderAmount(domain.Ask, decimal.NewFromInt(10)); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("ask max = %s, want 100", got)
	}
	if got := m.MaxOrderAmount(domain.Bid, decimal.Zero); !got.IsZero() {
		t.Errorf("bid max at zero price = %s, want 0", got)
	}
}

func TestResolvePrice(t *testing.T) {
	buy := domain.OrderIntent{Side: domain.Bid, Kind: domain.MarketOrder, Quantity: 1}
	if got := ResolvePrice(buy); !got.Equal(MaxMarketPrice) {
		t.Errorf("market buy price = %s", got)
	}
	sell := domain.OrderIntent{Side: domain.Ask, Kind: domain.MarketOrder, Quantity: 1}
	if got := ResolvePrice(sell); !got.Equal(MinMarketPrice) {
		t.Errorf("market sell price = %s", got)
	}
	limit := domain.OrderIntent{Side: domain.Bid, Kind: domain.Limit, Price: decimal.NewFromInt(7), Quantity: 1}
	if got := ResolvePrice(limit); !got.Equal(decimal.NewFromInt(7)) {
		t.Errorf("limit price = %s", got)
	}
}

func TestPlaceOrder_SingleFlight(t *testing.T) {
	s := loadedStore(t)
	sender := &chain.MockSender{Block: make(chan struct{})}
	m, _ := newManager(t, s, sender)

	intent := domain.OrderIntent{
		Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.NewFromInt(9), Quantity: 1,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	firstErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		_, _, err := m.PlaceOrder(context.Background(), intent)
		firstErr <- err
	}()

	// Wait until the first submission is holding the flag.
	deadline := time.Now().Add(time.Second)
	for !s.IsPlacingOrder() {
		if time.Now().After(deadline) {
			t.Fatal("first submission never took the busy flag")
		}
		time.Sleep(time.Millisecond)
	}

	if _, _, err := m.PlaceOrder(context.Background(), intent); !errors.Is(err, ErrOrderInFlight) {
		t.Errorf("second submission err = %v, want ErrOrderInFlight", err)
	}

	close(sender.Block)
	wg.Wait()
	if err := <-firstErr; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if sender.SendCalls() != 1 {
		t.Errorf("send calls = %d, want 1", sender.SendCalls())
	}
	if s.IsPlacingOrder() {
		t.Error("busy flag not cleared after completion")
	}
}

func TestPlaceOrder_SendFailureClearsFlag(t *testing.T) {
	s := loadedStore(t)
	sender := &chain.MockSender{Err: errors.New("rpc unavailable")}
	m, _ := newManager(t, s, sender)

	_, _, err := m.PlaceOrder(context.Background(), domain.OrderIntent{
		Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.NewFromInt(9), Quantity: 1,
	})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("err = %v, want SubmissionError", err)
	}
	if s.IsPlacingOrder() {
		t.Error("busy flag not cleared after failure")
	}
}

func TestPlaceOrder_NoTransactionsIsNoOp(t *testing.T) {
	s := loadedStore(t)
	sender := &chain.MockSender{}
	m, builder := newManager(t, s, sender)
	builder.Txs = nil

	id, _, err := m.PlaceOrder(context.Background(), domain.OrderIntent{
		Side: domain.Ask, Kind: domain.Limit,
		Price: decimal.NewFromInt(12), Quantity: 1,
	})
	if err != nil {
		t.Fatalf("no-op build must not error: %v", err)
	}
	if id == uuid.Nil {
		t.Error("client id should still be assigned")
	}
	if sender.SendCalls() != 0 {
		t.Error("nothing should be sent when the builder declines")
	}
}

func TestCrank_SingleFlightAndCleanup(t *testing.T) {
	s := loadedStore(t)
	sender := &chain.MockSender{Block: make(chan struct{})}
	m, builder := newManager(t, s, sender)

	done := make(chan error, 1)
	go func() {
		done <- m.Crank(context.Background(), domain.CrankRequest{Limit: 8})
	}()

	deadline := time.Now().Add(time.Second)
	for !s.IsCranking() {
		if time.Now().After(deadline) {
			t.Fatal("crank never took the busy flag")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.Crank(context.Background(), domain.CrankRequest{}); !errors.Is(err, ErrCrankInFlight) {
		t.Errorf("second crank err = %v, want ErrCrankInFlight", err)
	}

	close(sender.Block)
	if err := <-done; err != nil {
		t.Fatalf("crank failed: %v", err)
	}
	if s.IsCranking() {
		t.Error("crank flag not cleared")
	}
	if builder.LastCrank.Market != testMarket().Address {
		t.Error("crank request not defaulted to the market")
	}
	if builder.LastCrank.EventQueue != testMarket().EventQueue {
		t.Error("crank request not defaulted to the event queue")
	}
}

func TestCrank_SendFailureClearsFlag(t *testing.T) {
	s := loadedStore(t)
	sender := &chain.MockSender{Err: errors.New("rpc unavailable")}
	m, _ := newManager(t, s, sender)

	if err := m.Crank(context.Background(), domain.CrankRequest{}); err == nil {
		t.Fatal("expected send failure")
	}
	if s.IsCranking() {
		t.Error("crank flag not cleared after failure")
	}
}
