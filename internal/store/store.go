package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"clob_go/internal/book"
	"clob_go/internal/chain"
	"clob_go/internal/codec"
	"clob_go/internal/domain"
	"clob_go/internal/scheduler"
)

// Debounce keys for the two refresh entry points.
const (
	keyMarket     = "market"
	keyOpenOrders = "openOrders"
)

// Store is the single holder of mutable client state: the latest decoded
// market, aggregated book, open orders and busy flags. State is replaced
// wholesale on each successful fetch, never partially overwritten. Writers
// are the two refresh entry points plus the lifecycle busy guards; if two
// refresh cycles overlap, the one completing last wins.
type Store struct {
	fetcher    chain.AccountFetcher
	marketAddr domain.Address
	owner      *domain.Address
	sched      *scheduler.Debouncer
	window     time.Duration

	// onSnapshot, when set, observes every successful market refresh.
	onSnapshot func(domain.Market, book.Snapshot)

	mu             sync.RWMutex
	market         *domain.Market
	snap           *book.Snapshot
	orders         []domain.OpenOrderRecord
	eventHeapCount uint32
	lastDecodeErr  error
	loading        bool

	placingOrder atomic.Bool
	cranking     atomic.Bool
}

// New creates a store for one market. owner may be nil for read-only use;
// open-orders refreshes are then skipped.
func New(fetcher chain.AccountFetcher, marketAddr domain.Address, owner *domain.Address, window time.Duration) *Store {
	return &Store{
		fetcher:    fetcher,
		marketAddr: marketAddr,
		owner:      owner,
		sched:      scheduler.New(),
		window:     window,
	}
}

// OnSnapshot registers the snapshot observer. Set during wiring, before any
// refresh runs.
func (s *Store) OnSnapshot(fn func(domain.Market, book.Snapshot)) {
	s.onSnapshot = fn
}

// Close tears down pending refresh timers. In-flight fetches are not
// aborted; their results are simply discarded by later completions.
func (s *Store) Close() {
	s.sched.Close()
}

// Market returns the latest decoded market snapshot.
func (s *Store) Market() (domain.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.market == nil {
		return domain.Market{}, false
	}
	return *s.market, true
}

// Book returns the latest aggregated order book.
func (s *Store) Book() (book.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return book.Snapshot{}, false
	}
	return *s.snap, true
}

// Orders returns the open orders, most recent first.
func (s *Store) Orders() []domain.OpenOrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OpenOrderRecord, len(s.orders))
	copy(out, s.orders)
	return out
}

// EventHeapCount returns the unconsumed event count from the last refresh.
func (s *Store) EventHeapCount() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventHeapCount
}

// Loading reports whether a market refresh cycle is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// DecodeErr returns the decode failure from the last failed cycle, nil
// after any success. Unlike fetch errors this is surfaced so a permanently
// malformed account reads as a terminal error, not an endless loading state.
func (s *Store) DecodeErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDecodeErr
}

// Owner returns the configured wallet identity, if any.
func (s *Store) Owner() *domain.Address {
	return s.owner
}

// TryBeginOrder attempts to claim the single order-submission slot.
func (s *Store) TryBeginOrder() bool {
	return s.placingOrder.CompareAndSwap(false, true)
}

// EndOrder releases the order-submission slot.
func (s *Store) EndOrder() {
	s.placingOrder.Store(false)
}

// IsPlacingOrder reports whether an order submission is in flight.
func (s *Store) IsPlacingOrder() bool {
	return s.placingOrder.Load()
}

// TryBeginCrank attempts to claim the single crank slot.
func (s *Store) TryBeginCrank() bool {
	return s.cranking.CompareAndSwap(false, true)
}

// EndCrank releases the crank slot.
func (s *Store) EndCrank() {
	s.cranking.Store(false)
}

// IsCranking reports whether a crank is in flight.
func (s *Store) IsCranking() bool {
	return s.cranking.Load()
}

// RequestRefresh schedules a debounced market refresh. Bursts collapse into
// one trailing execution; callers fire and continue.
func (s *Store) RequestRefresh(ctx context.Context) {
	s.sched.Schedule(keyMarket, s.window, func() {
		if err := s.RefreshMarket(ctx); err != nil {
			slog.Warn("market refresh failed", slog.Any("error", err))
		}
	})
}

// RequestOpenOrdersRefresh schedules a debounced open-orders refresh.
func (s *Store) RequestOpenOrdersRefresh(ctx context.Context) {
	s.sched.Schedule(keyOpenOrders, s.window, func() {
		if err := s.RefreshOpenOrders(ctx); err != nil {
			slog.Warn("open orders refresh failed", slog.Any("error", err))
		}
	})
}

// RefreshMarket pulls and decodes the market, book sides and event queue,
// replaces the held state wholesale, then triggers the dependent
// open-orders refresh. Any failure keeps the previous snapshot intact.
func (s *Store) RefreshMarket(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	marketBytes, err := s.fetcher.FetchAccounts(ctx, []domain.Address{s.marketAddr})
	if err != nil {
		return err
	}
	market, err := codec.DecodeMarket(s.marketAddr, marketBytes[0])
	if err != nil {
		s.noteDecodeErr(err)
		return err
	}

	bookBytes, err := s.fetcher.FetchAccounts(ctx, []domain.Address{market.Bids, market.Asks, market.EventQueue})
	if err != nil {
		return err
	}
	bids, err := codec.DecodeBookSide(bookBytes[0])
	if err != nil {
		s.noteDecodeErr(err)
		return err
	}
	asks, err := codec.DecodeBookSide(bookBytes[1])
	if err != nil {
		s.noteDecodeErr(err)
		return err
	}
	heapCount, err := codec.DecodeEventQueueCount(bookBytes[2])
	if err != nil {
		s.noteDecodeErr(err)
		return err
	}

	snap := book.BuildSnapshot(bids, asks)

	s.mu.Lock()
	s.market = &market
	s.snap = &snap
	s.eventHeapCount = heapCount
	s.lastDecodeErr = nil
	s.mu.Unlock()

	if s.onSnapshot != nil {
		s.onSnapshot(market, snap)
	}

	// The market identity is fully replaced before dependent orders are
	// refetched, so orders are never shown against a stale market.
	if s.owner != nil {
		if err := s.RefreshOpenOrders(ctx); err != nil {
			slog.Warn("dependent open orders refresh failed", slog.Any("error", err))
		}
	}
	return nil
}

// RefreshOpenOrders refetches and replaces the owner's open orders for this
// market, most recent account first.
func (s *Store) RefreshOpenOrders(ctx context.Context) error {
	if s.owner == nil {
		return nil
	}

	raw, err := s.fetcher.ScanOpenOrders(ctx, *s.owner, s.marketAddr)
	if err != nil {
		return err
	}

	orders := make([]domain.OpenOrderRecord, 0, len(raw))
	for _, acct := range raw {
		rec, err := codec.DecodeOpenOrders(acct.Address, acct.Data)
		if err != nil {
			s.noteDecodeErr(err)
			return err
		}
		orders = append(orders, rec)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].AccountNum > orders[j].AccountNum
	})

	s.mu.Lock()
	s.orders = orders
	s.mu.Unlock()
	return nil
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) noteDecodeErr(err error) {
	var mErr *codec.MalformedAccountError
	if !errors.As(err, &mErr) {
		return
	}
	s.mu.Lock()
	s.lastDecodeErr = err
	s.mu.Unlock()
}
