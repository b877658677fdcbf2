package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"clob_go/internal/book"
	"clob_go/internal/chain"
	"clob_go/internal/domain"
	"clob_go/internal/store"
)

// Market order price sentinels, in display units. A market buy is priced at
// the ceiling and a market sell at the floor so the order sweeps whatever
// resting liquidity it meets.
var (
	MinMarketPrice = decimal.New(10, 0)
	MaxMarketPrice = decimal.New(10_000_000_000, 0)
)

var (
	ErrNoMarket      = errors.New("market not loaded")
	ErrOrderInFlight = errors.New("an order submission is already in flight")
	ErrCrankInFlight = errors.New("a crank is already in flight")
)

// SubmissionError marks a failure after validation passed, while building or
// sending the transaction batch.
type SubmissionError struct {
	Stage string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission failed at %s: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// BalanceSource reports the wallet balances used for affordability checks,
// in display units of the respective token.
type BalanceSource interface {
	BaseBalance() decimal.Decimal
	QuoteBalance() decimal.Decimal
}

// StaticBalances is a fixed BalanceSource, fed from configuration.
type StaticBalances struct {
	Base  decimal.Decimal
	Quote decimal.Decimal
}

func (b StaticBalances) BaseBalance() decimal.Decimal  { return b.Base }
func (b StaticBalances) QuoteBalance() decimal.Decimal { return b.Quote }

// Manager drives order placement and event-queue cranking against a single
// market, one submission at a time.
type Manager struct {
	store    *store.Store
	builder  chain.TxBuilder
	sender   chain.TxSender
	balances BalanceSource
	log      *slog.Logger
}

func NewManager(st *store.Store, builder chain.TxBuilder, sender chain.TxSender, balances BalanceSource, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: st, builder: builder, sender: sender, balances: balances, log: log}
}

// ResolvePrice returns the effective price of an intent. Market orders take
// the sweep sentinel for their side; limit orders keep the quoted price.
func ResolvePrice(intent domain.OrderIntent) decimal.Decimal {
	if intent.Kind != domain.MarketOrder {
		return intent.Price
	}
	if intent.Side == domain.Bid {
		return MaxMarketPrice
	}
	return MinMarketPrice
}

// MaxOrderAmount returns the largest amount the wallet can afford at the
// given price: quote balance divided by price (rounded down) for bids, the
// base balance for asks.
func (m *Manager) MaxOrderAmount(side domain.Side, price decimal.Decimal) decimal.Decimal {
	if side == domain.Bid {
		if price.Sign() <= 0 {
			return decimal.Zero
		}
		return m.balances.QuoteBalance().Div(price).Floor()
	}
	return m.balances.BaseBalance().Floor()
}

// Validate checks an intent against the current book and balances. The error
// is a hard rejection; warnings are advisory and do not block submission.
func (m *Manager) Validate(intent domain.OrderIntent, snap book.Snapshot) (warnings []string, err error) {
	if intent.Quantity <= 0 {
		return nil, errors.New("order amount must be a whole number greater than zero")
	}
	if intent.Kind == domain.Limit && intent.Price.Sign() <= 0 {
		return nil, errors.New("limit price must be greater than zero")
	}

	price := ResolvePrice(intent)

	if intent.Kind == domain.Limit {
		switch intent.Side {
		case domain.Bid:
			if len(snap.Asks) > 0 && intent.Price.GreaterThanOrEqual(snap.ToB.TopAsk) {
				warnings = append(warnings, fmt.Sprintf(
					"bid at %s meets the best ask %s and will cross the books with a taker order",
					intent.Price, snap.ToB.TopAsk))
			}
		case domain.Ask:
			if len(snap.Bids) > 0 && intent.Price.LessThanOrEqual(snap.ToB.TopBid) {
				warnings = append(warnings, fmt.Sprintf(
					"ask at %s meets the best bid %s and will cross the books with a taker order",
					intent.Price, snap.ToB.TopBid))
			}
		}
	} else {
		warnings = append(warnings,
			"market orders execute against whatever is resting and may fill far from the touch")
	}

	max := m.MaxOrderAmount(intent.Side, price)
	if decimal.NewFromInt(intent.Quantity).GreaterThan(max) {
		warnings = append(warnings, fmt.Sprintf(
			"amount %d exceeds the affordable maximum of %s", intent.Quantity, max))
	}

	return warnings, nil
}

// PlaceOrder validates, builds and sends an order. Only one submission may be
// in flight at a time; a second call is rejected immediately with
// ErrOrderInFlight. On success both the book and the owner's open orders are
// scheduled for refresh.
func (m *Manager) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (uuid.UUID, []string, error) {
	market, ok := m.store.Market()
	if !ok {
		return uuid.Nil, nil, ErrNoMarket
	}
	snap, _ := m.store.Book()

	warnings, err := m.Validate(intent, snap)
	if err != nil {
		return uuid.Nil, nil, err
	}

	if !m.store.TryBeginOrder() {
		return uuid.Nil, warnings, ErrOrderInFlight
	}
	defer m.store.EndOrder()

	intent.Price = ResolvePrice(intent)
	clientID := uuid.New()

	txs, err := m.builder.BuildPlaceOrder(market, intent, clientID)
	if err != nil {
		subErr := &SubmissionError{Stage: "build", Err: err}
		m.log.Error("order build failed", slog.String("client_id", clientID.String()), slog.Any("error", err))
		return uuid.Nil, warnings, subErr
	}
	if len(txs) == 0 {
		// Builder declined, typically because no wallet is configured.
		return clientID, warnings, nil
	}

	if err := m.sender.Send(ctx, txs); err != nil {
		subErr := &SubmissionError{Stage: "send", Err: err}
		m.log.Error("order send failed", slog.String("client_id", clientID.String()), slog.Any("error", err))
		return uuid.Nil, warnings, subErr
	}

	m.log.Info("order submitted",
		slog.String("client_id", clientID.String()),
		slog.String("side", intent.Side.String()),
		slog.String("kind", intent.Kind.String()),
		slog.String("price", intent.Price.String()),
		slog.Int64("amount", intent.Quantity))

	m.store.RequestRefresh(ctx)
	m.store.RequestOpenOrdersRefresh(ctx)
	return clientID, warnings, nil
}

// Crank builds and sends consume-events transactions for the market's event
// queue. Whatever the outcome, the busy flag is cleared and the owner's open
// orders are refreshed, since a partially landed crank can still have settled
// fills.
func (m *Manager) Crank(ctx context.Context, req domain.CrankRequest) error {
	market, ok := m.store.Market()
	if !ok {
		return ErrNoMarket
	}
	if !m.store.TryBeginCrank() {
		return ErrCrankInFlight
	}
	defer func() {
		m.store.EndCrank()
		m.store.RequestOpenOrdersRefresh(ctx)
	}()

	if req.Market.IsZero() {
		req.Market = market.Address
	}
	if req.EventQueue.IsZero() {
		req.EventQueue = market.EventQueue
	}

	txs, err := m.builder.BuildCrank(market, req)
	if err != nil {
		return &SubmissionError{Stage: "build", Err: err}
	}
	if len(txs) == 0 {
		return nil
	}
	if err := m.sender.Send(ctx, txs); err != nil {
		m.log.Error("crank send failed", slog.Any("error", err))
		return &SubmissionError{Stage: "send", Err: err}
	}

	m.log.Info("event queue cranked",
		slog.String("market", market.Address.String()),
		slog.Int("transactions", len(txs)))
	return nil
}
