package domain

import (
	"github.com/shopspring/decimal"
)

// Side is the book side an order rests on or takes from.
type Side int

const (
	Bid Side = iota // buy
	Ask             // sell
)

func (s Side) String() string {
	if s == Ask {
		return "ask"
	}
	return "bid"
}

// OrderKind distinguishes resting limit orders from taker market orders.
type OrderKind int

const (
	Limit OrderKind = iota
	MarketOrder
)

func (k OrderKind) String() string {
	if k == MarketOrder {
		return "market"
	}
	return "limit"
}

// OrderIntent is a validated request to place one order. Price is in display
// units; market orders carry the extreme sentinel price resolved during
// validation. Intents are discarded after submission regardless of outcome.
type OrderIntent struct {
	Side     Side
	Kind     OrderKind
	Price    decimal.Decimal
	Quantity int64 // base lots, whole units
}

// OpenOrderRecord is one decoded open-orders account for an owner on a
// market. AccountNum orders records most-recent-first for display.
type OpenOrderRecord struct {
	Address    Address `json:"address"`
	Owner      Address `json:"owner"`
	Market     Address `json:"market"`
	AccountNum uint32  `json:"account_num"`
	BaseFree   uint64  `json:"base_free"`
	QuoteFree  uint64  `json:"quote_free"`
}

// CrankRequest asks for the market's event queue to be drained so matched
// trades settle. Event, when set, scopes the crank to a single queued event.
type CrankRequest struct {
	Market     Address
	EventQueue Address
	Event      *Address
	Limit      uint16
}
