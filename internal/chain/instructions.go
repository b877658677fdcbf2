package chain

import (
	"encoding/binary"

	"github.com/google/uuid"

	"clob_go/internal/domain"
	"clob_go/pkg/px"
)

// Program opcodes.
const (
	opPlaceOrder    = 0
	opConsumeEvents = 1
)

// defaultCrankLimit bounds how many queued events one crank instruction may
// consume.
const defaultCrankLimit = 8

// ProgramTxBuilder builds unsigned instructions for the order book program.
// A nil wallet produces no transactions: placing or cranking without an
// identity is a silent no-op, not an error.
type ProgramTxBuilder struct {
	ProgramID domain.Address
	Wallet    *domain.Address
}

// NewProgramTxBuilder creates a builder. wallet may be nil for read-only use.
func NewProgramTxBuilder(programID domain.Address, wallet *domain.Address) *ProgramTxBuilder {
	return &ProgramTxBuilder{ProgramID: programID, Wallet: wallet}
}

// BuildPlaceOrder constructs a single-transaction batch placing one order.
func (b *ProgramTxBuilder) BuildPlaceOrder(market domain.Market, intent domain.OrderIntent, clientID uuid.UUID) ([]Transaction, error) {
	if b.Wallet == nil {
		return nil, nil
	}

	data := make([]byte, 4+8+8+16)
	data[0] = opPlaceOrder
	if intent.Side == domain.Ask {
		data[1] = 1
	}
	if intent.Kind == domain.MarketOrder {
		data[2] = 1
	}
	binary.LittleEndian.PutUint64(data[4:], uint64(px.FromDisplay(intent.Price)))
	binary.LittleEndian.PutUint64(data[12:], uint64(intent.Quantity))
	copy(data[20:], clientID[:])

	ix := Instruction{
		ProgramID: b.ProgramID,
		Accounts: []domain.Address{
			market.Address,
			market.Bids,
			market.Asks,
			market.EventQueue,
			market.BaseVault,
			market.QuoteVault,
			*b.Wallet,
		},
		Data: data,
	}
	return []Transaction{{Instructions: []Instruction{ix}}}, nil
}

// BuildCrank constructs the settlement batch draining the market's event
// queue, optionally scoped to a single event.
func (b *ProgramTxBuilder) BuildCrank(market domain.Market, req domain.CrankRequest) ([]Transaction, error) {
	if b.Wallet == nil {
		return nil, nil
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultCrankLimit
	}

	data := make([]byte, 4)
	data[0] = opConsumeEvents
	binary.LittleEndian.PutUint16(data[2:], limit)

	accounts := []domain.Address{req.Market, req.EventQueue, *b.Wallet}
	if req.Event != nil {
		accounts = append(accounts, *req.Event)
	}

	ix := Instruction{
		ProgramID: b.ProgramID,
		Accounts:  accounts,
		Data:      data,
	}
	return []Transaction{{Instructions: []Instruction{ix}}}, nil
}
