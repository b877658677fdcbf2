package chain

import (
	"context"

	"github.com/google/uuid"

	"clob_go/internal/domain"
)

// FetchError wraps a network or account-lookup failure. The refresh cycle
// that hit it keeps the previous snapshot and the next scheduled refresh
// retries; it is never surfaced as a blocking error.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// RawAccount is an account address plus its raw data bytes from a scan.
type RawAccount struct {
	Address domain.Address
	Data    []byte
}

// AccountFetcher retrieves raw account bytes from the chain.
type AccountFetcher interface {
	// FetchAccounts returns one byte buffer per requested address, in order.
	// A missing account is a hard failure for the whole batch, reported as
	// a FetchError.
	FetchAccounts(ctx context.Context, addrs []domain.Address) ([][]byte, error)

	// ScanOpenOrders lists the raw open-orders accounts for one owner on
	// one market.
	ScanOpenOrders(ctx context.Context, owner, market domain.Address) ([]RawAccount, error)
}

// Instruction is one unsigned program instruction.
type Instruction struct {
	ProgramID domain.Address   `json:"program_id"`
	Accounts  []domain.Address `json:"accounts"`
	Data      []byte           `json:"data"`
}

// Transaction is an atomic batch of instructions.
type Transaction struct {
	Instructions []Instruction `json:"instructions"`
}

// TxBuilder constructs unsigned transactions from validated intents.
// Builders may return (nil, nil) when preconditions are unmet, e.g. no
// wallet identity is configured; callers treat that as a silent no-op.
type TxBuilder interface {
	BuildPlaceOrder(market domain.Market, intent domain.OrderIntent, clientID uuid.UUID) ([]Transaction, error)
	BuildCrank(market domain.Market, req domain.CrankRequest) ([]Transaction, error)
}

// TxSender signs, submits and awaits confirmation of a transaction batch,
// returning an error on any failure.
type TxSender interface {
	Send(ctx context.Context, txs []Transaction) error
}
