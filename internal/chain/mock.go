package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"clob_go/internal/domain"
)

// Test doubles shared by the store, trade and api tests.

// MockFetcher serves canned account bytes.
type MockFetcher struct {
	mu       sync.Mutex
	Accounts map[domain.Address][]byte
	Scan     []RawAccount
	Err      error
	fetches  int
	scans    int
}

func (m *MockFetcher) FetchAccounts(ctx context.Context, addrs []domain.Address) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		data, ok := m.Accounts[a]
		if !ok {
			return nil, &FetchError{Err: fmt.Errorf("account %s not found", a)}
		}
		out[i] = data
	}
	return out, nil
}

func (m *MockFetcher) ScanOpenOrders(ctx context.Context, owner, market domain.Address) ([]RawAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Scan, nil
}

func (m *MockFetcher) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *MockFetcher) ScanCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

// MockBuilder records build requests and returns canned transactions.
type MockBuilder struct {
	mu         sync.Mutex
	Txs        []Transaction
	Err        error
	LastIntent domain.OrderIntent
	LastCrank  domain.CrankRequest
	builds     int
}

func (m *MockBuilder) BuildPlaceOrder(market domain.Market, intent domain.OrderIntent, clientID uuid.UUID) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++
	m.LastIntent = intent
	return m.Txs, m.Err
}

func (m *MockBuilder) BuildCrank(market domain.Market, req domain.CrankRequest) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++
	m.LastCrank = req
	return m.Txs, m.Err
}

func (m *MockBuilder) Builds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}

// MockSender records sent batches.
type MockSender struct {
	mu    sync.Mutex
	Err   error
	Sent  [][]Transaction
	Block chan struct{} // when set, Send waits until it is closed
}

func (m *MockSender) Send(ctx context.Context, txs []Transaction) error {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, txs)
	return nil
}

func (m *MockSender) SendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
