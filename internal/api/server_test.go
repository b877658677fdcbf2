package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"clob_go/internal/book"
	"clob_go/internal/chain"
	"clob_go/internal/codec"
	"clob_go/internal/domain"
	"clob_go/internal/store"
	"clob_go/internal/trade"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[0] = b
	return a
}

func newTestServer(t *testing.T, sender chain.TxSender) (*Server, *store.Store) {
	t.Helper()
	m := domain.Market{
		Address:    addr(1),
		Name:       "META/USDC",
		Bids:       addr(2),
		Asks:       addr(3),
		EventQueue: addr(4),
	}
	fetcher := &chain.MockFetcher{
		Accounts: map[domain.Address][]byte{
			m.Address: codec.EncodeMarket(m),
			m.Bids: codec.EncodeBookSide([]book.LeafOrderRecord{
				{Key: book.OrderKey{Hi: 100000, Lo: 1}, Quantity: 3},
			}, 8),
			m.Asks: codec.EncodeBookSide([]book.LeafOrderRecord{
				{Key: book.OrderKey{Hi: 105000, Lo: 2}, Quantity: 5},
			}, 8),
			m.EventQueue: codec.EncodeEventQueue(1),
		},
	}
	st := store.New(fetcher, m.Address, nil, time.Millisecond)
	t.Cleanup(st.Close)
	if err := st.RefreshMarket(context.Background()); err != nil {
		t.Fatalf("RefreshMarket: %v", err)
	}

	builder := &chain.MockBuilder{Txs: []chain.Transaction{{}}}
	balances := trade.StaticBalances{
		Base:  decimal.NewFromInt(100),
		Quote: decimal.NewFromInt(1000),
	}
	trader := trade.NewManager(st, builder, sender, balances, nil)
	return NewServer(st, trader, nil), st
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestGetMarket(t *testing.T) {
	srv, _ := newTestServer(t, &chain.MockSender{})

	rr := doJSON(t, srv, "GET", "/market", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp struct {
		Market *struct {
			Name string `json:"name"`
		} `json:"market"`
		EventHeapCount uint32 `json:"event_heap_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Market == nil || resp.Market.Name != "META/USDC" {
		t.Errorf("market = %+v", resp.Market)
	}
	if resp.EventHeapCount != 1 {
		t.Errorf("event_heap_count = %d, want 1", resp.EventHeapCount)
	}
}

func TestGetBook(t *testing.T) {
	srv, _ := newTestServer(t, &chain.MockSender{})

	rr := doJSON(t, srv, "GET", "/book", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var snap book.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("levels = %d/%d", len(snap.Bids), len(snap.Asks))
	}
	if !snap.ToB.TopBid.Equal(decimal.NewFromInt(10)) {
		t.Errorf("top bid = %s", snap.ToB.TopBid)
	}
}

func TestPlaceOrder(t *testing.T) {
	sender := &chain.MockSender{}
	srv, _ := newTestServer(t, sender)

	rr := doJSON(t, srv, "POST", "/orders",
		`{"side":"bid","kind":"limit","price":"9","amount":2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp struct {
		ClientID string   `json:"client_id"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ClientID == "" {
		t.Error("missing client_id")
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", resp.Warnings)
	}
	if sender.SendCalls() != 1 {
		t.Errorf("send calls = %d", sender.SendCalls())
	}
}

func TestPlaceOrder_CrossingReturnsWarnings(t *testing.T) {
	srv, _ := newTestServer(t, &chain.MockSender{})

	rr := doJSON(t, srv, "POST", "/orders",
		`{"side":"bid","kind":"limit","price":"11","amount":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp struct {
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Warnings) == 0 {
		t.Error("crossing order should carry warnings")
	}
}

func TestPlaceOrder_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &chain.MockSender{})

	cases := []struct {
		name string
		body string
	}{
		{"zero amount", `{"side":"bid","kind":"limit","price":"9","amount":0}`},
		{"bad side", `{"side":"hold","kind":"limit","price":"9","amount":1}`},
		{"bad price", `{"side":"bid","kind":"limit","price":"cheap","amount":1}`},
		{"not json", `{"side":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, "POST", "/orders", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestPlaceOrder_BusyConflict(t *testing.T) {
	srv, st := newTestServer(t, &chain.MockSender{})

	if !st.TryBeginOrder() {
		t.Fatal("could not take the busy flag")
	}
	defer st.EndOrder()

	rr := doJSON(t, srv, "POST", "/orders",
		`{"side":"bid","kind":"limit","price":"9","amount":1}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestCrank(t *testing.T) {
	sender := &chain.MockSender{}
	srv, _ := newTestServer(t, sender)

	rr := doJSON(t, srv, "POST", "/crank", `{"limit":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if sender.SendCalls() != 1 {
		t.Errorf("send calls = %d", sender.SendCalls())
	}

	// An empty body is fine too.
	rr = doJSON(t, srv, "POST", "/crank", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("empty body status = %d", rr.Code)
	}
}

func TestCrank_BusyConflict(t *testing.T) {
	srv, st := newTestServer(t, &chain.MockSender{})

	if !st.TryBeginCrank() {
		t.Fatal("could not take the crank flag")
	}
	defer st.EndCrank()

	rr := doJSON(t, srv, "POST", "/crank", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestGetOrdersEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &chain.MockSender{})

	rr := doJSON(t, srv, "GET", "/orders", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var orders []domain.OpenOrderRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("orders = %v", orders)
	}
}
