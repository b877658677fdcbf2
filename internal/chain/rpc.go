package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"clob_go/internal/codec"
	"clob_go/internal/domain"
	"clob_go/internal/infra"
)

// RPCClient talks JSON-RPC to a chain node. All account reads go through a
// token bucket and a circuit breaker; a breaker-open read behaves like any
// other fetch failure.
type RPCClient struct {
	url        string
	programID  domain.Address
	httpClient *http.Client
	limiter    *infra.RateLimiter
	breaker    *infra.CircuitBreaker
	nextID     atomic.Uint64
}

// NewRPCClient creates a client for the given node URL.
func NewRPCClient(url string, programID domain.Address) *RPCClient {
	return &RPCClient{
		url:       url,
		programID: programID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: infra.NewRateLimiter(10, 20),
		breaker: infra.DefaultCircuitBreaker("rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip with limiter and breaker applied.
func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	if !c.breaker.Allow() {
		return &FetchError{Err: fmt.Errorf("rpc circuit open")}
	}
	c.limiter.Wait()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return &FetchError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return &FetchError{Err: err}
	}

	var envelope rpcResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.breaker.RecordFailure()
		return &FetchError{Err: err}
	}
	if envelope.Error != nil {
		c.breaker.RecordFailure()
		return &FetchError{Err: fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)}
	}

	c.breaker.RecordSuccess()
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return &FetchError{Err: err}
		}
	}
	return nil
}

type accountData struct {
	Data []string `json:"data"` // [payload, encoding]
}

func (a *accountData) bytes() ([]byte, error) {
	if len(a.Data) != 2 || a.Data[1] != "base64" {
		return nil, fmt.Errorf("unexpected account data encoding")
	}
	return base64.StdEncoding.DecodeString(a.Data[0])
}

// FetchAccounts implements AccountFetcher. Any null entry in the batch is a
// hard failure for the cycle.
func (c *RPCClient) FetchAccounts(ctx context.Context, addrs []domain.Address) ([][]byte, error) {
	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = a.String()
	}

	var result struct {
		Value []*accountData `json:"value"`
	}
	params := []any{keys, map[string]string{"encoding": "base64"}}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) != len(addrs) {
		return nil, &FetchError{Err: fmt.Errorf("got %d accounts, want %d", len(result.Value), len(addrs))}
	}

	out := make([][]byte, len(addrs))
	for i, acct := range result.Value {
		if acct == nil {
			return nil, &FetchError{Err: fmt.Errorf("account %s not found", addrs[i])}
		}
		data, err := acct.bytes()
		if err != nil {
			return nil, &FetchError{Err: err}
		}
		out[i] = data
	}
	return out, nil
}

type programAccount struct {
	Pubkey  string      `json:"pubkey"`
	Account accountData `json:"account"`
}

// ScanOpenOrders implements AccountFetcher using a filtered program-account
// scan: owner and market are matched at their fixed layout offsets.
func (c *RPCClient) ScanOpenOrders(ctx context.Context, owner, market domain.Address) ([]RawAccount, error) {
	filters := []any{
		map[string]any{"memcmp": map[string]any{"offset": codec.MemcmpOwnerOffset, "bytes": owner.String()}},
		map[string]any{"memcmp": map[string]any{"offset": codec.MemcmpMarketOffset, "bytes": market.String()}},
	}
	params := []any{
		c.programID.String(),
		map[string]any{"encoding": "base64", "filters": filters},
	}

	var result []programAccount
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	out := make([]RawAccount, 0, len(result))
	for _, pa := range result {
		addr, err := domain.ParseAddress(pa.Pubkey)
		if err != nil {
			return nil, &FetchError{Err: err}
		}
		data, err := pa.Account.bytes()
		if err != nil {
			return nil, &FetchError{Err: err}
		}
		out = append(out, RawAccount{Address: addr, Data: data})
	}
	return out, nil
}

// SendTransaction submits one serialized transaction and returns its
// signature.
func (c *RPCClient) SendTransaction(ctx context.Context, tx Transaction) (string, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return "", err
	}
	params := []any{base64.StdEncoding.EncodeToString(payload), map[string]string{"encoding": "base64"}}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	slog.Debug("transaction submitted", slog.String("signature", signature))
	return signature, nil
}
