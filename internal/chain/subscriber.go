package chain

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clob_go/internal/domain"
	"clob_go/internal/infra"
)

// AccountSubscriber watches a set of accounts over the node's websocket and
// invokes onChange when any of them is written. It exists only to poke the
// refresh scheduler early; polling still works without it, so every failure
// mode degrades to reconnect-and-retry.
type AccountSubscriber struct {
	url      string
	accounts []domain.Address
	onChange func(domain.Address)

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// NewAccountSubscriber creates a subscriber for the given accounts.
func NewAccountSubscriber(url string, accounts []domain.Address, onChange func(domain.Address)) *AccountSubscriber {
	return &AccountSubscriber{
		url:          url,
		accounts:     accounts,
		onChange:     onChange,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Start initiates the connection loop.
func (s *AccountSubscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)
}

// Stop terminates the subscriber.
func (s *AccountSubscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.close()
	s.wg.Wait()
}

func (s *AccountSubscriber) runLoop(ctx context.Context) {
	defer s.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		subs, err := s.connect(ctx)
		if err != nil {
			slog.Warn("account subscribe connect failed", "err", err, "retry", retry)
			delay := infra.CalculateBackoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		s.process(ctx, subs)
	}
}

type wsSubscribeMsg struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsInbound struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

// connect dials the node and issues one accountSubscribe per watched
// account. Returned map resolves subscription IDs back to addresses; it is
// filled lazily in process as acks arrive.
func (s *AccountSubscriber) connect(ctx context.Context) (map[uint64]domain.Address, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for i, addr := range s.accounts {
		msg := wsSubscribeMsg{
			JSONRPC: "2.0",
			ID:      uint64(i + 1), // request id doubles as account index
			Method:  "accountSubscribe",
			Params:  []any{addr.String(), map[string]string{"encoding": "base64"}},
		}
		body, err := json.Marshal(msg)
		if err != nil {
			s.close()
			return nil, err
		}
		if err := s.write(websocket.TextMessage, body); err != nil {
			s.close()
			return nil, err
		}
	}

	if s.PingInterval > 0 {
		go s.pingLoop(ctx)
	}

	slog.Info("account subscriptions requested", "accounts", len(s.accounts))
	return make(map[uint64]domain.Address), nil
}

func (s *AccountSubscriber) process(ctx context.Context, subs map[uint64]domain.Address) {
	for {
		s.mu.RLock()
		c := s.conn
		s.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("account subscribe read error", "err", err)
			s.close()
			return
		}

		var in wsInbound
		if err := json.Unmarshal(msg, &in); err != nil {
			slog.Warn("account subscribe bad frame", "err", err)
			continue
		}

		switch {
		case in.ID > 0 && in.Result != nil:
			// Subscription ack: result is the server-side subscription id.
			var subID uint64
			if err := json.Unmarshal(in.Result, &subID); err != nil {
				continue
			}
			if idx := int(in.ID - 1); idx >= 0 && idx < len(s.accounts) {
				subs[subID] = s.accounts[idx]
			}
		case in.Method == "accountNotification" && in.Params != nil:
			if addr, ok := subs[in.Params.Subscription]; ok && s.onChange != nil {
				s.onChange(addr)
			}
		}
	}
}

func (s *AccountSubscriber) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			c := s.conn
			s.mu.RUnlock()
			if c == nil {
				return
			}
			if err := s.write(websocket.PingMessage, nil); err != nil {
				slog.Warn("account subscribe ping error", "err", err)
				s.close()
				return
			}
		}
	}
}

func (s *AccountSubscriber) write(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	c := s.conn
	s.mu.RUnlock()
	if c == nil {
		return websocket.ErrCloseSent
	}
	return c.WriteMessage(msgType, data)
}

func (s *AccountSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
