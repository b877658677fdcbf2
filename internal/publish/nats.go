package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"clob_go/internal/book"
	"clob_go/internal/domain"
)

// SnapshotPublisher broadcasts aggregated book snapshots over NATS, one
// subject per market: "<prefix>.<market address>". Publishing is fire and
// forget; a slow or absent broker never blocks a refresh cycle.
type SnapshotPublisher struct {
	prefix string
	log    *slog.Logger

	mu sync.Mutex
	nc *nats.Conn
}

type snapshotMessage struct {
	Market      string        `json:"market"`
	MarketName  string        `json:"market_name"`
	Book        book.Snapshot `json:"book"`
	PublishedAt time.Time     `json:"published_at"`
}

// NewSnapshotPublisher connects to the broker at url. An empty url disables
// publishing entirely and returns a no-op publisher.
func NewSnapshotPublisher(url, prefix string, log *slog.Logger) (*SnapshotPublisher, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &SnapshotPublisher{prefix: prefix, log: log}
	if url == "" {
		return p, nil
	}

	nc, err := nats.Connect(url,
		nats.Name("clob-book-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p.nc = nc
	log.Info("nats publisher connected", slog.String("url", url), slog.String("prefix", prefix))
	return p, nil
}

// Publish serializes and sends one snapshot. Errors are logged, never
// returned, so the caller's refresh path stays unaffected.
func (p *SnapshotPublisher) Publish(market domain.Market, snap book.Snapshot) {
	p.mu.Lock()
	nc := p.nc
	p.mu.Unlock()
	if nc == nil {
		return
	}

	msg := snapshotMessage{
		Market:      market.Address.String(),
		MarketName:  market.Name,
		Book:        snap,
		PublishedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("snapshot marshal failed", slog.Any("error", err))
		return
	}

	subject := p.prefix + "." + market.Address.String()
	if err := nc.Publish(subject, payload); err != nil {
		p.log.Warn("snapshot publish failed",
			slog.String("subject", subject), slog.Any("error", err))
	}
}

func (p *SnapshotPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		p.nc.Drain()
		p.nc = nil
	}
}
