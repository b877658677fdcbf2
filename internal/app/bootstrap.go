package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"clob_go/internal/api"
	"clob_go/internal/chain"
	"clob_go/internal/domain"
	"clob_go/internal/infra"
	"clob_go/internal/publish"
	"clob_go/internal/store"
	"clob_go/internal/trade"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Store      *store.Store
	Trader     *trade.Manager
	API        *api.Server
	Publisher  *publish.SnapshotPublisher
	Subscriber *chain.AccountSubscriber
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component together. Nothing
// is started yet; Run does that.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping CLOB client...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Resolve on-chain identities
	marketAddr, err := domain.ParseAddress(cfg.Market.Address)
	if err != nil {
		return fmt.Errorf("market address: %w", err)
	}

	programID, err := domain.ParseAddress(cfg.RPC.ProgramID)
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}

	var owner *domain.Address
	if cfg.Market.Owner != "" {
		o, err := domain.ParseAddress(cfg.Market.Owner)
		if err != nil {
			return fmt.Errorf("owner address: %w", err)
		}
		owner = &o
	}

	// 4. Chain access: fetcher, builder, sender
	rpc := chain.NewRPCClient(cfg.RPC.HTTPURL, programID)
	builder := chain.NewProgramTxBuilder(programID, owner)
	sender, err := chain.NewSender(cfg.Sender.Mode, rpc)
	if err != nil {
		return err
	}
	slog.Info("✅ Chain access ready",
		slog.String("rpc", cfg.RPC.HTTPURL),
		slog.String("sender", cfg.Sender.Mode))

	// 5. Market state store with debounced refresh
	window := time.Duration(cfg.Refresh.WindowMS) * time.Millisecond
	b.Store = store.New(rpc, marketAddr, owner, window)

	// 6. Snapshot broadcast over NATS (optional)
	pub, err := publish.NewSnapshotPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		return err
	}
	b.Publisher = pub
	b.Store.OnSnapshot(pub.Publish)

	// 7. Order lifecycle
	balances := trade.StaticBalances{
		Base:  decimal.NewFromInt(cfg.Balances.Base),
		Quote: decimal.NewFromInt(cfg.Balances.Quote),
	}
	b.Trader = trade.NewManager(b.Store, builder, sender, balances, logger)

	// 8. HTTP surface
	b.API = api.NewServer(b.Store, b.Trader, logger)

	return nil
}

// StartSubscriber begins streaming account change notifications once the
// market identity is known, so the book refreshes on push instead of polling.
// Requires a successful initial refresh; without a WS endpoint it is a no-op.
func (b *Bootstrap) StartSubscriber(ctx context.Context) {
	if b.Config.RPC.WSURL == "" {
		return
	}
	market, ok := b.Store.Market()
	if !ok {
		slog.Warn("market not loaded, account subscriber not started")
		return
	}

	accounts := []domain.Address{market.Address, market.Bids, market.Asks, market.EventQueue}
	b.Subscriber = chain.NewAccountSubscriber(b.Config.RPC.WSURL, accounts, func(addr domain.Address) {
		b.Store.RequestRefresh(ctx)
	})
	b.Subscriber.Start(ctx)
	slog.Info("✅ Account subscriber started",
		slog.String("ws", b.Config.RPC.WSURL),
		slog.Int("accounts", len(accounts)))
}

// Close releases everything Initialize created.
func (b *Bootstrap) Close() {
	if b.Subscriber != nil {
		b.Subscriber.Stop()
	}
	if b.Store != nil {
		b.Store.Close()
	}
	if b.Publisher != nil {
		b.Publisher.Close()
	}
}
