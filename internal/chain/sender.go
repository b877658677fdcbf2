package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DryRunSender logs the batch and reports success without touching the
// network. Default mode; mirrors how a paper execution path behaves.
type DryRunSender struct{}

func (DryRunSender) Send(ctx context.Context, txs []Transaction) error {
	for i, tx := range txs {
		slog.Info("DRY RUN: transaction batch",
			slog.Int("index", i),
			slog.Int("instructions", len(tx.Instructions)))
	}
	return nil
}

// RPCSender submits each transaction through the RPC node and treats any
// rejection as a failure for the whole batch.
type RPCSender struct {
	client *RPCClient
}

func NewRPCSender(client *RPCClient) *RPCSender {
	return &RPCSender{client: client}
}

func (s *RPCSender) Send(ctx context.Context, txs []Transaction) error {
	for i, tx := range txs {
		sig, err := s.client.SendTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("transaction %d of %d: %w", i+1, len(txs), err)
		}
		slog.Info("transaction confirmed", slog.String("signature", sig))
	}
	return nil
}

// NewSender picks the sender implementation for the configured mode.
func NewSender(mode string, client *RPCClient) (TxSender, error) {
	switch strings.ToLower(mode) {
	case "", "dryrun":
		return DryRunSender{}, nil
	case "rpc":
		if client == nil {
			return nil, fmt.Errorf("rpc sender requires an RPC client")
		}
		return NewRPCSender(client), nil
	default:
		return nil, fmt.Errorf("unknown sender mode: %q", mode)
	}
}
