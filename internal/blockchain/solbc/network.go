// internal/blockchain/solbc/network.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

const defaultPollInterval = 500 * time.Millisecond

// Network submits wire-encoded transactions and polls for their status.
type Network struct {
	client       blockchain.Client
	logger       *zap.Logger
	pollInterval time.Duration
	submitRetry  time.Duration
	analyzer     *ErrorAnalyzer
}

// NewNetwork wraps a client. submitRetry bounds how long transient send
// errors are retried; zero disables retries.
func NewNetwork(client blockchain.Client, submitRetry time.Duration, logger *zap.Logger) *Network {
	return &Network{
		client:       client,
		logger:       logger.Named("network"),
		pollInterval: defaultPollInterval,
		submitRetry:  submitRetry,
		analyzer:     NewErrorAnalyzer(logger),
	}
}

// DecodeTransaction parses a wire-encoded transaction.
func DecodeTransaction(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// Submit sends a signed transaction. Resending the same signed bytes cannot
// double-spend, so transient RPC failures are retried with backoff.
func (n *Network) Submit(ctx context.Context, signed []byte) (string, error) {
	tx, err := DecodeTransaction(signed)
	if err != nil {
		return "", err
	}
	opts := blockchain.TransactionOptions{
		PreflightCommitment: rpc.CommitmentProcessed,
	}

	operation := func() (solana.Signature, error) {
		sig, err := n.client.SendTransactionWithOpts(ctx, tx, opts)
		if err != nil {
			if n.analyzer.IsPermanent(err) {
				return solana.Signature{}, backoff.Permanent(err)
			}
			return solana.Signature{}, err
		}
		return sig, nil
	}

	var sig solana.Signature
	if n.submitRetry > 0 {
		sig, err = backoff.Retry(ctx, operation,
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxElapsedTime(n.submitRetry))
	} else {
		sig, err = operation()
	}
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return "", fmt.Errorf("%s: %w", n.analyzer.Describe(err), err)
	}

	n.logger.Info("Transaction submitted", zap.String("signature", sig.String()))
	return sig.String(), nil
}

// Confirm polls the signature until it is confirmed, fails on-chain or the
// timeout elapses.
func (n *Network) Confirm(ctx context.Context, signature string, timeout time.Duration) (swap.ConfirmStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return swap.ConfirmTimedOut, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				n.logger.Warn("Confirmation timeout", zap.String("signature", signature), zap.Error(lastErr))
				return swap.ConfirmTimedOut, nil
			}
			return swap.ConfirmTimedOut, ctx.Err()
		case <-ticker.C:
			statuses, err := n.client.GetSignatureStatuses(ctx, sig)
			if err != nil {
				lastErr = err
				n.logger.Debug("Error getting signature statuses", zap.Error(err))
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				n.logger.Warn("Transaction failed on-chain",
					zap.String("signature", signature),
					zap.Any("err", status.Err))
				return swap.ConfirmFailed, nil
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
				return swap.ConfirmConfirmed, nil
			}
		}
	}
}

var _ swap.Network = (*Network)(nil)
