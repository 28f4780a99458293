// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	MaxRetries          uint
}

// Client is the subset of the Solana JSON-RPC surface the swap flow needs.
type Client interface {
	// Последний blockhash для сборки транзакций.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить подписанную транзакцию.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Статусы подписей.
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	// Баланс аккаунта в лампортах.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	// Баланс токен-аккаунта в минимальных единицах.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}
