// internal/blockchain/solbc/balances.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// Balances reads SOL and SPL token balances for the balance tracker.
type Balances struct {
	client blockchain.Client

	mu       sync.Mutex
	ataCache map[string]solana.PublicKey
}

// NewBalances creates a balance source over client.
func NewBalances(client blockchain.Client) *Balances {
	return &Balances{
		client:   client,
		ataCache: make(map[string]solana.PublicKey),
	}
}

// NativeBalance returns the owner's lamports.
func (b *Balances) NativeBalance(ctx context.Context, owner string) (uint64, error) {
	pk, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	return b.client.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
}

// TokenBalance returns the owner's balance of asset in base units. A missing
// associated token account reads as zero.
func (b *Balances) TokenBalance(ctx context.Context, owner string, asset swap.Asset) (uint64, error) {
	ata, err := b.ata(owner, asset.Mint)
	if err != nil {
		return 0, err
	}
	amount, err := b.client.GetTokenAccountBalance(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	return amount, err
}

// ata возвращает адрес ассоциированного токен-аккаунта, используя кеш.
func (b *Balances) ata(owner, mint string) (solana.PublicKey, error) {
	key := owner + ":" + mint
	b.mu.Lock()
	defer b.mu.Unlock()
	if ata, ok := b.ataCache[key]; ok {
		return ata, nil
	}
	ownerPK, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	mintPK, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerPK, mintPK)
	if err != nil {
		return solana.PublicKey{}, err
	}
	b.ataCache[key] = ata
	return ata, nil
}

var _ swap.BalanceSource = (*Balances)(nil)
