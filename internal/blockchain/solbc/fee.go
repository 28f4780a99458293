// internal/blockchain/solbc/fee.go
package solbc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// FeeTransfers builds the native SOL transfer that pays the platform fee.
type FeeTransfers struct {
	client blockchain.Client
}

// NewFeeTransfers creates a fee transaction builder.
func NewFeeTransfers(client blockchain.Client) *FeeTransfers {
	return &FeeTransfers{client: client}
}

// BuildFeeTransfer returns an unsigned, wire-encoded transfer of lamports
// from payer to destination.
func (f *FeeTransfers) BuildFeeTransfer(ctx context.Context, payer, destination string, lamports uint64) ([]byte, error) {
	from, err := solana.PublicKeyFromBase58(payer)
	if err != nil {
		return nil, fmt.Errorf("invalid payer %q: %w", payer, err)
	}
	to, err := solana.PublicKeyFromBase58(destination)
	if err != nil {
		return nil, fmt.Errorf("invalid fee destination %q: %w", destination, err)
	}
	if lamports == 0 {
		return nil, fmt.Errorf("fee transfer of zero lamports")
	}

	blockhash, err := f.client.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx.MarshalBinary()
}

var _ swap.FeeTxBuilder = (*FeeTransfers)(nil)
