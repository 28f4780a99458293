// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrNotSigner is returned when the transaction does not require this wallet's signature.
var ErrNotSigner = errors.New("wallet is not a required signer of the transaction")

// Wallet представляет локальный кошелёк Solana.
type Wallet struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// LoadWallets загружает кошельки из CSV-файла с колонками: [Name, PrivateKeyBase58].
func LoadWallets(path string) (map[string]*Wallet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing data")
	}

	wallets := make(map[string]*Wallet)
	for i, record := range records[1:] {
		if len(record) != 2 {
			continue
		}
		w, err := NewWallet(record[1])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+2, record[0], err)
		}
		wallets[record[0]] = w
	}
	return wallets, nil
}

// Select returns the named wallet, or the only wallet when name is empty.
func Select(wallets map[string]*Wallet, name string) (*Wallet, error) {
	if name != "" {
		w, ok := wallets[name]
		if !ok {
			return nil, fmt.Errorf("wallet %q not found (have %v)", name, Names(wallets))
		}
		return w, nil
	}
	if len(wallets) != 1 {
		return nil, fmt.Errorf("wallet name required, have %v", Names(wallets))
	}
	for _, w := range wallets {
		return w, nil
	}
	return nil, errors.New("no wallets loaded")
}

// Names returns the wallet names in sorted order.
func Names(wallets map[string]*Wallet) []string {
	names := make([]string, 0, len(wallets))
	for name := range wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublicKey returns the base58 address.
func (w *Wallet) PublicKey() string {
	return w.publicKey.String()
}

// Address returns the public key.
func (w *Wallet) Address() solana.PublicKey {
	return w.publicKey
}

// SignTransaction decodes a wire-encoded transaction, adds this wallet's
// signature and re-encodes it.
func (w *Wallet) SignTransaction(ctx context.Context, unsigned []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(unsigned))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if !w.isSigner(tx) {
		return nil, ErrNotSigner
	}
	if err := w.sign(tx); err != nil {
		return nil, err
	}
	return tx.MarshalBinary()
}

func (w *Wallet) isSigner(tx *solana.Transaction) bool {
	signers := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < signers && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(w.publicKey) {
			return true
		}
	}
	return false
}

// sign подписывает транзакцию с помощью приватного ключа кошелька.
func (w *Wallet) sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.publicKey) {
			return &w.privateKey
		}
		return nil
	})
	return err
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.publicKey.String()
}
