package solbc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memeswap/internal/blockchain"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

type fakeChain struct {
	mu        sync.Mutex
	statuses  []*rpc.SignatureStatusesResult
	sendErr   error
	sendCalls atomic.Int32
	balance   uint64
	tokenErr  error
	token     uint64
	blockhash solana.Hash
}

func (f *fakeChain) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, nil
}

func (f *fakeChain) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ blockchain.TransactionOptions) (solana.Signature, error) {
	f.sendCalls.Add(1)
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return tx.Signatures[0], nil
}

func (f *fakeChain) GetSignatureStatuses(context.Context, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{st}}, nil
}

func (f *fakeChain) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (uint64, error) {
	return f.balance, nil
}

func (f *fakeChain) GetTokenAccountBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.token, f.tokenErr
}

func signedTransfer(t *testing.T, chain *fakeChain) ([]byte, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	dest := solana.NewWallet().PublicKey()

	raw, err := NewFeeTransfers(chain).BuildFeeTransfer(context.Background(), key.PublicKey().String(), dest.String(), 5000)
	require.NoError(t, err)
	tx, err := DecodeTransaction(raw)
	require.NoError(t, err)
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	require.NoError(t, err)
	signed, err := tx.MarshalBinary()
	require.NoError(t, err)
	return signed, key
}

func testNetwork(t *testing.T, chain *fakeChain, retry time.Duration) *Network {
	n := NewNetwork(chain, retry, zaptest.NewLogger(t))
	n.pollInterval = time.Millisecond
	return n
}

func TestFeeTransferBuildsSystemTransfer(t *testing.T) {
	chain := &fakeChain{blockhash: solana.Hash{1, 2, 3}}
	payer := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()

	raw, err := NewFeeTransfers(chain).BuildFeeTransfer(context.Background(), payer.String(), dest.String(), 7_500_000)
	require.NoError(t, err)

	tx, err := DecodeTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, chain.blockhash, tx.Message.RecentBlockhash)
	require.Len(t, tx.Message.Instructions, 1)

	ix := tx.Message.Instructions[0]
	program, err := tx.Message.Program(ix.ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, solana.SystemProgramID, program)

	accounts, err := ix.ResolveInstructionAccounts(&tx.Message)
	require.NoError(t, err)
	decoded, err := system.DecodeInstruction(accounts, ix.Data)
	require.NoError(t, err)
	transfer, ok := decoded.Impl.(*system.Transfer)
	require.True(t, ok)
	assert.Equal(t, uint64(7_500_000), *transfer.Lamports)
	assert.Equal(t, payer, transfer.GetFundingAccount().PublicKey)
	assert.Equal(t, dest, transfer.GetRecipientAccount().PublicKey)
}

func TestFeeTransferRejectsBadInput(t *testing.T) {
	f := NewFeeTransfers(&fakeChain{})
	valid := solana.NewWallet().PublicKey().String()

	_, err := f.BuildFeeTransfer(context.Background(), "not-a-key", valid, 1)
	assert.Error(t, err)
	_, err = f.BuildFeeTransfer(context.Background(), valid, valid, 0)
	assert.Error(t, err)
}

func TestNetworkSubmitReturnsSignature(t *testing.T) {
	chain := &fakeChain{}
	signed, _ := signedTransfer(t, chain)

	sig, err := testNetwork(t, chain, 0).Submit(context.Background(), signed)
	require.NoError(t, err)

	tx, err := DecodeTransaction(signed)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0].String(), sig)
}

func TestNetworkSubmitDoesNotRetryPermanentErrors(t *testing.T) {
	chain := &fakeChain{sendErr: &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 0",
		Data: map[string]interface{}{
			"logs": []interface{}{"Program log: Transfer: insufficient lamports 10, need 5000"},
		},
	}}
	signed, _ := signedTransfer(t, chain)

	_, err := testNetwork(t, chain, time.Second).Submit(context.Background(), signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient SOL")
	assert.Equal(t, int32(1), chain.sendCalls.Load())
}

func TestNetworkSubmitRetriesTransientErrors(t *testing.T) {
	chain := &fakeChain{sendErr: errors.New("connection reset by peer")}
	signed, _ := signedTransfer(t, chain)

	_, err := testNetwork(t, chain, 2*time.Second).Submit(context.Background(), signed)
	require.Error(t, err)
	assert.Greater(t, chain.sendCalls.Load(), int32(1))
}

func TestNetworkSubmitRejectsGarbage(t *testing.T) {
	_, err := testNetwork(t, &fakeChain{}, 0).Submit(context.Background(), []byte{0xff})
	assert.Error(t, err)
}

func TestNetworkConfirm(t *testing.T) {
	sig := solana.Signature{9}.String()

	t.Run("confirmed", func(t *testing.T) {
		chain := &fakeChain{statuses: []*rpc.SignatureStatusesResult{
			nil,
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		}}
		st, err := testNetwork(t, chain, 0).Confirm(context.Background(), sig, time.Second)
		require.NoError(t, err)
		assert.Equal(t, swap.ConfirmConfirmed, st)
	})

	t.Run("failed on-chain", func(t *testing.T) {
		chain := &fakeChain{statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		}}
		st, err := testNetwork(t, chain, 0).Confirm(context.Background(), sig, time.Second)
		require.NoError(t, err)
		assert.Equal(t, swap.ConfirmFailed, st)
	})

	t.Run("timeout", func(t *testing.T) {
		chain := &fakeChain{}
		st, err := testNetwork(t, chain, 0).Confirm(context.Background(), sig, 20*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, swap.ConfirmTimedOut, st)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		st, err := testNetwork(t, &fakeChain{}, 0).Confirm(ctx, sig, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, swap.ConfirmTimedOut, st)
	})
}

func TestBalancesMissingTokenAccountIsZero(t *testing.T) {
	chain := &fakeChain{balance: 42, tokenErr: ErrAccountNotFound}
	b := NewBalances(chain)
	owner := solana.NewWallet().PublicKey().String()

	native, err := b.NativeBalance(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), native)

	tok, err := b.TokenBalance(context.Background(), owner, swap.Asset{Mint: solana.WrappedSol.String(), Decimals: 9})
	require.NoError(t, err)
	assert.Zero(t, tok)

	_, err = b.NativeBalance(context.Background(), "bogus")
	assert.Error(t, err)
}

type fakeRPC struct {
	rpcAPI
	token  *rpc.GetTokenAccountBalanceResult
	supply *rpc.GetTokenSupplyResult
	err    error
}

func (f *fakeRPC) GetTokenSupply(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error) {
	return f.supply, f.err
}

func (f *fakeRPC) GetTokenAccountBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return f.token, f.err
}

func TestClientTokenAccountBalance(t *testing.T) {
	logger := zaptest.NewLogger(t)
	account := solana.NewWallet().PublicKey()

	c := newClient(&fakeRPC{token: &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: "1234567", Decimals: 6},
	}}, nil, logger)
	amount, err := c.GetTokenAccountBalance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567), amount)

	c = newClient(&fakeRPC{err: &jsonrpc.RPCError{Message: "Invalid param: could not find account"}}, nil, logger)
	_, err = c.GetTokenAccountBalance(context.Background(), account)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestClientMintDecimals(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mint := solana.NewWallet().PublicKey().String()

	c := newClient(&fakeRPC{supply: &rpc.GetTokenSupplyResult{
		Value: &rpc.UiTokenAmount{Amount: "1000000000000000", Decimals: 6},
	}}, nil, logger)
	dec, err := c.MintDecimals(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	_, err = c.MintDecimals(context.Background(), "not-base58!")
	assert.Error(t, err)

	c = newClient(&fakeRPC{err: rpc.ErrNotFound}, nil, logger)
	_, err = c.MintDecimals(context.Background(), mint)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestParseAnchorErrorLog(t *testing.T) {
	ae := parseAnchorErrorLog("Program log: AnchorError occurred. Error Code: SlippageExceeded. Error Number: 6004. Error Message: Too much slippage.")
	assert.Equal(t, 6004, ae.Code)
	assert.Equal(t, "SlippageExceeded", ae.Name)
	assert.Equal(t, "Too much slippage", ae.Msg)
}
