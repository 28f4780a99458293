// internal/wallet/approval.go
package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrRejected is returned when the user declines to sign.
var ErrRejected = errors.New("user rejected the request")

// Request describes the transaction shown to the user before signing.
type Request struct {
	Signer       string
	FeePayer     string
	Instructions int
	Programs     []string
}

func (r Request) String() string {
	return fmt.Sprintf("fee payer %s, %d instruction(s), programs %s",
		r.FeePayer, r.Instructions, strings.Join(r.Programs, ", "))
}

// Approver asks the user to approve a signature. It blocks until the user
// answers or ctx is done.
type Approver interface {
	Approve(ctx context.Context, req Request) (bool, error)
}

// ApprovalSigner gates a Wallet behind an Approver, standing in for an
// external wallet's confirmation dialog.
type ApprovalSigner struct {
	wallet   *Wallet
	approver Approver
}

// NewApprovalSigner wraps w. A nil approver signs without asking.
func NewApprovalSigner(w *Wallet, approver Approver) *ApprovalSigner {
	return &ApprovalSigner{wallet: w, approver: approver}
}

// PublicKey returns the wallet address.
func (s *ApprovalSigner) PublicKey() string {
	return s.wallet.PublicKey()
}

// SignTransaction prompts for approval and signs on consent.
func (s *ApprovalSigner) SignTransaction(ctx context.Context, unsigned []byte) ([]byte, error) {
	if s.approver != nil {
		req, err := describe(s.wallet, unsigned)
		if err != nil {
			return nil, err
		}
		ok, err := s.approver.Approve(ctx, req)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRejected
		}
	}
	return s.wallet.SignTransaction(ctx, unsigned)
}

func describe(w *Wallet, unsigned []byte) (Request, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(unsigned))
	if err != nil {
		return Request{}, fmt.Errorf("decode transaction: %w", err)
	}
	req := Request{
		Signer:       w.PublicKey(),
		Instructions: len(tx.Message.Instructions),
	}
	if len(tx.Message.AccountKeys) > 0 {
		req.FeePayer = tx.Message.AccountKeys[0].String()
	}
	seen := make(map[string]struct{})
	for _, ix := range tx.Message.Instructions {
		program, err := tx.Message.Program(ix.ProgramIDIndex)
		if err != nil {
			continue
		}
		name := programName(program)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		req.Programs = append(req.Programs, name)
	}
	return req, nil
}

func programName(pk solana.PublicKey) string {
	switch {
	case pk.Equals(solana.SystemProgramID):
		return "System"
	case pk.Equals(solana.TokenProgramID):
		return "Token"
	case pk.Equals(solana.SPLAssociatedTokenAccountProgramID):
		return "AssociatedToken"
	case pk.Equals(solana.ComputeBudget):
		return "ComputeBudget"
	default:
		s := pk.String()
		return s[:4] + "..." + s[len(s)-4:]
	}
}

// PromptApprover asks on a terminal: "y" or "yes" approves, anything else rejects.
type PromptApprover struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptApprover reads answers from in and writes prompts to out.
func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: bufio.NewReader(in), out: out}
}

// Approve prints the request and waits for one line of input.
func (p *PromptApprover) Approve(ctx context.Context, req Request) (bool, error) {
	fmt.Fprintf(p.out, "Sign transaction (%s)? [y/N]: ", req)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, fmt.Errorf("read approval: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
