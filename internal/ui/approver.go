package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

type approvalRequest struct {
	req   wallet.Request
	reply chan bool
}

// Approver implements wallet.Approver by asking on the trade screen.
type Approver struct {
	requests chan approvalRequest
}

// NewApprover creates an approver; pass it to TradeModel.WithApprover.
func NewApprover() *Approver {
	return &Approver{requests: make(chan approvalRequest)}
}

// Approve blocks until the user answers on screen or ctx is done.
func (a *Approver) Approve(ctx context.Context, req wallet.Request) (bool, error) {
	reply := make(chan bool, 1)
	select {
	case a.requests <- approvalRequest{req: req, reply: reply}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (a *Approver) listen() tea.Cmd {
	return func() tea.Msg {
		return <-a.requests
	}
}

var _ wallet.Approver = (*Approver)(nil)
