package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

type approveResult struct {
	ok  bool
	err error
}

func startApproval(a *Approver) <-chan approveResult {
	out := make(chan approveResult, 1)
	go func() {
		ok, err := a.Approve(context.Background(), wallet.Request{FeePayer: "Payer", Instructions: 2, Programs: []string{"Jup"}})
		out <- approveResult{ok, err}
	}()
	return out
}

func TestApproverAnsweredOnScreen(t *testing.T) {
	for _, tc := range []struct {
		key  tea.KeyMsg
		want bool
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, true},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, false},
		{tea.KeyMsg{Type: tea.KeyEsc}, false},
	} {
		t.Run(tc.key.String(), func(t *testing.T) {
			a := NewApprover()
			m := newModel(t, &fakeTrader{}, nil).WithApprover(a)
			res := startApproval(a)

			m, _ = update(t, m, a.listen()())
			require.NotNil(t, m.pending)
			assert.Contains(t, m.View(), "Sign transaction?")
			assert.Contains(t, m.View(), "fee payer Payer")

			m, cmd := update(t, m, tc.key)
			assert.Nil(t, m.pending)
			assert.NotNil(t, cmd)

			select {
			case r := <-res:
				require.NoError(t, r.err)
				assert.Equal(t, tc.want, r.ok)
			case <-time.After(time.Second):
				t.Fatal("approval not answered")
			}
		})
	}
}

func TestApproverIgnoresOtherKeys(t *testing.T) {
	a := NewApprover()
	m := newModel(t, &fakeTrader{}, nil).WithApprover(a)
	res := startApproval(a)

	m, _ = update(t, m, a.listen()())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("5")})
	require.NotNil(t, m.pending)
	assert.Empty(t, m.input.Value())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.True(t, (<-res).ok)
}

func TestApproverContextCancelled(t *testing.T) {
	a := NewApprover()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := a.Approve(ctx, wallet.Request{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
