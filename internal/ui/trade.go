package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/memeswap/internal/events"
	"github.com/rovshanmuradov/memeswap/internal/logger"
	"github.com/rovshanmuradov/memeswap/internal/swap"
	"github.com/rovshanmuradov/memeswap/internal/ui/style"
)

// Trader is the part of a trade session the screen drives.
type Trader interface {
	Quote(ctx context.Context, amount decimal.Decimal) (*swap.Quote, error)
	Trade(ctx context.Context, amount decimal.Decimal) (*swap.Result, error)
	SwitchDirection(ctx context.Context) (swap.Pair, error)
	Pair() swap.Pair
	Reset() bool
}

// TradeModel is the single trade screen: amount form, live quote and
// balance, attempt progress and the transaction list.
type TradeModel struct {
	ctx    context.Context
	trader Trader
	events <-chan events.Event
	logs   *logger.Buffer

	approver *Approver
	pending  *approvalRequest

	keys    KeyMap
	help    help.Model
	input   textinput.Model
	spinner spinner.Model
	styles  style.Styles

	pair       swap.Pair
	quote      *swap.Quote
	quoteStale bool
	quoteErr   error
	quoteSeq   int
	balance    *swap.BalanceSnapshot

	busy     bool
	status   swap.Status
	handles  []swap.Handle
	records  map[swap.Handle]swap.TxRecord
	waiting  time.Duration
	result   *swap.Result
	err      error
	showLogs bool

	width int
}

// NewTradeModel creates the screen. ev is usually fed by events.Forward on
// the session bus; logs may be nil.
func NewTradeModel(ctx context.Context, trader Trader, ev <-chan events.Event, logs *logger.Buffer) TradeModel {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.Prompt = ""
	ti.CharLimit = 32
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return TradeModel{
		ctx:      ctx,
		trader:   trader,
		events:   ev,
		logs:     logs,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		input:    ti,
		spinner:  sp,
		styles:   style.DefaultStyles(),
		pair:     trader.Pair(),
		records:  make(map[swap.Handle]swap.TxRecord),
		showLogs: logs != nil,
	}
}

// WithApprover routes wallet approval prompts through the screen.
func (m TradeModel) WithApprover(a *Approver) TradeModel {
	m.approver = a
	return m
}

func (m TradeModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, ListenBus(m.events)}
	if m.approver != nil {
		cmds = append(cmds, m.approver.listen())
	}
	return tea.Batch(cmds...)
}

func (m TradeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.applyEvent(msg.Event)
		return m, ListenBus(m.events)

	case approvalRequest:
		m.pending = &msg
		return m, nil

	case quoteDoneMsg:
		if msg.seq != m.quoteSeq || errors.Is(msg.err, swap.ErrSuperseded) {
			return m, nil
		}
		if msg.err != nil {
			m.quoteErr = msg.err
			m.quoteStale = m.quote != nil
			return m, nil
		}
		m.quote, m.quoteStale, m.quoteErr = msg.quote, false, nil
		return m, nil

	case tradeDoneMsg:
		m.busy = false
		m.waiting = 0
		m.result, m.err = msg.result, msg.err
		if msg.result != nil {
			m.status = msg.result.Status
			m.setRecords(msg.result.Records)
		}
		return m, nil

	case switchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.pair = msg.pair
		m.quote, m.quoteErr, m.quoteStale = nil, nil, false
		m.balance = nil
		return m, m.requestQuote()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m TradeModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pending != nil {
		return m.answer(msg)
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs && m.logs != nil
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Switch):
		if m.busy {
			return m, nil
		}
		return m, m.switchDirection()
	case key.Matches(msg, m.keys.Reset):
		if !m.busy && m.trader.Reset() {
			m.clearAttempt()
			m.status = swap.Status{State: swap.StateIdle}
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		return m, tea.Batch(cmd, m.requestQuote())
	}
	return m, cmd
}

func (m TradeModel) answer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var ok bool
	switch msg.String() {
	case "y", "Y":
		ok = true
	case "n", "N", "esc":
	case "ctrl+c":
		m.pending.reply <- false
		return m, tea.Quit
	default:
		return m, nil
	}
	m.pending.reply <- ok
	m.pending = nil
	return m, m.approver.listen()
}

func (m TradeModel) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	amount, err := swap.ParseAmount(m.input.Value())
	if err != nil {
		m.err = err
		return m, nil
	}
	m.clearAttempt()
	m.busy = true
	m.status = swap.Status{State: swap.StatePreparing}

	ctx, trader := m.ctx, m.trader
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := trader.Trade(ctx, amount)
		return tradeDoneMsg{result: res, err: err}
	})
}

func (m *TradeModel) requestQuote() tea.Cmd {
	m.quoteSeq++
	amount, err := swap.ParseAmount(m.input.Value())
	if err != nil || !amount.IsPositive() {
		m.quote, m.quoteErr, m.quoteStale = nil, nil, false
		return nil
	}
	if m.quote != nil {
		units, err := swap.ToSmallestUnit(amount, m.pair.Input.Decimals)
		m.quoteStale = m.quoteStale || err != nil || !m.quote.Matches(m.pair, units)
	}
	seq, ctx, trader := m.quoteSeq, m.ctx, m.trader
	return func() tea.Msg {
		q, err := trader.Quote(ctx, amount)
		return quoteDoneMsg{seq: seq, quote: q, err: err}
	}
}

func (m TradeModel) switchDirection() tea.Cmd {
	ctx, trader := m.ctx, m.trader
	return func() tea.Msg {
		pair, err := trader.SwitchDirection(ctx)
		return switchedMsg{pair: pair, err: err}
	}
}

func (m *TradeModel) applyEvent(e events.Event) {
	switch ev := e.(type) {
	case events.StateChangedEvent:
		m.status = ev.Status
		if ev.Status.State != swap.StateSigning {
			m.waiting = 0
		}
	case events.RecordChangedEvent:
		if _, ok := m.records[ev.Handle]; !ok {
			m.handles = append(m.handles, ev.Handle)
		}
		m.records[ev.Handle] = ev.Record
	case events.SigningPendingEvent:
		m.waiting = ev.Waited
	case events.BalanceUpdatedEvent:
		snap := ev.Snapshot
		m.balance = &snap
	}
}

func (m *TradeModel) clearAttempt() {
	m.result, m.err = nil, nil
	m.handles = nil
	m.records = make(map[swap.Handle]swap.TxRecord)
	m.waiting = 0
}

func (m *TradeModel) setRecords(recs []swap.TxRecord) {
	m.handles = m.handles[:0]
	m.records = make(map[swap.Handle]swap.TxRecord, len(recs))
	for i, r := range recs {
		m.handles = append(m.handles, swap.Handle(i))
		m.records[swap.Handle(i)] = r
	}
}

func (m TradeModel) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render(fmt.Sprintf("memeswap  %s → %s", m.pair.Input, m.pair.Output)))
	b.WriteString("\n\n")

	b.WriteString(s.Label.Render("Balance") + s.Value.Render(m.balanceLine()) + "\n")
	b.WriteString(s.Label.Render("You pay") + m.input.View() + " " + s.Muted.Render(m.pair.Input.String()) + "\n")
	b.WriteString(s.Label.Render("You get") + m.quoteLine() + "\n\n")

	b.WriteString(s.Box.Render(m.progressView()))
	b.WriteString("\n")

	if m.showLogs && m.logs != nil {
		b.WriteString(m.logsView())
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m TradeModel) balanceLine() string {
	if m.balance == nil {
		return "…"
	}
	line := m.balance.NativeBalance.StringFixed(4) + " SOL"
	if m.balance.TokenMint != "" {
		line += "  " + m.balance.TokenBalance.String() + " " + m.pair.Input.String()
	}
	return line
}

func (m TradeModel) quoteLine() string {
	s := m.styles
	if m.quote == nil {
		if m.quoteErr != nil {
			return s.Error.Render(swap.KindOf(m.quoteErr).Describe())
		}
		return s.Muted.Render("enter an amount")
	}
	line := s.Value.Render(m.quote.OutputDecimal().String()+" "+m.pair.Output.String()) +
		s.Muted.Render(fmt.Sprintf("  impact %s%%  %d hop(s)", m.quote.PriceImpact.StringFixed(2), m.quote.RouteHops))
	if m.quoteStale {
		line += " " + s.Warning.Render("(stale)")
	}
	return line
}

func (m TradeModel) progressView() string {
	s := m.styles
	var b strings.Builder

	state := m.status.State.String()
	switch {
	case m.pending != nil:
		b.WriteString(s.Highlight.Render("Sign transaction? [y/n]") + "\n" + s.Muted.Render(m.pending.req.String()))
	case m.busy:
		b.WriteString(m.spinner.View() + " " + s.Info.Render(state))
		if m.waiting > 0 {
			b.WriteString(s.Warning.Render(fmt.Sprintf("  waiting for wallet approval (%s)", m.waiting.Round(time.Second))))
		}
	case m.status.State == swap.StateSuccess:
		b.WriteString(s.Success.Render("✓ swap complete"))
	case m.status.State == swap.StateError:
		b.WriteString(s.Error.Render("✗ " + m.status.Describe()))
	default:
		b.WriteString(s.Muted.Render(state))
	}
	if m.err != nil && m.status.State != swap.StateError {
		st := s.Error
		if !swap.KindOf(m.err).IsFatal() {
			st = s.Warning
		}
		b.WriteString("\n" + st.Render(m.err.Error()))
	}
	if m.result != nil {
		for _, k := range m.result.Degraded {
			b.WriteString("\n" + s.Warning.Render("! "+k.Describe()))
		}
		if !m.result.Fee.FeeAmountInNative.IsZero() {
			b.WriteString("\n" + s.Muted.Render("fee "+swap.FloorToDecimals(m.result.Fee.FeeAmountInNative, swap.NativeDecimals).String()+" SOL"))
		}
	}

	for _, h := range m.handles {
		r := m.records[h]
		sig := r.Signature
		if sig == "" {
			sig = "-"
		}
		line := fmt.Sprintf("%-12s %-10s %-24s %s", r.Kind, r.Status, r.AmountDescription, logger.ShortenSignature(sig))
		b.WriteString("\n" + m.recordStyle(r.Status).Render(line))
	}
	return b.String()
}

func (m TradeModel) recordStyle(st swap.TxStatus) lipgloss.Style {
	switch st {
	case swap.TxConfirmed:
		return m.styles.Success
	case swap.TxFailed:
		return m.styles.Error
	case swap.TxSubmitted:
		return m.styles.Info
	default:
		return m.styles.Muted
	}
}

func (m TradeModel) logsView() string {
	s := m.styles
	entries := m.logs.Recent(5)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lvl := s.Muted
		switch e.Level {
		case "ERROR", "DPANIC", "PANIC", "FATAL":
			lvl = s.Error
		case "WARN":
			lvl = s.Warning
		case "INFO":
			lvl = s.Info
		}
		lines = append(lines, s.Muted.Render(e.Time.Format("15:04:05"))+" "+lvl.Render(fmt.Sprintf("%-5s", e.Level))+" "+e.Message)
	}
	if len(lines) == 0 {
		lines = append(lines, s.Muted.Render("no logs yet"))
	}
	return s.LogsBox.Render(strings.Join(lines, "\n"))
}
