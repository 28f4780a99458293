package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/memeswap/internal/events"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// EventMsg wraps a bus event for the tea loop.
type EventMsg struct {
	Event events.Event
}

type quoteDoneMsg struct {
	seq   int
	quote *swap.Quote
	err   error
}

type tradeDoneMsg struct {
	result *swap.Result
	err    error
}

type switchedMsg struct {
	pair swap.Pair
	err  error
}

// ListenBus returns a tea.Cmd that waits for the next bus event. A closed
// channel ends listening.
func ListenBus(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg{Event: e}
	}
}
