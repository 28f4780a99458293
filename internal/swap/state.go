// internal/swap/state.go
package swap

import "fmt"

// State is the orchestrator's control state for one trade attempt.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateSigning
	StateSubmitting
	StateConfirming
	StateFeeProcessing
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateSigning:
		return "signing"
	case StateSubmitting:
		return "submitting"
	case StateConfirming:
		return "confirming"
	case StateFeeProcessing:
		return "fee_processing"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the attempt has finished.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// Startable reports whether a new attempt may begin from this state.
func (s State) Startable() bool {
	return s == StateIdle || s.Terminal()
}

// Status is the orchestrator state plus the reason when it is StateError.
type Status struct {
	State  State
	Reason ErrorKind
	Err    error
}

func (s Status) String() string {
	if s.State == StateError {
		return fmt.Sprintf("error(%s)", s.Reason)
	}
	return s.State.String()
}

// Describe is the user facing text for the status.
func (s Status) Describe() string {
	switch s.State {
	case StateIdle:
		return "Ready to trade."
	case StatePreparing:
		return "Getting the best price and checking your balance..."
	case StateSigning:
		return "Waiting for your wallet to approve..."
	case StateSubmitting:
		return "Sending the transaction..."
	case StateConfirming:
		return "Waiting for network confirmation..."
	case StateFeeProcessing:
		return "Finishing up..."
	case StateSuccess:
		return "Swap complete."
	default:
		return s.Reason.Describe()
	}
}
