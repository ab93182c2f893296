package client

// State is the lifecycle position of an exchange.
type State int32

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateToolDispatch
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateToolDispatch:
		return "tool_dispatch"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

type EventKind int

const (
	EventText EventKind = iota
	EventComplete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is what a caller observes from an exchange: text chunks followed by
// exactly one complete or error event.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}
