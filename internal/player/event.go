package player

import "fmt"

// State is the playback state reported by a driver, after translation from
// the driver's numeric codes.
type State int

const (
	StateUnstarted State = iota
	StateEnded
	StatePlaying
	StatePaused
	StateBuffering
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Numeric state codes used on the driver side of the contract.
const (
	CodeUnstarted = -1
	CodeEnded     = 0
	CodePlaying   = 1
	CodePaused    = 2
	CodeBuffering = 3
	CodeCued      = 5
)

// TranslateCode maps a driver state code to a State. Unknown codes
// report ok=false and are dropped by the adapter.
func TranslateCode(code int) (State, bool) {
	switch code {
	case CodeUnstarted, CodeCued:
		return StateUnstarted, true
	case CodeEnded:
		return StateEnded, true
	case CodePlaying:
		return StatePlaying, true
	case CodePaused:
		return StatePaused, true
	case CodeBuffering:
		return StateBuffering, true
	default:
		return StateUnstarted, false
	}
}

// EventKind distinguishes the three callback families of a driver.
type EventKind int

const (
	EventReady EventKind = iota
	EventStateChange
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventStateChange:
		return "state_change"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is what the adapter reports to its Sink.
type Event struct {
	Session  uint64 // generation of the adapter that produced the event
	Kind     EventKind
	State    State  // set for EventStateChange
	MediaRef string // media the event refers to, empty for EventReady
	Err      error  // set for EventError
}

// Sink receives adapter events. Post must not block.
type Sink interface {
	Post(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Post(ev Event) { f(ev) }
