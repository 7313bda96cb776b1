package playback

// Action is the outcome of a natural track end
type Action int

const (
	Advance Action = iota // load Resolution.Index and keep playing
	Stop                  // stay on the current track, paused
)

func (a Action) String() string {
	if a == Stop {
		return "stop"
	}
	return "advance"
}

// Resolution tells the machine what to do when a track ends
type Resolution struct {
	Action Action
	Index  int
}

// ResolveNext decides what follows a natural end of the track at current.
// The last track wraps to the first only with repeat on. length must be
// positive.
func ResolveNext(current, length int, repeat bool) Resolution {
	if length <= 0 {
		panic("playback: ResolveNext on empty track list")
	}
	if current >= length-1 {
		if repeat {
			return Resolution{Action: Advance, Index: 0}
		}
		return Resolution{Action: Stop, Index: current}
	}
	return Resolution{Action: Advance, Index: current + 1}
}

// WrapNext returns the index after i, wrapping to 0. Manual navigation
// always wraps, independent of repeat.
func WrapNext(i, n int) int {
	return (i + 1) % n
}

// WrapPrevious returns the index before i, wrapping to n-1.
func WrapPrevious(i, n int) int {
	return (i - 1 + n) % n
}
