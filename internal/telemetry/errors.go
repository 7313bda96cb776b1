package telemetry

import "fmt"

// Kind identifies a telemetry call.
type Kind string

const (
	KindListener Kind = "listener" // playlist listener, once per session
	KindListen   Kind = "listen"   // track listen, deduplicated
)

// TelemetryError reports a failed telemetry call. It is logged and journaled
// but never surfaced to the session or retried.
type TelemetryError struct {
	Kind Kind
	ID   int64 // playlist id for listener calls, track id for listens
	Err  error
}

func (e *TelemetryError) Error() string {
	return fmt.Sprintf("failed to record %s for %d: %v", e.Kind, e.ID, e.Err)
}

func (e *TelemetryError) Unwrap() error {
	return e.Err
}
