package telemetry

// Emitter delivers telemetry. Emit calls must not block the caller.
type Emitter interface {
	EmitListener(playlistID int64)
	EmitListen(trackID int64)
}

// Gate decides which telemetry a session emits: the playlist listener at
// most once, and a track listen only when the playing track differs from the
// last one counted.
//
// A Gate belongs to one session and is not safe for concurrent use; the
// session's event loop is its only caller.
type Gate struct {
	emitter Emitter

	listenerRecorded bool
	lastCounted      int64
	hasLastCounted   bool
	listens          int
}

// NewGate returns a gate that emits through e.
func NewGate(e Emitter) *Gate {
	return &Gate{emitter: e}
}

// RecordListenerOnce emits the listener call for playlistID the first time
// it is called and reports whether it did.
func (g *Gate) RecordListenerOnce(playlistID int64) bool {
	if g.listenerRecorded {
		return false
	}
	g.listenerRecorded = true
	g.emitter.EmitListener(playlistID)
	return true
}

// RecordTrackListen emits a listen unless trackID was the last track
// counted. Pause and resume of the same track therefore count once, while
// A, B, A counts A twice.
func (g *Gate) RecordTrackListen(trackID int64) bool {
	if g.hasLastCounted && g.lastCounted == trackID {
		return false
	}
	g.lastCounted = trackID
	g.hasLastCounted = true
	g.listens++
	g.emitter.EmitListen(trackID)
	return true
}

// ListenerRecorded reports whether the listener call was emitted.
func (g *Gate) ListenerRecorded() bool {
	return g.listenerRecorded
}

// LastCounted returns the last track a listen was emitted for.
func (g *Gate) LastCounted() (int64, bool) {
	return g.lastCounted, g.hasLastCounted
}

// Listens returns the number of listens emitted.
func (g *Gate) Listens() int {
	return g.listens
}
