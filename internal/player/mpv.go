package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	mpvDialTimeout = 5 * time.Second
	mpvQuitTimeout = 2 * time.Second

	// Error codes reported through OnError by the mpv driver.
	mpvErrLoadFailed = 100
	mpvErrExited     = 5

	youtubeWatchURL = "https://www.youtube.com/watch?v="
)

var mpvSockets atomic.Uint64

// MPVBackend returns a backend that plays media through an mpv process
// controlled over its JSON IPC socket.
func MPVBackend(path string, logger zerolog.Logger) Backend {
	logger = logger.With().Str("component", "mpv").Logger()
	return Backend{
		Name: "mpv",
		Prepare: func() error {
			if _, err := exec.LookPath(path); err != nil {
				return fmt.Errorf("mpv not found: %w", err)
			}
			return nil
		},
		New: func(ctx context.Context, cfg DriverConfig, cb Callbacks) (Driver, error) {
			return startMPV(ctx, path, cfg, cb, logger)
		},
	}
}

// mediaURL turns a media ref into something mpv can open. Bare refs are
// treated as YouTube video ids.
func mediaURL(ref string) string {
	if strings.Contains(ref, "://") || filepath.IsAbs(ref) || strings.HasPrefix(ref, "./") {
		return ref
	}
	return youtubeWatchURL + ref
}

// mpvMessage is one line read from the IPC socket: either an event or a
// reply to a command.
type mpvMessage struct {
	Event     string          `json:"event,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID int64           `json:"request_id,omitempty"`
	EntryID   int64           `json:"playlist_entry_id,omitempty"`
}

type mpvCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type mpvDriver struct {
	cmd    *exec.Cmd
	conn   net.Conn
	socket string
	cb     Callbacks
	logger zerolog.Logger
	done   chan struct{}

	mu         sync.Mutex
	ref        string           // most recently requested media
	started    bool             // some media has been loaded
	playing    string           // media of the file mpv last started
	fileLoaded bool             // the playing file finished loading
	queued     []string         // loadfile requests not yet started, oldest first
	loads      map[int64]string // loadfile request id -> media
	entries    map[int64]string // mpv playlist entry id -> media
	nextID     int64
	closed     bool
}

func startMPV(ctx context.Context, path string, cfg DriverConfig, cb Callbacks, logger zerolog.Logger) (*mpvDriver, error) {
	container := cfg.Container
	if container == "" {
		container = "playlister"
	}
	socket := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d-%d.sock", container, os.Getpid(), mpvSockets.Add(1)))

	cmd := exec.Command(path,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--title="+container,
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}

	conn, err := dialMPV(ctx, socket)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	d := &mpvDriver{
		cmd:     cmd,
		conn:    conn,
		socket:  socket,
		cb:      cb,
		logger:  logger,
		done:    make(chan struct{}),
		ref:     cfg.InitialRef,
		loads:   map[int64]string{},
		entries: map[int64]string{},
	}

	if _, err := d.send("observe_property", 1, "pause"); err != nil {
		_ = conn.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		_ = os.Remove(socket)
		return nil, fmt.Errorf("failed to observe pause: %w", err)
	}

	go d.readLoop()
	return d, nil
}

// dialMPV waits for mpv to create its socket.
func dialMPV(ctx context.Context, socket string) (net.Conn, error) {
	deadline := time.Now().Add(mpvDialTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", socket, time.Second)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("mpv socket not available: %w", lastErr)
}

func (d *mpvDriver) send(args ...any) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrDestroyed
	}
	return d.sendLocked(args...)
}

// sendLocked writes one command and returns its request id.
func (d *mpvDriver) sendLocked(args ...any) (int64, error) {
	d.nextID++
	id := d.nextID
	line, err := json.Marshal(mpvCommand{Command: args, RequestID: id})
	if err != nil {
		return 0, fmt.Errorf("failed to encode mpv command: %w", err)
	}
	line = append(line, '\n')
	if _, err := d.conn.Write(line); err != nil {
		return 0, fmt.Errorf("failed to write mpv command: %w", err)
	}
	return id, nil
}

func (d *mpvDriver) Play() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	if !d.started {
		ref := d.ref
		d.mu.Unlock()
		return d.LoadMedia(ref)
	}
	defer d.mu.Unlock()
	_, err := d.sendLocked("set_property", "pause", false)
	return err
}

func (d *mpvDriver) Pause() error {
	_, err := d.send("set_property", "pause", true)
	return err
}

func (d *mpvDriver) LoadMedia(ref string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	d.ref = ref
	d.started = true
	d.fileLoaded = false
	if ref == "" {
		d.mu.Unlock()
		d.cb.OnError(mpvErrLoadFailed, ref)
		return nil
	}
	defer d.mu.Unlock()

	if _, err := d.sendLocked("set_property", "pause", false); err != nil {
		return err
	}
	d.logger.Debug().Str("media", ref).Msg("Loading")
	id, err := d.sendLocked("loadfile", mediaURL(ref), "replace")
	if err != nil {
		return err
	}
	d.loads[id] = ref
	d.queued = append(d.queued, ref)
	return nil
}

func (d *mpvDriver) Destroy() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	_, _ = d.sendLocked("quit")
	d.closed = true
	d.mu.Unlock()

	_ = d.conn.Close()

	exited := make(chan struct{})
	go func() {
		_ = d.cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(mpvQuitTimeout):
		_ = d.cmd.Process.Kill()
		<-exited
	}
	<-d.done
	_ = os.Remove(d.socket)
	return nil
}

func (d *mpvDriver) readLoop() {
	defer close(d.done)

	d.cb.OnReady()

	scanner := bufio.NewScanner(d.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg mpvMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			d.logger.Debug().Err(err).Msg("Skipping malformed mpv message")
			continue
		}
		d.handle(msg)
	}

	d.mu.Lock()
	closed, ref := d.closed, d.ref
	d.mu.Unlock()
	if !closed {
		d.logger.Error().Err(scanner.Err()).Msg("mpv connection lost")
		d.cb.OnError(mpvErrExited, ref)
	}
}

// handle dispatches one IPC message. Events are tagged with the media of
// the file they belong to, not the latest request, so the adapter can drop
// events from files that were since replaced.
func (d *mpvDriver) handle(msg mpvMessage) {
	if msg.Event == "" {
		d.handleReply(msg)
		return
	}

	d.mu.Lock()
	var ref string
	switch msg.Event {
	case "start-file":
		if len(d.queued) > 0 {
			d.playing = d.queued[0]
			d.queued = d.queued[1:]
		}
		d.fileLoaded = false
		if msg.EntryID > 0 {
			d.entries[msg.EntryID] = d.playing
		}
		ref = d.playing
	case "file-loaded":
		d.fileLoaded = true
		ref = d.playing
	case "end-file":
		ref = d.playing
		if owner, ok := d.entries[msg.EntryID]; ok {
			ref = owner
			delete(d.entries, msg.EntryID)
		}
		if ref == d.playing {
			d.fileLoaded = false
		}
	case "property-change":
		if !d.fileLoaded {
			d.mu.Unlock()
			return
		}
		ref = d.playing
	default:
		ref = d.playing
	}
	d.mu.Unlock()

	// Nothing we asked for has started, so the event is not ours
	if ref == "" {
		d.logger.Debug().Str("event", msg.Event).Msg("Dropping mpv event for unknown file")
		return
	}

	code, isErr, ok := translateMPV(msg)
	if !ok {
		return
	}
	if isErr {
		d.logger.Warn().Str("media", ref).Str("file_error", msg.FileError).Msg("mpv failed to play media")
		d.cb.OnError(code, ref)
		return
	}
	d.cb.OnStateChange(code, ref)
}

// handleReply reports loadfile commands that mpv rejected. A rejected load
// never produces start-file, so it is also removed from the queue.
func (d *mpvDriver) handleReply(msg mpvMessage) {
	d.mu.Lock()
	ref, isLoad := d.loads[msg.RequestID]
	delete(d.loads, msg.RequestID)
	failed := msg.Error != "" && msg.Error != "success"
	if isLoad && failed {
		for i, q := range d.queued {
			if q == ref {
				d.queued = append(d.queued[:i], d.queued[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()

	if !failed {
		return
	}
	d.logger.Debug().Int64("request_id", msg.RequestID).Str("error", msg.Error).Msg("mpv command failed")
	if isLoad {
		d.cb.OnError(mpvErrLoadFailed, ref)
	}
}

// translateMPV maps an mpv event onto the numeric state codes of the driver
// contract. isErr marks codes that belong to OnError.
func translateMPV(msg mpvMessage) (code int, isErr bool, ok bool) {
	switch msg.Event {
	case "start-file":
		return CodeBuffering, false, true
	case "file-loaded":
		return CodePlaying, false, true
	case "end-file":
		switch msg.Reason {
		case "eof":
			return CodeEnded, false, true
		case "error":
			return mpvErrLoadFailed, true, true
		}
	case "property-change":
		if msg.Name != "pause" {
			return 0, false, false
		}
		var paused bool
		if err := json.Unmarshal(msg.Data, &paused); err != nil {
			return 0, false, false
		}
		if paused {
			return CodePaused, false, true
		}
		return CodePlaying, false, true
	}
	return 0, false, false
}
