package player

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// callbackLog records driver callbacks as "state:<code>:<ref>" and
// "err:<code>:<ref>"
type callbackLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callbackLog) callbacks() Callbacks {
	return Callbacks{
		OnReady: func() {},
		OnStateChange: func(code int, ref string) {
			l.add(fmt.Sprintf("state:%d:%s", code, ref))
		},
		OnError: func(code int, ref string) {
			l.add(fmt.Sprintf("err:%d:%s", code, ref))
		},
	}
}

func (l *callbackLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callbackLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// newPipeDriver returns an mpv driver whose commands go to a discarded pipe
func newPipeDriver(t *testing.T) (*mpvDriver, *callbackLog) {
	t.Helper()

	client, server := net.Pipe()
	go func() { _, _ = io.Copy(io.Discard, server) }()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	log := &callbackLog{}
	d := &mpvDriver{
		conn:    client,
		cb:      log.callbacks(),
		logger:  zerolog.Nop(),
		done:    make(chan struct{}),
		loads:   map[int64]string{},
		entries: map[int64]string{},
	}
	return d, log
}

func handleLine(t *testing.T, d *mpvDriver, line string) {
	t.Helper()

	var msg mpvMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", line, err)
	}
	d.handle(msg)
}

// loadRequestID returns the request id of the loadfile command for ref
func loadRequestID(t *testing.T, d *mpvDriver, ref string) int64 {
	t.Helper()

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, r := range d.loads {
		if r == ref {
			return id
		}
	}
	t.Fatalf("no loadfile request for %q", ref)
	return 0
}

func TestMediaURL(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://example.com/a.mp3", "https://example.com/a.mp3"},
		{"/music/a.flac", "/music/a.flac"},
		{"./a.ogg", "./a.ogg"},
	}

	for _, tt := range tests {
		if got := mediaURL(tt.ref); got != tt.want {
			t.Errorf("mediaURL(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestTranslateMPV(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCode int
		wantErr  bool
		wantOK   bool
	}{
		{name: "start", line: `{"event":"start-file"}`, wantCode: CodeBuffering, wantOK: true},
		{name: "loaded", line: `{"event":"file-loaded"}`, wantCode: CodePlaying, wantOK: true},
		{name: "eof", line: `{"event":"end-file","reason":"eof"}`, wantCode: CodeEnded, wantOK: true},
		{name: "load error", line: `{"event":"end-file","reason":"error","file_error":"loading failed"}`, wantCode: mpvErrLoadFailed, wantErr: true, wantOK: true},
		{name: "replaced", line: `{"event":"end-file","reason":"stop"}`},
		{name: "paused", line: `{"event":"property-change","id":1,"name":"pause","data":true}`, wantCode: CodePaused, wantOK: true},
		{name: "unpaused", line: `{"event":"property-change","id":1,"name":"pause","data":false}`, wantCode: CodePlaying, wantOK: true},
		{name: "other property", line: `{"event":"property-change","id":2,"name":"volume","data":50}`},
		{name: "unknown", line: `{"event":"seek"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg mpvMessage
			if err := json.Unmarshal([]byte(tt.line), &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			code, isErr, ok := translateMPV(msg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if code != tt.wantCode || isErr != tt.wantErr {
				t.Errorf("got (%d, %v), want (%d, %v)", code, isErr, tt.wantCode, tt.wantErr)
			}
		})
	}
}

func TestMPVCommandEncoding(t *testing.T) {
	line, err := json.Marshal(mpvCommand{Command: []any{"loadfile", "https://x", "replace"}, RequestID: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"command":["loadfile","https://x","replace"],"request_id":3}`
	if string(line) != want {
		t.Errorf("got %s, want %s", line, want)
	}
}

func TestMPVDriverTagsEventsWithTheirFile(t *testing.T) {
	d, log := newPipeDriver(t)

	if err := d.LoadMedia("ref-a"); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if err := d.LoadMedia("ref-b"); err != nil {
		t.Fatalf("load b: %v", err)
	}

	// A fails to open after B was already requested
	handleLine(t, d, `{"event":"start-file","playlist_entry_id":1}`)
	handleLine(t, d, `{"event":"end-file","reason":"error","playlist_entry_id":1,"file_error":"loading failed"}`)
	handleLine(t, d, `{"event":"start-file","playlist_entry_id":2}`)
	handleLine(t, d, `{"event":"file-loaded"}`)
	handleLine(t, d, `{"event":"property-change","id":1,"name":"pause","data":true}`)

	want := []string{
		"state:3:ref-a",
		"err:100:ref-a",
		"state:3:ref-b",
		"state:1:ref-b",
		"state:2:ref-b",
	}
	if got := log.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("callbacks = %v, want %v", got, want)
	}
}

func TestMPVDriverLateEndFileKeepsOwner(t *testing.T) {
	d, log := newPipeDriver(t)

	if err := d.LoadMedia("ref-a"); err != nil {
		t.Fatalf("load a: %v", err)
	}
	handleLine(t, d, `{"event":"start-file","playlist_entry_id":1}`)
	if err := d.LoadMedia("ref-b"); err != nil {
		t.Fatalf("load b: %v", err)
	}
	handleLine(t, d, `{"event":"start-file","playlist_entry_id":2}`)
	handleLine(t, d, `{"event":"end-file","reason":"eof","playlist_entry_id":1}`)

	want := []string{"state:3:ref-a", "state:3:ref-b", "state:0:ref-a"}
	if got := log.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("callbacks = %v, want %v", got, want)
	}
}

func TestMPVDriverDropsEventsBeforeAnyStart(t *testing.T) {
	d, log := newPipeDriver(t)

	if err := d.LoadMedia("ref-a"); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if err := d.LoadMedia("ref-b"); err != nil {
		t.Fatalf("load b: %v", err)
	}
	handleLine(t, d, `{"event":"end-file","reason":"error"}`)
	handleLine(t, d, `{"event":"file-loaded"}`)

	if got := log.Calls(); len(got) != 0 {
		t.Errorf("expected no callbacks, got %v", got)
	}
}

func TestMPVDriverRejectedLoad(t *testing.T) {
	d, log := newPipeDriver(t)

	if err := d.LoadMedia("ref-a"); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if err := d.LoadMedia("ref-b"); err != nil {
		t.Fatalf("load b: %v", err)
	}

	idA := loadRequestID(t, d, "ref-a")
	handleLine(t, d, fmt.Sprintf(`{"request_id":%d,"error":"invalid parameter"}`, idA))
	handleLine(t, d, `{"event":"start-file","playlist_entry_id":1}`)

	want := []string{"err:100:ref-a", "state:3:ref-b"}
	if got := log.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("callbacks = %v, want %v", got, want)
	}
}
