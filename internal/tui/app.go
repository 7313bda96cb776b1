package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/Max-Kushnir/playlister/internal/playback"
	"github.com/Max-Kushnir/playlister/internal/tracklist"
)

const trackTitleWidth = 48

// Controls is the session surface the TUI drives
type Controls interface {
	TogglePlayPause() error
	Next() error
	Previous() error
	SelectTrack(i int) error
	SetRepeat(on bool) error
	Snapshot() playback.Snapshot
}

// App is the TUI for a playback session
type App struct {
	app        *tview.Application
	header     *tview.TextView
	tracks     *tview.Table
	nowPlaying *tview.TextView
	status     *tview.TextView
	footer     *tview.TextView

	controls Controls

	// mu guards the fields below, shared by the update goroutine and the
	// tview event goroutine
	mu           sync.Mutex
	sessionStart time.Time
	commandErr   error

	// Last-rendered content for change detection
	lastHeader     string
	lastNowPlaying string
	lastStatus     string
	lastTracks     string

	cancelFunc context.CancelFunc
}

// New creates a TUI bound to a session
func New(controls Controls) *App {
	a := &App{
		app:          tview.NewApplication(),
		controls:     controls,
		sessionStart: time.Now(),
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	a.tracks = tview.NewTable().
		SetSelectable(true, false)
	a.tracks.SetBorder(true).
		SetTitle(" Tracks ").
		SetTitleAlign(tview.AlignLeft)
	a.tracks.SetSelectedFunc(func(row, _ int) {
		a.runCommand(func() error { return a.controls.SelectTrack(row) })
	})

	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.status.SetBorder(true).
		SetTitle(" Session ").
		SetTitleAlign(tview.AlignLeft)

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  n:next  p:prev  r:repeat  enter:play selected[-]")

	// Left: track list. Right: now playing over session status.
	side := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 2, false).
		AddItem(a.status, 7, 1, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.tracks, 0, 3, true).
		AddItem(side, 0, 2, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 1, false).
		AddItem(body, 0, 1, true).
		AddItem(a.footer, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true).SetFocus(a.tracks)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case ' ':
		a.runCommand(a.controls.TogglePlayPause)
		return nil
	case 'n', 'N':
		a.runCommand(a.controls.Next)
		return nil
	case 'p', 'P':
		a.runCommand(a.controls.Previous)
		return nil
	case 'r', 'R':
		repeat := !a.controls.Snapshot().Repeat
		a.runCommand(func() error { return a.controls.SetRepeat(repeat) })
		return nil
	}
	return event
}

// runCommand executes a session command and remembers user-facing failures
func (a *App) runCommand(fn func() error) {
	err := fn()
	if errors.Is(err, playback.ErrNotPlayable) {
		err = nil
	}
	a.mu.Lock()
	a.commandErr = err
	a.mu.Unlock()
}

// Run starts the TUI and renders every snapshot received on updates. It
// returns when the user quits, ctx is done, or the session closes.
func (a *App) Run(ctx context.Context, updates <-chan playback.Snapshot) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	go a.handleUpdates(ctx, updates)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// handleUpdates redraws on snapshot updates and on a slow ticker so the
// session clock keeps moving
func (a *App) handleUpdates(ctx context.Context, updates <-chan playback.Snapshot) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	snap := a.controls.Snapshot()
	a.refresh(snap)

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case s, ok := <-updates:
			if !ok {
				a.app.Stop()
				return
			}
			snap = s
			a.refresh(snap)
			if snap.Closed {
				a.app.Stop()
				return
			}
		case <-ticker.C:
			a.refresh(snap)
		}
	}
}

// refresh updates all UI components
func (a *App) refresh(snap playback.Snapshot) {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateHeader(snap)
		a.updateTracks(snap)
		a.updateNowPlaying(snap)
		a.updateStatus(snap)
	})
}

func (a *App) updateHeader(snap playback.Snapshot) {
	text := renderHeader(snap)
	if text != a.lastHeader {
		a.lastHeader = text
		a.header.SetText(text)
	}
}

func (a *App) updateTracks(snap playback.Snapshot) {
	var sig strings.Builder
	fmt.Fprintf(&sig, "%d|%d|%v", len(snap.Tracks), snap.CurrentIndex, snap.IsPlaying)
	if sig.String() == a.lastTracks {
		return
	}
	a.lastTracks = sig.String()

	a.tracks.Clear()
	if len(snap.Tracks) == 0 {
		a.tracks.SetCell(0, 0, tview.NewTableCell("No songs in this playlist").
			SetTextColor(tcell.ColorGray).
			SetSelectable(false))
		return
	}

	for i, t := range snap.Tracks {
		current := i == snap.CurrentIndex
		cell := tview.NewTableCell(trackRow(t, current, trackTitleWidth))
		if current {
			cell.SetTextColor(tcell.ColorGreen).SetAttributes(tcell.AttrBold)
		}
		a.tracks.SetCell(i, 0, cell)
	}
}

func (a *App) updateNowPlaying(snap playback.Snapshot) {
	text := renderNowPlaying(snap)
	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

func (a *App) updateStatus(snap playback.Snapshot) {
	text := renderStatus(snap, a.commandErr, time.Since(a.sessionStart))
	if text != a.lastStatus {
		a.lastStatus = text
		a.status.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func renderHeader(snap playback.Snapshot) string {
	name := snap.PlaylistName
	if name == "" {
		name = fmt.Sprintf("Playlist %d", snap.PlaylistID)
	}
	owner := snap.Owner
	if owner == "" {
		owner = "unknown"
	}
	return fmt.Sprintf(" [white::b]%s[-:-:-]  [yellow](%s)[-] %s  [gray]%d tracks[-]",
		tview.Escape(name), ownerInitial(snap.Owner), tview.Escape(owner), len(snap.Tracks))
}

// ownerInitial returns the avatar fallback letter for an owner name
func ownerInitial(owner string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(owner))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// trackRow renders one row of the track list, padded to width columns
func trackRow(t tracklist.Track, current bool, width int) string {
	marker := "  "
	if current {
		marker = "▶ "
	}
	label := fmt.Sprintf("%d. %s", t.Position, t.String())
	if runewidth.StringWidth(label) > width {
		label = runewidth.Truncate(label, width, "...")
	}
	return marker + runewidth.FillRight(label, width)
}

func renderNowPlaying(snap playback.Snapshot) string {
	if snap.CurrentTrack == nil {
		if len(snap.Tracks) == 0 {
			return "\n\n[gray]No songs in this playlist[-]"
		}
		return "\n\n[gray]Player unavailable[-]"
	}

	t := snap.CurrentTrack
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(t.Title)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(t.Artist)))
	if t.Year > 0 {
		sb.WriteString(fmt.Sprintf("[gray]%d[-]", t.Year))
	}
	sb.WriteString(fmt.Sprintf("\n\n%s", stateIcon(snap.Phase)))
	return sb.String()
}

// stateIcon returns the colored play state indicator
func stateIcon(phase playback.Phase) string {
	switch phase {
	case playback.PhasePlaying:
		return "[green]▶[-]"
	case playback.PhasePaused:
		return "[yellow]⏸[-]"
	case playback.PhaseLoading:
		return "[gray]…[-]"
	default:
		return ""
	}
}

func renderStatus(snap playback.Snapshot, commandErr error, elapsed time.Duration) string {
	var sb strings.Builder

	if snap.Repeat {
		sb.WriteString("[green]Repeat: on[-]\n")
	} else {
		sb.WriteString("[gray]Repeat: off[-]\n")
	}

	sb.WriteString(fmt.Sprintf("Listens: %d", snap.Listens))
	if snap.NewListener {
		sb.WriteString("  [green]new listener[-]")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Session: %s\n", formatDuration(elapsed)))

	err := snap.Err
	if commandErr != nil {
		err = commandErr
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf("[red]%s[-]", tview.Escape(err.Error())))
	}

	return sb.String()
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
