package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Max-Kushnir/playlister/internal/config"
	"github.com/Max-Kushnir/playlister/internal/playback"
	"github.com/Max-Kushnir/playlister/internal/player"
	"github.com/Max-Kushnir/playlister/internal/telemetry"
	"github.com/Max-Kushnir/playlister/internal/tui"
)

const (
	shutdownTimeout = 5 * time.Second
	journalMaxAge   = 90 * 24 * time.Hour
)

var (
	playHeadless bool
	playRepeat   bool
	playDriver   string
	playStart    int
	playLogFile  string
	playLogLevel string
	playDataDir  string
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <playlist-id>",
	Short: "Play a playlist",
	Long: `Fetch a playlist from the catalog and play it.

The session will:
- Record you as a listener of the playlist (once per session)
- Play tracks in order, autoplaying the next one when a track ends
- Stop after the last track, or start over when repeat is on
- Count a listen each time a different track starts playing

By default a terminal UI is shown. Keys:
  space  play/pause      n  next track      p  previous track
  r      toggle repeat   enter  play the selected track
  q      quit

With --headless the session runs without UI and exits when the playlist
stops or on SIGINT/SIGTERM. Logs go to stderr in headless mode and to
playlister.log in the data directory otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().BoolVar(&playHeadless, "headless", false, "Run without the terminal UI")
	playCmd.Flags().BoolVar(&playRepeat, "repeat", false, "Start over after the last track")
	playCmd.Flags().StringVar(&playDriver, "driver", "", "Player driver: mpv or sim (overrides config)")
	playCmd.Flags().IntVar(&playStart, "start", 1, "Track number to start at (1-based)")
	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "Log file path (default: stderr when headless, data dir otherwise)")
	playCmd.Flags().StringVar(&playLogLevel, "log-level", "", "Log level (debug, info, warn, error; overrides config)")
	playCmd.Flags().StringVar(&playDataDir, "data-dir", "", "Data directory for logs and the telemetry journal (default: ~/.local/share/playlister)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	playlistID, err := parsePlaylistID(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if playDriver != "" {
		cfg.Player.Driver = playDriver
	}
	if playLogLevel != "" {
		cfg.LogLevel = playLogLevel
	}

	dataDir := playDataDir
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logFile := playLogFile
	if logFile == "" && !playHeadless {
		// Keep logs off the screen while the TUI owns it
		logFile = filepath.Join(dataDir, "playlister.log")
	}
	logger := setupLogger(logFile, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newCatalogClient(cfg, logger)
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.CatalogTimeout()*3)
	remote, err := client.GetPlaylist(fetchCtx, playlistID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch playlist %d: %w", playlistID, err)
	}
	pl := playback.PlaylistFromCatalog(remote)

	var journal *telemetry.Journal
	if cfg.Telemetry.Journal {
		journal, err = openJournal(ctx, dataDir, logger)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	sessionID := uuid.NewString()
	listenerID := listenerIdentifier(cfg.Listener.UserID)
	logger.Info().
		Str("version", version).
		Str("session", sessionID).
		Str("listener", listenerID).
		Int64("playlist", pl.ID).
		Msg("Starting session")

	var ctrl *playback.Controller
	dispatcherCfg := telemetry.DispatcherConfig{
		Recorder:   client,
		ListenerID: listenerID,
		SessionID:  sessionID,
		Timeout:    cfg.TelemetryTimeout(),
		Logger:     logger,
		OnNewListener: func(id int64) {
			ctrl.NotifyNewListener(id)
		},
	}
	if journal != nil {
		dispatcherCfg.Journal = journal
	}
	dispatcher := telemetry.NewDispatcher(dispatcherCfg)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry not fully delivered")
		}
		stats := dispatcher.Stats()
		logger.Info().
			Int64("sent", stats.Sent).
			Int64("failed", stats.Failed).
			Int64("dropped", stats.Dropped).
			Msg("Telemetry flushed")
	}()

	backend, err := player.NewBackend(player.Config{
		Driver:         cfg.Player.Driver,
		MpvPath:        cfg.Player.MpvPath,
		SimTrackLength: cfg.SimTrackLength(),
	}, logger)
	if err != nil {
		return err
	}

	ctrl = playback.NewController(playback.Options{
		Backend:   backend,
		Container: cfg.Player.Container,
		Emitter:   dispatcher,
		SessionID: sessionID,
		Logger:    logger,
	})
	defer ctrl.Close()

	ctrl.OnNewListener(func(id int64) {
		logger.Info().Int64("playlist", id).Msg("Counted as a new listener")
	})

	if err := startSession(ctx, ctrl, pl); err != nil {
		var initErr *player.AdapterInitError
		if playHeadless || !errors.As(err, &initErr) {
			return err
		}
		// The TUI still shows the playlist and the error
	}

	if playHeadless {
		return runHeadless(ctx, ctrl.Subscribe(), cmd.OutOrStdout())
	}

	app := tui.New(ctrl)
	return app.Run(ctx, ctrl.Subscribe())
}

// startSession opens pl and applies the repeat and start flags
func startSession(ctx context.Context, ctrl *playback.Controller, pl playback.Playlist) error {
	if err := ctrl.Open(ctx, pl); err != nil {
		return err
	}
	if playRepeat {
		if err := ctrl.SetRepeat(true); err != nil {
			return err
		}
	}
	if playStart > 1 {
		if err := ctrl.SelectTrack(playStart - 1); err != nil {
			return fmt.Errorf("invalid --start %d: %w", playStart, err)
		}
	}
	return nil
}

// runHeadless prints each track as it starts and returns once playback
// stops, the session closes, or ctx is done. Updates may skip intermediate
// snapshots, so a start is detected by the load counter rather than by the
// Loading phase.
func runHeadless(ctx context.Context, updates <-chan playback.Snapshot, out io.Writer) error {
	announced := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok || snap.Closed {
				return nil
			}
			if snap.Phase == playback.PhaseEmpty {
				if snap.Err != nil {
					return snap.Err
				}
				fmt.Fprintln(out, "No songs in this playlist")
				return nil
			}
			if snap.Phase == playback.PhasePlaying && snap.CurrentTrack != nil && snap.Loads != announced {
				announced = snap.Loads
				fmt.Fprintf(out, "▶ %d. %s\n", snap.CurrentTrack.Position, snap.CurrentTrack.String())
			}
			if snap.Phase == playback.PhasePaused {
				fmt.Fprintf(out, "Finished %s (%d listens)\n", snap.PlaylistName, snap.Listens)
				return nil
			}
		}
	}
}

// listenerIdentifier names the listener for the playlist listener call
func listenerIdentifier(userID int64) string {
	if userID > 0 {
		return fmt.Sprintf("user_%d", userID)
	}
	return "guest_" + uuid.NewString()
}

func openJournal(ctx context.Context, dataDir string, logger zerolog.Logger) (*telemetry.Journal, error) {
	journal, err := telemetry.NewJournal(filepath.Join(dataDir, "telemetry.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry journal: %w", err)
	}

	if deleted, err := journal.Cleanup(ctx, journalMaxAge); err != nil {
		logger.Warn().Err(err).Msg("Failed to clean up telemetry journal")
	} else if deleted > 0 {
		logger.Debug().Int64("deleted", deleted).Msg("Cleaned up telemetry journal")
	}
	return journal, nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
