package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Max-Kushnir/playlister/internal/config"
	"github.com/Max-Kushnir/playlister/internal/playback"
	"github.com/Max-Kushnir/playlister/internal/tracklist"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <playlist-id>",
	Short: "Print a playlist from the catalog",
	Long: `Fetch a playlist from the catalog and print its tracks.

Each track is rendered with the output template from
~/.config/playlister/config.yaml. Available fields:
.Position, .Title, .Artist, .Year, .MediaRef, .ListenCount

Use --output json or --output yaml to dump the whole playlist instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	// Add format flag to override config
	showCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	showCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	showCmd.Flags().StringP("output", "o", "text", "Output type: text, json or yaml")
}

// playlistDump is the json/yaml shape of a playlist
type playlistDump struct {
	ID     int64       `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Owner  string      `json:"owner,omitempty" yaml:"owner,omitempty"`
	Tracks []trackDump `json:"tracks" yaml:"tracks"`
}

type trackDump struct {
	Position    int    `json:"position" yaml:"position"`
	ID          int64  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Artist      string `json:"artist" yaml:"artist"`
	Year        int    `json:"year,omitempty" yaml:"year,omitempty"`
	MediaRef    string `json:"media_ref" yaml:"media_ref"`
	ListenCount int    `json:"listen_count" yaml:"listen_count"`
}

func runShow(cmd *cobra.Command, args []string) error {
	playlistID, err := parsePlaylistID(args[0])
	if err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	output, _ := cmd.Flags().GetString("output")

	client, err := newCatalogClient(cfg, zerolog.Nop())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CatalogTimeout())
	defer cancel()

	remote, err := client.GetPlaylist(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist %d: %w", playlistID, err)
	}

	return writePlaylist(cmd.OutOrStdout(), playback.PlaylistFromCatalog(remote), output, cfg.OutputFormat, width)
}

// writePlaylist renders pl to w in the requested output type
func writePlaylist(w io.Writer, pl playback.Playlist, output, format string, width int) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dumpPlaylist(pl))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(dumpPlaylist(pl)); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown output type %q (want text, json or yaml)", output)
	}

	title := pl.Name
	if pl.Owner != "" {
		title = fmt.Sprintf("%s (by %s)", pl.Name, pl.Owner)
	}
	fmt.Fprintln(w, title)

	if pl.Tracks.IsEmpty() {
		fmt.Fprintln(w, "No songs in this playlist")
		return nil
	}

	for _, t := range pl.Tracks.Tracks() {
		line, err := formatTrack(t, format)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(w, padToWidth(line, width))
	}
	return nil
}

func dumpPlaylist(pl playback.Playlist) playlistDump {
	d := playlistDump{
		ID:     pl.ID,
		Name:   pl.Name,
		Owner:  pl.Owner,
		Tracks: make([]trackDump, 0, pl.Tracks.Len()),
	}
	for _, t := range pl.Tracks.Tracks() {
		d.Tracks = append(d.Tracks, trackDump{
			Position:    t.Position,
			ID:          t.ID,
			Title:       t.Title,
			Artist:      t.Artist,
			Year:        t.Year,
			MediaRef:    t.MediaRef,
			ListenCount: t.ListenCount,
		})
	}
	return d
}

// formatTrack applies the template to the track data
func formatTrack(track tracklist.Track, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)
	if currentWidth == width {
		return text
	}
	if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	const ellipsis = "..."
	if width <= len(ellipsis) {
		return ellipsis[:width]
	}

	// A wide rune may not fit exactly, so pad any gap after the ellipsis
	result := runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	return runewidth.FillRight(result, width)
}
