package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Max-Kushnir/playlister/internal/config"
	"github.com/Max-Kushnir/playlister/internal/telemetry"
)

var (
	historyLimit   int
	historyKind    string
	historyDataDir string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent telemetry calls",
	Long: `List the telemetry calls recorded in the local journal, newest first.

Every listener and listen call made during play sessions is journaled with
whether the catalog accepted it. The journal is informational only: failed
calls are never retried.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Only show one kind: listener or listen")
	historyCmd.Flags().StringVar(&historyDataDir, "data-dir", "", "Data directory holding the journal (default: ~/.local/share/playlister)")
}

// historyTotals summarizes the journal
type historyTotals struct {
	Total     int
	Delivered int
}

func runHistory(cmd *cobra.Command, args []string) error {
	kind := telemetry.Kind(historyKind)
	switch kind {
	case "", telemetry.KindListener, telemetry.KindListen:
	default:
		return fmt.Errorf("unknown kind %q (want listener or listen)", historyKind)
	}

	dataDir := historyDataDir
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}
	dbPath := filepath.Join(dataDir, "telemetry.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No telemetry recorded yet")
		return nil
	}

	journal, err := telemetry.NewJournal(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open telemetry journal: %w", err)
	}
	defer journal.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	entries, err := journal.Recent(ctx, historyLimit, kind)
	if err != nil {
		return err
	}

	var totals historyTotals
	if totals.Total, err = journal.Count(ctx, kind, false); err != nil {
		return err
	}
	if totals.Delivered, err = journal.Count(ctx, kind, true); err != nil {
		return err
	}

	writeHistory(cmd.OutOrStdout(), entries, totals)
	return nil
}

// writeHistory prints entries as a table followed by totals
func writeHistory(w io.Writer, entries []telemetry.Entry, totals historyTotals) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No telemetry recorded yet")
		return
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		padToWidth("TIME", 19), padToWidth("KIND", 8), padToWidth("ID", 8), padToWidth("SESSION", 8), "STATUS")
	for _, e := range entries {
		status := "ok"
		if !e.Delivered {
			status = "failed: " + e.Error
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			padToWidth(string(e.Kind), 8),
			padToWidth(fmt.Sprintf("%d", e.SubjectID), 8),
			padToWidth(runewidth.Truncate(e.SessionID, 8, ""), 8),
			status)
	}

	sessions := len(lo.Uniq(lo.Map(entries, func(e telemetry.Entry, _ int) string {
		return e.SessionID
	})))
	byKind := lo.CountValuesBy(entries, func(e telemetry.Entry) telemetry.Kind {
		return e.Kind
	})

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Shown: %d (%d listener, %d listen) across %d sessions\n",
		len(entries), byKind[telemetry.KindListener], byKind[telemetry.KindListen], sessions)
	fmt.Fprintf(w, "Total: %d recorded, %d delivered, %d failed\n",
		totals.Total, totals.Delivered, totals.Total-totals.Delivered)
}
