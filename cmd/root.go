/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playlister",
	Short: "Play catalog playlists and report listens",
	Long: `playlister plays playlists from the catalog service through an external
media player and reports listen telemetry back to the catalog.

Each play session records you as a listener of the playlist once, and
counts a listen every time a different track starts playing. Pausing and
resuming a track does not count it again.

Playback is driven by mpv by default. A simulated player is available for
demos and headless runs with --driver sim.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
