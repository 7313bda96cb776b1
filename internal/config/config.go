package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Output format template for the show command
	// Default: "{{.Position}}. {{.Title}} by {{.Artist}} ({{.Year}})"
	OutputFormat string

	// Fixed display width for show output (0 disables padding)
	OutputWidth int

	// Log level (debug, info, warn, error)
	LogLevel string

	Catalog   CatalogConfig
	Listener  ListenerConfig
	Player    PlayerConfig
	Telemetry TelemetryConfig
}

// CatalogConfig holds catalog service settings
type CatalogConfig struct {
	BaseURL   string
	Token     string
	Timeout   int     // seconds
	RateLimit float64 // requests per second, 0 disables
}

// ListenerConfig identifies who is listening
type ListenerConfig struct {
	// Catalog user id; 0 means a guest listener
	UserID int64
}

// PlayerConfig selects the media player
type PlayerConfig struct {
	Driver          string // mpv or sim
	MpvPath         string
	Container       string
	SimTrackSeconds int
}

// TelemetryConfig controls listen telemetry delivery
type TelemetryConfig struct {
	Timeout int // seconds
	Journal bool
}

// defaults are applied before the config file and environment
var defaults = map[string]any{
	"output_format":            "{{.Position}}. {{.Title}} by {{.Artist}} ({{.Year}})",
	"output_width":             0,
	"log_level":                "info",
	"catalog.base_url":         "http://localhost:3001/api",
	"catalog.token":            "",
	"catalog.timeout":          10,
	"catalog.rate_limit":       5.0,
	"listener.user_id":         0,
	"player.driver":            "mpv",
	"player.mpv_path":          "mpv",
	"player.container":         "playlister",
	"player.sim_track_seconds": 30,
	"telemetry.timeout":        5,
	"telemetry.journal":        true,
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return load(getConfigDir())
}

func load(configDir string) (*Config, error) {
	v := newViper(configDir)

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Read from environment variables, PLAYLISTER_CATALOG_BASE_URL etc.
	v.SetEnvPrefix("PLAYLISTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		OutputFormat: v.GetString("output_format"),
		OutputWidth:  v.GetInt("output_width"),
		LogLevel:     v.GetString("log_level"),
		Catalog: CatalogConfig{
			BaseURL:   v.GetString("catalog.base_url"),
			Token:     v.GetString("catalog.token"),
			Timeout:   v.GetInt("catalog.timeout"),
			RateLimit: v.GetFloat64("catalog.rate_limit"),
		},
		Listener: ListenerConfig{
			UserID: v.GetInt64("listener.user_id"),
		},
		Player: PlayerConfig{
			Driver:          v.GetString("player.driver"),
			MpvPath:         v.GetString("player.mpv_path"),
			Container:       v.GetString("player.container"),
			SimTrackSeconds: v.GetInt("player.sim_track_seconds"),
		},
		Telemetry: TelemetryConfig{
			Timeout: v.GetInt("telemetry.timeout"),
			Journal: v.GetBool("telemetry.journal"),
		},
	}

	return cfg, nil
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// CatalogTimeout returns the catalog request timeout
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.Timeout) * time.Second
}

// TelemetryTimeout returns the per-call telemetry timeout
func (c *Config) TelemetryTimeout() time.Duration {
	return time.Duration(c.Telemetry.Timeout) * time.Second
}

// SimTrackLength returns the simulated player's track length
func (c *Config) SimTrackLength() time.Duration {
	return time.Duration(c.Player.SimTrackSeconds) * time.Second
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "playlister")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetConfigFile returns the path of the config file
func GetConfigFile() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// GetDataDir returns the directory for logs and the telemetry journal
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "playlister")
}

// Keys returns every supported configuration key, sorted
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Set writes a single key to the config file, keeping the other values
func Set(key, value string) error {
	return set(getConfigDir(), key, value)
}

func set(configDir, key, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys(), ", "))
	}

	v := viper.New()
	v.SetConfigType("yaml")
	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.Set(key, value)
	return v.WriteConfigAs(configFile)
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.save(getConfigDir())
}

func (c *Config) save(configDir string) error {
	v := viper.New()

	configFile := filepath.Join(configDir, "config.yaml")

	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("log_level", c.LogLevel)
	v.Set("catalog.base_url", c.Catalog.BaseURL)
	v.Set("catalog.token", c.Catalog.Token)
	v.Set("catalog.timeout", c.Catalog.Timeout)
	v.Set("catalog.rate_limit", c.Catalog.RateLimit)
	v.Set("listener.user_id", c.Listener.UserID)
	v.Set("player.driver", c.Player.Driver)
	v.Set("player.mpv_path", c.Player.MpvPath)
	v.Set("player.container", c.Player.Container)
	v.Set("player.sim_track_seconds", c.Player.SimTrackSeconds)
	v.Set("telemetry.timeout", c.Telemetry.Timeout)
	v.Set("telemetry.journal", c.Telemetry.Journal)

	return v.WriteConfigAs(configFile)
}
