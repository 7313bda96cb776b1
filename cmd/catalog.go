package cmd

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Max-Kushnir/playlister/internal/config"
	"github.com/Max-Kushnir/playlister/pkg/catalog"
)

// catalogLogger adapts zerolog to the catalog client's Logger
type catalogLogger struct {
	logger zerolog.Logger
}

func (l catalogLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// newCatalogClient builds a catalog client from configuration
func newCatalogClient(cfg *config.Config, logger zerolog.Logger) (*catalog.Client, error) {
	client, err := catalog.NewClient(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		Token:      cfg.Catalog.Token,
		HTTPClient: &http.Client{Timeout: cfg.CatalogTimeout()},
		RateLimit:  cfg.Catalog.RateLimit,
		Logger:     catalogLogger{logger: logger.With().Str("component", "catalog").Logger()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}
	return client, nil
}

// parsePlaylistID parses a positive playlist id argument
func parsePlaylistID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid playlist id %q: must be a positive integer", arg)
	}
	return id, nil
}
