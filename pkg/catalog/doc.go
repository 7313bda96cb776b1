// Package catalog provides a client for the playlist catalog REST API.
//
// # Overview
//
// The catalog service owns playlists, songs and their play counters. This
// package covers the calls a player needs: fetching a playlist with its
// ordered songs and reporting listen telemetry back to the service.
//
// # Quick Start
//
//	client, err := catalog.NewClient(catalog.Config{
//	    BaseURL: "http://localhost:3001/api",
//	    Token:   os.Getenv("PLAYLISTER_CATALOG_TOKEN"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	playlist, err := client.GetPlaylist(ctx, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Telemetry
//
// Listener and listen calls are single-shot: they are never retried by the
// client, so a failed call is simply lost. Reads are retried with exponential
// backoff on network errors and 5xx responses.
//
//	isNew, err := client.RecordPlaylistListener(ctx, playlist.ID, "guest_1234")
//	err = client.RecordTrackListen(ctx, playlist.Songs[0].Song.ID)
//
// # Errors
//
// API failures are returned as *Error and can be matched with errors.Is:
//
//	if errors.Is(err, catalog.ErrNotFound) {
//	    // playlist does not exist
//	}
//
// # Rate limiting
//
// Config.RateLimit caps the request rate client-side using a token bucket.
package catalog
