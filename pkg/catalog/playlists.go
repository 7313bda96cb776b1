package catalog

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetPlaylist fetches a playlist and its ordered songs.
//
// The catalog wraps the playlist as `data.playlist`; a bare playlist object in
// `data` is accepted as well.
func (c *Client) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	data, err := c.call(ctx, "GET", fmt.Sprintf("/playlists/%d", id), nil, true)
	if err != nil {
		return nil, err
	}

	playlist, err := unmarshalPlaylist(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to parse playlist response: %w", err)
	}

	return playlist, nil
}

// RecordPlaylistListener registers listenerIdentifier as a listener of the
// playlist. The service decides whether this is a new listener.
//
// The request is sent once; callers treat failures as best effort.
func (c *Client) RecordPlaylistListener(ctx context.Context, playlistID int64, listenerIdentifier string) (bool, error) {
	body := map[string]string{"listenerIdentifier": listenerIdentifier}

	data, err := c.call(ctx, "POST", fmt.Sprintf("/playlists/%d/listen", playlistID), body, false)
	if err != nil {
		return false, err
	}

	var result ListenerResult
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &result); err != nil {
			return false, fmt.Errorf("catalog: failed to parse listener response: %w", err)
		}
	}

	return result.IsNewListener, nil
}

func unmarshalPlaylist(data json.RawMessage) (*Playlist, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("empty playlist data")
	}

	var wrapped struct {
		Playlist *Playlist `json:"playlist"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Playlist != nil {
		return wrapped.Playlist, nil
	}

	var bare Playlist
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	if bare.ID == 0 {
		return nil, fmt.Errorf("playlist id missing")
	}
	return &bare, nil
}
