package catalog

import (
	"context"
	"fmt"
)

// RecordTrackListen records one listen of a song.
//
// Guests may record listens, so the token is optional. The request is sent
// once and the response body is ignored beyond success or failure.
func (c *Client) RecordTrackListen(ctx context.Context, songID int64) error {
	if _, err := c.call(ctx, "POST", fmt.Sprintf("/songs/%d/listen", songID), nil, false); err != nil {
		return err
	}
	return nil
}
