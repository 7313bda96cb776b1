package catalog

// Song is a catalog song as embedded in playlist responses.
type Song struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Year        int    `json:"year"`
	YouTubeID   string `json:"youtube_id"`
	ListenCount int    `json:"listen_count"`
}

// PlaylistSong is one slot of a playlist.
type PlaylistSong struct {
	ID       int64 `json:"id"`
	Position int   `json:"position"`
	Song     *Song `json:"song"`
}

// Owner is the public profile of a playlist owner.
type Owner struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	AvatarImage string `json:"avatar_image,omitempty"`
}

// Playlist is a playlist with its ordered songs.
type Playlist struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Owner         *Owner         `json:"owner,omitempty"`
	Songs         []PlaylistSong `json:"playlist_songs"`
	ListenerCount int            `json:"listener_count"`
}

// OwnerName returns the owner's username, or "" when the owner is unknown.
func (p *Playlist) OwnerName() string {
	if p == nil || p.Owner == nil {
		return ""
	}
	return p.Owner.Username
}

// ListenerResult is the response of a listener registration.
type ListenerResult struct {
	IsNewListener bool `json:"isNewListener"`
	ListenerCount int  `json:"listenerCount,omitempty"`
}
