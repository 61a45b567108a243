package player

import "time"

// Track describes one playable item. Tracks are immutable once constructed;
// two tracks are the same track when their IDs match, regardless of who
// requested them.
type Track struct {
	ID          string
	Title       string
	Author      string
	URI         string
	Duration    time.Duration // zero for live streams
	Requester   string        // display name of the member who queued it
	RequesterID string
	Artwork     string
}

// Live reports whether the track is a live stream (no known duration).
func (t Track) Live() bool {
	return t.Duration == 0
}

// Same reports track identity.
func (t Track) Same(other Track) bool {
	return t.ID == other.ID
}
