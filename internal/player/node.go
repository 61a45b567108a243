package player

// Node is the control half of the remote audio-processing node. All calls
// are fire-and-forget: they return immediately and the outcome, if any,
// surfaces later as a NodeEvent. Commands issued while the node connection
// is down are dropped; recovery is the session's responsibility.
type Node interface {
	PlayTrack(guildID string, t Track, positionMS int64, generation uint64)
	SetPaused(guildID string, paused bool, generation uint64)
	SetVolume(guildID string, volume int, generation uint64)
	StopPlayback(guildID string, generation uint64)
}

// NodeEventType enumerates events produced by the audio node connection.
type NodeEventType int

const (
	NodeTrackStarted NodeEventType = iota
	NodeTrackEnded
	NodePositionUpdate
	NodeDisconnected
	NodeReconnected
)

func (t NodeEventType) String() string {
	switch t {
	case NodeTrackStarted:
		return "track-started"
	case NodeTrackEnded:
		return "track-ended"
	case NodePositionUpdate:
		return "position-update"
	case NodeDisconnected:
		return "node-disconnected"
	case NodeReconnected:
		return "node-reconnected"
	}
	return "unknown"
}

// EndReason explains why a track stopped.
type EndReason string

const (
	EndFinished EndReason = "finished"
	EndError    EndReason = "error"
	EndReplaced EndReason = "replaced"
	EndStopped  EndReason = "stopped"
)

// NodeEvent is one event from the audio node. GuildID is empty for
// connection-level events (disconnect/reconnect), which apply to every
// session. Generation echoes the generation of the command the event
// answers; sessions discard events older than their current generation.
type NodeEvent struct {
	Type       NodeEventType
	GuildID    string
	Generation uint64
	Reason     EndReason
	TrackID    string
	PositionMS int64
}
