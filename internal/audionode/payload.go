package audionode

import (
	"encoding/json"
	"fmt"

	"groovekeeper/internal/player"
)

// Wire payloads for the node's control/event channel. Commands are keyed
// by guild and carry the session generation; the node echoes the
// generation on every event it emits for that command.

type trackPayload struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	URI        string `json:"uri"`
	LengthMS   int64  `json:"length"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

type playPayload struct {
	Op         string       `json:"op"`
	GuildID    string       `json:"guildId"`
	Track      trackPayload `json:"track"`
	PositionMS int64        `json:"position"`
	Generation uint64       `json:"generation"`
}

type pausePayload struct {
	Op         string `json:"op"`
	GuildID    string `json:"guildId"`
	Pause      bool   `json:"pause"`
	Generation uint64 `json:"generation"`
}

type volumePayload struct {
	Op         string `json:"op"`
	GuildID    string `json:"guildId"`
	Volume     int    `json:"volume"`
	Generation uint64 `json:"generation"`
}

type stopPayload struct {
	Op         string `json:"op"`
	GuildID    string `json:"guildId"`
	Generation uint64 `json:"generation"`
}

type playerState struct {
	PositionMS int64 `json:"position"`
	Time       int64 `json:"time"`
	Connected  bool  `json:"connected"`
}

type inboundPayload struct {
	Op         string       `json:"op"`
	Type       string       `json:"type,omitempty"`
	GuildID    string       `json:"guildId,omitempty"`
	Generation uint64       `json:"generation,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Track      *trackPayload `json:"track,omitempty"`
	State      *playerState  `json:"state,omitempty"`
}

// decodeEvent turns one inbound message into a node event. The second
// return is false for messages that do not map to an event (ready, stats).
func decodeEvent(data []byte) (player.NodeEvent, bool, error) {
	var in inboundPayload
	if err := json.Unmarshal(data, &in); err != nil {
		return player.NodeEvent{}, false, fmt.Errorf("malformed node payload: %w", err)
	}

	switch in.Op {
	case "playerUpdate":
		if in.State == nil {
			return player.NodeEvent{}, false, nil
		}
		return player.NodeEvent{
			Type:       player.NodePositionUpdate,
			GuildID:    in.GuildID,
			Generation: in.Generation,
			PositionMS: in.State.PositionMS,
		}, true, nil

	case "event":
		ev := player.NodeEvent{
			GuildID:    in.GuildID,
			Generation: in.Generation,
		}
		if in.Track != nil {
			ev.TrackID = in.Track.Identifier
		}
		switch in.Type {
		case "TrackStartEvent":
			ev.Type = player.NodeTrackStarted
			return ev, true, nil
		case "TrackEndEvent":
			ev.Type = player.NodeTrackEnded
			ev.Reason = endReason(in.Reason)
			return ev, true, nil
		case "TrackExceptionEvent", "TrackStuckEvent":
			ev.Type = player.NodeTrackEnded
			ev.Reason = player.EndError
			return ev, true, nil
		}
		return player.NodeEvent{}, false, nil
	}

	return player.NodeEvent{}, false, nil
}

func endReason(raw string) player.EndReason {
	switch raw {
	case "finished", "FINISHED":
		return player.EndFinished
	case "replaced", "REPLACED":
		return player.EndReplaced
	case "stopped", "cleanup", "STOPPED", "CLEANUP":
		return player.EndStopped
	}
	return player.EndError
}

func encodeTrack(t player.Track) trackPayload {
	return trackPayload{
		Identifier: t.ID,
		Title:      t.Title,
		Author:     t.Author,
		URI:        t.URI,
		LengthMS:   t.Duration.Milliseconds(),
		ArtworkURL: t.Artwork,
	}
}
