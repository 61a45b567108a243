package audionode

import (
	"testing"
	"time"

	"groovekeeper/internal/player"
)

func TestDecodeTrackStart(t *testing.T) {
	data := []byte(`{
		"op": "event",
		"type": "TrackStartEvent",
		"guildId": "g1",
		"generation": 7,
		"track": {"identifier": "abc", "title": "song", "author": "artist", "uri": "u", "length": 1000}
	}`)

	ev, ok, err := decodeEvent(data)
	if err != nil || !ok {
		t.Fatalf("decodeEvent: ok=%v err=%v", ok, err)
	}
	if ev.Type != player.NodeTrackStarted || ev.GuildID != "g1" || ev.Generation != 7 || ev.TrackID != "abc" {
		t.Fatalf("decoded %+v", ev)
	}
}

func TestDecodeTrackEndReasons(t *testing.T) {
	cases := []struct {
		raw  string
		want player.EndReason
	}{
		{"finished", player.EndFinished},
		{"FINISHED", player.EndFinished},
		{"replaced", player.EndReplaced},
		{"stopped", player.EndStopped},
		{"cleanup", player.EndStopped},
		{"loadFailed", player.EndError},
	}
	for _, c := range cases {
		data := []byte(`{"op": "event", "type": "TrackEndEvent", "guildId": "g1", "generation": 3, "reason": "` + c.raw + `"}`)
		ev, ok, err := decodeEvent(data)
		if err != nil || !ok {
			t.Fatalf("%s: ok=%v err=%v", c.raw, ok, err)
		}
		if ev.Type != player.NodeTrackEnded || ev.Reason != c.want {
			t.Fatalf("%s: decoded type=%v reason=%v, want end/%v", c.raw, ev.Type, ev.Reason, c.want)
		}
	}
}

func TestDecodeExceptionMapsToErrorEnd(t *testing.T) {
	for _, typ := range []string{"TrackExceptionEvent", "TrackStuckEvent"} {
		data := []byte(`{"op": "event", "type": "` + typ + `", "guildId": "g1", "generation": 1}`)
		ev, ok, err := decodeEvent(data)
		if err != nil || !ok {
			t.Fatalf("%s: ok=%v err=%v", typ, ok, err)
		}
		if ev.Type != player.NodeTrackEnded || ev.Reason != player.EndError {
			t.Fatalf("%s: decoded %+v, want error end", typ, ev)
		}
	}
}

func TestDecodePlayerUpdate(t *testing.T) {
	data := []byte(`{"op": "playerUpdate", "guildId": "g1", "generation": 2, "state": {"position": 42000, "time": 1700000000, "connected": true}}`)

	ev, ok, err := decodeEvent(data)
	if err != nil || !ok {
		t.Fatalf("decodeEvent: ok=%v err=%v", ok, err)
	}
	if ev.Type != player.NodePositionUpdate || ev.PositionMS != 42000 {
		t.Fatalf("decoded %+v, want position update at 42000", ev)
	}
}

func TestDecodeIgnoresNonEvents(t *testing.T) {
	for _, raw := range []string{
		`{"op": "ready", "sessionId": "x"}`,
		`{"op": "stats", "players": 3}`,
		`{"op": "event", "type": "WebSocketClosedEvent", "guildId": "g1"}`,
		`{"op": "playerUpdate", "guildId": "g1"}`,
	} {
		_, ok, err := decodeEvent([]byte(raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if ok {
			t.Fatalf("%s: decoded into an event, want ignored", raw)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, ok, err := decodeEvent([]byte(`{not json`)); err == nil || ok {
		t.Fatalf("malformed payload: ok=%v err=%v, want error", ok, err)
	}
}

func TestEncodeTrack(t *testing.T) {
	p := encodeTrack(player.Track{
		ID:       "abc",
		Title:    "song",
		Author:   "artist",
		URI:      "https://example.com/song",
		Duration: 90 * time.Second,
		Artwork:  "https://example.com/art.png",
	})
	if p.Identifier != "abc" || p.LengthMS != 90_000 || p.ArtworkURL == "" {
		t.Fatalf("encoded %+v", p)
	}
}
