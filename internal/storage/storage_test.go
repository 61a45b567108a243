package storage

import (
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "datastore.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGuildRecordRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SetMusicChannel("g1", "chan-1"); err != nil {
		t.Fatalf("SetMusicChannel: %v", err)
	}
	if err := s.SetPresenceMessage("g1", "msg-1"); err != nil {
		t.Fatalf("SetPresenceMessage: %v", err)
	}
	if err := s.SetVolume("g1", 80); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if err := s.SetDJRole("g1", "role-1"); err != nil {
		t.Fatalf("SetDJRole: %v", err)
	}

	rec, err := s.Guild("g1")
	if err != nil {
		t.Fatalf("Guild: %v", err)
	}
	if rec.MusicChannelID != "chan-1" || rec.PresenceMessageID != "msg-1" || rec.DJRoleID != "role-1" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Volume == nil || *rec.Volume != 80 {
		t.Fatalf("volume = %v, want 80", rec.Volume)
	}
}

func TestUnknownGuildIsZeroValued(t *testing.T) {
	s := newTestStorage(t)

	rec, err := s.Guild("missing")
	if err != nil {
		t.Fatalf("Guild: %v", err)
	}
	if rec != (GuildRecord{}) {
		t.Fatalf("record = %+v, want zero value", rec)
	}
}

func TestVolumeFallback(t *testing.T) {
	s := newTestStorage(t)

	if v := s.Volume("g1", 100); v != 100 {
		t.Fatalf("Volume fallback = %d, want 100", v)
	}
	if err := s.SetVolume("g1", 60); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if v := s.Volume("g1", 100); v != 60 {
		t.Fatalf("Volume = %d, want 60", v)
	}
}

func TestVolumeZeroRoundTrips(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SetVolume("g1", 0); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if v := s.Volume("g1", 100); v != 0 {
		t.Fatalf("Volume = %d, want the muted 0 back, not the fallback", v)
	}
}

func TestUnpinningChannelForgetsMessage(t *testing.T) {
	s := newTestStorage(t)

	_ = s.SetMusicChannel("g1", "chan-1")
	_ = s.SetPresenceMessage("g1", "msg-1")
	if err := s.SetMusicChannel("g1", ""); err != nil {
		t.Fatalf("SetMusicChannel(\"\"): %v", err)
	}

	rec, _ := s.Guild("g1")
	if rec.MusicChannelID != "" || rec.PresenceMessageID != "" {
		t.Fatalf("record = %+v, want channel and message cleared", rec)
	}
}

func TestLastfmSession(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SetLastfmSession("u1", "alice", "sk-123"); err != nil {
		t.Fatalf("SetLastfmSession: %v", err)
	}
	rec, err := s.User("u1")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if rec.LastfmUsername != "alice" || rec.LastfmSessionKey != "sk-123" || !rec.Scrobbling {
		t.Fatalf("record = %+v", rec)
	}

	if err := s.SetScrobbling("u1", false); err != nil {
		t.Fatalf("SetScrobbling: %v", err)
	}
	rec, _ = s.User("u1")
	if rec.Scrobbling {
		t.Fatal("scrobbling still enabled after opt-out")
	}
	if rec.LastfmSessionKey != "sk-123" {
		t.Fatal("opt-out dropped the stored session key")
	}
}
