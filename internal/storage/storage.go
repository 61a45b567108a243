// Package storage persists per-guild and per-user playback preferences
// in a JSON-file datastore. Records are small and read rarely, so every
// accessor round-trips through the store rather than caching.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/keshon/datastore"
)

const (
	guildKeyPrefix = "guild:"
	userKeyPrefix  = "user:"
)

type Storage struct {
	ds *datastore.DataStore
}

// GuildRecord holds everything a guild configures about the bot. Volume
// is a pointer so an explicit 0 is distinguishable from "never set".
type GuildRecord struct {
	MusicChannelID    string `json:"music_channel_id"`
	PresenceMessageID string `json:"presence_message_id"`
	Volume            *int   `json:"volume,omitempty"`
	DJRoleID          string `json:"dj_role_id"`
}

// UserRecord holds per-user scrobbling preferences.
type UserRecord struct {
	LastfmUsername   string `json:"lastfm_username"`
	LastfmSessionKey string `json:"lastfm_session_key"`
	Scrobbling       bool   `json:"scrobbling"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// The datastore hands values back as whatever json.Unmarshal produced,
// so records go through a marshal/unmarshal round-trip to regain their
// concrete type.
func load[T any](s *Storage, key string) (*T, error) {
	data, exists := s.ds.Get(key)
	if !exists {
		return new(T), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshalling stored record %s: %w", key, err)
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling stored record %s: %w", key, err)
	}
	return &rec, nil
}

func (s *Storage) guild(guildID string) (*GuildRecord, error) {
	return load[GuildRecord](s, guildKeyPrefix+guildID)
}

func (s *Storage) saveGuild(guildID string, rec *GuildRecord) {
	s.ds.Add(guildKeyPrefix+guildID, rec)
}

func (s *Storage) user(userID string) (*UserRecord, error) {
	return load[UserRecord](s, userKeyPrefix+userID)
}

func (s *Storage) saveUser(userID string, rec *UserRecord) {
	s.ds.Add(userKeyPrefix+userID, rec)
}

// Guild returns the guild's record, zero-valued when nothing is stored.
func (s *Storage) Guild(guildID string) (GuildRecord, error) {
	rec, err := s.guild(guildID)
	if err != nil {
		return GuildRecord{}, err
	}
	return *rec, nil
}

// SetMusicChannel pins the static music channel. An empty channelID
// removes the pin and forgets the presence message with it.
func (s *Storage) SetMusicChannel(guildID, channelID string) error {
	rec, err := s.guild(guildID)
	if err != nil {
		return err
	}
	rec.MusicChannelID = channelID
	if channelID == "" {
		rec.PresenceMessageID = ""
	}
	s.saveGuild(guildID, rec)
	return nil
}

// SetPresenceMessage remembers the status display message so restarts
// edit it instead of posting a new one.
func (s *Storage) SetPresenceMessage(guildID, messageID string) error {
	rec, err := s.guild(guildID)
	if err != nil {
		return err
	}
	rec.PresenceMessageID = messageID
	s.saveGuild(guildID, rec)
	return nil
}

// Volume returns the guild's stored volume, or fallback when unset.
func (s *Storage) Volume(guildID string, fallback int) int {
	rec, err := s.guild(guildID)
	if err != nil || rec.Volume == nil {
		return fallback
	}
	return *rec.Volume
}

func (s *Storage) SetVolume(guildID string, volume int) error {
	rec, err := s.guild(guildID)
	if err != nil {
		return err
	}
	rec.Volume = &volume
	s.saveGuild(guildID, rec)
	return nil
}

func (s *Storage) SetDJRole(guildID, roleID string) error {
	rec, err := s.guild(guildID)
	if err != nil {
		return err
	}
	rec.DJRoleID = roleID
	s.saveGuild(guildID, rec)
	return nil
}

// User returns the user's record, zero-valued when nothing is stored.
func (s *Storage) User(userID string) (UserRecord, error) {
	rec, err := s.user(userID)
	if err != nil {
		return UserRecord{}, err
	}
	return *rec, nil
}

// SetLastfmSession stores a user's Last.fm credentials and switches
// scrobbling on for them.
func (s *Storage) SetLastfmSession(userID, username, sessionKey string) error {
	rec, err := s.user(userID)
	if err != nil {
		return err
	}
	rec.LastfmUsername = username
	rec.LastfmSessionKey = sessionKey
	rec.Scrobbling = true
	s.saveUser(userID, rec)
	return nil
}

func (s *Storage) SetScrobbling(userID string, enabled bool) error {
	rec, err := s.user(userID)
	if err != nil {
		return err
	}
	rec.Scrobbling = enabled
	s.saveUser(userID, rec)
	return nil
}
