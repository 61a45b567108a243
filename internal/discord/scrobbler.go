package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
	"groovekeeper/internal/scrobble"
	"groovekeeper/internal/storage"
)

const scrobbleTimeout = 15 * time.Second

// ListenerScrobbler submits plays for everyone sitting in the requester's
// voice channel who has linked Last.fm and left scrobbling on.
type ListenerScrobbler struct {
	dg     *discordgo.Session
	store  *storage.Storage
	client *scrobble.Client
	log    zerolog.Logger
}

var _ player.Scrobbler = (*ListenerScrobbler)(nil)

func NewListenerScrobbler(dg *discordgo.Session, store *storage.Storage, client *scrobble.Client, log zerolog.Logger) *ListenerScrobbler {
	return &ListenerScrobbler{
		dg:     dg,
		store:  store,
		client: client,
		log:    log.With().Str("component", "scrobbler").Logger(),
	}
}

// TrackStarted implements player.Scrobbler.
func (l *ListenerScrobbler) TrackStarted(guildID string, t player.Track) {
	l.each(guildID, t, func(ctx context.Context, sessionKey string) error {
		return l.client.NowPlaying(ctx, sessionKey, t)
	})
}

// TrackFinished implements player.Scrobbler. The submission rule follows
// Last.fm: tracks over 30 seconds count once half the track, or four
// minutes, has played.
func (l *ListenerScrobbler) TrackFinished(guildID string, t player.Track, startedAt time.Time) {
	if t.Duration <= 30*time.Second {
		return
	}
	played := time.Since(startedAt)
	if played < t.Duration/2 && played < 4*time.Minute {
		return
	}
	l.each(guildID, t, func(ctx context.Context, sessionKey string) error {
		return l.client.Scrobble(ctx, sessionKey, t, startedAt)
	})
}

// each runs fn for every eligible listener, in the background.
func (l *ListenerScrobbler) each(guildID string, t player.Track, fn func(ctx context.Context, sessionKey string) error) {
	channelID, err := findUserVoiceChannel(l.dg, guildID, t.RequesterID)
	if err != nil {
		return
	}
	for _, userID := range voiceChannelMembers(l.dg, guildID, channelID) {
		rec, err := l.store.User(userID)
		if err != nil || !rec.Scrobbling || rec.LastfmSessionKey == "" {
			continue
		}
		go func(userID, key string) {
			ctx, cancel := context.WithTimeout(context.Background(), scrobbleTimeout)
			defer cancel()
			if err := fn(ctx, key); err != nil {
				l.log.Debug().Err(err).Str("user", userID).Str("track", t.Title).Msg("scrobble submission failed")
			}
		}(userID, rec.LastfmSessionKey)
	}
}
