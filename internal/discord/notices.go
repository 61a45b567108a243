package discord

import (
	"fmt"

	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
	"groovekeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// renderNotice turns a session notice into user-facing text. Unknown
// keys fall back to the key itself, which is ugly but never silent.
func renderNotice(n player.Notice) string {
	switch n.Key {
	case "player.track_queued":
		return fmt.Sprintf("Queued **%v** at position %v.", n.Params["title"], n.Params["position"])
	case "player.paused":
		return "Paused."
	case "player.resumed":
		return "Resumed."
	case "player.skipped":
		if c, ok := n.Params["count"].(int); ok && c > 1 {
			return fmt.Sprintf("Skipped %d tracks.", c)
		}
		return "Skipped."
	case "player.previous":
		return "Rewound to the previous track."
	case "player.stopped":
		return "Stopped and cleared the queue."
	case "player.volume_set":
		return fmt.Sprintf("Volume set to %v%%.", n.Params["volume"])
	case "player.loop_set":
		return fmt.Sprintf("Loop mode: %v.", n.Params["mode"])
	case "player.shuffle_on":
		return "Shuffle on."
	case "player.shuffle_off":
		return "Shuffle off."
	case "player.track_removed":
		return fmt.Sprintf("Removed **%v** from the queue.", n.Params["title"])
	case "player.track_moved":
		return "Track moved."
	case "player.playback_failed":
		return fmt.Sprintf("Giving up on **%v**: the audio node keeps failing.", n.Params["title"])
	}
	return n.Key
}

// NoticeSink posts session-originated notices (ones with no interaction
// to answer) into the guild's music channel.
func NoticeSink(dg *discordgo.Session, store *storage.Storage, log zerolog.Logger) func(guildID string, n player.Notice) {
	l := log.With().Str("component", "notices").Logger()
	return func(guildID string, n player.Notice) {
		rec, err := store.Guild(guildID)
		if err != nil || rec.MusicChannelID == "" {
			return
		}
		embed := &discordgo.MessageEmbed{Description: renderNotice(n), Color: embedColor}
		if err := messageEmbed(dg, rec.MusicChannelID, embed); err != nil {
			l.Warn().Err(err).Str("guild", guildID).Msg("posting notice failed")
		}
	}
}
