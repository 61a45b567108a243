package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
	"groovekeeper/internal/presence"
	"groovekeeper/internal/storage"
)

// Surface renders the status display into each guild's pinned music
// channel as a single message that gets edited in place. The message ID
// is persisted so a restart keeps editing the same message instead of
// littering the channel.
type Surface struct {
	dg    *discordgo.Session
	store *storage.Storage
	log   zerolog.Logger

	mu       sync.Mutex
	messages map[string]string // guildID -> message ID, cached over storage
}

var _ presence.Surface = (*Surface)(nil)

func NewSurface(dg *discordgo.Session, store *storage.Storage, log zerolog.Logger) *Surface {
	return &Surface{
		dg:       dg,
		store:    store,
		log:      log.With().Str("component", "surface").Logger(),
		messages: make(map[string]string),
	}
}

// Render implements presence.Surface.
func (sf *Surface) Render(ctx context.Context, guildID string, v presence.View) error {
	rec, err := sf.store.Guild(guildID)
	if err != nil {
		return err
	}
	if rec.MusicChannelID == "" {
		return nil // no pinned channel, nothing to draw on
	}

	embed := buildEmbed(v)
	components := buildComponents(v)

	messageID := sf.messageID(guildID, rec)
	if messageID != "" {
		_, err := sf.dg.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         messageID,
			Channel:    rec.MusicChannelID,
			Embeds:     &[]*discordgo.MessageEmbed{embed},
			Components: &components,
		}, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		// The message was probably deleted by hand; fall through and
		// post a fresh one.
		sf.log.Debug().Err(err).Str("guild", guildID).Msg("status edit failed, reposting")
	}

	msg, err := sf.dg.ChannelMessageSendComplex(rec.MusicChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}

	sf.mu.Lock()
	sf.messages[guildID] = msg.ID
	sf.mu.Unlock()
	if err := sf.store.SetPresenceMessage(guildID, msg.ID); err != nil {
		sf.log.Warn().Err(err).Str("guild", guildID).Msg("persisting status message ID failed")
	}
	return nil
}

// Clear implements presence.Surface.
func (sf *Surface) Clear(ctx context.Context, guildID string) error {
	rec, err := sf.store.Guild(guildID)
	if err != nil {
		return err
	}
	messageID := sf.messageID(guildID, rec)
	if rec.MusicChannelID == "" || messageID == "" {
		return nil
	}

	err = sf.dg.ChannelMessageDelete(rec.MusicChannelID, messageID, discordgo.WithContext(ctx))

	sf.mu.Lock()
	delete(sf.messages, guildID)
	sf.mu.Unlock()
	if serr := sf.store.SetPresenceMessage(guildID, ""); serr != nil {
		sf.log.Warn().Err(serr).Str("guild", guildID).Msg("clearing status message ID failed")
	}
	return err
}

func (sf *Surface) messageID(guildID string, rec storage.GuildRecord) string {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if id, ok := sf.messages[guildID]; ok {
		return id
	}
	if rec.PresenceMessageID != "" {
		sf.messages[guildID] = rec.PresenceMessageID
	}
	return rec.PresenceMessageID
}

func buildEmbed(v presence.View) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Color: embedColor}

	if v.TrackTitle == "" || v.State == player.StateIdle || v.State == player.StateEnded || v.State == player.StateStopped {
		embed.Title = "Nothing playing"
		embed.Description = "Use `/play` to queue something up."
		return embed
	}

	switch v.State {
	case player.StateLoading:
		embed.Title = "Loading…"
	case player.StatePaused:
		embed.Title = "Paused"
	default:
		embed.Title = "Now playing"
	}

	embed.Description = fmt.Sprintf("**[%s](%s)**\nby %s", v.TrackTitle, v.TrackURI, v.Artist)
	if v.Artwork != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: v.Artwork}
	}

	position := formatDuration(time.Duration(v.PositionMS) * time.Millisecond)
	length := formatDuration(time.Duration(v.DurationMS) * time.Millisecond)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Position", Value: fmt.Sprintf("%s / %s", position, length), Inline: true},
		{Name: "Volume", Value: fmt.Sprintf("%d%%", v.Volume), Inline: true},
		{Name: "Up next", Value: fmt.Sprintf("%d", v.QueueLen), Inline: true},
	}
	if v.Loop != player.LoopOff {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Loop", Value: v.Loop.String(), Inline: true})
	}
	if v.Shuffle {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Shuffle", Value: "on", Inline: true})
	}
	if v.Requester != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + v.Requester}
	}
	return embed
}

func buildComponents(v presence.View) []discordgo.MessageComponent {
	playPause := discordgo.Button{Label: "⏸ Pause", Style: discordgo.PrimaryButton, CustomID: "player:pause"}
	if v.State == player.StatePaused {
		playPause = discordgo.Button{Label: "▶ Resume", Style: discordgo.PrimaryButton, CustomID: "player:resume"}
	}

	controls := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "⏮", Style: discordgo.SecondaryButton, CustomID: "player:previous"},
		playPause,
		discordgo.Button{Label: "⏭", Style: discordgo.SecondaryButton, CustomID: "player:skip"},
		discordgo.Button{Label: "⏹ Stop", Style: discordgo.DangerButton, CustomID: "player:stop"},
	}}
	modes := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "🔁 Loop", Style: modeStyle(v.Loop != player.LoopOff), CustomID: "player:loop"},
		discordgo.Button{Label: "🔀 Shuffle", Style: modeStyle(v.Shuffle), CustomID: "player:shuffle"},
	}}
	return []discordgo.MessageComponent{controls, modes}
}

func modeStyle(active bool) discordgo.ButtonStyle {
	if active {
		return discordgo.SuccessButton
	}
	return discordgo.SecondaryButton
}
