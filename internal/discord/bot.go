package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groovekeeper/internal/config"
	"groovekeeper/internal/player"
	"groovekeeper/internal/router"
	"groovekeeper/internal/scrobble"
	"groovekeeper/internal/storage"
)

// actionNamespace keys action IDs off Discord interaction IDs, so a
// redelivered interaction maps to the same action.
var actionNamespace = uuid.MustParse("8cbf0e21-9d3c-44a5-9c3e-1f6f33a1b0d7")

// Bot is the Discord-facing edge: it turns interactions into control
// actions and answers with what the router reports back.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	store    *storage.Storage
	registry *player.Registry
	router   *router.Router
	lastfm   *scrobble.Client
	log      zerolog.Logger
}

// NewBot wires an already-created Discord session to the control plane.
func NewBot(dg *discordgo.Session, cfg *config.Config, store *storage.Storage, reg *player.Registry, rtr *router.Router, lastfm *scrobble.Client, log zerolog.Logger) *Bot {
	return &Bot{
		dg:       dg,
		cfg:      cfg,
		store:    store,
		registry: reg,
		router:   rtr,
		lastfm:   lastfm,
		log:      log.With().Str("component", "discord").Logger(),
	}
}

// Run opens the gateway connection and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := s.State.User.ID
	if _, err := s.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions()); err != nil {
		b.log.Error().Err(err).Msg("registering slash commands failed")
	}
	b.log.Info().Str("user", s.State.User.Username).Int("guilds", len(r.Guilds)).Msg("bot is running")
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// actor resolves who issued the interaction and whether they count as an
// operator: DJ role holder, or anyone with Manage Guild.
func (b *Bot) actor(i *discordgo.InteractionCreate) router.Actor {
	a := router.Actor{ID: i.Member.User.ID}
	if i.Member.Permissions&discordgo.PermissionManageServer != 0 {
		a.Operator = true
		return a
	}
	rec, err := b.store.Guild(i.GuildID)
	if err == nil && rec.DJRoleID != "" && slices.Contains(i.Member.Roles, rec.DJRoleID) {
		a.Operator = true
	}
	return a
}

// inMusicChannel enforces the pinned music channel when one is set.
func (b *Bot) inMusicChannel(i *discordgo.InteractionCreate) (bool, string) {
	rec, err := b.store.Guild(i.GuildID)
	if err != nil || rec.MusicChannelID == "" {
		return true, ""
	}
	return i.ChannelID == rec.MusicChannelID, rec.MusicChannelID
}

func (b *Bot) handleSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	switch data.Name {
	case "musicchannel":
		b.handleMusicChannel(s, i, data)
		return
	case "setdj":
		b.handleSetDJ(s, i, data)
		return
	case "scrobble":
		b.handleScrobble(s, i, data)
		return
	case "queue":
		b.handleQueue(s, i)
		return
	}

	if ok, channelID := b.inMusicChannel(i); !ok {
		respondEphemeral(s, i, fmt.Sprintf("Playback commands live in <#%s>.", channelID))
		return
	}

	action, ok := b.slashAction(i, data)
	if !ok {
		respondEphemeral(s, i, "Unknown command.")
		return
	}

	res, err := b.router.Dispatch(action)
	if err != nil {
		respondEphemeral(s, i, describeError(err))
		return
	}
	respond(s, i, renderNotice(res.Notice))
}

// slashAction maps one slash command to a control action.
func (b *Bot) slashAction(i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (router.Action, bool) {
	a := router.Action{
		ID:      uuid.NewSHA1(actionNamespace, []byte(i.ID)),
		GuildID: i.GuildID,
		Actor:   b.actor(i),
	}

	switch data.Name {
	case "play":
		a.Kind = router.KindEnqueue
		query := data.Options[0].StringValue()
		t := trackFromQuery(query, i.Member)
		a.Track = &t
	case "pause":
		a.Kind = router.KindPause
	case "resume":
		a.Kind = router.KindResume
	case "skip":
		a.Kind = router.KindSkip
		for _, opt := range data.Options {
			if opt.Name == "count" {
				a.Count = int(opt.IntValue())
			}
		}
	case "previous":
		a.Kind = router.KindPrevious
	case "stop":
		a.Kind = router.KindStop
	case "volume":
		a.Kind = router.KindVolume
		a.Volume = int(data.Options[0].IntValue())
	case "loop":
		a.Kind = router.KindLoop
		a.Loop = loopModeFromOption(data.Options[0].StringValue())
	case "shuffle":
		a.Kind = router.KindShuffle
	case "remove":
		a.Kind = router.KindRemove
		a.Index = int(data.Options[0].IntValue()) - 1
	case "move":
		a.Kind = router.KindMove
		a.From = int(data.Options[0].IntValue()) - 1
		a.To = int(data.Options[1].IntValue()) - 1
	default:
		return router.Action{}, false
	}
	return a, true
}

// Component custom IDs follow "player:<op>", stamped on the status
// display's buttons.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	op, ok := strings.CutPrefix(customID, "player:")
	if !ok {
		return
	}

	a := router.Action{
		ID:      uuid.NewSHA1(actionNamespace, []byte(i.ID)),
		GuildID: i.GuildID,
		Actor:   b.actor(i),
	}

	switch op {
	case "pause":
		a.Kind = router.KindPause
	case "resume":
		a.Kind = router.KindResume
	case "skip":
		a.Kind = router.KindSkip
	case "previous":
		a.Kind = router.KindPrevious
	case "stop":
		a.Kind = router.KindStop
	case "shuffle":
		a.Kind = router.KindShuffle
	case "loop":
		a.Kind = router.KindLoop
		a.Loop = b.nextLoopMode(i.GuildID)
	default:
		b.log.Warn().Str("custom_id", customID).Msg("unknown component op")
		return
	}

	if _, err := b.router.Dispatch(a); err != nil {
		if errors.Is(err, router.ErrDuplicateAction) {
			ackUpdate(s, i)
			return
		}
		respondEphemeral(s, i, describeError(err))
		return
	}
	// The status display re-renders on the resulting state change, so an
	// acknowledgement is all the button needs.
	ackUpdate(s, i)
}

// nextLoopMode cycles off -> track -> queue for the loop button.
func (b *Bot) nextLoopMode(guildID string) player.LoopMode {
	s, ok := b.registry.Lookup(guildID)
	if !ok {
		return player.LoopTrack
	}
	snap, err := s.Snapshot()
	if err != nil {
		return player.LoopTrack
	}
	switch snap.Loop {
	case player.LoopOff:
		return player.LoopTrack
	case player.LoopTrack:
		return player.LoopQueue
	default:
		return player.LoopOff
	}
}

func (b *Bot) handleQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Lookup(i.GuildID)
	if !ok {
		respondEphemeral(s, i, "Nothing is queued.")
		return
	}
	tracks, current, err := sess.TrackList()
	if err != nil || len(tracks) == 0 {
		respondEphemeral(s, i, "Nothing is queued.")
		return
	}

	var sb strings.Builder
	for n, t := range tracks {
		marker := "  "
		if n == current {
			marker = "▶ "
		}
		fmt.Fprintf(&sb, "%s`%2d.` [%s](%s) — %s\n", marker, n+1, t.Title, t.URI, formatDuration(t.Duration))
		if sb.Len() > 3500 {
			fmt.Fprintf(&sb, "… and %d more\n", len(tracks)-n-1)
			break
		}
	}
	respondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       embedColor,
	})
}

func (b *Bot) handleMusicChannel(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.actor(i).Operator {
		respondEphemeral(s, i, describeError(router.ErrUnauthorized))
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "set":
		ch := sub.Options[0].ChannelValue(s)
		if ch == nil || ch.Type != discordgo.ChannelTypeGuildText {
			respondEphemeral(s, i, "Pick a text channel.")
			return
		}
		if err := b.store.SetMusicChannel(i.GuildID, ch.ID); err != nil {
			respondEphemeral(s, i, describeError(err))
			return
		}
		respond(s, i, fmt.Sprintf("Music channel pinned to <#%s>.", ch.ID))
	case "remove":
		if err := b.store.SetMusicChannel(i.GuildID, ""); err != nil {
			respondEphemeral(s, i, describeError(err))
			return
		}
		respond(s, i, "Music channel unpinned; playback commands work anywhere again.")
	}
}

func (b *Bot) handleSetDJ(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if i.Member.Permissions&discordgo.PermissionManageServer == 0 {
		respondEphemeral(s, i, describeError(router.ErrUnauthorized))
		return
	}
	role := data.Options[0].RoleValue(s, i.GuildID)
	if role == nil {
		respondEphemeral(s, i, "Pick a role.")
		return
	}
	if err := b.store.SetDJRole(i.GuildID, role.ID); err != nil {
		respondEphemeral(s, i, describeError(err))
		return
	}
	respond(s, i, fmt.Sprintf("DJ role set to %s.", role.Name))
}

func (b *Bot) handleScrobble(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if b.lastfm == nil {
		respondEphemeral(s, i, "Scrobbling is not configured on this bot.")
		return
	}
	userID := i.Member.User.ID
	sub := data.Options[0]
	switch sub.Name {
	case "link":
		token := sub.Options[0].StringValue()
		username, key, err := b.lastfm.GetSession(context.Background(), token)
		if err != nil {
			respondEphemeral(s, i, fmt.Sprintf("Linking failed: %v\nGrant access first at %s", err, b.lastfm.AuthURL()))
			return
		}
		if err := b.store.SetLastfmSession(userID, username, key); err != nil {
			respondEphemeral(s, i, describeError(err))
			return
		}
		respondEphemeral(s, i, fmt.Sprintf("Linked to Last.fm as **%s**. Scrobbling is on.", username))
	case "on":
		if err := b.store.SetScrobbling(userID, true); err != nil {
			respondEphemeral(s, i, describeError(err))
			return
		}
		respondEphemeral(s, i, "Scrobbling enabled.")
	case "off":
		if err := b.store.SetScrobbling(userID, false); err != nil {
			respondEphemeral(s, i, describeError(err))
			return
		}
		respondEphemeral(s, i, "Scrobbling disabled.")
	}
}

// trackFromQuery builds a track from what the user typed. Resolution of
// searches into concrete media is the audio node's job; the bot only
// carries the reference through.
func trackFromQuery(query string, m *discordgo.Member) player.Track {
	t := player.Track{
		ID:          uuid.NewString(),
		Title:       query,
		URI:         query,
		Requester:   m.User.Username,
		RequesterID: m.User.ID,
	}
	if m.Nick != "" {
		t.Requester = m.Nick
	}
	return t
}

func loopModeFromOption(v string) player.LoopMode {
	switch v {
	case "track":
		return player.LoopTrack
	case "queue":
		return player.LoopQueue
	}
	return player.LoopOff
}

// describeError maps control-plane errors onto user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, router.ErrUnauthorized):
		return "You need the DJ role or Manage Guild for that."
	case errors.Is(err, router.ErrNoSession), errors.Is(err, player.ErrNoTrackPlaying):
		return "Nothing is playing."
	case errors.Is(err, player.ErrVolumeOutOfRange):
		return fmt.Sprintf("Volume must be between 0 and %d.", player.MaxVolume)
	case errors.Is(err, player.ErrInvalidTarget):
		return "There is nothing there to jump to."
	case errors.Is(err, player.ErrIndexOutOfRange):
		return "No track at that position."
	case errors.Is(err, player.ErrTrackInUse):
		return "That track is playing right now; skip it instead."
	case errors.Is(err, player.ErrSessionClosed):
		return "The player just shut down; try again."
	case errors.Is(err, router.ErrDuplicateAction):
		return "Already done."
	}
	return fmt.Sprintf("Something went wrong: %v", err)
}
