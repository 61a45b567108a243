package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"groovekeeper/internal/audionode"
	"groovekeeper/internal/config"
	"groovekeeper/internal/discord"
	"groovekeeper/internal/logging"
	"groovekeeper/internal/player"
	"groovekeeper/internal/presence"
	"groovekeeper/internal/router"
	"groovekeeper/internal/scrobble"
	"groovekeeper/internal/storage"
	v "groovekeeper/internal/version"
	"groovekeeper/pkg/jobmgr"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		bootLog := logging.New("info", "")
		bootLog.Fatal().Err(err).Msg("loading configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("version", v.AppVersion).Msgf("starting %s", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening datastore")
	}
	defer store.Close()

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Msg("creating Discord session")
	}
	self, err := dg.User("@me")
	if err != nil {
		log.Fatal().Err(err).Msg("fetching bot identity")
	}

	node := audionode.New(audionode.Config{
		Addr:       cfg.NodeAddr,
		Password:   cfg.NodePassword,
		Secure:     cfg.NodeSecure,
		UserID:     self.ID,
		ClientName: v.AppName + "/" + v.AppVersion,
	}, log)

	surface := discord.NewSurface(dg, store, log)
	publisher := presence.NewPublisher(surface, cfg.RenderInterval, log)
	noticeSink := discord.NoticeSink(dg, store, log)

	lastfm := scrobble.New(cfg.LastFMAPIKey, cfg.LastFMSecret, log)
	var scrobbler player.Scrobbler
	if lastfm != nil {
		scrobbler = discord.NewListenerScrobbler(dg, store, lastfm, log)
	} else {
		log.Info().Msg("last.fm keys not set, scrobbling disabled")
	}

	registry := player.NewRegistry(func(guildID string) *player.Session {
		return player.NewSession(player.SessionConfig{
			GuildID:     guildID,
			Node:        node,
			Volume:      store.Volume(guildID, cfg.DefaultVolume),
			RetryBudget: cfg.NodeRetryBudget,
			OnChange:    publisher.Notify,
			OnNotice: func(n player.Notice) {
				go noticeSink(guildID, n)
			},
			OnVolumeChange: func(gid string, volume int) {
				if err := store.SetVolume(gid, volume); err != nil {
					log.Warn().Err(err).Str("guild", gid).Msg("persisting volume failed")
				}
			},
			Scrobbler: scrobbler,
			Logger:    log,
		})
	}, cfg.IdleTimeout, publisher.Close, log)

	rtr := router.New(registry, log)
	bot := discord.NewBot(dg, cfg, store, registry, rtr, lastfm, log)

	jm := jobmgr.NewManager(jobReporter(log))
	mustStart(log, jm.StartAsync(ctx, "node", node.Run))
	mustStart(log, jm.StartAsync(ctx, "events", func(ctx context.Context) error {
		for ev := range node.Events() {
			registry.Dispatch(ev)
		}
		return nil
	}))
	mustStart(log, jm.StartAsync(ctx, "sweep", func(ctx context.Context) error {
		return registry.Sweep(ctx, cfg.SweepInterval)
	}))

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("discord bot error")
		}
	}
	cancel()

	registry.Shutdown()
	jm.StopAll()
	jm.Wait()
	log.Info().Msg("exited cleanly")
}

func mustStart(log zerolog.Logger, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("starting background job")
	}
}

func jobReporter(log zerolog.Logger) jobmgr.StatusReporter {
	return func(msg string) {
		log.Debug().Str("job", msg).Msg("job status")
	}
}
