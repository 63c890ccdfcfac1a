package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/health"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const appName = "jukebox"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logging is not configured yet
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cfg.LogConsole,
	})
	log.Info().Msgf("starting %s bot", appName)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("bot exited with error")
	}
	log.Info().Msg("discord bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath, logging.Component(log, "storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	httpClient, err := youtube.NewHTTPClient(cfg.ProxyURL, log)
	if err != nil {
		return err
	}
	videos := youtube.NewVideoClient(httpClient)
	data, err := youtube.NewDataClient(ctx, cfg.YouTubeAPIKey)
	if err != nil {
		return err
	}
	if !data.Configured() {
		log.Warn().Msg("YOUTUBE_API_KEY is not set, search and playlists are disabled")
	}

	resolver := source_resolver.New(videos, data, data, resolverOptions(cfg, log))

	registry := command.NewRegistry()
	bot, err := discord.New(cfg, store, registry, log)
	if err != nil {
		return err
	}

	opener := stream.NewOpener(stream.OpenerOptions{
		Client: videos.Client(),
		Proxy:  cfg.ProxyURL,
		Logger: log,
	})
	transport := stream.NewTransport(bot.Session(), opener, cfg.VoiceReadyTimeout, log)

	queues := queue.NewStore()
	notifier := discord.NewNotifier(bot.Session(), queues, log)
	controller := player.New(queues, transport, player.Options{
		Notifier: notifier,
		Recorder: discord.NewHistoryRecorder(store, log),
		Logger:   log,
	})

	err = command.RegisterDiscord(registry,
		&music.MusicCommand{
			Player:        controller,
			Resolver:      resolver,
			Voice:         bot,
			Prefs:         store,
			DefaultVolume: cfg.DefaultVolume,
			Logger:        log,
		},
		command.WithGuildOnly(),
		command.WithCommandLogger(store, log),
	)
	if err != nil {
		return err
	}

	hs := health.New(cfg.HealthAddr, func() int { return len(queues.Guilds()) }, log)
	go func() {
		if err := hs.Run(ctx); err != nil {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("received signal, shutting down")
	case runErr = <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("discord bot error")
		}
	}

	// voice connections go before the gateway
	controller.Close()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	notifier.Close(shutdownCtx)
	stop()

	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = err
	}
	return runErr
}

// resolverOptions applies RESOLVE_TIMEOUT to every provider attempt.
func resolverOptions(cfg *config.Config, log zerolog.Logger) source_resolver.Options {
	opts := source_resolver.DefaultOptions()
	if cfg.ResolveTimeout > 0 {
		opts.AttemptTimeout = cfg.ResolveTimeout
	}
	opts.Limiter = retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5)
	opts.Logger = log
	return opts
}
