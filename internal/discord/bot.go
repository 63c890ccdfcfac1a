// Package discord runs the gateway session: it syncs slash commands per
// guild, dispatches interactions to the command registry and exposes voice
// lookups and text notifications to the music layer.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/storage"
)

type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	registry *command.Registry
	syncer   *commandSyncer
	log      zerolog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

func New(cfg *config.Config, store *storage.Storage, registry *command.Registry, logger zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	log := logger.With().Str("component", "discord").Logger()
	return &Bot{
		dg:       dg,
		cfg:      cfg,
		registry: registry,
		syncer:   newCommandSyncer(dg, store, log),
		log:      log,
		ctx:      context.Background(),
	}, nil
}

// Session is the underlying gateway session, valid before Run.
func (b *Bot) Session() *discordgo.Session {
	return b.dg
}

// Run connects and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) runContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

// onGuildCreate fires for every guild on connect and whenever the bot joins one.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log := b.log.With().Str("guild_id", g.ID).Str("guild", g.Name).Logger()

	if b.isGuildBlacklisted(g.ID) {
		log.Info().Msg("leaving blacklisted guild")
		b.syncer.removeAll(b.runContext(), s.State.User.ID, g.ID)
		if err := s.GuildLeave(g.ID); err != nil {
			log.Error().Err(err).Msg("failed to leave guild")
		}
		return
	}

	if !b.cfg.InitSlashCommands {
		log.Debug().Msg("slash command registration skipped")
		return
	}

	go func() {
		if err := b.syncer.sync(b.runContext(), s.State.User.ID, g.ID, definitions(b.registry)); err != nil {
			log.Error().Err(err).Msg("failed to sync slash commands")
		}
	}()
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name

	c, ok := b.registry.Get(name)
	if !ok {
		b.log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	inv := &command.Invocation{Data: &command.SlashContext{Session: s, Event: i}}
	if err := c.Run(b.runContext(), inv); err != nil {
		b.log.Error().Err(err).Str("command", name).Str("guild_id", i.GuildID).Msg("error running slash command")
		_ = command.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: errorText(err),
			Color:       command.EmbedColor,
		})
	}
}

func errorText(err error) string {
	if errors.Is(err, command.ErrGuildOnly) {
		return "This command can only be used in a server!"
	}
	return fmt.Sprintf("Error running slash command: %v", err)
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}
