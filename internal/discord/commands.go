package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/keshon/jukebox/internal/command"
)

// commandAPI is the slice of discordgo used to manage guild commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

type hashStore interface {
	GetCommandHashes(guildID string) (map[string]string, error)
	SetCommandHashes(guildID string, hashes map[string]string) error
}

// commandSyncer makes a guild's slash commands match the registry: it deletes
// obsolete ones and creates those whose definition changed.
type commandSyncer struct {
	api     commandAPI
	hashes  hashStore
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newCommandSyncer(api commandAPI, hashes hashStore, log zerolog.Logger) *commandSyncer {
	return &commandSyncer{
		api:     api,
		hashes:  hashes,
		limiter: rate.NewLimiter(rate.Limit(40), 1), // stay well under Discord's limit
		log:     log,
	}
}

func definitions(reg *command.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.All() {
		if def := command.Definition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (cs *commandSyncer) sync(ctx context.Context, appID, guildID string, defs []*discordgo.ApplicationCommand) error {
	remote, err := cs.api.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}

	cached, err := cs.hashes.GetCommandHashes(guildID)
	if err != nil {
		cs.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to read command hashes")
		cached = map[string]string{}
	}

	wanted := make(map[string]string, len(defs))
	for _, d := range defs {
		wanted[d.Name] = hashCommand(d)
	}

	registered := make(map[string]bool, len(remote))
	for _, rc := range remote {
		if _, ok := wanted[rc.Name]; ok {
			registered[rc.Name] = true
			continue
		}
		if err := cs.limiter.Wait(ctx); err != nil {
			return err
		}
		cs.log.Info().Str("guild_id", guildID).Str("command", rc.Name).Msg("deleting obsolete command")
		if err := cs.api.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			cs.log.Error().Err(err).Str("guild_id", guildID).Str("command", rc.Name).Msg("failed to delete command")
		}
		delete(cached, rc.Name)
	}

	for _, d := range defs {
		h := wanted[d.Name]
		if registered[d.Name] && cached[d.Name] == h {
			continue
		}
		if err := cs.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := cs.api.ApplicationCommandCreate(appID, guildID, d); err != nil {
			cs.log.Error().Err(err).Str("guild_id", guildID).Str("command", d.Name).Msg("failed to register command")
			continue
		}
		cached[d.Name] = h
		cs.log.Info().Str("guild_id", guildID).Str("command", d.Name).Msg("registered command")
	}

	return cs.hashes.SetCommandHashes(guildID, cached)
}

// removeAll deletes every command of a blacklisted guild.
func (cs *commandSyncer) removeAll(ctx context.Context, appID, guildID string) {
	existing, err := cs.api.ApplicationCommands(appID, guildID)
	if err != nil {
		cs.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to list commands")
		return
	}
	for _, c := range existing {
		if err := cs.limiter.Wait(ctx); err != nil {
			return
		}
		if err := cs.api.ApplicationCommandDelete(appID, guildID, c.ID); err != nil {
			cs.log.Error().Err(err).Str("guild_id", guildID).Str("command", c.Name).Msg("failed to delete command")
		}
	}
	_ = cs.hashes.SetCommandHashes(guildID, map[string]string{})
}
