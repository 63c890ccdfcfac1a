package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// SlashContext is what the Discord runtime passes when a slash command runs.
type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta lets middleware read grouping without knowing the concrete
// command type.
type DiscordMeta interface {
	Group() string
	Category() string
}

// DiscordCommand is what individual Discord commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	Run(ctx context.Context, sc *SlashContext) error
}

// DiscordAdapter puts a DiscordCommand into the universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string       { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string    { return a.Cmd.Category() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *Invocation) error {
	sc, ok := inv.Data.(*SlashContext)
	if !ok {
		return nil
	}
	return a.Cmd.Run(ctx, sc)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterDiscord wraps c in the adapter, applies mws and registers it.
func RegisterDiscord(r *Registry, c DiscordCommand, mws ...Middleware) error {
	return r.Register(Apply(&DiscordAdapter{Cmd: c}, mws...))
}

// Definition returns the application command for c, looking through any
// middleware, or nil when c is not a slash command.
func Definition(c Command) *discordgo.ApplicationCommand {
	sp, ok := Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}
