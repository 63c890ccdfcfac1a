package command

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/storage"
)

var ErrGuildOnly = errors.New("this command can only be used in a server")

// HistoryWriter is the part of storage the command logger needs.
type HistoryWriter interface {
	AppendCommandToHistory(guildID string, c storage.CommandHistory) error
}

// WithGuildOnly rejects slash invocations outside a guild.
func WithGuildOnly() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if sc, ok := inv.Data.(*SlashContext); ok && sc.Event.GuildID == "" {
				return ErrGuildOnly
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger records every slash invocation in the guild's history
// after it ran.
func WithCommandLogger(w HistoryWriter, logger zerolog.Logger) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			err := c.Run(ctx, inv)

			sc, ok := inv.Data.(*SlashContext)
			if !ok || sc.Event.GuildID == "" {
				return err
			}

			e := sc.Event
			user := User(e)
			entry := storage.CommandHistory{
				ChannelID: e.ChannelID,
				UserID:    user.ID,
				Username:  user.Username,
				Command:   c.Name(),
				Param:     invocationParam(e),
				Datetime:  time.Now(),
			}
			entry.ChannelName, entry.GuildName = lookupNames(sc.Session, e.GuildID, e.ChannelID)

			if werr := w.AppendCommandToHistory(e.GuildID, entry); werr != nil {
				logger.Warn().Err(werr).Str("command", c.Name()).Msg("failed to log command")
			}
			return err
		})
	}
}

// invocationParam renders "sub value" from the first subcommand and its
// options, e.g. "play never gonna give you up".
func invocationParam(e *discordgo.InteractionCreate) string {
	if e.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	data := e.ApplicationCommandData()
	var parts []string
	for _, opt := range data.Options {
		parts = append(parts, opt.Name)
		for _, sub := range opt.Options {
			if v := optionString(sub); v != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, " ")
}

func optionString(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch o.Type {
	case discordgo.ApplicationCommandOptionString:
		return o.StringValue()
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(o.IntValue(), 10)
	default:
		return ""
	}
}

func lookupNames(s *discordgo.Session, guildID, channelID string) (channelName, guildName string) {
	if s == nil || s.State == nil {
		return "", ""
	}
	if ch, err := s.State.Channel(channelID); err == nil {
		channelName = ch.Name
	}
	if g, err := s.State.Guild(guildID); err == nil {
		guildName = g.Name
	}
	return channelName, guildName
}
