package music

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources"
)

// Controller is the playback surface the command drives.
type Controller interface {
	Submit(ctx context.Context, guildID string, b queue.Binding, tracks []sources.Track) (player.SubmitResult, error)
	Pause(guildID string) bool
	Resume(guildID string) bool
	Skip(guildID string) bool
	Shutdown(guildID string) bool
	Clear(guildID string) (int, bool)
	SetVolume(guildID string, volume int) bool
	Store() *queue.Store
}

type Resolver interface {
	Resolve(ctx context.Context, raw, requestedBy string) (*source_resolver.Result, error)
}

// VoiceLocator finds the voice channel a member is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, error)
}

// Preferences persists per-guild settings.
type Preferences interface {
	GetVolume(guildID string) (int, bool, error)
	SetVolume(guildID string, volume int) error
}

type MusicCommand struct {
	Player        Controller
	Resolver      Resolver
	Voice         VoiceLocator
	Prefs         Preferences
	DefaultVolume int
	Logger        zerolog.Logger
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := float64(0)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a song or playlist from YouTube",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "YouTube URL or search query",
						Required:    true,
					},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "pause", Description: "Pause the current song"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "resume", Description: "Resume the paused song"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "skip", Description: "Skip the current song"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "stop", Description: "Stop the music and clear the queue"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "clear", Description: "Clear the queue, keeping the current song"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "queue", Description: "Show the current music queue"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "nowplaying", Description: "Show the song that is playing"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Set the playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "Volume from 0 to 100",
						Required:    true,
						MinValue:    &minVolume,
						MaxValue:    100,
					},
				},
			},
		},
	}
}

// request is the transport-free view of one invocation.
type request struct {
	guildID       string
	textChannelID string
	userID        string
	userName      string
	sub           string
	query         string
	volume        int
}

// reply is what a handler wants shown; play edits a deferred response.
type reply struct {
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

func parseRequest(e *discordgo.InteractionCreate) (request, error) {
	data := e.ApplicationCommandData()
	if len(data.Options) == 0 {
		return request{}, fmt.Errorf("missing subcommand")
	}
	sub := data.Options[0]
	req := request{
		guildID:       e.GuildID,
		textChannelID: e.ChannelID,
		userID:        command.User(e).ID,
		userName:      command.DisplayName(e),
		sub:           sub.Name,
	}
	for _, opt := range sub.Options {
		switch opt.Name {
		case "query":
			req.query = opt.StringValue()
		case "level":
			req.volume = int(opt.IntValue())
		}
	}
	return req, nil
}

func (c *MusicCommand) Run(ctx context.Context, sc *command.SlashContext) error {
	s, e := sc.Session, sc.Event

	req, err := parseRequest(e)
	if err != nil {
		return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "Missing subcommand."})
	}

	if req.sub == "play" {
		if err := command.RespondDeferred(s, e); err != nil {
			return fmt.Errorf("failed to send deferred response: %w", err)
		}
		r := c.play(ctx, req)
		return command.EditResponseEmbed(s, e, r.embed)
	}

	r := c.dispatch(req)
	if r.ephemeral {
		return command.RespondEmbedEphemeral(s, e, r.embed)
	}
	return command.RespondEmbed(s, e, r.embed)
}

func (c *MusicCommand) dispatch(req request) reply {
	switch req.sub {
	case "pause":
		return c.pause(req)
	case "resume":
		return c.resume(req)
	case "skip":
		return c.skip(req)
	case "stop":
		return c.stop(req)
	case "clear":
		return c.clear(req)
	case "queue":
		return c.showQueue(req)
	case "nowplaying":
		return c.nowPlaying(req)
	case "volume":
		return c.setVolume(req)
	default:
		return reply{embed: &discordgo.MessageEmbed{Description: fmt.Sprintf("Unknown subcommand: %s", req.sub)}, ephemeral: true}
	}
}
