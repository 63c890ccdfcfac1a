package music

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/storage"
)

// guard enforces: caller in voice, a queue exists, caller shares the bot's
// channel. verb completes "You need to be in a voice channel to ...".
func (c *MusicCommand) guard(req request, verb, noQueue string) (queue.Snapshot, *reply) {
	channelID, err := c.Voice.UserVoiceChannel(req.guildID, req.userID)
	if err != nil || channelID == "" {
		r := ephemeralText(fmt.Sprintf("You need to be in a voice channel to %s!", verb))
		return queue.Snapshot{}, &r
	}

	snap, ok := c.Player.Store().Snapshot(req.guildID)
	if !ok {
		r := warnEmbed("📭 No Active Queue", noQueue)
		return queue.Snapshot{}, &r
	}

	if snap.VoiceChannelID != channelID {
		r := ephemeralText(fmt.Sprintf("You need to be in the same voice channel as the bot to %s!", verb))
		return queue.Snapshot{}, &r
	}
	return snap, nil
}

func footer(action, user string) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%s by %s", action, user)}
}

func (c *MusicCommand) pause(req request) reply {
	snap, denied := c.guard(req, "pause music", "There is no active music to pause.")
	if denied != nil {
		return *denied
	}
	if !snap.Playing {
		return warnEmbed("⏸️ Already Paused", "The music is already paused. Use `/music resume` to continue playing.")
	}
	if !c.Player.Pause(req.guildID) {
		return errorEmbed("Failed to pause the music. Please try again.")
	}
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "⏸️ Music Paused",
		Description: "Music has been paused. Use `/music resume` to continue playing.",
		Color:       command.EmbedColor,
		Footer:      footer("Paused", req.userName),
	}}
}

func (c *MusicCommand) resume(req request) reply {
	snap, denied := c.guard(req, "resume music", "There is no active music to resume.")
	if denied != nil {
		return *denied
	}
	if snap.Playing {
		return warnEmbed("▶️ Already Playing", "The music is already playing.")
	}
	if !c.Player.Resume(req.guildID) {
		return errorEmbed("Failed to resume the music. Please try again.")
	}
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "▶️ Music Resumed",
		Description: "Music has been resumed.",
		Color:       command.EmbedColor,
		Footer:      footer("Resumed", req.userName),
	}}
}

func (c *MusicCommand) skip(req request) reply {
	snap, denied := c.guard(req, "skip songs", "There is no active music queue to skip.")
	if denied != nil {
		return *denied
	}
	if snap.Current == nil || len(snap.Tracks) == 0 {
		return warnEmbed("📭 Nothing to Skip", "There is no song currently playing to skip.")
	}
	if !c.Player.Skip(req.guildID) {
		return errorEmbed("Failed to skip the current song. Please try again.")
	}
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "⏭️ Song Skipped",
		Description: fmt.Sprintf("Skipped **%s**", snap.Current.Title),
		Color:       command.EmbedColor,
		Footer:      footer("Skipped", req.userName),
	}}
}

func (c *MusicCommand) stop(req request) reply {
	snap, denied := c.guard(req, "stop music", "There is no active music to stop.")
	if denied != nil {
		return *denied
	}

	c.Player.Shutdown(req.guildID)

	desc := "Stopped playing"
	if snap.Current != nil {
		desc += fmt.Sprintf(" **%s**", snap.Current.Title)
	}
	desc += fmt.Sprintf(" and cleared %s from the queue.", songs(len(snap.Tracks)))
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "⏹️ Music Stopped",
		Description: desc,
		Color:       command.EmbedColor,
		Footer:      footer("Stopped", req.userName),
	}}
}

func (c *MusicCommand) clear(req request) reply {
	snap, denied := c.guard(req, "clear the queue", "There is no active music queue to clear.")
	if denied != nil {
		return *denied
	}
	if len(snap.Tracks) <= 1 {
		desc := "The queue is already empty."
		if snap.Current != nil {
			desc = "Only the currently playing song remains in the queue."
		}
		return warnEmbed("📭 Queue Already Empty", desc)
	}

	removed, ok := c.Player.Clear(req.guildID)
	if !ok {
		return errorEmbed("Failed to clear the queue. Please try again.")
	}

	desc := fmt.Sprintf("Successfully cleared %s from the queue.", songs(removed))
	if snap.Current != nil {
		desc += "\n\nThe currently playing song will continue."
	}
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "🗑️ Queue Cleared",
		Description: desc,
		Color:       command.EmbedColor,
		Footer:      footer("Cleared", req.userName),
	}}
}

func (c *MusicCommand) showQueue(req request) reply {
	snap, ok := c.Player.Store().Snapshot(req.guildID)
	if !ok || len(snap.Tracks) == 0 {
		return warnEmbed("📭 Queue Empty", "The queue is currently empty. Use `/music play` to add some music!")
	}

	current := snap.Tracks[0]
	if snap.Current != nil {
		current = *snap.Current
	}
	upcoming := c.Player.Store().Upcoming(req.guildID, upcomingLimit)
	return reply{embed: queueEmbed(current, upcoming, snap.Tracks)}
}

func (c *MusicCommand) nowPlaying(req request) reply {
	snap, ok := c.Player.Store().Snapshot(req.guildID)
	if !ok || snap.Current == nil {
		return warnEmbed("🔇 Nothing Playing", "Nothing is playing right now. Use `/music play` to start.")
	}
	embed := NowPlayingEmbed(*snap.Current)
	if !snap.Playing {
		embed.Title = "⏸️ Paused"
	}
	return reply{embed: embed}
}

func (c *MusicCommand) setVolume(req request) reply {
	if req.volume < 0 || req.volume > 100 {
		return ephemeralText("Volume must be between 0 and 100.")
	}

	if _, ok := c.Player.Store().Snapshot(req.guildID); ok {
		if _, denied := c.guard(req, "change the volume", "There is no active music."); denied != nil {
			return *denied
		}
		c.Player.SetVolume(req.guildID, req.volume)
	}

	if c.Prefs != nil {
		if err := c.Prefs.SetVolume(req.guildID, req.volume); err != nil {
			c.Logger.Warn().Err(err).Str("guild_id", req.guildID).Msg("failed to persist volume")
		}
	}

	return reply{embed: &discordgo.MessageEmbed{
		Title:       "🔊 Volume Set",
		Description: fmt.Sprintf("Volume set to **%d%%**.", req.volume),
		Color:       command.EmbedColor,
		Footer:      footer("Changed", req.userName),
	}}
}

func songs(n int) string {
	if n == 1 {
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

var _ Preferences = (*storage.Storage)(nil)
