package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/sources"
)

const (
	warnColor  = 0xff9900
	errorColor = 0xff0000

	upcomingLimit = 10
	// Discord rejects embed field values above this.
	fieldValueLimit = 1024
)

// FormatDuration renders h:mm:ss, or m:ss under an hour.
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncateField(s string) string {
	if len(s) <= fieldValueLimit {
		return s
	}
	cut := fieldValueLimit - 3
	// don't split a multi-byte rune
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

func thumbnail(t sources.Track) *discordgo.MessageEmbedThumbnail {
	if t.Thumbnail == "" {
		return nil
	}
	return &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
}

func requester(t sources.Track) string {
	if t.RequestedBy == "" {
		return "Unknown"
	}
	return t.RequestedBy
}

func warnEmbed(title, desc string) reply {
	return reply{embed: &discordgo.MessageEmbed{Title: title, Description: desc, Color: warnColor}}
}

func errorEmbed(desc string) reply {
	return reply{embed: &discordgo.MessageEmbed{Title: "❌ Error", Description: desc, Color: errorColor}}
}

func ephemeralText(desc string) reply {
	return reply{embed: &discordgo.MessageEmbed{Description: desc, Color: warnColor}, ephemeral: true}
}

// NowPlayingEmbed is posted to the text channel when a track starts.
func NowPlayingEmbed(t sources.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: fmt.Sprintf("**%s**", t.Title),
		URL:         t.URL,
		Color:       command.EmbedColor,
		Thumbnail:   thumbnail(t),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: FormatDuration(t.Duration), Inline: true},
			{Name: "Requested by", Value: requester(t), Inline: true},
		},
	}
	if t.Playlist != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Playlist",
			Value:  fmt.Sprintf("[%s](%s)", t.Playlist.Name, t.Playlist.URL),
			Inline: true,
		})
	}
	return embed
}

// TrackFailedEmbed reports a track that could not be streamed.
func TrackFailedEmbed(t sources.Track, more bool) *discordgo.MessageEmbed {
	next := "Queue is now empty."
	if more {
		next = "Skipping to next song..."
	}
	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("❌ Error playing **%s**. %s", t.Title, next),
		Color:       errorColor,
	}
}

// QueueEndedEmbed is posted when the last track finished.
func QueueEndedEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "📭 Queue Finished",
		Description: "No more songs in the queue. Leaving the voice channel.",
		Color:       command.EmbedColor,
	}
}

func addedEmbed(t sources.Track, position int, created bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "✅ Added to Queue",
		Description: fmt.Sprintf("**%s**", t.Title),
		URL:         t.URL,
		Color:       command.EmbedColor,
		Thumbnail:   thumbnail(t),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: FormatDuration(t.Duration), Inline: true},
		},
	}
	if !created {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Queue Position", Value: fmt.Sprintf("%d", position), Inline: true,
		})
	}
	return embed
}

func playlistEmbed(name string, tracks []sources.Track, first, last int, created bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "📋 Playlist Added",
		Description: fmt.Sprintf("**%s**\nAdded %d songs to the queue.", name, len(tracks)),
		Color:       command.EmbedColor,
	}
	if len(tracks) > 0 {
		embed.Thumbnail = thumbnail(tracks[0])
	}
	if !created {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Queue Position", Value: fmt.Sprintf("%d-%d", first, last), Inline: true},
		}
	}
	return embed
}

func queueEmbed(current sources.Track, upcoming []sources.Track, all []sources.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "🎵 Music Queue",
		Color:     command.EmbedColor,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "🎶 Now Playing",
				Value: truncateField(fmt.Sprintf("**%s**\nRequested by %s", current.Title, requester(current))),
			},
		},
	}

	if len(upcoming) > 0 {
		lines := make([]string, len(upcoming))
		for i, t := range upcoming {
			lines[i] = fmt.Sprintf("`%d.` **%s**\nRequested by %s", i+1, t.Title, requester(t))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("📋 Up Next (%d/%d shown)", len(upcoming), len(all)-1),
			Value: truncateField(strings.Join(lines, "\n\n")),
		})
	}

	var total time.Duration
	for _, t := range all {
		total += t.Duration
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "📊 Queue Stats",
		Value:  fmt.Sprintf("**Total Songs:** %d\n**Total Duration:** %s", len(all), FormatDuration(total)),
		Inline: true,
	})
	return embed
}
