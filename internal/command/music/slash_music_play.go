package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources"
)

func (c *MusicCommand) play(ctx context.Context, req request) reply {
	if req.query == "" {
		return errorEmbed("Query is required.")
	}

	voiceChannelID, err := c.Voice.UserVoiceChannel(req.guildID, req.userID)
	if err != nil || voiceChannelID == "" {
		return ephemeralText("You need to be in a voice channel to play music!")
	}

	res, err := c.Resolver.Resolve(ctx, req.query, fmt.Sprintf("<@%s>", req.userID))
	if err != nil {
		c.Logger.Warn().Err(err).Str("guild_id", req.guildID).Str("query", req.query).Msg("failed to resolve input")
		return errorEmbed(resolveErrorMessage(ctx, err, req.query))
	}

	binding := queue.Binding{
		TextChannelID:  req.textChannelID,
		VoiceChannelID: voiceChannelID,
		Volume:         c.guildVolume(req.guildID),
	}

	submitted, err := c.Player.Submit(context.WithoutCancel(ctx), req.guildID, binding, res.Tracks)
	if err != nil {
		c.Logger.Error().Err(err).Str("guild_id", req.guildID).Msg("failed to queue tracks")
		return errorEmbed("Could not join your voice channel. Check that I can connect and speak there.")
	}

	if res.Kind == sources.KindPlaylist && res.Playlist != nil {
		return reply{embed: playlistEmbed(res.Playlist.Name, res.Tracks, submitted.FirstPosition, submitted.LastPosition, submitted.Created)}
	}
	return reply{embed: addedEmbed(res.Tracks[0], submitted.LastPosition, submitted.Created)}
}

func (c *MusicCommand) guildVolume(guildID string) int {
	if c.Prefs != nil {
		v, ok, err := c.Prefs.GetVolume(guildID)
		if err != nil {
			c.Logger.Warn().Err(err).Str("guild_id", guildID).Msg("failed to read volume preference")
		} else if ok {
			return v
		}
	}
	if c.DefaultVolume > 0 {
		return c.DefaultVolume
	}
	return queue.DefaultVolume
}

func resolveErrorMessage(ctx context.Context, err error, query string) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "Request timed out. Please check your internet connection and try again."
	case errors.Is(err, sources.ErrNotConfigured):
		return "Searching and playlists need a YouTube API key, which is not configured. Try providing a direct YouTube video URL instead."
	}

	switch source_resolver.Classify(query).Kind {
	case sources.KindPlaylist:
		return "Could not fetch playlist information. It may be empty, private, or the URL may be wrong."
	case sources.KindVideo:
		return "Could not fetch video information. This might be due to:\n• Video is private, deleted, or unavailable\n• YouTube is blocking requests (try again in a few minutes)\n• Network connectivity issues"
	default:
		return "No results found for your search. Try providing a direct YouTube URL instead."
	}
}
