package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var ErrNotInVoice = errors.New("user not in any voice channel")

// UserVoiceChannel returns the channel the user is connected to in guildID.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, error) {
	return findVoiceChannel(b.dg.State, guildID, userID)
}

func findVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}

	state.RLock()
	defer state.RUnlock()
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", ErrNotInVoice
}
