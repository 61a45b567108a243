package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// findUserVoiceChannel returns the voice channel a user currently sits in.
func findUserVoiceChannel(s *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user not in any voice channel")
}

// voiceChannelMembers lists every user in a voice channel.
func voiceChannelMembers(s *discordgo.Session, guildID, channelID string) []string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return nil
	}
	var users []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			users = append(users, vs.UserID)
		}
	}
	return users
}
