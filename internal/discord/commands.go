package discord

import "github.com/bwmarrin/discordgo"

func intPtr(v float64) *float64 { return &v }

// commandDefinitions is the full slash command surface, registered as a
// bulk overwrite on startup.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Queue a track by URL or search query",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL or search text",
					Required:    true,
				},
			},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{
			Name:        "skip",
			Description: "Skip ahead in the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many tracks to skip (default 1)",
					MinValue:    intPtr(1),
				},
			},
		},
		{Name: "previous", Description: "Replay the previous track"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "0 to 150",
					Required:    true,
					MinValue:    intPtr(0),
					MaxValue:    150,
				},
			},
		},
		{
			Name:        "loop",
			Description: "Set the loop mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "off, track or queue",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "off", Value: "off"},
						{Name: "track", Value: "track"},
						{Name: "queue", Value: "queue"},
					},
				},
			},
		},
		{Name: "shuffle", Description: "Toggle shuffle"},
		{Name: "queue", Description: "Show the queue"},
		{
			Name:        "remove",
			Description: "Remove a track from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "position",
					Description: "Queue position as shown by /queue",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		{
			Name:        "move",
			Description: "Move a track to another queue position",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "from",
					Description: "Current position",
					Required:    true,
					MinValue:    intPtr(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "to",
					Description: "New position",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		{
			Name:        "musicchannel",
			Description: "Pin or unpin the dedicated music channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Pin a text channel for playback commands and the status display",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "channel",
							Description: "Text channel to pin",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Unpin the music channel",
				},
			},
		},
		{
			Name:        "setdj",
			Description: "Grant a role operator control over the player",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "The DJ role",
					Required:    true,
				},
			},
		},
		{
			Name:        "scrobble",
			Description: "Manage Last.fm scrobbling for your listens",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "link",
					Description: "Link your Last.fm account with an auth token",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "token",
							Description: "Token from the Last.fm authorization page",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "on",
					Description: "Enable scrobbling",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "off",
					Description: "Disable scrobbling",
				},
			},
		},
	}
}
