package models

import "github.com/bwmarrin/discordgo"

// ChannelKind narrows a platform channel to what the relay can do with it.
type ChannelKind int

const (
	ChannelUnsupported ChannelKind = iota
	ChannelText
	ChannelThread
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelText:
		return "text"
	case ChannelThread:
		return "thread"
	default:
		return "unsupported"
	}
}

// ParseChannelKind is the inverse of String. Unknown names are unsupported.
func ParseChannelKind(s string) ChannelKind {
	switch s {
	case "text":
		return ChannelText
	case "thread":
		return ChannelThread
	default:
		return ChannelUnsupported
	}
}

// KindOf resolves the channel kind once at the event boundary.
func KindOf(ch *discordgo.Channel) ChannelKind {
	if ch == nil {
		return ChannelUnsupported
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return ChannelText
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return ChannelThread
	default:
		return ChannelUnsupported
	}
}
