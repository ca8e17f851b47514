package command

import "github.com/bwmarrin/discordgo"

// Command names, shared with the interaction dispatcher.
const (
	PingName          = "ping"
	DeleteMessageName = "Delete Message"
)

// PingCommand defines the structure for the /ping command.
type PingCommand struct{}

// Definition returns the application command definition.
func (c *PingCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        PingName,
		Description: "Responds with Pong!",
	}
}

// DeleteMessageCommand is the message context-menu entry that removes a
// relayed message from every channel of its hub.
type DeleteMessageCommand struct{}

// Definition returns the application command definition.
func (c *DeleteMessageCommand) Definition() *discordgo.ApplicationCommand {
	dm := false
	return &discordgo.ApplicationCommand{
		Name:         DeleteMessageName,
		Type:         discordgo.MessageApplicationCommand,
		DMPermission: &dm,
	}
}
