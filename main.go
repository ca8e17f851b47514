package main

import (
	"hubnet/bot"
	"hubnet/command"
	"hubnet/handlers"
)

func main() {
	bot.Run(handlers.Register, command.GetCommandDefinitions())
}
