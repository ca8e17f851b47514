package command

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCommandDefinitions(t *testing.T) {
	defs := GetCommandDefinitions()
	require.Len(t, defs, 2)

	byName := map[string]*discordgo.ApplicationCommand{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	require.Contains(t, byName, PingName)
	require.Contains(t, byName, DeleteMessageName)

	del := byName[DeleteMessageName]
	assert.Equal(t, discordgo.MessageApplicationCommand, del.Type)
	assert.Empty(t, del.Description, "context menu commands carry no description")
	require.NotNil(t, del.DMPermission)
	assert.False(t, *del.DMPermission)
}
