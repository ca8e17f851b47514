package cluster

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"hubnet/models"
)

// StateResolver answers lookups from the gateway session's state cache.
type StateResolver struct {
	state *discordgo.State
}

func NewStateResolver(state *discordgo.State) *StateResolver {
	return &StateResolver{state: state}
}

func (r *StateResolver) Guild(_ context.Context, guildID string) (*GuildInfo, error) {
	g, err := r.state.Guild(guildID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &GuildInfo{
		ID:          g.ID,
		Name:        g.Name,
		IconURL:     g.IconURL("128"),
		OwnerID:     g.OwnerID,
		MemberCount: g.MemberCount,
	}, nil
}

func (r *StateResolver) Channel(_ context.Context, channelID string) (*ChannelInfo, error) {
	ch, err := r.state.Channel(channelID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ChannelInfo{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		ParentID: ch.ParentID,
		Kind:     models.KindOf(ch).String(),
	}, nil
}
