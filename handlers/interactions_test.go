package handlers

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubnet/command"
	"hubnet/customid"
	"hubnet/identity"
	"hubnet/models"
	"hubnet/render"
	"hubnet/utils"
)

type fakeResponder struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followups []*discordgo.WebhookParams
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, edit)
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.followups = append(f.followups, data)
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) lastEdit() string {
	if len(f.edits) == 0 || f.edits[len(f.edits)-1].Content == nil {
		return ""
	}
	return *f.edits[len(f.edits)-1].Content
}

func newInteractions() (*Interactions, *fakeMessages) {
	msgs := &fakeMessages{
		origins:   map[string]*models.OriginalMessage{},
		reactions: models.Reactions{"👍": {"u1", "u2"}, "🎉": {"u3"}},
	}
	hubs := &fakeConns{hub: &models.Hub{ID: "h1", OwnerID: "owner", Settings: models.DefaultHubSettings}}
	return NewInteractions(msgs, hubs, utils.NewAuth([]string{"dev"})), msgs
}

func commandInteraction(name, userID, targetID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data:   discordgo.ApplicationCommandInteractionData{Name: name, TargetID: targetID},
	}
}

func componentInteraction(customID, userID string, values ...string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:   discordgo.InteractionMessageComponent,
		Member: &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data:   discordgo.MessageComponentInteractionData{CustomID: customID, Values: values},
	}
}

func TestPing(t *testing.T) {
	x, _ := newInteractions()
	r := &fakeResponder{}

	require.NoError(t, x.Handle(context.Background(), r, commandInteraction(command.PingName, "u1", "")))
	require.Len(t, r.responses, 1)
	assert.Equal(t, "Pong!", r.responses[0].Data.Content)
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	orig := &models.OriginalMessage{ID: "m1", HubID: "h1", AuthorID: "u1"}

	tests := []struct {
		name    string
		user    string
		target  string
		want    string
		deleted bool
	}{
		{"author", "u1", "bm1", "✅ Deleted from 1/2 channels.", true},
		{"hub owner", "owner", "m1", "✅ Deleted from 1/2 channels.", true},
		{"developer", "dev", "m1", "✅ Deleted from 1/2 channels.", true},
		{"stranger", "u9", "m1", "🚫 Only the author or the hub owner can delete this message.", false},
		{"untracked", "u1", "zz", "This message isn't part of a hub.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, msgs := newInteractions()
			msgs.origins["m1"] = orig
			msgs.origins["bm1"] = orig
			r := &fakeResponder{}

			require.NoError(t, x.Handle(ctx, r, commandInteraction(command.DeleteMessageName, tt.user, tt.target)))
			require.Len(t, r.responses, 1)
			assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, r.responses[0].Type)
			assert.Equal(t, tt.want, r.lastEdit())
			if tt.deleted {
				assert.Equal(t, []string{"m1"}, msgs.deletes)
			} else {
				assert.Empty(t, msgs.deletes)
			}
		})
	}
}

func TestDeleteMessage_InProgress(t *testing.T) {
	x, msgs := newInteractions()
	msgs.origins["m1"] = &models.OriginalMessage{ID: "m1", HubID: "h1", AuthorID: "u1"}
	msgs.deleteErr = identity.ErrDeleteInProgress
	r := &fakeResponder{}

	require.NoError(t, x.Handle(context.Background(), r, commandInteraction(command.DeleteMessageName, "u1", "m1")))
	assert.Equal(t, "This message is already being deleted.", r.lastEdit())
}

func TestReactionToggleButton(t *testing.T) {
	x, msgs := newInteractions()
	r := &fakeResponder{}
	id := customid.Encode(render.ReactionPrefix, render.ReactionToggle, "m1", "👍")

	require.NoError(t, x.Handle(context.Background(), r, componentInteraction(id, "u5")))
	require.Len(t, r.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, r.responses[0].Type)
	assert.Equal(t, []string{"m1/👍/u5"}, msgs.toggles)
	assert.Empty(t, r.followups)
}

func TestReactionToggleButton_Disabled(t *testing.T) {
	x, msgs := newInteractions()
	msgs.toggleErr = identity.ErrReactionsDisabled
	r := &fakeResponder{}
	id := customid.Encode(render.ReactionPrefix, render.ReactionToggle, "m1", "👍")

	require.NoError(t, x.Handle(context.Background(), r, componentInteraction(id, "u5")))
	require.Len(t, r.followups, 1)
	assert.Equal(t, "Reactions are disabled in this hub.", r.followups[0].Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.followups[0].Flags)
}

func TestReactionViewAll(t *testing.T) {
	x, msgs := newInteractions()
	msgs.origins["m1"] = &models.OriginalMessage{ID: "m1", HubID: "h1"}
	r := &fakeResponder{}

	require.NoError(t, x.Handle(context.Background(), r, componentInteraction(customid.Encode(render.ReactionPrefix, render.ReactionViewAll, "m1"), "u5")))
	require.Len(t, r.responses, 1)
	data := r.responses[0].Data
	assert.Equal(t, "👍 2\n🎉 1", data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)

	row := data.Components[0].(discordgo.ActionsRow)
	menu := row.Components[0].(discordgo.SelectMenu)
	assert.Equal(t, customid.Encode(render.ReactionPrefix, reactionSelect, "m1"), menu.CustomID)
	require.Len(t, menu.Options, 2)
	assert.Equal(t, "👍", menu.Options[0].Value)
}

func TestReactionSelect(t *testing.T) {
	x, msgs := newInteractions()
	r := &fakeResponder{}
	id := customid.Encode(render.ReactionPrefix, reactionSelect, "m1")

	require.NoError(t, x.Handle(context.Background(), r, componentInteraction(id, "u5", "🎉")))
	assert.Equal(t, []string{"m1/🎉/u5"}, msgs.toggles)
	assert.Equal(t, "👍 2\n🎉 1", r.lastEdit())
}

func TestUnknownComponent(t *testing.T) {
	x, _ := newInteractions()
	r := &fakeResponder{}

	require.NoError(t, x.Handle(context.Background(), r, componentInteraction("legacy:button|1", "u5")))
	require.Len(t, r.responses, 1)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.responses[0].Data.Flags)

	assert.Error(t, x.Handle(context.Background(), r, componentInteraction("garbage", "u5")))
}

func TestReactionList_Empty(t *testing.T) {
	content, components := reactionList("m1", nil)
	assert.Equal(t, "No reactions yet.", content)
	assert.Empty(t, components)
}
