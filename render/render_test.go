package render

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubnet/customid"
	"hubnet/models"
	"hubnet/moderation"
)

func newRenderer() *Renderer {
	return New(moderation.NewLexicon([]string{"darn"}, nil))
}

func testHub(settings models.HubSettings) *models.Hub {
	return &models.Hub{ID: "h1", Name: "Test", IconURL: "https://cdn/hub.png", Settings: settings}
}

func testMessage() *models.OriginalMessage {
	return &models.OriginalMessage{
		ID: "m1", AuthorName: "alice", AvatarURL: "https://cdn/alice.png",
		GuildName: "Alice's Place", Content: "darn, see https://example.com",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMessage_EmbedMode(t *testing.T) {
	r := newRenderer()
	target := &models.Connection{ChannelID: "b", EmbedColor: 0xff0000, ProfanityFilter: true}

	p := r.Message(Input{Hub: testHub(models.DefaultHubSettings), Message: testMessage(), Target: target})

	assert.Empty(t, p.Content)
	assert.Equal(t, "Test", p.Username)
	assert.Equal(t, "https://cdn/hub.png", p.AvatarURL)
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]
	assert.Equal(t, "****, see https://example.com", e.Description)
	assert.Equal(t, 0xff0000, e.Color)
	assert.Equal(t, "alice", e.Author.Name)
	assert.Equal(t, "From: Alice's Place", e.Footer.Text)
	assert.Equal(t, "2025-01-02T03:04:05Z", e.Timestamp)
	assert.Empty(t, p.Components)
}

func TestMessage_CompactModeHidesLinks(t *testing.T) {
	r := newRenderer()
	target := &models.Connection{ChannelID: "c", Compact: true}
	msg := testMessage()
	msg.Attachments = []models.Attachment{{URL: "https://cdn/cat.png", ContentType: "image/png"}}

	p := r.Message(Input{Hub: testHub(models.DefaultHubSettings | models.SettingHideLinks), Message: msg, Target: target})

	assert.Empty(t, p.Embeds)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "darn, see "+moderation.HiddenLink+"\nhttps://cdn/cat.png", p.Content)
}

func TestMessage_ReplyAndReactions(t *testing.T) {
	r := newRenderer()
	target := &models.Connection{ChannelID: "b"}
	msg := testMessage()
	msg.Reactions = models.Reactions{"👍": {"u1", "u2"}, "🎉": {"u3"}}
	reply := &ReplyRef{
		AuthorName: "bob",
		Content:    "original question",
		JumpURLs:   map[string]string{"b": JumpURL("g2", "b", "r9")},
	}

	p := r.Message(Input{Hub: testHub(models.DefaultHubSettings), Message: msg, Target: target, Reply: reply})

	require.Len(t, p.Components, 2)
	replyRow := p.Components[0].(discordgo.ActionsRow)
	link := replyRow.Components[0].(discordgo.Button)
	assert.Equal(t, discordgo.LinkButton, link.Style)
	assert.Equal(t, "https://discord.com/channels/g2/b/r9", link.URL)

	reactRow := p.Components[1].(discordgo.ActionsRow)
	require.Len(t, reactRow.Components, 2)
	top := reactRow.Components[0].(discordgo.Button)
	assert.Equal(t, "👍 2", top.Label)
	id, err := customid.Parse(top.CustomID)
	require.NoError(t, err)
	assert.Equal(t, ReactionPrefix+":"+ReactionToggle, id.Route())
	assert.Equal(t, []string{"m1", "👍"}, id.Args)

	require.Len(t, p.Embeds[0].Fields, 1)
	assert.Equal(t, "Reply to bob", p.Embeds[0].Fields[0].Name)

	// No jump link when the replied-to message never reached this channel.
	p = r.Message(Input{Hub: testHub(models.DefaultHubSettings), Message: msg, Target: &models.Connection{ChannelID: "z"}, Reply: reply})
	require.Len(t, p.Components, 1)
}

func TestReactionRow_DisabledOrEmpty(t *testing.T) {
	assert.Nil(t, ReactionRow(testHub(0), "m1", models.Reactions{"👍": {"u"}}))
	assert.Nil(t, ReactionRow(testHub(models.SettingReactions), "m1", nil))
}

func TestTopReaction_TieBreak(t *testing.T) {
	e, n := TopReaction(models.Reactions{"b": {"1"}, "a": {"2"}})
	assert.Equal(t, "a", e)
	assert.Equal(t, 1, n)
}

func TestUsername(t *testing.T) {
	r := newRenderer()
	assert.Equal(t, strings.Repeat("x", MaxUsernameLength), r.Username(strings.Repeat("x", 50)))
	assert.Equal(t, "****", r.Username("darn"))
	assert.Equal(t, "Unknown", r.Username("   "))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "user", DisplayName(testHub(0), "user", "nick"))
	assert.Equal(t, "nick", DisplayName(testHub(models.SettingUseNicknames), "user", "nick"))
	assert.Equal(t, "user", DisplayName(testHub(models.SettingUseNicknames), "user", ""))
}
