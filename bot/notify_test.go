package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubnet/cache"
	"hubnet/database"
	"hubnet/infraction"
	"hubnet/models"
	"hubnet/moderation"
)

type fakeReplier struct {
	replies []string
	refs    []*discordgo.MessageReference
	dms     map[string]string
}

func (f *fakeReplier) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.replies = append(f.replies, channelID+": "+content)
	f.refs = append(f.refs, ref)
	return &discordgo.Message{}, nil
}

func (f *fakeReplier) UserChannelCreate(userID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + userID}, nil
}

func (f *fakeReplier) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.dms == nil {
		f.dms = map[string]string{}
	}
	f.dms[channelID] = content
	return &discordgo.Message{}, nil
}

func TestReplyNotifier(t *testing.T) {
	f := &fakeReplier{}
	n := NewReplyNotifier(f)

	n.Notify(context.Background(),
		&moderation.Candidate{MessageID: "m1", Source: &models.Connection{ChannelID: "c1", ServerID: "g1"}},
		&moderation.Rejection{Reason: moderation.ReasonInviteLinkBlocked, Notice: "Invite links are not allowed in this hub."},
	)

	assert.Equal(t, []string{"c1: Invite links are not allowed in this hub."}, f.replies)
	assert.Equal(t, &discordgo.MessageReference{MessageID: "m1", ChannelID: "c1", GuildID: "g1"}, f.refs[0])
}

func TestSendDM(t *testing.T) {
	f := &fakeReplier{}
	require.NoError(t, sendDM(f, "u1", "hi"))
	assert.Equal(t, map[string]string{"dm-u1": "hi"}, f.dms)
}

func TestScheduledExpiry_LiftsAtExpiry(t *testing.T) {
	db, err := database.InitDB(filepath.Join(t.TempDir(), "hubnet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := infraction.New(database.NewInfractionDB(db), nil, cache.NewRedisStore(client), time.Minute)
	expired := make(chan string, 1)
	store.OnExpire(func(_ context.Context, inf *models.Infraction) { expired <- inf.ID })

	sched := NewScheduler()
	defer sched.Stop()
	infs := &scheduledExpiry{Store: store, scheduler: sched}
	ctx := context.Background()

	until := time.Now().Add(50 * time.Millisecond)
	inf, err := infs.Add(ctx, infraction.Input{
		TargetID: "u1", TargetType: models.TargetUser, HubID: "h1",
		Reason: "spam", ModeratorID: "system", ExpiresAt: &until,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Pending())

	select {
	case id := <-expired:
		assert.Equal(t, inf.ID, id)
	case <-time.After(3 * time.Second):
		t.Fatal("infraction was not lifted at expiry")
	}

	active, err := infs.FetchActive(ctx, models.TargetUser, "u1", "h1")
	require.NoError(t, err)
	assert.Nil(t, active)

	// Permanent entries are left to moderators.
	_, err = infs.Add(ctx, infraction.Input{TargetID: "u2", TargetType: models.TargetUser, HubID: "h1", Reason: "abuse", ModeratorID: "m"})
	require.NoError(t, err)
	assert.Zero(t, sched.Pending())
}
