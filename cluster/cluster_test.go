package cluster

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type mapResolver struct {
	guilds   map[string]*GuildInfo
	channels map[string]*ChannelInfo
	err      error
}

func (m mapResolver) Guild(_ context.Context, id string) (*GuildInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.guilds[id], nil
}

func (m mapResolver) Channel(_ context.Context, id string) (*ChannelInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.channels[id], nil
}

// startPeer serves r over an in-memory listener and returns a dialled peer.
func startPeer(t *testing.T, name string, r Resolver) *Peer {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ServeListener(ctx, lis, NewServer(r))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	peers, err := Dial([]string{"passthrough:///" + name},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	return peers[0]
}

func newCluster(t *testing.T) *Cluster {
	t.Helper()
	local := mapResolver{guilds: map[string]*GuildInfo{"g1": {ID: "g1", Name: "Local Guild", MemberCount: 12}}}
	empty := startPeer(t, "empty", mapResolver{})
	broken := startPeer(t, "broken", mapResolver{err: errors.New("state unavailable")})
	remote := startPeer(t, "remote", mapResolver{
		guilds:   map[string]*GuildInfo{"g2": {ID: "g2", Name: "Remote Guild", MemberCount: 3}},
		channels: map[string]*ChannelInfo{"c2": {ID: "c2", GuildID: "g2", Name: "general", Kind: "text"}},
	})

	c := New(local, 2*time.Second, empty, broken, remote)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFetchGuild_LocalFirst(t *testing.T) {
	c := newCluster(t)

	info, err := c.FetchGuild(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, &GuildInfo{ID: "g1", Name: "Local Guild", MemberCount: 12}, info)
}

func TestFetchGuild_FromPeer(t *testing.T) {
	c := newCluster(t)

	info, err := c.FetchGuild(context.Background(), "g2")
	require.NoError(t, err)
	assert.Equal(t, "Remote Guild", info.Name)
	assert.Equal(t, 3, info.MemberCount)

	ch, err := c.FetchChannel(context.Background(), "c2")
	require.NoError(t, err)
	assert.Equal(t, &ChannelInfo{ID: "c2", GuildID: "g2", Name: "general", Kind: "text"}, ch)
}

func TestFetch_NoShardKnows(t *testing.T) {
	c := newCluster(t)

	_, err := c.FetchGuild(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNoResult)
	_, err = c.FetchChannel(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestEval_UnknownOp(t *testing.T) {
	c := newCluster(t)

	var out map[string]any
	err := c.Eval(context.Background(), "dropTables", struct{}{}, &out)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestServer_UnknownOpIsUnimplemented(t *testing.T) {
	srv := NewServer(mapResolver{})
	req, err := structpb.NewStruct(map[string]any{"op": "dropTables"})
	require.NoError(t, err)

	_, err = srv.Eval(context.Background(), req)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestStateResolver(t *testing.T) {
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: "g1", Name: "Guild", MemberCount: 5}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: "t1", GuildID: "g1", ParentID: "c1", Type: discordgo.ChannelTypeGuildPublicThread}))
	r := NewStateResolver(state)
	ctx := context.Background()

	g, err := r.Guild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Guild", g.Name)
	assert.Equal(t, 5, g.MemberCount)

	ch, err := r.Channel(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "thread", ch.Kind)
	assert.Equal(t, "c1", ch.ParentID)

	g, err = r.Guild(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, g)
}
