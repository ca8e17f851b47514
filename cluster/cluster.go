package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Peer is one remote shard.
type Peer struct {
	Addr string
	conn *grpc.ClientConn
}

// Cluster evaluates operations on the local shard and every peer.
type Cluster struct {
	local   Resolver
	peers   []*Peer
	timeout time.Duration
}

// New builds a cluster around the local resolver and already dialled peers.
func New(local Resolver, timeout time.Duration, peers ...*Peer) *Cluster {
	return &Cluster{local: local, peers: peers, timeout: timeout}
}

// Dial connects lazily to every peer address.
func Dial(addrs []string, opts ...grpc.DialOption) ([]*Peer, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	peers := make([]*Peer, 0, len(addrs))
	for _, addr := range addrs {
		conn, err := grpc.NewClient(addr, opts...)
		if err != nil {
			for _, p := range peers {
				p.conn.Close()
			}
			return nil, fmt.Errorf("failed to dial shard %s: %w", addr, err)
		}
		peers = append(peers, &Peer{Addr: addr, conn: conn})
	}
	return peers, nil
}

// Close releases every peer connection.
func (c *Cluster) Close() error {
	var errs []error
	for _, p := range c.peers {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Eval runs op with req on every shard at once and decodes the first
// non-empty answer into resp, preferring the local shard, then peers in
// configuration order. Peer failures are logged and skipped.
func (c *Cluster) Eval(ctx context.Context, op string, req, resp any) error {
	if _, ok := ops[op]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	args, err := encode(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]*structpb.Struct, len(c.peers)+1)
	errs := make([]error, len(c.peers)+1)

	var wg conc.WaitGroup
	wg.Go(func() {
		results[0], errs[0] = evalLocal(ctx, c.local, op, args)
	})
	for i, p := range c.peers {
		wg.Go(func() {
			results[i+1], errs[i+1] = p.eval(ctx, op, args)
		})
	}
	wg.Wait()

	for i, out := range results {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("op", op).Str("shard", c.shardName(i)).Msg("cluster evaluation failed")
			continue
		}
		if !empty(out) {
			return decode(out, resp)
		}
	}
	return ErrNoResult
}

func (c *Cluster) shardName(i int) string {
	if i == 0 {
		return "local"
	}
	return c.peers[i-1].Addr
}

func (p *Peer) eval(ctx context.Context, op string, args *structpb.Struct) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"op": op})
	if err != nil {
		return nil, err
	}
	req.Fields["args"] = structpb.NewStructValue(args)

	out := new(structpb.Struct)
	if err := p.conn.Invoke(ctx, evalMethodName, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchGuild looks a guild up on whichever shard holds it.
func (c *Cluster) FetchGuild(ctx context.Context, guildID string) (*GuildInfo, error) {
	var info GuildInfo
	if err := c.Eval(ctx, OpFetchGuild, GuildRequest{GuildID: guildID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// FetchChannel looks a channel up on whichever shard holds it.
func (c *Cluster) FetchChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	var info ChannelInfo
	if err := c.Eval(ctx, OpFetchChannel, ChannelRequest{ChannelID: channelID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
