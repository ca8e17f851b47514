// Package cluster evaluates named lookups on every shard of the bot and
// reduces them to the first shard that knows the answer.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Operation names understood by every shard.
const (
	OpFetchGuild   = "fetchGuildById"
	OpFetchChannel = "fetchChannelById"
)

var (
	ErrUnknownOp = errors.New("cluster: unknown operation")
	// ErrNoResult means no shard returned a non-empty answer.
	ErrNoResult = errors.New("cluster: no shard returned a result")
)

type GuildRequest struct {
	GuildID string `json:"guild_id"`
}

type GuildInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IconURL     string `json:"icon_url,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	MemberCount int    `json:"member_count"`
}

type ChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

type ChannelInfo struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Kind     string `json:"kind"`
}

// Resolver answers lookups from what this shard holds in memory. A nil
// result with a nil error means "not on this shard".
type Resolver interface {
	Guild(ctx context.Context, guildID string) (*GuildInfo, error)
	Channel(ctx context.Context, channelID string) (*ChannelInfo, error)
}

type handler func(ctx context.Context, r Resolver, args *structpb.Struct) (*structpb.Struct, error)

var ops = map[string]handler{
	OpFetchGuild: func(ctx context.Context, r Resolver, args *structpb.Struct) (*structpb.Struct, error) {
		var req GuildRequest
		if err := decode(args, &req); err != nil {
			return nil, err
		}
		info, err := r.Guild(ctx, req.GuildID)
		if err != nil || info == nil {
			return nil, err
		}
		return encode(info)
	},
	OpFetchChannel: func(ctx context.Context, r Resolver, args *structpb.Struct) (*structpb.Struct, error) {
		var req ChannelRequest
		if err := decode(args, &req); err != nil {
			return nil, err
		}
		info, err := r.Channel(ctx, req.ChannelID)
		if err != nil || info == nil {
			return nil, err
		}
		return encode(info)
	},
}

// evalLocal runs op against r. A nil struct means an empty result.
func evalLocal(ctx context.Context, r Resolver, op string, args *structpb.Struct) (*structpb.Struct, error) {
	h, ok := ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	return h(ctx, r, args)
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func empty(s *structpb.Struct) bool {
	return s == nil || len(s.GetFields()) == 0
}
