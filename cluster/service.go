package cluster

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName    = "hubnet.cluster.Shard"
	evalMethodName = "/" + serviceName + "/Eval"
)

// ShardServer is the server side of the Shard service. Requests and replies
// are structpb.Struct values: {"op": name, "args": {...}} in, the typed
// result out (empty when the shard has no answer).
type ShardServer interface {
	Eval(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var shardServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ShardServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Eval",
			Handler:    evalHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hubnet/cluster/shard",
}

func evalHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).Eval(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: evalMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).Eval(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterShardServer attaches srv to s.
func RegisterShardServer(s grpc.ServiceRegistrar, srv ShardServer) {
	s.RegisterService(&shardServiceDesc, srv)
}

// Server answers peer lookups from the local shard.
type Server struct {
	resolver Resolver
}

func NewServer(r Resolver) *Server {
	return &Server{resolver: r}
}

func (s *Server) Eval(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	op := req.GetFields()["op"].GetStringValue()
	args := req.GetFields()["args"].GetStructValue()

	out, err := evalLocal(ctx, s.resolver, op, args)
	if errors.Is(err, ErrUnknownOp) {
		return nil, status.Errorf(codes.Unimplemented, "unknown operation %q", op)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if out == nil {
		out = &structpb.Struct{}
	}
	return out, nil
}

// Serve runs the shard service on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, srv ShardServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lis, srv)
}

// ServeListener runs the shard service on lis until ctx is cancelled.
func ServeListener(ctx context.Context, lis net.Listener, srv ShardServer) error {
	s := grpc.NewServer()
	RegisterShardServer(s, srv)

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("cluster RPC listening")
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
