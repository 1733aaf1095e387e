// Package grpcapi serves the registry over gRPC.
package grpcapi

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/registry"
)

// Server exposes a registry over the Registry gRPC service. Every call
// must pass through AuthInterceptor.
type Server struct {
	UnimplementedRegistryServer
	Registry *registry.Registry
}

// NewGRPCServer builds a *grpc.Server with authentication and request
// logging installed and the Registry service registered.
func NewGRPCServer(reg *registry.Registry, v auth.Verifier, log zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	log = log.With().Str("component", "grpc").Logger()
	opts = append(opts, grpc.ChainUnaryInterceptor(logInterceptor(log), AuthInterceptor(v)))
	srv := grpc.NewServer(opts...)
	RegisterRegistryServer(srv, &Server{Registry: reg})
	return srv
}

func logInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		ev := log.Debug()
		if err != nil {
			ev = log.Info().Str("code", status.Code(err).String())
		}
		ev.Str("method", info.FullMethod).Dur("elapsed", time.Since(start)).Msg("grpc call")
		return resp, err
	}
}

func (s *Server) session(ctx context.Context) (*registry.Session, error) {
	if s == nil || s.Registry == nil {
		return nil, status.Error(codes.Internal, "missing registry")
	}
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no authenticated caller")
	}
	return s.Registry.As(caller), nil
}

func parseID(field, s string) (identity.Identity, error) {
	id, err := identity.Parse(s)
	if err != nil {
		return identity.Identity{}, status.Errorf(codes.InvalidArgument, "%s: %v", field, err)
	}
	return id, nil
}

func (s *Server) Add(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	fields := in.GetFields()
	owner, err := parseID("owner", fields["owner"].GetStringValue())
	if err != nil {
		return nil, err
	}
	if err := sess.Add(owner, fields["reference"].GetStringValue()); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Display(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	target, err := parseID("target", in.GetValue())
	if err != nil {
		return nil, err
	}
	files, err := sess.Display(target)
	if err != nil {
		return nil, mapErr(err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(files))}
	for _, f := range files {
		out.Values = append(out.Values, structpb.NewStringValue(f))
	}
	return out, nil
}

func (s *Server) Allow(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	grantee, err := parseID("grantee", in.GetValue())
	if err != nil {
		return nil, err
	}
	if err := sess.Allow(grantee); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Disallow(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	grantee, err := parseID("grantee", in.GetValue())
	if err != nil {
		return nil, err
	}
	if err := sess.Disallow(grantee); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) ShareAccess(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	grants, err := sess.ShareAccess()
	if err != nil {
		return nil, mapErr(err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(grants))}
	for _, g := range grants {
		out.Values = append(out.Values, structpb.NewStructValue(grantStruct(g)))
	}
	return out, nil
}

func grantStruct(g registry.AccessGrant) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"grantee":    structpb.NewStringValue(g.Grantee.String()),
		"active":     structpb.NewBoolValue(g.Active),
		"granted_at": structpb.NewStringValue(g.GrantedAt.UTC().Format(time.RFC3339Nano)),
		"updated_at": structpb.NewStringValue(g.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}}
}
