package grpcapi

import (
	"context"
	"fmt"
	"net"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/registry"
)

// Client calls the Registry service as the identity of its key.
type Client struct {
	cc     *grpc.ClientConn
	client RegistryClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

// DialOptions configures Dial.
type DialOptions struct {
	// Key signs every call. Required.
	Key *ec.PrivateKey

	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// Clock overrides the signing time source.
	Clock func() time.Time

	// ContextDialer replaces the network dialer, e.g. for in-process listeners.
	ContextDialer func(context.Context, string) (net.Conn, error)
}

// Dial connects to target without transport security; deploy behind TLS
// termination when exposed beyond localhost.
func Dial(target string, opts DialOptions) (*Client, error) {
	if opts.Key == nil {
		return nil, fmt.Errorf("grpcapi: dial: signing key required")
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(SigningInterceptor(opts.Key, opts.Clock)),
	}
	if opts.ContextDialer != nil {
		dialOpts = append(dialOpts, grpc.WithContextDialer(opts.ContextDialer))
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcapi: dial %s: %w", target, err)
	}
	return &Client{cc: cc, client: NewRegistryClient(cc)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

// Add records ref under owner, which must be the client's identity.
func (c *Client) Add(ctx context.Context, owner identity.Identity, ref string) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"owner":     structpb.NewStringValue(owner.String()),
		"reference": structpb.NewStringValue(ref),
	}}
	_, err := c.client.Add(ctx, in)
	return mapRPC(err)
}

// Display fetches target's file list.
func (c *Client) Display(ctx context.Context, target identity.Identity) ([]string, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Display(ctx, wrapperspb.String(target.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	files := make([]string, 0, len(reply.GetValues()))
	for _, v := range reply.GetValues() {
		files = append(files, v.GetStringValue())
	}
	return files, nil
}

// Allow grants grantee access to the client's list.
func (c *Client) Allow(ctx context.Context, grantee identity.Identity) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err := c.client.Allow(ctx, wrapperspb.String(grantee.String()))
	return mapRPC(err)
}

// Disallow revokes grantee's access to the client's list.
func (c *Client) Disallow(ctx context.Context, grantee identity.Identity) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err := c.client.Disallow(ctx, wrapperspb.String(grantee.String()))
	return mapRPC(err)
}

// ShareAccess lists the client's grants.
func (c *Client) ShareAccess(ctx context.Context) ([]registry.AccessGrant, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.ShareAccess(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, mapRPC(err)
	}
	grants := make([]registry.AccessGrant, 0, len(reply.GetValues()))
	for _, v := range reply.GetValues() {
		fields := v.GetStructValue().GetFields()
		grantee, err := identity.Parse(fields["grantee"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("grpcapi: share access: %w", err)
		}
		g := registry.AccessGrant{Grantee: grantee, Active: fields["active"].GetBoolValue()}
		g.GrantedAt, _ = time.Parse(time.RFC3339Nano, fields["granted_at"].GetStringValue())
		g.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"].GetStringValue())
		grants = append(grants, g)
	}
	return grants, nil
}
