package grpcapi

import (
	"context"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/identity"
)

// Metadata keys carrying credentials.
const (
	MDPubKey    = "x-blockdrive-pubkey"
	MDTimestamp = "x-blockdrive-timestamp"
	MDNonce     = "x-blockdrive-nonce"
	MDSignature = "x-blockdrive-signature"
)

type callerKey struct{}

// CallerFromContext returns the authenticated caller stored by AuthInterceptor.
func CallerFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(callerKey{}).(identity.Identity)
	return id, ok
}

// signedPayload is the byte string credentials are computed over.
func signedPayload(req any) ([]byte, error) {
	msg, ok := req.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("grpcapi: request %T is not a proto message", req)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func firstMD(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// AuthInterceptor verifies the call's credentials against the full method
// name and the request, and stores the caller identity in the context.
// Credentials are accepted once; v gets a ReplayCache if it has none.
func AuthInterceptor(v auth.Verifier) grpc.UnaryServerInterceptor {
	v = v.WithReplayCache()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		creds, err := auth.ParseCredentials(firstMD(md, MDPubKey), firstMD(md, MDTimestamp), firstMD(md, MDNonce), firstMD(md, MDSignature))
		if err != nil {
			return nil, mapErr(err)
		}
		payload, err := signedPayload(req)
		if err != nil {
			return nil, mapErr(err)
		}
		caller, err := v.Verify(creds, info.FullMethod, payload)
		if err != nil {
			return nil, mapErr(err)
		}
		return handler(context.WithValue(ctx, callerKey{}, caller), req)
	}
}

// SigningInterceptor attaches credentials for key to every outgoing call.
func SigningInterceptor(key *ec.PrivateKey, now func() time.Time) grpc.UnaryClientInterceptor {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		payload, err := signedPayload(req)
		if err != nil {
			return err
		}
		creds, err := auth.Sign(key, method, payload, now())
		if err != nil {
			return err
		}
		pub, ts, nonce, sig := creds.Encode()
		ctx = metadata.AppendToOutgoingContext(ctx, MDPubKey, pub, MDTimestamp, ts, MDNonce, nonce, MDSignature, sig)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
