package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/role"
	"github.com/kzs0/tracehop/trace"
)

// StatusKey is the span attribute holding the gRPC status code.
const StatusKey = "rpc.grpc.status_code"

// NewCaller returns a role.Caller configured for gRPC status codes.
func NewCaller(tracer *trace.Tracer, prop trace.Propagator) *role.Caller {
	return role.NewCaller(role.CallerConfig{
		Tracer:     tracer,
		Propagator: prop,
		StatusKey:  StatusKey,
		IsError:    func(code int) bool { return codes.Code(code) != codes.OK },
	})
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// handles every call under a server span named after the full method,
// parented to the context found in the incoming metadata.
//
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(rpc.UnaryServerInterceptor(handler)),
//	)
func UnaryServerInterceptor(h *role.Handler) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var carrier trace.Carrier
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			carrier = MetadataCarrier(md)
		}

		var resp any
		err := h.Handle(ctx, info.FullMethod, carrier, func(ctx context.Context) error {
			var err error
			resp, err = handler(ctx, req)
			if span := trace.CurrentSpan(ctx); span != nil {
				span.SetAttr(
					attr.String("rpc.system", "grpc"),
					attr.String("rpc.method", info.FullMethod),
					attr.Int(StatusKey, int(status.Code(err))),
				)
			}
			return err
		})
		return resp, err
	}
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that wraps
// every call in a client span and injects its context into the outgoing
// metadata. Use NewCaller to build c.
//
//	conn, err := grpc.NewClient(target,
//	    grpc.WithUnaryInterceptor(rpc.UnaryClientInterceptor(caller)),
//	)
func UnaryClientInterceptor(c *role.Caller) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			md = md.Copy()
		} else {
			md = metadata.New(nil)
		}

		_, err := c.Call(ctx, method, MetadataCarrier(md), func(ctx context.Context) (int, error) {
			err := invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, opts...)
			code := status.Code(err)
			if span := trace.CurrentSpan(ctx); span != nil {
				span.SetAttr(attr.Int(StatusKey, int(code)))
			}
			return int(code), err
		}, trace.WithAttrs(
			attr.String("rpc.system", "grpc"),
			attr.String("rpc.method", method),
		))
		return err
	}
}
