package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

// InvocationKey is the metadata key a client may set to pin the invocation id.
const InvocationKey = "x-invocation-id"

// Server implements ToolsServer on top of a tool registry.
type Server struct {
	registry  *tools.Registry
	logger    *slog.Logger
	audit     *logging.AuditLogger
	authToken string
}

// Option configures a Server.
type Option func(*Server)

// WithAuthToken requires "authorization: Bearer <token>" on every call.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = strings.TrimSpace(token) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithAuditLogger(a *logging.AuditLogger) Option {
	return func(s *Server) { s.audit = a }
}

// NewServer creates a gRPC tool server.
func NewServer(registry *tools.Registry, opts ...Option) *Server {
	s := &Server{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GRPCServer builds a grpc.Server with tracing and auth installed and the
// tool service registered.
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(tracing.UnaryServerInterceptor(), s.authenticate))
	gs := grpc.NewServer(opts...)
	RegisterToolsServer(gs, s)
	return gs
}

// Serve runs the service on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	gs := s.GRPCServer()
	addr := ln.Addr().String()
	s.logger.Info("grpc server listening", "addr", addr)
	s.lifecycle("started", addr)
	defer s.lifecycle("stopped", addr)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(ln) }()
	select {
	case <-ctx.Done():
		gs.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (s *Server) lifecycle(state, addr string) {
	s.audit.EmitOrLog(s.logger, logging.AuditEvent{
		EventType: logging.EventServerLifecycle,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"transport": "grpc", "state": state, "addr": addr},
	})
}

func (s *Server) authenticate(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.authToken == "" {
		return handler(ctx, req)
	}
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	token := strings.TrimSpace(values[0])
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		s.logger.Warn("grpc authentication failed", "method", info.FullMethod)
		return nil, status.Error(codes.Unauthenticated, "invalid auth token")
	}
	return handler(ctx, req)
}

// List returns every registered tool.
func (s *Server) List(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if err := toProto(map[string]any{"tools": s.registry.List()}, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode tool list: %v", err)
	}
	return out, nil
}

// Invoke runs req.tool with req.params.
func (s *Server) Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	name := fields["tool"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "tool is required")
	}
	raw := []byte("{}")
	if p, ok := fields["params"]; ok {
		switch kind := p.GetKind().(type) {
		case *structpb.Value_StructValue:
			b, err := protojson.Marshal(kind.StructValue)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "params: %v", err)
			}
			raw = b
		case *structpb.Value_NullValue:
		default:
			return nil, status.Error(codes.InvalidArgument, "params must be an object")
		}
	}

	ctx = tools.WithTransport(ctx, "grpc")
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(InvocationKey); len(ids) > 0 && strings.TrimSpace(ids[0]) != "" {
			ctx = tools.WithInvocationID(ctx, strings.TrimSpace(ids[0]))
		}
	}

	res, err := s.registry.Invoke(ctx, name, raw)
	_ = grpcSetHeader(ctx, res.InvocationID)
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}
	out := &structpb.Struct{}
	if err := toProto(res, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

func grpcSetHeader(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return grpc.SetHeader(ctx, metadata.Pairs(InvocationKey, id))
}

// codeFor maps a tool error onto a gRPC status code.
func codeFor(err error) codes.Code {
	switch tools.ErrorClass(err) {
	case "unknown_tool":
		return codes.NotFound
	case "invalid_params":
		return codes.InvalidArgument
	case "decode":
		return codes.FailedPrecondition
	case "canceled":
		if errors.Is(err, context.DeadlineExceeded) {
			return codes.DeadlineExceeded
		}
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// toProto round-trips v through JSON into a protobuf message so struct tags
// shape the wire form.
func toProto(v any, m proto.Message) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return protojson.Unmarshal(b, m)
}
