package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/dbfleet/internal/application"
	"github.com/viralforge/dbfleet/internal/domain"
)

// SessionInternalService is the service-to-service surface. Scanner agents
// and sibling modules validate bearer tokens and check role clearance here
// instead of reimplementing session rules.
type SessionInternalService interface {
	ValidateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAccess(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type SessionInternalServer struct {
	service *application.Service
}

func NewSessionInternalServer(service *application.Service) *SessionInternalServer {
	return &SessionInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc SessionInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "dbfleet.v1.SessionInternalService",
		HandlerType: (*SessionInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateSession",
				Handler:    validateSessionHandler(svc),
			},
			{
				MethodName: "CheckAccess",
				Handler:    checkAccessHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "dbfleet/contracts/proto/session/v1/session_internal.proto",
	}, svc)
}

func (s *SessionInternalServer) ValidateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID := stringField(req, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing session_id")
	}

	session, err := s.service.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, sessionStatusError(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":       true,
		"username":    session.Username,
		"role":        string(session.Role),
		"auth_method": string(session.Method),
		"expires_at":  session.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *SessionInternalServer) CheckAccess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID := stringField(req, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing session_id")
	}
	required := domain.Role(stringField(req, "required_role"))
	if !domain.ValidRole(required) {
		return nil, status.Error(codes.InvalidArgument, "unknown required_role")
	}

	session, err := s.service.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, sessionStatusError(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"allowed":  domain.CheckAccess(session.Role, required),
		"username": session.Username,
		"role":     string(session.Role),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func stringField(req *structpb.Struct, key string) string {
	val := req.GetFields()[key]
	if val == nil {
		return ""
	}
	return val.GetStringValue()
}

func sessionStatusError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return status.Error(codes.Unauthenticated, "session expired")
	case errors.Is(err, domain.ErrSessionNotFound):
		return status.Error(codes.Unauthenticated, "invalid session")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "metadata store unavailable")
	default:
		return status.Errorf(codes.Internal, "validate session: %v", err)
	}
}

func validateSessionHandler(svc SessionInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ValidateSession(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/dbfleet.v1.SessionInternalService/ValidateSession",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ValidateSession(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func checkAccessHandler(svc SessionInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.CheckAccess(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/dbfleet.v1.SessionInternalService/CheckAccess",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.CheckAccess(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
