package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const serviceName = "viralforge.auth.v1.TwoFactorService"

// Facade is the slice of application.Service exposed to internal callers.
type Facade interface {
	ValidateToken(ctx context.Context, token string) (ports.AccessClaims, error)
	VerifyTwoFactorToken(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	RedeemTwoFactorRecoveryCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	RememberClient(ctx context.Context, userID uuid.UUID) (application.RememberClientResponse, error)
}

type TwoFactorService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyTwoFactorToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedeemTwoFactorRecoveryCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RememberClient(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type TwoFactorServer struct {
	facade Facade
}

func NewTwoFactorServer(facade Facade) *TwoFactorServer {
	return &TwoFactorServer{facade: facade}
}

// Register wires the hand-written service descriptor; messages are structpb.Struct.
func Register(server grpc.ServiceRegistrar, svc TwoFactorService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*TwoFactorService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "ValidateToken", Handler: structHandler("ValidateToken", svc.ValidateToken)},
			{MethodName: "VerifyTwoFactorToken", Handler: structHandler("VerifyTwoFactorToken", svc.VerifyTwoFactorToken)},
			{MethodName: "RedeemTwoFactorRecoveryCode", Handler: structHandler("RedeemTwoFactorRecoveryCode", svc.RedeemTwoFactorRecoveryCode)},
			{MethodName: "RememberClient", Handler: structHandler("RememberClient", svc.RememberClient)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "auth/v1/two_factor.proto",
	}, svc)
}

func (s *TwoFactorServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := requiredString(req, "token")
	if err != nil {
		return nil, err
	}
	claims, err := s.facade.ValidateToken(ctx, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	roles := make([]any, 0, len(claims.Roles))
	for _, role := range claims.Roles {
		roles = append(roles, role)
	}
	return newStruct(map[string]any{
		"valid":      true,
		"user_id":    claims.Subject.String(),
		"email":      claims.Email,
		"roles":      roles,
		"issuer":     claims.Issuer,
		"audience":   claims.Audience,
		"expires_at": claims.ExpiresAt.Unix(),
	})
}

func (s *TwoFactorServer) VerifyTwoFactorToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requiredUserID(req)
	if err != nil {
		return nil, err
	}
	code, err := requiredString(req, "code")
	if err != nil {
		return nil, err
	}
	verified, err := s.facade.VerifyTwoFactorToken(ctx, userID, code)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"verified": verified})
}

func (s *TwoFactorServer) RedeemTwoFactorRecoveryCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requiredUserID(req)
	if err != nil {
		return nil, err
	}
	code, err := requiredString(req, "code")
	if err != nil {
		return nil, err
	}
	succeeded, err := s.facade.RedeemTwoFactorRecoveryCode(ctx, userID, code)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"succeeded": succeeded})
}

func (s *TwoFactorServer) RememberClient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requiredUserID(req)
	if err != nil {
		return nil, err
	}
	res, err := s.facade.RememberClient(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"security_stamp":               res.SecurityStamp,
		"supports_user_security_stamp": res.SupportsStamp,
	})
}

func structHandler(method string, call func(context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func requiredString(req *structpb.Struct, field string) (string, error) {
	v := strings.TrimSpace(req.GetFields()[field].GetStringValue())
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "missing %s", field)
	}
	return v, nil
}

func requiredUserID(req *structpb.Struct) (uuid.UUID, error) {
	raw, err := requiredString(req, "user_id")
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid user_id")
	}
	return userID, nil
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.Is(err, domain.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenMalformed), errors.Is(err, domain.ErrTokenBadSignature):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrAccountLocked):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
