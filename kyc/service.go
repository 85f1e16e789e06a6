// Package kyc is the account registration service that ships next to the gateway. It speaks
// gRPC (service "kyc.Kyc") with a JSON payload codec and is usually reached through the
// gateway by its service id.
package kyc

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"yoroi/secret"
)

// RegisteredTopic carries the email of every new account when a Publisher is configured.
const RegisteredTopic = "kyc.registered"

type PingRequest struct {
	Message string `json:"message"`
}

type PingReply struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterReply struct {
	Message string `json:"message"`
}

// Publisher receives registration events. *cache.Redis satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, message any) (int64, error)
}

// Service implements KycServer.
type Service struct {
	store  Store
	events Publisher
	logger *zap.Logger
}

// NewService creates the service. events may be nil.
func NewService(store Store, events Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, logger: logger.Named("kyc")}
}

func (s *Service) Ping(_ context.Context, _ *PingRequest) (*PingReply, error) {
	return &PingReply{Message: "pong"}, nil
}

// Register creates an account for a new email. Every failure is reported as Aborted.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterReply, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, status.Error(codes.Aborted, "email and password are required")
	}

	_, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, status.Error(codes.Aborted, "user already exist")
	case !errors.Is(err, ErrNotFound):
		s.logger.Error("lookup user", zap.Error(err))
		return nil, status.Error(codes.Aborted, err.Error())
	}

	hash, err := secret.Hash(req.Password)
	if err != nil {
		return nil, status.Error(codes.Aborted, err.Error())
	}
	if err := s.store.Create(ctx, &User{Email: email, Password: hash}); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, status.Error(codes.Aborted, "user already exist")
		}
		s.logger.Error("create user", zap.Error(err))
		return nil, status.Error(codes.Aborted, err.Error())
	}

	if s.events != nil {
		if _, err := s.events.Publish(ctx, RegisteredTopic, email); err != nil {
			s.logger.Warn("publish registration", zap.Error(err))
		}
	}
	s.logger.Info("account created", zap.String("email", email))
	return &RegisterReply{Message: "Account created successfully"}, nil
}
