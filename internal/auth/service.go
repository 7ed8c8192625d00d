package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/internal/members"
	pkgauth "github.com/sobacalgary/backoffice/pkg/auth"
	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/db/models"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type memberRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Logger    *logger.Logger
	Members   memberRepository
	JWTConfig config.JWTConfig
}

// Service authenticates members and mints access tokens.
type Service struct {
	logg    *logger.Logger
	members memberRepository
	jwtCfg  config.JWTConfig
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Members == nil {
		return nil, fmt.Errorf("member repository is required")
	}
	return &Service{
		logg:    params.Logger,
		members: params.Members,
		jwtCfg:  params.JWTConfig,
	}, nil
}

// Login verifies the credentials against the stored Argon2id hash and
// returns an access token. Failures are indistinguishable to the caller so
// account existence is never leaked.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	member, err := s.members.FindByEmail(ctx, req.Email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup member")
	}

	ok, err := security.VerifyPassword(req.Password, member.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if !member.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not active")
	}

	now := time.Now().UTC()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		MemberID: member.ID,
		Role:     member.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if err := s.members.UpdateLastLogin(ctx, member.ID, now); err != nil {
		// Login still succeeds; the timestamp is advisory.
		s.logg.Warn(s.logg.WithMemberID(ctx, member.ID.String()), "failed to record last login")
	}

	logCtx := s.logg.WithMemberID(ctx, member.ID.String())
	s.logg.Info(logCtx, "member logged in")

	return &LoginResponse{
		AccessToken: token,
		Member:      members.ToDTO(member),
	}, nil
}
