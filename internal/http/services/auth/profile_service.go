package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

type ProfileService interface {
	Get(ctx context.Context, userID string) (*repository.User, error)
	Update(ctx context.Context, userID string, in ProfileInput) (*repository.User, error)
}

type ProfileInput struct {
	Name  string
	Email string
}

type ProfileDeps struct {
	Users repository.UserRepository
}

type profileService struct {
	deps ProfileDeps
}

func NewProfileService(deps ProfileDeps) ProfileService {
	return &profileService{deps: deps}
}

func (s *profileService) Get(ctx context.Context, userID string) (*repository.User, error) {
	return s.deps.Users.GetByID(ctx, userID)
}

func (s *profileService) Update(ctx context.Context, userID string, in ProfileInput) (*repository.User, error) {
	err := s.deps.Users.UpdateProfile(ctx, userID, repository.UpdateProfileInput{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	audit.Log(ctx, audit.ProfileUpdated, logger.UserID(userID))
	return s.deps.Users.GetByID(ctx, userID)
}
