package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"careerhub/internal/model"
	"careerhub/internal/repository"
)

// profileRecheckDelay is how long after an update the cached profile is
// dropped a second time, evicting a stale copy written by a concurrent read.
const profileRecheckDelay = 500 * time.Millisecond

type UserService struct {
	userRepo     *repository.UserRepository
	publisher    EventPublisher
	profiles     ProfileCache
	logger       logrus.FieldLogger
	recheckDelay time.Duration
}

// UpdateUserInput is a partial profile update. Nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Username *string
	Email    *string
	ClientIP string
}

func NewUserService(userRepo *repository.UserRepository, publisher EventPublisher, profiles ProfileCache, logger logrus.FieldLogger) *UserService {
	return &UserService{
		userRepo:     userRepo,
		publisher:    publisher,
		profiles:     profiles,
		logger:       logger.WithField("service", "user"),
		recheckDelay: profileRecheckDelay,
	}
}

// UpdateUser applies the patch to the record owned by userID. The password is
// never touched. Unique indexes decide conflicts that slip past the pre-check.
func (s *UserService) UpdateUser(ctx context.Context, userID uint, input UpdateUserInput) error {
	if userID == 0 {
		return ErrUserNotFound
	}

	fields, err := normalizePatch(input)
	if err != nil {
		return err
	}

	current, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrUserNotFound
	}

	if username, ok := fields["username"].(string); ok {
		owner, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if owner != nil && owner.ID != userID {
			return ErrUsernameTaken
		}
	}
	if email, ok := fields["email"].(string); ok {
		owner, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if owner != nil && owner.ID != userID {
			return ErrEmailTaken
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return mapDuplicate(err)
	}

	s.invalidateProfile(ctx, userID)

	s.logger.WithFields(logrus.Fields{"user_id": userID, "fields": len(fields)}).Info("user updated")
	publishAudit(ctx, s.publisher, s.logger, userID, model.AuditActionUpdated, input.ClientIP)
	return nil
}

// invalidateProfile drops the cached profile now and once more after
// recheckDelay. A GetProfile that read the old row before the update
// committed may otherwise cache it for the whole TTL.
func (s *UserService) invalidateProfile(ctx context.Context, userID uint) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.Delete(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("profile cache invalidation failed")
	}
	if s.recheckDelay <= 0 {
		return
	}
	time.AfterFunc(s.recheckDelay, func() {
		delCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.profiles.Delete(delCtx, userID); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("delayed profile cache invalidation failed")
		}
	})
}

// UsernameAvailable reports whether no record owns username.
func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if !IsValidUsername(username) {
		return false, fmt.Errorf("%w: username must be 3 to 64 letters, digits, '_', '.' or '-'", ErrInvalidInput)
	}
	owner, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return owner == nil, nil
}

func normalizePatch(input UpdateUserInput) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, 3)

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if !isValidName(name) {
			return nil, fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalidInput, maxNameLen)
		}
		fields["name"] = name
	}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if !IsValidUsername(username) {
			return nil, fmt.Errorf("%w: username must be 3 to 64 letters, digits, '_', '.' or '-'", ErrInvalidInput)
		}
		fields["username"] = username
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if !isValidEmail(email) {
			return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
		}
		fields["email"] = email
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	return fields, nil
}
