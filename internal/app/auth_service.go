package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"careerhub/internal/model"
	"careerhub/internal/pkg/jwtutil"
	"careerhub/internal/pkg/password"
	"careerhub/internal/repository"
)

const (
	maxNameLen     = 128
	maxEmailLen    = 128
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
)

type AuthService struct {
	userRepo      *repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
	publisher     EventPublisher
	profiles      ProfileCache
	logger        logrus.FieldLogger
}

type RegisterInput struct {
	Name            string
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	ClientIP        string
}

type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

type AuthResult struct {
	Token string
	User  *model.User
}

// NewAuthService wires the login flow. publisher and profiles may be nil.
func NewAuthService(
	userRepo *repository.UserRepository,
	jwtSecret string,
	jwtExpiration time.Duration,
	publisher EventPublisher,
	profiles ProfileCache,
	logger logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		publisher:     publisher,
		profiles:      profiles,
		logger:        logger.WithField("service", "auth"),
	}
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.jwtExpiration
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	if !isValidName(name) {
		return nil, fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalidInput, maxNameLen)
	}
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: username must be 3 to 64 letters, digits, '_', '.' or '-'", ErrInvalidInput)
	}
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLen || len(input.Password) > maxPasswordLen {
		return nil, fmt.Errorf("%w: password must be %d to %d bytes", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	if input.Password != input.ConfirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}

	existingByName, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameTaken
	}

	existingByEmail, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailTaken
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, mapDuplicate(err)
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	publishAudit(ctx, s.publisher, s.logger, user.ID, model.AuditActionRegistered, input.ClientIP)
	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies the credentials and mints a session token. Unknown email and
// wrong password fail with the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if !password.Compare(user.PasswordHash, input.Password) {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID)
	if err != nil {
		return nil, err
	}

	publishAudit(ctx, s.publisher, s.logger, user.ID, model.AuditActionLoggedIn, input.ClientIP)
	return &AuthResult{Token: token, User: user}, nil
}

// GetProfile returns the caller's profile, served from cache when possible.
func (s *AuthService) GetProfile(ctx context.Context, id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}

	if s.profiles != nil {
		cached, found, err := s.profiles.Get(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", id).Warn("profile cache read failed")
		} else if found {
			return cached, nil
		}
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if s.profiles != nil {
		if err := s.profiles.Set(ctx, user); err != nil {
			s.logger.WithError(err).WithField("user_id", id).Warn("profile cache write failed")
		}
	}
	return user, nil
}

var validate = validator.New()

func isValidEmail(email string) bool {
	return validate.Var(email, fmt.Sprintf("required,email,max=%d", maxEmailLen)) == nil
}

func mapDuplicate(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrEmailTaken
	default:
		return err
	}
}

func publishAudit(ctx context.Context, publisher EventPublisher, logger logrus.FieldLogger, userID uint, action, ip string) {
	if publisher == nil {
		return
	}
	event := model.AuditEvent{
		UserID:    userID,
		Action:    action,
		IP:        ip,
		CreatedAt: time.Now(),
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"action":  action,
		}).Warn("publish audit event failed")
	}
}
