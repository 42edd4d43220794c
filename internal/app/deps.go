package app

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"careerhub/internal/model"
)

// EventPublisher sends audit events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event model.AuditEvent) error
}

type ProfileCache interface {
	Get(ctx context.Context, userID uint) (*model.User, bool, error)
	Set(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, userID uint) error
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,64}$`)

// IsValidUsername reports whether s is 3..64 letters, digits, '_', '.' or '-'.
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isValidName counts characters, not bytes, to agree with the column size.
func isValidName(name string) bool {
	return name != "" && utf8.RuneCountInString(name) <= maxNameLen
}
