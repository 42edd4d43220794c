package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"careerhub/internal/model"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
)

// mysql ER_DUP_ENTRY
const (
	mysqlDuplicateEntry = 1062
	mysqlKeyPrefix      = "for key '"
	sqliteUniquePrefix  = "UNIQUE constraint failed: "
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if dupErr := duplicateKeyError(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by username failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

// UpdateProfile writes the given columns to the user identified by id.
// Only name, username and email are accepted; any other key is ignored.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields))
	for _, col := range []string{"name", "username", "email"} {
		if v, ok := fields[col]; ok {
			updates[col] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.User
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("query user by id failed: %w", err)
		}

		if err := tx.Model(&model.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			if dupErr := duplicateKeyError(err); dupErr != nil {
				return dupErr
			}
			return fmt.Errorf("update user failed: %w", err)
		}
		return nil
	})
}

// duplicateKeyError maps a unique index violation to the column-specific
// sentinel. It returns nil when err is not a duplicate-key error.
func duplicateKeyError(err error) error {
	if !isDuplicateKey(err) {
		return nil
	}
	switch key := violatedKey(err); {
	case key == "users.username" || strings.HasSuffix(key, "idx_users_username"):
		return ErrDuplicateUsername
	case key == "users.email" || strings.HasSuffix(key, "idx_users_email"):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("unique constraint violated: %w", err)
	}
}

// violatedKey extracts the index (mysql) or column (sqlite) named by a
// duplicate-key error. The offending value is never inspected.
func violatedKey(err error) string {
	msg := err.Error()
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		msg = myErr.Message
	}
	if i := strings.LastIndex(msg, mysqlKeyPrefix); i >= 0 {
		return strings.ToLower(strings.TrimSuffix(msg[i+len(mysqlKeyPrefix):], "'"))
	}
	if i := strings.LastIndex(msg, sqliteUniquePrefix); i >= 0 {
		key, _, _ := strings.Cut(msg[i+len(sqliteUniquePrefix):], " ")
		return strings.ToLower(key)
	}
	return ""
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	return strings.Contains(err.Error(), sqliteUniquePrefix)
}
