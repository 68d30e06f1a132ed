package repository

import (
	"context"
	"strings"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

// UserRepository loads and updates accounts for the login flows
type UserRepository struct {
	queries
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{queries{db: db}}
}

// FindByPhone loads a learner by phone number
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindAdminByEmail loads an admin account by email, ignoring case
func (r *UserRepository) FindAdminByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? AND role IN ?", strings.ToLower(strings.TrimSpace(email)),
			[]string{model.RoleAdmin, model.RoleSuperAdmin}).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

// Save updates every column of a user
func (r *UserRepository) Save(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// CompleteLogin stamps the login time, marks the account verified and
// remembers the device
func (r *UserRepository) CompleteLogin(ctx context.Context, user *model.User, fingerprint string, at time.Time) error {
	user.LastLoginAt = &at
	user.IsVerified = true
	user.TrustDevice(fingerprint)
	return r.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"last_login_at":   at,
		"is_verified":     true,
		"trusted_devices": user.TrustedDevices,
	}).Error
}
