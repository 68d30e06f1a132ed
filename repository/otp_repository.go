package repository

import (
	"context"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

// OTPRepository stores login challenges
type OTPRepository struct {
	db *gorm.DB
}

// NewOTPRepository creates a new OTP repository
func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// CreateChallenge stores a new challenge
func (r *OTPRepository) CreateChallenge(ctx context.Context, challenge *model.OTPChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// FindChallenge loads a challenge and its user by verification token
func (r *OTPRepository) FindChallenge(ctx context.Context, token string) (*model.OTPChallenge, error) {
	var challenge model.OTPChallenge
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("verification_token = ?", token).
		First(&challenge).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &challenge, nil
}

// RecordAttempt counts a wrong code
func (r *OTPRepository) RecordAttempt(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.OTPChallenge{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

// Consume marks the challenge used. Only the first caller gets true.
func (r *OTPRepository) Consume(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.OTPChallenge{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	return res.RowsAffected == 1, res.Error
}

// Reissue replaces the code of a pending challenge
func (r *OTPRepository) Reissue(ctx context.Context, id uint, codeHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OTPChallenge{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Updates(map[string]interface{}{
			"code_hash":  codeHash,
			"expires_at": expiresAt,
			"attempts":   0,
		}).Error
}

// CleanupChallenges deletes challenges that expired or were used before cutoff
func (r *OTPRepository) CleanupChallenges(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("expires_at < ? OR consumed_at < ?", cutoff, cutoff).
		Delete(&model.OTPChallenge{})
	return res.RowsAffected, res.Error
}
