package repository

import (
	"context"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressTx is the view of the database a progress update gets while it
// holds the enrollment lock
type ProgressTx interface {
	Enrollment() *model.Enrollment
	FindProgress(videoID uint) (*model.VideoProgress, error)
	SaveProgress(progress *model.VideoProgress) error
	CourseProgress() ([]model.VideoProgress, error)
	SaveEnrollment(enrollment *model.Enrollment) error
}

// ProgressRepository persists per-video progress and its rollup
type ProgressRepository struct {
	queries
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{queries{db: db}}
}

// Locked runs fn in a transaction holding SELECT ... FOR UPDATE on the
// enrollment row, so updates of one (user, course) never interleave.
// Returns ErrNotFound when the user is not enrolled.
func (r *ProgressRepository) Locked(ctx context.Context, userID, courseID uint, fn func(tx ProgressTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var enrollment model.Enrollment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND course_id = ? AND active = ?", userID, courseID, true).
			First(&enrollment).Error
		if err != nil {
			return notFound(err)
		}
		return fn(&progressTx{tx: tx, enrollment: &enrollment})
	})
}

// ListProgress returns every progress row of a user in a course
func (r *ProgressRepository) ListProgress(ctx context.Context, userID, courseID uint) ([]model.VideoProgress, error) {
	var rows []model.VideoProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&rows).Error
	return rows, err
}

type progressTx struct {
	tx         *gorm.DB
	enrollment *model.Enrollment
}

func (p *progressTx) Enrollment() *model.Enrollment { return p.enrollment }

func (p *progressTx) FindProgress(videoID uint) (*model.VideoProgress, error) {
	var progress model.VideoProgress
	err := p.tx.Where("user_id = ? AND video_id = ?", p.enrollment.UserID, videoID).First(&progress).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &progress, nil
}

func (p *progressTx) SaveProgress(progress *model.VideoProgress) error {
	if progress.ID == 0 {
		return p.tx.Create(progress).Error
	}
	return p.tx.Save(progress).Error
}

func (p *progressTx) CourseProgress() ([]model.VideoProgress, error) {
	var rows []model.VideoProgress
	err := p.tx.Where("user_id = ? AND course_id = ?", p.enrollment.UserID, p.enrollment.CourseID).
		Find(&rows).Error
	return rows, err
}

func (p *progressTx) SaveEnrollment(enrollment *model.Enrollment) error {
	return p.tx.Model(enrollment).Updates(map[string]interface{}{
		"percentage_completed":    enrollment.PercentageCompleted,
		"completed_course_status": enrollment.CompletedCourseStatus,
	}).Error
}
