package repository

import (
	"context"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

// FulfillmentRepository stores the outbox of post-commit side effects
type FulfillmentRepository struct {
	db *gorm.DB
}

// NewFulfillmentRepository creates a new fulfillment repository
func NewFulfillmentRepository(db *gorm.DB) *FulfillmentRepository {
	return &FulfillmentRepository{db: db}
}

// CreateTask enqueues a task outside of any larger transaction
func (r *FulfillmentRepository) CreateTask(ctx context.Context, task *model.FulfillmentTask) error {
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}
	if task.NextAttemptAt.IsZero() {
		task.NextAttemptAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// DueTasks lists pending tasks whose next attempt is due
func (r *FulfillmentRepository) DueTasks(ctx context.Context, now time.Time, limit int) ([]model.FulfillmentTask, error) {
	var tasks []model.FulfillmentTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", model.TaskStatusPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// Claim leases a due task to the caller by pushing its next attempt past lease.
// Only one worker gets true for a given due task.
func (r *FulfillmentRepository) Claim(ctx context.Context, taskID uint, now time.Time, lease time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.FulfillmentTask{}).
		Where("id = ? AND status = ? AND next_attempt_at <= ?", taskID, model.TaskStatusPending, now).
		Update("next_attempt_at", now.Add(lease))
	return res.RowsAffected == 1, res.Error
}

// MarkDone completes a task
func (r *FulfillmentRepository) MarkDone(ctx context.Context, taskID uint, attempts int) error {
	return r.db.WithContext(ctx).
		Model(&model.FulfillmentTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusDone,
			"attempts":   attempts,
			"last_error": "",
		}).Error
}

// MarkRetry records a failed attempt and schedules the next one
func (r *FulfillmentRepository) MarkRetry(ctx context.Context, taskID uint, attempts int, next time.Time, lastErr string) error {
	return r.db.WithContext(ctx).
		Model(&model.FulfillmentTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"next_attempt_at": next,
			"last_error":      lastErr,
		}).Error
}

// MarkFailed gives up on a task
func (r *FulfillmentRepository) MarkFailed(ctx context.Context, taskID uint, attempts int, lastErr string) error {
	return r.db.WithContext(ctx).
		Model(&model.FulfillmentTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusFailed,
			"attempts":   attempts,
			"last_error": lastErr,
		}).Error
}

// FindPurchase loads the purchase a task refers to, including deleted ones
func (r *FulfillmentRepository) FindPurchase(ctx context.Context, purchaseID uint) (*model.CoursePurchase, error) {
	var purchase model.CoursePurchase
	err := r.db.WithContext(ctx).
		Unscoped().
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&purchase, purchaseID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &purchase, nil
}
