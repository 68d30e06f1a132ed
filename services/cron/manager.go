package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FulfillmentRunner retries due outbox tasks
type FulfillmentRunner interface {
	ProcessDue(ctx context.Context, limit int) (int, int, error)
}

// OrderExpirer flags abandoned checkout orders
type OrderExpirer interface {
	ExpireStaleOrders(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChallengeCleaner removes old OTP challenges
type ChallengeCleaner interface {
	CleanupChallenges(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenCleaner removes expired blacklist entries
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// Jobs are the collaborators the scheduled jobs run against
type Jobs struct {
	Fulfillment FulfillmentRunner
	Orders      OrderExpirer
	Challenges  ChallengeCleaner
	Tokens      TokenCleaner
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
	jobs Jobs
	now  func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, jobs Jobs) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron: c,
		db:   db,
		jobs: jobs,
		now:  time.Now,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	// Register all jobs
	if err := m.registerJobs(); err != nil {
		return err
	}

	// Start the cron scheduler
	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every minute: retry due fulfillment tasks (emails, invoices)
	_, err := m.cron.AddFunc("0 * * * * *", func() {
		m.run(jobProcessFulfillment, time.Minute, m.ProcessFulfillmentTasks)
	})
	if err != nil {
		return err
	}

	// 2. Every hour: expire checkout orders that were never paid
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.run(jobExpireOrders, 5*time.Minute, m.ExpireStaleOrders)
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: drop old OTP challenges and expired blacklist entries
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.run(jobCleanupAuth, 10*time.Minute, m.CleanupAuthData)
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// run executes one job with a timeout and records it in cron_job_logs
func (m *CronManager) run(jobName string, timeout time.Duration, job func(ctx context.Context) (string, map[string]interface{}, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entry := m.logJobStart(jobName)
	message, metadata, err := job(ctx)
	if err != nil {
		m.logJobError(entry, err)
		return
	}
	m.logJobComplete(entry, message, metadata)
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	start := m.now()
	log.Printf("[CRON] Starting job: %s at %s", jobName, start.Format(time.RFC3339))

	cronLog := &model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: start,
		Metadata:  []byte("{}"),
	}
	if m.db != nil {
		if err := m.db.Create(cronLog).Error; err != nil {
			log.Printf("[CRON] Failed to record start of %s: %v", jobName, err)
		}
	}
	return cronLog
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(entry *model.CronJobLog, message string, metadata map[string]interface{}) {
	log.Printf("[CRON] Completed job: %s - %s", entry.JobName, message)

	updates := m.finish(entry, "completed")
	updates["message"] = message
	if raw, err := json.Marshal(metadata); err == nil && metadata != nil {
		updates["metadata"] = datatypes.JSON(raw)
	}
	m.update(entry, updates)
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(entry *model.CronJobLog, err error) {
	log.Printf("[CRON] Error in job: %s - %v", entry.JobName, err)

	updates := m.finish(entry, "failed")
	updates["error_msg"] = err.Error()
	m.update(entry, updates)
}

func (m *CronManager) finish(entry *model.CronJobLog, status string) map[string]interface{} {
	done := m.now()
	entry.Status = status
	entry.CompletedAt = &done
	entry.Duration = done.Sub(entry.StartedAt).Milliseconds()
	return map[string]interface{}{
		"status":       status,
		"completed_at": done,
		"duration":     entry.Duration,
	}
}

func (m *CronManager) update(entry *model.CronJobLog, updates map[string]interface{}) {
	if m.db == nil || entry.ID == 0 {
		return
	}
	if err := m.db.Model(&model.CronJobLog{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
		log.Printf("[CRON] Failed to record result of %s: %v", entry.JobName, err)
	}
}
