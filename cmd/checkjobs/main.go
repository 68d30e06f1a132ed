package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/sahilchouksey/coursehub-api/database"
	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

func main() {
	retry := flag.Uint("retry", 0, "reset a failed fulfillment task to pending so the next cron run picks it up")
	limit := flag.Int("limit", 20, "number of recent tasks to show")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	db := store.DB()

	if *retry > 0 {
		requeue(db, *retry)
		return
	}

	fmt.Println("========================================")
	fmt.Println("FULFILLMENT TASKS STATUS CHECK")
	fmt.Println("========================================")

	var tasks []model.FulfillmentTask
	if err := db.Order("created_at DESC").Limit(*limit).Find(&tasks).Error; err != nil {
		log.Fatalf("Failed to fetch tasks: %v", err)
	}

	if len(tasks) == 0 {
		fmt.Println("\n❌ No fulfillment tasks found in database")
	} else {
		fmt.Printf("\n📋 Found %d fulfillment tasks:\n\n", len(tasks))

		for _, task := range tasks {
			statusIcon := "⏳"
			switch task.Status {
			case model.TaskStatusDone:
				statusIcon = "✅"
			case model.TaskStatusFailed:
				statusIcon = "❌"
			}

			fmt.Printf("─────────────────────────────────────\n")
			fmt.Printf("%s Task ID: %d\n", statusIcon, task.ID)
			fmt.Printf("   Kind: %s\n", task.Kind)
			fmt.Printf("   Status: %s\n", task.Status)
			fmt.Printf("   Purchase ID: %d\n", task.PurchaseID)
			fmt.Printf("   Attempts: %d\n", task.Attempts)
			fmt.Printf("   Created: %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
			if task.Status == model.TaskStatusPending {
				fmt.Printf("   Next attempt: %s\n", task.NextAttemptAt.Format("2006-01-02 15:04:05"))
			}
			if task.LastError != "" {
				fmt.Printf("   Error: %s\n", truncate(task.LastError, 120))
			}
		}
	}

	// Overdue tasks are pending past their next attempt, usually because cron is disabled
	var overdue int64
	db.Model(&model.FulfillmentTask{}).
		Where("status = ? AND next_attempt_at < ?", model.TaskStatusPending, time.Now().Add(-5*time.Minute)).
		Count(&overdue)

	var failed int64
	db.Model(&model.FulfillmentTask{}).Where("status = ?", model.TaskStatusFailed).Count(&failed)

	fmt.Println("\n========================================")
	fmt.Printf("OVERDUE: %d   FAILED: %d\n", overdue, failed)
	fmt.Println("========================================")

	fmt.Println("\n========================================")
	fmt.Println("RECENT CRON RUNS")
	fmt.Println("========================================")

	var runs []model.CronJobLog
	db.Order("started_at DESC").Limit(10).Find(&runs)

	if len(runs) == 0 {
		fmt.Println("No cron runs recorded")
	} else {
		for _, run := range runs {
			icon := "●"
			if run.Status == "failed" {
				icon = "✗"
			}
			detail := run.Message
			if run.ErrorMsg != "" {
				detail = run.ErrorMsg
			}
			fmt.Printf("%s [%s] %s %s (%dms) %s\n",
				icon, run.Status, run.StartedAt.Format("2006-01-02 15:04"), run.JobName, run.Duration, truncate(detail, 50))
		}
	}

	fmt.Println("\n========================================")
}

func requeue(db *gorm.DB, id uint) {
	result := db.Model(&model.FulfillmentTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusFailed).
		Updates(map[string]interface{}{
			"status":          model.TaskStatusPending,
			"attempts":        0,
			"next_attempt_at": time.Now(),
		})
	if result.Error != nil {
		log.Fatalf("Failed to requeue task %d: %v", id, result.Error)
	}
	if result.RowsAffected == 0 {
		fmt.Printf("❌ Task %d not found or not failed\n", id)
		return
	}
	fmt.Printf("✅ Task %d requeued\n", id)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
