package cron

import (
	"context"
	"fmt"
	"time"
)

const (
	jobProcessFulfillment = "process_fulfillment_tasks"
	jobExpireOrders       = "expire_stale_orders"
	jobCleanupAuth        = "cleanup_auth_data"

	fulfillmentBatchSize = 50
	orderExpiry          = 24 * time.Hour
	challengeRetention   = 7 * 24 * time.Hour
)

// ProcessFulfillmentTasks runs outbox tasks whose next attempt is due.
// Tasks that fail again are rescheduled by the fulfillment service itself.
func (m *CronManager) ProcessFulfillmentTasks(ctx context.Context) (string, map[string]interface{}, error) {
	if m.jobs.Fulfillment == nil {
		return "Fulfillment not configured", nil, nil
	}
	done, failed, err := m.jobs.Fulfillment.ProcessDue(ctx, fulfillmentBatchSize)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load due tasks: %w", err)
	}
	if done+failed == 0 {
		return "No tasks due", nil, nil
	}
	return fmt.Sprintf("Ran %d tasks, %d failed", done+failed, failed),
		map[string]interface{}{"done": done, "failed": failed}, nil
}

// ExpireStaleOrders flags gateway orders older than a day that never completed
func (m *CronManager) ExpireStaleOrders(ctx context.Context) (string, map[string]interface{}, error) {
	if m.jobs.Orders == nil {
		return "Orders not configured", nil, nil
	}
	n, err := m.jobs.Orders.ExpireStaleOrders(ctx, m.now().Add(-orderExpiry))
	if err != nil {
		return "", nil, fmt.Errorf("failed to expire orders: %w", err)
	}
	return fmt.Sprintf("Expired %d orders", n), map[string]interface{}{"expired": n}, nil
}

// CleanupAuthData removes OTP challenges older than a week and expired
// blacklisted tokens
func (m *CronManager) CleanupAuthData(ctx context.Context) (string, map[string]interface{}, error) {
	var challenges, tokens int64
	var err error

	if m.jobs.Challenges != nil {
		challenges, err = m.jobs.Challenges.CleanupChallenges(ctx, m.now().Add(-challengeRetention))
		if err != nil {
			return "", nil, fmt.Errorf("failed to clean up challenges: %w", err)
		}
	}
	if m.jobs.Tokens != nil {
		tokens, err = m.jobs.Tokens.CleanupExpiredTokens(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("failed to clean up blacklist: %w", err)
		}
	}

	return fmt.Sprintf("Removed %d challenges and %d blacklisted tokens", challenges, tokens),
		map[string]interface{}{"challenges": challenges, "tokens": tokens}, nil
}
