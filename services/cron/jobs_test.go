package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	done, failed int
	err          error
	limit        int
}

func (f *fakeRunner) ProcessDue(_ context.Context, limit int) (int, int, error) {
	f.limit = limit
	return f.done, f.failed, f.err
}

type fakeExpirer struct{ cutoff time.Time }

func (f *fakeExpirer) ExpireStaleOrders(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

type fakeCleaner struct {
	cutoff time.Time
	err    error
}

func (f *fakeCleaner) CleanupChallenges(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 12, f.err
}

func (f *fakeCleaner) CleanupExpiredTokens(context.Context) (int64, error) {
	return 4, f.err
}

var now = time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)

func newManager(jobs Jobs) *CronManager {
	m := NewCronManager(nil, jobs)
	m.now = func() time.Time { return now }
	return m
}

func TestProcessFulfillmentTasks(t *testing.T) {
	runner := &fakeRunner{done: 4, failed: 1}
	m := newManager(Jobs{Fulfillment: runner})

	msg, meta, err := m.ProcessFulfillmentTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ran 5 tasks, 1 failed", msg)
	assert.Equal(t, 1, meta["failed"])
	assert.Equal(t, fulfillmentBatchSize, runner.limit)

	runner.done, runner.failed = 0, 0
	msg, _, err = m.ProcessFulfillmentTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No tasks due", msg)

	runner.err = errors.New("db down")
	_, _, err = m.ProcessFulfillmentTasks(context.Background())
	assert.Error(t, err)
}

func TestExpireStaleOrders(t *testing.T) {
	expirer := &fakeExpirer{}
	m := newManager(Jobs{Orders: expirer})

	msg, _, err := m.ExpireStaleOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Expired 3 orders", msg)
	assert.Equal(t, now.Add(-24*time.Hour), expirer.cutoff)
}

func TestCleanupAuthData(t *testing.T) {
	cleaner := &fakeCleaner{}
	m := newManager(Jobs{Challenges: cleaner, Tokens: cleaner})

	msg, meta, err := m.CleanupAuthData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Removed 12 challenges and 4 blacklisted tokens", msg)
	assert.Equal(t, int64(12), meta["challenges"])
	assert.Equal(t, now.Add(-7*24*time.Hour), cleaner.cutoff)

	cleaner.err = errors.New("boom")
	_, _, err = m.CleanupAuthData(context.Background())
	assert.Error(t, err)
}

func TestRunRecordsOutcomeWithoutDatabase(t *testing.T) {
	m := newManager(Jobs{})
	called := false
	m.run("noop", time.Second, func(ctx context.Context) (string, map[string]interface{}, error) {
		called = true
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return "ok", nil, nil
	})
	assert.True(t, called)
}

func TestRegisterJobs(t *testing.T) {
	m := newManager(Jobs{})
	require.NoError(t, m.registerJobs())
	assert.Len(t, m.cron.Entries(), 3)
}
