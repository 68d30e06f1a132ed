package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// integrationDB holds the rows one test run creates, keyed by a run suffix so
// the tests can be repeated against the same database
type integrationDB struct {
	db     *gorm.DB
	run    string
	user   *model.User
	course *model.Course
}

func setupIntegrationDB(t *testing.T) *integrationDB {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		envOr("DB_HOST", "localhost"),
		os.Getenv("DB_USER_NAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		envOr("DB_PORT", "5432"),
		envOr("DB_SSL_MODE", "disable"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	require.NoError(t, err, "connect to postgres")

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Video{},
		&model.Order{},
		&model.CoursePurchase{},
		&model.DocumentSequence{},
		&model.FulfillmentTask{},
		&model.Enrollment{},
		&model.VideoProgress{},
	))

	run := fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000_000)
	phone := "9" + run
	user := &model.User{Name: "Integration " + run, Phone: &phone, Role: model.RoleStudent, Active: true}
	require.NoError(t, db.Create(user).Error)
	course := &model.Course{Name: "Integration course " + run, TotalVideo: 2, Price: 1000, Active: true}
	require.NoError(t, db.Create(course).Error)

	idb := &integrationDB{db: db, run: run, user: user, course: course}
	t.Cleanup(func() {
		db.Where("purchase_id IN (?)", db.Model(&model.CoursePurchase{}).Unscoped().Select("id").Where("user_id = ?", user.ID)).
			Delete(&model.FulfillmentTask{})
		db.Unscoped().Where("user_id = ?", user.ID).Delete(&model.CoursePurchase{})
		db.Where("user_id = ?", user.ID).Delete(&model.VideoProgress{})
		db.Where("user_id = ?", user.ID).Delete(&model.Enrollment{})
		db.Where("scope LIKE ?", "%"+run+"%").Delete(&model.DocumentSequence{})
		db.Unscoped().Delete(course)
		db.Unscoped().Delete(user)
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return idb
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (d *integrationDB) purchase(txn string) *model.CoursePurchase {
	return &model.CoursePurchase{
		CourseID:        d.course.ID,
		CourseName:      d.course.Name,
		UserID:          d.user.ID,
		TransactionID:   txn,
		GatewayOrderID:  "order_" + txn,
		TransactionDate: time.Now(),
		TotalPaidAmount: decimal.NewFromInt(1180),
		PaymentMode:     model.PaymentModeUPI,
		Active:          true,
	}
}

func (d *integrationDB) completed(t *testing.T, repo *PaymentRepository, txn string) *model.CoursePurchase {
	t.Helper()
	res, err := repo.CompletePurchase(context.Background(), Completion{
		Purchase:     d.purchase(txn),
		InvoiceScope: "INV" + d.run + "-",
	})
	require.NoError(t, err)
	return res.Purchase
}

func TestIntegration_NextSequenceCountsPerScope(t *testing.T) {
	d := setupIntegrationDB(t)

	october := "CNC" + d.run + "-202610"
	november := "CNC" + d.run + "-202611"

	for want := int64(1); want <= 3; want++ {
		got, err := nextSequence(d.db, october)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := nextSequence(d.db, november)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "a new month starts a new counter")

	got, err = nextSequence(d.db, october)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestIntegration_NextSequenceRollbackReturnsNumber(t *testing.T) {
	d := setupIntegrationDB(t)
	scope := "CNC" + d.run + "-202610"

	boom := errors.New("rollback")
	err := d.db.Transaction(func(tx *gorm.DB) error {
		n, err := nextSequence(tx, scope)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := nextSequence(d.db, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegration_NextSequenceConcurrentCallersGetDistinctNumbers(t *testing.T) {
	d := setupIntegrationDB(t)
	scope := "INV" + d.run + "-202610"

	const workers = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := nextSequence(d.db, scope)
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
	for n := int64(1); n <= workers; n++ {
		assert.True(t, seen[n], "missing %d", n)
	}
}

func TestIntegration_CompletePurchaseRejectsDuplicateTransaction(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewPaymentRepository(d.db)
	ctx := context.Background()
	txn := "pay_" + d.run

	first := d.completed(t, repo, txn)
	assert.Equal(t, "INV"+d.run+"-01", first.Invoice())

	_, err := repo.CompletePurchase(ctx, Completion{Purchase: d.purchase(txn), InvoiceScope: "INV" + d.run + "-"})
	require.ErrorIs(t, err, ErrDuplicateTransaction)

	// the rejected attempt does not consume an invoice number
	second := d.completed(t, repo, txn+"_b")
	assert.Equal(t, "INV"+d.run+"-02", second.Invoice())

	var count int64
	require.NoError(t, d.db.Model(&model.CoursePurchase{}).
		Where("transaction_id = ? AND status = ?", txn, model.PurchaseStatusSuccess).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIntegration_FailuresMayShareTransactionID(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewPaymentRepository(d.db)
	ctx := context.Background()
	txn := "pay_" + d.run

	require.NoError(t, repo.RecordFailure(ctx, d.purchase(txn)))
	require.NoError(t, repo.RecordFailure(ctx, d.purchase(txn)))

	// the unique index only covers Success rows
	d.completed(t, repo, txn)

	found, err := repo.FindSuccessfulPurchase(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusSuccess, found.Status)

	var failures int64
	require.NoError(t, d.db.Model(&model.CoursePurchase{}).
		Where("transaction_id = ? AND status = ?", txn, model.PurchaseStatusFailure).
		Count(&failures).Error)
	assert.Equal(t, int64(2), failures)
}

func TestIntegration_EnrollmentCreatedOnce(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewPaymentRepository(d.db)
	ctx := context.Background()

	const workers = 8
	ids := make([]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enrollment, err := repo.Enroll(ctx, d.user.ID, d.course.ID)
			if assert.NoError(t, err) {
				ids[i] = enrollment.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	// a later purchase keeps the existing enrollment
	purchase := d.completed(t, repo, "pay_"+d.run)
	var count int64
	require.NoError(t, d.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", purchase.UserID, purchase.CourseID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIntegration_ProgressLockSerializesUpdates(t *testing.T) {
	d := setupIntegrationDB(t)
	ctx := context.Background()
	_, err := NewPaymentRepository(d.db).Enroll(ctx, d.user.ID, d.course.ID)
	require.NoError(t, err)

	repo := NewProgressRepository(d.db)

	// every worker reads, waits and writes back; without the row lock the
	// increments would overwrite each other
	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Locked(ctx, d.user.ID, d.course.ID, func(tx ProgressTx) error {
				enrollment := tx.Enrollment()
				current := enrollment.PercentageCompleted
				time.Sleep(50 * time.Millisecond)
				enrollment.PercentageCompleted = current + 10
				return tx.SaveEnrollment(enrollment)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var enrollment model.Enrollment
	require.NoError(t, d.db.Where("user_id = ? AND course_id = ?", d.user.ID, d.course.ID).First(&enrollment).Error)
	assert.Equal(t, float64(workers*10), enrollment.PercentageCompleted)
}

func TestIntegration_ProgressLockRequiresEnrollment(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewProgressRepository(d.db)

	called := false
	err := repo.Locked(context.Background(), d.user.ID, d.course.ID, func(ProgressTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
}

func TestIntegration_RefundRollbackReturnsCancelBill(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewPaymentRepository(d.db)
	ctx := context.Background()
	purchase := d.completed(t, repo, "pay_"+d.run)
	scope := "CNC" + d.run + "-202610"

	gatewayDown := errors.New("gateway down")
	err := repo.Refunding(ctx, purchase.ID, func(tx RefundTx) error {
		bill, err := tx.CancelBill(scope)
		require.NoError(t, err)
		assert.Equal(t, scope+"01", bill)
		return gatewayDown
	})
	require.ErrorIs(t, err, gatewayDown)

	err = repo.Refunding(ctx, purchase.ID, func(tx RefundTx) error {
		bill, err := tx.CancelBill(scope)
		if err != nil {
			return err
		}
		assert.Equal(t, scope+"01", bill)
		return tx.Apply(Refund{
			RefundID:         "rfnd_" + d.run,
			Amount:           decimal.NewFromInt(1180),
			Date:             time.Now(),
			CancelBillNumber: bill,
		}, &model.FulfillmentTask{
			Kind:          model.TaskRefundNotice,
			Status:        model.TaskStatusPending,
			NextAttemptAt: time.Now(),
		})
	})
	require.NoError(t, err)

	var stored model.CoursePurchase
	require.NoError(t, d.db.First(&stored, purchase.ID).Error)
	assert.True(t, stored.RefundStatus)
	require.NotNil(t, stored.CancelBillNumber)
	assert.Equal(t, scope+"01", *stored.CancelBillNumber)

	var tasks int64
	require.NoError(t, d.db.Model(&model.FulfillmentTask{}).
		Where("purchase_id = ? AND kind = ?", purchase.ID, model.TaskRefundNotice).
		Count(&tasks).Error)
	assert.Equal(t, int64(1), tasks)

	called := false
	err = repo.Refunding(ctx, purchase.ID, func(RefundTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.False(t, called)
}

func TestIntegration_ConcurrentRefundsApplyOnce(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewPaymentRepository(d.db)
	ctx := context.Background()
	purchase := d.completed(t, repo, "pay_"+d.run)
	scope := "CNC" + d.run + "-202610"

	const workers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		calls    int
		applied  int
		refunded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Refunding(ctx, purchase.ID, func(tx RefundTx) error {
				mu.Lock()
				calls++
				mu.Unlock()
				time.Sleep(50 * time.Millisecond)
				bill, err := tx.CancelBill(scope)
				if err != nil {
					return err
				}
				return tx.Apply(Refund{
					RefundID:         "rfnd_" + d.run,
					Amount:           decimal.NewFromInt(1180),
					Date:             time.Now(),
					CancelBillNumber: bill,
				}, nil)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				applied++
			case errors.Is(err, ErrAlreadyRefunded):
				refunded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, applied)
	assert.Equal(t, workers-1, refunded)

	var value int64
	require.NoError(t, d.db.Model(&model.DocumentSequence{}).Select("value").
		Where("scope = ?", scope).Scan(&value).Error)
	assert.Equal(t, int64(1), value)
}

func TestIntegration_RefundingUnknownPurchase(t *testing.T) {
	d := setupIntegrationDB(t)
	repo := NewPaymentRepository(d.db)

	err := repo.Refunding(context.Background(), 0, func(RefundTx) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
