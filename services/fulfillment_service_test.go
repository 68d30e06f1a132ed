package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvoices struct {
	dir   string
	paths []string
}

func (s *stubInvoices) Build(p *model.CoursePurchase) InvoiceData {
	return InvoiceData{InvoiceNumber: p.Invoice(), CourseName: p.CourseName, TotalPaid: p.TotalPaidAmount.StringFixed(2)}
}

func (s *stubInvoices) RenderToTempFile(d InvoiceData) (string, error) {
	path := filepath.Join(s.dir, "invoice_"+d.InvoiceNumber+".pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		return "", err
	}
	s.paths = append(s.paths, path)
	return path, nil
}

func newFulfillmentFixture(t *testing.T) (*memStore, *fakeMailer, *stubInvoices, *FulfillmentService, *model.CoursePurchase) {
	t.Helper()
	store := newMemStore()
	invoice := "COS-20261001"
	purchase := &model.CoursePurchase{
		ID:              1,
		CourseName:      "Financial Accounting",
		TransactionID:   "pay_1",
		CustomerName:    "Asha",
		CustomerEmail:   "asha@example.com",
		Status:          model.PurchaseStatusSuccess,
		TotalPaidAmount: decimal.NewFromInt(100),
		InvoiceNumber:   &invoice,
	}
	store.purchases = append(store.purchases, purchase)

	mailer := &fakeMailer{}
	invoices := &stubInvoices{dir: t.TempDir()}
	svc := NewFulfillmentService(store, mailer, invoices, nil, CompanyInfo{Name: "CourseHub"}, "admin@example.com")
	svc.now = func() time.Time { return fixedNow }
	return store, mailer, invoices, svc, purchase
}

func pendingTask(kind string, purchaseID uint, payload model.NotificationPayload) *model.FulfillmentTask {
	task := NewTask(kind, payload)
	task.PurchaseID = purchaseID
	task.NextAttemptAt = fixedNow
	return task
}

func TestFulfillment_PurchaseConfirmation(t *testing.T) {
	store, mailer, invoices, svc, _ := newFulfillmentFixture(t)

	task := pendingTask(model.TaskPurchaseConfirmation, 1, model.NotificationPayload{})
	require.NoError(t, svc.Dispatch(context.Background(), task))

	assert.Equal(t, model.TaskStatusDone, store.tasks[task.ID].Status)
	assert.Equal(t, 1, store.tasks[task.ID].Attempts)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, []string{"asha@example.com", "admin@example.com"}, msg.To)
	assert.Equal(t, "🎉 Congratulations! Your Enrollment is Confirmed! Welcome to Financial Accounting!", msg.Subject)
	assert.Equal(t, "emails/enrollment", msg.Template)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice_COS-20261001.pdf", msg.Attachments[0].Name)

	require.Len(t, invoices.paths, 1)
	_, err := os.Stat(invoices.paths[0])
	assert.True(t, os.IsNotExist(err), "rendered invoice should be removed after sending")
}

func TestFulfillment_AdminOnlyConfirmation(t *testing.T) {
	_, mailer, _, svc, _ := newFulfillmentFixture(t)

	task := pendingTask(model.TaskPurchaseConfirmation, 1, model.NotificationPayload{AdminOnly: true})
	require.NoError(t, svc.Dispatch(context.Background(), task))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"admin@example.com"}, mailer.sent[0].To)
}

func TestFulfillment_RefundNotices(t *testing.T) {
	_, mailer, _, svc, purchase := newFulfillmentFixture(t)
	ctx := context.Background()

	failure := pendingTask(model.TaskRefundFailureNotice, 1, model.NotificationPayload{RefundAmount: "50.00", ErrorMessage: "gateway timeout"})
	require.NoError(t, svc.Dispatch(ctx, failure))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Refund Failed", mailer.sent[0].Subject)
	assert.Equal(t, []string{"admin@example.com"}, mailer.sent[0].To)

	notice := pendingTask(model.TaskRefundNotice, 1, model.NotificationPayload{})
	assert.Error(t, svc.Dispatch(ctx, notice), "a refund notice needs a recorded refund")

	amount := decimal.NewFromInt(50)
	bill := "CNC-20261001"
	purchase.RefundStatus = true
	purchase.RefundID = "rfnd_1"
	purchase.RefundAmount = &amount
	purchase.CancelBillNumber = &bill

	notice = pendingTask(model.TaskRefundNotice, 1, model.NotificationPayload{})
	require.NoError(t, svc.Dispatch(ctx, notice))
	last := mailer.sent[len(mailer.sent)-1]
	assert.Equal(t, "Refund Processed Successfully", last.Subject)
	assert.Equal(t, []string{"asha@example.com", "admin@example.com"}, last.To)
}

func TestFulfillment_RetriesWithBackoffThenFails(t *testing.T) {
	store, mailer, _, svc, _ := newFulfillmentFixture(t)
	mailer.err = errors.New("smtp down")
	ctx := context.Background()

	task := pendingTask(model.TaskPurchaseConfirmation, 1, model.NotificationPayload{})
	require.NoError(t, store.CreateTask(ctx, task))

	err := svc.Run(ctx, task)
	require.Error(t, err)
	stored := store.tasks[task.ID]
	assert.Equal(t, model.TaskStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, fixedNow.Add(time.Minute), stored.NextAttemptAt)
	assert.Equal(t, "smtp down", stored.LastError)

	// not due yet
	done, failed, err := svc.ProcessDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, done+failed)

	now := fixedNow
	for stored.Status == model.TaskStatusPending {
		now = now.Add(24 * time.Hour)
		svc.now = func() time.Time { return now }
		_, _, err := svc.ProcessDue(ctx, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, model.TaskStatusFailed, stored.Status)
	assert.Equal(t, MaxFulfillmentAttempts, stored.Attempts)
}

func TestFulfillment_ClaimedTaskRunsOnce(t *testing.T) {
	store, mailer, _, svc, _ := newFulfillmentFixture(t)
	ctx := context.Background()

	task := pendingTask(model.TaskPurchaseConfirmation, 1, model.NotificationPayload{})
	require.NoError(t, store.CreateTask(ctx, task))

	require.NoError(t, svc.Run(ctx, task))
	require.NoError(t, svc.Run(ctx, task))
	assert.Len(t, mailer.sent, 1)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Minute, RetryDelay(1))
	assert.Equal(t, 2*time.Minute, RetryDelay(2))
	assert.Equal(t, 4*time.Minute, RetryDelay(3))
	assert.Equal(t, 128*time.Minute, RetryDelay(8))
}
