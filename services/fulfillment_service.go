package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services/storage"
)

const (
	// MaxFulfillmentAttempts is how often a task runs before it is marked failed
	MaxFulfillmentAttempts = 8
	fulfillmentBaseDelay   = time.Minute
	fulfillmentLease       = 5 * time.Minute
)

// FulfillmentStore persists the outbox
type FulfillmentStore interface {
	CreateTask(ctx context.Context, task *model.FulfillmentTask) error
	DueTasks(ctx context.Context, now time.Time, limit int) ([]model.FulfillmentTask, error)
	Claim(ctx context.Context, taskID uint, now time.Time, lease time.Duration) (bool, error)
	MarkDone(ctx context.Context, taskID uint, attempts int) error
	MarkRetry(ctx context.Context, taskID uint, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, taskID uint, attempts int, lastErr string) error
	FindPurchase(ctx context.Context, purchaseID uint) (*model.CoursePurchase, error)
}

// InvoiceRenderer builds and renders invoices
type InvoiceRenderer interface {
	Build(p *model.CoursePurchase) InvoiceData
	RenderToTempFile(d InvoiceData) (string, error)
}

// FulfillmentService executes post-commit side effects: invoice rendering,
// notification emails and invoice archiving.
type FulfillmentService struct {
	store      FulfillmentStore
	mailer     Mailer
	invoices   InvoiceRenderer
	archive    storage.Store // optional
	company    CompanyInfo
	adminEmail string
	now        func() time.Time
}

// NewFulfillmentService creates a new fulfillment service. archive may be nil.
func NewFulfillmentService(store FulfillmentStore, mailer Mailer, invoices InvoiceRenderer, archive storage.Store, company CompanyInfo, adminEmail string) *FulfillmentService {
	return &FulfillmentService{
		store:      store,
		mailer:     mailer,
		invoices:   invoices,
		archive:    archive,
		company:    company,
		adminEmail: adminEmail,
		now:        time.Now,
	}
}

// NewTask builds a pending task with its payload
func NewTask(kind string, payload model.NotificationPayload) *model.FulfillmentTask {
	raw, _ := json.Marshal(payload)
	return &model.FulfillmentTask{
		Kind:          kind,
		Status:        model.TaskStatusPending,
		NextAttemptAt: time.Now(),
		Payload:       raw,
	}
}

// Dispatch stores a task and runs it right away
func (s *FulfillmentService) Dispatch(ctx context.Context, task *model.FulfillmentTask) error {
	if err := s.store.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Kind, err)
	}
	return s.Run(ctx, task)
}

// Run claims the task and executes it once. A failed attempt is rescheduled
// with exponential backoff and the error is returned to the caller.
func (s *FulfillmentService) Run(ctx context.Context, task *model.FulfillmentTask) error {
	now := s.now()
	claimed, err := s.store.Claim(ctx, task.ID, now, fulfillmentLease)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	attempts := task.Attempts + 1
	runErr := s.execute(ctx, task)
	if runErr == nil {
		return s.store.MarkDone(ctx, task.ID, attempts)
	}

	log.Printf("[FULFILLMENT] task %d (%s) attempt %d failed: %v", task.ID, task.Kind, attempts, runErr)
	if attempts >= MaxFulfillmentAttempts {
		if err := s.store.MarkFailed(ctx, task.ID, attempts, runErr.Error()); err != nil {
			return err
		}
		return runErr
	}
	if err := s.store.MarkRetry(ctx, task.ID, attempts, now.Add(RetryDelay(attempts)), runErr.Error()); err != nil {
		return err
	}
	return runErr
}

// ProcessDue runs up to limit due tasks and reports how many succeeded
func (s *FulfillmentService) ProcessDue(ctx context.Context, limit int) (int, int, error) {
	tasks, err := s.store.DueTasks(ctx, s.now(), limit)
	if err != nil {
		return 0, 0, err
	}
	done, failed := 0, 0
	for i := range tasks {
		if ctx.Err() != nil {
			break
		}
		if err := s.Run(ctx, &tasks[i]); err != nil {
			failed++
			continue
		}
		done++
	}
	return done, failed, nil
}

// RetryDelay is the wait before attempt n+1: 1m, 2m, 4m, ...
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return fulfillmentBaseDelay * time.Duration(1<<uint(attempts-1))
}

func (s *FulfillmentService) execute(ctx context.Context, task *model.FulfillmentTask) error {
	var payload model.NotificationPayload
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	purchase, err := s.store.FindPurchase(ctx, task.PurchaseID)
	if err != nil {
		return fmt.Errorf("failed to load purchase %d: %w", task.PurchaseID, err)
	}

	switch task.Kind {
	case model.TaskPurchaseConfirmation:
		return s.sendConfirmation(ctx, purchase, payload)
	case model.TaskRefundNotice:
		return s.sendRefundNotice(ctx, purchase)
	case model.TaskRefundFailureNotice:
		return s.sendRefundFailure(ctx, purchase, payload)
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

func (s *FulfillmentService) sendConfirmation(ctx context.Context, p *model.CoursePurchase, payload model.NotificationPayload) error {
	data := s.invoices.Build(p)
	path, err := s.invoices.RenderToTempFile(data)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	to := []string{p.CustomerEmail, s.adminEmail}
	if payload.AdminOnly {
		to = []string{s.adminEmail}
	}

	err = s.mailer.Send(ctx, EmailMessage{
		To:       to,
		Subject:  fmt.Sprintf("🎉 Congratulations! Your Enrollment is Confirmed! Welcome to %s!", data.CourseName),
		Template: "emails/enrollment",
		Data: map[string]interface{}{
			"CustomerName":  p.CustomerName,
			"CourseName":    data.CourseName,
			"InvoiceNumber": data.InvoiceNumber,
			"TransactionID": p.TransactionID,
			"TotalPaid":     data.TotalPaid,
			"PaymentMode":   p.PaymentMode,
			"CompanyName":   s.company.Name,
			"CompanyEmail":  s.company.Email,
			"Helpline":      s.company.Helpline,
		},
		Attachments: []Attachment{{Path: path, Name: InvoiceFileName(data.InvoiceNumber)}},
	})
	if err != nil {
		return err
	}

	if s.archive != nil {
		s.archiveInvoice(ctx, path, data.InvoiceNumber)
	}
	return nil
}

// archiveInvoice keeps a copy of the mailed invoice. The email already went
// out, so failures are logged and do not retry the task.
func (s *FulfillmentService) archiveInvoice(ctx context.Context, path, invoiceNumber string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("[FULFILLMENT] failed to open invoice %s for archiving: %v", invoiceNumber, err)
		return
	}
	defer f.Close()

	key := "invoices/" + storage.SanitizeName(invoiceNumber) + ".pdf"
	if _, err := s.archive.Upload(ctx, key, f, "application/pdf"); err != nil {
		log.Printf("[FULFILLMENT] failed to archive invoice %s: %v", invoiceNumber, err)
	}
}

func (s *FulfillmentService) sendRefundNotice(ctx context.Context, p *model.CoursePurchase) error {
	if !p.RefundStatus {
		return errors.New("purchase has no refund recorded")
	}
	amount := ""
	if p.RefundAmount != nil {
		amount = p.RefundAmount.StringFixed(2)
	}
	cancelBill := ""
	if p.CancelBillNumber != nil {
		cancelBill = *p.CancelBillNumber
	}

	return s.mailer.Send(ctx, EmailMessage{
		To:       []string{p.CustomerEmail, s.adminEmail},
		Subject:  "Refund Processed Successfully",
		Template: "emails/refund",
		Data: map[string]interface{}{
			"CustomerName":     p.CustomerName,
			"CourseName":       courseName(p),
			"RefundID":         p.RefundID,
			"RefundAmount":     amount,
			"CancelBillNumber": cancelBill,
			"TransactionID":    p.TransactionID,
			"CompanyName":      s.company.Name,
			"CompanyEmail":     s.company.Email,
			"Helpline":         s.company.Helpline,
		},
	})
}

func (s *FulfillmentService) sendRefundFailure(ctx context.Context, p *model.CoursePurchase, payload model.NotificationPayload) error {
	return s.mailer.Send(ctx, EmailMessage{
		To:       []string{s.adminEmail},
		Subject:  "Refund Failed",
		Template: "emails/refund_failed",
		Data: map[string]interface{}{
			"CustomerName":  p.CustomerName,
			"CustomerEmail": p.CustomerEmail,
			"CourseName":    courseName(p),
			"TransactionID": p.TransactionID,
			"RefundAmount":  payload.RefundAmount,
			"ErrorMessage":  payload.ErrorMessage,
		},
	})
}

func courseName(p *model.CoursePurchase) string {
	if p.CourseName != "" {
		return p.CourseName
	}
	return p.Course.Name
}
