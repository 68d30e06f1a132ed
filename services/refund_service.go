package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/shopspring/decimal"
)

var (
	ErrPurchaseNotFound       = errors.New("purchase not found")
	ErrRefundAlreadyProcessed = errors.New("refund already processed")
	ErrRefundExceedsPayment   = errors.New("refund amount exceeds payment amount")
	ErrCaptureInProgress      = errors.New("payment capture still in progress")
	ErrRefundNotSupported     = errors.New("payment mode cannot be refunded")
	ErrPaymentNotCaptured     = errors.New("payment not in a refundable state")
	ErrRefundFailed           = errors.New("refund failed")
)

// RefundStore persists refunds on purchases
type RefundStore interface {
	FindSuccessfulPurchase(ctx context.Context, transactionID string) (*model.CoursePurchase, error)
	Refunding(ctx context.Context, purchaseID uint, fn func(tx repository.RefundTx) error) error
}

// gatewayFailure marks an error raised after the refund reached the gateway
// or the database, which the admin is told about
type gatewayFailure struct{ cause error }

func (e gatewayFailure) Error() string { return e.cause.Error() }

// RefundResult describes a processed refund
type RefundResult struct {
	TransactionID    string          `json:"transaction_id"`
	RefundID         string          `json:"refund_id"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	CancelBillNumber string          `json:"cancel_bill_number"`
	RefundDate       time.Time       `json:"refund_date"`
	Status           string          `json:"status"`
}

// RefundService captures authorized payments and refunds them through the gateway
type RefundService struct {
	store      RefundStore
	gateway    PaymentGateway
	fulfiller  Fulfiller
	billPrefix string
	now        func() time.Time
}

// NewRefundService creates a new refund service
func NewRefundService(store RefundStore, gateway PaymentGateway, fulfiller Fulfiller, billPrefix string) *RefundService {
	if billPrefix == "" {
		billPrefix = "CNC"
	}
	return &RefundService{
		store:      store,
		gateway:    gateway,
		fulfiller:  fulfiller,
		billPrefix: billPrefix,
		now:        time.Now,
	}
}

// Refund returns amount (major units) of the payment behind transactionID
func (s *RefundService) Refund(ctx context.Context, transactionID string, amount float64) (*RefundResult, error) {
	refundAmount := decimal.NewFromFloat(amount).Round(2)
	if !refundAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	purchase, err := s.store.FindSuccessfulPurchase(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	if purchase.RefundStatus {
		return nil, ErrRefundAlreadyProcessed
	}
	if purchase.PaymentMode == model.PaymentModeAdminSkip {
		return nil, ErrRefundNotSupported
	}

	var (
		result *RefundResult
		task   *model.FulfillmentTask
	)
	err = s.store.Refunding(ctx, purchase.ID, func(tx repository.RefundTx) error {
		payment, err := s.gateway.FetchPayment(ctx, transactionID)
		if err != nil {
			return gatewayFailure{err}
		}
		if payment.Status == razorpay.StatusRefunded {
			return ErrRefundAlreadyProcessed
		}

		minorAmount := refundAmount.Mul(hundred).Round(0).IntPart()
		if minorAmount > payment.Amount {
			return ErrRefundExceedsPayment
		}

		switch payment.Status {
		case razorpay.StatusAuthorized:
			if _, err := s.gateway.CapturePayment(ctx, payment.ID, payment.Amount, payment.Currency); err != nil {
				return gatewayFailure{err}
			}
			payment, err = s.gateway.FetchPayment(ctx, transactionID)
			if err != nil {
				return gatewayFailure{err}
			}
			if payment.Status != razorpay.StatusCaptured {
				return ErrCaptureInProgress
			}
			log.Printf("[REFUND] captured payment %s before refund", transactionID)
		case razorpay.StatusCaptured:
		default:
			return ErrPaymentNotCaptured
		}

		cancelBill, err := tx.CancelBill(CancelBillScope(s.billPrefix, s.now()))
		if err != nil {
			return gatewayFailure{err}
		}

		refund, err := s.gateway.RefundPayment(ctx, payment.ID, minorAmount, map[string]string{
			"cancelBillNumber": cancelBill,
		})
		if err != nil {
			return gatewayFailure{err}
		}

		now := s.now()
		task = NewTask(model.TaskRefundNotice, model.NotificationPayload{RefundAmount: refundAmount.StringFixed(2)})
		err = tx.Apply(repository.Refund{
			RefundID:         refund.ID,
			Amount:           refundAmount,
			Date:             now,
			CancelBillNumber: cancelBill,
		}, task)
		if err != nil {
			log.Printf("[REFUND] gateway refund %s of %s not recorded: %v", refund.ID, transactionID, err)
			return gatewayFailure{err}
		}

		result = &RefundResult{
			TransactionID:    transactionID,
			RefundID:         refund.ID,
			RefundAmount:     refundAmount,
			CancelBillNumber: cancelBill,
			RefundDate:       now,
			Status:           refund.Status,
		}
		return nil
	})

	var failure gatewayFailure
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAlreadyRefunded):
		return nil, ErrRefundAlreadyProcessed
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrPurchaseNotFound
	case errors.As(err, &failure):
		return nil, s.fail(ctx, purchase, refundAmount, failure.cause)
	case errors.Is(err, ErrRefundAlreadyProcessed), errors.Is(err, ErrRefundExceedsPayment),
		errors.Is(err, ErrCaptureInProgress), errors.Is(err, ErrPaymentNotCaptured):
		return nil, err
	default:
		return nil, s.fail(ctx, purchase, refundAmount, err)
	}
	log.Printf("[REFUND] refund %s of %s recorded for %s (%s)", result.RefundID, refundAmount.StringFixed(2), transactionID, result.CancelBillNumber)

	if s.fulfiller != nil {
		if err := s.fulfiller.Run(ctx, task); err != nil {
			log.Printf("[REFUND] notice for %s deferred to retry: %v", transactionID, err)
		}
	}
	return result, nil
}

// fail tells the admin about a refund that could not be completed
func (s *RefundService) fail(ctx context.Context, p *model.CoursePurchase, amount decimal.Decimal, cause error) error {
	log.Printf("[REFUND] refund of %s failed: %v", p.TransactionID, cause)
	if s.fulfiller != nil {
		task := NewTask(model.TaskRefundFailureNotice, model.NotificationPayload{
			RefundAmount: amount.StringFixed(2),
			ErrorMessage: cause.Error(),
		})
		task.PurchaseID = p.ID
		if err := s.fulfiller.Dispatch(ctx, task); err != nil {
			log.Printf("[REFUND] failure notice for %s deferred: %v", p.TransactionID, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrRefundFailed, cause)
}
