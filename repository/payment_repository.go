package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Completion describes everything written when a payment succeeds
type Completion struct {
	Purchase     *model.CoursePurchase
	InvoiceScope string // e.g. "COS-202610"
	SkipOrder    *model.Order
	Task         *model.FulfillmentTask
}

// CompletionResult holds the rows as stored
type CompletionResult struct {
	Purchase   *model.CoursePurchase
	Enrollment *model.Enrollment
	Task       *model.FulfillmentTask
}

// Refund is the gateway outcome applied to a purchase
type Refund struct {
	RefundID         string
	Amount           decimal.Decimal
	Date             time.Time
	CancelBillNumber string
}

// PaymentRepository persists orders, purchases and their refunds
type PaymentRepository struct {
	queries
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{queries{db: db}}
}

// SaveUser inserts or updates a user
func (r *PaymentRepository) SaveUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// CreateOrder stores a gateway order
func (r *PaymentRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindOrderByGatewayID loads an order by the gateway's order id
func (r *PaymentRepository) FindOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindSuccessfulPurchase loads the Success purchase recorded for a transaction id
func (r *PaymentRepository) FindSuccessfulPurchase(ctx context.Context, transactionID string) (*model.CoursePurchase, error) {
	var purchase model.CoursePurchase
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND status = ?", transactionID, model.PurchaseStatusSuccess).
		First(&purchase).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &purchase, nil
}

// RecordFailure stores a purchase attempt that did not pass verification
func (r *PaymentRepository) RecordFailure(ctx context.Context, purchase *model.CoursePurchase) error {
	purchase.Status = model.PurchaseStatusFailure
	return r.db.WithContext(ctx).Create(purchase).Error
}

// CompletePurchase writes the purchase, its invoice number, the enrollment, the
// order completion and the fulfillment task in a single transaction.
func (r *PaymentRepository) CompletePurchase(ctx context.Context, c Completion) (*CompletionResult, error) {
	result := &CompletionResult{Purchase: c.Purchase, Task: c.Task}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := nextSequence(tx, c.InvoiceScope)
		if err != nil {
			return err
		}
		invoice := model.FormatSequence(c.InvoiceScope, n)
		c.Purchase.InvoiceNumber = &invoice
		c.Purchase.Status = model.PurchaseStatusSuccess

		if c.SkipOrder != nil {
			c.SkipOrder.Completed = true
			if err := tx.Create(c.SkipOrder).Error; err != nil {
				return fmt.Errorf("failed to save order: %w", err)
			}
		}

		if err := tx.Create(c.Purchase).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTransaction
			}
			return fmt.Errorf("failed to save purchase: %w", err)
		}

		enrollment := model.Enrollment{
			UserID:     c.Purchase.UserID,
			CourseID:   c.Purchase.CourseID,
			EnrolledAt: time.Now(),
			Active:     true,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).Create(&enrollment).Error
		if err != nil {
			return fmt.Errorf("failed to save enrollment: %w", err)
		}
		if enrollment.ID == 0 {
			// Already enrolled, keep the existing row and its progress
			if err := tx.Where("user_id = ? AND course_id = ?", c.Purchase.UserID, c.Purchase.CourseID).
				First(&enrollment).Error; err != nil {
				return err
			}
		}
		result.Enrollment = &enrollment

		if c.SkipOrder == nil && c.Purchase.GatewayOrderID != "" {
			err := tx.Model(&model.Order{}).
				Where("gateway_order_id = ?", c.Purchase.GatewayOrderID).
				Update("completed", true).Error
			if err != nil {
				return fmt.Errorf("failed to complete order: %w", err)
			}
		}

		if c.Task != nil {
			c.Task.PurchaseID = c.Purchase.ID
			if err := tx.Create(c.Task).Error; err != nil {
				return fmt.Errorf("failed to enqueue fulfillment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Enroll grants access without a purchase, keeping an existing enrollment
func (r *PaymentRepository) Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	enrollment := model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
		Active:     true,
	}
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(&enrollment).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}
	if enrollment.ID == 0 {
		if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error; err != nil {
			return nil, notFound(err)
		}
	}
	return &enrollment, nil
}

// RefundTx is the view of the database a refund gets while it holds the
// purchase lock
type RefundTx interface {
	Purchase() *model.CoursePurchase
	// CancelBill allocates the next number of scope. It is given back when
	// the refund rolls back.
	CancelBill(scope string) (string, error)
	// Apply records the gateway refund and enqueues its notification
	Apply(refund Refund, task *model.FulfillmentTask) error
}

// Refunding runs fn in a transaction holding SELECT ... FOR UPDATE on the
// purchase row. A second refund of the same purchase waits for the first and
// then fails with ErrAlreadyRefunded, before fn runs.
func (r *PaymentRepository) Refunding(ctx context.Context, purchaseID uint, fn func(tx RefundTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchase model.CoursePurchase
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", purchaseID, model.PurchaseStatusSuccess).
			First(&purchase).Error
		if err != nil {
			return notFound(err)
		}
		if purchase.RefundStatus {
			return ErrAlreadyRefunded
		}
		return fn(&refundTx{tx: tx, purchase: &purchase})
	})
}

type refundTx struct {
	tx       *gorm.DB
	purchase *model.CoursePurchase
}

func (t *refundTx) Purchase() *model.CoursePurchase { return t.purchase }

func (t *refundTx) CancelBill(scope string) (string, error) {
	n, err := nextSequence(t.tx, scope)
	if err != nil {
		return "", err
	}
	return model.FormatSequence(scope, n), nil
}

func (t *refundTx) Apply(refund Refund, task *model.FulfillmentTask) error {
	err := t.tx.Model(t.purchase).Updates(map[string]interface{}{
		"refund_id":          refund.RefundID,
		"refund_amount":      refund.Amount,
		"refund_date":        refund.Date,
		"refund_status":      true,
		"cancel_bill_number": refund.CancelBillNumber,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}

	if task != nil {
		task.PurchaseID = t.purchase.ID
		if err := t.tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to enqueue fulfillment: %w", err)
		}
	}
	return nil
}

// ExpireStaleOrders flags gateway orders older than cutoff that never completed
func (r *PaymentRepository) ExpireStaleOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("source = ? AND completed = ? AND expired = ? AND created_at < ?",
			model.OrderSourceGateway, false, false, cutoff).
		Update("expired", true)
	return res.RowsAffected, res.Error
}
