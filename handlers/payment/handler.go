package payment

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
	"gorm.io/gorm"
)

// Checkout runs the order, verification and grant flows
type Checkout interface {
	CreateOrder(ctx context.Context, in services.CreateOrderInput) (*services.CreateOrderResult, error)
	VerifyPayment(ctx context.Context, in services.VerifyPaymentInput) (*services.PurchaseResult, error)
	CreateSkipOrder(ctx context.Context, in services.SkipOrderInput) (*services.PurchaseResult, error)
	EnrollFree(ctx context.Context, userID, courseID uint) (*model.Enrollment, error)
}

// Refunder refunds a captured payment
type Refunder interface {
	Refund(ctx context.Context, transactionID string, amount float64) (*services.RefundResult, error)
}

// InvoiceBuilder maps a purchase to the invoice template binding
type InvoiceBuilder interface {
	Build(p *model.CoursePurchase) services.InvoiceData
}

// PaymentHandler handles orders, purchases and refunds
type PaymentHandler struct {
	db        *gorm.DB
	checkout  Checkout
	refunds   Refunder
	invoices  InvoiceBuilder
	validator *validation.Validator
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, checkout Checkout, refunds Refunder, invoices InvoiceBuilder) *PaymentHandler {
	return &PaymentHandler{
		db:        db,
		checkout:  checkout,
		refunds:   refunds,
		invoices:  invoices,
		validator: validation.NewValidator(),
	}
}

// paymentError maps service errors onto the response envelope
// paymentMessages is the text shown to callers for each checkout and refund error
var paymentMessages = []struct {
	err error
	msg string
}{
	{services.ErrCourseNotFound, "Course not found"},
	{services.ErrUserNotFound, "User not found"},
	{services.ErrPurchaseNotFound, "Purchase not found"},
	{services.ErrAlreadyEnrolled, "You already enrolled in this course. Please refresh the page to view content."},
	{services.ErrInvalidSignature, "Invalid signature"},
	{services.ErrInvalidAmount, "Amount must be greater than zero"},
	{services.ErrOrderMismatch, "Order does not belong to this course"},
	{services.ErrCourseNotFree, "This course requires payment"},
	{services.ErrPaymentMode, "Payment mode is required"},
	{services.ErrRefundAlreadyProcessed, "Refund has already been processed"},
	{services.ErrRefundExceedsPayment, "Refund amount exceeds payment amount"},
	{services.ErrRefundNotSupported, "Only gateway payments can be refunded"},
	{services.ErrPaymentNotCaptured, "Payment is not in a refundable state"},
	{services.ErrCaptureInProgress, "Payment capture is still in progress. Please try again shortly."},
	{services.ErrRefundFailed, "Error initiating refund"},
}

func paymentMessage(err error) string {
	for _, m := range paymentMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return ""
}

func paymentError(c *fiber.Ctx, err error) error {
	msg := paymentMessage(err)
	switch {
	case errors.Is(err, services.ErrInvalidCustomer):
		return response.ValidationError(c, err)
	case errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrPurchaseNotFound):
		return response.NotFound(c, msg)
	case errors.Is(err, services.ErrRefundFailed):
		log.Printf("[PAYMENT] %v", err)
		return response.InternalServerError(c, msg)
	case msg != "":
		return response.BadRequest(c, msg)
	case errors.Is(err, razorpay.ErrOrderCreationFailed):
		return response.BadGateway(c, "Failed to create order")
	case errors.Is(err, razorpay.ErrNotConfigured):
		return response.ServiceUnavailable(c, "Payments are not configured")
	default:
		log.Printf("[PAYMENT] %v", err)
		return response.InternalServerError(c, "Failed to process payment")
	}
}
