// Package razorpay wraps the Razorpay SDK with typed results and the
// checkout signature check.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/razorpay/razorpay-go"
)

var (
	ErrOrderCreationFailed = errors.New("failed to create order")
	ErrPaymentFetchFailed  = errors.New("failed to fetch payment")
	ErrCaptureFailed       = errors.New("failed to capture payment")
	ErrRefundFailed        = errors.New("failed to refund payment")
	ErrNotConfigured       = errors.New("razorpay credentials are not configured")
)

// Payment statuses reported by the gateway
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

// Config holds the account credentials
type Config struct {
	KeyID     string
	KeySecret string
}

// Order is a gateway order
type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Status   string
}

// Payment is a gateway payment
type Payment struct {
	ID       string
	OrderID  string
	Amount   int64 // minor units
	Currency string
	Status   string
	Method   string
}

// Refund is a gateway refund
type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Client talks to the Razorpay API
type Client struct {
	client    *razorpay.Client
	keyID     string
	keySecret string
}

// NewClient creates a client; it does not call the API
func NewClient(config Config) *Client {
	if config.KeyID == "" || config.KeySecret == "" {
		log.Println("[PAYMENT] WARNING: Razorpay key id or secret is empty")
	}

	return &Client{
		client:    razorpay.NewClient(config.KeyID, config.KeySecret),
		keyID:     config.KeyID,
		keySecret: config.KeySecret,
	}
}

// KeyID is the public key the checkout widget needs
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an order for amount minor units
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := c.client.Order.Create(data, nil)
	if err != nil {
		log.Printf("[PAYMENT] Failed to create Razorpay order for receipt %s: %v", receipt, err)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	order := &Order{
		ID:       str(body["id"]),
		Amount:   minor(body["amount"]),
		Currency: str(body["currency"]),
		Receipt:  str(body["receipt"]),
		Status:   str(body["status"]),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: response has no order id", ErrOrderCreationFailed)
	}

	log.Printf("[PAYMENT] Created Razorpay order %s (%d %s)", order.ID, order.Amount, order.Currency)
	return order, nil
}

// FetchPayment loads a payment
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := c.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFetchFailed, err)
	}
	return toPayment(body), nil
}

// CapturePayment captures an authorized payment for amount minor units
func (c *Client) CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := c.client.Payment.Capture(paymentID, int(amount), map[string]interface{}{
		"currency": currency,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	log.Printf("[PAYMENT] Captured payment %s", paymentID)
	return toPayment(body), nil
}

// RefundPayment refunds amount minor units of a captured payment
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.client.Payment.Refund(paymentID, int(amount), data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	refund := &Refund{
		ID:     str(body["id"]),
		Amount: minor(body["amount"]),
		Status: str(body["status"]),
	}
	log.Printf("[REFUND] Refund %s issued for payment %s", refund.ID, paymentID)
	return refund, nil
}

// VerifySignature checks the checkout signature against the account secret
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if c.keySecret == "" {
		log.Println("[PAYMENT] Signature rejected: no key secret configured")
		return false
	}
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

// Sign returns hex(HMAC-SHA256(orderID|paymentID, secret))
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func toPayment(body map[string]interface{}) *Payment {
	return &Payment{
		ID:       str(body["id"]),
		OrderID:  str(body["order_id"]),
		Amount:   minor(body["amount"]),
		Currency: str(body["currency"]),
		Status:   str(body["status"]),
		Method:   str(body["method"]),
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// minor reads an amount that the JSON decoder may have produced as any number type
func minor(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
