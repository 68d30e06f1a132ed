package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckout struct {
	orderIn  services.CreateOrderInput
	verifyIn services.VerifyPaymentInput
	skipIn   services.SkipOrderInput
	err      error
	replayed bool
}

func (f *fakeCheckout) CreateOrder(_ context.Context, in services.CreateOrderInput) (*services.CreateOrderResult, error) {
	f.orderIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &services.CreateOrderResult{OrderID: "order_1", KeyID: "rzp_test", Amount: in.Amount, Currency: "INR"}, nil
}

func (f *fakeCheckout) VerifyPayment(_ context.Context, in services.VerifyPaymentInput) (*services.PurchaseResult, error) {
	f.verifyIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &services.PurchaseResult{InvoiceNumber: "COS-20261001", Replayed: f.replayed}, nil
}

func (f *fakeCheckout) CreateSkipOrder(_ context.Context, in services.SkipOrderInput) (*services.PurchaseResult, error) {
	f.skipIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &services.PurchaseResult{InvoiceNumber: "COS-20261002"}, nil
}

func (f *fakeCheckout) EnrollFree(_ context.Context, userID, courseID uint) (*model.Enrollment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Enrollment{UserID: userID, CourseID: courseID}, nil
}

type fakeRefunder struct {
	txn    string
	amount float64
	err    error
}

func (f *fakeRefunder) Refund(_ context.Context, txn string, amount float64) (*services.RefundResult, error) {
	f.txn, f.amount = txn, amount
	if f.err != nil {
		return nil, f.err
	}
	return &services.RefundResult{TransactionID: txn, RefundID: "rfnd_1", RefundAmount: decimal.NewFromFloat(amount), CancelBillNumber: "CNC-20261001"}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newPaymentApp(checkout *fakeCheckout, refunds *fakeRefunder, principal *model.User) *fiber.App {
	h := NewPaymentHandler(nil, checkout, refunds, nil)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", principal)
		c.Locals("user_id", principal.ID)
		return c.Next()
	})
	app.Post("/payments/orders", h.CreateOrder)
	app.Post("/payments/verify", h.VerifyPayment)
	app.Post("/admin/payments/skip", h.SkipOrder)
	app.Post("/courses/:id/enroll", h.EnrollFree)
	app.Post("/admin/refunds/:transactionId", h.Refund)
	return app
}

func post(t *testing.T, app *fiber.App, path string, body interface{}) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(out, &env), string(out))
	return resp.StatusCode, env
}

func learner() *model.User { return &model.User{ID: 7, Role: model.RoleStudent, Active: true} }
func admin() *model.User   { return &model.User{ID: 1, Role: model.RoleAdmin, Active: true} }

func verifyBody() map[string]interface{} {
	return map[string]interface{}{
		"razorpay_payment_id": "pay_1",
		"razorpay_order_id":   "order_1",
		"razorpay_signature":  "sig",
		"course_id":           3,
		"customer_details": map[string]interface{}{
			"user_id":      99,
			"name":         "Asha",
			"email":        "asha@example.com",
			"state":        "Gujarat",
			"payment_mode": "UPI",
		},
	}
}

func TestCreateOrder_UsesTokenUser(t *testing.T) {
	checkout := &fakeCheckout{}
	app := newPaymentApp(checkout, &fakeRefunder{}, learner())

	status, env := post(t, app, "/payments/orders", map[string]interface{}{
		"course_id": 3, "amount": 49900, "user_id": 42,
	})

	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)
	assert.Equal(t, uint(7), checkout.orderIn.UserID, "learners cannot order for someone else")
	assert.Equal(t, int64(49900), checkout.orderIn.Amount)
}

func TestCreateOrder_AdminMayChooseUser(t *testing.T) {
	checkout := &fakeCheckout{}
	app := newPaymentApp(checkout, &fakeRefunder{}, admin())

	status, _ := post(t, app, "/payments/orders", map[string]interface{}{
		"course_id": 3, "amount": 49900, "user_id": 42,
	})

	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, uint(42), checkout.orderIn.UserID)
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{services.ErrAlreadyEnrolled, fiber.StatusBadRequest, "You already enrolled in this course. Please refresh the page to view content."},
		{services.ErrCourseNotFound, fiber.StatusNotFound, "Course not found"},
		{fmt.Errorf("%w: timeout", razorpay.ErrOrderCreationFailed), fiber.StatusBadGateway, "Failed to create order"},
		{fmt.Errorf("boom"), fiber.StatusInternalServerError, "Failed to process payment"},
	}
	for _, tc := range cases {
		app := newPaymentApp(&fakeCheckout{err: tc.err}, &fakeRefunder{}, learner())
		status, env := post(t, app, "/payments/orders", map[string]interface{}{"course_id": 3, "amount": 100})
		assert.Equal(t, tc.status, status, tc.err.Error())
		require.NotNil(t, env.Error)
		assert.Equal(t, tc.msg, env.Error.Message)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	app := newPaymentApp(&fakeCheckout{}, &fakeRefunder{}, learner())

	status, env := post(t, app, "/payments/orders", map[string]interface{}{"course_id": 3, "amount": 0})

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.False(t, env.Success)
}

func TestVerifyPayment(t *testing.T) {
	t.Run("learner is always the buyer", func(t *testing.T) {
		checkout := &fakeCheckout{}
		app := newPaymentApp(checkout, &fakeRefunder{}, learner())

		status, env := post(t, app, "/payments/verify", verifyBody())

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Payment verified successfully", env.Message)
		assert.Equal(t, uint(7), checkout.verifyIn.UserID)
		assert.Equal(t, "pay_1", checkout.verifyIn.PaymentID)
	})

	t.Run("replay is reported", func(t *testing.T) {
		app := newPaymentApp(&fakeCheckout{replayed: true}, &fakeRefunder{}, learner())
		status, env := post(t, app, "/payments/verify", verifyBody())
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Payment already verified", env.Message)
	})

	t.Run("bad signature", func(t *testing.T) {
		app := newPaymentApp(&fakeCheckout{err: services.ErrInvalidSignature}, &fakeRefunder{}, learner())
		status, env := post(t, app, "/payments/verify", verifyBody())
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "Invalid signature", env.Error.Message)
	})

	t.Run("customer details reach the signature check", func(t *testing.T) {
		body := verifyBody()
		body["customer_details"] = map[string]interface{}{}
		checkout := &fakeCheckout{err: services.ErrInvalidSignature}
		app := newPaymentApp(checkout, &fakeRefunder{}, learner())

		status, env := post(t, app, "/payments/verify", body)

		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "Invalid signature", env.Error.Message)
		assert.Equal(t, "pay_1", checkout.verifyIn.PaymentID)
	})

	t.Run("invalid customer details are a validation error", func(t *testing.T) {
		err := fmt.Errorf("%w: email", services.ErrInvalidCustomer)
		app := newPaymentApp(&fakeCheckout{err: err}, &fakeRefunder{}, learner())
		status, _ := post(t, app, "/payments/verify", verifyBody())
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	})

	t.Run("missing gateway ids are rejected", func(t *testing.T) {
		body := verifyBody()
		delete(body, "razorpay_signature")
		checkout := &fakeCheckout{}
		app := newPaymentApp(checkout, &fakeRefunder{}, learner())
		status, _ := post(t, app, "/payments/verify", body)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Empty(t, checkout.verifyIn.PaymentID)
	})
}

func TestSkipOrder(t *testing.T) {
	checkout := &fakeCheckout{}
	app := newPaymentApp(checkout, &fakeRefunder{}, admin())

	status, _ := post(t, app, "/admin/payments/skip", map[string]interface{}{
		"user_id": 7, "course_id": 3, "amount": 499, "payment_option": "withoutPayment",
		"customer_details": map[string]interface{}{"name": "Asha", "email": "asha@example.com"},
	})

	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, services.PaymentOptionWithoutPayment, checkout.skipIn.PaymentOption)
	assert.Equal(t, 499.0, checkout.skipIn.Amount)
}

func TestEnrollFree(t *testing.T) {
	app := newPaymentApp(&fakeCheckout{}, &fakeRefunder{}, learner())
	status, _ := post(t, app, "/courses/3/enroll", nil)
	assert.Equal(t, fiber.StatusCreated, status)

	app = newPaymentApp(&fakeCheckout{err: services.ErrCourseNotFree}, &fakeRefunder{}, learner())
	status, env := post(t, app, "/courses/3/enroll", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "This course requires payment", env.Error.Message)
}

func TestRefund(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		refunds := &fakeRefunder{}
		app := newPaymentApp(&fakeCheckout{}, refunds, admin())

		status, env := post(t, app, "/admin/refunds/pay_1", map[string]interface{}{"refund_amount": 250.5})

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Refund processed successfully", env.Message)
		assert.Equal(t, "pay_1", refunds.txn)
		assert.Equal(t, 250.5, refunds.amount)
	})

	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{services.ErrPurchaseNotFound, fiber.StatusNotFound, "Purchase not found"},
		{services.ErrRefundAlreadyProcessed, fiber.StatusBadRequest, "Refund has already been processed"},
		{services.ErrRefundExceedsPayment, fiber.StatusBadRequest, "Refund amount exceeds payment amount"},
		{services.ErrCaptureInProgress, fiber.StatusBadRequest, "Payment capture is still in progress. Please try again shortly."},
		{fmt.Errorf("%w: gateway down", services.ErrRefundFailed), fiber.StatusInternalServerError, "Error initiating refund"},
	}
	for _, tc := range cases {
		app := newPaymentApp(&fakeCheckout{}, &fakeRefunder{err: tc.err}, admin())
		status, env := post(t, app, "/admin/refunds/pay_1", map[string]interface{}{"refund_amount": 10})
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.msg, env.Error.Message)
	}

	app := newPaymentApp(&fakeCheckout{}, &fakeRefunder{}, admin())
	status, _ := post(t, app, "/admin/refunds/pay_1", map[string]interface{}{"refund_amount": 0})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}
