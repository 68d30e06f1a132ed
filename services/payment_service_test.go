package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 17, 10, 30, 0, 0, time.UTC)

type paymentFixture struct {
	store     *memStore
	gateway   *fakeGateway
	fulfiller *fakeFulfiller
	svc       *PaymentService
}

func newPaymentFixture() *paymentFixture {
	store := newMemStore()
	store.courses[1] = &model.Course{ID: 1, Name: "Financial Accounting", CourseGST: 18, Price: 100, Active: true, TotalVideo: 4, Percentage: 80}
	store.courses[2] = &model.Course{ID: 2, Name: "Free Primer", Price: 0, Active: true, TotalVideo: 1}
	phone := "9876543210"
	store.users[7] = &model.User{ID: 7, Name: "Asha", Email: "asha@example.com", Phone: &phone, State: "Gujarat", Role: model.RoleStudent, Active: true}

	gateway := newFakeGateway("s")
	fulfiller := &fakeFulfiller{}
	svc := NewPaymentService(store, gateway, nil, fulfiller, PaymentConfig{HomeState: "Gujarat"})
	svc.now = func() time.Time { return fixedNow }

	return &paymentFixture{store: store, gateway: gateway, fulfiller: fulfiller, svc: svc}
}

func (f *paymentFixture) verifyInput(orderID, paymentID string) VerifyPaymentInput {
	return VerifyPaymentInput{
		PaymentID: paymentID,
		OrderID:   orderID,
		Signature: razorpay.Sign("s", orderID, paymentID),
		CourseID:  1,
		UserID:    7,
		Customer: CustomerDetails{
			Name:        "Asha Patel",
			Email:       "asha@example.com",
			Mobile:      "9876543210",
			City:        "Surat",
			State:       "Gujarat",
			Country:     "India",
			Amount:      100,
			PaymentMode: model.PaymentModeUPI,
		},
	}
}

func TestPaymentFlow_CreateOrderThenVerify(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{CourseID: 1, UserID: 7, Amount: 10000})
	require.NoError(t, err)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, int64(10000), order.Amount)
	assert.Equal(t, "rzp_test_key", order.KeyID)
	assert.Equal(t, Receipt(7, 1, fixedNow), order.Receipt)

	stored, err := f.store.FindOrderByGatewayID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSourceGateway, stored.Source)
	assert.False(t, stored.Completed)

	res, err := f.svc.VerifyPayment(ctx, f.verifyInput(order.OrderID, "pay_1"))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, "COS-20261001", res.InvoiceNumber)
	assert.Equal(t, model.PurchaseStatusSuccess, res.Purchase.Status)
	assert.True(t, res.Purchase.TotalPaidAmount.Equal(dec("100")))
	assert.True(t, res.Purchase.AmountWithoutGST.Equal(dec("84.75")))
	assert.True(t, res.Purchase.CGST.Equal(res.Purchase.SGST))
	assert.True(t, res.Purchase.IGST.IsZero())

	require.NotNil(t, res.Enrollment)
	assert.Equal(t, uint(7), res.Enrollment.UserID)
	assert.Equal(t, 0.0, res.Enrollment.PercentageCompleted)
	assert.True(t, stored.Completed)

	require.Len(t, f.fulfiller.ran, 1)
	assert.Equal(t, model.TaskPurchaseConfirmation, f.fulfiller.ran[0].Kind)
	assert.Equal(t, res.Purchase.ID, f.fulfiller.ran[0].PurchaseID)
}

func TestVerifyPayment_InvalidSignatureRecordsFailure(t *testing.T) {
	f := newPaymentFixture()
	in := f.verifyInput("order_1", "pay_1")
	in.Signature = "deadbeef"

	_, err := f.svc.VerifyPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	require.Len(t, f.store.purchases, 1)
	assert.Equal(t, model.PurchaseStatusFailure, f.store.purchases[0].Status)
	assert.Equal(t, "pay_1", f.store.purchases[0].TransactionID)
	assert.Empty(t, f.store.enrollments)
	assert.Empty(t, f.fulfiller.ran)
}

func TestVerifyPayment_ForgedCallbackWithoutCustomerIsRecorded(t *testing.T) {
	f := newPaymentFixture()
	in := f.verifyInput("order_1", "pay_1")
	in.Signature = "deadbeef"
	in.Customer = CustomerDetails{}

	_, err := f.svc.VerifyPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	require.Len(t, f.store.purchases, 1)
	assert.Equal(t, model.PurchaseStatusFailure, f.store.purchases[0].Status)
}

func TestVerifyPayment_InvalidCustomerAfterValidSignature(t *testing.T) {
	f := newPaymentFixture()
	in := f.verifyInput("order_1", "pay_1")
	in.Customer.Email = "not-an-email"

	_, err := f.svc.VerifyPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidCustomer)
	assert.Empty(t, f.store.purchases)
	assert.Empty(t, f.store.enrollments)
}

func TestVerifyPayment_IsIdempotent(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()
	in := f.verifyInput("order_x", "pay_dup")

	first, err := f.svc.VerifyPayment(ctx, in)
	require.NoError(t, err)

	second, err := f.svc.VerifyPayment(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)
	assert.Equal(t, 1, f.store.successCount())
	assert.Len(t, f.fulfiller.ran, 1)
}

func TestVerifyPayment_UsesDeclaredAmountWithoutOrder(t *testing.T) {
	f := newPaymentFixture()
	in := f.verifyInput("order_unknown", "pay_2")
	in.Customer.Amount = 118
	in.Customer.State = "Kerala"

	res, err := f.svc.VerifyPayment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Purchase.AmountWithoutGST.Equal(dec("100")))
	assert.True(t, res.Purchase.IGST.Equal(dec("18")))
	assert.True(t, res.Purchase.CGST.IsZero())
}

func TestVerifyPayment_UnknownCourse(t *testing.T) {
	f := newPaymentFixture()
	in := f.verifyInput("order_1", "pay_1")
	in.CourseID = 99

	_, err := f.svc.VerifyPayment(context.Background(), in)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.Equal(t, 0, f.store.successCount())
}

func TestInvoiceNumbersIncreaseWithinMonth(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	first, err := f.svc.VerifyPayment(ctx, f.verifyInput("order_a", "pay_a"))
	require.NoError(t, err)

	in := f.verifyInput("order_b", "pay_b")
	in.UserID = 0
	in.Customer.Mobile = "9000000001"
	in.Customer.Email = "ravi@example.com"
	second, err := f.svc.VerifyPayment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "COS-20261001", first.InvoiceNumber)
	assert.Equal(t, "COS-20261002", second.InvoiceNumber)

	f.svc.now = func() time.Time { return fixedNow.AddDate(0, 1, 0) }
	in = f.verifyInput("order_c", "pay_c")
	in.CourseID = 2
	next, err := f.svc.VerifyPayment(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "COS-20261101", next.InvoiceNumber)
}

func TestCreateOrder_AlreadyEnrolled(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()
	_, err := f.svc.VerifyPayment(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{CourseID: 1, UserID: 7, Amount: 10000})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.Equal(t, 0, f.gateway.called("create_order"))
}

func TestCreateOrder_GatewayFailureStoresNothing(t *testing.T) {
	f := newPaymentFixture()
	f.gateway.orderErr = razorpay.ErrOrderCreationFailed

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{CourseID: 1, UserID: 7, Amount: 10000})
	assert.True(t, errors.Is(err, razorpay.ErrOrderCreationFailed))
	assert.Empty(t, f.store.orders)
}

func TestCreateOrder_RejectsBadInput(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{CourseID: 1, UserID: 7, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{CourseID: 42, UserID: 7, Amount: 100})
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{CourseID: 1, UserID: 404, Amount: 100})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateSkipOrder_AdminOnlyNotification(t *testing.T) {
	f := newPaymentFixture()

	res, err := f.svc.CreateSkipOrder(context.Background(), SkipOrderInput{
		UserID:        7,
		CourseID:      1,
		Amount:        0,
		PaymentOption: PaymentOptionWithoutPayment,
		Customer:      CustomerDetails{Name: "Asha Patel", Email: "asha@example.com"},
	})
	require.NoError(t, err)

	expectedID := SkipOrderID(7, 1, fixedNow)
	assert.Equal(t, expectedID, res.Purchase.TransactionID)
	assert.Equal(t, model.PaymentModeAdminSkip, res.Purchase.PaymentMode)
	assert.Equal(t, "Gujarat", res.Purchase.CustomerState)

	order, err := f.store.FindOrderByGatewayID(context.Background(), expectedID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSourceAdminSkip, order.Source)
	assert.True(t, order.Completed)

	require.Len(t, f.fulfiller.ran, 1)
	var payload model.NotificationPayload
	require.NoError(t, json.Unmarshal(f.fulfiller.ran[0].Payload, &payload))
	assert.True(t, payload.AdminOnly)

	_, err = f.svc.CreateSkipOrder(context.Background(), SkipOrderInput{UserID: 7, CourseID: 1})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestEnrollFree(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()

	_, err := f.svc.EnrollFree(ctx, 7, 1)
	assert.ErrorIs(t, err, ErrCourseNotFree)

	e, err := f.svc.EnrollFree(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), e.CourseID)

	_, err = f.svc.EnrollFree(ctx, 7, 2)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}
