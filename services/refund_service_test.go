package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefundFixture(t *testing.T, status string) (*memStore, *fakeGateway, *fakeFulfiller, *RefundService) {
	t.Helper()
	f := newPaymentFixture()
	_, err := f.svc.VerifyPayment(context.Background(), f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)

	f.gateway.payments["pay_1"] = &razorpay.Payment{ID: "pay_1", OrderID: "order_1", Amount: 10000, Currency: "INR", Status: status}
	fulfiller := &fakeFulfiller{}
	svc := NewRefundService(f.store, f.gateway, fulfiller, "CNC")
	svc.now = func() time.Time { return fixedNow }
	return f.store, f.gateway, fulfiller, svc
}

func TestRefund_CapturedPayment(t *testing.T) {
	store, gateway, fulfiller, svc := newRefundFixture(t, razorpay.StatusCaptured)

	res, err := svc.Refund(context.Background(), "pay_1", 50)
	require.NoError(t, err)
	assert.Equal(t, "rfnd_pay_1", res.RefundID)
	assert.Equal(t, "CNC-20261001", res.CancelBillNumber)
	assert.True(t, res.RefundAmount.Equal(dec("50")))

	assert.Equal(t, 0, gateway.called("capture"))
	assert.Equal(t, 1, gateway.called("refund"))

	p, err := store.FindSuccessfulPurchase(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, p.RefundStatus)
	assert.Equal(t, "CNC-20261001", *p.CancelBillNumber)

	require.Len(t, fulfiller.ran, 1)
	assert.Equal(t, model.TaskRefundNotice, fulfiller.ran[0].Kind)
}

func TestRefund_AuthorizedPaymentIsCapturedFirst(t *testing.T) {
	_, gateway, _, svc := newRefundFixture(t, razorpay.StatusAuthorized)

	_, err := svc.Refund(context.Background(), "pay_1", 100)
	require.NoError(t, err)
	calls := gateway.recorded()
	assert.Equal(t, []string{"fetch", "capture", "fetch", "refund"}, calls[len(calls)-4:])
}

func TestRefund_CaptureStillPending(t *testing.T) {
	_, gateway, _, svc := newRefundFixture(t, razorpay.StatusAuthorized)
	gateway.captureTo = razorpay.StatusAuthorized

	_, err := svc.Refund(context.Background(), "pay_1", 100)
	assert.ErrorIs(t, err, ErrCaptureInProgress)
	assert.Equal(t, 0, gateway.called("refund"))
}

func TestRefund_FailedAttemptsKeepCancelBillsGapless(t *testing.T) {
	store, gateway, _, svc := newRefundFixture(t, razorpay.StatusAuthorized)
	ctx := context.Background()

	gateway.captureTo = razorpay.StatusAuthorized
	_, err := svc.Refund(ctx, "pay_1", 100)
	require.ErrorIs(t, err, ErrCaptureInProgress)

	gateway.refundErr = errors.New("gateway timeout")
	gateway.captureTo = razorpay.StatusCaptured
	_, err = svc.Refund(ctx, "pay_1", 100)
	require.ErrorIs(t, err, ErrRefundFailed)

	gateway.refundErr = nil
	res, err := svc.Refund(ctx, "pay_1", 100)
	require.NoError(t, err)
	assert.Equal(t, "CNC-20261001", res.CancelBillNumber)

	p, err := store.FindSuccessfulPurchase(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "CNC-20261001", *p.CancelBillNumber)
}

func TestRefund_ConcurrentRequestsRefundOnce(t *testing.T) {
	_, gateway, _, svc := newRefundFixture(t, razorpay.StatusCaptured)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refund(context.Background(), "pay_1", 25)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrRefundAlreadyProcessed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, gateway.called("refund"))
}

func TestRefund_AlreadyProcessedMakesNoGatewayCall(t *testing.T) {
	_, gateway, _, svc := newRefundFixture(t, razorpay.StatusCaptured)
	ctx := context.Background()

	_, err := svc.Refund(ctx, "pay_1", 10)
	require.NoError(t, err)
	callsBefore := len(gateway.recorded())

	_, err = svc.Refund(ctx, "pay_1", 10)
	assert.ErrorIs(t, err, ErrRefundAlreadyProcessed)
	assert.Len(t, gateway.recorded(), callsBefore)
}

func TestRefund_ExceedsPaymentRejectedBeforeCapture(t *testing.T) {
	store, gateway, fulfiller, svc := newRefundFixture(t, razorpay.StatusAuthorized)

	_, err := svc.Refund(context.Background(), "pay_1", 100.01)
	assert.ErrorIs(t, err, ErrRefundExceedsPayment)
	assert.Equal(t, 0, gateway.called("capture"))
	assert.Equal(t, 0, gateway.called("refund"))
	assert.Empty(t, fulfiller.dispatched)

	p, _ := store.FindSuccessfulPurchase(context.Background(), "pay_1")
	assert.False(t, p.RefundStatus)
}

func TestRefund_UnknownTransaction(t *testing.T) {
	_, _, _, svc := newRefundFixture(t, razorpay.StatusCaptured)

	_, err := svc.Refund(context.Background(), "pay_missing", 10)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestRefund_GatewayFailureNotifiesAdmin(t *testing.T) {
	store, gateway, fulfiller, svc := newRefundFixture(t, razorpay.StatusCaptured)
	gateway.refundErr = errors.New("gateway timeout")

	_, err := svc.Refund(context.Background(), "pay_1", 10)
	assert.ErrorIs(t, err, ErrRefundFailed)
	assert.Contains(t, err.Error(), "gateway timeout")

	require.Len(t, fulfiller.dispatched, 1)
	assert.Equal(t, model.TaskRefundFailureNotice, fulfiller.dispatched[0].Kind)

	p, _ := store.FindSuccessfulPurchase(context.Background(), "pay_1")
	assert.False(t, p.RefundStatus)
}
