package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
)

// memStore is an in-memory stand-in for the payment, refund and fulfillment repositories
type memStore struct {
	mu          sync.Mutex
	refundMu    sync.Mutex
	courses     map[uint]*model.Course
	users       map[uint]*model.User
	orders      map[string]*model.Order
	purchases   []*model.CoursePurchase
	enrollments map[[2]uint]*model.Enrollment
	tasks       map[uint]*model.FulfillmentTask
	sequences   map[string]int64
	nextID      uint
}

func newMemStore() *memStore {
	return &memStore{
		courses:     map[uint]*model.Course{},
		users:       map[uint]*model.User{},
		orders:      map[string]*model.Order{},
		enrollments: map[[2]uint]*model.Enrollment{},
		tasks:       map[uint]*model.FulfillmentTask{},
		sequences:   map[string]int64{},
		nextID:      100,
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) FindCourse(_ context.Context, id uint) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (m *memStore) FindUser(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memStore) EnrollmentExists(_ context.Context, userID, courseID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.enrollments[[2]uint{userID, courseID}]
	return ok, nil
}

func (m *memStore) SaveUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		user.ID = m.id()
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) CreateOrder(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.GatewayOrderID]; ok {
		return fmt.Errorf("duplicate key value")
	}
	order.ID = m.id()
	m.orders[order.GatewayOrderID] = order
	return nil
}

func (m *memStore) FindOrderByGatewayID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (m *memStore) FindSuccessfulPurchase(_ context.Context, txn string) (*model.CoursePurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.TransactionID == txn && p.Status == model.PurchaseStatusSuccess {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) RecordFailure(_ context.Context, p *model.CoursePurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Status = model.PurchaseStatusFailure
	p.ID = m.id()
	m.purchases = append(m.purchases, p)
	return nil
}

func (m *memStore) CompletePurchase(_ context.Context, c repository.Completion) (*repository.CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.TransactionID == c.Purchase.TransactionID && p.Status == model.PurchaseStatusSuccess {
			return nil, repository.ErrDuplicateTransaction
		}
	}

	m.sequences[c.InvoiceScope]++
	invoice := model.FormatSequence(c.InvoiceScope, m.sequences[c.InvoiceScope])
	c.Purchase.InvoiceNumber = &invoice
	c.Purchase.Status = model.PurchaseStatusSuccess
	c.Purchase.ID = m.id()
	m.purchases = append(m.purchases, c.Purchase)

	if c.SkipOrder != nil {
		c.SkipOrder.Completed = true
		c.SkipOrder.ID = m.id()
		m.orders[c.SkipOrder.GatewayOrderID] = c.SkipOrder
	} else if o, ok := m.orders[c.Purchase.GatewayOrderID]; ok {
		o.Completed = true
	}

	key := [2]uint{c.Purchase.UserID, c.Purchase.CourseID}
	enrollment, ok := m.enrollments[key]
	if !ok {
		enrollment = &model.Enrollment{ID: m.id(), UserID: key[0], CourseID: key[1], EnrolledAt: time.Now(), Active: true}
		m.enrollments[key] = enrollment
	}

	if c.Task != nil {
		c.Task.ID = m.id()
		c.Task.PurchaseID = c.Purchase.ID
		m.tasks[c.Task.ID] = c.Task
	}
	return &repository.CompletionResult{Purchase: c.Purchase, Enrollment: enrollment, Task: c.Task}, nil
}

func (m *memStore) Enroll(_ context.Context, userID, courseID uint) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]uint{userID, courseID}
	if e, ok := m.enrollments[key]; ok {
		return e, nil
	}
	e := &model.Enrollment{ID: m.id(), UserID: userID, CourseID: courseID, Active: true}
	m.enrollments[key] = e
	return e, nil
}

// Refunding serializes refunds like the purchase row lock. Cancel bill
// numbers and the refund are kept only when fn succeeds.
func (m *memStore) Refunding(_ context.Context, purchaseID uint, fn func(tx repository.RefundTx) error) error {
	m.refundMu.Lock()
	defer m.refundMu.Unlock()

	m.mu.Lock()
	var stored *model.CoursePurchase
	for _, p := range m.purchases {
		if p.ID == purchaseID && p.Status == model.PurchaseStatusSuccess {
			stored = p
		}
	}
	var snapshot model.CoursePurchase
	if stored != nil {
		snapshot = *stored
	}
	m.mu.Unlock()

	if stored == nil {
		return repository.ErrNotFound
	}
	if snapshot.RefundStatus {
		return repository.ErrAlreadyRefunded
	}

	tx := &memRefundTx{m: m, purchase: &snapshot, allocated: map[string]int64{}}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, n := range tx.allocated {
		m.sequences[scope] = n
	}
	if tx.refund != nil {
		amount := tx.refund.Amount
		date := tx.refund.Date
		bill := tx.refund.CancelBillNumber
		stored.RefundID = tx.refund.RefundID
		stored.RefundAmount = &amount
		stored.RefundDate = &date
		stored.RefundStatus = true
		stored.CancelBillNumber = &bill
	}
	if tx.task != nil {
		tx.task.ID = m.id()
		tx.task.PurchaseID = purchaseID
		m.tasks[tx.task.ID] = tx.task
	}
	return nil
}

type memRefundTx struct {
	m         *memStore
	purchase  *model.CoursePurchase
	allocated map[string]int64
	refund    *repository.Refund
	task      *model.FulfillmentTask
}

func (t *memRefundTx) Purchase() *model.CoursePurchase { return t.purchase }

func (t *memRefundTx) CancelBill(scope string) (string, error) {
	n, ok := t.allocated[scope]
	if !ok {
		t.m.mu.Lock()
		n = t.m.sequences[scope]
		t.m.mu.Unlock()
	}
	n++
	t.allocated[scope] = n
	return model.FormatSequence(scope, n), nil
}

func (t *memRefundTx) Apply(refund repository.Refund, task *model.FulfillmentTask) error {
	t.refund = &refund
	t.task = task
	return nil
}

// fulfillment store methods

func (m *memStore) CreateTask(_ context.Context, task *model.FulfillmentTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = m.id()
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) DueTasks(_ context.Context, now time.Time, limit int) ([]model.FulfillmentTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.FulfillmentTask
	for _, t := range m.tasks {
		if t.Status == model.TaskStatusPending && !t.NextAttemptAt.After(now) && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) Claim(_ context.Context, id uint, now time.Time, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != model.TaskStatusPending || t.NextAttemptAt.After(now) {
		return false, nil
	}
	t.NextAttemptAt = now.Add(lease)
	return true, nil
}

func (m *memStore) MarkDone(_ context.Context, id uint, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id].Status = model.TaskStatusDone
	m.tasks[id].Attempts = attempts
	return nil
}

func (m *memStore) MarkRetry(_ context.Context, id uint, attempts int, next time.Time, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	t.Attempts = attempts
	t.NextAttemptAt = next
	t.LastError = lastErr
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id uint, attempts int, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	t.Status = model.TaskStatusFailed
	t.Attempts = attempts
	t.LastError = lastErr
	return nil
}

func (m *memStore) FindPurchase(_ context.Context, id uint) (*model.CoursePurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) successCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.purchases {
		if p.Status == model.PurchaseStatusSuccess {
			n++
		}
	}
	return n
}

// fakeGateway records calls instead of talking to Razorpay
type fakeGateway struct {
	secret    string
	orderErr  error
	payments  map[string]*razorpay.Payment
	captureTo string // status after capture
	refundErr error

	mu    sync.Mutex
	calls []string
}

func (g *fakeGateway) record(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{secret: secret, payments: map[string]*razorpay.Payment{}, captureTo: razorpay.StatusCaptured}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*razorpay.Order, error) {
	g.record("create_order")
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	return &razorpay.Order{ID: "order_" + receipt, Amount: amount, Currency: currency, Receipt: receipt, Status: razorpay.StatusCreated}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, id string) (*razorpay.Payment, error) {
	g.record("fetch")
	p, ok := g.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: not found", razorpay.ErrPaymentFetchFailed)
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) CapturePayment(_ context.Context, id string, amount int64, currency string) (*razorpay.Payment, error) {
	g.record("capture")
	p := g.payments[id]
	p.Status = g.captureTo
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) RefundPayment(_ context.Context, id string, amount int64, notes map[string]string) (*razorpay.Refund, error) {
	g.record("refund")
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &razorpay.Refund{ID: "rfnd_" + id, Amount: amount, Status: "processed"}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return razorpay.VerifySignature(g.secret, orderID, paymentID, signature)
}

func (g *fakeGateway) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) called(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == name {
			n++
		}
	}
	return n
}

// fakeFulfiller records tasks handed over after commit
type fakeFulfiller struct {
	ran        []*model.FulfillmentTask
	dispatched []*model.FulfillmentTask
	err        error
}

func (f *fakeFulfiller) Run(_ context.Context, task *model.FulfillmentTask) error {
	f.ran = append(f.ran, task)
	return f.err
}

func (f *fakeFulfiller) Dispatch(_ context.Context, task *model.FulfillmentTask) error {
	f.dispatched = append(f.dispatched, task)
	return f.err
}

// fakeMailer keeps sent messages
type fakeMailer struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}
