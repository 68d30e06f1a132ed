package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/sahilchouksey/coursehub-api/utils/crypto"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyEnrolled  = errors.New("user already enrolled in course")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrCourseNotFound   = errors.New("course not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrOrderMismatch    = errors.New("order belongs to another course")
	ErrCourseNotFree    = errors.New("course requires payment")
	ErrPaymentMode      = errors.New("payment mode is required")
	ErrInvalidCustomer  = errors.New("invalid customer details")
)

// PaymentOptionWithoutPayment marks an admin grant that only the admin is told about
const PaymentOptionWithoutPayment = "withoutPayment"

// PaymentStore persists orders, purchases and enrollments
type PaymentStore interface {
	FindCourse(ctx context.Context, id uint) (*model.Course, error)
	FindUser(ctx context.Context, id uint) (*model.User, error)
	EnrollmentExists(ctx context.Context, userID, courseID uint) (bool, error)
	SaveUser(ctx context.Context, user *model.User) error
	CreateOrder(ctx context.Context, order *model.Order) error
	FindOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	FindSuccessfulPurchase(ctx context.Context, transactionID string) (*model.CoursePurchase, error)
	RecordFailure(ctx context.Context, purchase *model.CoursePurchase) error
	CompletePurchase(ctx context.Context, c repository.Completion) (*repository.CompletionResult, error)
	Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, error)
}

// PaymentGateway is the subset of the Razorpay API the payment flows use
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	CapturePayment(ctx context.Context, paymentID string, amount int64, currency string) (*razorpay.Payment, error)
	RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*razorpay.Refund, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// SecretSealer encrypts the per-order secret before it is stored
type SecretSealer interface {
	Seal(secret string) ([]byte, []byte, error)
}

// Fulfiller runs an enqueued fulfillment task
type Fulfiller interface {
	Run(ctx context.Context, task *model.FulfillmentTask) error
	Dispatch(ctx context.Context, task *model.FulfillmentTask) error
}

// PaymentConfig holds the settings of the payment flows
type PaymentConfig struct {
	Currency      string
	HomeState     string
	InvoicePrefix string
}

// CustomerDetails is the buyer snapshot sent along with a payment
type CustomerDetails struct {
	UserID      uint    `json:"user_id"`
	Name        string  `json:"name" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email"`
	Mobile      string  `json:"mobile" validate:"omitempty,phone"`
	City        string  `json:"city" validate:"max=100"`
	State       string  `json:"state" validate:"max=100"`
	Country     string  `json:"country" validate:"max=100"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	PaymentMode string  `json:"payment_mode" validate:"omitempty,paymentmode"`
}

// CreateOrderInput starts a checkout
type CreateOrderInput struct {
	CourseID uint   `json:"course_id" validate:"required"`
	UserID   uint   `json:"user_id"`
	Amount   int64  `json:"amount" validate:"required,gt=0"` // minor units
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

// CreateOrderResult is returned to the client to open the checkout
type CreateOrderResult struct {
	OrderID    string `json:"order_id"`
	KeyID      string `json:"key_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	CourseName string `json:"course_name"`
}

// VerifyPaymentInput is the gateway callback relayed by the client
type VerifyPaymentInput struct {
	PaymentID string          `json:"razorpay_payment_id" validate:"required"`
	OrderID   string          `json:"razorpay_order_id" validate:"required"`
	Signature string          `json:"razorpay_signature" validate:"required"`
	CourseID  uint            `json:"course_id" validate:"required"`
	Customer  CustomerDetails `json:"customer_details" validate:"required"`
	UserID    uint            `json:"-"`
}

// SkipOrderInput grants a course without the gateway
type SkipOrderInput struct {
	UserID        uint            `json:"user_id" validate:"required"`
	CourseID      uint            `json:"course_id" validate:"required"`
	Amount        float64         `json:"amount" validate:"gte=0"`
	PaymentOption string          `json:"payment_option"`
	Customer      CustomerDetails `json:"customer_details"`
}

// PurchaseResult is the outcome of a completed purchase
type PurchaseResult struct {
	Purchase      *model.CoursePurchase `json:"purchase"`
	Enrollment    *model.Enrollment     `json:"enrollment,omitempty"`
	InvoiceNumber string                `json:"invoice_number"`
	Replayed      bool                  `json:"replayed,omitempty"`
}

// PaymentService runs order creation, payment verification and admin grants
type PaymentService struct {
	store     PaymentStore
	gateway   PaymentGateway
	sealer    SecretSealer
	fulfiller Fulfiller
	config    PaymentConfig
	validator *validation.Validator
	now       func() time.Time
}

// NewPaymentService creates a new payment service. sealer may be nil, in
// which case no per-order secret is stored.
func NewPaymentService(store PaymentStore, gateway PaymentGateway, sealer SecretSealer, fulfiller Fulfiller, config PaymentConfig) *PaymentService {
	if config.Currency == "" {
		config.Currency = "INR"
	}
	if config.InvoicePrefix == "" {
		config.InvoicePrefix = "COS"
	}
	return &PaymentService{
		store:     store,
		gateway:   gateway,
		sealer:    sealer,
		fulfiller: fulfiller,
		config:    config,
		validator: validation.NewValidator(),
		now:       time.Now,
	}
}

// CreateOrder registers a gateway order for a course the user is not enrolled in
func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	course, err := s.activeCourse(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindUser(ctx, in.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if err := s.ensureNotEnrolled(ctx, in.UserID, in.CourseID); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.config.Currency
	}
	now := s.now()
	receipt := Receipt(in.UserID, in.CourseID, now)

	order := &model.Order{
		CourseID: in.CourseID,
		UserID:   in.UserID,
		Amount:   in.Amount,
		Currency: currency,
		Receipt:  receipt,
		Source:   model.OrderSourceGateway,
	}
	if s.sealer != nil {
		secret, err := crypto.RandomHex(32)
		if err != nil {
			return nil, err
		}
		order.SecretCipher, order.SecretNonce, err = s.sealer.Seal(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to seal order secret: %w", err)
		}
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, in.Amount, currency, receipt)
	if err != nil {
		log.Printf("[PAYMENT] order creation failed for user %d course %d: %v", in.UserID, in.CourseID, err)
		return nil, err
	}
	order.GatewayOrderID = gwOrder.ID

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	log.Printf("[PAYMENT] order %s created for user %d course %d", order.GatewayOrderID, in.UserID, in.CourseID)

	return &CreateOrderResult{
		OrderID:    order.GatewayOrderID,
		KeyID:      s.gateway.KeyID(),
		Amount:     order.Amount,
		Currency:   order.Currency,
		Receipt:    receipt,
		CourseName: course.Name,
	}, nil
}

// VerifyPayment checks the gateway signature and, when it matches, validates
// the customer details, records the purchase, enrolls the user and sends the
// invoice. Verifying the same payment again returns the stored purchase.
func (s *PaymentService) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (*PurchaseResult, error) {
	if !s.gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		s.recordFailure(ctx, in)
		return nil, ErrInvalidSignature
	}
	if err := s.validator.ValidateStruct(in.Customer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}

	if in.Customer.PaymentMode == "" {
		return nil, ErrPaymentMode
	}

	if existing, err := s.store.FindSuccessfulPurchase(ctx, in.PaymentID); err == nil {
		return replay(existing), nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	course, err := s.course(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}

	paid := decimal.NewFromFloat(in.Customer.Amount)
	order, err := s.store.FindOrderByGatewayID(ctx, in.OrderID)
	switch {
	case err == nil:
		if order.CourseID != course.ID {
			return nil, ErrOrderMismatch
		}
		paid = order.AmountMajor()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if !paid.IsPositive() {
		return nil, ErrInvalidAmount
	}

	userID := in.UserID
	if userID == 0 {
		userID = in.Customer.UserID
	}
	user, err := s.upsertCustomer(ctx, userID, in.Customer)
	if err != nil {
		return nil, err
	}

	result, err := s.complete(ctx, completion{
		course:         course,
		user:           user,
		customer:       in.Customer,
		paid:           paid,
		transactionID:  in.PaymentID,
		gatewayOrderID: in.OrderID,
		paymentMode:    in.Customer.PaymentMode,
	})
	if errors.Is(err, repository.ErrDuplicateTransaction) {
		existing, findErr := s.store.FindSuccessfulPurchase(ctx, in.PaymentID)
		if findErr != nil {
			return nil, findErr
		}
		return replay(existing), nil
	}
	return result, err
}

// CreateSkipOrder records a purchase granted by an admin without the gateway
func (s *PaymentService) CreateSkipOrder(ctx context.Context, in SkipOrderInput) (*PurchaseResult, error) {
	course, err := s.course(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotEnrolled(ctx, in.UserID, in.CourseID); err != nil {
		return nil, err
	}
	user, err := s.upsertCustomer(ctx, in.UserID, in.Customer)
	if err != nil {
		return nil, err
	}

	amount := in.Amount
	if amount == 0 {
		amount = in.Customer.Amount
	}
	paid := decimal.NewFromFloat(amount)
	if paid.IsNegative() {
		return nil, ErrInvalidAmount
	}

	orderID := SkipOrderID(user.ID, course.ID, s.now())
	skip := &model.Order{
		CourseID:       course.ID,
		UserID:         user.ID,
		Amount:         paid.Mul(hundred).Round(0).IntPart(),
		Currency:       s.config.Currency,
		GatewayOrderID: orderID,
		Receipt:        orderID,
		Source:         model.OrderSourceAdminSkip,
	}

	return s.complete(ctx, completion{
		course:         course,
		user:           user,
		customer:       in.Customer,
		paid:           paid,
		transactionID:  orderID,
		gatewayOrderID: orderID,
		paymentMode:    model.PaymentModeAdminSkip,
		skipOrder:      skip,
		adminOnly:      in.PaymentOption == PaymentOptionWithoutPayment,
	})
}

// EnrollFree enrolls the user in a course that costs nothing
func (s *PaymentService) EnrollFree(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	course, err := s.activeCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.SellingPrice() > 0 {
		return nil, ErrCourseNotFree
	}
	if err := s.ensureNotEnrolled(ctx, userID, courseID); err != nil {
		return nil, err
	}
	return s.store.Enroll(ctx, userID, courseID)
}

type completion struct {
	course         *model.Course
	user           *model.User
	customer       CustomerDetails
	paid           decimal.Decimal
	transactionID  string
	gatewayOrderID string
	paymentMode    string
	skipOrder      *model.Order
	adminOnly      bool
}

func (s *PaymentService) complete(ctx context.Context, c completion) (*PurchaseResult, error) {
	now := s.now()
	purchase := &model.CoursePurchase{
		CourseID:         c.course.ID,
		CourseName:       c.course.Name,
		UserID:           c.user.ID,
		TransactionID:    c.transactionID,
		GatewayOrderID:   c.gatewayOrderID,
		TransactionDate:  now,
		Status:           model.PurchaseStatusSuccess,
		PaymentMode:      c.paymentMode,
		Active:           true,
	}
	applySnapshot(purchase, c.user, c.customer)

	gst := ComputeGST(c.paid, decimal.NewFromFloat(c.course.CourseGST), purchase.CustomerState, s.config.HomeState)
	purchase.AmountWithoutGST = gst.AmountWithoutGST
	purchase.CGST = gst.CGST
	purchase.SGST = gst.SGST
	purchase.IGST = gst.IGST
	purchase.TotalGST = gst.TotalGST
	purchase.TotalPaidAmount = gst.Paid

	task := NewTask(model.TaskPurchaseConfirmation, model.NotificationPayload{AdminOnly: c.adminOnly})
	result, err := s.store.CompletePurchase(ctx, repository.Completion{
		Purchase:     purchase,
		InvoiceScope: InvoiceScope(s.config.InvoicePrefix, now),
		SkipOrder:    c.skipOrder,
		Task:         task,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[PAYMENT] purchase %s recorded with invoice %s", purchase.TransactionID, purchase.Invoice())

	if s.fulfiller != nil && result.Task != nil {
		if err := s.fulfiller.Run(ctx, result.Task); err != nil {
			log.Printf("[PAYMENT] confirmation for %s deferred to retry: %v", purchase.TransactionID, err)
		}
	}

	return &PurchaseResult{
		Purchase:      result.Purchase,
		Enrollment:    result.Enrollment,
		InvoiceNumber: result.Purchase.Invoice(),
	}, nil
}

func (s *PaymentService) recordFailure(ctx context.Context, in VerifyPaymentInput) {
	purchase := &model.CoursePurchase{
		CourseID:        in.CourseID,
		UserID:          in.UserID,
		TransactionID:   in.PaymentID,
		GatewayOrderID:  in.OrderID,
		TransactionDate: s.now(),
		PaymentMode:     in.Customer.PaymentMode,
		Active:          true,
	}
	if purchase.UserID == 0 {
		purchase.UserID = in.Customer.UserID
	}
	if course, err := s.store.FindCourse(ctx, in.CourseID); err == nil {
		purchase.CourseName = course.Name
	}
	applySnapshot(purchase, nil, in.Customer)

	if err := s.store.RecordFailure(ctx, purchase); err != nil {
		log.Printf("[PAYMENT] failed to record failed payment %s: %v", in.PaymentID, err)
		return
	}
	log.Printf("[PAYMENT] signature mismatch for payment %s order %s", in.PaymentID, in.OrderID)
}

// upsertCustomer loads the buyer and refreshes their profile from the snapshot.
// Unknown users are created from the snapshot.
func (s *PaymentService) upsertCustomer(ctx context.Context, userID uint, c CustomerDetails) (*model.User, error) {
	var user *model.User
	if userID != 0 {
		found, err := s.store.FindUser(ctx, userID)
		switch {
		case err == nil:
			user = found
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}
	if user == nil {
		if c.Mobile == "" && c.Email == "" {
			return nil, ErrUserNotFound
		}
		user = &model.User{Role: model.RoleStudent, Active: true}
		if c.Mobile != "" {
			phone := c.Mobile
			user.Phone = &phone
		}
	}

	if c.Name != "" {
		user.Name = c.Name
	}
	if c.Email != "" {
		user.Email = c.Email
	}
	if c.City != "" {
		user.City = c.City
	}
	if c.State != "" {
		user.State = c.State
	}
	if c.Country != "" {
		user.Country = c.Country
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return user, nil
}

func (s *PaymentService) course(ctx context.Context, id uint) (*model.Course, error) {
	course, err := s.store.FindCourse(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (s *PaymentService) activeCourse(ctx context.Context, id uint) (*model.Course, error) {
	course, err := s.course(ctx, id)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

func (s *PaymentService) ensureNotEnrolled(ctx context.Context, userID, courseID uint) error {
	enrolled, err := s.store.EnrollmentExists(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if enrolled {
		return ErrAlreadyEnrolled
	}
	return nil
}

func applySnapshot(p *model.CoursePurchase, user *model.User, c CustomerDetails) {
	p.CustomerName = c.Name
	p.CustomerEmail = c.Email
	p.CustomerMobile = c.Mobile
	p.CustomerCity = c.City
	p.CustomerState = c.State
	p.CustomerCountry = c.Country
	if user == nil {
		return
	}
	if p.CustomerName == "" {
		p.CustomerName = user.Name
	}
	if p.CustomerEmail == "" {
		p.CustomerEmail = user.Email
	}
	if p.CustomerMobile == "" {
		p.CustomerMobile = user.PhoneNumber()
	}
	if p.CustomerCity == "" {
		p.CustomerCity = user.City
	}
	if p.CustomerState == "" {
		p.CustomerState = user.State
	}
	if p.CustomerCountry == "" {
		p.CustomerCountry = user.Country
	}
}

func replay(p *model.CoursePurchase) *PurchaseResult {
	return &PurchaseResult{Purchase: p, InvoiceNumber: p.Invoice(), Replayed: true}
}
