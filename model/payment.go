package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order sources
const (
	OrderSourceGateway   = "gateway"
	OrderSourceAdminSkip = "admin_skip"
)

// Purchase statuses
const (
	PurchaseStatusSuccess = "Success"
	PurchaseStatusFailure = "Failure"
)

// Payment modes accepted on a purchase
const (
	PaymentModeCreditCard = "Credit Card"
	PaymentModeDebitCard  = "Debit Card"
	PaymentModeNetBanking = "Net Banking"
	PaymentModeUPI        = "UPI"
	PaymentModeWallet     = "Wallet"
	PaymentModeCash       = "Cash"
	PaymentModeAdminSkip  = "Admin_Skip"
)

// PaymentModes lists every valid payment mode
var PaymentModes = []string{
	PaymentModeCreditCard, PaymentModeDebitCard, PaymentModeNetBanking,
	PaymentModeUPI, PaymentModeWallet, PaymentModeCash, PaymentModeAdminSkip,
}

// Order is a checkout attempt registered with the payment gateway
type Order struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CourseID       uint      `gorm:"not null;index" json:"course_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Amount         int64     `gorm:"not null" json:"amount"` // minor currency units
	Currency       string    `gorm:"type:varchar(10);default:'INR'" json:"currency"`
	GatewayOrderID string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"razorpay_order_id"`
	Receipt        string    `gorm:"type:varchar(100)" json:"receipt"`
	SecretCipher   []byte    `gorm:"type:bytea" json:"-"`
	SecretNonce    []byte    `gorm:"type:bytea" json:"-"`
	Source         string    `gorm:"type:varchar(20);default:'gateway'" json:"source"`
	Completed      bool      `gorm:"default:false;index" json:"completed"`
	Expired        bool      `gorm:"default:false" json:"expired"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for Order
func (Order) TableName() string {
	return "orders"
}

// AmountMajor converts the stored minor units into major currency units
func (o *Order) AmountMajor() decimal.Decimal {
	return decimal.New(o.Amount, -2)
}

// CoursePurchase is the durable outcome of a payment attempt
type CoursePurchase struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	CourseName      string         `gorm:"type:varchar(255)" json:"course_name"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	TransactionID   string         `gorm:"type:varchar(100);not null;index;uniqueIndex:idx_purchase_success_txn,where:status = 'Success'" json:"transaction_id"`
	GatewayOrderID  string         `gorm:"type:varchar(100);index" json:"razorpay_order_id"`
	TransactionDate time.Time      `json:"transaction_date"`

	// Customer snapshot at purchase time
	CustomerName    string `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail   string `gorm:"type:varchar(255);index" json:"customer_email"`
	CustomerMobile  string `gorm:"type:varchar(20)" json:"customer_mobile"`
	CustomerCity    string `gorm:"type:varchar(100)" json:"customer_city"`
	CustomerState   string `gorm:"type:varchar(100)" json:"customer_state"`
	CustomerCountry string `gorm:"type:varchar(100)" json:"customer_country"`

	Status           string          `gorm:"type:varchar(20);not null;index" json:"status"`
	AmountWithoutGST decimal.Decimal `gorm:"type:numeric(14,4);default:0" json:"amount_without_gst"`
	CGST             decimal.Decimal `gorm:"column:cgst;type:numeric(14,4);default:0" json:"cgst"`
	SGST             decimal.Decimal `gorm:"column:sgst;type:numeric(14,4);default:0" json:"sgst"`
	IGST             decimal.Decimal `gorm:"column:igst;type:numeric(14,4);default:0" json:"igst"`
	TotalGST         decimal.Decimal `gorm:"type:numeric(14,4);default:0" json:"total_gst"`
	TotalPaidAmount  decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"total_paid_amount"`
	PaymentMode      string          `gorm:"type:varchar(30)" json:"payment_mode"`
	InvoiceNumber    *string         `gorm:"type:varchar(50);uniqueIndex" json:"invoice_number"`

	// Refund sub-record
	RefundID         string           `gorm:"type:varchar(100)" json:"refund_id,omitempty"`
	RefundAmount     *decimal.Decimal `gorm:"type:numeric(14,2)" json:"refund_amount,omitempty"`
	RefundDate       *time.Time       `json:"refund_date,omitempty"`
	RefundStatus     bool             `gorm:"default:false;index" json:"refund_status"`
	CancelBillNumber *string          `gorm:"type:varchar(50);uniqueIndex" json:"cancel_bill_number,omitempty"`

	Active bool `gorm:"default:true" json:"active"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for CoursePurchase
func (CoursePurchase) TableName() string {
	return "course_purchases"
}

// Invoice returns the invoice number or an empty string
func (p *CoursePurchase) Invoice() string {
	if p.InvoiceNumber == nil {
		return ""
	}
	return *p.InvoiceNumber
}

// IsIntraState reports whether the tax was split into CGST and SGST
func (p *CoursePurchase) IsIntraState() bool {
	return p.IGST.IsZero() && !p.TotalGST.IsZero()
}
