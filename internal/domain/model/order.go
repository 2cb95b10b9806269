package model

import "time"

type OrderStatus string

const (
	OrderStatusDraft           OrderStatus = "DRAFT"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFulfilled       OrderStatus = "FULFILLED"
)

// Order は確定1回ぶんの注文。IDは「ORD123456」形式で、
// そのままM-PesaのAccountReferenceとして使う。
type Order struct {
	ID               string      `gorm:"type:varchar(20);primaryKey" json:"id"`
	MerchantID       int64       `gorm:"not null;index" json:"merchant_id"`
	CustomerPhone    string      `gorm:"type:varchar(32);not null;index" json:"customer_phone"`
	Status           OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Amount           int64       `gorm:"not null" json:"amount"`
	DeliveryInfo     string      `gorm:"type:varchar(255);not null;default:''" json:"delivery_info"`
	PaymentRequested bool        `gorm:"not null;default:false" json:"payment_requested"`
	PaymentReceipt   string      `gorm:"type:varchar(50);not null;default:''" json:"payment_receipt"`
	IdempotencyKey   string      `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt        time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
