package model

import "time"

type SessionState string

const (
	SessionStateNew                  SessionState = "NEW"
	SessionStateGreeted              SessionState = "GREETED"
	SessionStateMenuViewed           SessionState = "MENU_VIEWED"
	SessionStateAwaitingItem         SessionState = "AWAITING_ITEM_SELECTION"
	SessionStateAwaitingQuantity     SessionState = "AWAITING_QUANTITY"
	SessionStateAwaitingConfirmation SessionState = "AWAITING_CHECKOUT_CONFIRMATION"
	SessionStateAwaitingDelivery     SessionState = "AWAITING_DELIVERY_INFO"
	SessionStateAwaitingPayment      SessionState = "AWAITING_PAYMENT"
	SessionStateCompleted            SessionState = "COMPLETED"
)

// CartLine はカートの1行。同じ商品は数量を加算して1行にまとめる。
type CartLine struct {
	ItemName  string `json:"item_name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// Session は (merchant, customer) ごとの会話状態。
// versionは楽観ロック用（読んだversionのまま書けた人だけが勝つ）。
type Session struct {
	ID             string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	MerchantID     int64        `gorm:"not null;uniqueIndex:uq_sessions_merchant_phone" json:"merchant_id"`
	CustomerPhone  string       `gorm:"type:varchar(32);not null;uniqueIndex:uq_sessions_merchant_phone" json:"customer_phone"`
	State          SessionState `gorm:"type:varchar(40);not null" json:"state"`
	Cart           []CartLine   `gorm:"serializer:json" json:"cart"`
	PendingItem    string       `gorm:"type:varchar(100);not null;default:''" json:"pending_item"`
	PendingOrderID string       `gorm:"type:varchar(20);not null;default:'';index" json:"pending_order_id"`
	Version        int64        `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time    `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}
