package model

import "time"

// OrderItem は確定時点のカートのスナップショット。
// その後メニューや価格が変わっても、この行は書き換えない。
type OrderItem struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           string    `gorm:"type:varchar(20);not null;index" json:"order_id"`
	ItemNameSnapshot  string    `gorm:"type:varchar(100);not null" json:"item_name"`
	UnitPriceSnapshot int64     `gorm:"not null" json:"unit_price"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
