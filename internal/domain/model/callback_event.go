package model

import "time"

// CallbackEvent は決済コールバックの受信記録（運用調査用）。
type CallbackEvent struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountReference string    `gorm:"type:varchar(20);not null;index" json:"account_reference"`
	Result           string    `gorm:"type:varchar(20);not null" json:"result"`
	Outcome          string    `gorm:"type:varchar(30);not null" json:"outcome"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Receipt          string    `gorm:"type:varchar(50);not null;default:''" json:"receipt"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
