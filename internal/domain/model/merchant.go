package model

import "time"

// Merchant はWhatsApp番号に紐づく店舗設定。
// EngineからはRead Onlyで、管理側（別サービス）が更新する。
type Merchant struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"type:varchar(100);not null" json:"name"`
	WhatsAppNumber  string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"whatsapp_number"`
	Code            string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	APISecretHash   string    `gorm:"type:varchar(255);not null" json:"-"`
	MpesaShortcode  string    `gorm:"type:varchar(20);not null" json:"mpesa_shortcode"`
	NotifyURL       string    `gorm:"type:varchar(255);not null;default:''" json:"notify_url"`
	RequireDelivery bool      `gorm:"not null;default:false" json:"require_delivery"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
