package model

import "time"

type MenuItem struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID int64     `gorm:"not null;index" json:"merchant_id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	Price      int64     `gorm:"not null" json:"price"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
