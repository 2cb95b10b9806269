package repository

import (
	"context"
	"errors"
	"time"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"

	"gorm.io/gorm"
)

type SessionGormRepository struct {
	db *gorm.DB
}

func NewSessionGormRepository(db *gorm.DB) *SessionGormRepository {
	return &SessionGormRepository{db: db}
}

func (r *SessionGormRepository) GetOrCreate(ctx context.Context, merchantID int64, phone string, newID string) (model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_phone = ?", merchantID, phone).
		First(&s).Error
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, err
	}

	now := time.Now()
	s = model.Session{
		ID:            newID,
		MerchantID:    merchantID,
		CustomerPhone: phone,
		State:         model.SessionStateNew,
		Cart:          []model.CartLine{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		// 同時作成で負けた場合は相手の行を読み直す
		var again model.Session
		err2 := r.db.WithContext(ctx).
			Where("merchant_id = ? AND customer_phone = ?", merchantID, phone).
			First(&again).Error
		if err2 == nil {
			return again, nil
		}
		return model.Session{}, err
	}
	return s, nil
}

func (r *SessionGormRepository) FindByMerchantAndPhone(ctx context.Context, merchantID int64, phone string) (model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_phone = ?", merchantID, phone).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

func (r *SessionGormRepository) UpdateIfVersion(ctx context.Context, s model.Session) (bool, error) {
	// 読んだversionのまま残っている行だけを更新する（楽観ロック）
	res := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Select("state", "cart", "pending_item", "pending_order_id", "version", "updated_at").
		Updates(model.Session{
			State:          s.State,
			Cart:           s.Cart,
			PendingItem:    s.PendingItem,
			PendingOrderID: s.PendingOrderID,
			Version:        s.Version + 1,
			UpdatedAt:      time.Now(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
