package repository

import (
	"context"
	"errors"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"

	"gorm.io/gorm"
)

type MerchantGormRepository struct {
	db *gorm.DB
}

func NewMerchantGormRepository(db *gorm.DB) *MerchantGormRepository {
	return &MerchantGormRepository{db: db}
}

func (r *MerchantGormRepository) FindByID(ctx context.Context, merchantID int64) (model.Merchant, error) {
	var m model.Merchant
	err := r.db.WithContext(ctx).Where("id = ?", merchantID).First(&m).Error
	return translate(m, err)
}

func (r *MerchantGormRepository) FindByWhatsAppNumber(ctx context.Context, number string) (model.Merchant, error) {
	var m model.Merchant
	err := r.db.WithContext(ctx).
		Where("whatsapp_number = ? AND is_active = ?", number, true).
		First(&m).Error
	return translate(m, err)
}

func (r *MerchantGormRepository) FindByCode(ctx context.Context, code string) (model.Merchant, error) {
	var m model.Merchant
	err := r.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", code, true).
		First(&m).Error
	return translate(m, err)
}

func translate(m model.Merchant, err error) (model.Merchant, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Merchant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Merchant{}, err
	}
	return m, nil
}
