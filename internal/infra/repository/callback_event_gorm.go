package repository

import (
	"context"

	"flowstack/internal/domain/model"

	"gorm.io/gorm"
)

type CallbackEventGormRepository struct {
	db *gorm.DB
}

func NewCallbackEventGormRepository(db *gorm.DB) *CallbackEventGormRepository {
	return &CallbackEventGormRepository{db: db}
}

func (r *CallbackEventGormRepository) Create(ctx context.Context, ev model.CallbackEvent) error {
	return r.db.WithContext(ctx).Create(&ev).Error
}
