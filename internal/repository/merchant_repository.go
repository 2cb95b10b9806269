package repository

import (
	"context"
	"errors"

	"flowstack/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type MerchantRepository interface {
	FindByID(ctx context.Context, merchantID int64) (model.Merchant, error)
	FindByWhatsAppNumber(ctx context.Context, number string) (model.Merchant, error)
	FindByCode(ctx context.Context, code string) (model.Merchant, error)
}
