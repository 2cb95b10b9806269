package repository

import (
	"context"

	"flowstack/internal/domain/model"
)

type MenuItemRepository interface {
	ListByMerchantID(ctx context.Context, merchantID int64) ([]model.MenuItem, error)
}
