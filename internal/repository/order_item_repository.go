package repository

import (
	"context"

	"flowstack/internal/domain/model"
)

type OrderItemRepository interface {
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)
	CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error
}
