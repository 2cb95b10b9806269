package repository

import (
	"context"

	"flowstack/internal/domain/model"
)

type CallbackEventRepository interface {
	Create(ctx context.Context, ev model.CallbackEvent) error
}
