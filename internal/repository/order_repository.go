package repository

import (
	"context"

	"flowstack/internal/domain/model"
)

type MerchantOrderListFilter struct {
	Page   int
	Limit  int
	Status string
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	Create(ctx context.Context, order model.Order) error

	// 現在statusがfromの場合だけtoへ進める（条件付き書き込み）。
	// 遷移できたらtrue。receiptはPAIDへの遷移時だけ渡す。
	TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, receipt string) (bool, error)

	// 支払いリクエストをまだ出していない場合だけ印をつける。
	// trueを返した呼び出しだけがゲートウェイを叩く（初回きっかり1回）。
	MarkPaymentRequested(ctx context.Context, orderID string) (bool, error)

	SetDeliveryInfo(ctx context.Context, orderID string, info string) error

	// 検索（同じキーなら同じ注文を返す）
	FindByIdempotencyKey(ctx context.Context, key string) (model.Order, bool, error)

	// 加盟店向けの注文一覧
	ListByMerchant(ctx context.Context, merchantID int64, f MerchantOrderListFilter) ([]model.Order, int64, error)
}
