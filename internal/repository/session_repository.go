package repository

import (
	"context"

	"flowstack/internal/domain/model"
)

type SessionRepository interface {
	// 無ければ newID で NEW セッションを作って返す（同時作成は先勝ち）
	GetOrCreate(ctx context.Context, merchantID int64, phone string, newID string) (model.Session, error)

	FindByMerchantAndPhone(ctx context.Context, merchantID int64, phone string) (model.Session, error)

	// 読んだときの s.Version のまま残っている場合だけ保存する（version は +1 される）。
	// 負けたら (false, nil) を返し、呼び出し側が読み直して再計算する。
	UpdateIfVersion(ctx context.Context, s model.Session) (bool, error)
}
