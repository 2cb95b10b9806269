package usecase

import (
	"context"
	"errors"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"
	"flowstack/internal/validator"
)

// 着信先番号がどの加盟店にも紐づかない
var ErrUnknownMerchant = errors.New("unknown merchant")

// CatalogUsecase は着信チャネル（加盟店側のWhatsApp番号）から
// 加盟店とメニューを引くだけの参照系。副作用はない。
type CatalogUsecase struct {
	merchants repo.MerchantRepository
	menuItems repo.MenuItemRepository
}

func NewCatalogUsecase(merchants repo.MerchantRepository, menuItems repo.MenuItemRepository) *CatalogUsecase {
	return &CatalogUsecase{merchants: merchants, menuItems: menuItems}
}

// Resolve は番号の表記ゆれ（+254…/0…）を吸収して加盟店を解決する。
// どの候補でも見つからなければ ErrUnknownMerchant。
func (u *CatalogUsecase) Resolve(ctx context.Context, channelNumber string) (model.Merchant, map[string]int64, error) {
	for _, v := range validator.NumberVariants(channelNumber) {
		m, err := u.merchants.FindByWhatsAppNumber(ctx, v)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.Merchant{}, nil, err
		}

		menu, err := u.menu(ctx, m.ID)
		if err != nil {
			return model.Merchant{}, nil, err
		}
		return m, menu, nil
	}

	return model.Merchant{}, nil, ErrUnknownMerchant
}

func (u *CatalogUsecase) menu(ctx context.Context, merchantID int64) (map[string]int64, error) {
	items, err := u.menuItems.ListByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	menu := make(map[string]int64, len(items))
	for _, it := range items {
		menu[it.Name] = it.Price
	}
	return menu, nil
}
