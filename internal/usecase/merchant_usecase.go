package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 加盟店APIトークンを発行する約束（実装はmainで注入）
type AccessTokenIssuer interface {
	Issue(merchantID int64, now time.Time) (token string, expiresAt time.Time, err error)
}

// MerchantUsecase は加盟店向けAPI（ログインと自店の注文一覧）。
type MerchantUsecase struct {
	merchants  repo.MerchantRepository
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	issuer     AccessTokenIssuer
	clock      Clock
}

func NewMerchantUsecase(
	merchants repo.MerchantRepository,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	issuer AccessTokenIssuer,
	clock Clock,
) *MerchantUsecase {
	return &MerchantUsecase{
		merchants:  merchants,
		orders:     orders,
		orderItems: orderItems,
		issuer:     issuer,
		clock:      clock,
	}
}

type MerchantLoginInput struct {
	Code   string
	Secret string
}

type MerchantLoginOutput struct {
	MerchantID  int64  `json:"merchant_id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (u *MerchantUsecase) Login(ctx context.Context, in MerchantLoginInput) (MerchantLoginOutput, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" || in.Secret == "" {
		return MerchantLoginOutput{}, NewHTTPError(http.StatusBadRequest, "invalid input")
	}

	m, err := u.merchants.FindByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		// コード間違いもシークレット間違いも同じ応答にする
		return MerchantLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return MerchantLoginOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if bcrypt.CompareHashAndPassword([]byte(m.APISecretHash), []byte(in.Secret)) != nil {
		return MerchantLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	now := u.clock.Now()
	token, expiresAt, err := u.issuer.Issue(m.ID, now)
	if err != nil {
		return MerchantLoginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	return MerchantLoginOutput{
		MerchantID:  m.ID,
		Name:        m.Name,
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(now).Seconds()),
	}, nil
}

type OrderItemOutput struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type OrderOutput struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	DeliveryInfo string            `json:"delivery_info,omitempty"`
	Receipt      string            `json:"receipt,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Items        []OrderItemOutput `json:"items"`
}

func (u *MerchantUsecase) ListOrders(ctx context.Context, merchantID int64, f repo.MerchantOrderListFilter) ([]OrderOutput, error) {
	if merchantID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orders, _, err := u.orders.ListByMerchant(ctx, merchantID, f)
	if err != nil {
		return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			Name:     it.ItemNameSnapshot,
			Price:    it.UnitPriceSnapshot,
			Quantity: it.Quantity,
		})
	}

	return OrderOutput{
		ID:           o.ID,
		Customer:     o.CustomerPhone,
		Status:       string(o.Status),
		Amount:       o.Amount,
		DeliveryInfo: o.DeliveryInfo,
		Receipt:      o.PaymentReceipt,
		CreatedAt:    o.CreatedAt,
		Items:        outItems,
	}
}
