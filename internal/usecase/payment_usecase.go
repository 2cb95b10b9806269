package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"
)

// 顧客へテキストを1通送る約束（Twilio実装）
type TextSender interface {
	SendText(ctx context.Context, toPhone string, body string) error
}

// 加盟店の設定URLへイベントをPOSTする約束
type MerchantNotifier interface {
	Notify(ctx context.Context, url string, event string, payload map[string]interface{}) error
}

// ゲートウェイから来る1コールバックぶんの中身
type PaymentCallback struct {
	AccountReference string // 注文ID
	Success          bool
	Amount           int64
	PayerPhone       string
	Receipt          string
}

// ゲートウェイへ返す応答
type CallbackResult struct {
	Accepted    bool
	Description string
}

// PaymentUsecase は非同期の決済コールバックを注文とセッションに突き合わせる。
// 同じコールバックが何度来ても、paid遷移と顧客通知は1回きりにする。
type PaymentUsecase struct {
	orders    repo.OrderRepository
	sessions  repo.SessionRepository
	merchants repo.MerchantRepository
	events    repo.CallbackEventRepository
	customer  TextSender
	merchant  MerchantNotifier
	clock     Clock
}

func NewPaymentUsecase(
	orders repo.OrderRepository,
	sessions repo.SessionRepository,
	merchants repo.MerchantRepository,
	events repo.CallbackEventRepository,
	customer TextSender,
	merchant MerchantNotifier,
	clock Clock,
) *PaymentUsecase {
	return &PaymentUsecase{
		orders:    orders,
		sessions:  sessions,
		merchants: merchants,
		events:    events,
		customer:  customer,
		merchant:  merchant,
		clock:     clock,
	}
}

// HandleCallback は必ずゲートウェイに返せる結果を返す。
// errorはインフラ異常のみで、その場合もResultは拒否で埋めてある。
func (u *PaymentUsecase) HandleCallback(ctx context.Context, cb PaymentCallback) (CallbackResult, error) {
	res, outcome, err := u.reconcile(ctx, cb)

	// 受信記録は成否に関わらず残す（失敗してもコールバック処理は止めない）
	ev := model.CallbackEvent{
		AccountReference: cb.AccountReference,
		Result:           callbackResultLabel(cb.Success),
		Outcome:          outcome,
		Amount:           cb.Amount,
		Receipt:          cb.Receipt,
		CreatedAt:        u.clock.Now(),
	}
	if logErr := u.events.Create(ctx, ev); logErr != nil {
		log.Printf("callback event log failed for %s: %v", cb.AccountReference, logErr)
	}

	return res, err
}

func (u *PaymentUsecase) reconcile(ctx context.Context, cb PaymentCallback) (CallbackResult, string, error) {
	order, err := u.orders.FindByID(ctx, cb.AccountReference)
	if errors.Is(err, repo.ErrNotFound) {
		// 知らない参照は拒否して終わり。探索用の状態は作らない。
		log.Printf("payment callback for unknown reference %q rejected", cb.AccountReference)
		return CallbackResult{Accepted: false, Description: "unknown account reference"}, "order_not_found", nil
	}
	if err != nil {
		return CallbackResult{Accepted: false, Description: "internal error"}, "error", err
	}

	// 既にpaidなら重複配送。成功応答だけ返し、副作用は二度と起こさない。
	if order.Status == model.OrderStatusPaid {
		return CallbackResult{Accepted: true, Description: "already processed"}, "duplicate", nil
	}

	if !cb.Success {
		// 失敗は注文をawaiting_paymentのまま残す（再試行・手動払いの道を残す）
		if order.Status == model.OrderStatusAwaitingPayment {
			u.notifyCustomer(ctx, order.CustomerPhone,
				fmt.Sprintf("Payment for order %s did not go through. You can try again or pay via the reference %s.", order.ID, order.ID))
		}
		return CallbackResult{Accepted: true, Description: "failure recorded"}, "payment_failed", nil
	}

	// 成功: awaiting_paymentの場合だけpaidへ。条件付きUPDATEなので同時に来ても勝者は1人。
	won, err := u.orders.TransitionStatus(ctx, order.ID, model.OrderStatusAwaitingPayment, model.OrderStatusPaid, cb.Receipt)
	if err != nil {
		return CallbackResult{Accepted: false, Description: "internal error"}, "error", err
	}
	if !won {
		latest, err := u.orders.FindByID(ctx, order.ID)
		if err != nil {
			return CallbackResult{Accepted: false, Description: "internal error"}, "error", err
		}
		if latest.Status == model.OrderStatusPaid {
			return CallbackResult{Accepted: true, Description: "already processed"}, "duplicate", nil
		}
		// cancelled等、ライフサイクル外の遷移は黙って矯正しない
		log.Printf("payment callback for order %s rejected: status %s", order.ID, latest.Status)
		return CallbackResult{Accepted: false, Description: "order not payable"}, "illegal_transition", nil
	}

	// 勝者だけがセッションを畳み、通知を送る
	u.mergeSession(ctx, order)
	u.notifyCustomer(ctx, order.CustomerPhone,
		fmt.Sprintf("Payment received for order %s. Thank you! Receipt: %s", order.ID, cb.Receipt))
	u.notifyMerchant(order, cb)

	return CallbackResult{Accepted: true, Description: "success"}, "paid", nil
}

// mergeSession は注文の持ち主のセッションをCOMPLETEDへ畳む。
// pending_order_idが既に別の注文を指していたら何もしない
// （チャット側が先に進んでいるのを上書きしないため）。
func (u *PaymentUsecase) mergeSession(ctx context.Context, order model.Order) {
	for attempt := 0; attempt < maxSessionRetries; attempt++ {
		sess, err := u.sessions.FindByMerchantAndPhone(ctx, order.MerchantID, order.CustomerPhone)
		if errors.Is(err, repo.ErrNotFound) {
			return
		}
		if err != nil {
			log.Printf("session merge read failed for order %s: %v", order.ID, err)
			return
		}

		if sess.PendingOrderID != order.ID {
			return
		}

		sess.State = model.SessionStateCompleted
		sess.Cart = []model.CartLine{}
		sess.PendingItem = ""
		sess.PendingOrderID = ""

		ok, err := u.sessions.UpdateIfVersion(ctx, sess)
		if err != nil {
			log.Printf("session merge write failed for order %s: %v", order.ID, err)
			return
		}
		if ok {
			return
		}
		// 負けたら読み直し。pendingが変わっていたらそこで降りる。
	}
}

func (u *PaymentUsecase) notifyCustomer(ctx context.Context, phone string, body string) {
	if err := u.customer.SendText(ctx, phone, body); err != nil {
		log.Printf("customer notification failed for %s: %v", phone, err)
	}
}

// 加盟店通知はfire-and-forget。失敗はログだけで、応答は待たせない。
func (u *PaymentUsecase) notifyMerchant(order model.Order, cb PaymentCallback) {
	m, err := u.merchants.FindByID(context.Background(), order.MerchantID)
	if err != nil || m.NotifyURL == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload := map[string]interface{}{
			"order_id": order.ID,
			"amount":   order.Amount,
			"receipt":  cb.Receipt,
			"customer": order.CustomerPhone,
		}
		if err := u.merchant.Notify(ctx, m.NotifyURL, "order.paid", payload); err != nil {
			log.Printf("merchant notification failed for order %s: %v", order.ID, err)
		}
	}()
}

func callbackResultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
