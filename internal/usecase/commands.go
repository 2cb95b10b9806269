package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"
)

// グローバルコマンドは状態に関係なく先に評価される。tableの並びが優先順。
type command struct {
	name    string
	matches func(text string) bool
	run     func(ctx context.Context, env *stepEnv) (stepResult, error)
}

func (u *ConversationUsecase) commands() []command {
	return []command{
		{
			name:    "menu",
			matches: func(t string) bool { return t == "menu" },
			run:     u.cmdMenu,
		},
		{
			name:    "help",
			matches: func(t string) bool { return t == "help" },
			run:     u.cmdHelp,
		},
		{
			name:    "cancel",
			matches: func(t string) bool { return t == "cancel" },
			run:     u.cmdCancel,
		},
		{
			name:    "status",
			matches: func(t string) bool { return t == "status" || strings.HasPrefix(t, "status ") },
			run:     u.cmdStatus,
		},
	}
}

// MENU: カタログを見せるだけ。カートは触らない。
func (u *ConversationUsecase) cmdMenu(ctx context.Context, env *stepEnv) (stepResult, error) {
	next := env.sess
	next.State = model.SessionStateMenuViewed
	return stepResult{next: next, reply: menuListing(env.merchant, env.menu)}, nil
}

func (u *ConversationUsecase) cmdHelp(ctx context.Context, env *stepEnv) (stepResult, error) {
	// 状態は変えない
	return stepResult{
		next: env.sess,
		reply: "You can send:\n" +
			"- 'menu' to see the menu\n" +
			"- 'order' to start an order\n" +
			"- 'status' to check your last order\n" +
			"- 'cancel' to cancel a pending order",
	}, nil
}

// CANCEL: 自分のpending注文だけを落とし、セッションをNEWに戻す。
// pendingが無ければただの案内返信（エラーにしない）。
func (u *ConversationUsecase) cmdCancel(ctx context.Context, env *stepEnv) (stepResult, error) {
	orderID := env.sess.PendingOrderID
	if orderID == "" {
		return stepResult{
			next:  resetSession(env.sess),
			reply: "There is nothing to cancel. Send 'order' to start a new order.",
		}, nil
	}

	// draftでもawaiting_paymentでもキャンセルできる
	ok, err := u.orders.TransitionStatus(ctx, orderID, model.OrderStatusDraft, model.OrderStatusCancelled, "")
	if err != nil {
		return stepResult{}, err
	}
	if !ok {
		ok, err = u.orders.TransitionStatus(ctx, orderID, model.OrderStatusAwaitingPayment, model.OrderStatusCancelled, "")
		if err != nil {
			return stepResult{}, err
		}
	}

	if !ok {
		// どちらの遷移もできない＝支払い済みなど。状態は壊さずそのまま伝える。
		o, err := u.orders.FindByID(ctx, orderID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return stepResult{}, err
		}
		if err == nil && o.Status == model.OrderStatusPaid {
			return stepResult{
				next:  env.sess,
				reply: fmt.Sprintf("Order %s is already paid and can no longer be cancelled.", orderID),
			}, nil
		}
	}

	return stepResult{
		next:  resetSession(env.sess),
		reply: fmt.Sprintf("Order %s has been cancelled. Send 'order' to start again.", orderID),
	}, nil
}

// STATUS [id]: 自分の注文だけ参照できる読み取り専用コマンド。セッションは変えない。
func (u *ConversationUsecase) cmdStatus(ctx context.Context, env *stepEnv) (stepResult, error) {
	arg := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(env.text, "status")))

	orderID := arg
	if orderID == "" {
		orderID = env.sess.PendingOrderID
	}
	if orderID == "" {
		return stepResult{next: env.sess, reply: "You have no recent order. Send 'order' to start one."}, nil
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return stepResult{next: env.sess, reply: fmt.Sprintf("No order found for %s.", orderID)}, nil
	}
	if err != nil {
		return stepResult{}, err
	}

	// 他人の注文は「存在しない扱い」にする
	if o.MerchantID != env.merchant.ID || o.CustomerPhone != env.phone {
		return stepResult{next: env.sess, reply: fmt.Sprintf("No order found for %s.", orderID)}, nil
	}

	return stepResult{
		next:  env.sess,
		reply: fmt.Sprintf("Order %s: %s, total %d.", o.ID, statusLabel(o.Status), o.Amount),
	}, nil
}

func statusLabel(s model.OrderStatus) string {
	switch s {
	case model.OrderStatusDraft:
		return "awaiting confirmation"
	case model.OrderStatusAwaitingPayment:
		return "awaiting payment"
	case model.OrderStatusPaid:
		return "paid"
	case model.OrderStatusCancelled:
		return "cancelled"
	case model.OrderStatusFulfilled:
		return "fulfilled"
	}
	return strings.ToLower(string(s))
}

func menuListing(m model.Merchant, menu map[string]int64) string {
	if len(menu) == 0 {
		return fmt.Sprintf("%s has no items on the menu right now.", m.Name)
	}

	names := make([]string, 0, len(menu))
	for name := range menu {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%s menu:\n", m.Name)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %d\n", name, menu[name])
	}
	b.WriteString("Send 'order' to start ordering.")
	return b.String()
}
