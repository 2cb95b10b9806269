package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"flowstack/internal/domain/model"
	"flowstack/internal/domain/pricing"
	repo "flowstack/internal/repository"
	"flowstack/internal/validator"
)

// 楽観ロックで負けたときの読み直し回数
const maxSessionRetries = 3

const (
	quantityMax    = 99
	minDeliveryLen = 5
)

// 現在時刻を返す約束
type Clock interface {
	Now() time.Time
}

// セッションIDを発行する約束
type IDGenerator interface {
	NewID() string
}

// 注文参照（ORD123456形式）を発行する約束
type OrderRefGenerator interface {
	NewRef() string
}

// 決済ゲートウェイに支払いリクエストを出す約束。
// ここで返るのは受理/不受理だけで、支払い結果はコールバックで来る。
type PaymentGateway interface {
	RequestPayment(ctx context.Context, payerPhone string, amount int64, orderID string) error
}

// チャネルから渡ってくる1メッセージ
type InboundMessage struct {
	From string // 顧客側の番号
	To   string // 加盟店側の番号
	Body string
}

// ConversationUsecase は受信メッセージ1件を会話の次の状態に進めるエンジン。
// セッション書き込みは UpdateIfVersion（CAS）経由のみで、負けたら読み直す。
type ConversationUsecase struct {
	catalog    *CatalogUsecase
	sessions   repo.SessionRepository
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	gateway    PaymentGateway
	idGen      IDGenerator
	refGen     OrderRefGenerator
	clock      Clock
	paymentTTL time.Duration // 0なら無期限
}

func NewConversationUsecase(
	catalog *CatalogUsecase,
	sessions repo.SessionRepository,
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	gateway PaymentGateway,
	idGen IDGenerator,
	refGen OrderRefGenerator,
	clock Clock,
	paymentTTL time.Duration,
) *ConversationUsecase {
	return &ConversationUsecase{
		catalog:    catalog,
		sessions:   sessions,
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		gateway:    gateway,
		idGen:      idGen,
		refGen:     refGen,
		clock:      clock,
		paymentTTL: paymentTTL,
	}
}

type stepEnv struct {
	merchant model.Merchant
	menu     map[string]int64
	sess     model.Session
	text     string // trim+小文字に正規化済み
	raw      string // 原文（配送先の保存に使う）
	phone    string // 顧客番号（正規化済み）
}

type stepResult struct {
	next  model.Session
	reply string
}

// HandleMessage は受信1件に対して返信テキストを1つ返す。
// 顧客入力の誤りはすべて返信文に吸収し、errorはインフラ異常のみ。
// errorが返るときもreplyは顧客へ返せる文面が入っている。
func (u *ConversationUsecase) HandleMessage(ctx context.Context, in InboundMessage) (string, error) {
	merchant, menu, err := u.catalog.Resolve(ctx, in.To)
	if errors.Is(err, ErrUnknownMerchant) {
		return replyNotProvisioned, nil
	}
	if err != nil {
		return replyApology, err
	}

	phone := validator.NormalizePhone(in.From)
	if phone == "" {
		return replyApology, fmt.Errorf("invalid sender address %q", in.From)
	}

	text := strings.ToLower(strings.TrimSpace(in.Body))

	for attempt := 0; attempt < maxSessionRetries; attempt++ {
		sess, err := u.sessions.GetOrCreate(ctx, merchant.ID, phone, u.idGen.NewID())
		if err != nil {
			return replyApology, err
		}

		env := &stepEnv{
			merchant: merchant,
			menu:     menu,
			sess:     u.foldSession(sess),
			text:     text,
			raw:      strings.TrimSpace(in.Body),
			phone:    phone,
		}

		res, err := u.step(ctx, env)
		if err != nil {
			return replyApology, err
		}

		ok, err := u.sessions.UpdateIfVersion(ctx, res.next)
		if err != nil {
			return replyApology, err
		}
		if ok {
			return res.reply, nil
		}
		// 負け＝同じ顧客の別メッセージが先に書いた。読み直してやり直す。
	}

	return replyTryAgain, nil
}

// foldSession は「返信後にNEWへ戻る」扱いの状態をここで畳む。
// COMPLETEDは常に、AWAITING_PAYMENTはTTL超過時のみ（注文側は触らない）。
func (u *ConversationUsecase) foldSession(s model.Session) model.Session {
	if s.State == model.SessionStateCompleted {
		return resetSession(s)
	}
	if u.paymentTTL > 0 &&
		s.State == model.SessionStateAwaitingPayment &&
		u.clock.Now().Sub(s.UpdatedAt) > u.paymentTTL {
		return resetSession(s)
	}
	return s
}

func resetSession(s model.Session) model.Session {
	s.State = model.SessionStateNew
	s.Cart = []model.CartLine{}
	s.PendingItem = ""
	s.PendingOrderID = ""
	return s
}

func (u *ConversationUsecase) step(ctx context.Context, env *stepEnv) (stepResult, error) {
	// グローバルコマンドが最優先
	for _, cmd := range u.commands() {
		if cmd.matches(env.text) {
			return cmd.run(ctx, env)
		}
	}

	switch env.sess.State {
	case model.SessionStateNew, model.SessionStateGreeted, model.SessionStateMenuViewed:
		return u.stepEntry(env)
	case model.SessionStateAwaitingItem:
		return u.stepItemSelection(ctx, env)
	case model.SessionStateAwaitingQuantity:
		return u.stepQuantity(env)
	case model.SessionStateAwaitingConfirmation:
		return u.stepConfirmation(ctx, env)
	case model.SessionStateAwaitingDelivery:
		return u.stepDelivery(ctx, env)
	case model.SessionStateAwaitingPayment:
		return u.stepPayment(ctx, env)
	}

	return fallback(env), nil
}

var greetingTokens = map[string]bool{
	"hi": true, "hello": true, "hey": true, "habari": true, "hallo": true, "start": true,
}

func (u *ConversationUsecase) stepEntry(env *stepEnv) (stepResult, error) {
	if greetingTokens[env.text] {
		next := env.sess
		next.State = model.SessionStateGreeted
		return stepResult{
			next:  next,
			reply: fmt.Sprintf("Karibu %s! Send 'menu' to see what we have, or 'order' to start an order.", env.merchant.Name),
		}, nil
	}

	if env.text == "order" {
		next := env.sess
		next.State = model.SessionStateAwaitingItem
		next.Cart = []model.CartLine{}
		next.PendingItem = ""
		next.PendingOrderID = ""
		return stepResult{
			next:  next,
			reply: "Great, let's order! Send an item name to add it. Send 'done' when you are finished.",
		}, nil
	}

	return fallback(env), nil
}

func (u *ConversationUsecase) stepItemSelection(ctx context.Context, env *stepEnv) (stepResult, error) {
	if env.text == "done" {
		return u.checkout(ctx, env)
	}

	matches := pricing.MatchItem(env.menu, env.text)

	switch len(matches) {
	case 0:
		return stepResult{
			next:  env.sess,
			reply: fmt.Sprintf("Sorry, no item matches %q. Send 'menu' to see the list, or 'done' to checkout.", env.raw),
		}, nil
	case 1:
		next := env.sess
		next.State = model.SessionStateAwaitingQuantity
		next.PendingItem = matches[0]
		return stepResult{
			next:  next,
			reply: fmt.Sprintf("How many %s? (1-99)", matches[0]),
		}, nil
	default:
		return stepResult{
			next:  env.sess,
			reply: "Did you mean one of these? " + strings.Join(matches, ", ") + ". Please send the exact name.",
		}, nil
	}
}

func (u *ConversationUsecase) stepQuantity(env *stepEnv) (stepResult, error) {
	if env.sess.PendingItem == "" {
		// 候補を持たずにここへ来ることはないはずだが、来たら選び直してもらう
		next := env.sess
		next.State = model.SessionStateAwaitingItem
		return stepResult{next: next, reply: "Please send an item name first."}, nil
	}

	qty, err := strconv.ParseInt(env.text, 10, 64)
	if err != nil || qty < 1 || qty > quantityMax {
		qty = 1
	}

	price := env.menu[env.sess.PendingItem]

	next := env.sess
	next.Cart = pricing.Merge(next.Cart, next.PendingItem, price, qty)
	itemName := next.PendingItem
	next.PendingItem = ""
	next.State = model.SessionStateAwaitingItem

	return stepResult{
		next: next,
		reply: fmt.Sprintf("Added %s x%d.\n%s\nSend another item, or 'done' to checkout.",
			itemName, qty, cartSummary(env.menu, next.Cart)),
	}, nil
}

// checkout はカートをスナップショットしてdraft注文を作る。
// 注文作成はidempotencyキー（セッションID:version）つきなので、
// セッションCASに負けて再実行しても同じ注文が返る。
func (u *ConversationUsecase) checkout(ctx context.Context, env *stepEnv) (stepResult, error) {
	if len(env.sess.Cart) == 0 {
		return stepResult{
			next:  env.sess,
			reply: "Your cart is empty. Send an item name to add something first.",
		}, nil
	}

	// 確定時のメニューで再検証（選択後にメニューが変わっていることがある）
	cart, removed := filterCart(env.menu, env.sess.Cart)
	if len(removed) > 0 {
		next := env.sess
		next.Cart = cart
		next.State = model.SessionStateAwaitingItem
		return stepResult{
			next:  next,
			reply: fmt.Sprintf("Sorry, no longer available: %s. They were removed from your cart.\n%s", strings.Join(removed, ", "), cartSummary(env.menu, cart)),
		}, nil
	}

	lines, total, err := pricing.Price(env.menu, cart)
	if err != nil {
		return stepResult{}, err
	}

	key := fmt.Sprintf("%s:%d", env.sess.ID, env.sess.Version)
	var order model.Order

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ注文
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		if found {
			order = existing
			return nil
		}

		now := u.clock.Now()
		order = model.Order{
			ID:             u.refGen.NewRef(),
			MerchantID:     env.merchant.ID,
			CustomerPhone:  env.phone,
			Status:         model.OrderStatusDraft,
			Amount:         total,
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return err
		}

		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, model.OrderItem{
				ItemNameSnapshot:  l.ItemName,
				UnitPriceSnapshot: l.UnitPrice,
				Quantity:          l.Quantity,
				CreatedAt:         now,
			})
		}
		return r.OrderItems().CreateBulk(ctx, order.ID, items)
	})
	if err != nil {
		return stepResult{}, err
	}

	next := env.sess
	next.Cart = cart
	next.State = model.SessionStateAwaitingConfirmation
	next.PendingOrderID = order.ID

	return stepResult{
		next: next,
		reply: fmt.Sprintf("Order %s:\n%sTotal: %d\nReply 'confirm' to proceed to payment, or 'cancel' to abort.",
			order.ID, linesSummary(lines), total),
	}, nil
}

func (u *ConversationUsecase) stepConfirmation(ctx context.Context, env *stepEnv) (stepResult, error) {
	if env.text != "confirm" {
		return stepResult{
			next:  env.sess,
			reply: "Reply 'confirm' to proceed to payment, or 'cancel' to abort.",
		}, nil
	}

	orderID := env.sess.PendingOrderID
	if orderID == "" {
		next := resetSession(env.sess)
		return stepResult{next: next, reply: "There is no order to confirm. Send 'order' to start again."}, nil
	}

	// 確定直前にもう一度メニューと突き合わせる
	if _, removed := filterCart(env.menu, env.sess.Cart); len(removed) > 0 {
		next := env.sess
		next.Cart, _ = filterCart(env.menu, env.sess.Cart)
		next.State = model.SessionStateAwaitingItem
		next.PendingOrderID = ""
		return stepResult{
			next:  next,
			reply: fmt.Sprintf("Sorry, no longer available: %s. Please review your cart and send 'done' again.", strings.Join(removed, ", ")),
		}, nil
	}

	moved, err := u.orders.TransitionStatus(ctx, orderID, model.OrderStatusDraft, model.OrderStatusAwaitingPayment, "")
	if err != nil {
		return stepResult{}, err
	}
	if !moved {
		// 再送ならawaiting_paymentのままなので先へ進める。キャンセル済みなら作り直し。
		o, err := u.orders.FindByID(ctx, orderID)
		if err != nil {
			return stepResult{}, err
		}
		if o.Status != model.OrderStatusAwaitingPayment {
			next := resetSession(env.sess)
			return stepResult{next: next, reply: fmt.Sprintf("Order %s is no longer active. Send 'order' to start again.", orderID)}, nil
		}
	}

	if env.merchant.RequireDelivery {
		next := env.sess
		next.State = model.SessionStateAwaitingDelivery
		return stepResult{
			next:  next,
			reply: "Please send your delivery address (at least a few words).",
		}, nil
	}

	reply := u.initiatePayment(ctx, env, orderID)
	next := env.sess
	next.State = model.SessionStateAwaitingPayment
	return stepResult{next: next, reply: reply}, nil
}

func (u *ConversationUsecase) stepDelivery(ctx context.Context, env *stepEnv) (stepResult, error) {
	if len(env.raw) < minDeliveryLen {
		return stepResult{
			next:  env.sess,
			reply: "That address looks too short. Please send your full delivery address.",
		}, nil
	}

	orderID := env.sess.PendingOrderID
	if orderID == "" {
		next := resetSession(env.sess)
		return stepResult{next: next, reply: "There is no order in progress. Send 'order' to start again."}, nil
	}

	if err := u.orders.SetDeliveryInfo(ctx, orderID, env.raw); err != nil {
		return stepResult{}, err
	}

	reply := u.initiatePayment(ctx, env, orderID)
	next := env.sess
	next.State = model.SessionStateAwaitingPayment
	return stepResult{next: next, reply: reply}, nil
}

var paidTokens = map[string]bool{
	"paid": true, "i have paid": true, "nimelipa": true,
}

func (u *ConversationUsecase) stepPayment(ctx context.Context, env *stepEnv) (stepResult, error) {
	if !paidTokens[env.text] {
		return fallback(env), nil
	}

	// 顧客の自己申告では完了にしない。注文の状態だけを信じる。
	o, err := u.orders.FindByID(ctx, env.sess.PendingOrderID)
	if err != nil {
		return stepResult{}, err
	}

	if o.Status == model.OrderStatusPaid {
		next := resetSession(env.sess)
		return stepResult{
			next:  next,
			reply: fmt.Sprintf("Payment received for order %s. Thank you! Receipt: %s", o.ID, o.PaymentReceipt),
		}, nil
	}

	return stepResult{
		next:  env.sess,
		reply: fmt.Sprintf("Payment for order %s is still pending. We will confirm as soon as it lands.", o.ID),
	}, nil
}

// initiatePayment はSTK pushをきっかり1回だけ出す。
// 勝者の判定は payment_requested への条件付き書き込みで行う。
// 失敗しても注文はawaiting_paymentのまま（参照番号で手動で払える）。
func (u *ConversationUsecase) initiatePayment(ctx context.Context, env *stepEnv, orderID string) string {
	win, err := u.orders.MarkPaymentRequested(ctx, orderID)
	if err != nil {
		log.Printf("payment initiation: mark failed for %s: %v", orderID, err)
		return replyInitiationFailed(env.merchant, orderID)
	}
	if !win {
		// 既にリクエスト済み（再送・リトライ）
		return fmt.Sprintf("A payment prompt was already sent for order %s. You can also pay via paybill %s, reference %s.",
			orderID, env.merchant.MpesaShortcode, orderID)
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		log.Printf("payment initiation: read failed for %s: %v", orderID, err)
		return replyInitiationFailed(env.merchant, orderID)
	}

	if err := u.gateway.RequestPayment(ctx, env.phone, o.Amount, orderID); err != nil {
		log.Printf("payment initiation failed for %s: %v", orderID, err)
		return replyInitiationFailed(env.merchant, orderID)
	}

	return fmt.Sprintf("Check your phone! Enter your M-Pesa PIN to pay %d for order %s.", o.Amount, orderID)
}

func replyInitiationFailed(m model.Merchant, orderID string) string {
	return fmt.Sprintf("We could not start the payment prompt. You can still pay via paybill %s, reference %s.",
		m.MpesaShortcode, orderID)
}

func fallback(env *stepEnv) stepResult {
	return stepResult{
		next:  env.sess,
		reply: "Sorry, I didn't understand that. Send 'help' to see what you can do.",
	}
}

// filterCart は現在のメニューに無い行を落とし、落とした商品名を返す。
func filterCart(menu map[string]int64, cart []model.CartLine) ([]model.CartLine, []string) {
	kept := make([]model.CartLine, 0, len(cart))
	removed := make([]string, 0)
	for _, cl := range cart {
		if _, ok := menu[cl.ItemName]; ok {
			kept = append(kept, cl)
		} else {
			removed = append(removed, cl.ItemName)
		}
	}
	return kept, removed
}

func cartSummary(menu map[string]int64, cart []model.CartLine) string {
	lines, total, err := pricing.Price(menu, cart)
	if err != nil {
		// メニュー落ちした行は確定時に弾くので、ここでは合計だけ諦める
		return "Cart updated."
	}
	return linesSummary(lines) + fmt.Sprintf("Total so far: %d", total)
}

func linesSummary(lines []pricing.Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "- %s x%d = %d\n", l.ItemName, l.Quantity, l.Subtotal)
	}
	return b.String()
}

const replyNotProvisioned = "This number is not set up for ordering yet. Please contact the business directly."

const replyApology = "Sorry, something went wrong on our side. Please try again in a moment."

const replyTryAgain = "We received several messages at once. Please resend your last message."
