package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowstack/internal/domain/model"
	repo "flowstack/internal/repository"
)

// =====================
// インメモリのフェイク実装。
// 条件付き書き込み（CAS/status遷移）の意味論は本物と同じにしてあるので、
// 競合系のテストはこのフェイクの上でそのまま回せる。
// =====================

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session // key: merchantID:phone

	// UpdateIfVersionを人工的に負けさせる回数（同時更新の再現用）
	injectConflicts int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*model.Session{}}
}

func sessKey(merchantID int64, phone string) string {
	return fmt.Sprintf("%d:%s", merchantID, phone)
}

func (r *memSessionRepo) GetOrCreate(ctx context.Context, merchantID int64, phone string, newID string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessKey(merchantID, phone)]; ok {
		return *s, nil
	}

	s := &model.Session{
		ID:            newID,
		MerchantID:    merchantID,
		CustomerPhone: phone,
		State:         model.SessionStateNew,
		Cart:          []model.CartLine{},
		Version:       1,
		UpdatedAt:     time.Now(),
	}
	r.sessions[sessKey(merchantID, phone)] = s
	return *s, nil
}

func (r *memSessionRepo) FindByMerchantAndPhone(ctx context.Context, merchantID int64, phone string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessKey(merchantID, phone)]
	if !ok {
		return model.Session{}, repo.ErrNotFound
	}
	return *s, nil
}

func (r *memSessionRepo) UpdateIfVersion(ctx context.Context, s model.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[sessKey(s.MerchantID, s.CustomerPhone)]
	if !ok || cur.Version != s.Version {
		return false, nil
	}

	if r.injectConflicts > 0 {
		// 別の書き込みが先に入ったことにする
		r.injectConflicts--
		cur.Version++
		return false, nil
	}

	next := s
	next.Version = s.Version + 1
	next.UpdatedAt = time.Now()
	r.sessions[sessKey(s.MerchantID, s.CustomerPhone)] = &next
	return true, nil
}

func (r *memSessionRepo) get(merchantID int64, phone string) model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sessions[sessKey(merchantID, phone)]
}

func (r *memSessionRepo) put(s model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessKey(s.MerchantID, s.CustomerPhone)] = &s
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	byKey  map[string]string
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*model.Order{}, byKey: map[string]string{}}
}

func (r *memOrderRepo) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return *o, nil
}

func (r *memOrderRepo) Create(ctx context.Context, order model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byKey[order.IdempotencyKey]; dup {
		return fmt.Errorf("duplicate idempotency key")
	}
	o := order
	r.orders[o.ID] = &o
	r.byKey[o.IdempotencyKey] = o.ID
	return nil
}

func (r *memOrderRepo) TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, receipt string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if receipt != "" {
		o.PaymentReceipt = receipt
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *memOrderRepo) MarkPaymentRequested(ctx context.Context, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.PaymentRequested {
		return false, nil
	}
	o.PaymentRequested = true
	return true, nil
}

func (r *memOrderRepo) SetDeliveryInfo(ctx context.Context, orderID string, info string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.DeliveryInfo = info
	return nil
}

func (r *memOrderRepo) FindByIdempotencyKey(ctx context.Context, key string) (model.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[key]
	if !ok {
		return model.Order{}, false, nil
	}
	return *r.orders[id], true, nil
}

func (r *memOrderRepo) ListByMerchant(ctx context.Context, merchantID int64, f repo.MerchantOrderListFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []model.Order{}
	for _, o := range r.orders {
		if o.MerchantID == merchantID && (f.Status == "" || string(o.Status) == f.Status) {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) get(orderID string) model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[orderID]
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type memOrderItemRepo struct {
	mu    sync.Mutex
	items map[string][]model.OrderItem
}

func newMemOrderItemRepo() *memOrderItemRepo {
	return &memOrderItemRepo{items: map[string][]model.OrderItem{}}
}

func (r *memOrderItemRepo) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.OrderItem{}, r.items[orderID]...), nil
}

func (r *memOrderItemRepo) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range items {
		items[i].OrderID = orderID
	}
	r.items[orderID] = append(r.items[orderID], items...)
	return nil
}

type memMerchantRepo struct {
	merchants []model.Merchant
}

func (r *memMerchantRepo) FindByID(ctx context.Context, merchantID int64) (model.Merchant, error) {
	for _, m := range r.merchants {
		if m.ID == merchantID {
			return m, nil
		}
	}
	return model.Merchant{}, repo.ErrNotFound
}

func (r *memMerchantRepo) FindByWhatsAppNumber(ctx context.Context, number string) (model.Merchant, error) {
	for _, m := range r.merchants {
		if m.WhatsAppNumber == number {
			return m, nil
		}
	}
	return model.Merchant{}, repo.ErrNotFound
}

func (r *memMerchantRepo) FindByCode(ctx context.Context, code string) (model.Merchant, error) {
	for _, m := range r.merchants {
		if m.Code == code {
			return m, nil
		}
	}
	return model.Merchant{}, repo.ErrNotFound
}

type memMenuRepo struct {
	items []model.MenuItem
}

func (r *memMenuRepo) ListByMerchantID(ctx context.Context, merchantID int64) ([]model.MenuItem, error) {
	out := []model.MenuItem{}
	for _, it := range r.items {
		if it.MerchantID == merchantID && it.IsActive {
			out = append(out, it)
		}
	}
	return out, nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events []model.CallbackEvent
}

func (r *memEventRepo) Create(ctx context.Context, ev model.CallbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// =====================
// 外部コラボレータの記録用フェイク
// =====================

type fakeGateway struct {
	mu    sync.Mutex
	calls []string // orderID
	err   error
}

func (g *fakeGateway) RequestPayment(ctx context.Context, payerPhone string, amount int64, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, orderID)
	return g.err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *fakeSender) SendText(ctx context.Context, toPhone string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, body)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func (n *fakeNotifier) Notify(ctx context.Context, url string, event string, payload map[string]interface{}) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	if n.done != nil {
		n.done <- struct{}{}
	}
	return nil
}

// =====================
// tx / clock / id
// =====================

type fakeTxRepos struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	sessions   repo.SessionRepository
}

func (r fakeTxRepos) Orders() repo.OrderRepository         { return r.orders }
func (r fakeTxRepos) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r fakeTxRepos) Sessions() repo.SessionRepository     { return r.sessions }

type fakeTxManager struct {
	repos fakeTxRepos
}

func (tm *fakeTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(tm.repos)
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("sess-%d", g.n)
}

type seqRefGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqRefGen) NewRef() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("ORD%06d", g.n)
}
