package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/internal/xerrors"
)

// fakeTx satisfies pgx.Tx for the methods the usecases touch. The
// embedded interface panics on anything else, which is the point.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.rolledBack {
		return errors.New("tx already rolled back")
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeWalletRepo struct {
	wallets map[int64]*domain.Wallet // keyed by wallet ID
	byUser  map[int64]int64          // userID -> wallet ID
	nextID  int64
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		wallets: make(map[int64]*domain.Wallet),
		byUser:  make(map[int64]int64),
		nextID:  1,
	}
}

func (r *fakeWalletRepo) seed(userID int64, balance decimal.Decimal) *domain.Wallet {
	w := &domain.Wallet{ID: r.nextID, UserID: userID, Balance: balance}
	r.wallets[w.ID] = w
	r.byUser[userID] = w.ID
	r.nextID++
	return w
}

func (r *fakeWalletRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

func (r *fakeWalletRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	id, ok := r.byUser[userID]
	if !ok {
		return nil, xerrors.ErrWalletNotFound
	}
	w := *r.wallets[id]
	return &w, nil
}

func (r *fakeWalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *fakeWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, walletID int64) (*domain.Wallet, error) {
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, xerrors.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWalletRepo) EnsureExists(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	if id, ok := r.byUser[userID]; ok {
		cp := *r.wallets[id]
		return &cp, nil
	}
	return r.seed(userID, decimal.Zero), nil
}

func (r *fakeWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID int64, balance decimal.Decimal) error {
	w, ok := r.wallets[walletID]
	if !ok {
		return xerrors.ErrWalletNotFound
	}
	w.Balance = balance
	return nil
}

type fakeLedgerRepo struct {
	entries []*domain.LedgerEntry
	nextID  int64
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{nextID: 1}
}

func (r *fakeLedgerRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeLedgerRepo) find(id int64) *domain.LedgerEntry {
	for _, e := range r.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r *fakeLedgerRepo) GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	e := r.find(id)
	if e == nil {
		return nil, xerrors.ErrLedgerEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLedgerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.LedgerEntry, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeLedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.LedgerEntryStatus) error {
	e := r.find(id)
	if e == nil {
		return xerrors.ErrLedgerEntryNotFound
	}
	e.Status = status
	e.UpdatedAt = time.Now()
	return nil
}

func (r *fakeLedgerRepo) ListByWallet(ctx context.Context, walletID int64, limit, offset int) ([]*domain.LedgerEntry, int, error) {
	var all []*domain.LedgerEntry
	for _, e := range r.entries {
		if e.WalletID == walletID {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeLedgerRepo) SumByStatus(ctx context.Context, walletID int64, statuses ...domain.LedgerEntryStatus) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.WalletID != walletID {
			continue
		}
		for _, s := range statuses {
			if e.Status == s {
				sum = sum.Add(e.Amount)
				break
			}
		}
	}
	return sum, nil
}

type fakeOutboxRepo struct {
	events  map[string]*domain.OutboxEvent
	order   []string
	claimed map[string]time.Time
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{
		events:  make(map[string]*domain.OutboxEvent),
		claimed: make(map[string]time.Time),
	}
}

func (r *fakeOutboxRepo) Insert(ctx context.Context, tx pgx.Tx, ev *domain.OutboxEvent) error {
	cp := *ev
	cp.Status = domain.OutboxPending
	cp.CreatedAt = time.Now()
	r.events[cp.ID] = &cp
	r.order = append(r.order, cp.ID)
	return nil
}

func (r *fakeOutboxRepo) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	now := time.Now()
	var out []*domain.OutboxEvent
	for _, id := range r.order {
		if len(out) >= limit {
			break
		}
		ev := r.events[id]
		if ev.Status != domain.OutboxPending {
			continue
		}
		if ev.NextRetryAt != nil && ev.NextRetryAt.After(now) {
			continue
		}
		ev.Status = domain.OutboxProcessing
		r.claimed[id] = now
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeOutboxRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for id, ev := range r.events {
		if ev.Status != domain.OutboxProcessing {
			continue
		}
		if at, ok := r.claimed[id]; ok && at.Before(cutoff) {
			ev.Status = domain.OutboxPending
			delete(r.claimed, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeOutboxRepo) MarkCompleted(ctx context.Context, id string) error {
	ev, ok := r.events[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	now := time.Now()
	ev.Status = domain.OutboxCompleted
	ev.ProcessedAt = &now
	return nil
}

func (r *fakeOutboxRepo) MarkRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	ev, ok := r.events[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	ev.Status = domain.OutboxPending
	ev.Attempts = attempts
	ev.NextRetryAt = &nextRetryAt
	ev.LastError = lastError
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	ev, ok := r.events[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	ev.Status = domain.OutboxFailed
	ev.LastError = lastError
	return nil
}

func (r *fakeOutboxRepo) MarkDeadLetter(ctx context.Context, id string, reason string) error {
	ev, ok := r.events[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	ev.Status = domain.OutboxDeadLetter
	ev.LastError = reason
	return nil
}

func (r *fakeOutboxRepo) Resubmit(ctx context.Context, id string) error {
	ev, ok := r.events[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if ev.Status != domain.OutboxFailed && ev.Status != domain.OutboxDeadLetter {
		return xerrors.ErrNotFound
	}
	ev.Status = domain.OutboxPending
	ev.Attempts = 0
	ev.NextRetryAt = nil
	ev.LastError = ""
	ev.ProcessedAt = nil
	return nil
}

type fakeInvestmentRepo struct {
	plans       map[int64]*domain.InvestmentPlan
	investments map[int64]*domain.Investment
	payouts     []*domain.InvestmentPayout
	nextID      int64
}

func newFakeInvestmentRepo() *fakeInvestmentRepo {
	return &fakeInvestmentRepo{
		plans:       make(map[int64]*domain.InvestmentPlan),
		investments: make(map[int64]*domain.Investment),
		nextID:      1,
	}
}

func (r *fakeInvestmentRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

func (r *fakeInvestmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	inv.ID = r.nextID
	r.nextID++
	inv.Status = domain.InvestmentActive
	inv.CreatedAt = time.Now()
	cp := *inv
	r.investments[cp.ID] = &cp
	return nil
}

func (r *fakeInvestmentRepo) GetPlan(ctx context.Context, planID int64) (*domain.InvestmentPlan, error) {
	p, ok := r.plans[planID]
	if !ok {
		return nil, xerrors.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeInvestmentRepo) ListPlans(ctx context.Context) ([]*domain.InvestmentPlan, error) {
	var out []*domain.InvestmentPlan
	for _, p := range r.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeInvestmentRepo) ListDueHourly(ctx context.Context, now time.Time) ([]*domain.Investment, error) {
	return r.listDue(now, now.Truncate(time.Hour), true), nil
}

func (r *fakeInvestmentRepo) ListDueDaily(ctx context.Context, now time.Time) ([]*domain.Investment, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return r.listDue(now, dayStart, false), nil
}

func (r *fakeInvestmentRepo) listDue(now, periodStart time.Time, hourly bool) []*domain.Investment {
	var out []*domain.Investment
	for _, inv := range r.investments {
		if inv.Status != domain.InvestmentActive {
			continue
		}
		plan := r.plans[inv.PlanID]
		if plan == nil {
			continue
		}
		if hourly != (plan.PayoutFrequency == domain.PayoutHourly) {
			continue
		}
		if inv.LastPayoutAt != nil && !inv.LastPayoutAt.Before(periodStart) {
			continue
		}
		cp := *inv
		planCp := *plan
		cp.Plan = &planCp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeInvestmentRepo) InsertPayout(ctx context.Context, tx pgx.Tx, p *domain.InvestmentPayout) error {
	cp := *p
	cp.ID = int64(len(r.payouts) + 1)
	r.payouts = append(r.payouts, &cp)
	return nil
}

func (r *fakeInvestmentRepo) SetLastPayoutAt(ctx context.Context, tx pgx.Tx, investmentID int64, t time.Time) error {
	inv, ok := r.investments[investmentID]
	if !ok {
		return xerrors.ErrNotFound
	}
	ts := t
	inv.LastPayoutAt = &ts
	return nil
}

type fakeCommissionRepo struct {
	rows []*domain.MlmCommission
}

func (r *fakeCommissionRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

func (r *fakeCommissionRepo) Insert(ctx context.Context, tx pgx.Tx, c *domain.MlmCommission) error {
	for _, row := range r.rows {
		if row.OrderID == c.OrderID && row.EarnerID == c.EarnerID && row.Level == c.Level {
			return xerrors.ErrCommissionAlreadyPaid
		}
	}
	cp := *c
	cp.ID = int64(len(r.rows) + 1)
	cp.CreatedAt = time.Now()
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeCommissionRepo) Exists(ctx context.Context, orderID, earnerID int64, level int) (bool, error) {
	for _, c := range r.rows {
		if c.OrderID == orderID && c.EarnerID == earnerID && c.Level == level {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCommissionRepo) ListByOrder(ctx context.Context, orderID int64) ([]*domain.MlmCommission, error) {
	var out []*domain.MlmCommission
	for _, c := range r.rows {
		if c.OrderID == orderID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeSponsorRepo maps user -> sponsor; a nil value means the user
// exists but has no sponsor.
type fakeSponsorRepo struct {
	sponsors map[int64]*int64
}

func (r *fakeSponsorRepo) GetSponsorID(ctx context.Context, userID int64) (*int64, error) {
	s, ok := r.sponsors[userID]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}
	return s, nil
}

type fakeOrderRepo struct {
	orders map[int64]*domain.Order
	items  map[int64][]*domain.OrderItem
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[int64]*domain.Order),
		items:  make(map[int64][]*domain.OrderItem),
	}
}

func (r *fakeOrderRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, xerrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) MarkPaid(ctx context.Context, tx pgx.Tx, orderID, userID int64, paidAt time.Time) (int64, error) {
	o, ok := r.orders[orderID]
	if !ok || o.UserID != userID || o.Status != domain.OrderPending {
		return 0, nil
	}
	o.Status = domain.OrderPaid
	o.PaidAt = &paidAt
	return 1, nil
}

func (r *fakeOrderRepo) ListItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]*domain.OrderItem, error) {
	var out []*domain.OrderItem
	for _, it := range r.items[orderID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

var _ repository.WalletRepository = (*fakeWalletRepo)(nil)
var _ repository.LedgerRepository = (*fakeLedgerRepo)(nil)
var _ repository.OutboxRepository = (*fakeOutboxRepo)(nil)
var _ repository.InvestmentRepository = (*fakeInvestmentRepo)(nil)
var _ repository.CommissionRepository = (*fakeCommissionRepo)(nil)
var _ repository.SponsorRepository = (*fakeSponsorRepo)(nil)
var _ repository.OrderRepository = (*fakeOrderRepo)(nil)
