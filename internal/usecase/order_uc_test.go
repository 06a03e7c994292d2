package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wallet-service/internal/domain"
	"wallet-service/internal/xerrors"
)

type orderFixture struct {
	uc          *OrderUsecase
	orders      *fakeOrderRepo
	investments *fakeInvestmentRepo
	outbox      *fakeOutboxRepo
	wallets     *fakeWalletRepo
	ledger      *fakeLedgerRepo
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	walletUC, wallets, ledger := newTestWalletUC(t, "5")
	orders := newFakeOrderRepo()
	investments := newFakeInvestmentRepo()
	outbox := newFakeOutboxRepo()
	uc := NewOrderUsecase(orders, investments, outbox, walletUC, zap.NewNop())
	return &orderFixture{
		uc:          uc,
		orders:      orders,
		investments: investments,
		outbox:      outbox,
		wallets:     wallets,
		ledger:      ledger,
	}
}

func (f *orderFixture) seedOrder(id, userID int64, total string, items ...*domain.OrderItem) {
	f.orders.orders[id] = &domain.Order{
		ID:          id,
		UserID:      userID,
		TotalAmount: d(total),
		Status:      domain.OrderPending,
	}
	f.orders.items[id] = items
}

func TestPayOrderSettles(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("5000"))
	f.seedOrder(10, 1, "1200")
	ctx := context.Background()

	order, err := f.uc.Pay(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, order.Status)
	require.NotNil(t, order.PaidAt)

	w, _ := f.wallets.GetByUserID(ctx, 1)
	assert.True(t, w.Balance.Equal(d("3800")))

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, domain.EntryPurchase, f.ledger.entries[0].Type)
	assert.True(t, f.ledger.entries[0].Amount.Equal(d("-1200")))
}

func TestPayOrderWritesOutboxEvent(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("5000"))
	f.seedOrder(10, 1, "1200")

	_, err := f.uc.Pay(context.Background(), 10, 1)
	require.NoError(t, err)

	require.Len(t, f.outbox.order, 1)
	ev := f.outbox.events[f.outbox.order[0]]
	assert.Equal(t, domain.EventOrderPaid, ev.Type)
	assert.Equal(t, domain.OutboxPending, ev.Status)
	assert.Equal(t, "order", ev.AggregateType)
	assert.Equal(t, "10", ev.AggregateID)

	var payload domain.OrderPaidPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, int64(10), payload.OrderID)
	assert.Equal(t, int64(1), payload.BuyerID)
	assert.Equal(t, "1200", payload.Amount)
}

func TestPayOrderOpensInvestments(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("10000"))
	seedPlan(f.investments, 3, "6", domain.PayoutDaily)
	planID := int64(3)
	f.seedOrder(10, 1, "5000",
		&domain.OrderItem{ID: 1, OrderID: 10, PlanID: &planID, Amount: d("5000"), Quantity: 1},
		&domain.OrderItem{ID: 2, OrderID: 10, Amount: d("0"), Quantity: 1}, // plain product line
	)

	_, err := f.uc.Pay(context.Background(), 10, 1)
	require.NoError(t, err)

	require.Len(t, f.investments.investments, 1)
	for _, inv := range f.investments.investments {
		assert.Equal(t, int64(1), inv.UserID)
		assert.Equal(t, planID, inv.PlanID)
		assert.True(t, inv.PrincipalAmount.Equal(d("5000")))
		assert.Equal(t, domain.InvestmentActive, inv.Status)
		assert.Equal(t, inv.StartDate.AddDate(0, 0, 90), inv.EndDate)
	}
}

func TestPayOrderRejectsPrincipalOutOfRange(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("10000"))
	seedPlan(f.investments, 3, "6", domain.PayoutDaily)
	f.investments.plans[3].MinAmount = d("1000")
	planID := int64(3)
	f.seedOrder(10, 1, "500",
		&domain.OrderItem{ID: 1, OrderID: 10, PlanID: &planID, Amount: d("500"), Quantity: 1})

	_, err := f.uc.Pay(context.Background(), 10, 1)
	assert.ErrorIs(t, err, xerrors.ErrAmountOutOfRange)
	assert.Empty(t, f.outbox.order)
}

func TestPayOrderTwiceFails(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("5000"))
	f.seedOrder(10, 1, "1000")
	ctx := context.Background()

	_, err := f.uc.Pay(ctx, 10, 1)
	require.NoError(t, err)

	_, err = f.uc.Pay(ctx, 10, 1)
	assert.ErrorIs(t, err, xerrors.ErrOrderAlreadyPaid)

	// Only one debit happened.
	w, _ := f.wallets.GetByUserID(ctx, 1)
	assert.True(t, w.Balance.Equal(d("4000")))
}

func TestPayOrderNotOwned(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(2, d("5000"))
	f.seedOrder(10, 1, "1000")

	_, err := f.uc.Pay(context.Background(), 10, 2)
	assert.ErrorIs(t, err, xerrors.ErrOrderNotOwned)
}

func TestPayOrderNotFound(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.uc.Pay(context.Background(), 999, 1)
	assert.ErrorIs(t, err, xerrors.ErrOrderNotFound)
}

func TestPayOrderCancelled(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("5000"))
	f.seedOrder(10, 1, "1000")
	f.orders.orders[10].Status = domain.OrderCancelled

	_, err := f.uc.Pay(context.Background(), 10, 1)
	assert.ErrorIs(t, err, xerrors.ErrOrderNotPending)
}

func TestPayOrderInsufficientFundsWritesNoEvent(t *testing.T) {
	f := newOrderFixture(t)
	f.wallets.seed(1, d("100"))
	f.seedOrder(10, 1, "1000")

	_, err := f.uc.Pay(context.Background(), 10, 1)
	assert.ErrorIs(t, err, xerrors.ErrInsufficientFunds)
	assert.Empty(t, f.outbox.order)
	assert.Empty(t, f.ledger.entries)
}
