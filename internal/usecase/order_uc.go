package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/internal/xerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// OrderUsecase ties purchase settlement together: the order status
// flip, the wallet debit, investment creation and the outbox event all
// commit or roll back as one unit.
type OrderUsecase struct {
	orderRepo      repository.OrderRepository
	investmentRepo repository.InvestmentRepository
	outboxRepo     repository.OutboxRepository
	walletUC       *WalletUsecase
	logger         *zap.Logger
}

func NewOrderUsecase(
	orderRepo repository.OrderRepository,
	investmentRepo repository.InvestmentRepository,
	outboxRepo repository.OutboxRepository,
	walletUC *WalletUsecase,
	logger *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		orderRepo:      orderRepo,
		investmentRepo: investmentRepo,
		outboxRepo:     outboxRepo,
		walletUC:       walletUC,
		logger:         logger,
	}
}

// Pay settles a PENDING order. The status transition is a
// compare-and-swap filtered on (id, user, PENDING); zero affected rows
// means a concurrent payer won or a precondition failed, and the
// specific error is derived by re-reading the order. Under concurrent
// calls exactly one settles.
func (uc *OrderUsecase) Pay(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	now := time.Now()

	tx, err := uc.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	affected, err := uc.orderRepo.MarkPaid(ctx, tx, orderID, userID, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, uc.classifyPayFailure(ctx, orderID, userID)
	}

	order, err := uc.orderRepo.GetByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if _, err := uc.walletUC.Debit(ctx, tx, userID, order.TotalAmount,
		domain.EntryPurchase, "ORDER", strconv.FormatInt(orderID, 10),
		domain.EntryCompleted); err != nil {
		return nil, err
	}

	if err := uc.createInvestments(ctx, tx, order, now); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(domain.OrderPaidPayload{
		OrderID: orderID,
		BuyerID: userID,
		Amount:  order.TotalAmount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	if err := uc.outboxRepo.Insert(ctx, tx, &domain.OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: "order",
		AggregateID:   strconv.FormatInt(orderID, 10),
		Type:          domain.EventOrderPaid,
		Payload:       payload,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order settlement: %w", err)
	}

	uc.logger.Info("order settled",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID),
		zap.String("amount", order.TotalAmount.String()))
	uc.walletUC.NotifyBalanceChange(userID, &domain.LedgerEntry{
		Type:      domain.EntryPurchase,
		Amount:    order.TotalAmount.Neg(),
		Reference: strconv.FormatInt(orderID, 10),
	}, "order.paid")

	return order, nil
}

// classifyPayFailure distinguishes why the CAS matched nothing.
func (uc *OrderUsecase) classifyPayFailure(ctx context.Context, orderID, userID int64) error {
	order, err := uc.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return xerrors.ErrOrderNotOwned
	}
	if order.Status == domain.OrderPaid {
		return xerrors.ErrOrderAlreadyPaid
	}
	return xerrors.ErrOrderNotPending
}

// createInvestments opens an investment for every order item that
// references a plan, validating the amount against the plan limits.
func (uc *OrderUsecase) createInvestments(ctx context.Context, tx pgx.Tx, order *domain.Order, now time.Time) error {
	items, err := uc.orderRepo.ListItems(ctx, tx, order.ID)
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.PlanID == nil {
			continue
		}

		plan, err := uc.investmentRepo.GetPlan(ctx, *item.PlanID)
		if err != nil {
			return err
		}
		if err := plan.Validate(item.Amount); err != nil {
			return fmt.Errorf("plan %d: %w", plan.ID, err)
		}

		inv := &domain.Investment{
			UserID:          order.UserID,
			PlanID:          plan.ID,
			PrincipalAmount: item.Amount,
			StartDate:       now,
			EndDate:         now.AddDate(0, 0, plan.DurationDays),
		}
		if err := uc.investmentRepo.Create(ctx, tx, inv); err != nil {
			return err
		}
	}

	return nil
}
