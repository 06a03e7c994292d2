package hrest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/internal/usecase"
	"wallet-service/internal/xerrors"
)

type WalletRestHandler struct {
	walletUC     *usecase.WalletUsecase
	orderUC      *usecase.OrderUsecase
	commissionUC *usecase.CommissionUsecase
	outboxRepo   repository.OutboxRepository
}

func NewWalletRestHandler(
	walletUC *usecase.WalletUsecase,
	orderUC *usecase.OrderUsecase,
	commissionUC *usecase.CommissionUsecase,
	outboxRepo repository.OutboxRepository,
) *WalletRestHandler {
	return &WalletRestHandler{
		walletUC:     walletUC,
		orderUC:      orderUC,
		commissionUC: commissionUC,
		outboxRepo:   outboxRepo,
	}
}

type AmountJSON struct {
	UserID    int64  `json:"user_id"`
	Amount    string `json:"amount"`
	Source    string `json:"source"`
	Reference string `json:"reference"`
}

type WithdrawJSON struct {
	UserID  int64  `json:"user_id"`
	Amount  string `json:"amount"`
	Method  string `json:"method"`
	Details string `json:"details"`
}

func (h *WalletRestHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var in AmountJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.ErrInvalidRequest.Error())
		return
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if in.Source == "" {
		in.Source = "MANUAL"
	}
	balance, err := h.walletUC.Credit(r.Context(), nil, in.UserID, amount, domain.EntryDeposit, in.Source, in.Reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *WalletRestHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var in AmountJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.ErrInvalidRequest.Error())
		return
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if in.Source == "" {
		in.Source = "MANUAL"
	}
	balance, err := h.walletUC.Debit(r.Context(), nil, in.UserID, amount, domain.EntryAdjustment, in.Source, in.Reference, domain.EntryCompleted)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *WalletRestHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var in WithdrawJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.ErrInvalidRequest.Error())
		return
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	req, err := h.walletUC.RequestWithdrawal(r.Context(), in.UserID, amount, in.Method, in.Details)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"withdrawal_id": req.Entry.ID,
		"reference":     req.Entry.Reference,
		"amount":        req.Entry.Amount.Abs().String(),
		"fee":           req.Fee.String(),
		"status":        req.Entry.Status,
	})
}

func (h *WalletRestHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}
	if err := h.walletUC.ApproveWithdrawal(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *WalletRestHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}
	refund, err := h.walletUC.RejectWithdrawal(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "rejected",
		"refund":        refund.Amount.String(),
		"balance_after": refund.BalanceAfter.String(),
	})
}

func (h *WalletRestHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	balance, err := h.walletUC.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *WalletRestHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	entries, total, err := h.walletUC.ListLedger(r.Context(), userID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *WalletRestHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	ok, err := h.walletUC.Reconcile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"consistent": ok})
}

type PayOrderJSON struct {
	UserID int64 `json:"user_id"`
}

func (h *WalletRestHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var in PayOrderJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.ErrInvalidRequest.Error())
		return
	}
	order, err := h.orderUC.Pay(r.Context(), orderID, in.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type DistributeJSON struct {
	OrderID int64  `json:"order_id"`
	BuyerID int64  `json:"buyer_id"`
	Amount  string `json:"amount"`
}

// DistributeCommissions enqueues a cascade run for an already settled
// order. Operator path for orders whose outbox event was lost before
// the dead-letter handling existed.
func (h *WalletRestHandler) DistributeCommissions(w http.ResponseWriter, r *http.Request) {
	var in DistributeJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.ErrInvalidRequest.Error())
		return
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	h.commissionUC.Distribute(in.OrderID, in.BuyerID, amount)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ResubmitOutboxEvent requeues a FAILED or dead-lettered event for
// another dispatch round. Operator-only.
func (h *WalletRestHandler) ResubmitOutboxEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if err := h.outboxRepo.Resubmit(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resubmitted"})
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
