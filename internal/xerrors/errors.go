package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrUserNotFound   = errors.New("user not found")
)

// Wallet / ledger
var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrLedgerEntryNotFound  = errors.New("ledger entry not found")
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
)

// Orders
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotOwned    = errors.New("order does not belong to user")
	ErrOrderAlreadyPaid = errors.New("order already paid")
	ErrOrderNotPending  = errors.New("order is not pending")
)

// Investments
var (
	ErrPlanNotFound     = errors.New("investment plan not found")
	ErrAmountOutOfRange = errors.New("amount outside plan limits")
)

// Commissions
var (
	ErrCommissionAlreadyPaid = errors.New("commission already paid for this level")
)

// Outbox
var (
	ErrUnknownEventType = errors.New("unknown outbox event type")
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}
