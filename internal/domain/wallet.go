package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the single source of truth for a user's balance. Only the
// wallet usecase writes Balance; every other component goes through
// Credit/Debit.
type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type LedgerEntryType string

const (
	EntryDeposit          LedgerEntryType = "DEPOSIT"
	EntryWithdrawal       LedgerEntryType = "WITHDRAWAL"
	EntryPurchase         LedgerEntryType = "PURCHASE"
	EntryInvestmentPayout LedgerEntryType = "INVESTMENT_PAYOUT"
	EntryMlmCommission    LedgerEntryType = "MLM_COMMISSION"
	EntryAdjustment       LedgerEntryType = "ADJUSTMENT"
)

type LedgerEntryStatus string

const (
	EntryPending   LedgerEntryStatus = "PENDING"
	EntryCompleted LedgerEntryStatus = "COMPLETED"
	EntryRejected  LedgerEntryStatus = "REJECTED"
)

// LedgerEntry is one immutable signed record of a balance change.
// Amount is positive for credits, negative for debits. BalanceAfter is
// the wallet balance snapshot immediately after the entry. Only Status
// may change after insert (PENDING -> COMPLETED/REJECTED).
type LedgerEntry struct {
	ID           int64             `json:"id"`
	WalletID     int64             `json:"wallet_id"`
	Type         LedgerEntryType   `json:"type"`
	Source       string            `json:"source"`
	Amount       decimal.Decimal   `json:"amount"`
	BalanceAfter decimal.Decimal   `json:"balance_after"`
	Status       LedgerEntryStatus `json:"status"`
	Reference    string            `json:"reference"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// WithdrawalRequest carries operator-facing details of a pending withdrawal.
type WithdrawalRequest struct {
	Entry   *LedgerEntry    `json:"entry"`
	Fee     decimal.Decimal `json:"fee"`
	Method  string          `json:"method"`
	Details string          `json:"details"`
}
