package hrest

import (
	"encoding/json"
	"errors"
	"net/http"

	"wallet-service/internal/xerrors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidAmount),
		errors.Is(err, xerrors.ErrAmountOutOfRange),
		errors.Is(err, xerrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrWalletNotFound),
		errors.Is(err, xerrors.ErrOrderNotFound),
		errors.Is(err, xerrors.ErrLedgerEntryNotFound),
		errors.Is(err, xerrors.ErrPlanNotFound),
		errors.Is(err, xerrors.ErrUserNotFound),
		errors.Is(err, xerrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, xerrors.ErrOrderAlreadyPaid),
		errors.Is(err, xerrors.ErrOrderNotPending),
		errors.Is(err, xerrors.ErrWithdrawalNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrOrderNotOwned):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, xerrors.ErrInternalServer.Error())
	}
}
