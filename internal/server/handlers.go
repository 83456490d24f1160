package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/bank"
	"github.com/sheikh-saqib/transactional-accounts-service/internal/models"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  *slog.Logger
	service *bank.Service
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, svc *bank.Service) *APIHandlers {
	return &APIHandlers{logger: logger, service: svc}
}

type accountRequest struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

type transferRequest struct {
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
}

type depositRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

func (h *APIHandlers) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload accountRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), payload.AccountID, payload.Balance)
	if err != nil {
		h.writeDomainError(w, err, "failed to create account", "account_id", payload.AccountID)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (h *APIHandlers) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is a mandatory field")
		return
	}

	balance, err := h.service.Balance(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err, "failed to read balance", "account_id", accountID)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Balance: balance})
}

func (h *APIHandlers) handleTransfers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTransfer(w, r)
	case http.MethodGet:
		h.listTransfers(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) createTransfer(w http.ResponseWriter, r *http.Request) {
	var payload transferRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.FromAccount == "" || payload.ToAccount == "" {
		writeError(w, http.StatusBadRequest, "from_account and to_account are required")
		return
	}

	result, err := h.service.Transfer(r.Context(), bank.TransferRequest{
		FromAccount:    payload.FromAccount,
		ToAccount:      payload.ToAccount,
		Amount:         payload.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeDomainError(w, err, "transfer failed",
			"from_account", payload.FromAccount, "to_account", payload.ToAccount)
		return
	}

	if result.Replayed {
		respondJSON(w, http.StatusOK, map[string]string{"status": "already applied"})
		return
	}
	respondJSON(w, http.StatusCreated, result.Transfer)
}

func (h *APIHandlers) listTransfers(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")

	var (
		transfers []models.Transfer
		err       error
	)
	if accountID != "" {
		transfers, err = h.service.AccountTransfers(r.Context(), accountID)
	} else {
		transfers, err = h.service.Transfers(r.Context())
	}
	if err != nil {
		h.writeDomainError(w, err, "failed to list transfers", "account_id", accountID)
		return
	}
	if transfers == nil {
		transfers = []models.Transfer{}
	}
	respondJSON(w, http.StatusOK, transfers)
}

func (h *APIHandlers) handleDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload depositRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	deposit, err := h.service.Deposit(r.Context(), payload.AccountID, payload.Amount)
	if err != nil {
		h.writeDomainError(w, err, "deposit failed", "account_id", payload.AccountID)
		return
	}
	respondJSON(w, http.StatusCreated, deposit)
}

// writeDomainError maps domain errors to HTTP statuses; anything unrecognised
// is logged and reported as a 500 without leaking internals.
func (h *APIHandlers) writeDomainError(w http.ResponseWriter, err error, msg string, logAttrs ...any) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAccountExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrSameAccount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error(msg, append(logAttrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
