package hrest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/pkg/money"
	"settlement-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SettlementRestHandler is the HTTP surface over the intake and settlement
// usecases. It only decodes, delegates, and renders; every business rule
// lives below it.
type SettlementRestHandler struct {
	accountUC    *usecase.AccountUsecase
	intakeUC     *usecase.IntakeUsecase
	settlementUC *usecase.SettlementUsecase
	logger       *zap.Logger
}

func NewSettlementRestHandler(
	accountUC *usecase.AccountUsecase,
	intakeUC *usecase.IntakeUsecase,
	settlementUC *usecase.SettlementUsecase,
	logger *zap.Logger,
) *SettlementRestHandler {
	return &SettlementRestHandler{
		accountUC:    accountUC,
		intakeUC:     intakeUC,
		settlementUC: settlementUC,
		logger:       logger,
	}
}

func (h *SettlementRestHandler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", h.OpenAccount)
		r.Get("/accounts", h.LookupAccount)
		r.Get("/accounts/{id}", h.GetAccount)
		r.Post("/requests", h.SubmitRequest)
		r.Post("/requests/{id}/decision", h.DecideRequest)
		r.Get("/transactions", h.ListTransactions)
	})

	return r
}

type accountJSON struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	OwnerName     string `json:"owner_name"`
	Balance       int64  `json:"balance"`
	BalanceMajor  string `json:"balance_major"`
	CreatedAt     string `json:"created_at"`
}

func toAccountJSON(acc *domain.Account) accountJSON {
	return accountJSON{
		ID:            acc.ID,
		AccountNumber: acc.AccountNumber,
		OwnerName:     acc.OwnerName,
		Balance:       acc.Balance,
		BalanceMajor:  money.FormatMinor(acc.Balance),
		CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
	}
}

type transactionJSON struct {
	ID            int64  `json:"id"`
	ReferenceCode string `json:"reference_code"`
	AccountID     int64  `json:"account_id"`
	OwnerName     string `json:"owner_name,omitempty"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	AmountMajor   string `json:"amount_major"`
	Note          string `json:"note,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	SettledAt     string `json:"settled_at,omitempty"`
}

func toTransactionJSON(tx *domain.Transaction) transactionJSON {
	out := transactionJSON{
		ID:            tx.ID,
		ReferenceCode: tx.ReferenceCode,
		AccountID:     tx.AccountID,
		OwnerName:     tx.OwnerName,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount,
		AmountMajor:   money.FormatMinor(tx.Amount),
		Note:          tx.Note,
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.SettledAt != nil {
		out.SettledAt = tx.SettledAt.Format(time.RFC3339)
	}
	return out
}

type openAccountJSON struct {
	OwnerName string `json:"owner_name"`
}

func (h *SettlementRestHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var in openAccountJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := h.accountUC.OpenAccount(r.Context(), &domain.OpenAccountRequest{
		OwnerName: in.OwnerName,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAccountJSON(acc))
}

func (h *SettlementRestHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	acc, err := h.accountUC.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountJSON(acc))
}

// LookupAccount resolves an account by its owner's name.
func (h *SettlementRestHandler) LookupAccount(w http.ResponseWriter, r *http.Request) {
	ownerName := r.URL.Query().Get("owner_name")
	if ownerName == "" {
		respondError(w, http.StatusBadRequest, "owner_name is required")
		return
	}

	acc, err := h.accountUC.GetByOwnerName(r.Context(), ownerName)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountJSON(acc))
}

type submitJSON struct {
	AccountID   int64  `json:"account_id"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	AmountMajor string `json:"amount_major"`
	Note        string `json:"note"`
}

func (h *SettlementRestHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var in submitJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Amounts may arrive as minor units or as a major-unit decimal string,
	// but not both.
	amount := in.Amount
	if in.AmountMajor != "" {
		if in.Amount != 0 {
			respondError(w, http.StatusBadRequest, "provide amount or amount_major, not both")
			return
		}
		var err error
		amount, err = money.ParseMajor(in.AmountMajor)
		if err != nil {
			respondDomainError(w, err)
			return
		}
	}

	tx, err := h.intakeUC.Submit(r.Context(), &domain.SubmitRequest{
		AccountID: in.AccountID,
		Kind:      domain.TransactionKind(in.Kind),
		Amount:    amount,
		Note:      in.Note,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

type decisionJSON struct {
	Decision string `json:"decision"`
}

func (h *SettlementRestHandler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var in decisionJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := h.settlementUC.Decide(r.Context(), &domain.DecideRequest{
		TransactionID: id,
		Decision:      domain.Decision(in.Decision),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toTransactionJSON(tx))
}

type transactionListJSON struct {
	Transactions []transactionJSON `json:"transactions"`
	Total        int64             `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

func (h *SettlementRestHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := &domain.TransactionFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.TransactionStatus(s)
		filter.Status = &status
	}
	if s := r.URL.Query().Get("account_id"); s != "" {
		accountID, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		filter.AccountID = &accountID
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	txs, total, err := h.intakeUC.ListTransactions(r.Context(), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	out := transactionListJSON{
		Transactions: make([]transactionJSON, 0, len(txs)),
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	for _, tx := range txs {
		out.Transactions = append(out.Transactions, toTransactionJSON(tx))
	}

	respondJSON(w, http.StatusOK, out)
}
