/*
handlers.go - HTTP API handlers for the account engine

PURPOSE:
  Exposes the account engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the account package.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                  List all accounts
    POST   /api/accounts                  Create account
    GET    /api/accounts/{key}            Account details
    DELETE /api/accounts/{key}            Remove a named account
    GET    /api/accounts/{key}/history    Transaction history

  Operations (all synced: the response reflects the committed state):
    POST   /api/accounts/{key}/deposit
    POST   /api/accounts/{key}/withdraw
    POST   /api/accounts/{key}/set
    POST   /api/transfer                  Isolated two-account transfer

  Currencies:
    GET    /api/currencies
    POST   /api/currencies

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    POST   /api/scenarios/load            Load a demo scenario

ERROR HANDLING:
  Failed financial results come back as 200 with {"success": false, ...}:
  an insufficient-funds withdraw is a valid outcome, not an HTTP error.
  A persistence failure after a committed operation returns 500 with the
  committed result in the details: the money moved, durability is at risk.

SECURITY NOTE:
  No authentication middleware. The API is meant to sit behind the host
  process, not on the open network.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scenarios.go: Demo scenario loaders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/EconToolBox/EconToolBox/account"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry    *account.Registry
	Currencies  *account.CurrencyRegistry
	Coordinator *account.Coordinator
	Gateway     account.Gateway
	Pool        *account.Pool
	Logger      *slog.Logger
}

// NewHandler creates a handler over a registry and its persistence gateway.
func NewHandler(reg *account.Registry, currencies *account.CurrencyRegistry, coord *account.Coordinator, gw account.Gateway, pool *account.Pool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Registry:    reg,
		Currencies:  currencies,
		Coordinator: coord,
		Gateway:     gw,
		Pool:        pool,
		Logger:      logger,
	}
}

// deleter is the optional gateway capability for removing stored accounts.
// The memory, YAML and SQLite gateways all provide it.
type deleter interface {
	Delete(ctx context.Context, key string) error
}

func deleteStored(ctx context.Context, gw account.Gateway, key string) error {
	d, ok := gw.(deleter)
	if !ok {
		return nil
	}
	return d.Delete(ctx, key)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all registered accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.Registry.All()
	dtos := make([]AccountDTO, len(accounts))
	for i, acc := range accounts {
		dtos[i] = toAccountDTO(acc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount registers a new player, bank or named account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var opts []account.Option
	if req.Overdraft {
		opts = append(opts, account.WithOverdraft())
	}

	var (
		acc account.Account
		err error
	)
	switch account.Kind(req.Kind) {
	case account.KindPlayer:
		acc, err = account.NewPlayerAccountFromString(req.UUID, h.Gateway, h.Pool, opts...)
	case account.KindBank:
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "Bank accounts need a name", nil)
			return
		}
		acc, err = account.NewBankAccountFromStrings(req.Name, req.Owner, h.Gateway, h.Pool, opts...)
	case account.KindNamed:
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "Named accounts need a name", nil)
			return
		}
		acc = account.NewNamedAccount(req.Name, h.Gateway, h.Pool, opts...)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown account kind %q", req.Kind), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account identity", err)
		return
	}

	if _, exists := h.Registry.Resolve(acc.Key()); exists {
		writeError(w, http.StatusConflict, "Account already exists", nil)
		return
	}
	h.Registry.Register(acc)
	if err := h.Gateway.Save(r.Context(), acc); err != nil {
		writeError(w, http.StatusInternalServerError, "Account created but not persisted", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acc))
}

// GetAccount returns one account with its balances.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.Registry.Resolve(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

// DeleteAccount removes a named account: balance is zeroed (recorded in
// history), the account is deregistered and its stored state removed.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	acc, ok := h.Registry.Resolve(key)
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	if acc.Kind() != account.KindNamed {
		writeError(w, http.StatusBadRequest, "Only named accounts can be deleted", nil)
		return
	}

	// Administrative zeroing bypasses the funds check.
	for c := range acc.Balances() {
		if _, err := acc.ForceSetSynced(account.NewPayment(c, decimal.Zero).WithReason("account removed")); err != nil {
			h.Logger.Error("zeroing balance before delete", "account", key, "error", err)
		}
	}
	h.Registry.Deregister(key)
	if err := deleteStored(r.Context(), h.Gateway, key); err != nil {
		writeError(w, http.StatusInternalServerError, "Account removed but stored state remains", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns the account's full transaction history, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.Registry.Resolve(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(acc.History().Entries()))
}

// =============================================================================
// OPERATION HANDLERS
// =============================================================================

// Deposit credits the account.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.singleAccountOp(w, r, func(acc account.Account, p account.Payment, _ bool) (account.Result, error) {
		return acc.DepositSynced(p)
	})
}

// Withdraw debits the account, honoring the overdraft rule.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.singleAccountOp(w, r, func(acc account.Account, p account.Payment, _ bool) (account.Result, error) {
		return acc.WithdrawSynced(p)
	})
}

// Set overrides the balance. With "force": true the funds check is bypassed.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	h.singleAccountOp(w, r, func(acc account.Account, p account.Payment, force bool) (account.Result, error) {
		if force {
			return acc.ForceSetSynced(p)
		}
		return acc.SetSynced(p)
	})
}

func (h *Handler) singleAccountOp(w http.ResponseWriter, r *http.Request, op func(account.Account, account.Payment, bool) (account.Result, error)) {
	acc, ok := h.Registry.Resolve(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	p, force, ok := h.parsePayment(w, r)
	if !ok {
		return
	}

	res, err := op(acc, p, force)
	if err != nil {
		// The operation committed; only durability failed.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Operation committed but not persisted",
			Details: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(res))
}

// Transfer moves an amount between two accounts as one isolated transaction.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	currency, ok := h.Currencies.Find(req.Currency)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown currency %q", req.Currency), nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must be a non-negative decimal", err)
		return
	}
	payment := account.NewPayment(currency, amount).WithReason(req.Reason)

	pending, err := h.Coordinator.ExecuteKeys(h.Registry,
		func(views []*account.IsolatedView) []*account.Pending {
			return []*account.Pending{account.Transfer(views[0], views[1], payment)}
		}, req.From, req.To)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown account", err)
		return
	}

	res, err := pending.Await()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Transfer committed but not persisted",
			Details: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(res))
}

// =============================================================================
// CURRENCY HANDLERS
// =============================================================================

// ListCurrencies returns all registered currencies.
func (h *Handler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	all := h.Currencies.All()
	dtos := make([]CurrencyDTO, len(all))
	for i, c := range all {
		dtos[i] = CurrencyDTO{Namespace: c.Namespace, Name: c.Name, Symbol: c.Symbol}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCurrency registers a currency.
func (h *Handler) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	var req CreateCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Namespace == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Currency needs a namespace and a name", nil)
		return
	}
	c := account.NewCurrency(req.Namespace, req.Name, req.Symbol)
	h.Currencies.Register(c)
	if req.Default {
		if err := h.Currencies.SetDefault(c.Key()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to set default currency", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, CurrencyDTO{Namespace: c.Namespace, Name: c.Name, Symbol: c.Symbol})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parsePayment(w http.ResponseWriter, r *http.Request) (account.Payment, bool, bool) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return account.Payment{}, false, false
	}
	currency, ok := h.Currencies.Find(req.Currency)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown currency %q", req.Currency), nil)
		return account.Payment{}, false, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must be a non-negative decimal", err)
		return account.Payment{}, false, false
	}
	return account.NewPayment(currency, amount).WithReason(req.Reason), req.Force, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
