/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Monetary amounts travel as decimal strings ("12.50"), never as floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"
	"time"

	"github.com/EconToolBox/EconToolBox/account"
)

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

type AccountDTO struct {
	Key      string       `json:"key"`
	Kind     string       `json:"kind"`
	Name     string       `json:"name,omitempty"`
	Owner    string       `json:"owner,omitempty"`
	UUID     string       `json:"uuid,omitempty"`
	Balances []BalanceDTO `json:"balances"`
}

type BalanceDTO struct {
	Currency string `json:"currency"`
	Symbol   string `json:"symbol,omitempty"`
	Amount   string `json:"amount"`
}

type CreateAccountRequest struct {
	Kind      string `json:"kind"`            // player | bank | named
	Name      string `json:"name,omitempty"`  // bank/named accounts
	UUID      string `json:"uuid,omitempty"`  // player accounts
	Owner     string `json:"owner,omitempty"` // bank accounts
	Overdraft bool   `json:"overdraft,omitempty"`
}

// =============================================================================
// OPERATION TYPES
// =============================================================================

type PaymentRequest struct {
	Currency string `json:"currency"` // identity key, "namespace:name"
	Amount   string `json:"amount"`
	Reason   string `json:"reason,omitempty"`
	Force    bool   `json:"force,omitempty"` // set only: bypass the funds check
}

type TransferRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

type ResultDTO struct {
	Success      bool             `json:"success"`
	Reason       string           `json:"reason,omitempty"`
	Transactions []TransactionDTO `json:"transactions,omitempty"`
}

type TransactionDTO struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

type EntryDTO struct {
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Timestamp    string `json:"timestamp"`
	Counterparty string `json:"counterparty,omitempty"`
}

// =============================================================================
// CURRENCY TYPES
// =============================================================================

type CurrencyDTO struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol,omitempty"`
}

type CreateCurrencyRequest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol,omitempty"`
	Default   bool   `json:"default,omitempty"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(acc account.Account) AccountDTO {
	dto := AccountDTO{Key: acc.Key(), Kind: string(acc.Kind())}
	switch a := acc.(type) {
	case *account.PlayerAccount:
		dto.UUID = a.UUID.String()
	case *account.BankAccount:
		dto.Name = a.Name
		dto.Owner = a.Owner.String()
	case *account.NamedAccount:
		dto.Name = a.Name
	}
	for c, amount := range acc.Balances() {
		dto.Balances = append(dto.Balances, BalanceDTO{
			Currency: c.Key(),
			Symbol:   c.Symbol,
			Amount:   amount.String(),
		})
	}
	sort.Slice(dto.Balances, func(i, j int) bool {
		return dto.Balances[i].Currency < dto.Balances[j].Currency
	})
	if dto.Balances == nil {
		dto.Balances = []BalanceDTO{}
	}
	return dto
}

func toResultDTO(res account.Result) ResultDTO {
	dto := ResultDTO{Success: !res.Failed(), Reason: res.FailureReason}
	for _, tx := range res.Transactions {
		dto.Transactions = append(dto.Transactions, TransactionDTO{
			Type:      string(tx.Type),
			Source:    tx.Source,
			Target:    tx.Target,
			Currency:  tx.Currency.Key(),
			Amount:    tx.Amount.String(),
			Reason:    tx.Reason,
			Timestamp: tx.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return dto
}

func toEntryDTOs(entries []account.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			Type:         string(e.Type),
			Amount:       e.Amount.String(),
			Currency:     e.Currency.Key(),
			Timestamp:    e.Timestamp.Format(time.RFC3339Nano),
			Counterparty: e.Counterparty,
		}
	}
	return dtos
}
