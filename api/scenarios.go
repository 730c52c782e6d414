/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the registry with realistic
  data for testing and demos. Each scenario creates currencies, accounts
  and transactions that demonstrate specific engine features.

AVAILABLE SCENARIOS:
  small-server:   Two players, one named treasury, a few transfers
  bank-shared:    A player-owned bank with a member and pooled funds

NOTE:
  Scenarios register accounts into the live registry. Only use in
  development/demo environments.

SEE ALSO:
  - handlers.go: writeJSON/writeError helpers
  - server.go: scenario routes
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/EconToolBox/EconToolBox/account"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-server",
		Name:        "Small Server",
		Description: "Two players, a treasury, and a few transfers between them",
	},
	{
		ID:          "bank-shared",
		Name:        "Shared Bank",
		Description: "A player-owned bank with a second member paying into it",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario populates the registry with one of the demo scenarios.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "small-server":
		err = h.loadSmallServerScenario()
	case "bank-shared":
		err = h.loadBankSharedScenario()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallServerScenario() error {
	gold := account.NewCurrency("eco", "gold", "g")
	h.Currencies.Register(gold)

	alice := account.NewPlayerAccount(uuid.New(), h.Gateway, h.Pool)
	bob := account.NewPlayerAccount(uuid.New(), h.Gateway, h.Pool)
	treasury := account.NewNamedAccount("treasury", h.Gateway, h.Pool)
	h.Registry.Register(alice)
	h.Registry.Register(bob)
	h.Registry.Register(treasury)

	seeds := []struct {
		acc    account.Account
		amount float64
	}{
		{alice, 100},
		{bob, 40},
		{treasury, 1000},
	}
	for _, s := range seeds {
		if _, err := s.acc.DepositSynced(account.NewPaymentFromFloat(gold, s.amount).WithReason("seed")); err != nil {
			return err
		}
	}

	res, err := h.Coordinator.TransferBetween(alice, bob,
		account.NewPaymentFromFloat(gold, 25).WithReason("demo transfer")).Await()
	if err != nil {
		return err
	}
	if res.Failed() {
		return fmt.Errorf("seed transfer failed: %s", res.FailureReason)
	}
	return nil
}

func (h *Handler) loadBankSharedScenario() error {
	gold := account.NewCurrency("eco", "gold", "g")
	h.Currencies.Register(gold)

	owner := account.NewPlayerAccount(uuid.New(), h.Gateway, h.Pool)
	member := account.NewPlayerAccount(uuid.New(), h.Gateway, h.Pool)
	bank := account.NewBankAccount("vault", owner.UUID, h.Gateway, h.Pool)
	if err := bank.AddMember(member.UUID); err != nil {
		return err
	}
	h.Registry.Register(owner)
	h.Registry.Register(member)
	h.Registry.Register(bank)

	if _, err := member.DepositSynced(account.NewPaymentFromFloat(gold, 60).WithReason("seed")); err != nil {
		return err
	}
	res, err := h.Coordinator.TransferBetween(member, bank,
		account.NewPaymentFromFloat(gold, 50).WithReason("bank deposit")).Await()
	if err != nil {
		return err
	}
	if res.Failed() {
		return fmt.Errorf("seed bank deposit failed: %s", res.FailureReason)
	}
	return nil
}
