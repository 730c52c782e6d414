package account

import "github.com/shopspring/decimal"

// =============================================================================
// PAYMENT - Requested movement of an amount of one currency
// =============================================================================

// Payment describes a requested amount of one currency. For deposits and
// withdraws the amount is non-negative and the operation supplies the
// direction; for set it is the target balance, which may be negative.
type Payment struct {
	Currency Currency
	Amount   decimal.Decimal
	Reason   string
}

func NewPayment(currency Currency, amount decimal.Decimal) Payment {
	return Payment{Currency: currency, Amount: amount}
}

func NewPaymentFromFloat(currency Currency, amount float64) Payment {
	return Payment{Currency: currency, Amount: decimal.NewFromFloat(amount)}
}

// WithReason returns a copy of the payment carrying an audit reason.
func (p Payment) WithReason(reason string) Payment {
	p.Reason = reason
	return p
}
