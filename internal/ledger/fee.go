// Package ledger holds the pure shift calculations: fee lookup, product
// resolution, wallet projection, totals and close-time reconciliation.
package ledger

import (
	"strings"

	"saldokonter/backend/internal/domain"
)

// ComputeFee returns the admin fee for a transaction. A description that does
// not start with a fee keyword costs nothing. On CASH_OUT a positive manual
// wallet amount replaces amount for the bracket lookup. The first rule whose
// inclusive bracket holds the lookup amount wins; no match means zero.
func ComputeFee(amount int64, description string, rules []domain.FeeRule, txType domain.TransactionType, manualWalletAmount *int64) int64 {
	if !feeKeywordRule.matches(strings.ToUpper(description)) {
		return 0
	}

	lookup := amount
	if txType == domain.CashOut && manualWalletAmount != nil && *manualWalletAmount > 0 {
		lookup = *manualWalletAmount
	}

	for _, rule := range rules {
		if rule.MinAmount <= lookup && lookup <= rule.MaxAmount {
			return rule.Fee
		}
	}
	return 0
}
