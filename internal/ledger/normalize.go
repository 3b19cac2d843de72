package ledger

import "saldokonter/backend/internal/domain"

// NormalizeShift repairs a loaded shift: wallet sets carry exactly the known
// keys, nil collections become empty, and the derived totals are refolded from
// the transaction list. Applying it twice changes nothing.
func NormalizeShift(shift domain.Shift) domain.Shift {
	shift.InitialAppBalances = shift.InitialAppBalances.Normalize()
	shift.AppBalances = shift.AppBalances.Normalize()
	if shift.Transactions == nil {
		shift.Transactions = []domain.Transaction{}
	}
	if shift.InitialVoucherStock == nil {
		shift.InitialVoucherStock = map[string]int{}
	}
	applyTotals(&shift, FoldTotals(shift.Transactions))
	return shift
}

// Recompute refreshes every derived field of an open shift from scratch.
// base is the projection starting point, see ProjectionBase.
func Recompute(shift *domain.Shift, base domain.WalletBalanceSet, catalog []domain.CatalogItem) {
	applyTotals(shift, FoldTotals(shift.Transactions))
	shift.AppBalances = ProjectBalances(base, shift.Transactions, catalog)
}

func applyTotals(shift *domain.Shift, totals Totals) {
	shift.TotalIn = totals.TotalIn
	shift.TotalOut = totals.TotalOut
	shift.UangTransaksi = totals.UangTransaksi
	shift.TotalAdminFee = totals.TotalAdminFee
}
