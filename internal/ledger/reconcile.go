package ledger

import (
	"fmt"
	"slices"
	"time"

	"saldokonter/backend/internal/domain"
)

const MealDescription = "Uang Makan"

type CloseInput struct {
	KasAwal             int64
	Transactions        []domain.Transaction
	PhysicalCash        domain.PhysicalCashDetails
	UangMakan           int64
	InitialVoucherStock map[string]int
	FinalVoucherStock   map[string]int
	VoucherNames        map[string]string
	ClosedAt            time.Time
}

type CloseResult struct {
	Transactions    []domain.Transaction
	Totals          Totals
	KasAkhir        int64
	ExpectedBalance int64
	Selisih         int64
	SelisihStatus   domain.SelisihStatus
	FinalAdminFee   int64
	Discrepancies   []domain.VoucherDiscrepancy
}

// Reconcile runs the close-time arithmetic. The meal deduction becomes a
// CASH_OUT before totals are folded, so it is already inside TotalOut when the
// expected balance is computed.
func Reconcile(in CloseInput) CloseResult {
	transactions := slices.Clone(in.Transactions)
	if in.UangMakan > 0 {
		transactions = append(transactions, MealTransaction(in.UangMakan, in.ClosedAt))
	}

	totals := FoldTotals(transactions)
	kasAkhir := in.PhysicalCash.Total()
	expected := in.KasAwal + totals.TotalIn - totals.TotalOut
	selisih := kasAkhir - expected

	return CloseResult{
		Transactions:    transactions,
		Totals:          totals,
		KasAkhir:        kasAkhir,
		ExpectedBalance: expected,
		Selisih:         selisih,
		SelisihStatus:   ClassifySelisih(selisih),
		FinalAdminFee:   totals.TotalAdminFee - in.UangMakan,
		Discrepancies:   VoucherDiscrepancies(in.InitialVoucherStock, in.FinalVoucherStock, transactions, in.VoucherNames),
	}
}

func MealTransaction(amount int64, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          fmt.Sprintf("meal-%d", at.UnixNano()),
		Timestamp:   at,
		Type:        domain.CashOut,
		Amount:      amount,
		Description: MealDescription,
	}
}

func ClassifySelisih(selisih int64) domain.SelisihStatus {
	switch {
	case selisih > 0:
		return domain.SelisihLebih
	case selisih < 0:
		return domain.SelisihKurang
	default:
		return domain.SelisihSesuai
	}
}

// VoucherDiscrepancies compares the closing stock of every voucher in the
// opening snapshot against opening stock minus recorded one-unit sales. Only
// non-zero differences are returned, sorted by voucher id.
func VoucherDiscrepancies(initial, final map[string]int, transactions []domain.Transaction, names map[string]string) []domain.VoucherDiscrepancy {
	ids := make([]string, 0, len(initial))
	for id := range initial {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	discrepancies := make([]domain.VoucherDiscrepancy, 0)
	for _, id := range ids {
		sold := 0
		for _, tx := range transactions {
			if domain.IsVoucherSaleOf(tx.ID, id) {
				sold++
			}
		}
		expected := initial[id] - sold
		diff := final[id] - expected
		if diff == 0 {
			continue
		}
		name := names[id]
		if name == "" {
			name = id
		}
		discrepancies = append(discrepancies, domain.VoucherDiscrepancy{
			VoucherID:     id,
			VoucherName:   name,
			InitialStock:  initial[id],
			SoldCount:     sold,
			ExpectedStock: expected,
			FinalStock:    final[id],
			Discrepancy:   diff,
		})
	}
	return discrepancies
}

func DiscrepancyWarning(d domain.VoucherDiscrepancy) string {
	return fmt.Sprintf("voucher %s: expected stock %d, counted %d (%+d)", d.VoucherName, d.ExpectedStock, d.FinalStock, d.Discrepancy)
}
