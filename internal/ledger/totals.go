package ledger

import "saldokonter/backend/internal/domain"

type Totals struct {
	TotalIn       int64 `json:"totalIn"`
	TotalOut      int64 `json:"totalOut"`
	UangTransaksi int64 `json:"uangTransaksi"`
	TotalAdminFee int64 `json:"totalAdminFee"`
}

func FoldTotals(transactions []domain.Transaction) Totals {
	var totals Totals
	for _, tx := range transactions {
		switch tx.Type {
		case domain.CashIn:
			totals.TotalIn += tx.Amount
		case domain.CashOut:
			totals.TotalOut += tx.Amount
		}
		totals.TotalAdminFee += tx.AdminFee + tx.ProductAdminFee
	}
	totals.UangTransaksi = totals.TotalIn - totals.TotalOut
	return totals
}
