// Package report aggregates archived shifts for the admin dashboard and
// renders them as CSV, plain text or printable HTML.
package report

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"saldokonter/backend/internal/domain"
)

type LocationSummary struct {
	Lokasi           string          `json:"lokasi"`
	Shifts           int             `json:"shifts"`
	TotalIn          int64           `json:"total_in"`
	TotalOut         int64           `json:"total_out"`
	TotalAdminFee    int64           `json:"total_admin_fee"`
	UangMakan        int64           `json:"uang_makan"`
	FinalAdminFee    int64           `json:"final_admin_fee"`
	ExpectedBalance  int64           `json:"expected_balance"`
	Selisih          int64           `json:"selisih"`
	Deposit          int64           `json:"deposit"`
	Lebih            int             `json:"lebih"`
	Kurang           int             `json:"kurang"`
	Sesuai           int             `json:"sesuai"`
	VariancePercent  decimal.Decimal `json:"variance_percent"`
	AvgFinalAdminFee decimal.Decimal `json:"avg_final_admin_fee"`
}

type VoucherSales struct {
	VoucherID   string `json:"voucher_id"`
	VoucherName string `json:"voucher_name"`
	Sold        int    `json:"sold"`
	Revenue     int64  `json:"revenue"`
}

type Summary struct {
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Overall   LocationSummary   `json:"overall"`
	Locations []LocationSummary `json:"locations"`
	Vouchers  []VoucherSales    `json:"vouchers"`
}

// Summarize folds archives into per-location and overall figures. Locations
// follow the fixed location order; locations without shifts are omitted.
func Summarize(archives []domain.ArchivedShift, vouchers []domain.CatalogItem, from time.Time, to time.Time) Summary {
	overall := LocationSummary{Lokasi: "ALL"}
	byLokasi := map[string]*LocationSummary{}

	for _, archive := range archives {
		loc, ok := byLokasi[archive.Lokasi]
		if !ok {
			loc = &LocationSummary{Lokasi: archive.Lokasi}
			byLokasi[archive.Lokasi] = loc
		}
		add(loc, archive)
		add(&overall, archive)
	}

	locations := make([]LocationSummary, 0, len(byLokasi))
	for _, lokasi := range domain.Locations {
		if loc, ok := byLokasi[lokasi]; ok {
			locations = append(locations, finish(*loc))
			delete(byLokasi, lokasi)
		}
	}
	// archives from locations that were since removed from the fixed list
	rest := make([]string, 0, len(byLokasi))
	for lokasi := range byLokasi {
		rest = append(rest, lokasi)
	}
	slices.Sort(rest)
	for _, lokasi := range rest {
		locations = append(locations, finish(*byLokasi[lokasi]))
	}

	return Summary{
		From:      from,
		To:        to,
		Overall:   finish(overall),
		Locations: locations,
		Vouchers:  CountVoucherSales(archives, vouchers),
	}
}

func add(s *LocationSummary, archive domain.ArchivedShift) {
	s.Shifts++
	s.TotalIn += archive.TotalIn
	s.TotalOut += archive.TotalOut
	s.TotalAdminFee += archive.TotalAdminFee
	s.UangMakan += archive.UangMakan
	s.FinalAdminFee += archive.FinalAdminFee
	s.ExpectedBalance += archive.ExpectedBalance
	s.Selisih += archive.Selisih
	s.Deposit += archive.Deposit
	switch archive.SelisihStatus {
	case domain.SelisihLebih:
		s.Lebih++
	case domain.SelisihKurang:
		s.Kurang++
	default:
		s.Sesuai++
	}
}

func finish(s LocationSummary) LocationSummary {
	s.VariancePercent = VariancePercent(s.Selisih, s.ExpectedBalance)
	s.AvgFinalAdminFee = decimal.Zero
	if s.Shifts > 0 {
		s.AvgFinalAdminFee = decimal.NewFromInt(s.FinalAdminFee).
			Div(decimal.NewFromInt(int64(s.Shifts))).
			Round(2)
	}
	return s
}

// VariancePercent is selisih as a percentage of the expected balance, rounded
// to two places. Zero expected balance yields zero.
func VariancePercent(selisih int64, expected int64) decimal.Decimal {
	if expected == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(selisih).
		Div(decimal.NewFromInt(expected)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// CountVoucherSales counts one-unit voucher sales per catalog voucher, in
// catalog order. Vouchers with no sales are included with zero.
func CountVoucherSales(archives []domain.ArchivedShift, vouchers []domain.CatalogItem) []VoucherSales {
	sales := make([]VoucherSales, 0, len(vouchers))
	for _, voucher := range vouchers {
		line := VoucherSales{VoucherID: voucher.ID, VoucherName: voucher.Name}
		for _, archive := range archives {
			for _, tx := range archive.Transactions {
				if domain.IsVoucherSaleOf(tx.ID, voucher.ID) {
					line.Sold++
					line.Revenue += tx.Amount
				}
			}
		}
		sales = append(sales, line)
	}
	return sales
}
