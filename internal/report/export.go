package report

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"saldokonter/backend/internal/domain"
)

// SummaryCSV flattens a summary into section,key,value rows.
func SummaryCSV(summary Summary) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"section", "key", "value"})
	_ = w.Write([]string{"summary", "from", formatDate(summary.From)})
	_ = w.Write([]string{"summary", "to", formatDate(summary.To)})
	_ = w.WriteAll(locationRows("overall", summary.Overall))
	for _, loc := range summary.Locations {
		_ = w.WriteAll(locationRows("lokasi_"+strings.ToLower(loc.Lokasi), loc))
	}
	for _, voucher := range summary.Vouchers {
		_ = w.Write([]string{"voucher", voucher.VoucherID + "_sold", strconv.Itoa(voucher.Sold)})
		_ = w.Write([]string{"voucher", voucher.VoucherID + "_revenue", strconv.FormatInt(voucher.Revenue, 10)})
	}
	w.Flush()
	return b.String()
}

func locationRows(section string, s LocationSummary) [][]string {
	row := func(key string, value string) []string { return []string{section, key, value} }
	n := func(v int64) string { return strconv.FormatInt(v, 10) }
	return [][]string{
		row("shifts", strconv.Itoa(s.Shifts)),
		row("total_in", n(s.TotalIn)),
		row("total_out", n(s.TotalOut)),
		row("total_admin_fee", n(s.TotalAdminFee)),
		row("uang_makan", n(s.UangMakan)),
		row("final_admin_fee", n(s.FinalAdminFee)),
		row("selisih", n(s.Selisih)),
		row("deposit", n(s.Deposit)),
		row("lebih", strconv.Itoa(s.Lebih)),
		row("kurang", strconv.Itoa(s.Kurang)),
		row("sesuai", strconv.Itoa(s.Sesuai)),
		row("variance_percent", s.VariancePercent.StringFixed(2)),
	}
}

// ShiftText renders an archived shift as the plain-text handover note that
// gets pasted into chat at the end of a shift.
func ShiftText(archive domain.ArchivedShift) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LAPORAN SHIFT %s\n", archive.Lokasi)
	fmt.Fprintf(&b, "Petugas   : %s\n", archive.Username)
	fmt.Fprintf(&b, "Mulai     : %s\n", archive.StartTime.Format(time.DateTime))
	fmt.Fprintf(&b, "Selesai   : %s\n", archive.EndTime.Format(time.DateTime))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Kas Awal        : %s\n", Rupiah(archive.KasAwal))
	fmt.Fprintf(&b, "Total Masuk     : %s\n", Rupiah(archive.TotalIn))
	fmt.Fprintf(&b, "Total Keluar    : %s\n", Rupiah(archive.TotalOut))
	fmt.Fprintf(&b, "Saldo Seharusnya: %s\n", Rupiah(archive.ExpectedBalance))
	fmt.Fprintf(&b, "Kas Akhir       : %s\n", Rupiah(archive.KasAkhir))
	fmt.Fprintf(&b, "Selisih         : %s (%s)\n", Rupiah(archive.Selisih), archive.SelisihStatus)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total Admin     : %s\n", Rupiah(archive.TotalAdminFee))
	fmt.Fprintf(&b, "Uang Makan      : %s\n", Rupiah(archive.UangMakan))
	fmt.Fprintf(&b, "Admin Bersih    : %s\n", Rupiah(archive.FinalAdminFee))
	b.WriteString("\nSALDO APLIKASI\n")
	for _, wallet := range domain.Wallets {
		initial := archive.InitialAppBalances[wallet.Key]
		final := archive.AppBalances[wallet.Key]
		if initial == 0 && final == 0 {
			continue
		}
		fmt.Fprintf(&b, "%-10s %s -> %s\n", wallet.DisplayName, Rupiah(initial), Rupiah(final))
	}
	if len(archive.VoucherDiscrepancies) > 0 {
		b.WriteString("\nSELISIH VOUCHER\n")
		for _, d := range archive.VoucherDiscrepancies {
			fmt.Fprintf(&b, "%s: seharusnya %d, terhitung %d (%+d)\n", d.VoucherName, d.ExpectedStock, d.FinalStock, d.Discrepancy)
		}
	}
	if strings.TrimSpace(archive.Notes) != "" {
		fmt.Fprintf(&b, "\nCatatan: %s\n", archive.Notes)
	}
	return b.String()
}

// Rupiah formats an integer amount with dot thousand separators, e.g.
// -1500000 -> "-Rp1.500.000".
func Rupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return sign + "Rp" + grouped.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// All user-controlled fields are escaped by html/template.
var shiftHTMLTmpl = template.Must(template.New("shift-report").Funcs(template.FuncMap{
	"rupiah": Rupiah,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Shift {{.Lokasi}} {{.Username}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
  </style>
</head>
<body>
  <h2>Shift {{.Lokasi}}: {{.Username}}</h2>
  <p>Kas Awal {{rupiah .KasAwal}}, Kas Akhir {{rupiah .KasAkhir}}, Selisih {{rupiah .Selisih}} ({{.SelisihStatus}})</p>
  <p>Admin Bersih {{rupiah .FinalAdminFee}}</p>
  <table>
    <thead><tr><th>Waktu</th><th>Jenis</th><th>Keterangan</th><th>Nominal</th><th>Admin</th></tr></thead>
    <tbody>
    {{range .Transactions}}
      <tr><td>{{.Timestamp.Format "15:04"}}</td><td>{{.Type}}</td><td>{{.Description}}</td><td>{{rupiah .Amount}}</td><td>{{rupiah .AdminFee}}</td></tr>
    {{end}}
    </tbody>
  </table>
  {{if .Notes}}<p>Catatan: {{.Notes}}</p>{{end}}
</body>
</html>`))

func ShiftHTML(w io.Writer, archive domain.ArchivedShift) error {
	return shiftHTMLTmpl.Execute(w, archive)
}
