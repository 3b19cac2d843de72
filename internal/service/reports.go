package service

import (
	"context"
	"fmt"
	"io"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/report"
)

// reportArchiveLimit bounds how many archives one summary folds.
const reportArchiveLimit = 5000

func (s *Service) SummaryReport(ctx context.Context, filter domain.ArchiveFilter) (report.Summary, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return report.Summary{}, err
	}
	filter.Lokasi = domain.NormalizeLokasi(filter.Lokasi)
	if filter.Lokasi != "" && !domain.IsLocation(filter.Lokasi) {
		return report.Summary{}, validationf("unknown lokasi %q", filter.Lokasi)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return report.Summary{}, validationf("to must not be before from")
	}
	filter.Limit = reportArchiveLimit

	archives, err := s.repo.ListArchivedShifts(ctx, filter)
	if err != nil {
		return report.Summary{}, err
	}
	ref, err := s.referenceData(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(archives, ref.Catalog.Vouchers, filter.From, filter.To), nil
}

type ExportFormat string

const (
	ExportText ExportFormat = "text"
	ExportHTML ExportFormat = "html"
)

// ExportShift writes one archived shift as a handover document.
func (s *Service) ExportShift(ctx context.Context, id string, format ExportFormat, w io.Writer) error {
	archive, err := s.GetArchivedShift(ctx, id)
	if err != nil {
		return err
	}
	switch format {
	case ExportText, "":
		_, err = io.WriteString(w, report.ShiftText(archive))
		return err
	case ExportHTML:
		return report.ShiftHTML(w, archive)
	default:
		return validationf("format must be %s or %s", ExportText, ExportHTML)
	}
}

// ReportFilename names a downloaded export.
func ReportFilename(archive domain.ArchivedShift, format ExportFormat) string {
	ext := "txt"
	if format == ExportHTML {
		ext = "html"
	}
	return fmt.Sprintf("shift-%s-%s.%s", archive.Lokasi, archive.EndTime.Format("20060102-1504"), ext)
}
