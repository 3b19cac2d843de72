package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"saldokonter/backend/internal/cache"
	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/ledger"
	"saldokonter/backend/internal/metrics"
	"saldokonter/backend/internal/notify"
	"saldokonter/backend/internal/realtime"
	"saldokonter/backend/internal/store"
	"saldokonter/backend/internal/xid"
)

const maxSaleQty = 100

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.Shift, error) {
	const title = "Open shift"

	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}

	lokasi := domain.NormalizeLokasi(req.Lokasi)
	if lokasi == "" {
		lokasi = actor.Lokasi
	}
	if !domain.IsLocation(lokasi) {
		return domain.Shift{}, s.fail(title, validationf("lokasi must be one of %s", strings.Join(domain.Locations, ", ")))
	}
	if actor.Role != domain.RoleAdmin && actor.Lokasi != "" && actor.Lokasi != lokasi {
		return domain.Shift{}, s.fail(title, fmt.Errorf("%w: assigned to %s", ErrForbidden, actor.Lokasi))
	}
	if req.KasAwal < 0 {
		return domain.Shift{}, s.fail(title, validationf("kasAwal must not be negative"))
	}

	if _, err := s.repo.GetOpenShift(ctx, actor.Username); err == nil {
		return domain.Shift{}, s.fail(title, ErrShiftAlreadyOpen)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Shift{}, s.fail(title, err)
	}

	voucherStock, err := s.repo.GetStockMap(ctx, domain.KindVoucher, lokasi)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}

	initial := domain.WalletBalanceSet(req.InitialAppBalances).Normalize()
	now := s.now()
	shift := domain.Shift{
		ID:                  xid.New("shift"),
		Username:            actor.Username,
		Lokasi:              lokasi,
		KasAwal:             req.KasAwal,
		StartTime:           now,
		Transactions:        []domain.Transaction{},
		InitialAppBalances:  initial,
		AppBalances:         initial.Clone(),
		InitialVoucherStock: voucherStock,
	}

	saved, err := s.repo.CreateOpenShift(ctx, shift)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Shift{}, s.fail(title, ErrShiftAlreadyOpen)
		}
		return domain.Shift{}, s.fail(title, err)
	}

	metrics.ShiftsOpened.WithLabelValues(lokasi).Inc()
	s.publisher.Publish(realtime.TableShifts, saved.Lokasi, saved)
	s.succeed(title, "%s opened a shift at %s", saved.Username, saved.Lokasi)
	return *saved, nil
}

func (s *Service) GetActiveShift(ctx context.Context) (domain.Shift, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	shift, err := s.loadOpenShift(ctx, actor.Username)
	if err != nil {
		return domain.Shift{}, err
	}
	return ledger.NormalizeShift(*shift), nil
}

func (s *Service) loadOpenShift(ctx context.Context, username string) (*domain.Shift, error) {
	shift, err := s.repo.GetOpenShift(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoOpenShift
	}
	return shift, err
}

type mutation func(shift *domain.Shift, ref cache.ReferenceData) error

// mutateOwnShift runs one read-modify-write of the caller's open shift.
func (s *Service) mutateOwnShift(ctx context.Context, title string, mutate mutation) (domain.Shift, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	shift, err := s.loadOpenShift(ctx, actor.Username)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	return s.applyMutation(ctx, title, shift, mutate)
}

// applyMutation edits the shift, refolds every derived field from the full
// transaction list and writes the whole record back. Nothing is persisted when
// mutate or the recompute fails.
func (s *Service) applyMutation(ctx context.Context, title string, shift *domain.Shift, mutate mutation) (domain.Shift, error) {
	ref, err := s.referenceData(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	if err := mutate(shift, ref); err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	if err := s.recompute(ctx, shift, ref); err != nil {
		return domain.Shift{}, s.fail(title, err)
	}

	saved, err := s.repo.SaveOpenShift(ctx, *shift)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableShifts, saved.Lokasi, saved)
	return *saved, nil
}

// recompute refolds shift from its stored balance logs plus pending ones that
// are not written yet.
func (s *Service) recompute(ctx context.Context, shift *domain.Shift, ref cache.ReferenceData, pending ...domain.BalanceLog) error {
	logs, err := s.repo.ListBalanceLogs(ctx, shift.ID)
	if err != nil {
		return fmt.Errorf("load balance logs: %w", err)
	}
	logs = append(logs[:len(logs):len(logs)], pending...)
	shift.InitialAppBalances = shift.InitialAppBalances.Normalize()
	ledger.Recompute(shift, ledger.ProjectionBase(shift.InitialAppBalances, logs), ref.Catalog.All())
	return nil
}

func annotate(tx *domain.Transaction, ref cache.ReferenceData) {
	ledger.Annotate(tx, ref.FeeRules, ref.Catalog.All())
}

func (s *Service) AddTransaction(ctx context.Context, input domain.TransactionInput) (domain.Shift, error) {
	tx := domain.Transaction{
		ID:                  xid.New("tx"),
		Timestamp:           s.now(),
		Type:                input.Type,
		Amount:              input.Amount,
		Description:         strings.TrimSpace(input.Description),
		SaldoMasukAplikasi:  positiveOrNil(input.SaldoMasukAplikasi),
		SaldoKeluarAplikasi: positiveOrNil(input.SaldoKeluarAplikasi),
	}

	shift, err := s.mutateOwnShift(ctx, "Add transaction", func(shift *domain.Shift, ref cache.ReferenceData) error {
		if err := validateTransaction(tx, input.SaldoMasukAplikasi, input.SaldoKeluarAplikasi); err != nil {
			return err
		}
		annotate(&tx, ref)
		shift.Transactions = append(shift.Transactions, tx)
		return nil
	})
	if err != nil {
		return domain.Shift{}, err
	}
	metrics.TransactionsRecorded.WithLabelValues(string(tx.Type)).Inc()
	return shift, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, txID string, patch domain.TransactionPatch) (domain.Shift, error) {
	return s.mutateOwnShift(ctx, "Edit transaction", func(shift *domain.Shift, ref cache.ReferenceData) error {
		idx := slices.IndexFunc(shift.Transactions, func(tx domain.Transaction) bool { return tx.ID == txID })
		if idx < 0 {
			return fmt.Errorf("transaction %s: %w", txID, store.ErrNotFound)
		}

		tx := shift.Transactions[idx]
		if patch.Type != nil {
			tx.Type = *patch.Type
		}
		if patch.Amount != nil {
			tx.Amount = *patch.Amount
		}
		if patch.Description != nil {
			tx.Description = strings.TrimSpace(*patch.Description)
		}
		rawMasuk, rawKeluar := tx.SaldoMasukAplikasi, tx.SaldoKeluarAplikasi
		if patch.SaldoMasukAplikasi != nil {
			rawMasuk = patch.SaldoMasukAplikasi
		}
		if patch.SaldoKeluarAplikasi != nil {
			rawKeluar = patch.SaldoKeluarAplikasi
		}
		tx.SaldoMasukAplikasi = positiveOrNil(rawMasuk)
		tx.SaldoKeluarAplikasi = positiveOrNil(rawKeluar)

		if err := validateTransaction(tx, rawMasuk, rawKeluar); err != nil {
			return err
		}
		if domain.IsCatalogSale(tx.ID) {
			// sale annotations come from the sold item, not the description
			tx.AdminFee = ledger.ComputeFee(tx.Amount, tx.Description, ref.FeeRules, tx.Type, tx.SaldoMasukAplikasi)
		} else {
			annotate(&tx, ref)
		}
		shift.Transactions[idx] = tx
		return nil
	})
}

func (s *Service) DeleteTransaction(ctx context.Context, txID string) (domain.Shift, error) {
	var removed domain.Transaction
	shift, err := s.mutateOwnShift(ctx, "Delete transaction", func(shift *domain.Shift, _ cache.ReferenceData) error {
		idx := slices.IndexFunc(shift.Transactions, func(tx domain.Transaction) bool { return tx.ID == txID })
		if idx < 0 {
			return fmt.Errorf("transaction %s: %w", txID, store.ErrNotFound)
		}
		removed = shift.Transactions[idx]
		shift.Transactions = slices.Delete(shift.Transactions, idx, idx+1)
		return nil
	})
	if err != nil {
		return domain.Shift{}, err
	}

	s.restoreSaleStock(ctx, shift.Lokasi, removed)
	return shift, nil
}

// restoreSaleStock puts one unit back when a stocked sale is deleted.
// Failures are logged only; the shift edit already succeeded.
func (s *Service) restoreSaleStock(ctx context.Context, lokasi string, tx domain.Transaction) {
	if !domain.IsCatalogSale(tx.ID) {
		return
	}
	ref, err := s.referenceData(ctx)
	if err != nil {
		log.Printf("[service] WARN: cannot restore stock for %s: %v", tx.ID, err)
		return
	}
	item, ok := domain.SoldItem(tx.ID, ref.Catalog.All())
	if !ok || !item.Kind.Stocked() {
		return
	}
	if _, err := s.repo.AdjustStock(ctx, item.ID, lokasi, 1); err != nil {
		log.Printf("[service] WARN: restore stock item=%s lokasi=%s: %v", item.ID, lokasi, err)
		return
	}
	s.logStock(ctx, item, lokasi, 1, "sale deleted: "+tx.ID)
	s.publisher.Publish(realtime.TableStock, lokasi, map[string]any{"item_id": item.ID, "delta": 1})
}

// SellItem records qty one-unit sales of a catalog item. Stocked items are
// decremented first; if the shift write then fails the stock is put back.
func (s *Service) SellItem(ctx context.Context, req domain.SaleRequest) (domain.Shift, error) {
	const title = "Sell item"

	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	qty := req.Qty
	if qty == 0 {
		qty = 1
	}
	if qty < 1 || qty > maxSaleQty {
		return domain.Shift{}, s.fail(title, validationf("qty must be between 1 and %d", maxSaleQty))
	}
	shift, err := s.loadOpenShift(ctx, actor.Username)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	item, err := s.repo.GetCatalogItem(ctx, req.ItemID)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	if req.Kind != "" && req.Kind != item.Kind {
		return domain.Shift{}, s.fail(title, validationf("item %s is a %s, not a %s", item.ID, item.Kind, req.Kind))
	}

	if item.Kind.Stocked() {
		if _, err := s.repo.AdjustStock(ctx, item.ID, shift.Lokasi, -qty); err != nil {
			return domain.Shift{}, s.fail(title, err)
		}
	}

	description := "Penjualan " + item.Name
	if strings.TrimSpace(item.Keyword) != "" {
		description = "Penjualan " + item.Keyword
	}
	now := s.now()
	saved, err := s.applyMutation(ctx, title, shift, func(shift *domain.Shift, ref cache.ReferenceData) error {
		for range qty {
			tx := domain.Transaction{
				ID:              domain.SaleID(item.Kind, item.ID, xid.Suffix()),
				Timestamp:       now,
				Type:            domain.CashIn,
				Amount:          item.SellPrice,
				Description:     description,
				ProductAdminFee: item.Margin(),
			}
			cost := item.CostPrice
			tx.ProductCostPrice = &cost
			if item.RelatedAppKey != "" {
				key := item.RelatedAppKey
				tx.RelatedAppKey = &key
			}
			shift.Transactions = append(shift.Transactions, tx)
		}
		return nil
	})
	if err != nil {
		if item.Kind.Stocked() {
			if _, restoreErr := s.repo.AdjustStock(ctx, item.ID, shift.Lokasi, qty); restoreErr != nil {
				log.Printf("[service] ERROR: sale of %s failed and stock was not restored: %v", item.ID, restoreErr)
			}
		}
		return domain.Shift{}, err
	}

	if item.Kind.Stocked() {
		s.logStock(ctx, *item, saved.Lokasi, -qty, "sale")
		s.publisher.Publish(realtime.TableStock, saved.Lokasi, map[string]any{"item_id": item.ID, "delta": -qty})
	}
	metrics.TransactionsRecorded.WithLabelValues(string(domain.CashIn)).Add(float64(qty))
	return saved, nil
}

func (s *Service) AdjustWalletBalance(ctx context.Context, req domain.WalletAdjustRequest) (domain.Shift, error) {
	const title = "Adjust wallet balance"

	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	entry, err := s.balanceLogEntry(req, actor.Username)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	shift, err := s.loadOpenShift(ctx, actor.Username)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	return s.adjustWallet(ctx, title, shift, entry)
}

// AdjustShiftWallet lets an admin correct a wallet on someone else's open
// shift.
func (s *Service) AdjustShiftWallet(ctx context.Context, shiftID string, req domain.WalletAdjustRequest) (domain.Shift, error) {
	const title = "Correct wallet balance"

	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	entry, err := s.balanceLogEntry(req, actor.Username)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	shift, err := s.repo.GetOpenShiftByID(ctx, shiftID)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	return s.adjustWallet(ctx, title, shift, entry)
}

func (s *Service) balanceLogEntry(req domain.WalletAdjustRequest, actor string) (domain.BalanceLog, error) {
	key := strings.ToUpper(strings.TrimSpace(req.WalletKey))
	note := strings.TrimSpace(req.Note)
	switch {
	case !domain.IsWalletKey(key):
		return domain.BalanceLog{}, validationf("unknown wallet %q", req.WalletKey)
	case req.Delta == 0:
		return domain.BalanceLog{}, validationf("delta must not be zero")
	case note == "":
		return domain.BalanceLog{}, validationf("note is required")
	}
	return domain.BalanceLog{
		ID:        xid.New("ballog"),
		WalletKey: key,
		Delta:     req.Delta,
		Note:      note,
		Actor:     actor,
		CreatedAt: s.now(),
	}, nil
}

// adjustWallet saves the shift with entry already folded in and only then
// appends entry. If the append fails the shift is refolded from the stored
// logs and saved again, so a failed attempt leaves nothing behind.
func (s *Service) adjustWallet(ctx context.Context, title string, shift *domain.Shift, entry domain.BalanceLog) (domain.Shift, error) {
	entry.ShiftID = shift.ID

	ref, err := s.referenceData(ctx)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	if err := s.recompute(ctx, shift, ref, entry); err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	saved, err := s.repo.SaveOpenShift(ctx, *shift)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}

	if err := s.repo.AppendBalanceLog(ctx, entry); err != nil {
		restoreErr := s.recompute(ctx, saved, ref)
		if restoreErr == nil {
			_, restoreErr = s.repo.SaveOpenShift(ctx, *saved)
		}
		if restoreErr != nil {
			log.Printf("[service] ERROR: shift %s keeps unlogged %s %+d: %v", saved.ID, entry.WalletKey, entry.Delta, restoreErr)
		}
		return domain.Shift{}, s.fail(title, fmt.Errorf("append balance log: %w", err))
	}

	s.publisher.Publish(realtime.TableShifts, saved.Lokasi, saved)
	s.succeed(title, "%s %+d on %s", domain.WalletDisplayName(entry.WalletKey), entry.Delta, saved.Username)
	return *saved, nil
}

// ListBalanceLogs returns the adjustments of shiftID, or of the caller's open
// shift when shiftID is empty. Workers only see their own shift.
func (s *Service) ListBalanceLogs(ctx context.Context, shiftID string) ([]domain.BalanceLog, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if shiftID == "" || actor.Role != domain.RoleAdmin {
		shift, err := s.loadOpenShift(ctx, actor.Username)
		if err != nil {
			return nil, err
		}
		if shiftID != "" && shiftID != shift.ID {
			return nil, fmt.Errorf("%w: not your shift", ErrForbidden)
		}
		shiftID = shift.ID
	}
	return s.repo.ListBalanceLogs(ctx, shiftID)
}

// CloseShift reconciles the caller's open shift against the counted cash,
// archives it, then removes the open record. The two writes are separate; if
// the second fails the archive stays and ErrCloseIncomplete is returned.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftCloseResponse, error) {
	const title = "Close shift"

	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}
	if err := validateClose(req); err != nil {
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}
	shift, err := s.loadOpenShift(ctx, actor.Username)
	if err != nil {
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}
	ref, err := s.referenceData(ctx)
	if err != nil {
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}
	finalStock, err := s.repo.GetStockMap(ctx, domain.KindVoucher, shift.Lokasi)
	if err != nil {
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}
	logs, err := s.repo.ListBalanceLogs(ctx, shift.ID)
	if err != nil {
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}

	names := make(map[string]string, len(ref.Catalog.Vouchers))
	for _, voucher := range ref.Catalog.Vouchers {
		names[voucher.ID] = voucher.Name
	}

	closedAt := s.now()
	result := ledger.Reconcile(ledger.CloseInput{
		KasAwal:             shift.KasAwal,
		Transactions:        shift.Transactions,
		PhysicalCash:        req.PhysicalCash,
		UangMakan:           req.UangMakan,
		InitialVoucherStock: shift.InitialVoucherStock,
		FinalVoucherStock:   finalStock,
		VoucherNames:        names,
		ClosedAt:            closedAt,
	})

	archive := domain.ArchivedShift{
		Shift:                *shift,
		EndTime:              closedAt,
		KasAkhir:             result.KasAkhir,
		PhysicalCashDetails:  req.PhysicalCash,
		ExpectedBalance:      result.ExpectedBalance,
		Selisih:              result.Selisih,
		SelisihStatus:        result.SelisihStatus,
		UangMakan:            req.UangMakan,
		FinalAdminFee:        result.FinalAdminFee,
		FinalVoucherStock:    finalStock,
		VoucherDiscrepancies: result.Discrepancies,
		Notes:                strings.TrimSpace(req.Notes),
	}
	archive.Transactions = result.Transactions
	archive.TotalIn = result.Totals.TotalIn
	archive.TotalOut = result.Totals.TotalOut
	archive.UangTransaksi = result.Totals.UangTransaksi
	archive.TotalAdminFee = result.Totals.TotalAdminFee
	archive.InitialAppBalances = shift.InitialAppBalances.Normalize()
	archive.AppBalances = ledger.ProjectBalances(ledger.ProjectionBase(archive.InitialAppBalances, logs), result.Transactions, ref.Catalog.All())
	archive.UpdatedAt = closedAt

	saved, err := s.repo.ArchiveShift(ctx, archive)
	if err != nil {
		metrics.ShiftCloseFailures.Inc()
		return domain.ShiftCloseResponse{}, s.fail(title, err)
	}
	if err := s.repo.DeleteOpenShift(ctx, shift.ID); err != nil {
		metrics.ShiftCloseFailures.Inc()
		log.Printf("[service] ERROR: shift %s archived but open record not removed: %v", shift.ID, err)
		s.notifier.Notify(notify.Error, title, "The shift was archived but is still listed as open. Ask an admin to clear it.")
		return domain.ShiftCloseResponse{Archive: *saved}, fmt.Errorf("%w: %w", ErrCloseIncomplete, err)
	}

	warnings := make([]string, 0, len(saved.VoucherDiscrepancies))
	for _, d := range saved.VoucherDiscrepancies {
		warning := ledger.DiscrepancyWarning(d)
		warnings = append(warnings, warning)
		s.notifier.Notify(notify.Warning, "Voucher stock mismatch", warning)
	}

	metrics.ShiftsClosed.WithLabelValues(saved.Lokasi, string(saved.SelisihStatus)).Inc()
	s.publisher.Publish(realtime.TableShifts, saved.Lokasi, map[string]any{"id": saved.ID, "closed": true})
	s.publisher.Publish(realtime.TableArchives, saved.Lokasi, saved)
	s.succeed(title, "Selisih %d (%s)", saved.Selisih, saved.SelisihStatus)

	return domain.ShiftCloseResponse{Archive: *saved, Warnings: warnings}, nil
}

// StaleOpenShifts lists open shifts started more than olderThan ago.
func (s *Service) StaleOpenShifts(ctx context.Context, olderThan time.Duration) ([]domain.Shift, error) {
	shifts, err := s.repo.ListOpenShifts(ctx, "")
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-olderThan)
	stale := make([]domain.Shift, 0)
	for _, shift := range shifts {
		if shift.StartTime.Before(cutoff) {
			stale = append(stale, shift)
		}
	}
	return stale, nil
}

func validateTransaction(tx domain.Transaction, rawMasuk *int64, rawKeluar *int64) error {
	if tx.Type != domain.CashIn && tx.Type != domain.CashOut {
		return validationf("type must be CASH_IN or CASH_OUT")
	}
	if tx.Amount < 0 {
		return validationf("amount must not be negative")
	}
	if tx.Description == "" {
		return validationf("description is required")
	}
	if (rawMasuk != nil && *rawMasuk < 0) || (rawKeluar != nil && *rawKeluar < 0) {
		return validationf("wallet amounts must not be negative")
	}
	if tx.SaldoMasukAplikasi != nil && tx.SaldoKeluarAplikasi != nil {
		return validationf("set either saldoMasukAplikasi or saldoKeluarAplikasi, not both")
	}
	if tx.SaldoMasukAplikasi != nil && tx.Type != domain.CashOut {
		return validationf("saldoMasukAplikasi only applies to CASH_OUT")
	}
	if tx.SaldoKeluarAplikasi != nil && tx.Type != domain.CashIn {
		return validationf("saldoKeluarAplikasi only applies to CASH_IN")
	}
	return nil
}

func validateClose(req domain.ShiftCloseRequest) error {
	cash := req.PhysicalCash
	if cash.LargeBills < 0 || cash.MidBills < 0 || cash.SmallBills < 0 || cash.Coins < 0 {
		return validationf("cash counts must not be negative")
	}
	if req.UangMakan < 0 {
		return validationf("uang_makan must not be negative")
	}
	return nil
}

func positiveOrNil(v *int64) *int64 {
	if v == nil || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}
