package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"saldokonter/backend/internal/cache"
	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/realtime"
	"saldokonter/backend/internal/xid"
)

const defaultArchiveLimit = 200

func (s *Service) ListOpenShifts(ctx context.Context, lokasi string) ([]domain.Shift, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	lokasi = domain.NormalizeLokasi(lokasi)
	if lokasi != "" && !domain.IsLocation(lokasi) {
		return nil, validationf("unknown lokasi %q", lokasi)
	}
	return s.repo.ListOpenShifts(ctx, lokasi)
}

// UpdateOpeningCash corrects kasAwal on someone's open shift.
func (s *Service) UpdateOpeningCash(ctx context.Context, shiftID string, req domain.OpeningCashRequest) (domain.Shift, error) {
	const title = "Correct opening cash"

	if _, err := requireAdmin(ctx); err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	if req.KasAwal < 0 {
		return domain.Shift{}, s.fail(title, validationf("kasAwal must not be negative"))
	}
	shift, err := s.repo.GetOpenShiftByID(ctx, shiftID)
	if err != nil {
		return domain.Shift{}, s.fail(title, err)
	}
	saved, err := s.applyMutation(ctx, title, shift, func(shift *domain.Shift, _ cache.ReferenceData) error {
		shift.KasAwal = req.KasAwal
		return nil
	})
	if err != nil {
		return domain.Shift{}, err
	}
	s.succeed(title, "kasAwal of %s set to %d", saved.Username, saved.KasAwal)
	return saved, nil
}

func (s *Service) ListArchivedShifts(ctx context.Context, filter domain.ArchiveFilter) ([]domain.ArchivedShift, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		filter.Username = actor.Username
	}
	filter.Lokasi = domain.NormalizeLokasi(filter.Lokasi)
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, validationf("to must not be before from")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultArchiveLimit
	}
	return s.repo.ListArchivedShifts(ctx, filter)
}

func (s *Service) GetArchivedShift(ctx context.Context, id string) (domain.ArchivedShift, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ArchivedShift{}, err
	}
	archive, err := s.repo.GetArchivedShift(ctx, id)
	if err != nil {
		return domain.ArchivedShift{}, err
	}
	if actor.Role != domain.RoleAdmin && archive.Username != actor.Username {
		return domain.ArchivedShift{}, fmt.Errorf("%w: not your shift", ErrForbidden)
	}
	return *archive, nil
}

// RecordDeposit stores the setoran handed over for a closed shift.
func (s *Service) RecordDeposit(ctx context.Context, archiveID string, req domain.DepositRequest) (domain.ArchivedShift, error) {
	const title = "Record deposit"

	if _, err := requireAdmin(ctx); err != nil {
		return domain.ArchivedShift{}, s.fail(title, err)
	}
	if req.Amount < 0 {
		return domain.ArchivedShift{}, s.fail(title, validationf("amount must not be negative"))
	}
	archive, err := s.repo.GetArchivedShift(ctx, archiveID)
	if err != nil {
		return domain.ArchivedShift{}, s.fail(title, err)
	}
	at := s.now()
	archive.Deposit = req.Amount
	archive.DepositNote = strings.TrimSpace(req.Note)
	archive.DepositedAt = &at

	saved, err := s.repo.UpdateArchivedDeposit(ctx, *archive)
	if err != nil {
		return domain.ArchivedShift{}, s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableArchives, saved.Lokasi, saved)
	s.succeed(title, "Deposit %d recorded for %s", saved.Deposit, saved.ID)
	return *saved, nil
}

func (s *Service) ListFeeRules(ctx context.Context) ([]domain.FeeRule, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListFeeRules(ctx)
}

func (s *Service) CreateFeeRule(ctx context.Context, req domain.FeeRuleRequest) (domain.FeeRule, error) {
	const title = "Create fee rule"

	if _, err := requireAdmin(ctx); err != nil {
		return domain.FeeRule{}, s.fail(title, err)
	}
	if err := validateFeeRule(req); err != nil {
		return domain.FeeRule{}, s.fail(title, err)
	}
	saved, err := s.repo.CreateFeeRule(ctx, domain.FeeRule{
		ID:        xid.New("fee"),
		MinAmount: req.MinAmount,
		MaxAmount: req.MaxAmount,
		Fee:       req.Fee,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.FeeRule{}, s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableFeeRules, "", saved)
	s.succeed(title, "%d-%d: %d", saved.MinAmount, saved.MaxAmount, saved.Fee)
	return *saved, nil
}

func (s *Service) UpdateFeeRule(ctx context.Context, id string, req domain.FeeRuleRequest) (domain.FeeRule, error) {
	const title = "Update fee rule"

	if _, err := requireAdmin(ctx); err != nil {
		return domain.FeeRule{}, s.fail(title, err)
	}
	if err := validateFeeRule(req); err != nil {
		return domain.FeeRule{}, s.fail(title, err)
	}
	saved, err := s.repo.UpdateFeeRule(ctx, domain.FeeRule{
		ID:        id,
		MinAmount: req.MinAmount,
		MaxAmount: req.MaxAmount,
		Fee:       req.Fee,
	})
	if err != nil {
		return domain.FeeRule{}, s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableFeeRules, "", saved)
	s.succeed(title, "%d-%d: %d", saved.MinAmount, saved.MaxAmount, saved.Fee)
	return *saved, nil
}

func (s *Service) DeleteFeeRule(ctx context.Context, id string) error {
	const title = "Delete fee rule"

	if _, err := requireAdmin(ctx); err != nil {
		return s.fail(title, err)
	}
	if err := s.repo.DeleteFeeRule(ctx, id); err != nil {
		return s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableFeeRules, "", map[string]any{"id": id, "deleted": true})
	s.succeed(title, "Rule %s removed", id)
	return nil
}

func validateFeeRule(req domain.FeeRuleRequest) error {
	if req.MinAmount < 0 {
		return validationf("min_amount must not be negative")
	}
	if req.MaxAmount <= req.MinAmount {
		return validationf("max_amount must be greater than min_amount")
	}
	if req.Fee < 0 {
		return validationf("fee must not be negative")
	}
	return nil
}

// CreateCatalogItem adds a product, voucher or accessory. Stocked kinds may
// carry an opening quantity per location.
func (s *Service) CreateCatalogItem(ctx context.Context, req domain.CatalogItemRequest) (domain.CatalogItem, error) {
	const title = "Create catalog item"

	if _, err := requireAdmin(ctx); err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}
	item := domain.CatalogItem{
		Kind:          req.Kind,
		Name:          strings.TrimSpace(req.Name),
		Keyword:       strings.TrimSpace(req.Keyword),
		CostPrice:     req.CostPrice,
		SellPrice:     req.SellPrice,
		RelatedAppKey: strings.ToUpper(strings.TrimSpace(req.RelatedAppKey)),
		CreatedAt:     s.now(),
	}
	if err := validateCatalogItem(item); err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}
	opening := make(map[string]int, len(req.InitialStock))
	for lokasi, qty := range req.InitialStock {
		lokasi = domain.NormalizeLokasi(lokasi)
		if !item.Kind.Stocked() {
			return domain.CatalogItem{}, s.fail(title, validationf("%s items carry no stock", item.Kind))
		}
		if !domain.IsStockLocation(lokasi) {
			return domain.CatalogItem{}, s.fail(title, validationf("unknown stock location %q", lokasi))
		}
		if qty < 0 {
			return domain.CatalogItem{}, s.fail(title, validationf("initial stock must not be negative"))
		}
		opening[lokasi] = qty
	}
	item.ID = xid.New(string(item.Kind))

	saved, err := s.repo.CreateCatalogItem(ctx, item)
	if err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}
	for lokasi, qty := range opening {
		if qty == 0 {
			continue
		}
		if _, err := s.repo.AdjustStock(ctx, saved.ID, lokasi, qty); err != nil {
			return domain.CatalogItem{}, s.fail(title, fmt.Errorf("opening stock at %s: %w", lokasi, err))
		}
		s.logStock(ctx, *saved, lokasi, qty, "opening stock")
	}

	s.publisher.Publish(realtime.TableCatalog, "", saved)
	if len(opening) > 0 {
		s.publisher.Publish(realtime.TableStock, "", map[string]any{"item_id": saved.ID, "opening": opening})
	}
	s.succeed(title, "%s added", saved.Name)
	return *saved, nil
}

func (s *Service) UpdateCatalogItem(ctx context.Context, id string, req domain.CatalogItemUpdateRequest) (domain.CatalogItem, error) {
	const title = "Update catalog item"

	if _, err := requireAdmin(ctx); err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}
	current, err := s.repo.GetCatalogItem(ctx, id)
	if err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}
	item := *current
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Keyword != nil {
		item.Keyword = strings.TrimSpace(*req.Keyword)
	}
	if req.CostPrice != nil {
		item.CostPrice = *req.CostPrice
	}
	if req.SellPrice != nil {
		item.SellPrice = *req.SellPrice
	}
	if req.RelatedAppKey != nil {
		item.RelatedAppKey = strings.ToUpper(strings.TrimSpace(*req.RelatedAppKey))
	}
	if err := validateCatalogItem(item); err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}

	saved, err := s.repo.UpdateCatalogItem(ctx, item)
	if err != nil {
		return domain.CatalogItem{}, s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableCatalog, "", saved)
	s.succeed(title, "%s saved", saved.Name)
	return *saved, nil
}

func (s *Service) DeleteCatalogItem(ctx context.Context, id string) error {
	const title = "Delete catalog item"

	if _, err := requireAdmin(ctx); err != nil {
		return s.fail(title, err)
	}
	if err := s.repo.DeleteCatalogItem(ctx, id); err != nil {
		return s.fail(title, err)
	}
	s.publisher.Publish(realtime.TableCatalog, "", map[string]any{"id": id, "deleted": true})
	s.succeed(title, "Item %s removed", id)
	return nil
}

func validateCatalogItem(item domain.CatalogItem) error {
	if !item.Kind.Valid() {
		return validationf("kind must be product, voucher or accessory")
	}
	if item.Name == "" {
		return validationf("name is required")
	}
	if item.Kind == domain.KindProduct && item.Keyword == "" {
		return validationf("products need a keyword")
	}
	if item.CostPrice < 0 || item.SellPrice < 0 {
		return validationf("prices must not be negative")
	}
	if item.RelatedAppKey != "" && !domain.IsWalletKey(item.RelatedAppKey) {
		return validationf("unknown related_app_key %q", item.RelatedAppKey)
	}
	return nil
}

// ParseArchiveFilter reads the archive query parameters. Dates are
// YYYY-MM-DD in loc. The returned To is the exclusive start of the day
// after to, so the whole of that day is included.
func ParseArchiveFilter(lokasi, username, from, to string, limit int, loc *time.Location) (domain.ArchiveFilter, error) {
	if loc == nil {
		loc = time.UTC
	}
	filter := domain.ArchiveFilter{
		Lokasi:   domain.NormalizeLokasi(lokasi),
		Username: strings.TrimSpace(username),
		Limit:    limit,
	}
	if from != "" {
		day, err := time.ParseInLocation(time.DateOnly, from, loc)
		if err != nil {
			return domain.ArchiveFilter{}, validationf("from must be YYYY-MM-DD")
		}
		filter.From = day
	}
	if to != "" {
		day, err := time.ParseInLocation(time.DateOnly, to, loc)
		if err != nil {
			return domain.ArchiveFilter{}, validationf("to must be YYYY-MM-DD")
		}
		filter.To = day.AddDate(0, 0, 1)
	}
	return filter, nil
}
