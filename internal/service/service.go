package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"saldokonter/backend/internal/cache"
	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/ledger"
	"saldokonter/backend/internal/notify"
	"saldokonter/backend/internal/store"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrNoOpenShift      = errors.New("no open shift")
	ErrShiftAlreadyOpen = errors.New("shift already open")
	// ErrCloseIncomplete means the archive was written but the open record
	// could not be removed. The two writes are not atomic.
	ErrCloseIncomplete = errors.New("shift archived but still open")
)

const retryHint = "Changes were not saved. Check the connection and try again."

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Cache     cache.CatalogCache
	CacheTTL  time.Duration
	Notifier  notify.Notifier
	Publisher notify.Publisher
	Clock     func() time.Time
}

type Service struct {
	repo      store.Repository
	cache     cache.CatalogCache
	cacheTTL  time.Duration
	notifier  notify.Notifier
	publisher notify.Publisher
	now       func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	s := &Service{
		repo:      repo,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		now:       opts.Clock,
	}
	if s.cache == nil {
		s.cache = cache.NoopCatalogCache{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, any) {}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, fmt.Errorf("%w: login required", ErrForbidden)
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return actor, nil
}

// fail notifies the outcome of a failed operation and hands err back. Errors
// the operator can act on carry their own message; anything else is a
// collaborator failure and gets the generic retry hint.
func (s *Service) fail(title string, err error) error {
	if isUserFacing(err) {
		s.notifier.Notify(notify.Error, title, err.Error())
		return err
	}
	log.Printf("[service] ERROR: %s: %v", title, err)
	s.notifier.Notify(notify.Error, title, retryHint)
	return err
}

func isUserFacing(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrForbidden,
		ErrNoOpenShift,
		ErrShiftAlreadyOpen,
		store.ErrNotFound,
		store.ErrConflict,
		store.ErrInsufficientStock,
		store.ErrInvalidTransaction,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) succeed(title string, format string, args ...any) {
	s.notifier.Notify(notify.Success, title, fmt.Sprintf(format, args...))
}

// referenceData returns catalog and fee rules, from cache when warm. Cache
// errors degrade to a repository read.
func (s *Service) referenceData(ctx context.Context) (cache.ReferenceData, error) {
	cached, ok, err := s.cache.Get(ctx)
	if err != nil {
		log.Printf("[service] WARN: reference data cache read failed: %v", err)
	} else if ok && cached != nil {
		return *cached, nil
	}

	catalog, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return cache.ReferenceData{}, fmt.Errorf("load catalog: %w", err)
	}
	rules, err := s.repo.ListFeeRules(ctx)
	if err != nil {
		return cache.ReferenceData{}, fmt.Errorf("load fee rules: %w", err)
	}

	data := cache.ReferenceData{Catalog: catalog, FeeRules: rules}
	if err := s.cache.Set(ctx, &data, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: reference data cache write failed: %v", err)
	}
	return data, nil
}

// InvalidateReferenceData drops the cached catalog and fee rules. It is wired
// to catalog and fee-rule change events.
func (s *Service) InvalidateReferenceData(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: reference data cache invalidate failed: %v", err)
	}
}

func (s *Service) ListCatalog(ctx context.Context, lokasi string) (domain.CatalogView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CatalogView{}, err
	}
	if actor.Role != domain.RoleAdmin || lokasi == "" {
		lokasi = actor.Lokasi
	}
	lokasi = domain.NormalizeLokasi(lokasi)

	ref, err := s.referenceData(ctx)
	if err != nil {
		return domain.CatalogView{}, err
	}
	view := domain.CatalogView{Catalog: ref.Catalog, Lokasi: lokasi, Stock: map[string]int{}}
	if lokasi == "" {
		return view, nil
	}
	for _, kind := range []domain.CatalogKind{domain.KindVoucher, domain.KindAccessory} {
		stock, err := s.repo.GetStockMap(ctx, kind, lokasi)
		if err != nil {
			return domain.CatalogView{}, err
		}
		for id, qty := range stock {
			view.Stock[id] = qty
		}
	}
	return view, nil
}

func (s *Service) QuoteFee(ctx context.Context, req domain.FeeQuoteRequest) (domain.FeeQuoteResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.FeeQuoteResponse{}, err
	}
	if req.Type != domain.CashIn && req.Type != domain.CashOut {
		return domain.FeeQuoteResponse{}, validationf("type must be CASH_IN or CASH_OUT")
	}
	if req.Amount < 0 {
		return domain.FeeQuoteResponse{}, validationf("amount must not be negative")
	}

	ref, err := s.referenceData(ctx)
	if err != nil {
		return domain.FeeQuoteResponse{}, err
	}
	tx := domain.Transaction{
		Type:               req.Type,
		Amount:             req.Amount,
		Description:        req.Description,
		SaldoMasukAplikasi: req.SaldoMasukAplikasi,
	}
	annotate(&tx, ref)

	resp := domain.FeeQuoteResponse{AdminFee: tx.AdminFee, ProductAdminFee: tx.ProductAdminFee}
	if tx.RelatedAppKey != nil {
		resp.RelatedAppKey = *tx.RelatedAppKey
	}
	if match := ledger.ResolveProduct(tx.Description, ref.Catalog.All()); match.Matched {
		resp.ProductName = match.ProductName
	}
	return resp, nil
}
