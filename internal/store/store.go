package store

import (
	"context"
	"errors"

	"saldokonter/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

type Repository interface {
	ShiftStore
	CatalogStore
	StockStore
	FeeRuleStore
	BalanceLogStore
	StockRequestStore
	UserStore
}

// ShiftStore keeps open shifts keyed by owner and the archive of closed ones.
// At most one open shift exists per username.
type ShiftStore interface {
	GetOpenShift(ctx context.Context, username string) (*domain.Shift, error)
	GetOpenShiftByID(ctx context.Context, id string) (*domain.Shift, error)
	ListOpenShifts(ctx context.Context, lokasi string) ([]domain.Shift, error)
	CreateOpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	SaveOpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	DeleteOpenShift(ctx context.Context, id string) error
	ArchiveShift(ctx context.Context, archive domain.ArchivedShift) (*domain.ArchivedShift, error)
	GetArchivedShift(ctx context.Context, id string) (*domain.ArchivedShift, error)
	UpdateArchivedDeposit(ctx context.Context, archive domain.ArchivedShift) (*domain.ArchivedShift, error)
	ListArchivedShifts(ctx context.Context, filter domain.ArchiveFilter) ([]domain.ArchivedShift, error)
}

type CatalogStore interface {
	ListCatalog(ctx context.Context) (domain.Catalog, error)
	GetCatalogItem(ctx context.Context, id string) (*domain.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	DeleteCatalogItem(ctx context.Context, id string) error
}

type StockStore interface {
	// GetStockMap returns item id to quantity for every stocked item of kind
	// at lokasi, zero when never stocked there.
	GetStockMap(ctx context.Context, kind domain.CatalogKind, lokasi string) (map[string]int, error)
	AdjustStock(ctx context.Context, itemID string, lokasi string, delta int) (int, error)
	TransferStock(ctx context.Context, itemID string, from string, to string, qty int) error
	AppendStockLog(ctx context.Context, entry domain.StockLog) error
	ListStockLogs(ctx context.Context, lokasi string, limit int) ([]domain.StockLog, error)
}

type FeeRuleStore interface {
	// ListFeeRules returns rules ordered by min_amount ascending.
	ListFeeRules(ctx context.Context) ([]domain.FeeRule, error)
	CreateFeeRule(ctx context.Context, rule domain.FeeRule) (*domain.FeeRule, error)
	UpdateFeeRule(ctx context.Context, rule domain.FeeRule) (*domain.FeeRule, error)
	DeleteFeeRule(ctx context.Context, id string) error
}

type BalanceLogStore interface {
	AppendBalanceLog(ctx context.Context, entry domain.BalanceLog) error
	ListBalanceLogs(ctx context.Context, shiftID string) ([]domain.BalanceLog, error)
}

type StockRequestStore interface {
	CreateStockRequest(ctx context.Context, request domain.StockRequest) (*domain.StockRequest, error)
	GetStockRequest(ctx context.Context, id string) (*domain.StockRequest, error)
	ListStockRequests(ctx context.Context, lokasi string, status domain.StockRequestStatus) ([]domain.StockRequest, error)
	UpdateStockRequestStatus(ctx context.Context, request domain.StockRequest) (*domain.StockRequest, error)
	// ReopenStockRequest puts an APPROVED request back to PENDING. It undoes a
	// claim whose stock movement failed.
	ReopenStockRequest(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUser(ctx context.Context, user domain.UserAccount) error
}
