package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/store"
	"saldokonter/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded migrations that have not run yet. It borrows
// one pooled connection and gives it back when done.
func (s *Store) Migrate(ctx context.Context) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migration connection: %w", err)
	}
	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Open shifts and archives are stored as whole JSON documents next to the
// columns used for lookups.

func (s *Store) GetOpenShift(ctx context.Context, username string) (*domain.Shift, error) {
	return s.scanOpenShift(s.db.QueryRowContext(ctx, `SELECT payload FROM open_shifts WHERE username = $1`, username))
}

func (s *Store) GetOpenShiftByID(ctx context.Context, id string) (*domain.Shift, error) {
	return s.scanOpenShift(s.db.QueryRowContext(ctx, `SELECT payload FROM open_shifts WHERE id = $1`, id))
}

func (s *Store) scanOpenShift(row *sql.Row) (*domain.Shift, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var shift domain.Shift
	if err := json.Unmarshal(raw, &shift); err != nil {
		return nil, fmt.Errorf("decode open shift: %w", err)
	}
	return &shift, nil
}

func (s *Store) ListOpenShifts(ctx context.Context, lokasi string) ([]domain.Shift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM open_shifts
		WHERE ($1 = '' OR lokasi = $1)
		ORDER BY start_time ASC
	`, lokasi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.Shift, 0, 8)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var shift domain.Shift
		if err := json.Unmarshal(raw, &shift); err != nil {
			return nil, fmt.Errorf("decode open shift: %w", err)
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *Store) CreateOpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.Username) == "" || strings.TrimSpace(shift.Lokasi) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	shift.UpdatedAt = shift.StartTime

	payload, err := json.Marshal(shift)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO open_shifts (id, username, lokasi, start_time, payload, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, shift.ID, shift.Username, shift.Lokasi, shift.StartTime, payload, shift.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := shift
	return &saved, nil
}

// SaveOpenShift replaces the whole document. Last write wins.
func (s *Store) SaveOpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	shift.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(shift)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE open_shifts
		SET payload = $2, lokasi = $3, updated_at = $4
		WHERE id = $1
	`, shift.ID, payload, shift.Lokasi, shift.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	saved := shift
	return &saved, nil
}

func (s *Store) DeleteOpenShift(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM open_shifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) ArchiveShift(ctx context.Context, archive domain.ArchivedShift) (*domain.ArchivedShift, error) {
	if archive.ID == "" {
		return nil, store.ErrInvalidTransaction
	}
	payload, err := json.Marshal(archive)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shift_archives (id, username, lokasi, end_time, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, archive.ID, archive.Username, archive.Lokasi, archive.EndTime, payload)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := archive
	return &saved, nil
}

func (s *Store) GetArchivedShift(ctx context.Context, id string) (*domain.ArchivedShift, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM shift_archives WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return decodeArchive(raw)
}

// UpdateArchivedDeposit rewrites only the deposit fields of the stored
// document.
func (s *Store) UpdateArchivedDeposit(ctx context.Context, archive domain.ArchivedShift) (*domain.ArchivedShift, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT payload FROM shift_archives WHERE id = $1 FOR UPDATE
	`, archive.ID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	current, err := decodeArchive(raw)
	if err != nil {
		return nil, err
	}
	current.Deposit = archive.Deposit
	current.DepositNote = archive.DepositNote
	current.DepositedAt = archive.DepositedAt

	payload, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE shift_archives SET payload = $2 WHERE id = $1`, archive.ID, payload); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Store) ListArchivedShifts(ctx context.Context, filter domain.ArchiveFilter) ([]domain.ArchivedShift, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM shift_archives
		WHERE ($1 = '' OR lokasi = $1)
		  AND ($2 = '' OR username = $2)
		  AND ($3::timestamptz IS NULL OR end_time >= $3)
		  AND ($4::timestamptz IS NULL OR end_time < $4)
		ORDER BY end_time DESC
		LIMIT $5
	`, filter.Lokasi, filter.Username, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	archives := make([]domain.ArchivedShift, 0, 32)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		archive, err := decodeArchive(raw)
		if err != nil {
			return nil, err
		}
		archives = append(archives, *archive)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return archives, nil
}

func decodeArchive(raw []byte) (*domain.ArchivedShift, error) {
	var archive domain.ArchivedShift
	if err := json.Unmarshal(raw, &archive); err != nil {
		return nil, fmt.Errorf("decode archived shift: %w", err)
	}
	return &archive, nil
}

const catalogColumns = `id, kind, name, keyword, cost_price, sell_price, related_app_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(&item.ID, &item.Kind, &item.Name, &item.Keyword, &item.CostPrice, &item.SellPrice, &item.RelatedAppKey, &item.CreatedAt)
	item.CreatedAt = item.CreatedAt.UTC()
	return item, err
}

func (s *Store) ListCatalog(ctx context.Context) (domain.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+catalogColumns+` FROM catalog_items ORDER BY position ASC`)
	if err != nil {
		return domain.Catalog{}, err
	}
	defer rows.Close()

	catalog := domain.Catalog{
		Products:    []domain.CatalogItem{},
		Vouchers:    []domain.CatalogItem{},
		Accessories: []domain.CatalogItem{},
	}
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return domain.Catalog{}, err
		}
		switch item.Kind {
		case domain.KindProduct:
			catalog.Products = append(catalog.Products, item)
		case domain.KindVoucher:
			catalog.Vouchers = append(catalog.Vouchers, item)
		case domain.KindAccessory:
			catalog.Accessories = append(catalog.Accessories, item)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, err
	}
	return catalog, nil
}

func (s *Store) GetCatalogItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	item, err := scanCatalogItem(s.db.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if !item.Kind.Valid() || strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New(string(item.Kind))
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, kind, name, keyword, cost_price, sell_price, related_app_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, item.ID, item.Kind, item.Name, item.Keyword, item.CostPrice, item.SellPrice, item.RelatedAppKey, item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := item
	return &saved, nil
}

// UpdateCatalogItem keeps kind and created_at; an item never changes kind.
func (s *Store) UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	updated, err := scanCatalogItem(s.db.QueryRowContext(ctx, `
		UPDATE catalog_items
		SET name = $2, keyword = $3, cost_price = $4, sell_price = $5, related_app_key = $6
		WHERE id = $1
		RETURNING `+catalogColumns,
		item.ID, item.Name, item.Keyword, item.CostPrice, item.SellPrice, item.RelatedAppKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteCatalogItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) GetStockMap(ctx context.Context, kind domain.CatalogKind, lokasi string) (map[string]int, error) {
	stockMap := map[string]int{}
	if !kind.Stocked() {
		return stockMap, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, COALESCE(sl.qty, 0)
		FROM catalog_items c
		LEFT JOIN stock_levels sl ON sl.item_id = c.id AND sl.lokasi = $2
		WHERE c.kind = $1
	`, kind, lokasi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		stockMap[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stockMap, nil
}

func (s *Store) AdjustStock(ctx context.Context, itemID string, lokasi string, delta int) (int, error) {
	if !domain.IsStockLocation(lokasi) {
		return 0, store.ErrInvalidTransaction
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	qty, err := lockStockLevel(ctx, tx, itemID, lokasi)
	if err != nil {
		return 0, err
	}
	next := qty + delta
	if next < 0 {
		return qty, store.ErrInsufficientStock
	}
	if err := setStockLevel(ctx, tx, itemID, lokasi, next); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) TransferStock(ctx context.Context, itemID string, from string, to string, qty int) error {
	if qty < 1 || from == to || !domain.IsStockLocation(from) || !domain.IsStockLocation(to) {
		return store.ErrInvalidTransaction
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// lock in name order so two opposite transfers cannot deadlock
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	levels := map[string]int{}
	for _, lokasi := range []string{first, second} {
		level, err := lockStockLevel(ctx, tx, itemID, lokasi)
		if err != nil {
			return err
		}
		levels[lokasi] = level
	}
	if levels[from] < qty {
		return store.ErrInsufficientStock
	}
	if err := setStockLevel(ctx, tx, itemID, from, levels[from]-qty); err != nil {
		return err
	}
	if err := setStockLevel(ctx, tx, itemID, to, levels[to]+qty); err != nil {
		return err
	}
	return tx.Commit()
}

// lockStockLevel makes sure the row exists and returns its quantity under a
// row lock. Only stocked catalog items have levels.
func lockStockLevel(ctx context.Context, tx *sql.Tx, itemID string, lokasi string) (int, error) {
	var kind domain.CatalogKind
	if err := tx.QueryRowContext(ctx, `SELECT kind FROM catalog_items WHERE id = $1`, itemID).Scan(&kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	if !kind.Stocked() {
		return 0, store.ErrInvalidTransaction
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_levels (item_id, lokasi, qty, updated_at)
		VALUES ($1,$2,0,now())
		ON CONFLICT (item_id, lokasi) DO NOTHING
	`, itemID, lokasi); err != nil {
		return 0, err
	}
	var qty int
	err := tx.QueryRowContext(ctx, `
		SELECT qty FROM stock_levels WHERE item_id = $1 AND lokasi = $2 FOR UPDATE
	`, itemID, lokasi).Scan(&qty)
	return qty, err
}

func setStockLevel(ctx context.Context, tx *sql.Tx, itemID string, lokasi string, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE stock_levels SET qty = $3, updated_at = now()
		WHERE item_id = $1 AND lokasi = $2
	`, itemID, lokasi, qty)
	return err
}

func (s *Store) AppendStockLog(ctx context.Context, entry domain.StockLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("stocklog")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_logs (id, kind, item_id, lokasi, delta, reason, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Kind, entry.ItemID, entry.Lokasi, entry.Delta, entry.Reason, entry.Actor, entry.CreatedAt)
	return err
}

func (s *Store) ListStockLogs(ctx context.Context, lokasi string, limit int) ([]domain.StockLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, item_id, lokasi, delta, reason, actor, created_at
		FROM stock_logs
		WHERE ($1 = '' OR lokasi = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, lokasi, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.StockLog, 0, limit)
	for rows.Next() {
		var entry domain.StockLog
		if err := rows.Scan(&entry.ID, &entry.Kind, &entry.ItemID, &entry.Lokasi, &entry.Delta, &entry.Reason, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) ListFeeRules(ctx context.Context) ([]domain.FeeRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, min_amount, max_amount, fee, created_at
		FROM fee_rules
		ORDER BY min_amount ASC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.FeeRule, 0, 8)
	for rows.Next() {
		var rule domain.FeeRule
		if err := rows.Scan(&rule.ID, &rule.MinAmount, &rule.MaxAmount, &rule.Fee, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rule.CreatedAt = rule.CreatedAt.UTC()
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) CreateFeeRule(ctx context.Context, rule domain.FeeRule) (*domain.FeeRule, error) {
	if rule.MinAmount < 0 || rule.MaxAmount <= rule.MinAmount || rule.Fee < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if rule.ID == "" {
		rule.ID = xid.New("fee")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fee_rules (id, min_amount, max_amount, fee, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, rule.ID, rule.MinAmount, rule.MaxAmount, rule.Fee, rule.CreatedAt)
	if err != nil {
		return nil, err
	}
	saved := rule
	return &saved, nil
}

func (s *Store) UpdateFeeRule(ctx context.Context, rule domain.FeeRule) (*domain.FeeRule, error) {
	if rule.MinAmount < 0 || rule.MaxAmount <= rule.MinAmount || rule.Fee < 0 {
		return nil, store.ErrInvalidTransaction
	}
	var updated domain.FeeRule
	err := s.db.QueryRowContext(ctx, `
		UPDATE fee_rules SET min_amount = $2, max_amount = $3, fee = $4
		WHERE id = $1
		RETURNING id, min_amount, max_amount, fee, created_at
	`, rule.ID, rule.MinAmount, rule.MaxAmount, rule.Fee).Scan(&updated.ID, &updated.MinAmount, &updated.MaxAmount, &updated.Fee, &updated.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	updated.CreatedAt = updated.CreatedAt.UTC()
	return &updated, nil
}

func (s *Store) DeleteFeeRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fee_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) AppendBalanceLog(ctx context.Context, entry domain.BalanceLog) error {
	if entry.ShiftID == "" || entry.WalletKey == "" {
		return store.ErrInvalidTransaction
	}
	if entry.ID == "" {
		entry.ID = xid.New("ballog")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_logs (id, shift_id, wallet_key, delta, note, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.ShiftID, entry.WalletKey, entry.Delta, entry.Note, entry.Actor, entry.CreatedAt)
	return err
}

func (s *Store) ListBalanceLogs(ctx context.Context, shiftID string) ([]domain.BalanceLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_id, wallet_key, delta, note, actor, created_at
		FROM balance_logs
		WHERE shift_id = $1
		ORDER BY created_at ASC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.BalanceLog, 0, 8)
	for rows.Next() {
		var entry domain.BalanceLog
		if err := rows.Scan(&entry.ID, &entry.ShiftID, &entry.WalletKey, &entry.Delta, &entry.Note, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

const stockRequestColumns = `id, type, accessory_id, lokasi, qty, note, status, requested_by, decided_by, created_at, decided_at`

func scanStockRequest(row rowScanner) (domain.StockRequest, error) {
	var request domain.StockRequest
	var decidedBy sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(&request.ID, &request.Type, &request.AccessoryID, &request.Lokasi, &request.Qty, &request.Note,
		&request.Status, &request.RequestedBy, &decidedBy, &request.CreatedAt, &decidedAt)
	if err != nil {
		return domain.StockRequest{}, err
	}
	request.CreatedAt = request.CreatedAt.UTC()
	if decidedBy.Valid {
		request.DecidedBy = decidedBy.String
	}
	if decidedAt.Valid {
		at := decidedAt.Time.UTC()
		request.DecidedAt = &at
	}
	return request, nil
}

func (s *Store) CreateStockRequest(ctx context.Context, request domain.StockRequest) (*domain.StockRequest, error) {
	if request.AccessoryID == "" || request.Qty < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if request.ID == "" {
		request.ID = xid.New("streq")
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.Status = domain.StockRequestPending
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_requests (id, type, accessory_id, lokasi, qty, note, status, requested_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, request.ID, request.Type, request.AccessoryID, request.Lokasi, request.Qty, request.Note, request.Status, request.RequestedBy, request.CreatedAt)
	if err != nil {
		return nil, err
	}
	saved := request
	return &saved, nil
}

func (s *Store) GetStockRequest(ctx context.Context, id string) (*domain.StockRequest, error) {
	request, err := scanStockRequest(s.db.QueryRowContext(ctx, `SELECT `+stockRequestColumns+` FROM stock_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

func (s *Store) ListStockRequests(ctx context.Context, lokasi string, status domain.StockRequestStatus) ([]domain.StockRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stockRequestColumns+`
		FROM stock_requests
		WHERE ($1 = '' OR lokasi = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT 500
	`, lokasi, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.StockRequest, 0, 16)
	for rows.Next() {
		request, err := scanStockRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateStockRequestStatus only moves a request out of PENDING once.
func (s *Store) UpdateStockRequestStatus(ctx context.Context, request domain.StockRequest) (*domain.StockRequest, error) {
	updated, err := scanStockRequest(s.db.QueryRowContext(ctx, `
		UPDATE stock_requests
		SET status = $2, decided_by = $3, decided_at = $4
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+stockRequestColumns,
		request.ID, request.Status, nullIfEmpty(request.DecidedBy), nullTime(derefTime(request.DecidedAt))))
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, getErr := s.GetStockRequest(ctx, request.ID); getErr != nil {
		return nil, getErr
	}
	return nil, store.ErrConflict
}

func (s *Store) ReopenStockRequest(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stock_requests
		SET status = 'PENDING', decided_by = NULL, decided_at = NULL
		WHERE id = $1 AND status = 'APPROVED'`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetStockRequest(ctx, id); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleWorker
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, lokasi, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,true,$5,now())
	`, user.Username, user.Password, user.Role, user.Lokasi, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, lokasi, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Lokasi, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, lokasi, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Lokasi, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, lokasi = $3, active = $4, updated_at = now()
		WHERE username = $1
	`, username, user.Password, user.Lokasi, user.Active)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}

func derefTime(val *time.Time) time.Time {
	if val == nil {
		return time.Time{}
	}
	return *val
}
