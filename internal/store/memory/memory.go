package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/store"
	"saldokonter/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	openShifts      map[string]domain.Shift
	openByUsername  map[string]string
	archives        map[string]domain.ArchivedShift
	catalog         map[string]domain.CatalogItem
	catalogOrder    []string
	stock           map[string]map[string]int
	stockLogs       []domain.StockLog
	feeRules        map[string]domain.FeeRule
	balanceLogs     map[string][]domain.BalanceLog
	stockRequests   map[string]domain.StockRequest
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		openShifts:      map[string]domain.Shift{},
		openByUsername:  map[string]string{},
		archives:        map[string]domain.ArchivedShift{},
		catalog:         map[string]domain.CatalogItem{},
		stock:           map[string]map[string]int{},
		feeRules:        map[string]domain.FeeRule{},
		balanceLogs:     map[string][]domain.BalanceLog{},
		stockRequests:   map[string]domain.StockRequest{},
		usersByUsername: map[string]domain.UserAccount{},
	}
}

// NewSeeded returns a store with a demo catalog, fee brackets and warehouse
// stock. Users are not seeded; the auth layer provisions the admin account.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	items := []domain.CatalogItem{
		{ID: "prd-dana-50", Kind: domain.KindProduct, Name: "Saldo DANA 50rb", Keyword: "SALDO DANA 50", CostPrice: 50000, SellPrice: 52000, RelatedAppKey: "DANA"},
		{ID: "prd-berkat-10", Kind: domain.KindProduct, Name: "Pulsa Berkat 10rb", Keyword: "BERKAT 10", CostPrice: 10150, SellPrice: 12000, RelatedAppKey: "BERKAT"},
		{ID: "prd-ff-100", Kind: domain.KindProduct, Name: "Diamond FF 100", Keyword: "DIAMOND FF 100", CostPrice: 14000, SellPrice: 15000, RelatedAppKey: "DIGIPOS"},
		{ID: "vcr-tsel-5gb", Kind: domain.KindVoucher, Name: "Voucher Telkomsel 5GB", Keyword: "VCR TSEL 5GB", CostPrice: 23000, SellPrice: 27000, RelatedAppKey: "SIDOMPUL"},
		{ID: "vcr-isat-3gb", Kind: domain.KindVoucher, Name: "Voucher Indosat 3GB", Keyword: "VCR ISAT 3GB", CostPrice: 15500, SellPrice: 18000, RelatedAppKey: "ISIMPEL"},
		{ID: "acc-kabel-c", Kind: domain.KindAccessory, Name: "Kabel Data Type-C", Keyword: "KABEL TYPE C", CostPrice: 12000, SellPrice: 25000},
		{ID: "acc-tg-hp", Kind: domain.KindAccessory, Name: "Tempered Glass", Keyword: "TEMPERED GLASS", CostPrice: 8000, SellPrice: 20000},
	}
	for _, item := range items {
		item.CreatedAt = now
		s.catalog[item.ID] = item
		s.catalogOrder = append(s.catalogOrder, item.ID)
		if !item.Kind.Stocked() {
			continue
		}
		s.stock[item.ID] = map[string]int{domain.LokasiGudang: 100}
		for _, lokasi := range domain.Locations {
			s.stock[item.ID][lokasi] = 20
		}
	}

	for _, rule := range []domain.FeeRule{
		{MinAmount: 0, MaxAmount: 99999, Fee: 3000},
		{MinAmount: 100000, MaxAmount: 499999, Fee: 5000},
		{MinAmount: 500000, MaxAmount: 1000000, Fee: 10000},
	} {
		rule.ID = xid.New("fee")
		rule.CreatedAt = now
		s.feeRules[rule.ID] = rule
	}
	return s
}

func (s *Store) GetOpenShift(_ context.Context, username string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	shift := cloneShift(s.openShifts[id])
	return &shift, nil
}

func (s *Store) GetOpenShiftByID(_ context.Context, id string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.openShifts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyShift := cloneShift(shift)
	return &copyShift, nil
}

func (s *Store) ListOpenShifts(_ context.Context, lokasi string) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]domain.Shift, 0, len(s.openShifts))
	for _, shift := range s.openShifts {
		if lokasi != "" && shift.Lokasi != lokasi {
			continue
		}
		shifts = append(shifts, cloneShift(shift))
	}
	slices.SortFunc(shifts, func(a, b domain.Shift) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return shifts, nil
}

func (s *Store) CreateOpenShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.Username) == "" || strings.TrimSpace(shift.Lokasi) == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.openByUsername[shift.Username]; exists {
		return nil, store.ErrConflict
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	shift.UpdatedAt = shift.StartTime

	shift = cloneShift(shift)
	s.openShifts[shift.ID] = shift
	s.openByUsername[shift.Username] = shift.ID
	copyShift := cloneShift(shift)
	return &copyShift, nil
}

// SaveOpenShift replaces the whole record. Last write wins.
func (s *Store) SaveOpenShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.openShifts[shift.ID]; !ok {
		return nil, store.ErrNotFound
	}
	shift.UpdatedAt = time.Now().UTC()
	s.openShifts[shift.ID] = cloneShift(shift)
	copyShift := cloneShift(shift)
	return &copyShift, nil
}

func (s *Store) DeleteOpenShift(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.openShifts[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.openShifts, id)
	if s.openByUsername[shift.Username] == id {
		delete(s.openByUsername, shift.Username)
	}
	return nil
}

func (s *Store) ArchiveShift(_ context.Context, archive domain.ArchivedShift) (*domain.ArchivedShift, error) {
	if archive.ID == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.archives[archive.ID]; exists {
		return nil, store.ErrConflict
	}
	s.archives[archive.ID] = cloneArchive(archive)
	copyArchive := cloneArchive(archive)
	return &copyArchive, nil
}

func (s *Store) GetArchivedShift(_ context.Context, id string) (*domain.ArchivedShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archive, ok := s.archives[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyArchive := cloneArchive(archive)
	return &copyArchive, nil
}

func (s *Store) UpdateArchivedDeposit(_ context.Context, archive domain.ArchivedShift) (*domain.ArchivedShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.archives[archive.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current.Deposit = archive.Deposit
	current.DepositNote = archive.DepositNote
	current.DepositedAt = archive.DepositedAt
	s.archives[archive.ID] = current
	copyArchive := cloneArchive(current)
	return &copyArchive, nil
}

func (s *Store) ListArchivedShifts(_ context.Context, filter domain.ArchiveFilter) ([]domain.ArchivedShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archives := make([]domain.ArchivedShift, 0)
	for _, archive := range s.archives {
		if filter.Lokasi != "" && archive.Lokasi != filter.Lokasi {
			continue
		}
		if filter.Username != "" && archive.Username != filter.Username {
			continue
		}
		if !filter.From.IsZero() && archive.EndTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !archive.EndTime.Before(filter.To) {
			continue
		}
		archives = append(archives, cloneArchive(archive))
	}
	slices.SortFunc(archives, func(a, b domain.ArchivedShift) int {
		return b.EndTime.Compare(a.EndTime)
	})
	if filter.Limit > 0 && len(archives) > filter.Limit {
		archives = archives[:filter.Limit]
	}
	return archives, nil
}

func (s *Store) ListCatalog(_ context.Context) (domain.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	catalog := domain.Catalog{
		Products:    []domain.CatalogItem{},
		Vouchers:    []domain.CatalogItem{},
		Accessories: []domain.CatalogItem{},
	}
	for _, id := range s.catalogOrder {
		item := s.catalog[id]
		switch item.Kind {
		case domain.KindProduct:
			catalog.Products = append(catalog.Products, item)
		case domain.KindVoucher:
			catalog.Vouchers = append(catalog.Vouchers, item)
		case domain.KindAccessory:
			catalog.Accessories = append(catalog.Accessories, item)
		}
	}
	return catalog, nil
}

func (s *Store) GetCatalogItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.catalog[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if !item.Kind.Valid() || strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keywordTakenLocked(item.Keyword, "") {
		return nil, store.ErrConflict
	}
	if item.ID == "" {
		item.ID = xid.New(string(item.Kind))
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.catalog[item.ID] = item
	s.catalogOrder = append(s.catalogOrder, item.ID)
	if item.Kind.Stocked() {
		s.stock[item.ID] = map[string]int{}
	}
	return &item, nil
}

func (s *Store) UpdateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.catalog[item.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.keywordTakenLocked(item.Keyword, item.ID) {
		return nil, store.ErrConflict
	}
	item.Kind = current.Kind
	item.CreatedAt = current.CreatedAt
	s.catalog[item.ID] = item
	return &item, nil
}

func (s *Store) DeleteCatalogItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.catalog, id)
	delete(s.stock, id)
	s.catalogOrder = slices.DeleteFunc(s.catalogOrder, func(candidate string) bool {
		return candidate == id
	})
	return nil
}

func (s *Store) keywordTakenLocked(keyword string, exceptID string) bool {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	for id, item := range s.catalog {
		if id != exceptID && strings.ToUpper(strings.TrimSpace(item.Keyword)) == keyword {
			return true
		}
	}
	return false
}

func (s *Store) GetStockMap(_ context.Context, kind domain.CatalogKind, lokasi string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stockMap := map[string]int{}
	for id, item := range s.catalog {
		if item.Kind != kind || !kind.Stocked() {
			continue
		}
		stockMap[id] = s.stock[id][lokasi]
	}
	return stockMap, nil
}

func (s *Store) AdjustStock(_ context.Context, itemID string, lokasi string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.catalog[itemID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if !item.Kind.Stocked() || !domain.IsStockLocation(lokasi) {
		return 0, store.ErrInvalidTransaction
	}
	byLokasi, ok := s.stock[itemID]
	if !ok {
		byLokasi = map[string]int{}
		s.stock[itemID] = byLokasi
	}
	next := byLokasi[lokasi] + delta
	if next < 0 {
		return byLokasi[lokasi], store.ErrInsufficientStock
	}
	byLokasi[lokasi] = next
	return next, nil
}

func (s *Store) TransferStock(_ context.Context, itemID string, from string, to string, qty int) error {
	if qty < 1 || from == to || !domain.IsStockLocation(from) || !domain.IsStockLocation(to) {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.catalog[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if !item.Kind.Stocked() {
		return store.ErrInvalidTransaction
	}
	byLokasi, ok := s.stock[itemID]
	if !ok {
		byLokasi = map[string]int{}
		s.stock[itemID] = byLokasi
	}
	if byLokasi[from] < qty {
		return store.ErrInsufficientStock
	}
	byLokasi[from] -= qty
	byLokasi[to] += qty
	return nil
}

func (s *Store) AppendStockLog(_ context.Context, entry domain.StockLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("stocklog")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.stockLogs = append(s.stockLogs, entry)
	return nil
}

func (s *Store) ListStockLogs(_ context.Context, lokasi string, limit int) ([]domain.StockLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.StockLog, 0)
	for i := len(s.stockLogs) - 1; i >= 0; i-- {
		entry := s.stockLogs[i]
		if lokasi != "" && entry.Lokasi != lokasi {
			continue
		}
		logs = append(logs, entry)
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) ListFeeRules(_ context.Context) ([]domain.FeeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := slices.Collect(maps.Values(s.feeRules))
	slices.SortFunc(rules, func(a, b domain.FeeRule) int {
		if a.MinAmount != b.MinAmount {
			return cmpInt64(a.MinAmount, b.MinAmount)
		}
		if a.MaxAmount != b.MaxAmount {
			return cmpInt64(a.MaxAmount, b.MaxAmount)
		}
		return cmpString(a.ID, b.ID)
	})
	return rules, nil
}

func (s *Store) CreateFeeRule(_ context.Context, rule domain.FeeRule) (*domain.FeeRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = xid.New("fee")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	s.feeRules[rule.ID] = rule
	return &rule, nil
}

func (s *Store) UpdateFeeRule(_ context.Context, rule domain.FeeRule) (*domain.FeeRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.feeRules[rule.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	rule.CreatedAt = current.CreatedAt
	s.feeRules[rule.ID] = rule
	return &rule, nil
}

func (s *Store) DeleteFeeRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeRules[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.feeRules, id)
	return nil
}

func (s *Store) AppendBalanceLog(_ context.Context, entry domain.BalanceLog) error {
	if entry.ShiftID == "" || entry.WalletKey == "" {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("ballog")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.balanceLogs[entry.ShiftID] = append(s.balanceLogs[entry.ShiftID], entry)
	return nil
}

func (s *Store) ListBalanceLogs(_ context.Context, shiftID string) ([]domain.BalanceLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.balanceLogs[shiftID]), nil
}

func (s *Store) CreateStockRequest(_ context.Context, request domain.StockRequest) (*domain.StockRequest, error) {
	if request.AccessoryID == "" || request.Qty < 1 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if request.ID == "" {
		request.ID = xid.New("streq")
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.Status = domain.StockRequestPending
	s.stockRequests[request.ID] = request
	return &request, nil
}

func (s *Store) GetStockRequest(_ context.Context, id string) (*domain.StockRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.stockRequests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &request, nil
}

func (s *Store) ListStockRequests(_ context.Context, lokasi string, status domain.StockRequestStatus) ([]domain.StockRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests := make([]domain.StockRequest, 0)
	for _, request := range s.stockRequests {
		if lokasi != "" && request.Lokasi != lokasi {
			continue
		}
		if status != "" && request.Status != status {
			continue
		}
		requests = append(requests, request)
	}
	slices.SortFunc(requests, func(a, b domain.StockRequest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return requests, nil
}

// UpdateStockRequestStatus only moves a request out of PENDING once.
func (s *Store) UpdateStockRequestStatus(_ context.Context, request domain.StockRequest) (*domain.StockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.stockRequests[request.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if current.Status != domain.StockRequestPending {
		return nil, store.ErrConflict
	}
	current.Status = request.Status
	current.DecidedBy = request.DecidedBy
	current.DecidedAt = request.DecidedAt
	s.stockRequests[current.ID] = current
	return &current, nil
}

func (s *Store) ReopenStockRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.stockRequests[id]
	if !ok {
		return store.ErrNotFound
	}
	if current.Status != domain.StockRequestApproved {
		return store.ErrConflict
	}
	current.Status = domain.StockRequestPending
	current.DecidedBy = ""
	current.DecidedAt = nil
	s.stockRequests[id] = current
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleWorker
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	current, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	if strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	current.Password = user.Password
	current.Lokasi = user.Lokasi
	current.Active = user.Active
	s.usersByUsername[username] = current
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cmpInt64(a int64, b int64) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneShift(src domain.Shift) domain.Shift {
	dst := src
	dst.Transactions = slices.Clone(src.Transactions)
	dst.InitialAppBalances = src.InitialAppBalances.Clone()
	dst.AppBalances = src.AppBalances.Clone()
	dst.InitialVoucherStock = maps.Clone(src.InitialVoucherStock)
	return dst
}

func cloneArchive(src domain.ArchivedShift) domain.ArchivedShift {
	dst := src
	dst.Shift = cloneShift(src.Shift)
	dst.FinalVoucherStock = maps.Clone(src.FinalVoucherStock)
	dst.VoucherDiscrepancies = slices.Clone(src.VoucherDiscrepancies)
	return dst
}
