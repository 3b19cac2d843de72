package domain

import "time"

type TransactionType string

const (
	CashIn  TransactionType = "CASH_IN"
	CashOut TransactionType = "CASH_OUT"
)

// Transaction is a single cash movement inside a shift. The JSON names are
// shared with the report exporters and the realtime feed.
type Transaction struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	Type                TransactionType `json:"type"`
	Amount              int64           `json:"amount"`
	Description         string          `json:"description"`
	AdminFee            int64           `json:"adminFee"`
	ProductAdminFee     int64           `json:"productAdminFee"`
	RelatedAppKey       *string         `json:"relatedAppKey,omitempty"`
	ProductCostPrice    *int64          `json:"productCostPrice,omitempty"`
	SaldoMasukAplikasi  *int64          `json:"saldoMasukAplikasi,omitempty"`
	SaldoKeluarAplikasi *int64          `json:"saldoKeluarAplikasi,omitempty"`
}

type FeeRule struct {
	ID        string    `json:"id"`
	MinAmount int64     `json:"min_amount"`
	MaxAmount int64     `json:"max_amount"`
	Fee       int64     `json:"fee"`
	CreatedAt time.Time `json:"created_at"`
}

type CatalogKind string

const (
	KindProduct   CatalogKind = "product"
	KindVoucher   CatalogKind = "voucher"
	KindAccessory CatalogKind = "accessory"
)

// Stocked reports whether items of this kind carry per-location stock.
func (k CatalogKind) Stocked() bool {
	return k == KindVoucher || k == KindAccessory
}

func (k CatalogKind) Valid() bool {
	return k == KindProduct || k == KindVoucher || k == KindAccessory
}

type CatalogItem struct {
	ID            string      `json:"id"`
	Kind          CatalogKind `json:"kind"`
	Name          string      `json:"name"`
	Keyword       string      `json:"keyword"`
	CostPrice     int64       `json:"cost_price"`
	SellPrice     int64       `json:"sell_price"`
	RelatedAppKey string      `json:"related_app_key,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (c CatalogItem) Margin() int64 {
	return c.SellPrice - c.CostPrice
}

type Catalog struct {
	Products    []CatalogItem `json:"products"`
	Vouchers    []CatalogItem `json:"vouchers"`
	Accessories []CatalogItem `json:"accessories"`
}

// All flattens the catalog in matching order: products, then vouchers, then
// accessories. Keyword resolution is first-match, so this order is observable.
func (c Catalog) All() []CatalogItem {
	items := make([]CatalogItem, 0, len(c.Products)+len(c.Vouchers)+len(c.Accessories))
	items = append(items, c.Products...)
	items = append(items, c.Vouchers...)
	items = append(items, c.Accessories...)
	return items
}

func (c Catalog) Find(id string) (CatalogItem, bool) {
	for _, item := range c.All() {
		if item.ID == id {
			return item, true
		}
	}
	return CatalogItem{}, false
}

// CatalogView is the catalog plus stock at one location, keyed by item id.
type CatalogView struct {
	Catalog
	Lokasi string         `json:"lokasi,omitempty"`
	Stock  map[string]int `json:"stock"`
}

// PhysicalCashDetails is the close-time cash count, one nominal total per
// denomination bucket.
type PhysicalCashDetails struct {
	LargeBills int64 `json:"large_bills"`
	MidBills   int64 `json:"mid_bills"`
	SmallBills int64 `json:"small_bills"`
	Coins      int64 `json:"coins"`
}

func (p PhysicalCashDetails) Total() int64 {
	return p.LargeBills + p.MidBills + p.SmallBills + p.Coins
}

type SelisihStatus string

const (
	SelisihLebih  SelisihStatus = "Lebih"
	SelisihKurang SelisihStatus = "Kurang"
	SelisihSesuai SelisihStatus = "Sesuai"
)

type Shift struct {
	ID                  string           `json:"id"`
	Username            string           `json:"username"`
	Lokasi              string           `json:"lokasi"`
	KasAwal             int64            `json:"kasAwal"`
	StartTime           time.Time        `json:"startTime"`
	Transactions        []Transaction    `json:"transactions"`
	TotalIn             int64            `json:"totalIn"`
	TotalOut            int64            `json:"totalOut"`
	UangTransaksi       int64            `json:"uangTransaksi"`
	TotalAdminFee       int64            `json:"totalAdminFee"`
	InitialAppBalances  WalletBalanceSet `json:"initial_app_balances"`
	AppBalances         WalletBalanceSet `json:"app_balances"`
	InitialVoucherStock map[string]int   `json:"initial_voucher_stock"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

type VoucherDiscrepancy struct {
	VoucherID     string `json:"voucher_id"`
	VoucherName   string `json:"voucher_name"`
	InitialStock  int    `json:"initial_stock"`
	SoldCount     int    `json:"sold_count"`
	ExpectedStock int    `json:"expected_stock"`
	FinalStock    int    `json:"final_stock"`
	Discrepancy   int    `json:"discrepancy"`
}

type ArchivedShift struct {
	Shift
	EndTime              time.Time            `json:"endTime"`
	KasAkhir             int64                `json:"kasAkhir"`
	PhysicalCashDetails  PhysicalCashDetails  `json:"physical_cash_details"`
	ExpectedBalance      int64                `json:"expectedBalance"`
	Selisih              int64                `json:"selisih"`
	SelisihStatus        SelisihStatus        `json:"selisih_status"`
	UangMakan            int64                `json:"uang_makan"`
	FinalAdminFee        int64                `json:"final_admin_fee"`
	FinalVoucherStock    map[string]int       `json:"final_voucher_stock"`
	VoucherDiscrepancies []VoucherDiscrepancy `json:"voucher_discrepancies"`
	Notes                string               `json:"notes"`
	Deposit              int64                `json:"deposit"`
	DepositNote          string               `json:"deposit_note,omitempty"`
	DepositedAt          *time.Time           `json:"deposited_at,omitempty"`
}

type ArchiveFilter struct {
	Lokasi   string
	Username string
	From     time.Time
	To       time.Time
	Limit    int
}

type BalanceLog struct {
	ID        string    `json:"id"`
	ShiftID   string    `json:"shift_id"`
	WalletKey string    `json:"wallet_key"`
	Delta     int64     `json:"delta"`
	Note      string    `json:"note"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

type StockLog struct {
	ID        string      `json:"id"`
	Kind      CatalogKind `json:"kind"`
	ItemID    string      `json:"item_id"`
	Lokasi    string      `json:"lokasi"`
	Delta     int         `json:"delta"`
	Reason    string      `json:"reason"`
	Actor     string      `json:"actor"`
	CreatedAt time.Time   `json:"created_at"`
}

type StockRequestType string

const (
	RequestStock StockRequestType = "REQUEST_STOCK"
	ReturnItem   StockRequestType = "RETURN_ITEM"
)

type StockRequestStatus string

const (
	StockRequestPending  StockRequestStatus = "PENDING"
	StockRequestApproved StockRequestStatus = "APPROVED"
	StockRequestRejected StockRequestStatus = "REJECTED"
)

type StockRequest struct {
	ID          string             `json:"id"`
	Type        StockRequestType   `json:"type"`
	AccessoryID string             `json:"accessory_id"`
	Lokasi      string             `json:"lokasi"`
	Qty         int                `json:"qty"`
	Note        string             `json:"note"`
	Status      StockRequestStatus `json:"status"`
	RequestedBy string             `json:"requested_by"`
	DecidedBy   string             `json:"decided_by,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	DecidedAt   *time.Time         `json:"decided_at,omitempty"`
}

const (
	RoleAdmin  = "admin"
	RoleWorker = "worker"
)

type Actor struct {
	Username string
	Role     string
	Lokasi   string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Lokasi    string
	Active    bool
	CreatedAt time.Time
}

type Worker struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Lokasi    string    `json:"lokasi"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
