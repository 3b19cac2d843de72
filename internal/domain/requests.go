package domain

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Lokasi      string `json:"lokasi,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type ShiftOpenRequest struct {
	Lokasi             string           `json:"lokasi"`
	KasAwal            int64            `json:"kasAwal"`
	InitialAppBalances map[string]int64 `json:"initial_app_balances"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type TransactionInput struct {
	Type                TransactionType `json:"type"`
	Amount              int64           `json:"amount"`
	Description         string          `json:"description"`
	SaldoMasukAplikasi  *int64          `json:"saldoMasukAplikasi,omitempty"`
	SaldoKeluarAplikasi *int64          `json:"saldoKeluarAplikasi,omitempty"`
}

type TransactionPatch struct {
	Type                *TransactionType `json:"type,omitempty"`
	Amount              *int64           `json:"amount,omitempty"`
	Description         *string          `json:"description,omitempty"`
	SaldoMasukAplikasi  *int64           `json:"saldoMasukAplikasi,omitempty"`
	SaldoKeluarAplikasi *int64           `json:"saldoKeluarAplikasi,omitempty"`
}

type SaleRequest struct {
	Kind   CatalogKind `json:"kind"`
	ItemID string      `json:"item_id"`
	Qty    int         `json:"qty"`
}

type WalletAdjustRequest struct {
	WalletKey string `json:"wallet_key"`
	Delta     int64  `json:"delta"`
	Note      string `json:"note"`
}

type ShiftCloseRequest struct {
	PhysicalCash PhysicalCashDetails `json:"physical_cash_details"`
	UangMakan    int64               `json:"uang_makan"`
	Notes        string              `json:"notes"`
}

type ShiftCloseResponse struct {
	Archive  ArchivedShift `json:"archive"`
	Warnings []string      `json:"warnings"`
}

type OpeningCashRequest struct {
	KasAwal int64 `json:"kasAwal"`
}

type DepositRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

type FeeQuoteRequest struct {
	Type               TransactionType `json:"type"`
	Amount             int64           `json:"amount"`
	Description        string          `json:"description"`
	SaldoMasukAplikasi *int64          `json:"saldoMasukAplikasi,omitempty"`
}

type FeeQuoteResponse struct {
	AdminFee        int64  `json:"adminFee"`
	ProductAdminFee int64  `json:"productAdminFee"`
	ProductName     string `json:"productName,omitempty"`
	RelatedAppKey   string `json:"relatedAppKey,omitempty"`
}

type FeeRuleRequest struct {
	MinAmount int64 `json:"min_amount"`
	MaxAmount int64 `json:"max_amount"`
	Fee       int64 `json:"fee"`
}

type CatalogItemRequest struct {
	Kind          CatalogKind    `json:"kind"`
	Name          string         `json:"name"`
	Keyword       string         `json:"keyword"`
	CostPrice     int64          `json:"cost_price"`
	SellPrice     int64          `json:"sell_price"`
	RelatedAppKey string         `json:"related_app_key"`
	InitialStock  map[string]int `json:"initial_stock,omitempty"`
}

type CatalogItemUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Keyword       *string `json:"keyword,omitempty"`
	CostPrice     *int64  `json:"cost_price,omitempty"`
	SellPrice     *int64  `json:"sell_price,omitempty"`
	RelatedAppKey *string `json:"related_app_key,omitempty"`
}

type StockAdjustRequest struct {
	ItemID string `json:"item_id"`
	Lokasi string `json:"lokasi"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type StockTransferRequest struct {
	ItemID string `json:"item_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Qty    int    `json:"qty"`
}

type StockRequestCreate struct {
	Type        StockRequestType `json:"type"`
	AccessoryID string           `json:"accessory_id"`
	Qty         int              `json:"qty"`
	Note        string           `json:"note"`
}

type WorkerCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Lokasi   string `json:"lokasi"`
}

type WorkerUpdateRequest struct {
	Password *string `json:"password,omitempty"`
	Lokasi   *string `json:"lokasi,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}
