package ledger

import (
	"testing"

	"saldokonter/backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestResolveProduct(t *testing.T) {
	diamond := domain.CatalogItem{ID: "p1", Name: "Diamond FF 100", Keyword: "DIAMOND FF 100", SellPrice: 15000, CostPrice: 14000, RelatedAppKey: "DIGIPOS"}

	tests := []struct {
		name        string
		description string
		catalog     []domain.CatalogItem
		want        ProductMatch
	}{
		{
			name:        "substring match returns margin and link",
			description: "Penjualan DIAMOND FF 100",
			catalog:     []domain.CatalogItem{diamond},
			want: ProductMatch{
				Matched:       true,
				ItemID:        "p1",
				ProductName:   "Diamond FF 100",
				RelatedAppKey: "DIGIPOS",
				CostPrice:     14000,
				Fee:           1000,
			},
		},
		{
			name:        "case insensitive",
			description: "penjualan diamond ff 100",
			catalog:     []domain.CatalogItem{diamond},
			want: ProductMatch{
				Matched:       true,
				ItemID:        "p1",
				ProductName:   "Diamond FF 100",
				RelatedAppKey: "DIGIPOS",
				CostPrice:     14000,
				Fee:           1000,
			},
		},
		{
			name:        "first catalog entry wins on overlap",
			description: "TOPUP100 pelanggan",
			catalog: []domain.CatalogItem{
				{ID: "short", Keyword: "TOPUP", SellPrice: 2000, CostPrice: 1000},
				{ID: "long", Keyword: "TOPUP100", SellPrice: 5000, CostPrice: 1000},
			},
			want: ProductMatch{Matched: true, ItemID: "short", CostPrice: 1000, Fee: 1000},
		},
		{
			name:        "negative margin is returned as is",
			description: "promo VOUCHER 5",
			catalog:     []domain.CatalogItem{{ID: "v5", Keyword: "VOUCHER 5", SellPrice: 4000, CostPrice: 5000}},
			want:        ProductMatch{Matched: true, ItemID: "v5", CostPrice: 5000, Fee: -1000},
		},
		{
			name:        "empty keyword never matches",
			description: "anything",
			catalog:     []domain.CatalogItem{{ID: "blank", Keyword: "", SellPrice: 10, CostPrice: 1}},
			want:        ProductMatch{},
		},
		{
			name:        "no match is a zero result",
			description: "bayar listrik",
			catalog:     []domain.CatalogItem{diamond},
			want:        ProductMatch{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProduct(tt.description, tt.catalog))
		})
	}
}

func TestAnnotate(t *testing.T) {
	rules := []domain.FeeRule{{MinAmount: 0, MaxAmount: 100000, Fee: 2500}}
	catalog := []domain.CatalogItem{{ID: "p1", Keyword: "PULSA 10", SellPrice: 12000, CostPrice: 10500, RelatedAppKey: "SIDOMPUL"}}

	tx := domain.Transaction{Type: domain.CashIn, Amount: 12000, Description: "pulsa 10 tsel"}
	Annotate(&tx, rules, catalog)

	assert.Equal(t, int64(0), tx.AdminFee)
	assert.Equal(t, int64(1500), tx.ProductAdminFee)
	if assert.NotNil(t, tx.RelatedAppKey) {
		assert.Equal(t, "SIDOMPUL", *tx.RelatedAppKey)
	}
	if assert.NotNil(t, tx.ProductCostPrice) {
		assert.Equal(t, int64(10500), *tx.ProductCostPrice)
	}

	tx.Description = "TOPUP DANA"
	Annotate(&tx, rules, catalog)
	assert.Equal(t, int64(2500), tx.AdminFee)
	assert.Equal(t, int64(0), tx.ProductAdminFee)
	assert.Nil(t, tx.RelatedAppKey)
	assert.Nil(t, tx.ProductCostPrice)
}
