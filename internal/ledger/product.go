package ledger

import (
	"strings"

	"saldokonter/backend/internal/domain"
)

type ProductMatch struct {
	Matched       bool
	ItemID        string
	ProductName   string
	RelatedAppKey string
	CostPrice     int64
	// Fee is the item margin; negative when sold below cost.
	Fee int64
}

// ResolveProduct finds the first catalog item whose keyword appears anywhere in
// description, ignoring case. Catalog order decides between overlapping
// keywords.
func ResolveProduct(description string, catalog []domain.CatalogItem) ProductMatch {
	upper := strings.ToUpper(description)
	for _, item := range catalog {
		keyword := strings.ToUpper(item.Keyword)
		if keyword == "" || !strings.Contains(upper, keyword) {
			continue
		}
		return ProductMatch{
			Matched:       true,
			ItemID:        item.ID,
			ProductName:   item.Name,
			RelatedAppKey: item.RelatedAppKey,
			CostPrice:     item.CostPrice,
			Fee:           item.Margin(),
		}
	}
	return ProductMatch{}
}
