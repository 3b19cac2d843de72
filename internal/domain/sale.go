package domain

import "strings"

var salePrefixes = map[CatalogKind]string{
	KindProduct:   "PRD-",
	KindVoucher:   "VCR-",
	KindAccessory: "ACC-",
}

// SaleID builds the id of a one-unit catalog sale transaction. The trailing
// separator keeps item "v1" from matching sales of "v10".
func SaleID(kind CatalogKind, itemID string, suffix string) string {
	return salePrefixes[kind] + itemID + "-" + suffix
}

func IsSaleOf(transactionID string, kind CatalogKind, itemID string) bool {
	prefix, ok := salePrefixes[kind]
	if !ok {
		return false
	}
	return strings.HasPrefix(transactionID, prefix+itemID+"-")
}

func VoucherSaleID(voucherID string, suffix string) string {
	return SaleID(KindVoucher, voucherID, suffix)
}

func IsVoucherSaleOf(transactionID string, voucherID string) bool {
	return IsSaleOf(transactionID, KindVoucher, voucherID)
}

// SoldItem finds which stocked catalog item a sale transaction sold. When ids
// nest ("v1" and "v1-x") the longest matching id wins.
func SoldItem(transactionID string, items []CatalogItem) (CatalogItem, bool) {
	var (
		best  CatalogItem
		found bool
	)
	for _, item := range items {
		if !IsSaleOf(transactionID, item.Kind, item.ID) {
			continue
		}
		if !found || len(item.ID) > len(best.ID) {
			best, found = item, true
		}
	}
	return best, found
}

// IsCatalogSale reports whether transactionID was built by SaleID.
func IsCatalogSale(transactionID string) bool {
	for _, prefix := range salePrefixes {
		if strings.HasPrefix(transactionID, prefix) {
			return true
		}
	}
	return false
}
