package ledger

import "saldokonter/backend/internal/domain"

// Annotate fills the computed fields of a manually entered transaction: the
// bracket admin fee and, when the description names a catalog item, its
// margin, linked wallet and cost price.
func Annotate(tx *domain.Transaction, rules []domain.FeeRule, catalog []domain.CatalogItem) {
	tx.AdminFee = ComputeFee(tx.Amount, tx.Description, rules, tx.Type, tx.SaldoMasukAplikasi)

	tx.ProductAdminFee = 0
	tx.RelatedAppKey = nil
	tx.ProductCostPrice = nil

	product := ResolveProduct(tx.Description, catalog)
	if !product.Matched {
		return
	}
	tx.ProductAdminFee = product.Fee
	if product.RelatedAppKey != "" {
		key := product.RelatedAppKey
		tx.RelatedAppKey = &key
	}
	cost := product.CostPrice
	tx.ProductCostPrice = &cost
}
