package ledger

import (
	"strings"

	"saldokonter/backend/internal/domain"
)

// ProjectBalances replays transactions in order over a copy of initial and
// returns the resulting wallet balances. It never mutates its inputs, so the
// same arguments always give the same result.
//
// Two independent rules run per transaction and may both hit one wallet:
// the manual wallet-name rule and the product-linked rule.
func ProjectBalances(initial domain.WalletBalanceSet, transactions []domain.Transaction, catalog []domain.CatalogItem) domain.WalletBalanceSet {
	balances := initial.Normalize()

	for _, tx := range transactions {
		product := ResolveProduct(tx.Description, catalog)
		applyManualWallet(balances, tx)
		applyLinkedProduct(balances, product)
	}
	return balances
}

func applyManualWallet(balances domain.WalletBalanceSet, tx domain.Transaction) {
	var (
		amount int64
		rule   keywordRule
		sign   int64
	)
	switch {
	case tx.Type == domain.CashIn && tx.SaldoKeluarAplikasi != nil && *tx.SaldoKeluarAplikasi > 0:
		amount, rule, sign = *tx.SaldoKeluarAplikasi, walletOutflowRule, -1
	case tx.Type == domain.CashOut && tx.SaldoMasukAplikasi != nil && *tx.SaldoMasukAplikasi > 0:
		amount, rule, sign = *tx.SaldoMasukAplikasi, walletInflowRule, 1
	default:
		return
	}

	upper := strings.ToUpper(tx.Description)
	if !rule.matches(upper) {
		return
	}
	for _, wallet := range domain.Wallets {
		if strings.Contains(upper, strings.ToUpper(wallet.DisplayName)) {
			balances[wallet.Key] += sign * amount
			return
		}
	}
}

func applyLinkedProduct(balances domain.WalletBalanceSet, product ProductMatch) {
	if !product.Matched || product.RelatedAppKey == "" {
		return
	}
	if _, ok := balances[product.RelatedAppKey]; !ok {
		return
	}
	if domain.IsSpecialAppKey(product.RelatedAppKey) {
		balances[product.RelatedAppKey] -= product.CostPrice
		return
	}
	if product.Fee > 0 {
		balances[product.RelatedAppKey] -= product.Fee
	}
}

// ProjectionBase is the starting point for a shift projection: the opening
// wallet snapshot plus every manual adjustment logged since.
func ProjectionBase(initial domain.WalletBalanceSet, logs []domain.BalanceLog) domain.WalletBalanceSet {
	base := initial.Normalize()
	for _, entry := range logs {
		if _, ok := base[entry.WalletKey]; ok {
			base[entry.WalletKey] += entry.Delta
		}
	}
	return base
}
