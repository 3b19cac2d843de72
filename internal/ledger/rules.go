package ledger

import "strings"

type matchMode int

const (
	matchPrefix matchMode = iota
	matchContains
)

// keywordRule is one named, ordered predicate over an uppercased description.
type keywordRule struct {
	name     string
	mode     matchMode
	keywords []string
}

func (r keywordRule) matches(upperText string) bool {
	for _, keyword := range r.keywords {
		switch r.mode {
		case matchPrefix:
			if strings.HasPrefix(upperText, keyword) {
				return true
			}
		case matchContains:
			if strings.Contains(upperText, keyword) {
				return true
			}
		}
	}
	return false
}

var (
	// feeKeywordRule gates the bracket lookup. Prefix only: "BELI PULSA TOPUP"
	// carries no fee.
	feeKeywordRule = keywordRule{
		name:     "fee-keyword",
		mode:     matchPrefix,
		keywords: []string{"TOPUP", "NARIK", "TF", "TRANSFER", "TARIK"},
	}
	// walletOutflowRule pairs with a wallet name on CASH_IN to debit the wallet.
	walletOutflowRule = keywordRule{
		name:     "wallet-outflow",
		mode:     matchContains,
		keywords: []string{"TOPUP", "TF", "TRANSFER", "ISI ULANG"},
	}
	// walletInflowRule pairs with a wallet name on CASH_OUT to credit the wallet.
	walletInflowRule = keywordRule{
		name:     "wallet-inflow",
		mode:     matchContains,
		keywords: []string{"NARIK", "TARIK"},
	}
)
