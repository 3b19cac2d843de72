package domain

import "strings"

type Wallet struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

// Wallets is the fixed, ordered set of app balances a counter tracks.
var Wallets = []Wallet{
	{Key: "BRI", DisplayName: "BRI"},
	{Key: "BCA", DisplayName: "BCA"},
	{Key: "MANDIRI", DisplayName: "Mandiri"},
	{Key: "BNI", DisplayName: "BNI"},
	{Key: "DANA", DisplayName: "DANA"},
	{Key: "OVO", DisplayName: "OVO"},
	{Key: "GOPAY", DisplayName: "GoPay"},
	{Key: "SHOPEEPAY", DisplayName: "ShopeePay"},
	{Key: "LINKAJA", DisplayName: "LinkAja"},
	{Key: "BERKAT", DisplayName: "Berkat"},
	{Key: "RITA", DisplayName: "Rita"},
	{Key: "ISIMPEL", DisplayName: "iSimpel"},
	{Key: "SIDOMPUL", DisplayName: "Sidompul"},
	{Key: "DIGIPOS", DisplayName: "Digipos"},
}

// specialAppKeys are wallets whose linked products deduct cost price instead
// of margin. Description keywords move them like any other wallet.
var specialAppKeys = map[string]bool{
	"BERKAT":   true,
	"RITA":     true,
	"ISIMPEL":  true,
	"SIDOMPUL": true,
	"DIGIPOS":  true,
}

func IsSpecialAppKey(key string) bool {
	return specialAppKeys[key]
}

func IsWalletKey(key string) bool {
	for _, wallet := range Wallets {
		if wallet.Key == key {
			return true
		}
	}
	return false
}

func WalletDisplayName(key string) string {
	for _, wallet := range Wallets {
		if wallet.Key == key {
			return wallet.DisplayName
		}
	}
	return key
}

// WalletBalanceSet maps wallet key to balance. A normalized set carries every
// key in Wallets, missing ones as zero.
type WalletBalanceSet map[string]int64

func NewWalletBalanceSet() WalletBalanceSet {
	set := make(WalletBalanceSet, len(Wallets))
	for _, wallet := range Wallets {
		set[wallet.Key] = 0
	}
	return set
}

// Normalize returns a copy holding exactly the known wallet keys. Unknown keys
// are dropped.
func (w WalletBalanceSet) Normalize() WalletBalanceSet {
	set := NewWalletBalanceSet()
	for key, value := range w {
		if _, ok := set[key]; ok {
			set[key] = value
		}
	}
	return set
}

func (w WalletBalanceSet) Clone() WalletBalanceSet {
	out := make(WalletBalanceSet, len(w))
	for key, value := range w {
		out[key] = value
	}
	return out
}

const (
	LokasiPusat    = "PUSAT"
	LokasiPasar    = "PASAR"
	LokasiTerminal = "TERMINAL"
	// LokasiGudang is the warehouse. It holds stock but never runs a shift.
	LokasiGudang = "GUDANG"
)

var Locations = []string{LokasiPusat, LokasiPasar, LokasiTerminal}

func NormalizeLokasi(lokasi string) string {
	return strings.ToUpper(strings.TrimSpace(lokasi))
}

func IsLocation(lokasi string) bool {
	for _, candidate := range Locations {
		if candidate == lokasi {
			return true
		}
	}
	return false
}

func IsStockLocation(lokasi string) bool {
	return lokasi == LokasiGudang || IsLocation(lokasi)
}
