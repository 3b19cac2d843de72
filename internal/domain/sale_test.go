package domain

import "testing"

func TestSaleIDPrefixDoesNotLeakAcrossIDs(t *testing.T) {
	id := VoucherSaleID("v10", "abc")
	if IsVoucherSaleOf(id, "v1") {
		t.Fatalf("sale of v10 must not count for v1")
	}
	if !IsVoucherSaleOf(id, "v10") {
		t.Fatalf("sale of v10 must count for v10")
	}
	if IsSaleOf(id, KindAccessory, "v10") {
		t.Fatalf("voucher sale must not count as accessory sale")
	}
}

func TestSoldItemPrefersLongestID(t *testing.T) {
	items := []CatalogItem{
		{ID: "kabel", Kind: KindAccessory},
		{ID: "kabel-c", Kind: KindAccessory},
		{ID: "kabel-c", Kind: KindVoucher},
	}

	item, ok := SoldItem(SaleID(KindAccessory, "kabel-c", "0f3e"), items)
	if !ok || item.ID != "kabel-c" || item.Kind != KindAccessory {
		t.Fatalf("expected accessory kabel-c, got %+v ok=%v", item, ok)
	}
	if _, ok := SoldItem("tx-manual", items); ok {
		t.Fatalf("manual transaction must not resolve to an item")
	}
}

func TestCatalogAllKeepsMatchingOrder(t *testing.T) {
	catalog := Catalog{
		Products:    []CatalogItem{{ID: "p"}},
		Vouchers:    []CatalogItem{{ID: "v"}},
		Accessories: []CatalogItem{{ID: "a"}},
	}
	all := catalog.All()
	if len(all) != 3 || all[0].ID != "p" || all[1].ID != "v" || all[2].ID != "a" {
		t.Fatalf("unexpected order %+v", all)
	}
}

func TestPhysicalCashTotal(t *testing.T) {
	cash := PhysicalCashDetails{LargeBills: 100000, MidBills: 10000, SmallBills: 4000, Coins: 1000}
	if cash.Total() != 115000 {
		t.Fatalf("expected 115000, got %d", cash.Total())
	}
}
