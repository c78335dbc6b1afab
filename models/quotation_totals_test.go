package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeQuotationTotals_NoDiscountNoTax(t *testing.T) {
	items := []QuotationItem{
		{Quantity: dec("2"), UnitPrice: dec("1500"), Amount: dec("3000")},
		{Quantity: dec("1"), UnitPrice: dec("250.5"), Amount: dec("250.5")},
	}
	totals := computeQuotationTotals(items)

	if !totals.Subtotal.Equal(dec("3250.5")) {
		t.Fatalf("subtotal: got %s", totals.Subtotal)
	}
	if !totals.DiscountAmount.IsZero() || !totals.TaxAmount.IsZero() {
		t.Fatalf("expected zero discount/tax, got %s / %s", totals.DiscountAmount, totals.TaxAmount)
	}
	if !totals.NetTotal.Equal(dec("3250.5")) {
		t.Fatalf("net total: got %s", totals.NetTotal)
	}
}

func TestComputeQuotationTotals_DiscountThenTax(t *testing.T) {
	// 10% discount on 1000, then 5% tax on the discounted 900.
	items := []QuotationItem{
		{Quantity: dec("10"), UnitPrice: dec("100"), Amount: dec("1000"),
			DiscountPercent: dec("10"), TaxPercent: dec("5")},
	}
	totals := computeQuotationTotals(items)

	if !totals.Subtotal.Equal(dec("1000")) {
		t.Fatalf("subtotal: got %s", totals.Subtotal)
	}
	if !totals.DiscountAmount.Equal(dec("100")) {
		t.Fatalf("discount: got %s", totals.DiscountAmount)
	}
	if !totals.TaxAmount.Equal(dec("45")) {
		t.Fatalf("tax: got %s", totals.TaxAmount)
	}
	// 1000 - 100 + 45
	if !totals.NetTotal.Equal(dec("945")) {
		t.Fatalf("net total: got %s", totals.NetTotal)
	}
}

func TestComputeQuotationTotals_MixedLines(t *testing.T) {
	items := []QuotationItem{
		{Amount: dec("2000"), DiscountPercent: dec("5")},
		{Amount: dec("500"), TaxPercent: dec("10")},
		{Amount: dec("99.99")},
	}
	totals := computeQuotationTotals(items)

	if !totals.Subtotal.Equal(dec("2599.99")) {
		t.Fatalf("subtotal: got %s", totals.Subtotal)
	}
	if !totals.DiscountAmount.Equal(dec("100")) {
		t.Fatalf("discount: got %s", totals.DiscountAmount)
	}
	if !totals.TaxAmount.Equal(dec("50")) {
		t.Fatalf("tax: got %s", totals.TaxAmount)
	}
	if !totals.NetTotal.Equal(dec("2549.99")) {
		t.Fatalf("net total: got %s", totals.NetTotal)
	}
}

func TestMapQuotationItems_RejectsBadLines(t *testing.T) {
	if _, err := mapQuotationItems(nil); err == nil {
		t.Fatal("expected error for empty line list")
	}
	if _, err := mapQuotationItems([]NewQuotationItem{
		{Description: "x", Quantity: dec("0"), UnitPrice: dec("10")},
	}); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if _, err := mapQuotationItems([]NewQuotationItem{
		{Description: "x", Quantity: dec("1"), UnitPrice: dec("-10")},
	}); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestQuotationStatusMachine(t *testing.T) {
	cases := []struct {
		from, to QuotationStatus
		ok       bool
	}{
		{QuotationStatusDraft, QuotationStatusSent, true},
		{QuotationStatusDraft, QuotationStatusApproved, true},
		{QuotationStatusSent, QuotationStatusApproved, true},
		{QuotationStatusSent, QuotationStatusRejected, true},
		{QuotationStatusSent, QuotationStatusExpired, true},
		{QuotationStatusSent, QuotationStatusRevised, true},
		{QuotationStatusRevised, QuotationStatusSent, true},
		{QuotationStatusRevised, QuotationStatusApproved, true},
		{QuotationStatusApproved, QuotationStatusRejected, false},
		{QuotationStatusApproved, QuotationStatusSent, false},
		{QuotationStatusRejected, QuotationStatusSent, false},
		{QuotationStatusExpired, QuotationStatusApproved, false},
	}
	for _, c := range cases {
		if got := c.from.canTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}

	if !QuotationStatusRejected.releasesReservations() {
		t.Error("Rejected must release reservations")
	}
	if !QuotationStatusExpired.releasesReservations() {
		t.Error("Expired must release reservations")
	}
	if QuotationStatusApproved.releasesReservations() {
		t.Error("Approved must keep holds in place")
	}
}

func TestOrderStatusMachine(t *testing.T) {
	if !OrderStatusConfirmed.canTransitionTo(OrderStatusInProgress) {
		t.Error("Confirmed -> InProgress should be allowed")
	}
	if OrderStatusClosed.canTransitionTo(OrderStatusConfirmed) {
		t.Error("Closed is terminal")
	}
	if OrderStatusDelivered.canTransitionTo(OrderStatusCancelled) {
		t.Error("Delivered cannot be cancelled")
	}
}

func TestInvalidTransitionsCarryTaxonomy(t *testing.T) {
	err := invalidTransitionError("quotation", string(QuotationStatusApproved), string(QuotationStatusDraft))
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation in the chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "Approved") || !strings.Contains(err.Error(), "Draft") {
		t.Fatalf("error should name both statuses: %v", err)
	}
}

func TestComputeOrderTotalsMatchesQuotationPolicy(t *testing.T) {
	// 10% discount on 1000, then 5% tax on the discounted 900.
	items := []OrderItem{
		{Quantity: dec("10"), UnitPrice: dec("100"), Amount: dec("1000"),
			DiscountPercent: dec("10"), TaxPercent: dec("5")},
	}
	totals := computeOrderTotals(items)

	if !totals.Subtotal.Equal(dec("1000")) {
		t.Fatalf("subtotal: got %s", totals.Subtotal)
	}
	// 1000 - 100 + 45
	if !totals.NetTotal.Equal(dec("945")) {
		t.Fatalf("net total: got %s", totals.NetTotal)
	}
}

func TestMapOrderItems_RejectsBadLines(t *testing.T) {
	if _, err := mapOrderItems(nil); err == nil {
		t.Fatal("expected error for empty line list")
	}
	if _, err := mapOrderItems([]NewOrderItem{
		{Description: "x", Quantity: dec("0"), UnitPrice: dec("10")},
	}); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if _, err := mapOrderItems([]NewOrderItem{
		{Description: "x", Quantity: dec("1"), UnitPrice: dec("-10")},
	}); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestLifecycleStageRankIsForwardOnly(t *testing.T) {
	if lifecycleStageRank[LifecycleStageLead] >= lifecycleStageRank[LifecycleStageProspect] {
		t.Error("Lead must rank below Prospect")
	}
	if lifecycleStageRank[LifecycleStageProspect] >= lifecycleStageRank[LifecycleStageCustomer] {
		t.Error("Prospect must rank below Customer")
	}
	if lifecycleStageRank[LifecycleStageCustomer] >= lifecycleStageRank[LifecycleStageVip] {
		t.Error("Customer must rank below VIP")
	}
	if _, ok := lifecycleStageRank[LifecycleStageInactive]; ok {
		t.Error("Inactive sits outside the funnel ranking")
	}
}
