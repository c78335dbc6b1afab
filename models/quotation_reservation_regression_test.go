package models_test

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/models"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
)

func intPtr(v int) *int { return &v }

func TestQuotationBestEffortReservation(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	customer := mustCreateCustomer(t, ctx, "Aarav Sharma")
	plenty := mustCreateItem(t, ctx, "WARD-01", "20")
	scarce := mustCreateItem(t, ctx, "MIRROR-01", "1")

	quotation, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId: customer.ID,
		Division:   models.DivisionInterior,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(plenty.ID), Description: "Wardrobe", Quantity: dec(t, "2"), UnitPrice: dec(t, "15000")},
			{InventoryItemId: intPtr(scarce.ID), Description: "Mirror", Quantity: dec(t, "3"), UnitPrice: dec(t, "2000")},
			{Description: "Custom paneling", Quantity: dec(t, "1"), UnitPrice: dec(t, "50000")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	if !strings.HasPrefix(quotation.QuotationNumber, "QT-") {
		t.Fatalf("quotation number %q", quotation.QuotationNumber)
	}

	// the coverable line is held, the scarce line is kept but unreserved
	if len(quotation.Reservations) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(quotation.Reservations))
	}
	if quotation.Reservations[0].InventoryItemId != plenty.ID {
		t.Fatalf("reserved wrong item: %d", quotation.Reservations[0].InventoryItemId)
	}

	gotPlenty := reloadItem(t, ctx, plenty.ID)
	if !gotPlenty.Reserved.Equal(dec(t, "2")) {
		t.Fatalf("plenty reserved: %s", gotPlenty.Reserved)
	}
	gotScarce := reloadItem(t, ctx, scarce.ID)
	if !gotScarce.Reserved.IsZero() {
		t.Fatalf("scarce must stay unreserved, got %s", gotScarce.Reserved)
	}
	if !gotScarce.Quantity.Equal(dec(t, "1")) {
		t.Fatalf("quotation must not touch stock on hand, got %s", gotScarce.Quantity)
	}
}

func TestQuotationStrictReservationFailsClosed(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	t.Setenv("QUOTATION_STRICT_RESERVE", "true")

	customer := mustCreateCustomer(t, ctx, "Meera Pillai")
	scarce := mustCreateItem(t, ctx, "RUG-01", "1")

	_, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId: customer.ID,
		Division:   models.DivisionFurniture,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(scarce.ID), Description: "Rug", Quantity: dec(t, "2"), UnitPrice: dec(t, "4000")},
		},
	})
	var insufficient *models.InsufficientInventoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientInventoryError, got %v", err)
	}

	// the rolled back creation must leave no quotation and no hold
	quotations, err := models.GetAllQuotations(ctx, nil, &customer.ID, nil)
	if err != nil {
		t.Fatalf("GetAllQuotations: %v", err)
	}
	if len(quotations) != 0 {
		t.Fatalf("expected no quotations, got %d", len(quotations))
	}
	got := reloadItem(t, ctx, scarce.ID)
	if !got.Reserved.IsZero() {
		t.Fatalf("reserved should stay zero, got %s", got.Reserved)
	}
}

func TestQuotationRejectionReleasesExactlyOnce(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	db := config.GetDB()

	customer := mustCreateCustomer(t, ctx, "Rohan Gupta")
	item := mustCreateItem(t, ctx, "BED-01", "10")

	quotation, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId: customer.ID,
		Division:   models.DivisionInterior,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(item.ID), Description: "Bed", Quantity: dec(t, "4"), UnitPrice: dec(t, "30000")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if got := reloadItem(t, ctx, item.ID); !got.Reserved.Equal(dec(t, "4")) {
		t.Fatalf("reserved after create: %s", got.Reserved)
	}

	rejected, err := models.UpdateQuotationStatus(ctx, quotation.ID, models.QuotationStatusRejected)
	if err != nil {
		t.Fatalf("UpdateQuotationStatus(Rejected): %v", err)
	}
	if !utils.DereferencePtr(rejected.ReservationsReleased) {
		t.Fatal("reservations_released flag not set")
	}
	if got := reloadItem(t, ctx, item.ID); !got.Reserved.IsZero() {
		t.Fatalf("reserved after reject: %s", got.Reserved)
	}

	// replaying the rejection must not double-release
	if _, err := models.UpdateQuotationStatus(ctx, quotation.ID, models.QuotationStatusRejected); err != nil {
		t.Fatalf("replayed rejection: %v", err)
	}
	if got := reloadItem(t, ctx, item.ID); !got.Reserved.IsZero() {
		t.Fatalf("reserved after replay: %s", got.Reserved)
	}

	// even a racing manual release on top only clamps, never goes negative
	if err := models.ReleaseInventory(db, ctx, businessId, item.ID, dec(t, "1")); err != nil {
		t.Fatalf("ReleaseInventory: %v", err)
	}
	if got := reloadItem(t, ctx, item.ID); got.Reserved.IsNegative() {
		t.Fatalf("reserved went negative: %s", got.Reserved)
	}
}

func TestQuotationApprovalKeepsHolds(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	customer := mustCreateCustomer(t, ctx, "Isha Nair")
	item := mustCreateItem(t, ctx, "SHELF-01", "8")

	quotation, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId: customer.ID,
		Division:   models.DivisionRenovation,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(item.ID), Description: "Shelf", Quantity: dec(t, "3"), UnitPrice: dec(t, "5000")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	approved, err := models.ApproveQuotation(ctx, quotation.ID)
	if err != nil {
		t.Fatalf("ApproveQuotation: %v", err)
	}
	if approved.Status != models.QuotationStatusApproved {
		t.Fatalf("status: %s", approved.Status)
	}
	if utils.DereferencePtr(approved.ReservationsReleased) {
		t.Fatal("approval must not release holds")
	}
	if got := reloadItem(t, ctx, item.ID); !got.Reserved.Equal(dec(t, "3")) {
		t.Fatalf("reserved after approve: %s", got.Reserved)
	}

	// terminal: approved quotations cannot be rejected afterwards
	if _, err := models.UpdateQuotationStatus(ctx, quotation.ID, models.QuotationStatusRejected); err == nil {
		t.Fatal("expected transition error from Approved to Rejected")
	}
}
