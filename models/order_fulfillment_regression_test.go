package models_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/models"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
)

func TestOrderFulfillmentHappyPath(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	db := config.GetDB()

	customer := mustCreateCustomer(t, ctx, "Vikram Singh")
	item := mustCreateItem(t, ctx, "SOFA-02", "10")

	enquiry, err := models.CreateEnquiry(ctx, &models.NewEnquiry{
		CustomerId: customer.ID,
		Division:   models.DivisionInterior,
	})
	if err != nil {
		t.Fatalf("CreateEnquiry: %v", err)
	}

	quotation, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId:      customer.ID,
		Division:        models.DivisionInterior,
		LinkedEnquiryId: &enquiry.ID,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(item.ID), Description: "Sofa set", Quantity: dec(t, "2"), UnitPrice: dec(t, "45000"), TaxPercent: dec(t, "5")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if _, err := models.ApproveQuotation(ctx, quotation.ID); err != nil {
		t.Fatalf("ApproveQuotation: %v", err)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		QuotationId: &quotation.ID,
		AdvancePaid: dec(t, "20000"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("order number %q", order.OrderNumber)
	}
	// subtotal 90000, tax 4500, net 94500, balance 74500
	if !order.NetTotal.Equal(dec(t, "94500")) {
		t.Fatalf("net total: %s", order.NetTotal)
	}
	if !order.BalancePending.Equal(dec(t, "74500")) {
		t.Fatalf("balance pending: %s", order.BalancePending)
	}

	// stock deducted and the hold consumed
	got := reloadItem(t, ctx, item.ID)
	if !got.Quantity.Equal(dec(t, "8")) || !got.Reserved.IsZero() {
		t.Fatalf("ledger after fulfillment: quantity=%s reserved=%s", got.Quantity, got.Reserved)
	}

	// customer projection: stage forward, lifetime value grew by net total
	gotCustomer, err := models.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if gotCustomer.LifecycleStage != models.LifecycleStageCustomer {
		t.Fatalf("lifecycle stage: %s", gotCustomer.LifecycleStage)
	}
	if !gotCustomer.LifetimeValue.Equal(dec(t, "94500")) {
		t.Fatalf("lifetime value: %s", gotCustomer.LifetimeValue)
	}

	// exactly one project, named and budgeted from the order
	var projects []models.Project
	if err := db.WithContext(ctx).Where("business_id = ? AND linked_order_id = ?", businessId, order.ID).Find(&projects).Error; err != nil {
		t.Fatalf("load projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
	if projects[0].Name != "Vikram Singh - Interior Project" {
		t.Fatalf("project name %q", projects[0].Name)
	}
	if !projects[0].Budget.Equal(order.NetTotal) {
		t.Fatalf("project budget %s", projects[0].Budget)
	}
	if projects[0].LeadId == nil || *projects[0].LeadId != enquiry.ID {
		t.Fatal("project lead id not carried from quotation")
	}

	// linked enquiry marked Won
	gotEnquiry, err := models.GetEnquiry(ctx, enquiry.ID)
	if err != nil {
		t.Fatalf("GetEnquiry: %v", err)
	}
	if gotEnquiry.Status != models.EnquiryStatusWon {
		t.Fatalf("enquiry status: %s", gotEnquiry.Status)
	}

	// second order from the same quotation must be refused
	if _, err := models.CreateOrder(ctx, &models.NewOrder{QuotationId: &quotation.ID}); err == nil {
		t.Fatal("expected duplicate order to fail")
	}
}

func TestOrderFulfillmentRollsBackCompletely(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	db := config.GetDB()

	customer := mustCreateCustomer(t, ctx, "Ananya Rao")
	item := mustCreateItem(t, ctx, "CAB-01", "5")

	quotation, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId: customer.ID,
		Division:   models.DivisionFurniture,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(item.ID), Description: "Cabinet", Quantity: dec(t, "4"), UnitPrice: dec(t, "12000")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if _, err := models.ApproveQuotation(ctx, quotation.ID); err != nil {
		t.Fatalf("ApproveQuotation: %v", err)
	}

	// drain the stock behind the quotation's back so the deduct step fails
	if err := db.WithContext(ctx).Exec(
		"UPDATE inventory_items SET quantity = 2 WHERE id = ? AND business_id = ?",
		item.ID, businessId).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err = models.CreateOrder(ctx, &models.NewOrder{QuotationId: &quotation.ID})
	var orderFailed *models.OrderCreationFailedError
	if !errors.As(err, &orderFailed) {
		t.Fatalf("expected OrderCreationFailedError, got %v", err)
	}
	var insufficient *models.InsufficientInventoryError
	if !errors.As(orderFailed.Err, &insufficient) {
		t.Fatalf("expected wrapped InsufficientInventoryError, got %v", orderFailed.Err)
	}
	if orderFailed.CorrelationId == "" {
		t.Fatal("correlation id missing on failure")
	}

	// no partial state: no order, no project, no value entry, stock untouched
	var orderCount, projectCount, entryCount int64
	if err := db.Model(&models.Order{}).Where("business_id = ?", businessId).Count(&orderCount).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&models.Project{}).Where("business_id = ?", businessId).Count(&projectCount).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&models.CustomerValueEntry{}).Where("business_id = ?", businessId).Count(&entryCount).Error; err != nil {
		t.Fatal(err)
	}
	if orderCount != 0 || projectCount != 0 || entryCount != 0 {
		t.Fatalf("partial state leaked: orders=%d projects=%d entries=%d", orderCount, projectCount, entryCount)
	}

	got := reloadItem(t, ctx, item.ID)
	if !got.Quantity.Equal(dec(t, "2")) {
		t.Fatalf("quantity changed by failed order: %s", got.Quantity)
	}
	gotCustomer, _ := models.GetCustomer(ctx, customer.ID)
	if !gotCustomer.LifetimeValue.IsZero() {
		t.Fatalf("lifetime value changed by failed order: %s", gotCustomer.LifetimeValue)
	}
	if gotCustomer.LifecycleStage == models.LifecycleStageCustomer {
		t.Fatal("lifecycle stage advanced by failed order")
	}
}

func TestStandaloneOrderFulfillment(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	db := config.GetDB()

	customer := mustCreateCustomer(t, ctx, "Rohan Iyer")
	item := mustCreateItem(t, ctx, "CHAIR-02", "12")

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		CustomerId: customer.ID,
		Division:   models.DivisionFurniture,
		Items: []models.NewOrderItem{
			{InventoryItemId: intPtr(item.ID), Description: "Dining chair", Quantity: dec(t, "4"), UnitPrice: dec(t, "3000"), TaxPercent: dec(t, "5")},
		},
		AdvancePaid: dec(t, "2000"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.LinkedQuotationId != nil {
		t.Fatalf("standalone order must not carry a quotation ref, got %d", *order.LinkedQuotationId)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("order number %q", order.OrderNumber)
	}
	// subtotal 12000, tax 600, net 12600, balance 10600
	if !order.NetTotal.Equal(dec(t, "12600")) {
		t.Fatalf("net total: %s", order.NetTotal)
	}
	if !order.BalancePending.Equal(dec(t, "10600")) {
		t.Fatalf("balance pending: %s", order.BalancePending)
	}

	// stock deducted straight from the pool, no hold involved
	got := reloadItem(t, ctx, item.ID)
	if !got.Quantity.Equal(dec(t, "8")) || !got.Reserved.IsZero() {
		t.Fatalf("ledger after fulfillment: quantity=%s reserved=%s", got.Quantity, got.Reserved)
	}

	// the customer projection and the project run for standalone orders too
	gotCustomer, err := models.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if gotCustomer.LifecycleStage != models.LifecycleStageCustomer {
		t.Fatalf("lifecycle stage: %s", gotCustomer.LifecycleStage)
	}
	if !gotCustomer.LifetimeValue.Equal(dec(t, "12600")) {
		t.Fatalf("lifetime value: %s", gotCustomer.LifetimeValue)
	}
	var projectCount int64
	if err := db.Model(&models.Project{}).Where("business_id = ? AND linked_order_id = ?", businessId, order.ID).Count(&projectCount).Error; err != nil {
		t.Fatal(err)
	}
	if projectCount != 1 {
		t.Fatalf("expected 1 project, got %d", projectCount)
	}

	// a second standalone order for the same customer is not a duplicate
	if _, err := models.CreateOrder(ctx, &models.NewOrder{
		CustomerId: customer.ID,
		Division:   models.DivisionFurniture,
		Items: []models.NewOrderItem{
			{InventoryItemId: intPtr(item.ID), Description: "Dining chair", Quantity: dec(t, "2"), UnitPrice: dec(t, "3000")},
		},
	}); err != nil {
		t.Fatalf("second standalone order: %v", err)
	}

	// without a customer or with no lines the request is refused up front
	if _, err := models.CreateOrder(ctx, &models.NewOrder{
		Division: models.DivisionFurniture,
		Items:    []models.NewOrderItem{{Description: "x", Quantity: dec(t, "1"), UnitPrice: dec(t, "10")}},
	}); err == nil {
		t.Fatal("expected standalone order without customer to fail")
	}
	if _, err := models.CreateOrder(ctx, &models.NewOrder{
		CustomerId: customer.ID,
		Division:   models.DivisionFurniture,
	}); err == nil {
		t.Fatal("expected standalone order without lines to fail")
	}
}

func TestConcurrentOrderFulfillmentSingleWinner(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	db := config.GetDB()

	customer := mustCreateCustomer(t, ctx, "Meera Joshi")
	// 6 on hand; each quotation wants 5, so only one fulfillment can fit
	item := mustCreateItem(t, ctx, "SOFA-03", "6")

	approvedQuotation := func(desc string) *models.Quotation {
		t.Helper()
		q, err := models.CreateQuotation(ctx, &models.NewQuotation{
			CustomerId: customer.ID,
			Division:   models.DivisionInterior,
			Items: []models.NewQuotationItem{
				{InventoryItemId: intPtr(item.ID), Description: desc, Quantity: dec(t, "5"), UnitPrice: dec(t, "8000")},
			},
		})
		if err != nil {
			t.Fatalf("CreateQuotation(%s): %v", desc, err)
		}
		if _, err := models.ApproveQuotation(ctx, q.ID); err != nil {
			t.Fatalf("ApproveQuotation(%s): %v", desc, err)
		}
		return q
	}

	// the first holds 5; the second's line stays unreserved (best-effort)
	quotations := []*models.Quotation{
		approvedQuotation("Sofa A"),
		approvedQuotation("Sofa B"),
	}

	var wg sync.WaitGroup
	results := make([]error, len(quotations))
	for i := range quotations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = models.CreateOrder(ctx, &models.NewOrder{QuotationId: &quotations[i].ID})
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		var orderFailed *models.OrderCreationFailedError
		if !errors.As(err, &orderFailed) {
			t.Fatalf("unexpected error: %v", err)
		}
		var insufficient *models.InsufficientInventoryError
		if !errors.As(orderFailed.Err, &insufficient) {
			t.Fatalf("expected wrapped InsufficientInventoryError, got %v", orderFailed.Err)
		}
		failed++
	}
	if ok != 1 || failed != 1 {
		t.Fatalf("expected exactly one winner, got ok=%d failed=%d", ok, failed)
	}

	got := reloadItem(t, ctx, item.ID)
	if !got.Quantity.Equal(dec(t, "1")) || !got.Reserved.IsZero() {
		t.Fatalf("ledger after race: quantity=%s reserved=%s", got.Quantity, got.Reserved)
	}

	var orderCount, projectCount int64
	if err := db.Model(&models.Order{}).Where("business_id = ?", businessId).Count(&orderCount).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&models.Project{}).Where("business_id = ?", businessId).Count(&projectCount).Error; err != nil {
		t.Fatal(err)
	}
	if orderCount != 1 || projectCount != 1 {
		t.Fatalf("expected one order and one project, got orders=%d projects=%d", orderCount, projectCount)
	}

	gotCustomer, err := models.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if !gotCustomer.LifetimeValue.Equal(dec(t, "40000")) {
		t.Fatalf("lifetime value: %s", gotCustomer.LifetimeValue)
	}
}

func TestPaymentSettlesOrderBalance(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	customer := mustCreateCustomer(t, ctx, "Kabir Mehta")
	item := mustCreateItem(t, ctx, "DOOR-01", "10")

	quotation, err := models.CreateQuotation(ctx, &models.NewQuotation{
		CustomerId: customer.ID,
		Division:   models.DivisionRenovation,
		Items: []models.NewQuotationItem{
			{InventoryItemId: intPtr(item.ID), Description: "Door", Quantity: dec(t, "1"), UnitPrice: dec(t, "10000")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if _, err := models.ApproveQuotation(ctx, quotation.ID); err != nil {
		t.Fatalf("ApproveQuotation: %v", err)
	}
	order, err := models.CreateOrder(ctx, &models.NewOrder{QuotationId: &quotation.ID})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	payment, err := models.CreatePaymentRecord(ctx, &models.NewPaymentRecord{
		OrderId:     order.ID,
		Amount:      dec(t, "6000"),
		PaymentType: models.PaymentTypePartial,
		PaymentMode: models.PaymentModeBankTransfer,
	})
	if err != nil {
		t.Fatalf("CreatePaymentRecord: %v", err)
	}
	if !strings.HasPrefix(payment.PaymentNumber, "PAY-") {
		t.Fatalf("payment number %q", payment.PaymentNumber)
	}

	gotOrder, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !gotOrder.BalancePending.Equal(dec(t, "4000")) {
		t.Fatalf("balance pending: %s", gotOrder.BalancePending)
	}

	// overpayment is refused, balance never goes negative
	if _, err := models.CreatePaymentRecord(ctx, &models.NewPaymentRecord{
		OrderId:     order.ID,
		Amount:      dec(t, "5000"),
		PaymentType: models.PaymentTypeFinal,
		PaymentMode: models.PaymentModeCash,
	}); err == nil {
		t.Fatal("expected overpayment to fail")
	}
}
