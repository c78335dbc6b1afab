package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID          int    `gorm:"primary_key" json:"id"`
	BusinessId  string `gorm:"index;not null" json:"business_id"`
	OrderNumber string `gorm:"uniqueIndex;size:50;not null" json:"order_number"`
	// nil for standalone orders; uniqueness only binds when a quotation is linked
	LinkedQuotationId *int `gorm:"uniqueIndex" json:"linked_quotation_id"`
	CustomerId        int             `gorm:"index;not null" json:"customer_id"`
	Division          Division        `gorm:"size:50;not null" json:"division"`
	Status            OrderStatus     `gorm:"size:20;default:Confirmed" json:"status"`
	OrderDate         time.Time       `json:"order_date"`
	ExpectedDelivery  *time.Time      `json:"expected_delivery"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	NetTotal          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_total"`
	AdvancePaid       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"advance_paid"`
	BalancePending    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_pending"`
	Notes             string          `gorm:"type:text" json:"notes"`
	Items             []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrderId         int             `gorm:"index;not null" json:"order_id"`
	InventoryItemId *int            `gorm:"index" json:"inventory_item_id"`
	Description     string          `gorm:"size:255;not null" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_percent"`
	TaxPercent      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_percent"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
}

type NewOrderItem struct {
	InventoryItemId *int            `json:"inventory_item_id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
}

// NewOrder either converts an approved quotation (QuotationId set, lines and
// totals come from the quotation) or places a standalone order (CustomerId,
// Division and Items given directly).
type NewOrder struct {
	QuotationId      *int            `json:"quotation_id"`
	CustomerId       int             `json:"customer_id"`
	Division         Division        `json:"division"`
	Items            []NewOrderItem  `json:"items"`
	AdvancePaid      decimal.Decimal `json:"advance_paid"`
	ExpectedDelivery *time.Time      `json:"expected_delivery"`
	Notes            string          `json:"notes"`
}

func mapOrderItems(input []NewOrderItem) ([]OrderItem, error) {
	if len(input) == 0 {
		return nil, errors.New("at least one line item is required")
	}
	items := make([]OrderItem, 0, len(input))
	for _, in := range input {
		if !in.Quantity.IsPositive() {
			return nil, errors.New("line quantity must be positive")
		}
		if in.UnitPrice.IsNegative() {
			return nil, errors.New("line unit price cannot be negative")
		}
		items = append(items, OrderItem{
			InventoryItemId: in.InventoryItemId,
			Description:     in.Description,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			TaxPercent:      in.TaxPercent,
			Amount:          utils.LineAmount(in.Quantity, in.UnitPrice),
		})
	}
	return items, nil
}

func computeOrderTotals(items []OrderItem) documentTotals {
	totals := documentTotals{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
	}
	for _, item := range items {
		totals.Subtotal = totals.Subtotal.Add(item.Amount)
		lineDiscount := utils.CalculateDiscountAmount(item.Amount, item.DiscountPercent)
		totals.DiscountAmount = totals.DiscountAmount.Add(lineDiscount)
		totals.TaxAmount = totals.TaxAmount.Add(
			utils.CalculateTaxAmount(item.Amount.Sub(lineDiscount), item.TaxPercent))
	}
	totals.NetTotal = utils.CalculateNetTotal(totals.Subtotal, totals.DiscountAmount, totals.TaxAmount)
	return totals
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusConfirmed:  {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusClosed},
}

func (s OrderStatus) canTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// acquireFulfillmentLock serializes fulfillment per business on the tx's
// connection. GET_LOCK is connection-scoped, so this must run on the same
// *gorm.DB that performs the fulfillment writes.
func acquireFulfillmentLock(tx *gorm.DB, businessId string) error {
	lockName := "order_fulfillment:" + businessId
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("could not acquire fulfillment lock")
	}
	return nil
}

func releaseFulfillmentLock(tx *gorm.DB, businessId string) {
	lockName := "order_fulfillment:" + businessId
	var released int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
}

// CreateOrder turns an approved quotation, or a standalone request carrying
// its own line items, into a confirmed order as one unit of work: allocate
// the order number, insert the order with computed totals, deduct stock per
// line, project the order onto the customer and open the delivery project.
// Any failure rolls the whole unit back and surfaces as
// OrderCreationFailedError; stock, lifetime value and project state are
// untouched in that case.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	var order Order
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := acquireFulfillmentLock(tx, businessId); err != nil {
			return err
		}
		defer releaseFulfillmentLock(tx, businessId)

		var (
			quotation       *Quotation
			items           []OrderItem
			totals          documentTotals
			customerId      int
			division        Division
			linkedEnquiryId *int
		)
		if input.QuotationId != nil {
			var q Quotation
			if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
				Preload("Items").
				Where("business_id = ? AND id = ?", businessId, *input.QuotationId).
				First(&q).Error; err != nil {
				return utils.ErrorRecordNotFound
			}
			if q.Status != QuotationStatusApproved {
				return fmt.Errorf("%w: quotation %s is not approved", ErrInvalidOperation, q.QuotationNumber)
			}
			quotation = &q
			customerId = q.CustomerId
			division = q.Division
			linkedEnquiryId = q.LinkedEnquiryId
			totals = documentTotals{
				Subtotal:       q.Subtotal,
				DiscountAmount: q.DiscountAmount,
				TaxAmount:      q.TaxAmount,
				NetTotal:       q.NetTotal,
			}
			items = make([]OrderItem, 0, len(q.Items))
			for _, qi := range q.Items {
				items = append(items, OrderItem{
					InventoryItemId: qi.InventoryItemId,
					Description:     qi.Description,
					Quantity:        qi.Quantity,
					UnitPrice:       qi.UnitPrice,
					DiscountPercent: qi.DiscountPercent,
					TaxPercent:      qi.TaxPercent,
					Amount:          qi.Amount,
				})
			}
		} else {
			if input.CustomerId <= 0 {
				return errors.New("customer is required for a standalone order")
			}
			if !input.Division.IsValid() {
				return errors.New("invalid division")
			}
			mapped, err := mapOrderItems(input.Items)
			if err != nil {
				return err
			}
			items = mapped
			totals = computeOrderTotals(items)
			customerId = input.CustomerId
			division = input.Division
		}

		var customer Customer
		if err := tx.WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, customerId).
			First(&customer).Error; err != nil {
			return errors.New("customer not found")
		}

		if input.AdvancePaid.IsNegative() {
			return errors.New("advance paid cannot be negative")
		}
		if input.AdvancePaid.GreaterThan(totals.NetTotal) {
			return errors.New("advance paid exceeds order total")
		}

		orderDate := time.Now().UTC()
		number, err := NextTransactionNumber(tx, ctx, businessId, ModuleOrder, orderDate)
		if err != nil {
			return err
		}

		order = Order{
			BusinessId:        businessId,
			OrderNumber:       number,
			LinkedQuotationId: input.QuotationId,
			CustomerId:        customerId,
			Division:          division,
			Status:            OrderStatusConfirmed,
			OrderDate:         orderDate,
			ExpectedDelivery:  input.ExpectedDelivery,
			Subtotal:          totals.Subtotal,
			DiscountAmount:    totals.DiscountAmount,
			TaxAmount:         totals.TaxAmount,
			NetTotal:          totals.NetTotal,
			AdvancePaid:       input.AdvancePaid,
			BalancePending:    totals.NetTotal.Sub(input.AdvancePaid),
			Notes:             input.Notes,
			Items:             items,
		}

		if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
			if IsDuplicateKeyError(err) && quotation != nil {
				return fmt.Errorf("order already exists for quotation %s", quotation.QuotationNumber)
			}
			return err
		}

		// fulfillment is strict even for lines the quotation left unreserved
		for _, item := range order.Items {
			if item.InventoryItemId == nil {
				continue
			}
			if err := DeductInventory(tx, ctx, businessId, *item.InventoryItemId, item.Quantity); err != nil {
				return err
			}
		}

		if err := ApplyOrderToCustomer(tx, ctx, businessId, order.CustomerId, order.ID, order.NetTotal); err != nil {
			return err
		}

		if _, err := createProjectForOrder(tx, ctx, &order, &customer, linkedEnquiryId); err != nil {
			return err
		}

		if linkedEnquiryId != nil {
			if err := markEnquiryWon(tx, ctx, businessId, *linkedEnquiryId); err != nil {
				return err
			}
		}

		return RecordStatusTransition(tx, ctx, businessId, order.ID,
			EventReferenceTypeOrder, "", string(OrderStatusConfirmed))
	})
	if err != nil {
		correlationId := correlationIdFromContextOrNew(ctx)
		userName, _ := utils.GetUserNameFromContext(ctx)
		config.LogError(config.GetLogger(), "models", "CreateOrder", "fulfillment rolled back",
			map[string]interface{}{"quotationId": input.QuotationId, "correlationId": correlationId, "userName": userName}, err)
		return nil, &OrderCreationFailedError{CorrelationId: correlationId, Err: err}
	}

	return &order, nil
}

func UpdateOrderStatus(ctx context.Context, id int, newStatus OrderStatus) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if !newStatus.IsValid() {
		return nil, errors.New("invalid status")
	}

	var order Order
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, id).
			First(&order).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if order.Status == newStatus {
			return nil
		}
		if !order.Status.canTransitionTo(newStatus) {
			return invalidTransitionError("order", string(order.Status), string(newStatus))
		}

		oldStatus := order.Status
		if err := tx.WithContext(ctx).Model(&order).Update("Status", newStatus).Error; err != nil {
			return err
		}
		order.Status = newStatus

		return RecordStatusTransition(tx, ctx, businessId, order.ID,
			EventReferenceTypeOrder, string(oldStatus), string(newStatus))
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return GetResource[Order](ctx, id, "Items")
}

func GetAllOrders(ctx context.Context, status *OrderStatus, customerId *int, division *Division) ([]*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*Order

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if division != nil && *division != "" {
		dbCtx = dbCtx.Where("division = ?", *division)
	}
	if err := dbCtx.Preload("Items").Order("id DESC").Limit(config.SearchLimit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
