package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Quotation struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	QuotationNumber string          `gorm:"uniqueIndex;size:50;not null" json:"quotation_number"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	Division        Division        `gorm:"size:50;not null" json:"division" binding:"required"`
	LinkedEnquiryId *int            `gorm:"index" json:"linked_enquiry_id"`
	Status          QuotationStatus `gorm:"size:20;default:Draft" json:"status"`
	QuotationDate   time.Time       `json:"quotation_date"`
	ValidUntil      *time.Time      `json:"valid_until"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	NetTotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_total"`
	Terms           string          `gorm:"type:text" json:"terms"`
	Notes           string          `gorm:"type:text" json:"notes"`
	// flipped exactly once when Rejected/Expired hands the holds back
	ReservationsReleased *bool                  `gorm:"not null;default:false" json:"reservations_released"`
	Items                []QuotationItem        `gorm:"foreignKey:QuotationId" json:"items"`
	Reservations         []QuotationReservation `gorm:"foreignKey:QuotationId" json:"reservations"`
	CreatedAt            time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuotationItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	QuotationId     int             `gorm:"index;not null" json:"quotation_id"`
	InventoryItemId *int            `gorm:"index" json:"inventory_item_id"`
	Description     string          `gorm:"size:255;not null" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_percent"`
	TaxPercent      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_percent"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Reserved        *bool           `gorm:"not null;default:false" json:"reserved"`
}

// QuotationReservation records an actual hold placed on the ledger. Releases
// walk these rows, never the quotation lines, so skipped best-effort lines
// can never be released.
type QuotationReservation struct {
	ID              int             `gorm:"primary_key" json:"id"`
	QuotationId     int             `gorm:"index;not null" json:"quotation_id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewQuotationItem struct {
	InventoryItemId *int            `json:"inventory_item_id"`
	Description     string          `json:"description" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
}

type NewQuotation struct {
	CustomerId      int                `json:"customer_id" binding:"required"`
	Division        Division           `json:"division" binding:"required"`
	LinkedEnquiryId *int               `json:"linked_enquiry_id"`
	QuotationDate   *time.Time         `json:"quotation_date"`
	ValidUntil      *time.Time         `json:"valid_until"`
	Terms           string             `json:"terms"`
	Notes           string             `json:"notes"`
	Items           []NewQuotationItem `json:"items" binding:"required"`
}

// quotationStatusTransitions is the allowed forward edges of the status
// machine. Approved, Rejected and Expired are terminal.
var quotationStatusTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:   {QuotationStatusSent, QuotationStatusRevised, QuotationStatusApproved, QuotationStatusRejected, QuotationStatusExpired},
	QuotationStatusSent:    {QuotationStatusRevised, QuotationStatusApproved, QuotationStatusRejected, QuotationStatusExpired},
	QuotationStatusRevised: {QuotationStatusSent, QuotationStatusApproved, QuotationStatusRejected, QuotationStatusExpired},
}

func (s QuotationStatus) canTransitionTo(next QuotationStatus) bool {
	for _, allowed := range quotationStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type documentTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	NetTotal       decimal.Decimal
}

// computeQuotationTotals derives the document totals from the lines. Line
// discount applies to the line amount, tax applies after the discount.
func computeQuotationTotals(items []QuotationItem) documentTotals {
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

func mapQuotationItems(input []NewQuotationItem) ([]QuotationItem, error) {
	if len(input) == 0 {
		return nil, errors.New("at least one line item is required")
	}
	items := make([]QuotationItem, 0, len(input))
	for _, in := range input {
		if !in.Quantity.IsPositive() {
			return nil, errors.New("line quantity must be positive")
		}
		if in.UnitPrice.IsNegative() {
			return nil, errors.New("line unit price cannot be negative")
		}
		items = append(items, QuotationItem{
			InventoryItemId: in.InventoryItemId,
			Description:     in.Description,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			TaxPercent:      in.TaxPercent,
			Amount:          utils.LineAmount(in.Quantity, in.UnitPrice),
			Reserved:        utils.NewFalse(),
		})
	}
	return items, nil
}

// CreateQuotation numbers the document, stores it with computed totals and
// places best-effort holds on every stocked line. A line whose stock cannot
// cover the quantity is kept on the quotation but left unreserved; with the
// strict policy enabled the whole creation fails instead.
func CreateQuotation(ctx context.Context, input *NewQuotation) (*Quotation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if !input.Division.IsValid() {
		return nil, errors.New("invalid division")
	}
	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return nil, errors.New("customer not found")
	}
	if input.LinkedEnquiryId != nil {
		if err := utils.ValidateResourceId[Enquiry](ctx, businessId, *input.LinkedEnquiryId); err != nil {
			return nil, errors.New("enquiry not found")
		}
	}

	items, err := mapQuotationItems(input.Items)
	if err != nil {
		return nil, err
	}
	totals := computeQuotationTotals(items)

	quotationDate := time.Now().UTC()
	if input.QuotationDate != nil {
		quotationDate = *input.QuotationDate
	}

	quotation := Quotation{
		BusinessId:           businessId,
		CustomerId:           input.CustomerId,
		Division:             input.Division,
		LinkedEnquiryId:      input.LinkedEnquiryId,
		Status:               QuotationStatusDraft,
		QuotationDate:        quotationDate,
		ValidUntil:           input.ValidUntil,
		Subtotal:             totals.Subtotal,
		DiscountAmount:       totals.DiscountAmount,
		TaxAmount:            totals.TaxAmount,
		NetTotal:             totals.NetTotal,
		Terms:                input.Terms,
		Notes:                input.Notes,
		ReservationsReleased: utils.NewFalse(),
		Items:                items,
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		number, err := NextTransactionNumber(tx, ctx, businessId, ModuleQuotation, quotationDate)
		if err != nil {
			return err
		}
		quotation.QuotationNumber = number

		if err := tx.WithContext(ctx).Create(&quotation).Error; err != nil {
			return err
		}

		for i := range quotation.Items {
			item := &quotation.Items[i]
			if item.InventoryItemId == nil {
				continue
			}
			err := ReserveInventory(tx, ctx, businessId, *item.InventoryItemId, item.Quantity)
			if err != nil {
				var insufficient *InsufficientInventoryError
				if errors.As(err, &insufficient) && !config.StrictQuotationReservation() {
					config.LogWarn(config.GetLogger(), "models", "CreateQuotation",
						"line left unreserved, insufficient stock",
						map[string]interface{}{
							"quotationNumber": quotation.QuotationNumber,
							"itemCode":        insufficient.ItemCode,
							"requested":       insufficient.Requested.String(),
							"available":       insufficient.Available.String(),
						})
					continue
				}
				return err
			}
			item.Reserved = utils.NewTrue()
			if err := tx.WithContext(ctx).Model(item).Update("Reserved", true).Error; err != nil {
				return err
			}
			reservation := QuotationReservation{
				QuotationId:     quotation.ID,
				InventoryItemId: *item.InventoryItemId,
				Quantity:        item.Quantity,
			}
			if err := tx.WithContext(ctx).Create(&reservation).Error; err != nil {
				return err
			}
			quotation.Reservations = append(quotation.Reservations, reservation)
		}

		if input.LinkedEnquiryId != nil {
			if err := markEnquiryQuoted(tx, ctx, businessId, *input.LinkedEnquiryId); err != nil {
				return err
			}
		}

		return RecordStatusTransition(tx, ctx, businessId, quotation.ID,
			EventReferenceTypeQuotation, "", string(QuotationStatusDraft))
	})
	if err != nil {
		return nil, err
	}

	return &quotation, nil
}

// UpdateQuotationStatus drives the quotation status machine. Entering
// Rejected or Expired releases the recorded holds exactly once, guarded by
// the reservations_released flag under a row lock.
func UpdateQuotationStatus(ctx context.Context, id int, newStatus QuotationStatus) (*Quotation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if !newStatus.IsValid() {
		return nil, errors.New("invalid status")
	}

	var quotation Quotation
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, id).
			First(&quotation).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if quotation.Status == newStatus {
			// idempotent replay
			return nil
		}
		if !quotation.Status.canTransitionTo(newStatus) {
			return invalidTransitionError("quotation", string(quotation.Status), string(newStatus))
		}

		oldStatus := quotation.Status
		if err := tx.WithContext(ctx).Model(&quotation).Update("Status", newStatus).Error; err != nil {
			return err
		}
		quotation.Status = newStatus

		if newStatus.releasesReservations() && !utils.DereferencePtr(quotation.ReservationsReleased) {
			if err := releaseQuotationReservations(tx, ctx, &quotation); err != nil {
				return err
			}
		}

		return RecordStatusTransition(tx, ctx, businessId, quotation.ID,
			EventReferenceTypeQuotation, string(oldStatus), string(newStatus))
	})
	if err != nil {
		return nil, err
	}

	return &quotation, nil
}

// ApproveQuotation is the explicit happy-path transition. Holds stay in
// place; only order fulfillment converts them into deductions.
func ApproveQuotation(ctx context.Context, id int) (*Quotation, error) {
	return UpdateQuotationStatus(ctx, id, QuotationStatusApproved)
}

// releaseQuotationReservations walks the recorded holds and hands each back
// to the ledger, then flips the released flag. Caller holds the quotation row
// lock.
func releaseQuotationReservations(tx *gorm.DB, ctx context.Context, quotation *Quotation) error {
	var reservations []QuotationReservation
	if err := tx.WithContext(ctx).
		Where("quotation_id = ?", quotation.ID).Find(&reservations).Error; err != nil {
		return err
	}

	for _, r := range reservations {
		if err := ReleaseInventory(tx, ctx, quotation.BusinessId, r.InventoryItemId, r.Quantity); err != nil {
			return err
		}
	}

	if err := tx.WithContext(ctx).Model(quotation).
		Update("ReservationsReleased", true).Error; err != nil {
		return err
	}
	quotation.ReservationsReleased = utils.NewTrue()
	return nil
}

func GetQuotation(ctx context.Context, id int) (*Quotation, error) {
	return GetResource[Quotation](ctx, id, "Items", "Reservations")
}

func GetAllQuotations(ctx context.Context, status *QuotationStatus, customerId *int, division *Division) ([]*Quotation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*Quotation

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

// ExpireStaleQuotations sweeps active quotations whose validity window
// has passed. Each expiry goes through the status machine so holds are
// released with the same exactly-once guarantee as a manual rejection.
func ExpireStaleQuotations(ctx context.Context, businessId string, now time.Time) (int, error) {
	db := config.GetDB()
	var ids []int
	if err := db.WithContext(ctx).Model(&Quotation{}).
		Where("business_id = ? AND status IN (?) AND valid_until IS NOT NULL AND valid_until < ?",
			businessId, []QuotationStatus{QuotationStatusDraft, QuotationStatusSent, QuotationStatusRevised}, now).
		Select("id").Scan(&ids).Error; err != nil {
		return 0, err
	}

	expired := 0
	stageCtx := utils.SetBusinessIdInContext(ctx, businessId)
	for _, id := range ids {
		if _, err := UpdateQuotationStatus(stageCtx, id, QuotationStatusExpired); err != nil {
			config.LogError(config.GetLogger(), "models", "ExpireStaleQuotations", "expire failed",
				map[string]interface{}{"quotationId": id}, err)
			continue
		}
		expired++
	}
	return expired, nil
}
