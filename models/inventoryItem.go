package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"uniqueIndex:idx_item_code;not null" json:"business_id"`
	ItemCode     string          `gorm:"uniqueIndex:idx_item_code;size:50;not null" json:"item_code" binding:"required"`
	Name         string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Category     string          `gorm:"size:100" json:"category"`
	Unit         string          `gorm:"size:20;default:pcs" json:"unit"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Reserved     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reorder_level"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	Supplier     string          `gorm:"size:255" json:"supplier"`
	Location     string          `gorm:"size:255" json:"location"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Available is the sellable quantity, stock on hand minus holds.
func (item *InventoryItem) Available() decimal.Decimal {
	return item.Quantity.Sub(item.Reserved)
}

type NewInventoryItem struct {
	ItemCode     string          `json:"item_code" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Supplier     string          `json:"supplier"`
	Location     string          `json:"location"`
}

/* ledger operations
All three run on the caller's open transaction and rely on conditional
single-row UPDATEs: the availability check and the counter change happen in
one statement, so two racing reservations can never both pass a stale check. */

// ReserveInventory places a hold of qty on the item. Stock on hand is not
// touched. Fails with InsufficientInventoryError when available < qty.
func ReserveInventory(tx *gorm.DB, ctx context.Context, businessId string, itemId int, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidOperation
	}

	res := tx.WithContext(ctx).Exec(
		"UPDATE inventory_items SET reserved = reserved + ? WHERE id = ? AND business_id = ? AND is_active = 1 AND quantity - reserved >= ?",
		qty, itemId, businessId, qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return insufficientInventory(tx, ctx, businessId, itemId, qty)
	}
	return nil
}

// ReleaseInventory hands a hold of qty back to the pool. The decrement and
// the zero floor are one statement, so a reserve landing at the same moment
// is ordered before or after the release, never lost inside it. An oversized
// release is a logic fault, logged but non-fatal.
func ReleaseInventory(tx *gorm.DB, ctx context.Context, businessId string, itemId int, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidOperation
	}

	var item InventoryItem
	if err := tx.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, itemId).First(&item).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	res := tx.WithContext(ctx).Exec(
		"UPDATE inventory_items SET reserved = GREATEST(reserved - ?, 0) WHERE id = ? AND business_id = ?",
		qty, itemId, businessId)
	if res.Error != nil {
		return res.Error
	}

	if item.Reserved.LessThan(qty) {
		config.LogWarn(config.GetLogger(), "models", "ReleaseInventory", "release exceeded hold, clamped reserved to zero",
			map[string]interface{}{"businessId": businessId, "itemId": itemId, "qty": qty.String(), "held": item.Reserved.String()})
	}
	return nil
}

// DeductInventory consumes stock on hand for a fulfilled order line and drops
// the matching hold. Reserved is clamped at zero for quantities that were
// never fully held.
func DeductInventory(tx *gorm.DB, ctx context.Context, businessId string, itemId int, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidOperation
	}

	res := tx.WithContext(ctx).Exec(
		"UPDATE inventory_items SET quantity = quantity - ?, reserved = GREATEST(reserved - ?, 0) WHERE id = ? AND business_id = ? AND quantity >= ?",
		qty, qty, itemId, businessId, qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return insufficientInventory(tx, ctx, businessId, itemId, qty)
	}
	return nil
}

// insufficientInventory distinguishes a missing item from a failed
// availability check and builds the domain error from the current row.
func insufficientInventory(tx *gorm.DB, ctx context.Context, businessId string, itemId int, qty decimal.Decimal) error {
	var item InventoryItem
	if err := tx.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, itemId).First(&item).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	if item.IsActive != nil && !*item.IsActive {
		return errors.New("inventory item is inactive")
	}
	return &InsufficientInventoryError{
		ItemCode:  item.ItemCode,
		Requested: qty,
		Available: item.Available(),
	}
}

/* CRUD */

func CreateInventoryItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if err := utils.ValidateUnique[InventoryItem](ctx, businessId, "item_code", input.ItemCode, 0); err != nil {
		return nil, err
	}

	unit := input.Unit
	if unit == "" {
		unit = "pcs"
	}

	item := InventoryItem{
		BusinessId:   businessId,
		ItemCode:     input.ItemCode,
		Name:         input.Name,
		Category:     input.Category,
		Unit:         unit,
		Quantity:     input.Quantity,
		Reserved:     decimal.Zero,
		ReorderLevel: input.ReorderLevel,
		UnitCost:     input.UnitCost,
		SellingPrice: input.SellingPrice,
		Supplier:     input.Supplier,
		Location:     input.Location,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		if IsDuplicateKeyError(err) {
			return nil, errors.New("duplicate item_code")
		}
		return nil, err
	}
	return &item, nil
}

func UpdateInventoryItem(ctx context.Context, id int, input *NewInventoryItem) (*InventoryItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if err := utils.ValidateUnique[InventoryItem](ctx, businessId, "item_code", input.ItemCode, id); err != nil {
		return nil, err
	}

	item, err := utils.FetchModel[InventoryItem](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// quantity/reserved are only moved by ledger operations, not by edits
	if err := db.WithContext(ctx).Model(&item).
		Updates(map[string]interface{}{
			"ItemCode":     input.ItemCode,
			"Name":         input.Name,
			"Category":     input.Category,
			"Unit":         input.Unit,
			"ReorderLevel": input.ReorderLevel,
			"UnitCost":     input.UnitCost,
			"SellingPrice": input.SellingPrice,
			"Supplier":     input.Supplier,
			"Location":     input.Location,
		}).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// RestockInventoryItem adds received stock on hand.
func RestockInventoryItem(ctx context.Context, id int, qty decimal.Decimal) (*InventoryItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}
	if !qty.IsPositive() {
		return nil, ErrInvalidOperation
	}

	db := config.GetDB()
	res := db.WithContext(ctx).Exec(
		"UPDATE inventory_items SET quantity = quantity + ? WHERE id = ? AND business_id = ?",
		qty, id, businessId)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return utils.FetchModel[InventoryItem](ctx, businessId, id)
}

func DeactivateInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	item, err := utils.FetchModel[InventoryItem](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if item.Reserved.IsPositive() {
		return nil, errors.New("item has outstanding reservations")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&item).Update("IsActive", utils.NewFalse()).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func GetInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	return GetResource[InventoryItem](ctx, id)
}

func GetAllInventoryItems(ctx context.Context, name *string, category *string, activeOnly bool) ([]*InventoryItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*InventoryItem

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR item_code LIKE ?", "%"+*name+"%", "%"+*name+"%")
	}
	if category != nil && len(*category) > 0 {
		dbCtx = dbCtx.Where("category = ?", *category)
	}
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = 1")
	}
	if err := dbCtx.Order("item_code").Limit(config.SearchLimit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetReorderAlerts lists active items whose sellable quantity fell to or
// below the reorder level.
func GetReorderAlerts(ctx context.Context) ([]*InventoryItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*InventoryItem
	if err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = 1 AND quantity - reserved <= reorder_level", businessId).
		Order("item_code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
