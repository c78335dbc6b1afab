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

type Customer struct {
	ID             int                    `gorm:"primary_key" json:"id"`
	BusinessId     string                 `gorm:"index;not null" json:"business_id"`
	FullName       string                 `gorm:"size:255;not null" json:"full_name" binding:"required"`
	Email          *string                `gorm:"size:255" json:"email"`
	Phone          string                 `gorm:"size:20;not null" json:"phone" binding:"required"`
	Address        string                 `gorm:"type:text" json:"address"`
	City           string                 `gorm:"size:100" json:"city"`
	LifecycleStage CustomerLifecycleStage `gorm:"size:20;default:Lead" json:"lifecycle_stage"`
	LifetimeValue  decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"lifetime_value"`
	Source         string                 `gorm:"size:100" json:"source"`
	Notes          string                 `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerValueEntry is the append-only audit trail behind lifetime_value.
// The unique order id makes the increment exactly-once per order.
type CustomerValueEntry struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	CustomerId int             `gorm:"index;not null" json:"customer_id"`
	OrderId    int             `gorm:"uniqueIndex;not null" json:"order_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewCustomer struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Source   string `json:"source"`
	Notes    string `json:"notes"`
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return nil, errors.New("invalid phone number")
	}

	customer := Customer{
		BusinessId:     businessId,
		FullName:       input.FullName,
		Phone:          input.Phone,
		Address:        input.Address,
		City:           input.City,
		LifecycleStage: LifecycleStageLead,
		LifetimeValue:  decimal.Zero,
		Source:         input.Source,
		Notes:          input.Notes,
	}
	if input.Email != "" {
		customer.Email = &input.Email
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return nil, errors.New("invalid phone number")
	}

	customer, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// lifecycle_stage and lifetime_value are projection-owned, edits never touch them
	if err := db.WithContext(ctx).Model(&customer).
		Updates(map[string]interface{}{
			"FullName": input.FullName,
			"Email":    input.Email,
			"Phone":    input.Phone,
			"Address":  input.Address,
			"City":     input.City,
			"Source":   input.Source,
			"Notes":    input.Notes,
		}).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return GetResource[Customer](ctx, id)
}

func GetAllCustomers(ctx context.Context, name *string, stage *CustomerLifecycleStage) ([]*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*Customer

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("full_name LIKE ? OR phone LIKE ?", "%"+*name+"%", "%"+*name+"%")
	}
	if stage != nil && *stage != "" {
		dbCtx = dbCtx.Where("lifecycle_stage = ?", *stage)
	}
	if err := dbCtx.Order("full_name").Limit(config.SearchLimit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// AdvanceCustomerLifecycleStage moves the customer forward in the funnel.
// Backward moves are ignored, not errors, so replays stay harmless. Inactive
// may be set from any stage and left again only through a forward move.
func AdvanceCustomerLifecycleStage(tx *gorm.DB, ctx context.Context, businessId string, customerId int, stage CustomerLifecycleStage) error {
	targetRank, ok := lifecycleStageRank[stage]
	if !ok {
		if stage != LifecycleStageInactive {
			return ErrInvalidOperation
		}
		res := tx.WithContext(ctx).Exec(
			"UPDATE customers SET lifecycle_stage = ? WHERE id = ? AND business_id = ?",
			LifecycleStageInactive, customerId, businessId)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		return nil
	}

	// guarded update, a concurrent higher stage wins and this becomes a no-op
	keepable := make([]CustomerLifecycleStage, 0, len(lifecycleStageRank))
	for s, rank := range lifecycleStageRank {
		if rank < targetRank {
			keepable = append(keepable, s)
		}
	}
	keepable = append(keepable, LifecycleStageInactive)

	res := tx.WithContext(ctx).Exec(
		"UPDATE customers SET lifecycle_stage = ? WHERE id = ? AND business_id = ? AND lifecycle_stage IN (?)",
		stage, customerId, businessId, keepable)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// either already at or past the stage, or the customer is missing
		var count int64
		if err := tx.WithContext(ctx).Model(&Customer{}).
			Where("business_id = ? AND id = ?", businessId, customerId).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.ErrorRecordNotFound
		}
	}
	return nil
}

// ApplyOrderToCustomer projects a confirmed order onto the customer record:
// the stage advances to Customer (never backwards) and lifetime_value grows
// by the order's net total. The value entry's unique order id guarantees the
// increment is applied exactly once even if the caller retries.
func ApplyOrderToCustomer(tx *gorm.DB, ctx context.Context, businessId string, customerId int, orderId int, netTotal decimal.Decimal) error {

	entry := CustomerValueEntry{
		BusinessId: businessId,
		CustomerId: customerId,
		OrderId:    orderId,
		Amount:     netTotal,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		if IsDuplicateKeyError(err) {
			// order already applied, projection is idempotent
			return nil
		}
		return err
	}

	// a zero net total leaves the row untouched, which MySQL reports as zero
	// affected rows, so only a positive delta can prove the customer exists
	if !netTotal.IsZero() {
		res := tx.WithContext(ctx).Exec(
			"UPDATE customers SET lifetime_value = lifetime_value + ? WHERE id = ? AND business_id = ?",
			netTotal, customerId, businessId)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
	}

	return AdvanceCustomerLifecycleStage(tx, ctx, businessId, customerId, LifecycleStageCustomer)
}
