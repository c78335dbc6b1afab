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

// Enquiry is an incoming lead for one division, the front of the sales
// funnel. Won/Lost is driven by the quotation and order flows, not edited
// directly.
type Enquiry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	Division        Division        `gorm:"size:50;not null" json:"division" binding:"required"`
	Status          EnquiryStatus   `gorm:"size:20;default:New" json:"status"`
	Description     string          `gorm:"type:text" json:"description"`
	EstimatedBudget decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_budget"`
	Source          string          `gorm:"size:100" json:"source"`
	AssignedTo      int             `gorm:"index" json:"assigned_to"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEnquiry struct {
	CustomerId      int             `json:"customer_id" binding:"required"`
	Division        Division        `json:"division" binding:"required"`
	Description     string          `json:"description"`
	EstimatedBudget decimal.Decimal `json:"estimated_budget"`
	Source          string          `json:"source"`
	AssignedTo      int             `json:"assigned_to"`
}

func CreateEnquiry(ctx context.Context, input *NewEnquiry) (*Enquiry, error) {
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

	enquiry := Enquiry{
		BusinessId:      businessId,
		CustomerId:      input.CustomerId,
		Division:        input.Division,
		Status:          EnquiryStatusNew,
		Description:     input.Description,
		EstimatedBudget: input.EstimatedBudget,
		Source:          input.Source,
		AssignedTo:      input.AssignedTo,
	}

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&enquiry).Error; err != nil {
			return err
		}
		// a fresh enquiry moves its customer out of the raw lead pool
		return AdvanceCustomerLifecycleStage(tx, ctx, businessId, input.CustomerId, LifecycleStageProspect)
	})
	if err != nil {
		return nil, err
	}
	return &enquiry, nil
}

func GetEnquiry(ctx context.Context, id int) (*Enquiry, error) {
	return GetResource[Enquiry](ctx, id)
}

func GetAllEnquiries(ctx context.Context, status *EnquiryStatus, division *Division) ([]*Enquiry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*Enquiry

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if division != nil && *division != "" {
		dbCtx = dbCtx.Where("division = ?", *division)
	}
	if err := dbCtx.Order("id DESC").Limit(config.SearchLimit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateEnquiryStatus(ctx context.Context, id int, status EnquiryStatus) (*Enquiry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if !status.IsValid() {
		return nil, errors.New("invalid status")
	}

	enquiry, err := utils.FetchModel[Enquiry](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&enquiry).Update("Status", status).Error; err != nil {
		return nil, err
	}
	enquiry.Status = status
	return enquiry, nil
}

func markEnquiryQuoted(tx *gorm.DB, ctx context.Context, businessId string, enquiryId int) error {
	return tx.WithContext(ctx).Model(&Enquiry{}).
		Where("business_id = ? AND id = ? AND status IN (?)",
			businessId, enquiryId, []EnquiryStatus{EnquiryStatusNew, EnquiryStatusContacted}).
		Update("status", EnquiryStatusQuoted).Error
}

func markEnquiryWon(tx *gorm.DB, ctx context.Context, businessId string, enquiryId int) error {
	return tx.WithContext(ctx).Model(&Enquiry{}).
		Where("business_id = ? AND id = ?", businessId, enquiryId).
		Update("status", EnquiryStatusWon).Error
}
