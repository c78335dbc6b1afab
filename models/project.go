package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project tracks delivery of a confirmed order. Exactly one project exists
// per order, enforced by the unique linked order id.
type Project struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	CustomerId    int             `gorm:"index;not null" json:"customer_id"`
	Division      Division        `gorm:"size:50;not null" json:"division"`
	LinkedOrderId int             `gorm:"uniqueIndex;not null" json:"linked_order_id"`
	LeadId        *int            `gorm:"index" json:"lead_id"`
	Status        ProjectStatus   `gorm:"size:20;default:planning" json:"status"`
	Budget        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// createProjectForOrder runs inside the order fulfillment transaction. The
// project is named after the customer and division and budgeted at the
// order's net total.
func createProjectForOrder(tx *gorm.DB, ctx context.Context, order *Order, customer *Customer, leadId *int) (*Project, error) {
	project := Project{
		BusinessId:    order.BusinessId,
		Name:          fmt.Sprintf("%s - %s Project", customer.FullName, order.Division),
		CustomerId:    order.CustomerId,
		Division:      order.Division,
		LinkedOrderId: order.ID,
		LeadId:        leadId,
		Status:        ProjectStatusPlanning,
		Budget:        order.NetTotal,
	}
	if err := tx.WithContext(ctx).Create(&project).Error; err != nil {
		if IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("project already exists for order %s", order.OrderNumber)
		}
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	return GetResource[Project](ctx, id)
}

func GetAllProjects(ctx context.Context, status *ProjectStatus, division *Division) ([]*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*Project

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

func UpdateProjectStatus(ctx context.Context, id int, status ProjectStatus) (*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	project, err := utils.FetchModel[Project](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&project).Update("Status", status).Error; err != nil {
		return nil, err
	}
	project.Status = status
	return project, nil
}
