package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"gorm.io/gorm"
)

// ServiceTicket is an after-sales support request, optionally tied to the
// order or project it concerns.
type ServiceTicket struct {
	ID           int            `gorm:"primary_key" json:"id"`
	BusinessId   string         `gorm:"index;not null" json:"business_id"`
	TicketNumber string         `gorm:"uniqueIndex;size:50;not null" json:"ticket_number"`
	CustomerId   int            `gorm:"index;not null" json:"customer_id" binding:"required"`
	OrderId      *int           `gorm:"index" json:"order_id"`
	ProjectId    *int           `gorm:"index" json:"project_id"`
	Division     Division       `gorm:"size:50" json:"division"`
	Subject      string         `gorm:"size:255;not null" json:"subject" binding:"required"`
	Description  string         `gorm:"type:text" json:"description"`
	Status       TicketStatus   `gorm:"size:20;default:Open" json:"status"`
	Priority     TicketPriority `gorm:"size:20;default:Medium" json:"priority"`
	AssignedTo   int            `gorm:"index" json:"assigned_to"`
	ResolvedAt   *time.Time     `json:"resolved_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewServiceTicket struct {
	CustomerId  int            `json:"customer_id" binding:"required"`
	OrderId     *int           `json:"order_id"`
	ProjectId   *int           `json:"project_id"`
	Division    Division       `json:"division"`
	Subject     string         `json:"subject" binding:"required"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	AssignedTo  int            `json:"assigned_to"`
}

func CreateServiceTicket(ctx context.Context, input *NewServiceTicket) (*ServiceTicket, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return nil, errors.New("customer not found")
	}
	if input.OrderId != nil {
		if err := utils.ValidateResourceId[Order](ctx, businessId, *input.OrderId); err != nil {
			return nil, errors.New("order not found")
		}
	}
	if input.ProjectId != nil {
		if err := utils.ValidateResourceId[Project](ctx, businessId, *input.ProjectId); err != nil {
			return nil, errors.New("project not found")
		}
	}

	priority := input.Priority
	if priority == "" {
		priority = TicketPriorityMedium
	}
	assignedTo := input.AssignedTo
	if assignedTo == 0 {
		assignedTo = userIdFromContext(ctx)
	}
	division := input.Division
	if division == "" {
		if v, ok := utils.GetDivisionFromContext(ctx); ok {
			division = Division(v)
		}
	}
	if division != "" && !division.IsValid() {
		return nil, errors.New("invalid division")
	}

	var ticket ServiceTicket
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		number, err := NextTransactionNumber(tx, ctx, businessId, ModuleTicket, now)
		if err != nil {
			return err
		}

		ticket = ServiceTicket{
			BusinessId:   businessId,
			TicketNumber: number,
			CustomerId:   input.CustomerId,
			OrderId:      input.OrderId,
			ProjectId:    input.ProjectId,
			Division:     division,
			Subject:      input.Subject,
			Description:  input.Description,
			Status:       TicketStatusOpen,
			Priority:     priority,
			AssignedTo:   assignedTo,
		}
		if err := tx.WithContext(ctx).Create(&ticket).Error; err != nil {
			return err
		}

		return RecordStatusTransition(tx, ctx, businessId, ticket.ID,
			EventReferenceTypeTicket, "", string(TicketStatusOpen))
	})
	if err != nil {
		return nil, err
	}

	return &ticket, nil
}

func UpdateServiceTicketStatus(ctx context.Context, id int, status TicketStatus) (*ServiceTicket, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	ticket, err := utils.FetchModel[ServiceTicket](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	updates := map[string]interface{}{"Status": status}
	if status == TicketStatusResolved && ticket.ResolvedAt == nil {
		now := time.Now().UTC()
		updates["ResolvedAt"] = &now
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Model(&ticket).Updates(updates).Error; err != nil {
			return err
		}
		ticket.Status = status
		return RecordStatusTransition(tx, ctx, businessId, ticket.ID,
			EventReferenceTypeTicket, string(oldStatus), string(status))
	})
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

func GetServiceTicket(ctx context.Context, id int) (*ServiceTicket, error) {
	return GetResource[ServiceTicket](ctx, id)
}

func GetAllServiceTickets(ctx context.Context, status *TicketStatus, priority *TicketPriority) ([]*ServiceTicket, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*ServiceTicket

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if priority != nil && *priority != "" {
		dbCtx = dbCtx.Where("priority = ?", *priority)
	}
	if err := dbCtx.Order("id DESC").Limit(config.SearchLimit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
