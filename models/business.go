package models

import (
	"context"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	Country     string    `gorm:"size:100" json:"country"`
	City        string    `gorm:"size:100" json:"city"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	business := Business{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Country:     input.Country,
		City:        input.City,
		Timezone:    input.Timezone,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	db := config.GetDB()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &business, nil
}
