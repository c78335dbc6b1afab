package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "A"
	UserRoleManager UserRole = "M"
	UserRoleStaff   UserRole = "S"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      *string   `gorm:"size:100;unique" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Password   string    `gorm:"size:255;not null" json:"password"`
	Role       UserRole  `gorm:"type:enum('A','M','S');default:S" json:"role"`
	Division   Division  `gorm:"size:50" json:"division"`
	IsActive   *bool     `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	BusinessId string   `json:"business_id"`
	Username   string   `json:"username" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Password   string   `json:"password" binding:"required"`
	Role       UserRole `json:"role"`
	Division   Division `json:"division"`
	IsActive   *bool    `json:"is_active"`
}

type LoginInfo struct {
	Token        string   `json:"token"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Division     Division `json:"division"`
	BusinessName string   `json:"business_name"`
	Timezone     string   `json:"timezone"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var result LoginInfo

	user := User{}
	if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
		return &result, errors.New("invalid username or password")
	}

	err := utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	if user.IsActive == nil || !*user.IsActive {
		return &result, errors.New("user is disabled")
	}

	token, err := utils.JwtGenerate(user.ID, user.Username, user.BusinessId, string(user.Division))
	if err != nil {
		return &result, err
	}

	result.Token = token
	result.Name = user.Username
	result.Role = string(user.Role)
	result.Division = user.Division

	if business, err := GetBusinessById(ctx, user.BusinessId); err == nil {
		result.BusinessName = business.Name
		result.Timezone = business.Timezone
	}

	return &result, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()
	var count int64

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return &User{}, errors.New("invalid email address")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return &User{}, errors.New("invalid phone number")
		}
	}
	if input.Division != "" && !input.Division.IsValid() {
		return &User{}, errors.New("invalid division")
	}

	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username).Or("email = ?", input.Email).Count(&count).Error
	if err != nil {
		return &User{}, err
	}
	if count > 0 {
		return &User{}, errors.New("duplicate username or email")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return &User{}, err
	}
	input.Email = strings.ToLower(input.Email)

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	role := input.Role
	if role == "" {
		role = UserRoleStaff
	}

	user := User{
		BusinessId: input.BusinessId,
		Username:   input.Username,
		Name:       input.Name,
		Phone:      input.Phone,
		Password:   hashedPassword,
		Role:       role,
		Division:   input.Division,
		IsActive:   isActive,
	}
	if input.Email != "" {
		user.Email = &input.Email
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if IsDuplicateKeyError(err) {
			return &User{}, errors.New("duplicate username or email")
		}
		return &User{}, err
	}

	user.PrepareGive()
	return &user, nil
}

func GetAllUsers(ctx context.Context) ([]*User, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*User
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Find(&results).Error; err != nil {
		return results, err
	}

	for i, u := range results {
		u.Password = ""
		results[i] = u
	}

	return results, nil
}
