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

type PaymentRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	PaymentNumber string          `gorm:"uniqueIndex;size:50;not null" json:"payment_number"`
	OrderId       int             `gorm:"index;not null" json:"order_id" binding:"required"`
	CustomerId    int             `gorm:"index;not null" json:"customer_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentType   PaymentType     `gorm:"size:20;not null" json:"payment_type"`
	PaymentMode   PaymentMode     `gorm:"size:20;not null" json:"payment_mode"`
	Status        PaymentStatus   `gorm:"size:20;default:Confirmed" json:"status"`
	PaymentDate   time.Time       `json:"payment_date"`
	Reference     string          `gorm:"size:255" json:"reference"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentRecord struct {
	OrderId     int             `json:"order_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentType PaymentType     `json:"payment_type" binding:"required"`
	PaymentMode PaymentMode     `json:"payment_mode" binding:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
}

// CreatePaymentRecord numbers and stores a payment and settles it against
// the order's pending balance in the same transaction. The guarded balance
// update makes overpayment a hard failure rather than a negative balance.
func CreatePaymentRecord(ctx context.Context, input *NewPaymentRecord) (*PaymentRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	if !input.Amount.IsPositive() {
		return nil, errors.New("payment amount must be positive")
	}

	var payment PaymentRecord
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, input.OrderId).
			First(&order).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if order.Status == OrderStatusCancelled {
			return errors.New("cannot record payment on a cancelled order")
		}
		if input.PaymentType != PaymentTypeRefund && input.Amount.GreaterThan(order.BalancePending) {
			return errors.New("payment exceeds pending balance")
		}

		paymentDate := time.Now().UTC()
		if input.PaymentDate != nil {
			paymentDate = *input.PaymentDate
		}

		number, err := NextTransactionNumber(tx, ctx, businessId, ModulePayment, paymentDate)
		if err != nil {
			return err
		}

		payment = PaymentRecord{
			BusinessId:    businessId,
			PaymentNumber: number,
			OrderId:       order.ID,
			CustomerId:    order.CustomerId,
			Amount:        input.Amount,
			PaymentType:   input.PaymentType,
			PaymentMode:   input.PaymentMode,
			Status:        PaymentStatusConfirmed,
			PaymentDate:   paymentDate,
			Reference:     input.Reference,
			Notes:         input.Notes,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		delta := input.Amount
		if input.PaymentType == PaymentTypeRefund {
			delta = delta.Neg()
		}
		res := tx.WithContext(ctx).Exec(
			"UPDATE orders SET balance_pending = balance_pending - ? WHERE id = ? AND business_id = ? AND balance_pending >= ?",
			delta, order.ID, businessId, delta)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("payment exceeds pending balance")
		}

		return RecordStatusTransition(tx, ctx, businessId, payment.ID,
			EventReferenceTypePayment, "", string(PaymentStatusConfirmed))
	})
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func GetPaymentRecord(ctx context.Context, id int) (*PaymentRecord, error) {
	return GetResource[PaymentRecord](ctx, id)
}

func GetPaymentRecordsForOrder(ctx context.Context, orderId int) ([]*PaymentRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}

	db := config.GetDB()
	var results []*PaymentRecord
	if err := db.WithContext(ctx).
		Where("business_id = ? AND order_id = ?", businessId, orderId).
		Order("payment_date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
