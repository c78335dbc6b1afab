package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionSequence holds one monotonic counter per business, module and
// calendar period. Numbers are allocated inside the caller's transaction so a
// rolled back document never leaves a gap smaller than one.
type TransactionSequence struct {
	ID         int               `gorm:"primary_key" json:"id"`
	BusinessId string            `gorm:"uniqueIndex:idx_sequence_scope;not null" json:"business_id"`
	Module     TransactionModule `gorm:"uniqueIndex:idx_sequence_scope;size:50;not null" json:"module"`
	Period     string            `gorm:"uniqueIndex:idx_sequence_scope;size:6;not null" json:"period"`
	NextValue  int64             `gorm:"not null;default:0" json:"next_value"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

var defaultTransactionPrefixes = map[TransactionModule]string{
	ModuleQuotation: "QT",
	ModuleOrder:     "ORD",
	ModulePayment:   "PAY",
	ModuleTicket:    "TKT",
}

// transactionPrefix returns the document prefix for a module, preferring the
// business level override cached in redis.
func transactionPrefix(ctx context.Context, businessId string, module TransactionModule) (string, error) {
	prefixes := make(map[string]string)
	redisKey := "tnsPrefixMap:" + businessId
	exists, err := config.GetRedisObject(redisKey, &prefixes)
	if err != nil {
		return "", err
	}
	if !exists {
		db := config.GetDB()
		var overrides []*TransactionPrefixOverride
		if err := db.WithContext(ctx).Model(&TransactionPrefixOverride{}).
			Where("business_id = ?", businessId).Find(&overrides).Error; err != nil {
			return "", err
		}
		for _, o := range overrides {
			prefixes[string(o.Module)] = o.Prefix
		}
		if err := config.SetRedisObject(redisKey, &prefixes, 0); err != nil {
			return "", err
		}
	}

	if prefix, ok := prefixes[string(module)]; ok && prefix != "" {
		return prefix, nil
	}
	prefix, ok := defaultTransactionPrefixes[module]
	if !ok {
		return "", fmt.Errorf("no prefix for module %s", module)
	}
	return prefix, nil
}

// TransactionPrefixOverride lets a business customize its document prefixes.
type TransactionPrefixOverride struct {
	ID         int               `gorm:"primary_key" json:"id"`
	BusinessId string            `gorm:"uniqueIndex:idx_prefix_scope;not null" json:"business_id"`
	Module     TransactionModule `gorm:"uniqueIndex:idx_prefix_scope;size:50;not null" json:"module"`
	Prefix     string            `gorm:"size:10;not null" json:"prefix" binding:"required"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetTransactionPrefix upserts a business level prefix override and drops the
// cached prefix map so the next allocation sees the new value.
func SetTransactionPrefix(ctx context.Context, module TransactionModule, prefix string) (*TransactionPrefixOverride, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}
	if prefix == "" || len(prefix) > 10 {
		return nil, errors.New("prefix must be 1 to 10 characters")
	}
	switch module {
	case ModuleQuotation, ModuleOrder, ModulePayment, ModuleTicket:
	default:
		return nil, fmt.Errorf("unknown module %s", module)
	}

	db := config.GetDB()
	override := TransactionPrefixOverride{
		BusinessId: businessId,
		Module:     module,
		Prefix:     prefix,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "module"}},
		DoUpdates: clause.AssignmentColumns([]string{"prefix", "updated_at"}),
	}).Create(&override).Error
	if err != nil {
		return nil, err
	}

	if err := config.RemoveRedisKey("tnsPrefixMap:" + businessId); err != nil {
		return nil, err
	}
	return &override, nil
}

// formatTransactionNumber renders PREFIX-YYYYMM-NNNN. The running number keeps
// growing past four digits without wrapping.
func formatTransactionNumber(prefix string, period string, value int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, period, value)
}

func transactionPeriod(date time.Time) string {
	return date.Format("200601")
}

// NextTransactionNumber atomically allocates the next document number for the
// module within the date's calendar month. The upsert relies on
// LAST_INSERT_ID so concurrent callers on separate connections never observe
// the same value. Must run on the caller's open transaction so the number is
// only consumed when the document commits.
func NextTransactionNumber(tx *gorm.DB, ctx context.Context, businessId string, module TransactionModule, date time.Time) (string, error) {

	prefix, err := transactionPrefix(ctx, businessId, module)
	if err != nil {
		return "", err
	}

	period := transactionPeriod(date)

	if err := tx.WithContext(ctx).Exec(`
		INSERT INTO transaction_sequences (business_id, module, period, next_value, created_at, updated_at)
		VALUES (?, ?, ?, LAST_INSERT_ID(1), NOW(), NOW())
		ON DUPLICATE KEY UPDATE next_value = LAST_INSERT_ID(next_value + 1), updated_at = NOW()`,
		businessId, module, period).Error; err != nil {
		return "", err
	}

	var value int64
	if err := tx.WithContext(ctx).Raw("SELECT LAST_INSERT_ID()").Scan(&value).Error; err != nil {
		return "", err
	}

	return formatTransactionNumber(prefix, period, value), nil
}
