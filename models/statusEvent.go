package models

import (
	"context"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"gorm.io/gorm"
)

// StatusTransitionEvent is the transactional outbox row for a document
// status change. It is written inside the caller's transaction and published
// asynchronously by the workflow dispatcher after commit.
type StatusTransitionEvent struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	BusinessId       string              `gorm:"index;not null" json:"business_id"`
	ReferenceId      int                 `gorm:"index;not null" json:"reference_id"`
	ReferenceType    EventReferenceType  `gorm:"size:50;not null" json:"reference_type"`
	OldStatus        string              `gorm:"size:50" json:"old_status"`
	NewStatus        string              `gorm:"size:50;not null" json:"new_status"`
	IsProcessed      bool                `gorm:"index;not null;default:false" json:"is_processed"`
	PublishStatus    OutboxPublishStatus `gorm:"size:20;default:PENDING" json:"publish_status"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time          `json:"next_attempt_at"`
	PublishedAt      *time.Time          `json:"published_at"`
	PubSubMessageId  *string             `gorm:"size:100" json:"pub_sub_message_id"`
	LockedAt         *time.Time          `json:"locked_at"`
	LockedBy         *string             `gorm:"size:100" json:"locked_by"`
	CorrelationId    string              `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecordStatusTransition writes the outbox row on the caller's transaction,
// so the event exists iff the status change commits.
func RecordStatusTransition(tx *gorm.DB, ctx context.Context, businessId string, referenceId int, referenceType EventReferenceType, oldStatus string, newStatus string) error {
	event := StatusTransitionEvent{
		BusinessId:    businessId,
		ReferenceId:   referenceId,
		ReferenceType: referenceType,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&event).Error
}

// ConvertToNotification shapes an outbox row for the wire.
func (e StatusTransitionEvent) ConvertToNotification() config.NotificationMessage {
	return config.NotificationMessage{
		ID:            e.ID,
		BusinessId:    e.BusinessId,
		ReferenceId:   e.ReferenceId,
		ReferenceType: string(e.ReferenceType),
		OldStatus:     e.OldStatus,
		NewStatus:     e.NewStatus,
		OccurredAt:    e.CreatedAt,
		CorrelationId: e.CorrelationId,
	}
}
