package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventHandler consumes one committed status transition. Handlers must be
// idempotent; delivery is at-least-once.
type EventHandler func(ctx context.Context, tx *gorm.DB, event models.StatusTransitionEvent) error

// StatusEventProcessor drains committed outbox rows without Pub/Sub. It runs
// as a safety net alongside the dispatcher: if delivery or permissions are
// misconfigured, transitions are still consumed locally instead of piling up
// unprocessed. Consumption is guarded by idempotency keys, so running both
// paths is safe.
type StatusEventProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
	Handler   EventHandler
}

func NewStatusEventProcessor(db *gorm.DB, logger *logrus.Logger) *StatusEventProcessor {
	p := &StatusEventProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
	p.Handler = p.logTransition
	return p
}

func (p *StatusEventProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *StatusEventProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.StatusTransitionEvent
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where("locked_at IS NULL OR locked_at <= ?", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if err := tx.Model(&models.StatusTransitionEvent{}).Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": &now,
					"locked_by": &p.WorkerID,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, event := range claimed {
		p.handleOne(ctx, event)
	}
}

func (p *StatusEventProcessor) handleOne(ctx context.Context, event models.StatusTransitionEvent) {
	messageId := fmt.Sprintf("outbox-%d", event.ID)
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, event.BusinessId, "StatusEventProcessor", messageId)
		if err != nil {
			return err
		}
		if !skip {
			if err := p.Handler(ctx, tx, event); err != nil {
				_ = MarkIdempotencyFailed(tx, event.BusinessId, "StatusEventProcessor", messageId, err)
				return err
			}
			if err := MarkIdempotencySucceeded(tx, event.BusinessId, "StatusEventProcessor", messageId); err != nil {
				return err
			}
		}
		return tx.Model(&models.StatusTransitionEvent{}).Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"is_processed": true,
				"locked_at":    nil,
				"locked_by":    nil,
			}).Error
	})
	if err != nil {
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"field":       "StatusEventProcessor",
				"business_id": event.BusinessId,
				"event_id":    event.ID,
			}).Error("direct processing failed: " + err.Error())
		}
		// unlock so the next sweep can retry
		_ = p.DB.WithContext(ctx).Model(&models.StatusTransitionEvent{}).Where("id = ?", event.ID).
			Updates(map[string]interface{}{"locked_at": nil, "locked_by": nil}).Error
	}
}

func (p *StatusEventProcessor) logTransition(ctx context.Context, tx *gorm.DB, event models.StatusTransitionEvent) error {
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"business_id":    event.BusinessId,
			"reference_id":   event.ReferenceId,
			"reference_type": event.ReferenceType,
			"old_status":     event.OldStatus,
			"new_status":     event.NewStatus,
			"correlation_id": event.CorrelationId,
		}).Warn("status transition delivered locally")
	}
	return nil
}
