package workflow

import (
	"context"
	"time"

	"bitbucket.org/zenithinteriors/crm_backend/config"
	"bitbucket.org/zenithinteriors/crm_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QuotationExpirySweeper expires quotations past their validity window in
// the background. A redis distributed lock keeps a single sweeper active
// across replicas; expiry itself goes through the quotation status machine,
// so holds are released with the same exactly-once guarantee as a manual
// rejection.
type QuotationExpirySweeper struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Interval time.Duration
	LockTTL  time.Duration
}

func NewQuotationExpirySweeper(db *gorm.DB, logger *logrus.Logger) *QuotationExpirySweeper {
	return &QuotationExpirySweeper{
		DB:       db,
		Logger:   logger,
		Interval: 10 * time.Minute,
		LockTTL:  5 * time.Minute,
	}
}

func (s *QuotationExpirySweeper) Run(ctx context.Context) {
	if s == nil || s.DB == nil {
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
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.Interval):
		}
	}
}

func (s *QuotationExpirySweeper) sweepOnce(ctx context.Context) {
	locker := config.GetRedisLock()
	var lock *redislock.Lock
	if locker != nil {
		var err error
		lock, err = locker.Obtain(ctx, "quotation-expiry-sweep", s.LockTTL, nil)
		if err == redislock.ErrNotObtained {
			// another replica is sweeping
			return
		}
		if err != nil {
			config.LogError(s.Logger, "workflow", "QuotationExpirySweeper", "redis lock", nil, err)
			return
		}
		defer lock.Release(ctx)
	}

	now := time.Now().UTC()
	var businessIds []string
	if err := s.DB.WithContext(ctx).Model(&models.Quotation{}).
		Where("status IN (?) AND valid_until IS NOT NULL AND valid_until < ?",
			[]models.QuotationStatus{models.QuotationStatusDraft, models.QuotationStatusSent, models.QuotationStatusRevised}, now).
		Distinct("business_id").Pluck("business_id", &businessIds).Error; err != nil {
		config.LogError(s.Logger, "workflow", "QuotationExpirySweeper", "scan", nil, err)
		return
	}

	for _, businessId := range businessIds {
		expired, err := models.ExpireStaleQuotations(ctx, businessId, now)
		if err != nil {
			config.LogError(s.Logger, "workflow", "QuotationExpirySweeper", "sweep",
				map[string]interface{}{"businessId": businessId}, err)
			continue
		}
		if expired > 0 && s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"business_id": businessId,
				"expired":     expired,
			}).Warn("expired stale quotations")
		}
	}
}
