package models

import (
	"context"

	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/google/uuid"
)

// GetResource fetches a record by id scoped to the caller's business.
func GetResource[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdMissing
	}
	return utils.FetchModel[T](ctx, businessId, id, associations...)
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func userIdFromContext(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	return userId
}
